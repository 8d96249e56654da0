package adb

import (
	"fmt"
	"strings"
)

// Android key codes used by the automation
const (
	KeyBack = "KEYCODE_BACK"
	KeyHome = "KEYCODE_HOME"
)

// SwipeParams defines parameters for swipe gestures
type SwipeParams struct {
	X1, Y1, X2, Y2 int
	Duration       int // milliseconds
}

// Tap presses (x, y) for durationMs. A zero-length swipe gives a timed press,
// which plain `input tap` cannot.
func (c *Controller) Tap(x, y, durationMs int) error {
	if durationMs <= 0 {
		_, err := c.Shell(fmt.Sprintf("input tap %d %d", x, y))
		return err
	}
	_, err := c.Shell(fmt.Sprintf("input swipe %d %d %d %d %d", x, y, x, y, durationMs))
	return err
}

// Swipe performs a swipe gesture
func (c *Controller) Swipe(x1, y1, x2, y2, durationMs int) error {
	_, err := c.Shell(fmt.Sprintf("input swipe %d %d %d %d %d", x1, y1, x2, y2, durationMs))
	return err
}

// Back presses the Android back key
func (c *Controller) Back() error {
	return c.SendKey(KeyBack)
}

// SendKey sends a key event (e.g., "KEYCODE_BACK", "KEYCODE_HOME")
func (c *Controller) SendKey(key string) error {
	_, err := c.Shell(fmt.Sprintf("input keyevent %s", key))
	return err
}

// StayAwake keeps the screen on while plugged in, or restores the default
func (c *Controller) StayAwake(on bool) error {
	mode := "false"
	if on {
		mode = "true"
	}
	_, err := c.Shell("svc power stayon " + mode)
	return err
}

// Shell executes a shell command and returns output
func (c *Controller) Shell(command string) (string, error) {
	output, err := c.exec("shell", command)
	if err != nil {
		return "", fmt.Errorf("shell command failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// Screencap returns the current screen as PNG bytes
func (c *Controller) Screencap() ([]byte, error) {
	output, err := c.exec("exec-out", "screencap", "-p")
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return output, nil
}

// GetWindowSize returns the current window/screen size
func (c *Controller) GetWindowSize() (width, height int, err error) {
	output, err := c.Shell("wm size")
	if err != nil {
		return 0, 0, err
	}
	return parseWindowSize(output)
}

// GetDensity returns the screen density in dpi
func (c *Controller) GetDensity() (int, error) {
	output, err := c.Shell("wm density")
	if err != nil {
		return 0, err
	}
	return parseDensity(output)
}

// parseWindowSize parses `wm size`, preferring an override over the physical size
func parseWindowSize(output string) (int, int, error) {
	var w, h int
	found := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		var lw, lh int
		if _, err := fmt.Sscanf(line, "Override size: %dx%d", &lw, &lh); err == nil {
			return lw, lh, nil
		}
		if _, err := fmt.Sscanf(line, "Physical size: %dx%d", &lw, &lh); err == nil {
			w, h, found = lw, lh, true
		}
	}
	if !found {
		return 0, 0, fmt.Errorf("failed to parse window size: %s", output)
	}
	return w, h, nil
}

// parseDensity parses `wm density`, preferring an override over the physical density
func parseDensity(output string) (int, error) {
	density := 0
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		var d int
		if _, err := fmt.Sscanf(line, "Override density: %d", &d); err == nil {
			return d, nil
		}
		if _, err := fmt.Sscanf(line, "Physical density: %d", &d); err == nil {
			density = d
		}
	}
	if density == 0 {
		return 0, fmt.Errorf("failed to parse density: %s", output)
	}
	return density, nil
}
