package cv

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"
)

// ScreenSource is the device side of an ADB capture
type ScreenSource interface {
	Screencap() ([]byte, error)
	GetWindowSize() (width, height int, err error)
	State() (string, error)
}

// ADBCapture captures frames with `screencap -p` over ADB
type ADBCapture struct {
	source ScreenSource

	width, height int
	mu            sync.Mutex
}

// NewADBCapture creates a capturer bound to a device
func NewADBCapture(source ScreenSource) *ADBCapture {
	return &ADBCapture{source: source}
}

// CaptureFrame grabs and decodes one screenshot
func (c *ADBCapture) CaptureFrame() (*image.RGBA, error) {
	data, err := c.source.Screencap()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty screencap output")
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screencap: %w", err)
	}

	frame := toRGBA(img)

	c.mu.Lock()
	c.width, c.height = frame.Bounds().Dx(), frame.Bounds().Dy()
	c.mu.Unlock()

	return frame, nil
}

// GetDimensions returns the last known frame size, querying the device if unknown
func (c *ADBCapture) GetDimensions() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.width == 0 || c.height == 0 {
		if w, h, err := c.source.GetWindowSize(); err == nil {
			c.width, c.height = w, h
		}
	}
	return c.width, c.height
}

// CheckPermission requires the device to be authorized for ADB
func (c *ADBCapture) CheckPermission() error {
	state, err := c.source.State()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if state != "device" {
		return fmt.Errorf("%w: device state is %q", ErrPermissionDenied, state)
	}
	return nil
}
