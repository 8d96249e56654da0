package adb

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Runner executes the adb binary and returns stdout
type Runner func(timeout time.Duration, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec, killing them after timeout
func ExecRunner(timeout time.Duration, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			return stdout.Bytes(), fmt.Errorf("%w, output: %s", err, strings.TrimSpace(stderr.String()+stdout.String()))
		}
		return stdout.Bytes(), nil
	case <-time.After(timeout):
		cmd.Process.Kill()
		<-done
		return nil, fmt.Errorf("command timed out after %v", timeout)
	}
}

// Controller drives one device through the adb binary
type Controller struct {
	path      string
	device    string // Serial, e.g. "127.0.0.1:5555" or a USB serial
	run       Runner
	timeout   time.Duration
	logger    *zap.Logger
	mu        sync.Mutex
	connected bool
}

// NewController creates a new ADB controller
func NewController(adbPath, device string, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		path:    adbPath,
		device:  device,
		run:     ExecRunner,
		timeout: 15 * time.Second,
		logger:  logger,
	}
}

// WithRunner replaces the command runner
func (c *Controller) WithRunner(run Runner) *Controller {
	c.run = run
	return c
}

// Device returns the device serial
func (c *Controller) Device() string {
	return c.device
}

// Connect establishes connection to the ADB device.
// Network serials (host:port) go through `adb connect`; USB devices only need a state check.
func (c *Controller) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.Contains(c.device, ":") {
		output, err := c.run(c.timeout, c.path, "connect", c.device)
		if err != nil {
			return fmt.Errorf("failed to connect to device %s: %w", c.device, err)
		}
		out := string(output)
		if !strings.Contains(out, "connected") {
			return fmt.Errorf("unexpected connect output: %s", strings.TrimSpace(out))
		}
	}

	c.connected = true
	c.logger.Info("ADB connected", zap.String("device", c.device))
	return nil
}

// Disconnect closes the ADB connection
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected && strings.Contains(c.device, ":") {
		if _, err := c.run(c.timeout, c.path, "disconnect", c.device); err != nil {
			c.logger.Warn("ADB disconnect failed", zap.Error(err))
		}
	}
	c.connected = false
	return nil
}

// IsConnected returns whether the controller is connected
func (c *Controller) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// State returns the device state reported by `adb get-state`
// ("device", "unauthorized", "offline", ...)
func (c *Controller) State() (string, error) {
	output, err := c.exec("get-state")
	if err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "unauthorized"):
			return "unauthorized", nil
		case strings.Contains(msg, "offline"):
			return "offline", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// exec runs an adb subcommand against this device
func (c *Controller) exec(args ...string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	full := append([]string{"-s", c.device}, args...)
	output, err := c.run(c.timeout, c.path, full...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return output, fmt.Errorf("adb %s failed: %w", args[0], err)
		}
		return output, fmt.Errorf("adb %s: %w", args[0], err)
	}
	return output, nil
}
