package adb

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const defaultListTimeout = 10 * time.Second

// FindADB attempts to locate the ADB executable
func FindADB(preferredPath string) (string, error) {
	binary := "adb"
	if runtime.GOOS == "windows" {
		binary = "adb.exe"
	}

	// Try preferred path first, either the binary itself or its folder
	if preferredPath != "" {
		candidates := []string{
			preferredPath,
			filepath.Join(preferredPath, binary),
			filepath.Join(preferredPath, "platform-tools", binary),
		}
		for _, p := range candidates {
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p, nil
			}
		}
	}

	// Android SDK environment
	for _, env := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		if root := os.Getenv(env); root != "" {
			p := filepath.Join(root, "platform-tools", binary)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}

	if p, err := exec.LookPath(binary); err == nil {
		return p, nil
	}

	return "", fmt.Errorf("adb not found, please specify adbPath in config")
}

// ListDevices returns serials of attached devices in state "device"
func ListDevices(adbPath string, run Runner) ([]string, error) {
	if run == nil {
		run = ExecRunner
	}
	output, err := run(defaultListTimeout, adbPath, "devices")
	if err != nil {
		return nil, err
	}
	return parseDevices(string(output)), nil
}

// parseDevices parses `adb devices` output
func parseDevices(output string) []string {
	var devices []string
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == "device" {
			devices = append(devices, fields[0])
		}
	}
	return devices
}

// ResolveDevice picks the configured serial, or the only attached device
func ResolveDevice(adbPath, configured string, run Runner) (string, error) {
	if configured != "" {
		return configured, nil
	}
	devices, err := ListDevices(adbPath, run)
	if err != nil {
		return "", fmt.Errorf("failed to list devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return "", fmt.Errorf("no authorized device attached")
	case 1:
		return devices[0], nil
	default:
		return "", fmt.Errorf("multiple devices attached (%s), set device in config", strings.Join(devices, ", "))
	}
}
