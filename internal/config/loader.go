package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/ini.v1"
)

// LoadFromINI loads settings from a Settings.ini file.
// Keys that are absent keep their defaults.
func LoadFromINI(path string) (*Settings, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	s := NewDefaultSettings()
	d := NewDefaultSettings()

	adb := cfg.Section("ADB")
	s.ADB.Path = adb.Key("path").MustString(d.ADB.Path)
	s.ADB.Serial = adb.Key("serial").MustString(d.ADB.Serial)
	s.ADB.HealthIntervalSec = adb.Key("healthIntervalSec").MustInt(d.ADB.HealthIntervalSec)

	a := s.Automation
	da := d.Automation
	auto := cfg.Section("Automation")
	a.TapDurationMs = auto.Key("tapDurationMs").MustInt(da.TapDurationMs)
	a.TapDelayMinMs = auto.Key("tapDelayMinMs").MustInt(da.TapDelayMinMs)
	a.TapDelayMaxMs = auto.Key("tapDelayMaxMs").MustInt(da.TapDelayMaxMs)
	a.SwipeAnchorY = auto.Key("swipeAnchorY").MustFloat64(da.SwipeAnchorY)
	a.SwipeDistanceFraction = auto.Key("swipeDistance").MustFloat64(da.SwipeDistanceFraction)
	a.SwipeDurationMs = auto.Key("swipeDurationMs").MustInt(da.SwipeDurationMs)
	a.SettleDelayMs = auto.Key("settleDelayMs").MustInt(da.SettleDelayMs)
	a.CaptureMaxAttempts = auto.Key("captureMaxAttempts").MustInt(da.CaptureMaxAttempts)
	a.CaptureBackoffMs = auto.Key("captureBackoffMs").MustInt(da.CaptureBackoffMs)
	a.MaxConsecutiveCaptureFailures = auto.Key("maxConsecutiveCaptureFailures").MustInt(da.MaxConsecutiveCaptureFailures)
	a.StartDelaySeconds = auto.Key("startDelaySec").MustInt(da.StartDelaySeconds)
	a.KeepScreenOn = auto.Key("keepScreenOn").MustBool(da.KeepScreenOn)
	s.RegionsFile = auto.Key("regionsFile").MustString("")

	det := cfg.Section("Detection")
	a.GreenMin = det.Key("greenMin").MustInt(da.GreenMin)
	a.GreenMax = det.Key("greenMax").MustInt(da.GreenMax)
	a.ColorDelta = det.Key("delta").MustInt(da.ColorDelta)
	a.SampleStep = det.Key("sampleStep").MustInt(da.SampleStep)
	a.BucketWidth = det.Key("bucketWidth").MustInt(da.BucketWidth)
	a.MinPixelsPerBucket = det.Key("minPixelsPerBucket").MustInt(da.MinPixelsPerBucket)
	a.MinSeparationMM = det.Key("minSeparationMM").MustFloat64(da.MinSeparationMM)
	a.DPI = det.Key("dpi").MustInt(da.DPI)

	ov := cfg.Section("Overlay")
	a.OverlayDir = ov.Key("dir").MustString(da.OverlayDir)
	a.AutoSaveOverlay = ov.Key("autoSave").MustBool(da.AutoSaveOverlay)
	a.MarkerInterval = ov.Key("markerInterval").MustInt(da.MarkerInterval)
	a.MarkerMargin = ov.Key("markerMargin").MustInt(da.MarkerMargin)
	a.MarkerMinRadius = ov.Key("markerMinRadius").MustInt(da.MarkerMinRadius)
	a.MarkerRadiusFrac = ov.Key("markerRadiusFraction").MustFloat64(da.MarkerRadiusFrac)
	a.MarkerAlpha = ov.Key("markerAlpha").MustInt(da.MarkerAlpha)

	lg := cfg.Section("Logging")
	s.Logging.Level = lg.Key("level").MustString(d.Logging.Level)
	s.Logging.Format = lg.Key("format").MustString(d.Logging.Format)
	s.Logging.Console = lg.Key("console").MustBool(d.Logging.Console)
	if lg.HasKey("file") {
		// An empty value disables the log file
		s.Logging.File = lg.Key("file").String()
	}
	s.Logging.MaxSizeMB = lg.Key("maxSizeMB").MustInt(d.Logging.MaxSizeMB)
	s.Logging.MaxBackups = lg.Key("maxBackups").MustInt(d.Logging.MaxBackups)
	s.Logging.MaxAgeDays = lg.Key("maxAgeDays").MustInt(d.Logging.MaxAgeDays)
	s.Logging.Compress = lg.Key("compress").MustBool(d.Logging.Compress)

	hist := cfg.Section("History")
	s.History.Enabled = hist.Key("enabled").MustBool(d.History.Enabled)
	s.History.Path = hist.Key("path").MustString(d.History.Path)

	up := cfg.Section("Upload")
	s.Upload.Enabled = up.Key("enabled").MustBool(d.Upload.Enabled)
	s.Upload.URL = up.Key("url").MustString(d.Upload.URL)
	s.Upload.Username = up.Key("username").MustString(d.Upload.Username)
	s.Upload.Password = up.Key("password").MustString(d.Upload.Password)
	s.Upload.Machine = up.Key("machine").MustString(d.Upload.Machine)
	s.Upload.MaxRetries = up.Key("maxRetries").MustInt(d.Upload.MaxRetries)
	s.Upload.RetryDelay = time.Duration(up.Key("retryDelaySec").MustInt(int(d.Upload.RetryDelay/time.Second))) * time.Second
	s.Upload.Timeout = time.Duration(up.Key("timeoutSec").MustInt(int(d.Upload.Timeout/time.Second))) * time.Second
	s.Upload.MinInterval = time.Duration(up.Key("minIntervalSec").MustInt(int(d.Upload.MinInterval/time.Second))) * time.Second
	s.Upload.QueueSize = up.Key("queueSize").MustInt(d.Upload.QueueSize)

	if s.RegionsFile != "" {
		regionsPath := s.RegionsFile
		if !filepath.IsAbs(regionsPath) {
			regionsPath = filepath.Join(filepath.Dir(path), regionsPath)
		}
		regions, err := LoadRegionsYAML(regionsPath)
		if err != nil {
			return nil, err
		}
		a.Regions = regions
	}

	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid automation settings: %w", err)
	}
	return s, nil
}

// LoadOrDefault loads path, falling back to defaults when the file does not exist
func LoadOrDefault(path string) (*Settings, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return NewDefaultSettings(), nil
	}
	return LoadFromINI(path)
}

// SaveToINI saves settings to an INI file
func SaveToINI(s *Settings, path string) error {
	cfg := ini.Empty()

	adb := cfg.Section("ADB")
	adb.Key("path").SetValue(s.ADB.Path)
	adb.Key("serial").SetValue(s.ADB.Serial)
	adb.Key("healthIntervalSec").SetValue(fmt.Sprintf("%d", s.ADB.HealthIntervalSec))

	a := s.Automation
	auto := cfg.Section("Automation")
	auto.Key("tapDurationMs").SetValue(fmt.Sprintf("%d", a.TapDurationMs))
	auto.Key("tapDelayMinMs").SetValue(fmt.Sprintf("%d", a.TapDelayMinMs))
	auto.Key("tapDelayMaxMs").SetValue(fmt.Sprintf("%d", a.TapDelayMaxMs))
	auto.Key("swipeAnchorY").SetValue(fmt.Sprintf("%g", a.SwipeAnchorY))
	auto.Key("swipeDistance").SetValue(fmt.Sprintf("%g", a.SwipeDistanceFraction))
	auto.Key("swipeDurationMs").SetValue(fmt.Sprintf("%d", a.SwipeDurationMs))
	auto.Key("settleDelayMs").SetValue(fmt.Sprintf("%d", a.SettleDelayMs))
	auto.Key("captureMaxAttempts").SetValue(fmt.Sprintf("%d", a.CaptureMaxAttempts))
	auto.Key("captureBackoffMs").SetValue(fmt.Sprintf("%d", a.CaptureBackoffMs))
	auto.Key("maxConsecutiveCaptureFailures").SetValue(fmt.Sprintf("%d", a.MaxConsecutiveCaptureFailures))
	auto.Key("startDelaySec").SetValue(fmt.Sprintf("%d", a.StartDelaySeconds))
	auto.Key("keepScreenOn").SetValue(fmt.Sprintf("%t", a.KeepScreenOn))
	if s.RegionsFile != "" {
		auto.Key("regionsFile").SetValue(s.RegionsFile)
	}

	det := cfg.Section("Detection")
	det.Key("greenMin").SetValue(fmt.Sprintf("%d", a.GreenMin))
	det.Key("greenMax").SetValue(fmt.Sprintf("%d", a.GreenMax))
	det.Key("delta").SetValue(fmt.Sprintf("%d", a.ColorDelta))
	det.Key("sampleStep").SetValue(fmt.Sprintf("%d", a.SampleStep))
	det.Key("bucketWidth").SetValue(fmt.Sprintf("%d", a.BucketWidth))
	det.Key("minPixelsPerBucket").SetValue(fmt.Sprintf("%d", a.MinPixelsPerBucket))
	det.Key("minSeparationMM").SetValue(fmt.Sprintf("%g", a.MinSeparationMM))
	det.Key("dpi").SetValue(fmt.Sprintf("%d", a.DPI))

	ov := cfg.Section("Overlay")
	ov.Key("dir").SetValue(a.OverlayDir)
	ov.Key("autoSave").SetValue(fmt.Sprintf("%t", a.AutoSaveOverlay))
	ov.Key("markerInterval").SetValue(fmt.Sprintf("%d", a.MarkerInterval))
	ov.Key("markerMargin").SetValue(fmt.Sprintf("%d", a.MarkerMargin))
	ov.Key("markerMinRadius").SetValue(fmt.Sprintf("%d", a.MarkerMinRadius))
	ov.Key("markerRadiusFraction").SetValue(fmt.Sprintf("%g", a.MarkerRadiusFrac))
	ov.Key("markerAlpha").SetValue(fmt.Sprintf("%d", a.MarkerAlpha))

	lg := cfg.Section("Logging")
	lg.Key("level").SetValue(s.Logging.Level)
	lg.Key("format").SetValue(s.Logging.Format)
	lg.Key("console").SetValue(fmt.Sprintf("%t", s.Logging.Console))
	lg.Key("file").SetValue(s.Logging.File)
	lg.Key("maxSizeMB").SetValue(fmt.Sprintf("%d", s.Logging.MaxSizeMB))
	lg.Key("maxBackups").SetValue(fmt.Sprintf("%d", s.Logging.MaxBackups))
	lg.Key("maxAgeDays").SetValue(fmt.Sprintf("%d", s.Logging.MaxAgeDays))
	lg.Key("compress").SetValue(fmt.Sprintf("%t", s.Logging.Compress))

	hist := cfg.Section("History")
	hist.Key("enabled").SetValue(fmt.Sprintf("%t", s.History.Enabled))
	hist.Key("path").SetValue(s.History.Path)

	up := cfg.Section("Upload")
	up.Key("enabled").SetValue(fmt.Sprintf("%t", s.Upload.Enabled))
	up.Key("url").SetValue(s.Upload.URL)
	up.Key("username").SetValue(s.Upload.Username)
	up.Key("password").SetValue(s.Upload.Password)
	up.Key("machine").SetValue(s.Upload.Machine)
	up.Key("maxRetries").SetValue(fmt.Sprintf("%d", s.Upload.MaxRetries))
	up.Key("retryDelaySec").SetValue(fmt.Sprintf("%d", int(s.Upload.RetryDelay/time.Second)))
	up.Key("timeoutSec").SetValue(fmt.Sprintf("%d", int(s.Upload.Timeout/time.Second)))
	up.Key("minIntervalSec").SetValue(fmt.Sprintf("%d", int(s.Upload.MinInterval/time.Second)))
	up.Key("queueSize").SetValue(fmt.Sprintf("%d", s.Upload.QueueSize))

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return cfg.SaveTo(path)
}
