package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"jordanella.com/linewatch/internal/bot"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadFromINIOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "Settings.ini", `
[ADB]
path = /opt/sdk/platform-tools/adb
serial = 127.0.0.1:5555

[Automation]
settleDelayMs = 500
maxConsecutiveCaptureFailures = 20
keepScreenOn = false

[Detection]
greenMin = 80
minSeparationMM = 3.5
dpi = 320

[Overlay]
dir = /tmp/overlays
autoSave = false

[Logging]
level = debug
file =

[History]
enabled = false

[Upload]
enabled = true
url = http://collector:5000/upload
username = admin
retryDelaySec = 3
`)

	s, err := LoadFromINI(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/sdk/platform-tools/adb", s.ADB.Path)
	assert.Equal(t, "127.0.0.1:5555", s.ADB.Serial)
	assert.Equal(t, 500, s.Automation.SettleDelayMs)
	assert.Equal(t, 20, s.Automation.MaxConsecutiveCaptureFailures)
	assert.False(t, s.Automation.KeepScreenOn)
	assert.Equal(t, 80, s.Automation.GreenMin)
	assert.Equal(t, 3.5, s.Automation.MinSeparationMM)
	assert.Equal(t, 320, s.Automation.DPI)
	assert.Equal(t, "/tmp/overlays", s.Automation.OverlayDir)
	assert.False(t, s.Automation.AutoSaveOverlay)
	assert.Equal(t, "debug", s.Logging.Level)
	assert.Equal(t, "", s.Logging.File)
	assert.False(t, s.History.Enabled)
	assert.True(t, s.Upload.Enabled)
	assert.Equal(t, "http://collector:5000/upload", s.Upload.URL)
	assert.Equal(t, 3*time.Second, s.Upload.RetryDelay)

	// Untouched keys keep defaults
	assert.Equal(t, 120, s.Automation.TapDurationMs)
	assert.Equal(t, 25, s.Automation.BucketWidth)
	assert.Equal(t, 5, s.Upload.MaxRetries)
	assert.Equal(t, bot.DefaultRegions(), s.Automation.Regions)
}

func TestLoadFromINIRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "Settings.ini", "[Detection]\nbucketWidth = 0\n")

	_, err := LoadFromINI(path)
	assert.Error(t, err)
}

func TestLoadFromINIMissingFile(t *testing.T) {
	_, err := LoadFromINI(filepath.Join(t.TempDir(), "missing.ini"))
	assert.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	s, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.ini"))
	require.NoError(t, err)
	assert.Equal(t, NewDefaultSettings(), s)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "Settings.ini")

	s := NewDefaultSettings()
	s.ADB.Serial = "emulator-5554"
	s.Automation.SwipeDurationMs = 300
	s.Automation.MarkerRadiusFrac = 0.05
	s.Upload.Password = "secret"
	s.Upload.MinInterval = 30 * time.Second

	require.NoError(t, SaveToINI(s, path))
	loaded, err := LoadFromINI(path)
	require.NoError(t, err)

	assert.Equal(t, s.ADB, loaded.ADB)
	assert.Equal(t, s.Automation, loaded.Automation)
	assert.Equal(t, s.Logging.Level, loaded.Logging.Level)
	assert.Equal(t, s.History, loaded.History)
	assert.Equal(t, s.Upload.Password, loaded.Upload.Password)
	assert.Equal(t, 30*time.Second, loaded.Upload.MinInterval)
}

func TestRegionsFileRelativeToSettings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "regions.yaml", `
regions:
  mid:
    top: 0.40
    bottom: 0.60
    left: 0.10
    right: 0.90
`)
	path := writeFile(t, dir, "Settings.ini", "[Automation]\nregionsFile = regions.yaml\n")

	s, err := LoadFromINI(path)
	require.NoError(t, err)

	assert.Equal(t, bot.RegionSpec{Top: 0.40, Bottom: 0.60, Left: 0.10, Right: 0.90}, s.Automation.Regions.Mid)
	assert.Equal(t, bot.DefaultRegions().Bottom, s.Automation.Regions.Bottom)
	assert.Equal(t, bot.DefaultRegions().Top, s.Automation.Regions.Top)
}

func TestRegionsYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	regions := bot.DefaultRegions()
	regions.Top.Left = 0.2

	require.NoError(t, SaveRegionsYAML(regions, path))
	loaded, err := LoadRegionsYAML(path)
	require.NoError(t, err)
	assert.Equal(t, regions, loaded)
}

func TestRegionsYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadRegionsYAML(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := writeFile(t, dir, "bad.yaml", "regions: [1, 2")
	_, err = LoadRegionsYAML(bad)
	assert.Error(t, err)
}
