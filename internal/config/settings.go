package config

import (
	"jordanella.com/linewatch/internal/bot"
	"jordanella.com/linewatch/internal/logging"
	"jordanella.com/linewatch/internal/upload"
)

// ADBConfig locates adb and the target device
type ADBConfig struct {
	Path              string // Empty means search ANDROID_HOME and PATH
	Serial            string // Empty means the only attached device
	HealthIntervalSec int    // Device health probe period; 0 disables
}

// HistoryConfig controls the run/detection database
type HistoryConfig struct {
	Enabled bool
	Path    string
}

// Settings is everything read from Settings.ini
type Settings struct {
	ADB         ADBConfig
	Automation  *bot.Config
	RegionsFile string // Optional regions.yaml overriding the default tap regions
	Logging     logging.Config
	History     HistoryConfig
	Upload      upload.Config
}

// NewDefaultSettings creates settings with default values
func NewDefaultSettings() *Settings {
	return &Settings{
		ADB: ADBConfig{
			HealthIntervalSec: 10,
		},
		Automation: bot.NewDefaultConfig(),
		Logging:    logging.DefaultConfig(),
		History: HistoryConfig{
			Enabled: true,
			Path:    "linewatch.db",
		},
		Upload: upload.DefaultConfig(),
	}
}
