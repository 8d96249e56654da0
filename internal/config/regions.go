package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"jordanella.com/linewatch/internal/bot"
)

// regionsFile is the regions.yaml layout
type regionsFile struct {
	Regions bot.RegionSet `yaml:"regions"`
}

// LoadRegionsYAML reads tap regions; regions missing from the file keep their defaults
func LoadRegionsYAML(path string) (bot.RegionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return bot.RegionSet{}, fmt.Errorf("failed to read regions file: %w", err)
	}

	file := regionsFile{Regions: bot.DefaultRegions()}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return bot.RegionSet{}, fmt.Errorf("failed to parse regions file: %w", err)
	}
	return file.Regions, nil
}

// SaveRegionsYAML writes tap regions
func SaveRegionsYAML(regions bot.RegionSet, path string) error {
	data, err := yaml.Marshal(regionsFile{Regions: regions})
	if err != nil {
		return fmt.Errorf("failed to encode regions: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write regions file: %w", err)
	}
	return nil
}
