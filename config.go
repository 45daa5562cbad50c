package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds server settings loadable from a YAML file. Flags and
// environment variables override file values.
type Config struct {
	Port        int    `yaml:"port"`
	DBPath      string `yaml:"db_path"`
	CompanyName string `yaml:"company_name"`
}

func defaultConfig() Config {
	return Config{
		Port:        9000,
		DBPath:      "pepsi.db",
		CompanyName: "AT Distribution",
	}
}

// loadConfig reads the YAML config at path and merges it over defaults.
// A missing file is not an error when path is the default location.
func loadConfig(path string, required bool) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if file.Port != 0 {
		cfg.Port = file.Port
	}
	if file.DBPath != "" {
		cfg.DBPath = file.DBPath
	}
	if file.CompanyName != "" {
		cfg.CompanyName = file.CompanyName
	}
	return cfg, nil
}
