package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/vtable/errors"
)

// Config represents the optional vrc.yaml configuration. Command line flags
// override it.
type Config struct {
	Race RaceConfig `yaml:"race"`
	Log  LogConfig  `yaml:"log"`
}

// RaceConfig contains defaults for the race command.
type RaceConfig struct {
	Iterations int `yaml:"iterations,omitempty"`
	Workers    int `yaml:"workers,omitempty"`
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level       string `yaml:"level,omitempty"`
	Development bool   `yaml:"development,omitempty"`
}

func defaultConfig() *Config {
	return &Config{
		Race: RaceConfig{Iterations: 10000},
		Log:  LogConfig{Level: "warn"},
	}
}

// LoadOptional reads path if present and fills in defaults.
func LoadOptional(path string) (*Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read "+path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.ParseFailed(path, err)
	}
	if cfg.Race.Iterations < 0 || cfg.Race.Workers < 0 {
		return nil, errors.InvalidInput(errors.PhaseConfig, "race iterations and workers must not be negative")
	}
	return cfg, nil
}
