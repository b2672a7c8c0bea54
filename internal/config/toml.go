// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	API      APIConfig      `toml:"api"`
	Progress ProgressConfig `toml:"progress"`
	Log      LogConfig      `toml:"log"`
}

// APIConfig maps backend connection settings.
type APIConfig struct {
	BaseURL     *string   `toml:"base-url"`
	Timeout     *Duration `toml:"timeout"`
	RefreshSkew *Duration `toml:"refresh-skew"`
}

// ProgressConfig maps progress calculation settings.
type ProgressConfig struct {
	Fallback *string `toml:"fallback"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
