package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/model"
)

// DefaultConfigFile is used when neither a flag nor ConfigEnv names one.
const DefaultConfigFile = "config/config.yaml"

// ConfigEnv overrides the config file location.
const ConfigEnv = "TICKETS_CONFIG"

// ConfigPath picks the config file: the flag value, then ConfigEnv, then
// DefaultConfigFile.
func ConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(ConfigEnv); env != "" {
		return env
	}
	return DefaultConfigFile
}

// LoadOrInitConfig reads the config at path. When the file does not exist
// the defaults are written there and returned, with created set.
func LoadOrInitConfig(path string) (cfg model.Config, created bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = model.DefaultConfig()
		if err := SaveConfig(path, cfg); err != nil {
			return cfg, false, err
		}
		return cfg, true, nil
	}
	if err != nil {
		return cfg, false, fmt.Errorf("read config: %w", err)
	}

	// Fields missing from the file keep their default.
	cfg = model.DefaultConfig()
	cfg.Channels = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, false, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, false, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, false, nil
}

// SaveConfig writes cfg as YAML, creating the directory when needed.
func SaveConfig(path string, cfg model.Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
