package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

func ensureConfigFile(configPath string, defaults Config) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config directory %s: %w", configDir, err)
	}

	if _, err := os.Stat(configPath); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config file %s: %w", configPath, err)
	}

	if err := saveConfigFile(configPath, defaults); err != nil {
		return fmt.Errorf("write default config file %s: %w", configPath, err)
	}
	SysLog("created default config file " + configPath)
	return nil
}

// loadConfigFile maps the ini file over defaults, so keys missing from the
// file keep their default value.
func loadConfigFile(path string, defaults Config) (Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return Config{}, fmt.Errorf("parse ini config %s: %w", path, err)
	}

	cfg := defaults
	if err := file.MapTo(&cfg); err != nil {
		return Config{}, fmt.Errorf("map ini config %s: %w", path, err)
	}
	return cfg, nil
}

func saveConfigFile(path string, cfg Config) error {
	file := ini.Empty()
	if err := ini.ReflectFrom(file, &cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	file.Section("transmit").Key("max_file_size").Comment = "MiB"

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.ini")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := file.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config file %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close config file %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace config file %s: %w", path, err)
	}
	return nil
}
