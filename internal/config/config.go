package config

import (
	"log/slog"
	"os"
	"path/filepath"
)

type Driver interface {
	Exists() (bool, error)
	Read() (Config, error)
}

// Load reads the config from driver. A missing file yields the defaults.
func Load(driver Driver) (Config, error) {
	exists, err := driver.Exists()
	if err != nil {
		return Config{}, err
	}
	if !exists {
		slog.Debug("No config file", "path", driver)
		return defaultConfig, nil
	}

	return driver.Read()
}

// FilePath returns flagPath when set, else the config file under
// $XDG_CONFIG_HOME or $HOME/.config. It returns "" when none of them is
// available.
func FilePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "dim", "config.yaml")
	}
	if dir := os.Getenv("HOME"); dir != "" {
		return filepath.Join(dir, ".config", "dim", "config.yaml")
	}
	return ""
}
