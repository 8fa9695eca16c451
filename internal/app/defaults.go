package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - INGESTER_CONFIG_PATH: config file location (default: ~/.config/ingester.toml)
//   - INGESTER_HOME: base directory for ingester data (default: ~/.local/share/ingester)
//   - SYNC_DIR: directory holding the logseq graph (default: ~/sync)
func GetDefaults() (map[string]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	configPath := envOr("INGESTER_CONFIG_PATH", filepath.Join(homeDir, ".config", "ingester.toml"))
	baseDir := envOr("INGESTER_HOME", filepath.Join(homeDir, ".local", "share", "ingester"))

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"sync_dir":    envOr("SYNC_DIR", filepath.Join(homeDir, "sync")),
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
