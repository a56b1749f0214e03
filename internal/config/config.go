// Package config loads and persists the per-user Virga configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configDirName  = ".virga"
	configFileName = "config.json"
)

// Config is the operator-level configuration, stored at ~/.virga/config.json.
type Config struct {
	// DefaultRegion seeds new workspaces when --region is not given.
	DefaultRegion string `json:"default_region"`
	// DefaultLocation seeds new workspaces for Azure sessions.
	DefaultLocation string `json:"default_location"`
	// LogLevel is the zerolog level name for the file logger.
	LogLevel string `json:"log_level"`
	// ActiveWorkspace is the path of the workspace CLI commands operate on.
	ActiveWorkspace string `json:"active_workspace,omitempty"`
	// WorkspacesDir is where `virga workspace init` places new workspaces.
	WorkspacesDir string `json:"workspaces_dir"`
	// ServerSocket is the unix socket path of the resident view server.
	ServerSocket string `json:"server_socket"`
	// SecretMode selects vault persistence: "file" or "memory".
	SecretMode string `json:"secret_mode"`
}

// Dir returns the configuration directory path, creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, configDirName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return dir, nil
}

// Default returns the configuration used when no file exists yet.
func Default() Config {
	return Config{
		DefaultRegion:   "us-east-1",
		DefaultLocation: "eastus",
		LogLevel:        "info",
		WorkspacesDir:   "", // resolved against Dir() at load time
		ServerSocket:    "", // resolved against Dir() at load time
		SecretMode:      "file",
	}
}

// Load reads the configuration file, creating it with defaults on first run.
func Load() (Config, error) {
	dir, err := Dir()
	if err != nil {
		return Config{}, err
	}

	path := filepath.Join(dir, configFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		cfg.WorkspacesDir = filepath.Join(dir, "workspaces")
		cfg.ServerSocket = filepath.Join(dir, "virga.sock")
		if err := Save(cfg); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.WorkspacesDir == "" {
		cfg.WorkspacesDir = filepath.Join(dir, "workspaces")
	}
	if cfg.ServerSocket == "" {
		cfg.ServerSocket = filepath.Join(dir, "virga.sock")
	}
	if cfg.SecretMode == "" {
		cfg.SecretMode = "file"
	}
	return cfg, nil
}

// Save writes the configuration file with restrictive permissions.
func Save(cfg Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	path := filepath.Join(dir, configFileName)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
