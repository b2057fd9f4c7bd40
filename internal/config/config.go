package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.pigeon/config.toml.
type Config struct {
	// ServerURL is the websocket endpoint the connection machine dials.
	ServerURL string `toml:"server_url"`
	// DataDir overrides the default per-user data directory root.
	DataDir string `toml:"data_dir"`
	// MachineID seeds the snowflake node (0..1023). -1 picks a random one.
	MachineID int64 `toml:"machine_id"`
}

// Default returns a config with defaults applied.
func Default() *Config {
	return &Config{MachineID: -1}
}

// Load reads config from the given path, then applies environment overrides
// (PIGEON_WS_URL, PIGEON_DATA_DIR, PIGEON_MACHINE_ID). A missing file is not
// an error; env-only configuration is valid.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyEnv(cfg)
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required (or set PIGEON_WS_URL)")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PIGEON_WS_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("PIGEON_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("PIGEON_MACHINE_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MachineID = id
		}
	}
}
