package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.ServerURL = "ws://localhost:9100/ws"
	cfg.MachineID = 7
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.ServerURL != "ws://localhost:9100/ws" {
		t.Errorf("ServerURL = %q, want ws://localhost:9100/ws", loaded.ServerURL)
	}
	if loaded.MachineID != 7 {
		t.Errorf("MachineID = %d, want 7", loaded.MachineID)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for missing file", err)
	}
	if cfg.MachineID != -1 {
		t.Errorf("MachineID = %d, want -1 default", cfg.MachineID)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PIGEON_WS_URL", "ws://env:1234/ws")
	t.Setenv("PIGEON_MACHINE_ID", "42")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerURL != "ws://env:1234/ws" {
		t.Errorf("ServerURL = %q, want env override", cfg.ServerURL)
	}
	if cfg.MachineID != 42 {
		t.Errorf("MachineID = %d, want 42", cfg.MachineID)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should fail without server_url")
	}
	cfg.ServerURL = "ws://x/ws"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
