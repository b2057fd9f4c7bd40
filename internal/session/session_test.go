package session

import (
	"path/filepath"
	"testing"
)

func TestDirIsolatedPerUser(t *testing.T) {
	base := t.TempDir()
	a := Dir(base, 1001)
	b := Dir(base, 1002)
	if a == b {
		t.Fatal("two users must not share a data dir")
	}
	if filepath.Dir(a) != filepath.Dir(b) {
		t.Errorf("user dirs should share a parent: %q vs %q", a, b)
	}
}

func TestDBPath(t *testing.T) {
	base := t.TempDir()
	got := DBPath(base, 42)
	want := filepath.Join(base, "users", "42", "42.db")
	if got != want {
		t.Errorf("DBPath = %q, want %q", got, want)
	}
}

func TestEnsureDir(t *testing.T) {
	base := t.TempDir()
	if err := EnsureDir(base, 7); err != nil {
		t.Fatal(err)
	}
	// Idempotent.
	if err := EnsureDir(base, 7); err != nil {
		t.Errorf("second EnsureDir error = %v", err)
	}
}

func TestDeviceIDStable(t *testing.T) {
	base := t.TempDir()
	first, err := DeviceID(base)
	if err != nil {
		t.Fatal(err)
	}
	if first == "" {
		t.Fatal("empty device id")
	}
	second, err := DeviceID(base)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("device id changed across calls: %q vs %q", first, second)
	}
}
