package session

import (
	"fmt"
	"os"
	"path/filepath"
)

// BaseDir returns the data root: the configured dir if set, else ~/.pigeon.
func BaseDir(configured string) string {
	if configured != "" {
		return configured
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".pigeon")
}

// Dir returns the per-user data directory. Each user id owns an isolated
// subtree; two users never share a database file.
func Dir(base string, uid int64) string {
	return filepath.Join(BaseDir(base), "users", fmt.Sprintf("%d", uid))
}

// DBPath returns the per-user cache database path.
func DBPath(base string, uid int64) string {
	return filepath.Join(Dir(base, uid), fmt.Sprintf("%d.db", uid))
}

// LockPath returns the lock file path for a user's data dir.
func LockPath(base string, uid int64) string {
	return filepath.Join(Dir(base, uid), "LOCK")
}

// LogDir returns the log directory for a user.
func LogDir(base string, uid int64) string {
	return filepath.Join(Dir(base, uid), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(base string, uid int64) string {
	return filepath.Join(LogDir(base, uid), "pigeond.log")
}

// DeviceIDPath returns the path of the persisted device id file.
func DeviceIDPath(base string) string {
	return filepath.Join(BaseDir(base), "device_id")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".pigeon", "config.toml")
}

// EnsureDir creates the per-user directory tree with proper permissions.
func EnsureDir(base string, uid int64) error {
	dirs := []string{
		Dir(base, uid),
		LogDir(base, uid),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
