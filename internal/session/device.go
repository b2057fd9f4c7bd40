package session

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DeviceID returns the persisted device identifier, creating one on first
// run. The id is stable across restarts; the server uses it to distinguish
// sessions of the same account.
func DeviceID(base string) (string, error) {
	path := DeviceIDPath(base)
	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return "", err
	}
	return id, nil
}
