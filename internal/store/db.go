package store

import (
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// Store owns one user's persistent cache. Every user id gets its own
// isolated database file; instances are cached process-wide so repeated
// opens for the same uid share a connection.
type Store struct {
	*sql.DB
	uid    int64
	logger *zap.Logger
}

var (
	openMu     sync.Mutex
	openStores = map[int64]*Store{}
)

// Open returns the store for the given user, opening and migrating the
// database on first use. Callers must not issue operations before Open
// returns: migration runs here and never concurrently with other access.
func Open(path string, uid int64, logger *zap.Logger) (*Store, error) {
	openMu.Lock()
	defer openMu.Unlock()

	if s, ok := openStores[uid]; ok {
		return s, nil
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{DB: db, uid: uid, logger: logger}
	result, err := s.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate uid %d: %w", uid, err)
	}
	if result.Adapted {
		logger.Info("legacy schema migrated", zap.Int64("uid", uid))
	}
	logger.Info("store opened",
		zap.Int64("uid", uid), zap.String("path", path), zap.Uint("schema_version", result.Version))

	openStores[uid] = s
	return s, nil
}

// Close closes the database and removes the instance from the process-wide
// cache so a later Open starts fresh.
func (s *Store) Close() error {
	openMu.Lock()
	delete(openStores, s.uid)
	openMu.Unlock()
	return s.DB.Close()
}
