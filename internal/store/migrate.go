package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/pigeonim/pigeon/internal/store/migrations"
)

// MigrateResult describes what happened during migration.
type MigrateResult struct {
	Version uint
	Dirty   bool
	Changed bool
	// Adapted reports whether a legacy-schema table was rewritten.
	Adapted bool
}

// Migrate brings the database to the current schema. It runs in two phases:
// first any legacy (pre-versioning) tables are adapted in a transaction,
// then the embedded versioned migrations converge the structure. A legacy
// adaptation failure rolls back, leaving the old table intact, and is
// returned to the caller; the store is unusable until it is resolved.
func (s *Store) Migrate() (*MigrateResult, error) {
	adapted, err := s.adaptLegacySchema()
	if err != nil {
		return nil, fmt.Errorf("legacy schema: %w", err)
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}

	err = m.Up()
	changed := true
	if errors.Is(err, migrate.ErrNoChange) {
		changed = false
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("migration up: %w", err)
	}

	version, dirty, _ := m.Version()
	return &MigrateResult{
		Version: version,
		Dirty:   dirty,
		Changed: changed,
		Adapted: adapted,
	}, nil
}

// adaptLegacySchema detects tables written by old client versions and
// rewrites them into the current shape, preserving every row. Detection for
// the message table is a trivial read against the current schema: a failure
// with the table present means the old layout. The conversation table is
// optional, so it is probed via table metadata instead.
func (s *Store) adaptLegacySchema() (bool, error) {
	adapted := false

	var probe sql.NullInt64
	err := s.QueryRow(`SELECT chatId FROM message LIMIT 1`).Scan(&probe)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		exists, terr := s.tableExists("message")
		if terr != nil {
			return false, terr
		}
		if exists {
			s.logger.Info("legacy message table detected", zap.Int64("uid", s.uid))
			if err := s.migrateLegacyMessages(); err != nil {
				return false, fmt.Errorf("message table: %w", err)
			}
			adapted = true
		}
		// No table at all: fresh install, versioned migrations handle it.
	}

	legacyConv, err := s.columnExists("conversation", "room_id")
	if err != nil {
		return adapted, err
	}
	if legacyConv {
		s.logger.Info("legacy conversation table detected", zap.Int64("uid", s.uid))
		if err := s.migrateLegacyConversations(); err != nil {
			return adapted, fmt.Errorf("conversation table: %w", err)
		}
		adapted = true
	}

	return adapted, nil
}

const createMessageTable = `
CREATE TABLE message (
    "clientId"       INTEGER PRIMARY KEY,
    "chatId"         INTEGER,
    "clientTime"     INTEGER,
    "serverTime"     INTEGER,
    "msgId"          INTEGER,
    "senderId"       INTEGER,
    "nickname"       TEXT,
    "icon"           TEXT,
    "chatType"       INTEGER,
    "msgType"        INTEGER,
    "text"           TEXT,
    "status"         INTEGER,
    "mediaWidth"     INTEGER,
    "mediaHeight"    INTEGER,
    "mediaUrl"       TEXT,
    "thumbnailUrl"   TEXT,
    "mediaLocalPath" TEXT,
    "duration"       INTEGER,
    "contactUserId"  INTEGER,
    "contactNickName" TEXT,
    "contactIcon"    TEXT,
    "fileName"       TEXT,
    "mediaSize"      INTEGER,
    "md5"            TEXT,
    "latitude"       DOUBLE,
    "longitude"      DOUBLE,
    "place"          TEXT,
    "address"        TEXT,
    "replyId"        INTEGER
)`

// migrateLegacyMessages renames the old message table aside, creates the
// current one, copies the columns both schemas share (mapping renamed ones)
// and drops the old table. All inside one transaction: either the whole
// sequence is visible or none of it.
func (s *Store) migrateLegacyMessages() error {
	// The legacy sender column appeared under two names over time.
	senderCol := "sender_id"
	if ok, err := s.columnExists("message", "from_uid"); err != nil {
		return err
	} else if ok {
		senderCol = "from_uid"
	}

	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`ALTER TABLE message RENAME TO message_old`); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	if _, err := tx.Exec(createMessageTable); err != nil {
		return fmt.Errorf("create: %w", err)
	}
	copyStmt := fmt.Sprintf(`
		INSERT INTO message (clientId, chatId, clientTime, senderId, text, status, msgType, replyId)
		SELECT id, room_id, create_time, %s, content, status, msg_type, reply_id
		FROM message_old`, senderCol)
	if _, err := tx.Exec(copyStmt); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if _, err := tx.Exec(`DROP TABLE message_old`); err != nil {
		return fmt.Errorf("drop: %w", err)
	}
	if _, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_chatId ON message (chatId);
		CREATE INDEX IF NOT EXISTS idx_senderId ON message (senderId);
		CREATE INDEX IF NOT EXISTS idx_clientTime ON message (clientTime);
		CREATE INDEX IF NOT EXISTS idx_serverTime ON message (serverTime);
		CREATE INDEX IF NOT EXISTS idx_msgId ON message (msgId)`); err != nil {
		return fmt.Errorf("index: %w", err)
	}

	return tx.Commit()
}

func (s *Store) migrateLegacyConversations() error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`ALTER TABLE conversation RENAME TO conversation_old`); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	if _, err := tx.Exec(`
		CREATE TABLE conversation (
		    "chatId"      INTEGER PRIMARY KEY,
		    "type"        INTEGER,
		    "members"     TEXT,
		    "uid"         INTEGER,
		    "unReadCount" INTEGER
		)`); err != nil {
		return fmt.Errorf("create: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO conversation (chatId, type, members, uid, unReadCount)
		SELECT room_id, type, members, user_id, unread_count
		FROM conversation_old`); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if _, err := tx.Exec(`DROP TABLE conversation_old`); err != nil {
		return fmt.Errorf("drop: %w", err)
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_conversation_type ON conversation (type)`); err != nil {
		return fmt.Errorf("index: %w", err)
	}

	return tx.Commit()
}

func (s *Store) tableExists(name string) (bool, error) {
	var n int
	err := s.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("table metadata: %w", err)
	}
	return n > 0, nil
}

func (s *Store) columnExists(table, column string) (bool, error) {
	rows, err := s.Query(fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return false, fmt.Errorf("column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
