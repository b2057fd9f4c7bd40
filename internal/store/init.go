package store

import "fmt"

// Per-table bootstrap operations. Migration already converges the full
// schema on Open; these exist for callers that manage a bare database and
// need a single table stood up. All DDL is IF NOT EXISTS, so calling them
// on an already migrated store is a no-op.

// InitConversationTable ensures the conversation table and its index exist.
func (s *Store) InitConversationTable() error {
	return s.initTable("conversation", `
		CREATE TABLE IF NOT EXISTS conversation (
		    "chatId"      INTEGER PRIMARY KEY,
		    "type"        INTEGER,
		    "members"     TEXT,
		    "uid"         INTEGER,
		    "unReadCount" INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_conversation_type ON conversation (type)`)
}

// InitUserTable ensures the user table and its index exist.
func (s *Store) InitUserTable() error {
	return s.initTable("user", `
		CREATE TABLE IF NOT EXISTS user (
		    "userId"   INTEGER PRIMARY KEY,
		    "nickname" TEXT,
		    "icon"     TEXT,
		    "isFriend" BOOLEAN,
		    "isBlack"  BOOLEAN,
		    "isSilent" BOOLEAN
		);
		CREATE INDEX IF NOT EXISTS idx_user_isFriend ON user (isFriend)`)
}

// InitGroupTable ensures the group table and its index exist.
func (s *Store) InitGroupTable() error {
	return s.initTable("group", `
		CREATE TABLE IF NOT EXISTS "group" (
		    "chatId"   INTEGER PRIMARY KEY,
		    "name"     TEXT,
		    "icon"     TEXT,
		    "mute"     BOOLEAN,
		    "isSilent" BOOLEAN,
		    "ownerId"  INTEGER,
		    "count"    INTEGER,
		    "status"   INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_group_status ON "group" (status)`)
}

// InitDeletedConversationTable ensures the tombstone table exists.
func (s *Store) InitDeletedConversationTable() error {
	return s.initTable("deletedConversation", `
		CREATE TABLE IF NOT EXISTS deletedConversation (
		    "id"        INTEGER PRIMARY KEY,
		    "lastMsgId" INTEGER,
		    "type"      INTEGER,
		    "delOther"  BOOL
		)`)
}

func (s *Store) initTable(name, ddl string) error {
	if _, err := s.Exec(ddl); err != nil {
		return fmt.Errorf("init %s table: %w", name, err)
	}
	return nil
}
