package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// SaveTombstone records a deleted chat so resynced history at or before
// its last message id is dropped instead of resurfacing.
func (s *Store) SaveTombstone(t *DeletedConversation) error {
	_, err := s.Exec(`
		INSERT INTO deletedConversation (id, lastMsgId, type, delOther)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			lastMsgId = MAX(lastMsgId, excluded.lastMsgId),
			type = excluded.type,
			delOther = excluded.delOther`,
		t.ID, t.LastMsgID, t.Type, t.DelOther)
	if err != nil {
		return fmt.Errorf("save tombstone %d: %w", t.ID, err)
	}
	return nil
}

// Tombstone returns the deletion record for a chat, or (nil, nil) when the
// chat was never deleted.
func (s *Store) Tombstone(chatID int64) (*DeletedConversation, error) {
	var t DeletedConversation
	err := s.QueryRow(`
		SELECT id, lastMsgId, type, delOther
		FROM deletedConversation WHERE id = ?`, chatID).
		Scan(&t.ID, &t.LastMsgID, &t.Type, &t.DelOther)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tombstone %d: %w", chatID, err)
	}
	return &t, nil
}

// DeleteConversation purges a chat: its messages up to lastMsgID, its chat
// list entry and a tombstone, all in one transaction. Messages the server
// assigned no id yet are kept only when they arrived after the cutoff.
func (s *Store) DeleteConversation(chatID, lastMsgID int64, chatType int32, delOther bool) error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		DELETE FROM message
		WHERE chatId = ? AND (msgId = 0 OR msgId <= ?)`, chatID, lastMsgID); err != nil {
		return fmt.Errorf("purge messages %d: %w", chatID, err)
	}
	if _, err := tx.Exec(`DELETE FROM conversation WHERE chatId = ?`, chatID); err != nil {
		return fmt.Errorf("drop conversation %d: %w", chatID, err)
	}
	if _, err := tx.Exec(`
		INSERT INTO deletedConversation (id, lastMsgId, type, delOther)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			lastMsgId = MAX(lastMsgId, excluded.lastMsgId),
			type = excluded.type,
			delOther = excluded.delOther`,
		chatID, lastMsgID, chatType, delOther); err != nil {
		return fmt.Errorf("save tombstone %d: %w", chatID, err)
	}

	return tx.Commit()
}

// Tombstoned reports whether a message id falls under a chat's deletion
// record and should be discarded on ingest.
func (s *Store) Tombstoned(chatID, msgID int64) (bool, error) {
	var last sql.NullInt64
	err := s.QueryRow(`SELECT lastMsgId FROM deletedConversation WHERE id = ?`, chatID).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("tombstone check %d: %w", chatID, err)
	}
	return msgID != 0 && msgID <= last.Int64, nil
}
