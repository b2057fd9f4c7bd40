package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// UpsertConversation inserts or replaces a chat list entry. The incoming
// row always wins: the latest server state is authoritative.
func (s *Store) UpsertConversation(c *Conversation) error {
	_, err := s.Exec(`
		INSERT INTO conversation (chatId, type, members, uid, unReadCount)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (chatId) DO UPDATE SET
			type = excluded.type,
			members = excluded.members,
			uid = excluded.uid,
			unReadCount = excluded.unReadCount`,
		c.ChatID, c.Type, c.Members, c.UID, c.UnReadCount)
	if err != nil {
		return fmt.Errorf("upsert conversation %d: %w", c.ChatID, err)
	}
	return nil
}

// GetConversation returns one chat list entry, or (nil, nil) when the chat
// is unknown.
func (s *Store) GetConversation(chatID int64) (*Conversation, error) {
	var (
		c       Conversation
		members sql.NullString
		uid     sql.NullInt64
		unread  sql.NullInt32
	)
	err := s.QueryRow(`
		SELECT chatId, type, members, uid, unReadCount
		FROM conversation WHERE chatId = ?`, chatID).
		Scan(&c.ChatID, &c.Type, &members, &uid, &unread)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %d: %w", chatID, err)
	}
	c.Members = members.String
	c.UID = uid.Int64
	c.UnReadCount = unread.Int32
	return &c, nil
}

// GetConversations returns every chat list entry.
func (s *Store) GetConversations() ([]*Conversation, error) {
	rows, err := s.Query(`SELECT chatId, type, members, uid, unReadCount FROM conversation`)
	if err != nil {
		return nil, fmt.Errorf("get conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var convs []*Conversation
	for rows.Next() {
		var (
			c       Conversation
			members sql.NullString
			uid     sql.NullInt64
			unread  sql.NullInt32
		)
		if err := rows.Scan(&c.ChatID, &c.Type, &members, &uid, &unread); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.Members = members.String
		c.UID = uid.Int64
		c.UnReadCount = unread.Int32
		convs = append(convs, &c)
	}
	return convs, rows.Err()
}

// IncrementUnread bumps a chat's unread counter, creating the entry when
// the first push for an unknown chat arrives.
func (s *Store) IncrementUnread(chatID int64, chatType int32) error {
	_, err := s.Exec(`
		INSERT INTO conversation (chatId, type, unReadCount)
		VALUES (?, ?, 1)
		ON CONFLICT (chatId) DO UPDATE SET
			unReadCount = COALESCE(unReadCount, 0) + 1`, chatID, chatType)
	if err != nil {
		return fmt.Errorf("increment unread %d: %w", chatID, err)
	}
	return nil
}

// ResetUnread clears a chat's unread counter after the user reads it.
func (s *Store) ResetUnread(chatID int64) error {
	_, err := s.Exec(`UPDATE conversation SET unReadCount = 0 WHERE chatId = ?`, chatID)
	if err != nil {
		return fmt.Errorf("reset unread %d: %w", chatID, err)
	}
	return nil
}
