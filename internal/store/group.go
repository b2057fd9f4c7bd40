package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// UpsertGroup inserts or replaces a cached group profile.
func (s *Store) UpsertGroup(g *Group) error {
	_, err := s.Exec(`
		INSERT INTO "group" (chatId, name, icon, mute, isSilent, ownerId, count, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (chatId) DO UPDATE SET
			name = excluded.name,
			icon = excluded.icon,
			mute = excluded.mute,
			isSilent = excluded.isSilent,
			ownerId = excluded.ownerId,
			count = excluded.count,
			status = excluded.status`,
		g.ChatID, g.Name, g.Icon, g.Mute, g.IsSilent, g.OwnerID, g.Count, g.Status)
	if err != nil {
		return fmt.Errorf("upsert group %d: %w", g.ChatID, err)
	}
	return nil
}

// GetGroup returns a cached group profile, or (nil, nil) when unknown.
func (s *Store) GetGroup(chatID int64) (*Group, error) {
	var g Group
	err := s.QueryRow(`
		SELECT chatId, name, icon, mute, isSilent, ownerId, count, status
		FROM "group" WHERE chatId = ?`, chatID).
		Scan(&g.ChatID, &g.Name, &g.Icon, &g.Mute, &g.IsSilent, &g.OwnerID, &g.Count, &g.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group %d: %w", chatID, err)
	}
	return &g, nil
}
