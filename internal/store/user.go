package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// UpsertUser inserts or replaces a cached profile.
func (s *Store) UpsertUser(u *User) error {
	_, err := s.Exec(`
		INSERT INTO user (userId, nickname, icon, isFriend, isBlack, isSilent)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (userId) DO UPDATE SET
			nickname = excluded.nickname,
			icon = excluded.icon,
			isFriend = excluded.isFriend,
			isBlack = excluded.isBlack,
			isSilent = excluded.isSilent`,
		u.UserID, u.Nickname, u.Icon, u.IsFriend, u.IsBlack, u.IsSilent)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", u.UserID, err)
	}
	return nil
}

// GetUser returns a cached profile, or (nil, nil) when unknown.
func (s *Store) GetUser(userID int64) (*User, error) {
	var u User
	err := s.QueryRow(`
		SELECT userId, nickname, icon, isFriend, isBlack, isSilent
		FROM user WHERE userId = ?`, userID).
		Scan(&u.UserID, &u.Nickname, &u.Icon, &u.IsFriend, &u.IsBlack, &u.IsSilent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	return &u, nil
}
