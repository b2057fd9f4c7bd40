package store

import (
	"database/sql"
	"errors"
	"fmt"
)

const messageColumns = `clientId, chatId, clientTime, serverTime, msgId, senderId,
	nickname, icon, chatType, msgType, text, status,
	mediaWidth, mediaHeight, mediaUrl, thumbnailUrl, mediaLocalPath, duration,
	contactUserId, contactNickName, contactIcon, fileName, mediaSize, md5,
	latitude, longitude, place, address, replyId`

const insertMessage = `
INSERT INTO message (` + messageColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (clientId) DO NOTHING`

// SaveMessage persists a message. Replays of an already stored clientId are
// ignored so the first write wins.
func (s *Store) SaveMessage(m *Message) error {
	_, err := s.Exec(insertMessage, messageArgs(m)...)
	if err != nil {
		return fmt.Errorf("save message %d: %w", m.ClientID, err)
	}
	return nil
}

// SaveMessages persists a batch in one transaction, typically a pulled
// history page. Duplicates within or across batches are ignored.
func (s *Store) SaveMessages(msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(insertMessage)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, m := range msgs {
		if _, err := stmt.Exec(messageArgs(m)...); err != nil {
			return fmt.Errorf("save message %d: %w", m.ClientID, err)
		}
	}
	return tx.Commit()
}

func messageArgs(m *Message) []any {
	return []any{
		m.ClientID, m.ChatID, m.ClientTime, m.ServerTime, m.MsgID, m.SenderID,
		m.Nickname, m.Icon, m.ChatType, m.MsgType, m.Text, m.Status,
		m.MediaWidth, m.MediaHeight, m.MediaURL, m.ThumbnailURL, m.MediaLocalPath, m.Duration,
		m.ContactUserID, m.ContactNickname, m.ContactIcon, m.FileName, m.MediaSize, m.MD5,
		m.Latitude, m.Longitude, m.Place, m.Address, m.ReplyID,
	}
}

// GetMessages returns a page of a chat's history, newest first by client
// time. A limit at or below zero defaults to 50. An empty chat yields an
// empty slice, never an error.
func (s *Store) GetMessages(chatID int64, limit, offset int) ([]*Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.Query(`
		SELECT `+messageColumns+`
		FROM message
		WHERE chatId = ?
		ORDER BY clientTime DESC
		LIMIT ? OFFSET ?`, chatID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get messages chat %d: %w", chatID, err)
	}
	defer func() { _ = rows.Close() }()

	msgs := make([]*Message, 0, limit)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// GetMessage returns the message with the given clientId, or (nil, nil)
// when none exists.
func (s *Store) GetMessage(clientID int64) (*Message, error) {
	rows, err := s.Query(`SELECT `+messageColumns+` FROM message WHERE clientId = ?`, clientID)
	if err != nil {
		return nil, fmt.Errorf("get message %d: %w", clientID, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, rows.Err()
	}
	m, err := scanMessage(rows)
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return m, nil
}

// Rows migrated from old layouts carry NULL in columns the old schema did
// not have, so every nullable column goes through sql.Null* on the way out.
func scanMessage(rows *sql.Rows) (*Message, error) {
	var (
		m                                           Message
		serverTime, msgID, senderID                 sql.NullInt64
		nickname, icon, text                        sql.NullString
		chatType, msgType, status                   sql.NullInt32
		mediaWidth, mediaHeight, duration           sql.NullInt32
		mediaURL, thumbnailURL, mediaLocalPath, md5 sql.NullString
		contactUserID, mediaSize, replyID           sql.NullInt64
		contactNickname, contactIcon, fileName      sql.NullString
		latitude, longitude                         sql.NullFloat64
		place, address                              sql.NullString
	)
	err := rows.Scan(
		&m.ClientID, &m.ChatID, &m.ClientTime, &serverTime, &msgID, &senderID,
		&nickname, &icon, &chatType, &msgType, &text, &status,
		&mediaWidth, &mediaHeight, &mediaURL, &thumbnailURL, &mediaLocalPath, &duration,
		&contactUserID, &contactNickname, &contactIcon, &fileName, &mediaSize, &md5,
		&latitude, &longitude, &place, &address, &replyID,
	)
	if err != nil {
		return nil, err
	}
	m.ServerTime = serverTime.Int64
	m.MsgID = msgID.Int64
	m.SenderID = senderID.Int64
	m.Nickname = nickname.String
	m.Icon = icon.String
	m.ChatType = chatType.Int32
	m.MsgType = msgType.Int32
	m.Text = text.String
	m.Status = status.Int32
	m.MediaWidth = mediaWidth.Int32
	m.MediaHeight = mediaHeight.Int32
	m.MediaURL = mediaURL.String
	m.ThumbnailURL = thumbnailURL.String
	m.MediaLocalPath = mediaLocalPath.String
	m.Duration = duration.Int32
	m.MediaSize = mediaSize.Int64
	m.MD5 = md5.String
	m.ContactUserID = contactUserID.Int64
	m.ContactNickname = contactNickname.String
	m.ContactIcon = contactIcon.String
	m.FileName = fileName.String
	m.Latitude = latitude.Float64
	m.Longitude = longitude.Float64
	m.Place = place.String
	m.Address = address.String
	m.ReplyID = replyID.Int64
	return &m, nil
}

// AckMessage records the server's receipt of a sent message: the assigned
// server id, server timestamp and new status.
func (s *Store) AckMessage(clientID, msgID, serverTime int64, status int32) error {
	_, err := s.Exec(`
		UPDATE message SET msgId = ?, serverTime = ?, status = ?
		WHERE clientId = ?`, msgID, serverTime, status, clientID)
	if err != nil {
		return fmt.Errorf("ack message %d: %w", clientID, err)
	}
	return nil
}

// MarkRead flips a chat's messages up to and including msgId to the given
// status, typically after a read receipt.
func (s *Store) MarkRead(chatID, msgID int64, status int32) error {
	_, err := s.Exec(`
		UPDATE message SET status = ?
		WHERE chatId = ? AND msgId != 0 AND msgId <= ? AND status < ?`,
		status, chatID, msgID, status)
	if err != nil {
		return fmt.Errorf("mark read chat %d: %w", chatID, err)
	}
	return nil
}

// MarkFailed flags a message the transport could not deliver.
func (s *Store) MarkFailed(clientID int64, status int32) error {
	_, err := s.Exec(`UPDATE message SET status = ? WHERE clientId = ?`, status, clientID)
	if err != nil {
		return fmt.Errorf("mark failed %d: %w", clientID, err)
	}
	return nil
}

// PendingMessages returns this user's own unacked sends, oldest first, for
// the outbox to retry after a reconnect.
func (s *Store) PendingMessages(senderID int64, pendingStatus int32) ([]*Message, error) {
	rows, err := s.Query(`
		SELECT `+messageColumns+`
		FROM message
		WHERE senderId = ? AND status = ?
		ORDER BY clientTime ASC`, senderID, pendingStatus)
	if err != nil {
		return nil, fmt.Errorf("pending messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// LastMsgID returns the highest server-assigned id stored for a chat, zero
// when the chat has no acked messages yet.
func (s *Store) LastMsgID(chatID int64) (int64, error) {
	var last sql.NullInt64
	err := s.QueryRow(`SELECT MAX(msgId) FROM message WHERE chatId = ?`, chatID).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("last msg id chat %d: %w", chatID, err)
	}
	return last.Int64, nil
}
