package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pigeonim/pigeon/internal/bus"
	"github.com/pigeonim/pigeon/internal/ident"
	"github.com/pigeonim/pigeon/internal/protocol"
	"github.com/pigeonim/pigeon/internal/store"
)

// Wire is the outbound side of the connection.
type Wire interface {
	Send(frame []byte) error
	Ready() bool
}

const (
	pollInterval = 500 * time.Millisecond
	resendAfter  = 3 * time.Second
	maxAttempts  = 5
)

// Sender owns the send path. Compose writes the message locally first, so
// nothing is lost when the connection is down; the drain loop retransmits
// unacked sends until the server answers or the attempt budget runs out.
type Sender struct {
	db     *store.Store
	node   *ident.Node
	wire   Wire
	bus    *bus.Bus
	codec  *protocol.Codec
	logger *zap.Logger
	cancel context.CancelFunc

	mu       sync.Mutex
	uid      int64
	attempts map[int64]int
	lastTry  map[int64]time.Time
}

// NewSender creates an outbox sender.
func NewSender(db *store.Store, node *ident.Node, wire Wire, b *bus.Bus, codec *protocol.Codec, logger *zap.Logger) *Sender {
	return &Sender{
		db:       db,
		node:     node,
		wire:     wire,
		bus:      b,
		codec:    codec,
		logger:   logger,
		attempts: make(map[int64]int),
		lastTry:  make(map[int64]time.Time),
	}
}

// Start begins draining pending sends. The sender also watches the session
// events to learn the authenticated uid.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	authed, unsub := s.bus.Subscribe(bus.KindSessionAuthed, 8)
	acked, unsubAck := s.bus.Subscribe(bus.KindMessageAcked, 64)

	go func() {
		defer unsub()
		defer unsubAck()
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case evt := <-authed:
				if uid, ok := evt.Payload.(int64); ok {
					s.mu.Lock()
					s.uid = uid
					s.mu.Unlock()
				}
			case evt := <-acked:
				if clientID, ok := evt.Payload.(int64); ok {
					s.mu.Lock()
					delete(s.attempts, clientID)
					delete(s.lastTry, clientID)
					s.mu.Unlock()
				}
			case <-ticker.C:
				s.drain()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the drain loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// ErrNotAuthenticated is returned by Compose before the session uid is
// known. Composing needs the uid to stamp the sender column.
var ErrNotAuthenticated = errors.New("outbox: not authenticated")

// Compose stores a new outgoing message and tries to send it right away.
// The returned client id is the message's permanent local identity.
func (s *Sender) Compose(chatID int64, chatType protocol.ChatType, body *protocol.ChatMsg) (int64, error) {
	s.mu.Lock()
	uid := s.uid
	s.mu.Unlock()
	if uid == 0 {
		return 0, ErrNotAuthenticated
	}

	clientID := s.node.Generate()
	msg := &store.Message{
		ClientID:   clientID,
		ChatID:     chatID,
		ClientTime: time.Now().UnixMilli(),
		SenderID:   uid,
		ChatType:   int32(chatType),
		Status:     protocol.StatusPending,
	}
	flattenBody(msg, body)
	if err := s.db.SaveMessage(msg); err != nil {
		return 0, err
	}

	s.trySend(msg)
	return clientID, nil
}

// drain retransmits pending rows that have waited long enough for an ack.
// When the wire is down the rows simply stay pending; reconnection picks
// them up on a later tick.
func (s *Sender) drain() {
	if !s.wire.Ready() {
		return
	}
	s.mu.Lock()
	uid := s.uid
	s.mu.Unlock()
	if uid == 0 {
		return
	}

	pending, err := s.db.PendingMessages(uid, protocol.StatusPending)
	if err != nil {
		s.logger.Error("failed to read pending sends", zap.Error(err))
		return
	}
	now := time.Now()
	for _, msg := range pending {
		s.mu.Lock()
		last, tried := s.lastTry[msg.ClientID]
		s.mu.Unlock()
		if tried && now.Sub(last) < resendAfter {
			continue
		}
		s.trySend(msg)
	}
}

func (s *Sender) trySend(msg *store.Message) {
	if !s.wire.Ready() {
		return
	}

	s.mu.Lock()
	s.attempts[msg.ClientID]++
	attempt := s.attempts[msg.ClientID]
	s.lastTry[msg.ClientID] = time.Now()
	s.mu.Unlock()

	if attempt > maxAttempts {
		s.logger.Error("send attempts exhausted", zap.Int64("client_id", msg.ClientID))
		if err := s.db.MarkFailed(msg.ClientID, protocol.StatusFailed); err != nil {
			s.logger.Error("failed to mark message failed", zap.Error(err), zap.Int64("client_id", msg.ClientID))
		}
		s.bus.Publish(bus.Event{Kind: bus.KindMessageSendFailed, Payload: msg.ClientID})
		s.mu.Lock()
		delete(s.attempts, msg.ClientID)
		delete(s.lastTry, msg.ClientID)
		s.mu.Unlock()
		return
	}

	frame := s.codec.EncodeChatMsg(&protocol.CSChatMsg{
		ChatID:     msg.ChatID,
		Msg:        bodyFromMessage(msg),
		ClientTime: msg.ClientTime,
		ClientID:   msg.ClientID,
		ChatType:   protocol.ChatType(msg.ChatType),
	})
	if err := s.wire.Send(frame); err != nil {
		// Dropped, not failed: the row stays pending for the next tick.
		s.logger.Debug("send skipped", zap.Error(err), zap.Int64("client_id", msg.ClientID))
	}
}

// flattenBody copies the wire body into cache columns.
func flattenBody(m *store.Message, body *protocol.ChatMsg) {
	if body == nil {
		return
	}
	m.MsgType = body.MsgType
	m.Text = body.Content
	m.ReplyID = body.ReplyID
	if img := body.Image; img != nil {
		m.MediaWidth = img.Width
		m.MediaHeight = img.Height
		m.MediaURL = img.URL
		m.ThumbnailURL = img.ThumbnailURL
		m.MediaSize = img.Size
		m.MD5 = img.MD5
		m.MediaLocalPath = img.LocalPath
	}
	if v := body.Voice; v != nil {
		m.Duration = v.Duration
		m.MediaURL = v.URL
		m.MediaSize = v.Size
		m.MD5 = v.MD5
	}
	if c := body.Card; c != nil {
		m.ContactUserID = c.UserID
		m.ContactNickname = c.Nickname
		m.ContactIcon = c.Icon
	}
	if f := body.File; f != nil {
		m.FileName = f.Name
		m.MediaURL = f.URL
		m.MediaSize = f.Size
		m.MD5 = f.MD5
	}
	if l := body.Location; l != nil {
		m.Latitude = l.Latitude
		m.Longitude = l.Longitude
		m.Place = l.Place
		m.Address = l.Address
	}
}

// bodyFromMessage rebuilds the wire body from cache columns for a resend.
func bodyFromMessage(m *store.Message) *protocol.ChatMsg {
	body := &protocol.ChatMsg{
		Content: m.Text,
		MsgType: m.MsgType,
		ReplyID: m.ReplyID,
	}
	switch {
	case m.MediaWidth != 0 || m.MediaHeight != 0:
		body.Image = &protocol.Image{
			Width:        m.MediaWidth,
			Height:       m.MediaHeight,
			URL:          m.MediaURL,
			ThumbnailURL: m.ThumbnailURL,
			Size:         m.MediaSize,
			MD5:          m.MD5,
			LocalPath:    m.MediaLocalPath,
		}
	case m.Duration != 0:
		body.Voice = &protocol.Voice{
			Duration: m.Duration,
			URL:      m.MediaURL,
			Size:     m.MediaSize,
			MD5:      m.MD5,
		}
	case m.ContactUserID != 0:
		body.Card = &protocol.Card{
			UserID:   m.ContactUserID,
			Nickname: m.ContactNickname,
			Icon:     m.ContactIcon,
		}
	case m.FileName != "":
		body.File = &protocol.File{
			Name: m.FileName,
			URL:  m.MediaURL,
			Size: m.MediaSize,
			MD5:  m.MD5,
		}
	case m.Latitude != 0 || m.Longitude != 0:
		body.Location = &protocol.Location{
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
			Place:     m.Place,
			Address:   m.Address,
		}
	}
	return body
}
