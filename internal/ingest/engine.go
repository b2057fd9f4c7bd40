package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pigeonim/pigeon/internal/bus"
	"github.com/pigeonim/pigeon/internal/protocol"
	"github.com/pigeonim/pigeon/internal/store"
)

// Wire is the outbound side of the connection, used to ack pushes and to
// request missed history.
type Wire interface {
	Send(frame []byte) error
}

// Engine consumes decoded server frames off the bus and applies them to the
// local cache. Every handler is idempotent: redelivered pushes and re-pulled
// history pages must not corrupt the store.
type Engine struct {
	db     *store.Store
	bus    *bus.Bus
	wire   Wire
	codec  *protocol.Codec
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewEngine creates an ingestion engine.
func NewEngine(db *store.Store, b *bus.Bus, wire Wire, codec *protocol.Codec, logger *zap.Logger) *Engine {
	return &Engine{
		db:     db,
		bus:    b,
		wire:   wire,
		codec:  codec,
		logger: logger,
	}
}

// Start subscribes to inbound connection events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("conn.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	decoded, ok := evt.Payload.(*protocol.Decoded)
	if !ok {
		return
	}
	switch p := decoded.Payload.(type) {
	case *protocol.SCAuthToken:
		if p.Code == 0 {
			e.bus.Publish(bus.Event{Kind: bus.KindSessionAuthed, Payload: p.UID})
		}
	case *protocol.SCPushChatMsg:
		if err := e.ingestPush(p); err != nil {
			e.logger.Error("failed to ingest push", zap.Error(err), zap.Int64("msg_id", p.MsgID))
		}
	case *protocol.SCChatMsg:
		if err := e.applySendAck(p.ClientID, p.MsgID, p.ServerTime, p.Status); err != nil {
			e.logger.Error("failed to apply send ack", zap.Error(err), zap.Int64("client_id", p.ClientID))
		}
	case *protocol.SCPushMessageInfo:
		if err := e.applySendAck(p.ClientID, p.MsgID, p.ServerTime, p.Status); err != nil {
			e.logger.Error("failed to apply message info", zap.Error(err), zap.Int64("client_id", p.ClientID))
		}
	case *protocol.SCPullMsgList:
		if err := e.ingestHistory(p); err != nil {
			e.logger.Error("failed to ingest history", zap.Error(err), zap.Int64("chat_id", p.ChatID))
		}
	case *protocol.SCPushLastMsgID:
		if err := e.pullIfBehind(p); err != nil {
			e.logger.Error("failed to request history", zap.Error(err), zap.Int64("chat_id", p.ChatID))
		}
	case *protocol.SCPushReadMsg:
		if err := e.db.MarkRead(p.ChatID, p.MsgID, protocol.StatusRead); err != nil {
			e.logger.Error("failed to mark read", zap.Error(err), zap.Int64("chat_id", p.ChatID))
			return
		}
		if err := e.db.ResetUnread(p.ChatID); err != nil {
			e.logger.Error("failed to reset unread count", zap.Error(err), zap.Int64("chat_id", p.ChatID))
		}
		e.bus.Publish(bus.Event{Kind: bus.KindMessageRead, Payload: p})
	case *protocol.SCDelChat:
		if p.Code != 0 {
			e.logger.Warn("delete chat rejected",
				zap.Int32("code", p.Code), zap.Int64("chat_id", p.ChatID))
		}
	case *protocol.SCPushDelChat:
		if err := e.applyDelChat(p); err != nil {
			e.logger.Error("failed to apply chat deletion", zap.Error(err), zap.Int64("chat_id", p.ChatID))
		}
	case *protocol.SCInitPushDelChats:
		for _, c := range p.Chats {
			if err := e.applyDelChat(c); err != nil {
				e.logger.Error("failed to replay chat deletion", zap.Error(err), zap.Int64("chat_id", c.ChatID))
			}
		}
	}
}

// ingestPush stores a pushed message, bumps the chat's unread counter and
// acks the push. Pushes for a tombstoned chat are acked but never stored.
func (e *Engine) ingestPush(push *protocol.SCPushChatMsg) error {
	dead, err := e.db.Tombstoned(push.ChatID, push.MsgID)
	if err != nil {
		return err
	}
	if !dead {
		msg := messageFromPush(push)
		if err := e.db.SaveMessage(msg); err != nil {
			return err
		}
		if err := e.db.IncrementUnread(push.ChatID, int32(push.ChatType)); err != nil {
			return err
		}
		e.bus.Publish(bus.Event{Kind: bus.KindMessageReceived, Payload: msg})
	}

	if push.PushID != 0 {
		if err := e.wire.Send(e.codec.EncodeAck(push.PushID)); err != nil {
			// The server will redeliver; ingestion stays idempotent.
			e.logger.Warn("push ack not sent", zap.Error(err), zap.Int64("push_id", push.PushID))
		}
	}
	return nil
}

func (e *Engine) applySendAck(clientID, msgID, serverTime int64, status int32) error {
	if err := e.db.AckMessage(clientID, msgID, serverTime, status); err != nil {
		return err
	}
	e.bus.Publish(bus.Event{Kind: bus.KindMessageAcked, Payload: clientID})
	return nil
}

// ingestHistory stores a pulled page in one transaction, skipping messages
// that fall under a deletion boundary.
func (e *Engine) ingestHistory(list *protocol.SCPullMsgList) error {
	msgs := make([]*store.Message, 0, len(list.Msgs))
	for _, push := range list.Msgs {
		dead, err := e.db.Tombstoned(push.ChatID, push.MsgID)
		if err != nil {
			return err
		}
		if dead {
			continue
		}
		msgs = append(msgs, messageFromPush(push))
	}
	if err := e.db.SaveMessages(msgs); err != nil {
		return err
	}
	e.logger.Info("history page ingested",
		zap.Int64("chat_id", list.ChatID), zap.Int("messages", len(msgs)), zap.Bool("has_more", list.HasMore))
	e.bus.Publish(bus.Event{Kind: bus.KindHistoryFetched, Payload: list})
	return nil
}

// pullIfBehind compares the server's newest id for a chat with the local
// one and requests the gap.
func (e *Engine) pullIfBehind(p *protocol.SCPushLastMsgID) error {
	local, err := e.db.LastMsgID(p.ChatID)
	if err != nil {
		return err
	}
	if p.LastMsgID <= local {
		return nil
	}
	frame := e.codec.EncodePullMsgList(&protocol.CSPullMsgList{
		ChatType:  p.ChatType,
		ChatID:    p.ChatID,
		LastMsgID: local,
		PushMsgID: p.LastMsgID,
		Count:     50,
	})
	if err := e.wire.Send(frame); err != nil {
		return fmt.Errorf("pull request: %w", err)
	}
	return nil
}

func (e *Engine) applyDelChat(p *protocol.SCPushDelChat) error {
	if err := e.db.DeleteConversation(p.ChatID, p.LastID, int32(p.ChatType), p.DelOther); err != nil {
		return err
	}
	e.bus.Publish(bus.Event{Kind: bus.KindChatDeleted, Payload: p.ChatID})
	return nil
}

// MarkChatRead is the user-driven read report: clear the unread counter,
// flip local statuses and tell the server.
func (e *Engine) MarkChatRead(chatID int64, chatType protocol.ChatType, msgID, clientID int64) error {
	if err := e.db.MarkRead(chatID, msgID, protocol.StatusRead); err != nil {
		return err
	}
	if err := e.db.ResetUnread(chatID); err != nil {
		return err
	}
	frame := e.codec.EncodeReadMsg(&protocol.CSReadMsg{
		ChatID:   chatID,
		ChatType: chatType,
		MsgID:    msgID,
		ClientID: clientID,
	})
	if err := e.wire.Send(frame); err != nil {
		return fmt.Errorf("read report: %w", err)
	}
	return nil
}

// DeleteChat is the user-driven deletion: purge locally, remember the
// boundary and ask the server to do the same.
func (e *Engine) DeleteChat(chatID int64, chatType protocol.ChatType, lastID int64, delOther bool) error {
	if err := e.db.DeleteConversation(chatID, lastID, int32(chatType), delOther); err != nil {
		return err
	}
	e.bus.Publish(bus.Event{Kind: bus.KindChatDeleted, Payload: chatID})
	frame := e.codec.EncodeDelChat(&protocol.CSDelChat{
		ChatType: chatType,
		ChatID:   chatID,
		LastID:   lastID,
		DelOther: delOther,
	})
	if err := e.wire.Send(frame); err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	return nil
}

// messageFromPush flattens the wire shape into a cache row.
func messageFromPush(push *protocol.SCPushChatMsg) *store.Message {
	m := &store.Message{
		ClientID:   push.ClientID,
		ChatID:     push.ChatID,
		ServerTime: push.ServerTime,
		ClientTime: push.ServerTime,
		MsgID:      push.MsgID,
		SenderID:   push.SenderID,
		Nickname:   push.Nickname,
		Icon:       push.Icon,
		ChatType:   int32(push.ChatType),
		Status:     push.Status,
	}
	body := push.Msg
	if body == nil {
		return m
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
	return m
}
