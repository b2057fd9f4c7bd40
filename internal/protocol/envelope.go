package protocol

import (
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protowire"
)

// Payload is one typed sub-message carried inside the envelope.
type Payload interface {
	marshal() []byte
	unmarshal(data []byte) error
}

// Decoded is the result of decoding an inbound frame.
type Decoded struct {
	Type    MsgType
	Payload Payload
}

// payloadFactories is the closed type→schema table. A msgType missing here
// is unknown and decoding fails closed.
var payloadFactories = map[MsgType]func() Payload{
	TypeCSAuthToken:        func() Payload { return new(CSAuthToken) },
	TypeCSHeartbeat:        func() Payload { return new(CSHeartbeat) },
	TypeCSChatMsg:          func() Payload { return new(CSChatMsg) },
	TypeCSAckPushMsg:       func() Payload { return new(CSAckPushMsg) },
	TypeCSReadMsg:          func() Payload { return new(CSReadMsg) },
	TypeCSPullMsgList:      func() Payload { return new(CSPullMsgList) },
	TypeCSDelChat:          func() Payload { return new(CSDelChat) },
	TypeSCAuthToken:        func() Payload { return new(SCAuthToken) },
	TypeSCHeartbeat:        func() Payload { return new(SCHeartbeat) },
	TypeSCChatMsg:          func() Payload { return new(SCChatMsg) },
	TypeSCPushChatMsg:      func() Payload { return new(SCPushChatMsg) },
	TypeSCPushLastMsgID:    func() Payload { return new(SCPushLastMsgID) },
	TypeSCPullMsgList:      func() Payload { return new(SCPullMsgList) },
	TypeSCPushMessageInfo:  func() Payload { return new(SCPushMessageInfo) },
	TypeSCPushReadMsg:      func() Payload { return new(SCPushReadMsg) },
	TypeSCDelChat:          func() Payload { return new(SCDelChat) },
	TypeSCPushDelChat:      func() Payload { return new(SCPushDelChat) },
	TypeSCInitPushDelChats: func() Payload { return new(SCInitPushDelChats) },
}

// Codec serializes and deserializes envelope frames. It is stateless; the
// logger is its only collaborator and is used for decode diagnostics.
type Codec struct {
	logger *zap.Logger
}

// NewCodec creates a codec. A nil logger falls back to a no-op one.
func NewCodec(logger *zap.Logger) *Codec {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Codec{logger: logger}
}

// Encode wraps a typed payload into the envelope and serializes both layers.
func (c *Codec) Encode(t MsgType, p Payload) []byte {
	var b []byte
	b = appendInt32(b, 1, int32(t))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, p.marshal())
	return b
}

// Decode parses an inbound frame. It returns (nil, false) on a malformed
// envelope, a malformed payload, or an unknown msgType; it never panics or
// propagates an error past this boundary. A chat-message push without a
// server msg id is logged as a data integrity violation but still returned,
// so callers must treat that field as potentially absent.
func (c *Codec) Decode(data []byte) (*Decoded, bool) {
	var msgType MsgType
	var inner []byte

	r := &reader{data: data}
	for {
		num, typ, ok, err := r.next()
		if err != nil {
			c.logger.Error("malformed envelope", zap.Error(err))
			return nil, false
		}
		if !ok {
			break
		}
		switch num {
		case 1:
			v, err := r.int32()
			if err != nil {
				c.logger.Error("malformed envelope", zap.Error(err))
				return nil, false
			}
			msgType = MsgType(v)
		case 2:
			var err error
			if inner, err = r.bytes(); err != nil {
				c.logger.Error("malformed envelope", zap.Error(err))
				return nil, false
			}
		default:
			if err := r.skip(num, typ); err != nil {
				c.logger.Error("malformed envelope", zap.Error(err))
				return nil, false
			}
		}
	}

	factory, known := payloadFactories[msgType]
	if !known {
		c.logger.Warn("unknown message type", zap.Int32("msg_type", int32(msgType)))
		return nil, false
	}

	payload := factory()
	if err := payload.unmarshal(inner); err != nil {
		c.logger.Error("malformed payload",
			zap.Stringer("msg_type", msgType), zap.Error(err))
		return nil, false
	}

	if push, isPush := payload.(*SCPushChatMsg); isPush && push.MsgID == 0 {
		c.logger.Error("chat message push missing server msg id",
			zap.Int64("chat_id", push.ChatID), zap.Int64("client_id", push.ClientID))
	}

	return &Decoded{Type: msgType, Payload: payload}, true
}

// Encode helpers mirroring the frames the connection machine and send path
// actually produce.

// EncodeAuth builds the auth frame sent right after the socket opens.
func (c *Codec) EncodeAuth(token, deviceID string) []byte {
	return c.Encode(TypeCSAuthToken, &CSAuthToken{
		Token:      token,
		ClientType: ClientTypeDesktop,
		DeviceID:   deviceID,
	})
}

// EncodeHeartbeat builds a heartbeat frame.
func (c *Codec) EncodeHeartbeat() []byte {
	return c.Encode(TypeCSHeartbeat, &CSHeartbeat{})
}

// EncodeChatMsg builds a chat-message send frame.
func (c *Codec) EncodeChatMsg(m *CSChatMsg) []byte {
	return c.Encode(TypeCSChatMsg, m)
}

// EncodeAck builds a push acknowledgment.
func (c *Codec) EncodeAck(pushID int64) []byte {
	return c.Encode(TypeCSAckPushMsg, &CSAckPushMsg{PushID: pushID})
}

// EncodeReadMsg builds a read report.
func (c *Codec) EncodeReadMsg(m *CSReadMsg) []byte {
	return c.Encode(TypeCSReadMsg, m)
}

// EncodePullMsgList builds a paged history request.
func (c *Codec) EncodePullMsgList(m *CSPullMsgList) []byte {
	return c.Encode(TypeCSPullMsgList, m)
}

// EncodeDelChat builds a delete-conversation request.
func (c *Codec) EncodeDelChat(m *CSDelChat) []byte {
	return c.Encode(TypeCSDelChat, m)
}
