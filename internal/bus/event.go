package bus

import "time"

// Event kinds published on the bus. Subscribers filter by namespace prefix,
// e.g. "conn." receives every connection lifecycle event.
const (
	KindConnOpen    = "conn.open"
	KindConnClose   = "conn.close"
	KindConnFatal   = "conn.fatal"
	KindConnMessage = "conn.message"
	KindConnState   = "conn.state_changed"

	KindMessageReceived   = "message.received"
	KindMessageAcked      = "message.acked"
	KindMessageRead       = "message.read"
	KindMessageSendFailed = "message.send_failed"

	KindSessionAuthed  = "session.authenticated"
	KindChatDeleted    = "chat.deleted"
	KindHistoryFetched = "chat.history_fetched"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Fatal is the payload for conn.fatal events. Msg is user-facing.
type Fatal struct {
	Msg string
}
