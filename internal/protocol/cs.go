package protocol

// Client→server payloads.

// CSAuthToken authenticates the socket right after it opens.
type CSAuthToken struct {
	Token      string
	ClientType ClientType
	DeviceID   string
}

func (m *CSAuthToken) marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Token)
	b = appendInt32(b, 2, int32(m.ClientType))
	b = appendString(b, 3, m.DeviceID)
	return b
}

func (m *CSAuthToken) unmarshal(data []byte) error {
	r := &reader{data: data}
	for {
		num, typ, ok, err := r.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		switch num {
		case 1:
			m.Token, err = r.string()
		case 2:
			var v int32
			v, err = r.int32()
			m.ClientType = ClientType(v)
		case 3:
			m.DeviceID, err = r.string()
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
}

// CSHeartbeat keeps the connection alive. No fields.
type CSHeartbeat struct{}

func (m *CSHeartbeat) marshal() []byte          { return []byte{} }
func (m *CSHeartbeat) unmarshal(_ []byte) error { return nil }

// CSChatMsg sends a chat message. ClientID is the locally generated
// identifier the server echoes back in its ack.
type CSChatMsg struct {
	ChatID     int64
	Msg        *ChatMsg
	ClientTime int64
	ClientID   int64
	ChatType   ChatType
}

func (m *CSChatMsg) marshal() []byte {
	var b []byte
	b = appendInt64(b, 1, m.ChatID)
	if m.Msg != nil {
		b = appendMessage(b, 2, m.Msg.marshal())
	}
	b = appendInt64(b, 3, m.ClientTime)
	b = appendInt64(b, 4, m.ClientID)
	b = appendInt32(b, 5, int32(m.ChatType))
	return b
}

func (m *CSChatMsg) unmarshal(data []byte) error {
	r := &reader{data: data}
	for {
		num, typ, ok, err := r.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		switch num {
		case 1:
			m.ChatID, err = r.int64()
		case 2:
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				m.Msg = new(ChatMsg)
				err = m.Msg.unmarshal(sub)
			}
		case 3:
			m.ClientTime, err = r.int64()
		case 4:
			m.ClientID, err = r.int64()
		case 5:
			var v int32
			v, err = r.int32()
			m.ChatType = ChatType(v)
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
}

// CSAckPushMsg acknowledges a server push so it is not redelivered.
type CSAckPushMsg struct {
	PushID int64
}

func (m *CSAckPushMsg) marshal() []byte {
	return appendInt64(nil, 1, m.PushID)
}

func (m *CSAckPushMsg) unmarshal(data []byte) error {
	r := &reader{data: data}
	for {
		num, typ, ok, err := r.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		switch num {
		case 1:
			m.PushID, err = r.int64()
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
}

// CSReadMsg reports that messages up to MsgID in a chat were read.
type CSReadMsg struct {
	ChatID   int64
	ChatType ChatType
	MsgID    int64
	ClientID int64
}

func (m *CSReadMsg) marshal() []byte {
	var b []byte
	b = appendInt64(b, 1, m.ChatID)
	b = appendInt32(b, 2, int32(m.ChatType))
	b = appendInt64(b, 3, m.MsgID)
	b = appendInt64(b, 4, m.ClientID)
	return b
}

func (m *CSReadMsg) unmarshal(data []byte) error {
	r := &reader{data: data}
	for {
		num, typ, ok, err := r.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		switch num {
		case 1:
			m.ChatID, err = r.int64()
		case 2:
			var v int32
			v, err = r.int32()
			m.ChatType = ChatType(v)
		case 3:
			m.MsgID, err = r.int64()
		case 4:
			m.ClientID, err = r.int64()
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
}

// CSPullMsgList requests a page of history after the last known ids.
// LastMsgID is the newest locally known client id, PushMsgID the newest
// server-assigned id.
type CSPullMsgList struct {
	ChatType  ChatType
	ChatID    int64
	LastMsgID int64
	PushMsgID int64
	Count     int32
	ClientID  int64
}

func (m *CSPullMsgList) marshal() []byte {
	var b []byte
	b = appendInt32(b, 1, int32(m.ChatType))
	b = appendInt64(b, 2, m.ChatID)
	b = appendInt64(b, 3, m.LastMsgID)
	b = appendInt64(b, 4, m.PushMsgID)
	b = appendInt32(b, 5, m.Count)
	b = appendInt64(b, 6, m.ClientID)
	return b
}

func (m *CSPullMsgList) unmarshal(data []byte) error {
	r := &reader{data: data}
	for {
		num, typ, ok, err := r.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		switch num {
		case 1:
			var v int32
			v, err = r.int32()
			m.ChatType = ChatType(v)
		case 2:
			m.ChatID, err = r.int64()
		case 3:
			m.LastMsgID, err = r.int64()
		case 4:
			m.PushMsgID, err = r.int64()
		case 5:
			m.Count, err = r.int32()
		case 6:
			m.ClientID, err = r.int64()
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
}

// CSDelChat deletes a conversation up to LastID. DelOther asks the server to
// delete for the peer as well.
type CSDelChat struct {
	ChatType ChatType
	ChatID   int64
	LastID   int64
	DelOther bool
}

func (m *CSDelChat) marshal() []byte {
	var b []byte
	b = appendInt32(b, 1, int32(m.ChatType))
	b = appendInt64(b, 2, m.ChatID)
	b = appendInt64(b, 3, m.LastID)
	b = appendBool(b, 4, m.DelOther)
	return b
}

func (m *CSDelChat) unmarshal(data []byte) error {
	r := &reader{data: data}
	for {
		num, typ, ok, err := r.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		switch num {
		case 1:
			var v int32
			v, err = r.int32()
			m.ChatType = ChatType(v)
		case 2:
			m.ChatID, err = r.int64()
		case 3:
			m.LastID, err = r.int64()
		case 4:
			m.DelOther, err = r.bool()
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
}
