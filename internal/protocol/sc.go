package protocol

// Server→client payloads.

// SCAuthToken is the auth handshake result.
type SCAuthToken struct {
	Code int32
	Msg  string
	UID  int64
}

func (m *SCAuthToken) marshal() []byte {
	var b []byte
	b = appendInt32(b, 1, m.Code)
	b = appendString(b, 2, m.Msg)
	b = appendInt64(b, 3, m.UID)
	return b
}

func (m *SCAuthToken) unmarshal(data []byte) error {
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
			m.Code, err = r.int32()
		case 2:
			m.Msg, err = r.string()
		case 3:
			m.UID, err = r.int64()
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
}

// SCHeartbeat is the heartbeat echo. No fields.
type SCHeartbeat struct{}

func (m *SCHeartbeat) marshal() []byte          { return []byte{} }
func (m *SCHeartbeat) unmarshal(_ []byte) error { return nil }

// SCChatMsg acks a CSChatMsg send: the server pairs the echoed ClientID with
// the canonical MsgID it assigned.
type SCChatMsg struct {
	ClientID   int64
	MsgID      int64
	ServerTime int64
	Status     int32
	ChatID     int64
}

func (m *SCChatMsg) marshal() []byte {
	var b []byte
	b = appendInt64(b, 1, m.ClientID)
	b = appendInt64(b, 2, m.MsgID)
	b = appendInt64(b, 3, m.ServerTime)
	b = appendInt32(b, 4, m.Status)
	b = appendInt64(b, 5, m.ChatID)
	return b
}

func (m *SCChatMsg) unmarshal(data []byte) error {
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
			m.ClientID, err = r.int64()
		case 2:
			m.MsgID, err = r.int64()
		case 3:
			m.ServerTime, err = r.int64()
		case 4:
			m.Status, err = r.int32()
		case 5:
			m.ChatID, err = r.int64()
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
}

// SCPushChatMsg delivers a new chat message. MsgID should always be present;
// the codec soft-validates it (see Codec.Decode).
type SCPushChatMsg struct {
	MsgID      int64
	ClientID   int64
	ChatID     int64
	ChatType   ChatType
	SenderID   int64
	Nickname   string
	Icon       string
	Msg        *ChatMsg
	ServerTime int64
	PushID     int64
	Status     int32
}

func (m *SCPushChatMsg) marshal() []byte {
	var b []byte
	b = appendInt64(b, 1, m.MsgID)
	b = appendInt64(b, 2, m.ClientID)
	b = appendInt64(b, 3, m.ChatID)
	b = appendInt32(b, 4, int32(m.ChatType))
	b = appendInt64(b, 5, m.SenderID)
	b = appendString(b, 6, m.Nickname)
	b = appendString(b, 7, m.Icon)
	if m.Msg != nil {
		b = appendMessage(b, 8, m.Msg.marshal())
	}
	b = appendInt64(b, 9, m.ServerTime)
	b = appendInt64(b, 10, m.PushID)
	b = appendInt32(b, 11, m.Status)
	return b
}

func (m *SCPushChatMsg) unmarshal(data []byte) error {
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
			m.MsgID, err = r.int64()
		case 2:
			m.ClientID, err = r.int64()
		case 3:
			m.ChatID, err = r.int64()
		case 4:
			var v int32
			v, err = r.int32()
			m.ChatType = ChatType(v)
		case 5:
			m.SenderID, err = r.int64()
		case 6:
			m.Nickname, err = r.string()
		case 7:
			m.Icon, err = r.string()
		case 8:
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				m.Msg = new(ChatMsg)
				err = m.Msg.unmarshal(sub)
			}
		case 9:
			m.ServerTime, err = r.int64()
		case 10:
			m.PushID, err = r.int64()
		case 11:
			m.Status, err = r.int32()
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
}

// SCPushLastMsgID tells the client the newest server id for a chat, so it
// can decide whether to pull missed history.
type SCPushLastMsgID struct {
	ChatID    int64
	LastMsgID int64
	ChatType  ChatType
}

func (m *SCPushLastMsgID) marshal() []byte {
	var b []byte
	b = appendInt64(b, 1, m.ChatID)
	b = appendInt64(b, 2, m.LastMsgID)
	b = appendInt32(b, 3, int32(m.ChatType))
	return b
}

func (m *SCPushLastMsgID) unmarshal(data []byte) error {
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
			m.LastMsgID, err = r.int64()
		case 3:
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

// SCPullMsgList is a page of history answering a CSPullMsgList.
type SCPullMsgList struct {
	ChatID  int64
	Msgs    []*SCPushChatMsg
	HasMore bool
}

func (m *SCPullMsgList) marshal() []byte {
	var b []byte
	b = appendInt64(b, 1, m.ChatID)
	for _, msg := range m.Msgs {
		b = appendMessage(b, 2, msg.marshal())
	}
	b = appendBool(b, 3, m.HasMore)
	return b
}

func (m *SCPullMsgList) unmarshal(data []byte) error {
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
				msg := new(SCPushChatMsg)
				if err = msg.unmarshal(sub); err == nil {
					m.Msgs = append(m.Msgs, msg)
				}
			}
		case 3:
			m.HasMore, err = r.bool()
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
}

// SCPushMessageInfo updates metadata of an already delivered message.
type SCPushMessageInfo struct {
	ClientID   int64
	MsgID      int64
	ServerTime int64
	Status     int32
}

func (m *SCPushMessageInfo) marshal() []byte {
	var b []byte
	b = appendInt64(b, 1, m.ClientID)
	b = appendInt64(b, 2, m.MsgID)
	b = appendInt64(b, 3, m.ServerTime)
	b = appendInt32(b, 4, m.Status)
	return b
}

func (m *SCPushMessageInfo) unmarshal(data []byte) error {
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
			m.ClientID, err = r.int64()
		case 2:
			m.MsgID, err = r.int64()
		case 3:
			m.ServerTime, err = r.int64()
		case 4:
			m.Status, err = r.int32()
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
}

// SCPushReadMsg reports that the peer read messages up to MsgID.
type SCPushReadMsg struct {
	ChatID   int64
	ChatType ChatType
	MsgID    int64
	ClientID int64
}

func (m *SCPushReadMsg) marshal() []byte {
	var b []byte
	b = appendInt64(b, 1, m.ChatID)
	b = appendInt32(b, 2, int32(m.ChatType))
	b = appendInt64(b, 3, m.MsgID)
	b = appendInt64(b, 4, m.ClientID)
	return b
}

func (m *SCPushReadMsg) unmarshal(data []byte) error {
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

// SCDelChat acks the client's own delete-chat request.
type SCDelChat struct {
	Code     int32
	ChatType ChatType
	ChatID   int64
}

func (m *SCDelChat) marshal() []byte {
	var b []byte
	b = appendInt32(b, 1, m.Code)
	b = appendInt32(b, 2, int32(m.ChatType))
	b = appendInt64(b, 3, m.ChatID)
	return b
}

func (m *SCDelChat) unmarshal(data []byte) error {
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
			m.Code, err = r.int32()
		case 2:
			var v int32
			v, err = r.int32()
			m.ChatType = ChatType(v)
		case 3:
			m.ChatID, err = r.int64()
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
}

// SCPushDelChat announces a conversation deletion (e.g. from another device
// of the same account). LastID is the deletion boundary.
type SCPushDelChat struct {
	ChatType ChatType
	ChatID   int64
	LastID   int64
	DelOther bool
}

func (m *SCPushDelChat) marshal() []byte {
	var b []byte
	b = appendInt32(b, 1, int32(m.ChatType))
	b = appendInt64(b, 2, m.ChatID)
	b = appendInt64(b, 3, m.LastID)
	b = appendBool(b, 4, m.DelOther)
	return b
}

func (m *SCPushDelChat) unmarshal(data []byte) error {
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

// SCInitPushDelChats replays all deletion boundaries at connect time so the
// client can rebuild its tombstones.
type SCInitPushDelChats struct {
	Chats []*SCPushDelChat
}

func (m *SCInitPushDelChats) marshal() []byte {
	var b []byte
	for _, c := range m.Chats {
		b = appendMessage(b, 1, c.marshal())
	}
	if b == nil {
		b = []byte{}
	}
	return b
}

func (m *SCInitPushDelChats) unmarshal(data []byte) error {
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
			var sub []byte
			if sub, err = r.bytes(); err == nil {
				c := new(SCPushDelChat)
				if err = c.unmarshal(sub); err == nil {
					m.Chats = append(m.Chats, c)
				}
			}
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
}
