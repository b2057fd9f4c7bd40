package protocol

// MsgType selects the payload schema carried inside the envelope. CS types
// flow client→server, SC types server→client. Values are part of the wire
// contract and must never be renumbered.
type MsgType int32

const (
	TypeUnknown MsgType = 0

	TypeCSAuthToken   MsgType = 1
	TypeCSHeartbeat   MsgType = 2
	TypeCSChatMsg     MsgType = 3
	TypeCSAckPushMsg  MsgType = 4
	TypeCSReadMsg     MsgType = 5
	TypeCSPullMsgList MsgType = 6
	TypeCSDelChat     MsgType = 7

	TypeSCAuthToken        MsgType = 21
	TypeSCHeartbeat        MsgType = 22
	TypeSCChatMsg          MsgType = 23
	TypeSCPushChatMsg      MsgType = 24
	TypeSCPushLastMsgID    MsgType = 25
	TypeSCPullMsgList      MsgType = 26
	TypeSCPushMessageInfo  MsgType = 27
	TypeSCPushReadMsg      MsgType = 28
	TypeSCDelChat          MsgType = 29
	TypeSCPushDelChat      MsgType = 30
	TypeSCInitPushDelChats MsgType = 31
)

// String returns the wire name of the message type.
func (t MsgType) String() string {
	switch t {
	case TypeCSAuthToken:
		return "CSAuthToken"
	case TypeCSHeartbeat:
		return "CSHeartbeat"
	case TypeCSChatMsg:
		return "CSChatMsg"
	case TypeCSAckPushMsg:
		return "CSAckPushMsg"
	case TypeCSReadMsg:
		return "CSReadMsg"
	case TypeCSPullMsgList:
		return "CSPullMsgList"
	case TypeCSDelChat:
		return "CSDelChat"
	case TypeSCAuthToken:
		return "SCAuthToken"
	case TypeSCHeartbeat:
		return "SCHeartbeat"
	case TypeSCChatMsg:
		return "SCChatMsg"
	case TypeSCPushChatMsg:
		return "SCPushChatMsg"
	case TypeSCPushLastMsgID:
		return "SCPushLastMsgId"
	case TypeSCPullMsgList:
		return "SCPullMsgList"
	case TypeSCPushMessageInfo:
		return "SCPushMessageInfo"
	case TypeSCPushReadMsg:
		return "SCPushReadMsg"
	case TypeSCDelChat:
		return "SCDelChat"
	case TypeSCPushDelChat:
		return "SCPushDelChat"
	case TypeSCInitPushDelChats:
		return "SCInitPushDelChats"
	default:
		return "UNKNOWN"
	}
}

// ChatType distinguishes direct and group conversations.
type ChatType int32

const (
	ChatTypeSingle ChatType = 0
	ChatTypeGroup  ChatType = 1
)

// ClientType tags the auth frame with the kind of client connecting.
type ClientType int32

const (
	ClientTypeUnknown ClientType = 0
	ClientTypeWeb     ClientType = 1
	ClientTypeDesktop ClientType = 2
	ClientTypeMobile  ClientType = 3
)

// Message delivery statuses used in SC acks and pushes.
const (
	StatusPending int32 = 0
	StatusSent    int32 = 1
	StatusRead    int32 = 2
	StatusFailed  int32 = 3
)
