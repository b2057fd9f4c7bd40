package store

// Message is one persisted chat message. ClientID is the locally generated
// identifier and primary key; MsgID and ServerTime stay zero until the
// server acks the send.
type Message struct {
	ClientID   int64
	ChatID     int64
	ClientTime int64
	ServerTime int64
	MsgID      int64
	SenderID   int64
	Nickname   string
	Icon       string
	ChatType   int32
	MsgType    int32
	Text       string
	Status     int32

	MediaWidth     int32
	MediaHeight    int32
	MediaURL       string
	ThumbnailURL   string
	MediaLocalPath string
	Duration       int32
	MediaSize      int64
	MD5            string

	ContactUserID   int64
	ContactNickname string
	ContactIcon     string

	FileName string

	Latitude  float64
	Longitude float64
	Place     string
	Address   string

	ReplyID int64
}

// Conversation is one chat list entry.
type Conversation struct {
	ChatID      int64
	Type        int32
	Members     string
	UID         int64
	UnReadCount int32
}

// User is a cached profile of another account.
type User struct {
	UserID   int64
	Nickname string
	Icon     string
	IsFriend bool
	IsBlack  bool
	IsSilent bool
}

// Group is a cached group profile.
type Group struct {
	ChatID   int64
	Name     string
	Icon     string
	Mute     bool
	IsSilent bool
	OwnerID  int64
	Count    int32
	Status   int32
}

// DeletedConversation is a tombstone: messages with ids at or before
// LastMsgID must not reappear on resync.
type DeletedConversation struct {
	ID        int64
	LastMsgID int64
	Type      int32
	DelOther  bool
}
