package protocol

// ChatMsg is the message body shared by sends and pushes: text plus at most
// one structured attachment.
type ChatMsg struct {
	Content  string
	MsgType  int32
	Image    *Image
	Voice    *Voice
	Card     *Card
	File     *File
	Location *Location
	ReplyID  int64
}

// Image attachment metadata.
type Image struct {
	Width        int32
	Height       int32
	URL          string
	ThumbnailURL string
	Size         int64
	MD5          string
	LocalPath    string
}

// Voice attachment metadata.
type Voice struct {
	Duration int32
	URL      string
	Size     int64
	MD5      string
}

// Card is a shared-contact attachment.
type Card struct {
	UserID   int64
	Nickname string
	Icon     string
}

// File attachment metadata.
type File struct {
	Name string
	URL  string
	Size int64
	MD5  string
}

// Location attachment.
type Location struct {
	Latitude  float64
	Longitude float64
	Place     string
	Address   string
}

func (m *ChatMsg) marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Content)
	b = appendInt32(b, 2, m.MsgType)
	if m.Image != nil {
		b = appendMessage(b, 3, m.Image.marshal())
	}
	if m.Voice != nil {
		b = appendMessage(b, 4, m.Voice.marshal())
	}
	if m.Card != nil {
		b = appendMessage(b, 5, m.Card.marshal())
	}
	if m.File != nil {
		b = appendMessage(b, 6, m.File.marshal())
	}
	if m.Location != nil {
		b = appendMessage(b, 7, m.Location.marshal())
	}
	b = appendInt64(b, 8, m.ReplyID)
	return b
}

func (m *ChatMsg) unmarshal(data []byte) error {
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
			if m.Content, err = r.string(); err != nil {
				return err
			}
		case 2:
			if m.MsgType, err = r.int32(); err != nil {
				return err
			}
		case 3:
			sub, err := r.bytes()
			if err != nil {
				return err
			}
			m.Image = new(Image)
			if err := m.Image.unmarshal(sub); err != nil {
				return err
			}
		case 4:
			sub, err := r.bytes()
			if err != nil {
				return err
			}
			m.Voice = new(Voice)
			if err := m.Voice.unmarshal(sub); err != nil {
				return err
			}
		case 5:
			sub, err := r.bytes()
			if err != nil {
				return err
			}
			m.Card = new(Card)
			if err := m.Card.unmarshal(sub); err != nil {
				return err
			}
		case 6:
			sub, err := r.bytes()
			if err != nil {
				return err
			}
			m.File = new(File)
			if err := m.File.unmarshal(sub); err != nil {
				return err
			}
		case 7:
			sub, err := r.bytes()
			if err != nil {
				return err
			}
			m.Location = new(Location)
			if err := m.Location.unmarshal(sub); err != nil {
				return err
			}
		case 8:
			if m.ReplyID, err = r.int64(); err != nil {
				return err
			}
		default:
			if err := r.skip(num, typ); err != nil {
				return err
			}
		}
	}
}

func (m *Image) marshal() []byte {
	var b []byte
	b = appendInt32(b, 1, m.Width)
	b = appendInt32(b, 2, m.Height)
	b = appendString(b, 3, m.URL)
	b = appendString(b, 4, m.ThumbnailURL)
	b = appendInt64(b, 5, m.Size)
	b = appendString(b, 6, m.MD5)
	b = appendString(b, 7, m.LocalPath)
	return b
}

func (m *Image) unmarshal(data []byte) error {
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
			m.Width, err = r.int32()
		case 2:
			m.Height, err = r.int32()
		case 3:
			m.URL, err = r.string()
		case 4:
			m.ThumbnailURL, err = r.string()
		case 5:
			m.Size, err = r.int64()
		case 6:
			m.MD5, err = r.string()
		case 7:
			m.LocalPath, err = r.string()
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
}

func (m *Voice) marshal() []byte {
	var b []byte
	b = appendInt32(b, 1, m.Duration)
	b = appendString(b, 2, m.URL)
	b = appendInt64(b, 3, m.Size)
	b = appendString(b, 4, m.MD5)
	return b
}

func (m *Voice) unmarshal(data []byte) error {
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
			m.Duration, err = r.int32()
		case 2:
			m.URL, err = r.string()
		case 3:
			m.Size, err = r.int64()
		case 4:
			m.MD5, err = r.string()
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
}

func (m *Card) marshal() []byte {
	var b []byte
	b = appendInt64(b, 1, m.UserID)
	b = appendString(b, 2, m.Nickname)
	b = appendString(b, 3, m.Icon)
	return b
}

func (m *Card) unmarshal(data []byte) error {
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
			m.UserID, err = r.int64()
		case 2:
			m.Nickname, err = r.string()
		case 3:
			m.Icon, err = r.string()
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
}

func (m *File) marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Name)
	b = appendString(b, 2, m.URL)
	b = appendInt64(b, 3, m.Size)
	b = appendString(b, 4, m.MD5)
	return b
}

func (m *File) unmarshal(data []byte) error {
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
			m.Name, err = r.string()
		case 2:
			m.URL, err = r.string()
		case 3:
			m.Size, err = r.int64()
		case 4:
			m.MD5, err = r.string()
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
}

func (m *Location) marshal() []byte {
	var b []byte
	b = appendDouble(b, 1, m.Latitude)
	b = appendDouble(b, 2, m.Longitude)
	b = appendString(b, 3, m.Place)
	b = appendString(b, 4, m.Address)
	return b
}

func (m *Location) unmarshal(data []byte) error {
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
			m.Latitude, err = r.double()
		case 2:
			m.Longitude, err = r.double()
		case 3:
			m.Place, err = r.string()
		case 4:
			m.Address, err = r.string()
		default:
			err = r.skip(num, typ)
		}
		if err != nil {
			return err
		}
	}
}
