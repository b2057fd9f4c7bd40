package outbox

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/pigeonim/pigeon/internal/bus"
	"github.com/pigeonim/pigeon/internal/ident"
	"github.com/pigeonim/pigeon/internal/protocol"
	"github.com/pigeonim/pigeon/internal/store"
)

type fakeWire struct {
	mu     sync.Mutex
	ready  bool
	frames [][]byte
}

func (w *fakeWire) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ready
}

func (w *fakeWire) setReady(ready bool) {
	w.mu.Lock()
	w.ready = ready
	w.mu.Unlock()
}

func (w *fakeWire) Send(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.ready {
		return errors.New("not connected")
	}
	w.frames = append(w.frames, frame)
	return nil
}

func (w *fakeWire) sentChatMsgs(t *testing.T) []*protocol.CSChatMsg {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	codec := protocol.NewCodec(nil)
	var out []*protocol.CSChatMsg
	for _, f := range w.frames {
		d, ok := codec.Decode(f)
		if !ok {
			t.Fatal("sender emitted an undecodable frame")
		}
		if msg, isChat := d.Payload.(*protocol.CSChatMsg); isChat {
			out = append(out, msg)
		}
	}
	return out
}

var testUID atomic.Int64

func newTestSender(t *testing.T) (*Sender, *store.Store, *fakeWire, *bus.Bus) {
	t.Helper()
	uid := 70000 + testUID.Add(1)
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"), uid, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	node, err := ident.New(5, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	b := bus.New()
	wire := &fakeWire{ready: true}
	s := NewSender(db, node, wire, b, protocol.NewCodec(nil), zap.NewNop())
	s.uid = uid
	return s, db, wire, b
}

func TestComposeRequiresAuth(t *testing.T) {
	s, _, _, _ := newTestSender(t)
	s.uid = 0

	if _, err := s.Compose(1, protocol.ChatTypeSingle, &protocol.ChatMsg{Content: "hi"}); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Compose = %v, want ErrNotAuthenticated", err)
	}
}

func TestComposeStoresAndSends(t *testing.T) {
	s, db, wire, _ := newTestSender(t)

	clientID, err := s.Compose(42, protocol.ChatTypeSingle, &protocol.ChatMsg{Content: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if clientID == 0 {
		t.Fatal("compose returned zero client id")
	}

	m, err := db.GetMessage(clientID)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.Text != "hello" || m.Status != protocol.StatusPending || m.SenderID != s.uid {
		t.Fatalf("got %+v, want pending row with body and sender", m)
	}

	sent := wire.sentChatMsgs(t)
	if len(sent) != 1 {
		t.Fatalf("got %d frames, want 1", len(sent))
	}
	if sent[0].ClientID != clientID || sent[0].ChatID != 42 || sent[0].Msg.Content != "hello" {
		t.Errorf("frame = %+v, want composed message", sent[0])
	}
}

func TestComposeOfflineStaysPending(t *testing.T) {
	s, db, wire, _ := newTestSender(t)
	wire.setReady(false)

	clientID, err := s.Compose(42, protocol.ChatTypeSingle, &protocol.ChatMsg{Content: "queued"})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(wire.sentChatMsgs(t)); got != 0 {
		t.Fatalf("sent %d frames while offline, want 0", got)
	}

	// Reconnect: the next drain picks the row up.
	wire.setReady(true)
	s.drain()

	sent := wire.sentChatMsgs(t)
	if len(sent) != 1 || sent[0].ClientID != clientID {
		t.Fatalf("got %d frames after reconnect, want the queued one", len(sent))
	}
	m, err := db.GetMessage(clientID)
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != protocol.StatusPending {
		t.Errorf("status = %d before ack, want pending", m.Status)
	}
}

func TestDrainBacksOffBetweenAttempts(t *testing.T) {
	s, _, wire, _ := newTestSender(t)

	if _, err := s.Compose(42, protocol.ChatTypeSingle, &protocol.ChatMsg{Content: "x"}); err != nil {
		t.Fatal(err)
	}
	// The row was just sent; an immediate drain must not resend it.
	s.drain()
	s.drain()

	if got := len(wire.sentChatMsgs(t)); got != 1 {
		t.Errorf("sent %d frames, want 1 (backoff between attempts)", got)
	}
}

func TestAckStopsResending(t *testing.T) {
	s, db, wire, _ := newTestSender(t)

	clientID, err := s.Compose(42, protocol.ChatTypeSingle, &protocol.ChatMsg{Content: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AckMessage(clientID, 900, 5000, protocol.StatusSent); err != nil {
		t.Fatal(err)
	}

	s.mu.Lock()
	delete(s.lastTry, clientID) // pretend the backoff window passed
	s.mu.Unlock()
	s.drain()

	if got := len(wire.sentChatMsgs(t)); got != 1 {
		t.Errorf("sent %d frames after ack, want 1", got)
	}
}

func TestAttemptBudgetExhaustedMarksFailed(t *testing.T) {
	s, db, _, b := newTestSender(t)
	events, unsub := b.Subscribe("message.send_failed", 8)
	defer unsub()

	clientID, err := s.Compose(42, protocol.ChatTypeSingle, &protocol.ChatMsg{Content: "doomed"})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < maxAttempts+1; i++ {
		s.mu.Lock()
		delete(s.lastTry, clientID)
		s.mu.Unlock()
		s.drain()
	}

	m, err := db.GetMessage(clientID)
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != protocol.StatusFailed {
		t.Errorf("status = %d, want failed after attempt budget", m.Status)
	}
	select {
	case evt := <-events:
		if id, ok := evt.Payload.(int64); !ok || id != clientID {
			t.Errorf("payload = %v, want client id %d", evt.Payload, clientID)
		}
	default:
		t.Error("no message.send_failed event published")
	}
}

func TestResendCarriesAttachments(t *testing.T) {
	s, _, wire, _ := newTestSender(t)

	clientID, err := s.Compose(42, protocol.ChatTypeGroup, &protocol.ChatMsg{
		MsgType: 1,
		Image: &protocol.Image{
			Width: 640, Height: 480, URL: "https://cdn/x.jpg", Size: 1234, MD5: "abc",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	s.mu.Lock()
	delete(s.lastTry, clientID)
	s.mu.Unlock()
	s.drain()

	sent := wire.sentChatMsgs(t)
	if len(sent) != 2 {
		t.Fatalf("got %d frames, want compose + resend", len(sent))
	}
	resent := sent[1]
	if resent.Msg == nil || resent.Msg.Image == nil {
		t.Fatal("resend lost the attachment")
	}
	if resent.Msg.Image.Width != 640 || resent.Msg.Image.URL != "https://cdn/x.jpg" {
		t.Errorf("image = %+v, want original metadata", resent.Msg.Image)
	}
	if resent.ChatType != protocol.ChatTypeGroup {
		t.Errorf("chat type = %v, want group", resent.ChatType)
	}
}
