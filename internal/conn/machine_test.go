package conn

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pigeonim/pigeon/internal/bus"
	"github.com/pigeonim/pigeon/internal/protocol"
)

type fakeSocket struct {
	mu        sync.Mutex
	inbound   chan []byte
	written   [][]byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.inbound:
		return 2, data, nil
	case <-f.closed:
		return 0, nil, errors.New("socket closed")
	}
}

func (f *fakeSocket) WriteMessage(messageType int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("socket closed")
	default:
	}
	f.mu.Lock()
	f.written = append(f.written, data)
	f.mu.Unlock()
	return nil
}

func (f *fakeSocket) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeSocket) writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.written))
	copy(out, f.written)
	return out
}

func newTestMachine(dial dialFunc) (*Machine, *bus.Bus) {
	b := bus.New()
	m := NewMachine("ws://test", b, protocol.NewCodec(nil), zap.NewNop())
	m.dial = dial
	m.retryDelay = time.Millisecond
	m.hbInterval = time.Hour
	return m, b
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestConnectSendsAuthThenOpens(t *testing.T) {
	sock := newFakeSocket()
	m, _ := newTestMachine(func(string) (socket, error) { return sock, nil })
	t.Cleanup(func() { _ = m.Close() })

	if err := m.Connect("tok123", "dev456"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(sock.writes()) >= 1 }, "auth frame never sent")
	decoded, ok := protocol.NewCodec(nil).Decode(sock.writes()[0])
	if !ok {
		t.Fatal("auth frame did not decode")
	}
	auth, isAuth := decoded.Payload.(*protocol.CSAuthToken)
	if !isAuth {
		t.Fatalf("first frame type = %v, want auth", decoded.Type)
	}
	if auth.Token != "tok123" || auth.DeviceID != "dev456" {
		t.Errorf("auth = %+v, want token and device carried", auth)
	}

	// A successful auth send opens the connection; the server's verdict
	// arrives later as an ordinary inbound frame.
	waitFor(t, func() bool { return m.Current() == Open }, "never reached OPEN")
}

func TestSendDroppedWhenDisconnected(t *testing.T) {
	m, _ := newTestMachine(func(string) (socket, error) { return nil, errors.New("down") })

	if err := m.Send([]byte{1}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send = %v, want ErrNotConnected", err)
	}
}

func TestReconnectBudgetExhausted(t *testing.T) {
	var dials atomic.Int64
	m, b := newTestMachine(func(string) (socket, error) {
		dials.Add(1)
		return nil, errors.New("refused")
	})
	events, unsub := b.Subscribe("conn.fatal", 32)
	defer unsub()

	if err := m.Connect("tok", "dev"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return m.Current() == Failed }, "never reached FAILED")
	// One initial dial plus the full retry budget.
	if got := dials.Load(); got != int64(m.retryMax)+1 {
		t.Errorf("dial attempts = %d, want %d", got, m.retryMax+1)
	}

	// The terminal failure is surfaced to the user.
	terminal := false
	for !terminal {
		select {
		case evt := <-events:
			f, ok := evt.Payload.(bus.Fatal)
			if !ok {
				t.Fatalf("payload type = %T, want Fatal", evt.Payload)
			}
			if f.Msg == "Connection lost. Please sign in again." {
				terminal = true
			}
		default:
			t.Fatal("no terminal fatal event published")
		}
	}

	// FAILED stays put: no further dials.
	before := dials.Load()
	time.Sleep(20 * time.Millisecond)
	if dials.Load() != before {
		t.Error("machine kept dialing after FAILED")
	}
}

func TestConnectResetsRetryBudget(t *testing.T) {
	var dials atomic.Int64
	m, _ := newTestMachine(func(string) (socket, error) {
		dials.Add(1)
		return nil, errors.New("refused")
	})

	if err := m.Connect("tok", "dev"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return m.Current() == Failed }, "never reached FAILED")

	// A fresh Connect from FAILED starts a new budget.
	dials.Store(0)
	if err := m.Connect("tok", "dev"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return m.Current() == Failed }, "second run never reached FAILED")
	if got := dials.Load(); got != int64(m.retryMax)+1 {
		t.Errorf("dial attempts after reset = %d, want %d", got, m.retryMax+1)
	}
}

func TestSingleReconnectTimer(t *testing.T) {
	m, _ := newTestMachine(func(string) (socket, error) { return nil, errors.New("refused") })
	m.retryDelay = time.Hour // keep the first timer pending

	if err := m.Connect("tok", "dev"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return m.Current() == Reconnecting }, "never reached RECONNECTING")

	// A second failure signal while a timer is pending must not arm
	// another one or burn another retry.
	m.mu.Lock()
	before := m.retries
	m.scheduleReconnectLocked()
	after := m.retries
	m.mu.Unlock()
	if after != before {
		t.Errorf("retries went %d -> %d with a timer pending, want unchanged", before, after)
	}

	_ = m.Close()
}

func TestCloseCancelsReconnect(t *testing.T) {
	var dials atomic.Int64
	m, _ := newTestMachine(func(string) (socket, error) {
		dials.Add(1)
		return nil, errors.New("refused")
	})
	m.retryDelay = 10 * time.Millisecond

	if err := m.Connect("tok", "dev"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return m.Current() == Reconnecting }, "never reached RECONNECTING")

	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if m.Current() != Disconnected {
		t.Errorf("state = %s after Close, want DISCONNECTED", m.Current())
	}

	before := dials.Load()
	time.Sleep(50 * time.Millisecond)
	if dials.Load() != before {
		t.Error("reconnect fired after explicit Close")
	}
	m.mu.Lock()
	if m.token != "" || m.deviceID != "" {
		t.Error("credentials not cleared by Close")
	}
	m.mu.Unlock()
}

func TestSocketDropTriggersReconnect(t *testing.T) {
	first := newFakeSocket()
	second := newFakeSocket()
	var dials atomic.Int64
	m, b := newTestMachine(func(string) (socket, error) {
		if dials.Add(1) == 1 {
			return first, nil
		}
		return second, nil
	})
	t.Cleanup(func() { _ = m.Close() })

	events, unsub := b.Subscribe("conn.close", 8)
	defer unsub()

	if err := m.Connect("tok", "dev"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return m.Current() == Open }, "never reached OPEN")

	// Server drops the connection.
	_ = first.Close()
	waitFor(t, func() bool { return dials.Load() == 2 && len(second.writes()) >= 1 }, "never redialed")

	select {
	case <-events:
	default:
		t.Error("no conn.close event published")
	}

	waitFor(t, func() bool { return m.Current() == Open }, "never reopened")
}

func TestDialErrorPublishesFatal(t *testing.T) {
	m, b := newTestMachine(func(string) (socket, error) { return nil, errors.New("refused") })
	m.retryDelay = time.Hour
	events, unsub := b.Subscribe("conn.fatal", 8)
	defer unsub()

	if err := m.Connect("tok", "dev"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return m.Current() == Reconnecting }, "never reached RECONNECTING")

	select {
	case evt := <-events:
		f, ok := evt.Payload.(bus.Fatal)
		if !ok || f.Msg == "" {
			t.Errorf("payload = %#v, want user-facing fatal message", evt.Payload)
		}
	default:
		t.Error("no conn.fatal event for a socket that never opened")
	}

	_ = m.Close()
}

func TestHeartbeatWhileOpen(t *testing.T) {
	sock := newFakeSocket()
	m, _ := newTestMachine(func(string) (socket, error) { return sock, nil })
	m.hbInterval = 5 * time.Millisecond
	t.Cleanup(func() { _ = m.Close() })

	if err := m.Connect("tok", "dev"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return m.Current() == Open }, "never reached OPEN")

	codec := protocol.NewCodec(nil)
	waitFor(t, func() bool {
		for _, frame := range sock.writes() {
			if d, ok := codec.Decode(frame); ok && d.Type == protocol.TypeCSHeartbeat {
				return true
			}
		}
		return false
	}, "no heartbeat frame sent")
}

func TestInboundFramesPublished(t *testing.T) {
	sock := newFakeSocket()
	m, b := newTestMachine(func(string) (socket, error) { return sock, nil })
	t.Cleanup(func() { _ = m.Close() })

	events, unsub := b.Subscribe("conn.message", 32)
	defer unsub()

	if err := m.Connect("tok", "dev"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return m.Current() == Open }, "never reached OPEN")

	codec := protocol.NewCodec(nil)
	sock.inbound <- codec.Encode(protocol.TypeSCHeartbeat, &protocol.SCHeartbeat{})

	waitFor(t, func() bool {
		for {
			select {
			case evt := <-events:
				d, ok := evt.Payload.(*protocol.Decoded)
				if ok && d.Type == protocol.TypeSCHeartbeat {
					return true
				}
			default:
				return false
			}
		}
	}, "heartbeat reply never published")
}
