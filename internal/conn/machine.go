package conn

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pigeonim/pigeon/internal/bus"
	"github.com/pigeonim/pigeon/internal/protocol"
)

const (
	// heartbeatInterval sits just under the server's 10s idle cutoff.
	heartbeatInterval = 9900 * time.Millisecond
	reconnectDelay    = 2 * time.Second
	reconnectMax      = 5
)

// ErrNotConnected is returned by Send when no usable socket exists. The
// frame is dropped; queued sends are retried by the outbox, not here.
var ErrNotConnected = errors.New("conn: not connected")

// socket is the subset of *websocket.Conn the machine uses.
type socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// dialFunc opens a socket to the server. Swappable in tests.
type dialFunc func(url string) (socket, error)

func wsDial(url string) (socket, error) {
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Machine owns one server connection and its lifecycle: dial, authenticate,
// heartbeat, bounded reconnect. Inbound frames are decoded and published on
// the bus; it never interprets them beyond the auth handshake.
type Machine struct {
	url    string
	bus    *bus.Bus
	codec  *protocol.Codec
	logger *zap.Logger

	mu            sync.Mutex
	state         State
	sock          socket
	token         string
	deviceID      string
	retries       int
	lockReconnect bool
	reconnectTmr  *time.Timer
	stopHeartbeat chan struct{}
	closed        bool

	// Overridable in tests.
	dial       dialFunc
	hbInterval time.Duration
	retryDelay time.Duration
	retryMax   int
}

// NewMachine creates a machine in the Disconnected state. Nothing happens
// until Connect.
func NewMachine(url string, b *bus.Bus, codec *protocol.Codec, logger *zap.Logger) *Machine {
	return &Machine{
		url:        url,
		bus:        b,
		codec:      codec,
		logger:     logger,
		state:      Disconnected,
		dial:       wsDial,
		hbInterval: heartbeatInterval,
		retryDelay: reconnectDelay,
		retryMax:   reconnectMax,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// transition moves to a new state, publishing the change. Caller holds mu.
func (m *Machine) transition(to State) error {
	if !slices.Contains(validTransitions[m.state], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.state, to)
	}
	from := m.state
	m.state = to
	m.logger.Debug("connection state changed",
		zap.String("from", string(from)), zap.String("to", string(to)))
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:    bus.KindConnState,
			Payload: StateChange{From: from, To: to},
		})
	}
	return nil
}

// StateChange is the payload for conn.state_changed events.
type StateChange struct {
	From State
	To   State
}

// Connect stores the credentials and starts the dial loop. A fresh Connect
// resets the retry budget, including from the Failed state.
func (m *Machine) Connect(token, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Disconnected && m.state != Failed {
		return fmt.Errorf("conn: connect from %s", m.state)
	}
	m.token = token
	m.deviceID = deviceID
	m.retries = 0
	m.closed = false
	if err := m.transition(Connecting); err != nil {
		return err
	}
	go m.dialAndServe()
	return nil
}

// dialAndServe opens the socket, sends the auth frame and hands the
// connection to the read and heartbeat loops.
func (m *Machine) dialAndServe() {
	m.mu.Lock()
	url := m.url
	token, deviceID := m.token, m.deviceID
	m.mu.Unlock()

	sock, err := m.dial(url)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if sock != nil {
			_ = sock.Close()
		}
		return
	}
	if err != nil {
		m.logger.Warn("dial failed", zap.String("url", url), zap.Error(err))
		// The socket never opened. The user sees a connection error while
		// the retry budget decides whether we keep trying.
		m.publishFatalLocked("Connection error, please check your network.")
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		return
	}

	m.sock = sock
	if err := m.transition(Authenticating); err != nil {
		m.mu.Unlock()
		_ = sock.Close()
		return
	}
	stop := make(chan struct{})
	m.stopHeartbeat = stop
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(bus.Event{Kind: bus.KindConnOpen})
	}
	if err := sock.WriteMessage(websocket.BinaryMessage, m.codec.EncodeAuth(token, deviceID)); err != nil {
		m.logger.Warn("auth send failed", zap.Error(err))
		m.onSocketDown(sock)
		return
	}

	// The auth frame is on the wire; the server's verdict arrives
	// asynchronously as a regular inbound frame. A successful send is what
	// opens the connection and refunds the retry budget.
	m.mu.Lock()
	if m.sock == sock && m.state == Authenticating {
		m.retries = 0
		_ = m.transition(Open)
	}
	m.mu.Unlock()

	go m.heartbeatLoop(sock, stop)
	m.readLoop(sock)
}

// readLoop pumps inbound frames until the socket dies. Decode failures are
// logged inside the codec and dropped; they never close the connection.
func (m *Machine) readLoop(sock socket) {
	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			m.onSocketDown(sock)
			return
		}
		decoded, ok := m.codec.Decode(data)
		if !ok {
			continue
		}
		if m.bus != nil {
			m.bus.Publish(bus.Event{Kind: bus.KindConnMessage, Payload: decoded})
		}
	}
}

// onSocketDown handles a dead socket: clean up, then either stay down
// (explicit Close) or enter the bounded reconnect path.
func (m *Machine) onSocketDown(sock socket) {
	_ = sock.Close()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sock != sock {
		// A newer connection already took over.
		return
	}
	m.sock = nil
	if m.stopHeartbeat != nil {
		close(m.stopHeartbeat)
		m.stopHeartbeat = nil
	}
	if m.closed {
		return
	}

	if m.bus != nil {
		m.bus.Publish(bus.Event{Kind: bus.KindConnClose})
	}
	if m.state == Authenticating {
		// Died before ever opening: surface it, the retry budget still rules.
		m.publishFatalLocked("Connection error, please check your network.")
	}
	m.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the single reconnect timer. The lock flag
// guarantees at most one pending timer no matter how many failure signals
// race in. Caller holds mu.
func (m *Machine) scheduleReconnectLocked() {
	if m.lockReconnect {
		return
	}
	m.retries++
	if m.retries > m.retryMax {
		_ = m.transition(Failed)
		m.logger.Error("reconnect budget exhausted", zap.Int("attempts", m.retryMax))
		m.publishFatalLocked("Connection lost. Please sign in again.")
		return
	}
	m.lockReconnect = true
	_ = m.transition(Reconnecting)
	m.logger.Info("reconnect scheduled",
		zap.Int("attempt", m.retries), zap.Duration("delay", m.retryDelay))

	m.reconnectTmr = time.AfterFunc(m.retryDelay, func() {
		m.mu.Lock()
		m.lockReconnect = false
		m.reconnectTmr = nil
		if m.closed || m.state != Reconnecting {
			m.mu.Unlock()
			return
		}
		if err := m.transition(Connecting); err != nil {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
		m.dialAndServe()
	})
}

func (m *Machine) publishFatalLocked(msg string) {
	if m.bus != nil {
		m.bus.Publish(bus.Event{Kind: bus.KindConnFatal, Payload: bus.Fatal{Msg: msg}})
	}
}

// heartbeatLoop keeps the connection alive. Ticks while the socket is not
// open yet are skipped rather than queued.
func (m *Machine) heartbeatLoop(sock socket, stop <-chan struct{}) {
	ticker := time.NewTicker(m.hbInterval)
	defer ticker.Stop()
	frame := m.codec.EncodeHeartbeat()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			ready := m.sock == sock && m.state == Open
			m.mu.Unlock()
			if !ready {
				continue
			}
			if err := sock.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				m.logger.Warn("heartbeat send failed", zap.Error(err))
				return
			}
		}
	}
}

// Send writes an encoded frame. Frames are dropped with ErrNotConnected
// unless a live socket exists.
func (m *Machine) Send(frame []byte) error {
	m.mu.Lock()
	sock := m.sock
	ok := sock != nil && (m.state == Open || m.state == Authenticating)
	m.mu.Unlock()
	if !ok {
		return ErrNotConnected
	}
	return sock.WriteMessage(websocket.BinaryMessage, frame)
}

// Ready reports whether the connection is authenticated and usable.
func (m *Machine) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Open
}

// Close tears the connection down for good: credentials are cleared, any
// pending reconnect is cancelled and no new one is armed.
func (m *Machine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.token = ""
	m.deviceID = ""
	m.lockReconnect = false
	if m.reconnectTmr != nil {
		m.reconnectTmr.Stop()
		m.reconnectTmr = nil
	}
	if m.stopHeartbeat != nil {
		close(m.stopHeartbeat)
		m.stopHeartbeat = nil
	}
	var err error
	if m.sock != nil {
		err = m.sock.Close()
		m.sock = nil
	}
	if m.state != Disconnected {
		_ = m.transition(Disconnected)
	}
	return err
}
