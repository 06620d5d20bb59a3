// Package bus owns the single message-bus connection per active session:
// dialing, the STOMP handshake, topic subscription multiplexing, heartbeat
// liveness and the fixed-delay reconnect loop.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/itzBaowy/ecms-livechat/pkg/config"
	"github.com/itzBaowy/ecms-livechat/pkg/session"
	"github.com/itzBaowy/ecms-livechat/pkg/stomp"
	"github.com/itzBaowy/ecms-livechat/pkg/transport"
)

// Bus destinations.
const (
	LobbyTopic      = "/topic/staff-lobby"
	SendDestination = "/app/chat.sendRoomMessage"
)

// RoomTopic returns the per-room destination.
func RoomTopic(roomID int64) string {
	return fmt.Sprintf("/topic/chat-room/%d", roomID)
}

var ErrNotConnected = errors.New("bus: not connected")

// Conn is the transport surface the manager drives. Satisfied by
// *transport.Connection; tests substitute a fake.
type Conn interface {
	Run()
	Send(message []byte)
	Close(err error)
	Done() <-chan struct{}
}

// Dialer opens the websocket leg. Swapped out in tests.
type Dialer func(ctx context.Context, cfg transport.Config, token string, onFrame transport.FrameHandler, onClose transport.CloseHandler, logger *slog.Logger) (Conn, error)

func defaultDialer(ctx context.Context, cfg transport.Config, token string, onFrame transport.FrameHandler, onClose transport.CloseHandler, logger *slog.Logger) (Conn, error) {
	return transport.Dial(ctx, cfg, token, onFrame, onClose, logger)
}

// Manager owns the connection lifecycle. OnReady fires exactly once per
// successful handshake (initial connect and every reconnect); the caller
// reloads rooms and resubscribes there, relying on the registry's
// idempotence to avoid duplicate delivery.
type Manager struct {
	config   config.TransportConfig
	registry *Registry
	dial     Dialer
	logger   *slog.Logger

	// OnReady is invoked after every successful handshake.
	OnReady func()

	mu    sync.Mutex
	conn  Conn
	sess  *session.Session
	stop  chan struct{}
	ready chan struct{}
}

func NewManager(cfg config.TransportConfig, registry *Registry, logger *slog.Logger) *Manager {
	return &Manager{
		config:   cfg,
		registry: registry,
		dial:     defaultDialer,
		logger:   logger.With(slog.String("component", "connection_manager")),
	}
}

// SetDialer overrides the transport dialer. Test hook.
func (m *Manager) SetDialer(d Dialer) { m.dial = d }

// Connect establishes the bus connection for the session and starts the
// reconnect supervisor. A failed connect is reported as an error, never a
// panic; calling Connect while connected is a no-op.
func (m *Manager) Connect(ctx context.Context, sess *session.Session) error {
	m.mu.Lock()
	if m.conn != nil {
		m.mu.Unlock()
		return nil
	}
	m.sess = sess
	m.stop = make(chan struct{})
	stop := m.stop
	m.mu.Unlock()

	conn, err := m.connectOnce(ctx)
	if err != nil {
		m.mu.Lock()
		m.stop = nil
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	go m.supervise(ctx, conn, stop)
	if m.OnReady != nil {
		m.OnReady()
	}
	return nil
}

// Disconnect tears the connection down. Idempotent. Subscriptions reference
// the transport and must not outlive it, so they are cancelled first.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn := m.conn
	stop := m.stop
	m.conn = nil
	m.stop = nil
	m.sess = nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if conn == nil {
		return
	}

	for _, sub := range m.registry.Clear() {
		frame := stomp.NewFrame(stomp.CommandUnsubscribe, nil).
			SetHeader(stomp.HeaderID, sub.ID)
		conn.Send(stomp.Marshal(frame))
	}
	conn.Send(stomp.Marshal(stomp.NewFrame(stomp.CommandDisconnect, nil)))
	conn.Close(nil)
	m.logger.Info("Disconnected from message bus")
}

// Subscribe registers a topic subscription. Duplicate topics are a silent
// no-op.
func (m *Manager) Subscribe(topic string, handler TopicHandler) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	sub, added := m.registry.Add(topic, handler)
	if !added {
		return nil
	}
	frame := stomp.NewFrame(stomp.CommandSubscribe, nil).
		SetHeader(stomp.HeaderID, sub.ID).
		SetHeader(stomp.HeaderDestination, topic)
	conn.Send(stomp.Marshal(frame))
	m.logger.Debug("Subscribed", "topic", topic)
	return nil
}

// Publish sends a payload to an application destination. Fire-and-forget:
// no delivery confirmation is modeled.
func (m *Manager) Publish(destination string, body []byte) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	frame := stomp.NewFrame(stomp.CommandSend, body).
		SetHeader(stomp.HeaderDestination, destination).
		SetHeader(stomp.HeaderContentType, "application/json")
	conn.Send(stomp.Marshal(frame))
	return nil
}

// Connected reports whether a live connection is held.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// connectOnce dials the websocket and completes the STOMP handshake within
// the configured timeout.
func (m *Manager) connectOnce(ctx context.Context) (Conn, error) {
	m.mu.Lock()
	sess := m.sess
	m.ready = make(chan struct{})
	ready := m.ready
	m.mu.Unlock()
	if sess == nil {
		return nil, ErrNotConnected
	}

	conn, err := m.dial(ctx, transport.Config{
		URL:               m.config.URL,
		HandshakeTimeout:  m.config.HandshakeTimeout,
		HeartbeatInterval: m.config.HeartbeatInterval,
		ReadTimeout:       m.config.ReadTimeout,
	}, sess.Token, m.handleFrame, nil, m.logger)
	if err != nil {
		return nil, fmt.Errorf("dialing message bus: %w", err)
	}
	conn.Run()

	heartbeat := m.config.HeartbeatInterval.Milliseconds()
	connect := stomp.NewFrame(stomp.CommandConnect, nil).
		SetHeader(stomp.HeaderAcceptVersion, "1.2").
		SetHeader(stomp.HeaderHeartBeat, fmt.Sprintf("%d,%d", heartbeat, heartbeat)).
		SetHeader(stomp.HeaderAuthorization, "Bearer "+sess.Token)
	conn.Send(stomp.Marshal(connect))

	select {
	case <-ready:
		m.logger.Info("Handshake complete")
		return conn, nil
	case <-conn.Done():
		return nil, errors.New("connection closed during handshake")
	case <-time.After(m.config.HandshakeTimeout):
		conn.Close(errors.New("handshake timeout"))
		return nil, errors.New("handshake timed out")
	case <-ctx.Done():
		conn.Close(ctx.Err())
		return nil, ctx.Err()
	}
}

// handleFrame runs on the transport read goroutine: the single
// event-processing path. A corrupt frame is dropped and logged, never fatal.
func (m *Manager) handleFrame(_ context.Context, raw []byte) {
	frame, err := stomp.Parse(raw)
	if err != nil {
		m.logger.Warn("Dropping malformed frame", slog.Any("error", err))
		return
	}

	switch frame.Command {
	case stomp.CommandConnected:
		m.mu.Lock()
		ready := m.ready
		m.ready = nil
		m.mu.Unlock()
		if ready != nil {
			close(ready)
		}
	case stomp.CommandMessage:
		sub, ok := m.registry.FindByID(frame.Header(stomp.HeaderSubscription))
		if !ok {
			sub, ok = m.registry.FindByTopic(frame.Header(stomp.HeaderDestination))
		}
		if !ok {
			m.logger.Warn("Message for unknown subscription dropped",
				slog.String("destination", frame.Header(stomp.HeaderDestination)))
			return
		}
		sub.Handler(frame.Body)
	case stomp.CommandError:
		m.logger.Error("Bus reported an error frame",
			slog.String("message", frame.Header(stomp.HeaderMessage)))
	case stomp.CommandReceipt:
		// Receipts are not requested; ignore.
	default:
		m.logger.Warn("Unexpected frame command", slog.String("command", string(frame.Command)))
	}
}

// supervise watches the live connection and drives the drop-and-resume
// policy: a fixed delay between attempts, no cap, no exponential growth.
func (m *Manager) supervise(ctx context.Context, conn Conn, stop chan struct{}) {
	for {
		select {
		case <-stop:
			m.release(conn)
			return
		case <-ctx.Done():
			m.release(conn)
			return
		case <-conn.Done():
		}

		// Transport failure. Drop the dead connection reference so Publish
		// and Subscribe report ErrNotConnected for the whole window; the old
		// subscriptions died with the connection and the ready callback
		// re-establishes them.
		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
		}
		m.mu.Unlock()
		m.registry.Clear()
		m.logger.Warn("Connection lost, entering reconnect loop")

		var next Conn
		for next == nil {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-time.After(m.config.ReconnectInterval):
			}

			c, err := m.connectOnce(ctx)
			if err != nil {
				m.logger.Warn("Reconnect attempt failed", slog.Any("error", err))
				continue
			}
			next = c
		}

		// Disconnect may have raced the reconnect attempt; a connection it
		// never saw must not be committed or it leaks forever.
		m.mu.Lock()
		stopped := false
		select {
		case <-stop:
			stopped = true
		default:
			m.conn = next
		}
		m.mu.Unlock()
		if stopped {
			next.Close(nil)
			return
		}
		conn = next
		m.logger.Info("Reconnected to message bus")
		if m.OnReady != nil {
			m.OnReady()
		}
	}
}

// release drops the manager's reference to conn and closes it. Disconnect
// normally does both, but it can miss a connection committed concurrently
// with the stop signal.
func (m *Manager) release(conn Conn) {
	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	m.mu.Unlock()
	conn.Close(nil)
}
