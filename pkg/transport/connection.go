package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/itzBaowy/ecms-livechat/pkg/stomp"
)

// callback executed when a raw frame is received.
type FrameHandler func(ctx context.Context, raw []byte)

type CloseHandler func(err error)

type Config struct {
	URL               string
	HandshakeTimeout  time.Duration
	HeartbeatInterval time.Duration
	ReadTimeout       time.Duration
}

// Connection represents a single, thread-safe WebSocket connection to the
// message bus. The bearer credential is presented once, on the opening
// handshake, not per frame.
type Connection struct {
	conn   *websocket.Conn
	config Config
	send   chan []byte

	onFrame FrameHandler
	onClose CloseHandler

	done      chan struct{}
	ctx       context.Context
	closeOnce sync.Once
	cancel    context.CancelFunc

	logger *slog.Logger
}

// Dial opens the websocket leg of the connection. The returned Connection is
// idle until Run is called; the STOMP-level handshake is driven by the caller.
func Dial(parentCtx context.Context, config Config, token string, onFrame FrameHandler, onClose CloseHandler, logger *slog.Logger) (*Connection, error) {
	dialCtx, cancelDial := context.WithTimeout(parentCtx, config.HandshakeTimeout)
	defer cancelDial()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	wsConn, _, err := websocket.Dial(dialCtx, config.URL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, err
	}

	connCtx, cancel := context.WithCancel(parentCtx)
	return &Connection{
		conn:    wsConn,
		config:  config,
		logger:  logger.With(slog.String("component", "transport")),
		onFrame: onFrame,
		onClose: onClose,
		send:    make(chan []byte, 256), // Buffered channel
		done:    make(chan struct{}),
		ctx:     connCtx,
		cancel:  cancel,
	}, nil
}

func (c *Connection) Run() {
	go c.readPump()
	go c.writePump()

	c.logger.Info("connection established")
}

// readPump pumps frames from the WebSocket connection to the frame handler.
// Server heartbeats count as reads, so ReadTimeout doubles as the liveness
// window: a peer that stops beating trips the deadline and the close path.
func (c *Connection) readPump() {
	var readErr error
	defer func() {
		c.Close(readErr)
	}()

	for {
		readCtx, cancelRead := context.WithTimeout(c.ctx, c.config.ReadTimeout)
		typ, r, err := c.conn.Reader(readCtx)
		if err != nil {
			readErr = err
			cancelRead()
			return
		}
		// Ensure we are only handling text or binary messages.
		if typ != websocket.MessageText && typ != websocket.MessageBinary {
			cancelRead()
			continue
		}
		message, err := io.ReadAll(r)
		cancelRead()
		if err != nil {
			readErr = err
			return
		}
		if stomp.IsHeartbeat(message) {
			continue
		}
		// Pass a connection-scoped context to the handler.
		c.onFrame(c.ctx, message)
	}
}

// writePump pumps frames from the send channel to the WebSocket connection
// and emits client heartbeats on the configured cadence.
func (c *Connection) writePump() {
	var writeErr error
	ticker := time.NewTicker(c.config.HeartbeatInterval)

	defer func() {
		ticker.Stop()
		c.Close(writeErr)
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.conn.Write(c.ctx, websocket.MessageText, message); err != nil {
				writeErr = err
				return
			}
		case <-ticker.C:
			if err := c.conn.Write(c.ctx, websocket.MessageText, stomp.Heartbeat); err != nil {
				writeErr = err
				return
			}
		case <-c.ctx.Done():
			c.conn.Close(websocket.StatusNormalClosure, "request cancelled")
			return
		}
	}
}

// Send queues a frame for delivery. It is safe for concurrent use. Delivery
// is fire-and-forget: a frame queued right before closure may be dropped.
func (c *Connection) Send(message []byte) {
	select {
	case c.send <- message:
	case <-c.ctx.Done():
		c.logger.Warn("Attempted to send on a closed connection")
	}
}

// gracefully shuts down the connection and its resources.
func (c *Connection) Close(err error) {
	c.closeOnce.Do(func() {
		status := websocket.CloseStatus(err)
		c.logger.Info("Transport connection closing", slog.Any("reason", err), slog.String("status", status.String()))

		c.cancel() // Signal goroutines to stop.
		// The send channel is never closed: Send may race with closure and a
		// send on a closed channel panics. writePump exits via ctx instead.
		c.conn.Close(websocket.StatusNormalClosure, "")
		if c.onClose != nil {
			c.onClose(err)
		}
		close(c.done)
	})
}

// returns a channel that is closed when the connection is fully terminated.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) SetOnFrameHandler(handler FrameHandler) {
	c.onFrame = handler
}
func (c *Connection) SetOnCloseHandler(handler CloseHandler) {
	c.onClose = handler
}
