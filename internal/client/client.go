// Package client unifies the role-specific chat surfaces behind one live
// client: connection lifecycle, room loading, subscription fan-out and the
// action API the UI layers call. Customers watch their own rooms; staff
// additionally watch the shared lobby.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/itzBaowy/ecms-livechat/internal/bus"
	"github.com/itzBaowy/ecms-livechat/internal/directory"
	"github.com/itzBaowy/ecms-livechat/internal/router"
	"github.com/itzBaowy/ecms-livechat/pkg/config"
	"github.com/itzBaowy/ecms-livechat/pkg/session"
	"github.com/itzBaowy/ecms-livechat/pkg/state"
	"github.com/itzBaowy/ecms-livechat/pkg/state/statemanager"
)

var ErrRoomNotFound = errors.New("room not found")

// inbound is one frame awaiting routing, tagged with the topic family it
// arrived on.
type inbound struct {
	lobby bool
	body  []byte
}

type Client struct {
	logger *slog.Logger
	sess   *session.Session

	stateManager state.Manager
	registry     *bus.Registry
	manager      *bus.Manager
	directory    *directory.Client
	router       *router.MessageRouter

	// OnUpdate, when set, is invoked after every routed frame so a UI
	// surface can re-render from a fresh snapshot.
	OnUpdate func()

	frames  chan inbound
	ctx     context.Context
	cancel  context.CancelFunc
	startMu sync.Mutex
	started bool
}

func New(logger *slog.Logger, cfg *config.Config, sess *session.Session) *Client {
	stateManager := statemanager.NewInMemoryManager(logger)
	registry := bus.NewRegistry(logger)
	manager := bus.NewManager(cfg.Transport, registry, logger)

	c := &Client{
		logger:       logger.With(slog.String("component", "live_client")),
		sess:         sess,
		stateManager: stateManager,
		registry:     registry,
		manager:      manager,
		directory:    directory.NewClient(cfg.API, sess.Token, logger),
		router:       router.NewMessageRouter(logger, stateManager),
		frames:       make(chan inbound, 256),
	}
	return c
}

// Start connects to the message bus, loads the caller's rooms and subscribes
// to each of them (plus the lobby for staff). The ready hook re-runs the
// same load on every reconnect; the registry's idempotence keeps delivery
// single.
func (c *Client) Start(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	if c.started {
		return nil
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	go c.consume()

	c.manager.OnReady = func() {
		if err := c.loadAndSubscribe(c.ctx); err != nil {
			c.logger.Error("Room load after handshake failed", slog.Any("error", err))
		}
	}
	if err := c.manager.Connect(c.ctx, c.sess); err != nil {
		c.cancel()
		return err
	}
	c.started = true
	return nil
}

// Stop disconnects and releases the event loop. Idempotent.
func (c *Client) Stop() {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	if !c.started {
		return
	}
	c.manager.Disconnect()
	c.cancel()
	c.started = false
}

func (c *Client) loadAndSubscribe(ctx context.Context) error {
	rooms, err := c.directory.MyRooms(ctx)
	if err != nil {
		return fmt.Errorf("loading rooms: %w", err)
	}
	if c.sess.IsStaff() {
		pending, err := c.directory.PendingRooms(ctx)
		if err != nil {
			return fmt.Errorf("loading pending rooms: %w", err)
		}
		rooms = append(rooms, pending...)
	}

	for _, room := range rooms {
		c.stateManager.PutRoom(room)
		if err := c.manager.Subscribe(bus.RoomTopic(room.ID), c.onRoomFrame); err != nil {
			return err
		}
	}
	if c.sess.IsStaff() {
		if err := c.manager.Subscribe(bus.LobbyTopic, c.onLobbyFrame); err != nil {
			return err
		}
	}
	c.logger.Info("Rooms loaded and subscribed", slog.Int("count", len(rooms)))
	return nil
}

// onRoomFrame and onLobbyFrame run on the transport read goroutine; frames
// are funneled into a single consumer so router invocations stay serialized
// in arrival order.
func (c *Client) onRoomFrame(body []byte) {
	select {
	case c.frames <- inbound{body: body}:
	case <-c.ctx.Done():
	}
}

func (c *Client) onLobbyFrame(body []byte) {
	select {
	case c.frames <- inbound{lobby: true, body: body}:
	case <-c.ctx.Done():
	}
}

func (c *Client) consume() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case f := <-c.frames:
			if f.lobby {
				c.router.RouteLobby(f.body)
			} else {
				rctx := router.Context{
					LocalUserID:  c.sess.UserID,
					ActiveRoomID: c.stateManager.ActiveRoom(),
				}
				c.router.Route(f.body, rctx)
			}
			if c.OnUpdate != nil {
				c.OnUpdate()
			}
		}
	}
}

// --- Action API ---

// CreateRoom opens a new support request and subscribes to its topic.
func (c *Client) CreateRoom(ctx context.Context) (state.Room, error) {
	room, err := c.directory.CreateRoom(ctx)
	if err != nil {
		return state.Room{}, err
	}
	c.stateManager.PutRoom(room)
	if err := c.manager.Subscribe(bus.RoomTopic(room.ID), c.onRoomFrame); err != nil {
		return room, err
	}
	return room, nil
}

// JoinRoom claims a pending request (staff) and brings the room ACTIVE
// locally; the broadcast STAFF_JOINED frame is then a no-op here.
func (c *Client) JoinRoom(ctx context.Context, roomID int64) (state.Room, error) {
	room, err := c.directory.JoinRoom(ctx, roomID)
	if err != nil {
		return state.Room{}, err
	}
	c.stateManager.PutRoom(room)
	c.stateManager.SetRoomStatus(roomID, state.StatusActive)
	if err := c.manager.Subscribe(bus.RoomTopic(roomID), c.onRoomFrame); err != nil {
		return room, err
	}
	return room, nil
}

// SendMessage appends the message locally and publishes it fire-and-forget.
// The correlation id ties the optimistic copy to the wire copy; no delivery
// confirmation is modeled, so the local copy stays regardless. The inbound
// echo is suppressed by the router's sender check.
func (c *Client) SendMessage(roomID int64, content string) error {
	room, ok := c.stateManager.FindRoom(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	if room.Status == state.StatusClosed {
		return state.ErrRoomClosed
	}

	msg := state.ChatMessage{
		RoomID:        roomID,
		SenderID:      c.sess.UserID,
		Content:       content,
		Timestamp:     time.Now(),
		CorrelationID: uuid.NewString(),
	}
	if err := c.stateManager.AppendMessage(msg); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.manager.Publish(bus.SendDestination, body)
}

// CloseRoom ends the conversation. The local transition to CLOSED happens
// immediately; the broadcast CHAT_ENDED frame finds a terminal room and
// changes nothing.
func (c *Client) CloseRoom(ctx context.Context, roomID int64) error {
	if err := c.directory.CloseRoom(ctx, roomID); err != nil {
		return err
	}
	c.stateManager.SetRoomStatus(roomID, state.StatusClosed)
	return nil
}

// OpenRoom makes a room the active conversation: the unread counter resets,
// the room badge clears and the transcript is seeded from server history.
func (c *Client) OpenRoom(ctx context.Context, roomID int64) error {
	if _, ok := c.stateManager.FindRoom(roomID); !ok {
		return ErrRoomNotFound
	}
	c.stateManager.SetActive(roomID)
	c.stateManager.ClearNewMessage(roomID)
	c.stateManager.ClearUnread()

	history, err := c.directory.History(ctx, roomID)
	if err != nil {
		return err
	}
	c.stateManager.SeedTranscript(roomID, history)
	return nil
}

// SetActive moves the active-room pointer without touching transcripts.
// Zero clears the pointer (no active conversation).
func (c *Client) SetActive(roomID int64) {
	c.stateManager.SetActive(roomID)
	if roomID != 0 {
		c.stateManager.ClearNewMessage(roomID)
	}
}

func (c *Client) ClearUnread() {
	c.stateManager.ClearUnread()
}

func (c *Client) Snapshot() state.Snapshot {
	return c.stateManager.Snapshot()
}

func (c *Client) Transcript(roomID int64) []state.ChatMessage {
	return c.stateManager.Transcript(roomID)
}

func (c *Client) Connected() bool {
	return c.manager.Connected()
}
