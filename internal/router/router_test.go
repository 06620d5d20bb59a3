package router_test

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/itzBaowy/ecms-livechat/internal/router"
	"github.com/itzBaowy/ecms-livechat/pkg/state"
	"github.com/itzBaowy/ecms-livechat/pkg/state/statemanager"
)

const localUserID = int64(5)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestRouter(t *testing.T) (*router.MessageRouter, *statemanager.InMemoryManager) {
	t.Helper()
	m := statemanager.NewInMemoryManager(newTestLogger())
	return router.NewMessageRouter(newTestLogger(), m), m
}

func frame(t *testing.T, msg state.ChatMessage) []byte {
	t.Helper()
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal test frame: %v", err)
	}
	return raw
}

func plain(roomID, senderID int64, content string) state.ChatMessage {
	return state.ChatMessage{
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// --- Dispatch Rule Tests ---

func TestOwnEchoIsSuppressed(t *testing.T) {
	r, m := newTestRouter(t)
	m.PutRoom(state.Room{ID: 7, Status: state.StatusActive})

	rctx := router.Context{LocalUserID: localUserID, ActiveRoomID: 7}
	r.Route(frame(t, plain(7, localUserID, "my own message")), rctx)

	if m.UnreadCount() != 0 {
		t.Errorf("own echo changed unread count: %d", m.UnreadCount())
	}
	if len(m.Transcript(7)) != 0 {
		t.Error("own echo was appended despite optimistic local copy")
	}
}

func TestActiveRoomMessageAppends(t *testing.T) {
	r, m := newTestRouter(t)
	m.PutRoom(state.Room{ID: 7, Status: state.StatusActive})

	rctx := router.Context{LocalUserID: localUserID, ActiveRoomID: 7}
	r.Route(frame(t, plain(7, 99, "hello")), rctx)

	transcript := m.Transcript(7)
	if len(transcript) != 1 || transcript[0].Content != "hello" {
		t.Fatalf("expected message in active transcript, got %+v", transcript)
	}
	if m.UnreadCount() != 0 {
		t.Errorf("active-room message changed unread count: %d", m.UnreadCount())
	}
}

func TestBackgroundRoomMessageIncrementsUnread(t *testing.T) {
	r, m := newTestRouter(t)
	m.PutRoom(state.Room{ID: 7, Status: state.StatusActive})

	// Two frames for room 7 while room 1 is active, from a different sender.
	rctx := router.Context{LocalUserID: localUserID, ActiveRoomID: 1}
	r.Route(frame(t, plain(7, 99, "first")), rctx)
	r.Route(frame(t, plain(7, 99, "second")), rctx)

	if m.UnreadCount() != 2 {
		t.Errorf("expected unread 2, got %d", m.UnreadCount())
	}
	room, _ := m.FindRoom(7)
	if !room.HasNewMessage {
		t.Error("expected hasNewMessage badge on room 7")
	}
	if len(m.Transcript(7)) != 0 {
		t.Error("background messages must not touch the transcript")
	}
}

func TestStaffJoinedActivatesRoom(t *testing.T) {
	r, m := newTestRouter(t)
	m.PutRoom(state.Room{ID: 42, Status: state.StatusPending})

	rctx := router.Context{LocalUserID: localUserID, ActiveRoomID: 42}
	r.Route(frame(t, state.ChatMessage{
		RoomID:     42,
		SenderID:   77,
		SenderName: "staff X",
		Variant:    state.VariantStaffJoined,
	}), rctx)

	room, _ := m.FindRoom(42)
	if room.Status != state.StatusActive {
		t.Fatalf("expected room ACTIVE, got %s", room.Status)
	}
	transcript := m.Transcript(42)
	if len(transcript) != 1 || !transcript[0].System {
		t.Fatalf("expected a system notice, got %+v", transcript)
	}
	if transcript[0].Content != "staff X joined the chat" {
		t.Errorf("unexpected notice text %q", transcript[0].Content)
	}
	if m.UnreadCount() != 0 {
		t.Errorf("lifecycle signal changed unread count: %d", m.UnreadCount())
	}
}

func TestStaffJoinedInBackgroundRoomSkipsNotice(t *testing.T) {
	r, m := newTestRouter(t)
	m.PutRoom(state.Room{ID: 42, Status: state.StatusPending})

	rctx := router.Context{LocalUserID: localUserID, ActiveRoomID: 1}
	r.Route(frame(t, state.ChatMessage{RoomID: 42, Variant: state.VariantStaffJoined}), rctx)

	room, _ := m.FindRoom(42)
	if room.Status != state.StatusActive {
		t.Fatalf("expected room ACTIVE, got %s", room.Status)
	}
	if len(m.Transcript(42)) != 0 {
		t.Error("background lifecycle signal produced a notice")
	}
}

func TestChatEndedClosesRoomOnce(t *testing.T) {
	r, m := newTestRouter(t)
	m.PutRoom(state.Room{ID: 9, Status: state.StatusActive})

	rctx := router.Context{LocalUserID: localUserID, ActiveRoomID: 9}
	ended := frame(t, state.ChatMessage{RoomID: 9, Variant: state.VariantChatEnded})

	r.Route(ended, rctx)
	room, found := m.FindRoom(9)
	if !found {
		t.Fatal("closed room must stay in the cache")
	}
	if room.Status != state.StatusClosed {
		t.Fatalf("expected room CLOSED, got %s", room.Status)
	}
	if len(m.Transcript(9)) != 1 {
		t.Fatalf("expected one ended notice, got %d entries", len(m.Transcript(9)))
	}

	// A CHAT_ENDED frame for an already-closed room changes nothing.
	r.Route(ended, rctx)
	if len(m.Transcript(9)) != 1 {
		t.Error("duplicate CHAT_ENDED produced another notice")
	}
}

func TestDelayedMessageForClosedRoomIsDropped(t *testing.T) {
	r, m := newTestRouter(t)
	m.PutRoom(state.Room{ID: 9, Status: state.StatusActive})
	m.SetRoomStatus(9, state.StatusClosed)

	rctx := router.Context{LocalUserID: localUserID, ActiveRoomID: 9}
	r.Route(frame(t, plain(9, 99, "delayed")), rctx)

	if len(m.Transcript(9)) != 0 {
		t.Error("delayed frame appended content to a CLOSED room")
	}
}

func TestMalformedPayloadIsDropped(t *testing.T) {
	r, m := newTestRouter(t)
	m.PutRoom(state.Room{ID: 7, Status: state.StatusActive})

	rctx := router.Context{LocalUserID: localUserID, ActiveRoomID: 7}
	r.Route([]byte(`{"roomId": "not a number"`), rctx)
	r.Route([]byte(`garbage`), rctx)

	if m.UnreadCount() != 0 || len(m.Transcript(7)) != 0 {
		t.Error("malformed payloads mutated state")
	}
}

// --- Lobby Rule Tests ---

func TestLobbyArrivalDedupesAndCounts(t *testing.T) {
	r, m := newTestRouter(t)

	arrival := []byte(`{"id": 15, "name": "battery check", "status": "PENDING"}`)
	r.RouteLobby(arrival)
	r.RouteLobby(arrival)

	room, found := m.FindRoom(15)
	if !found || room.Status != state.StatusPending {
		t.Fatalf("expected pending room 15, got %+v (found=%v)", room, found)
	}
	if len(m.Rooms()) != 1 {
		t.Errorf("duplicate arrival added a second room: %d", len(m.Rooms()))
	}
	if m.UnreadCount() != 1 {
		t.Errorf("expected unread 1 after deduped arrivals, got %d", m.UnreadCount())
	}
}

func TestLobbyClaimRemovesPendingRoom(t *testing.T) {
	r, m := newTestRouter(t)
	r.RouteLobby([]byte(`{"id": 15, "status": "PENDING"}`))

	r.RouteLobby([]byte(`{"type": "CLAIMED", "roomId": 15}`))
	if _, found := m.FindRoom(15); found {
		t.Error("claimed pending room should leave the cache")
	}
}

func TestLobbyClaimKeepsOwnActiveRoom(t *testing.T) {
	r, m := newTestRouter(t)
	// A room we claimed ourselves is ACTIVE, not PENDING.
	m.PutRoom(state.Room{ID: 20, Status: state.StatusActive})

	r.RouteLobby([]byte(`{"type": "CLAIMED", "roomId": 20}`))
	if _, found := m.FindRoom(20); !found {
		t.Error("claim notice removed a room we own")
	}
}

func TestLobbyGarbageIsDropped(t *testing.T) {
	r, m := newTestRouter(t)

	r.RouteLobby([]byte(`not json`))
	r.RouteLobby([]byte(`{"unrelated": true}`))

	if len(m.Rooms()) != 0 || m.UnreadCount() != 0 {
		t.Error("garbage lobby payloads mutated state")
	}
}
