package statemanager

import (
	"log/slog"
	"sync"

	"github.com/itzBaowy/ecms-livechat/pkg/state"
)

// InMemoryManager holds the session-scoped notification state: the room
// cache, per-room transcripts, the unread counter and the active-room
// pointer. Router invocations are serialized by the client's single consumer
// goroutine, but UI actions arrive on caller goroutines, so access is
// guarded.
type InMemoryManager struct {
	rooms       map[int64]*state.Room
	order       []int64
	transcripts map[int64][]state.ChatMessage
	unread      int
	active      int64

	roomMu   sync.RWMutex
	unreadMu sync.RWMutex

	logger *slog.Logger
}

func NewInMemoryManager(logger *slog.Logger) *InMemoryManager {
	return &InMemoryManager{
		rooms:       make(map[int64]*state.Room),
		transcripts: make(map[int64][]state.ChatMessage),
		logger:      logger.With(slog.String("component", "state_manager_inmemory")),
	}
}

// compile-time check to ensure InMemoryManager implements Manager.
var _ state.Manager = (*InMemoryManager)(nil)

// --- Room cache ---

func (m *InMemoryManager) PutRoom(room state.Room) bool {
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	if _, exists := m.rooms[room.ID]; exists {
		return false
	}
	r := room
	m.rooms[room.ID] = &r
	m.order = append(m.order, room.ID)
	m.logger.Debug("Room cached", "roomID", room.ID, "status", string(room.Status))
	return true
}

func (m *InMemoryManager) RemoveRoom(roomID int64) {
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	if _, ok := m.rooms[roomID]; !ok {
		return
	}
	delete(m.rooms, roomID)
	delete(m.transcripts, roomID)
	for i, id := range m.order {
		if id == roomID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.logger.Debug("Room removed from cache", "roomID", roomID)
}

func (m *InMemoryManager) FindRoom(roomID int64) (state.Room, bool) {
	m.roomMu.RLock()
	defer m.roomMu.RUnlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return state.Room{}, false
	}
	return *room, true
}

func (m *InMemoryManager) Rooms() []state.Room {
	m.roomMu.RLock()
	defer m.roomMu.RUnlock()

	rooms := make([]state.Room, 0, len(m.order))
	for _, id := range m.order {
		rooms = append(rooms, *m.rooms[id])
	}
	return rooms
}

func (m *InMemoryManager) SetRoomStatus(roomID int64, status state.RoomStatus) bool {
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		m.logger.Warn("Status transition for unknown room ignored", "roomID", roomID)
		return false
	}
	if status == room.Status {
		return false
	}
	// Lifecycle is monotonic: PENDING -> ACTIVE -> CLOSED, never backwards.
	if !room.Status.Before(status) {
		m.logger.Warn("Non-monotonic status transition ignored",
			slog.Int64("roomID", roomID),
			slog.String("from", string(room.Status)),
			slog.String("to", string(status)),
		)
		return false
	}
	room.Status = status
	m.logger.Debug("Room status changed", "roomID", roomID, "status", string(status))
	return true
}

func (m *InMemoryManager) MarkNewMessage(roomID int64) {
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	if room, ok := m.rooms[roomID]; ok {
		room.HasNewMessage = true
	}
}

func (m *InMemoryManager) ClearNewMessage(roomID int64) {
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	if room, ok := m.rooms[roomID]; ok {
		room.HasNewMessage = false
	}
}

// --- Transcript ---

func (m *InMemoryManager) AppendMessage(msg state.ChatMessage) error {
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	// The UI guards sends to closed rooms, but a delayed inbound frame can
	// still reference one; the invariant has to hold here too.
	if room, ok := m.rooms[msg.RoomID]; ok && room.Status == state.StatusClosed {
		return state.ErrRoomClosed
	}
	m.transcripts[msg.RoomID] = append(m.transcripts[msg.RoomID], msg)
	return nil
}

func (m *InMemoryManager) AppendNotice(roomID int64, text string) {
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	m.transcripts[roomID] = append(m.transcripts[roomID], state.ChatMessage{
		RoomID:  roomID,
		Content: text,
		System:  true,
	})
}

func (m *InMemoryManager) SeedTranscript(roomID int64, msgs []state.ChatMessage) {
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	transcript := make([]state.ChatMessage, len(msgs))
	copy(transcript, msgs)
	m.transcripts[roomID] = transcript
}

func (m *InMemoryManager) Transcript(roomID int64) []state.ChatMessage {
	m.roomMu.RLock()
	defer m.roomMu.RUnlock()

	entries := m.transcripts[roomID]
	out := make([]state.ChatMessage, len(entries))
	copy(out, entries)
	return out
}

// --- Unread counter & active-room pointer ---

func (m *InMemoryManager) SetActive(roomID int64) {
	m.unreadMu.Lock()
	m.active = roomID
	m.unreadMu.Unlock()
}

func (m *InMemoryManager) ActiveRoom() int64 {
	m.unreadMu.RLock()
	defer m.unreadMu.RUnlock()
	return m.active
}

func (m *InMemoryManager) IncrementUnread() {
	m.unreadMu.Lock()
	m.unread++
	m.unreadMu.Unlock()
}

func (m *InMemoryManager) ClearUnread() {
	m.unreadMu.Lock()
	m.unread = 0
	m.unreadMu.Unlock()
}

func (m *InMemoryManager) UnreadCount() int {
	m.unreadMu.RLock()
	defer m.unreadMu.RUnlock()
	return m.unread
}

func (m *InMemoryManager) Snapshot() state.Snapshot {
	return state.Snapshot{
		Rooms:        m.Rooms(),
		UnreadCount:  m.UnreadCount(),
		ActiveRoomID: m.ActiveRoom(),
	}
}
