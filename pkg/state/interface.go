package state

import "errors"

// ErrRoomClosed rejects content appends to a room that already reached its
// terminal status. Lifecycle notices are exempt.
var ErrRoomClosed = errors.New("room is closed")

type Manager interface {
	// --- Room cache ---
	// PutRoom inserts a room, deduplicating by id. It reports whether the
	// room was newly added; an existing room is left untouched.
	PutRoom(room Room) bool
	// RemoveRoom drops a room from the cache (a pending request claimed by
	// another staff member). Unknown ids are a no-op.
	RemoveRoom(roomID int64)
	FindRoom(roomID int64) (Room, bool)
	Rooms() []Room
	// SetRoomStatus applies a monotonic lifecycle transition and reports
	// whether the status actually changed. Backward transitions and
	// transitions on CLOSED rooms are ignored.
	SetRoomStatus(roomID int64, status RoomStatus) bool
	MarkNewMessage(roomID int64)
	ClearNewMessage(roomID int64)

	// --- Transcript ---
	// AppendMessage appends chat content to a room transcript. Returns
	// ErrRoomClosed when the room already reached its terminal status.
	AppendMessage(msg ChatMessage) error
	// AppendNotice appends a synthetic system notice. Notices are lifecycle
	// signals, not content, so the closed-room guard does not apply.
	AppendNotice(roomID int64, text string)
	// SeedTranscript replaces a room transcript with server history. History
	// loads are reads of persisted state, not content mutations, so the
	// closed-room guard does not apply here either.
	SeedTranscript(roomID int64, msgs []ChatMessage)
	Transcript(roomID int64) []ChatMessage

	// --- Unread counter & active-room pointer ---
	SetActive(roomID int64)
	ActiveRoom() int64
	IncrementUnread()
	ClearUnread()
	UnreadCount() int

	Snapshot() Snapshot
}
