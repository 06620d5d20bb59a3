package state

import (
	"encoding/json"
	"time"
)

type RoomStatus string

const (
	StatusPending RoomStatus = "PENDING"
	StatusActive  RoomStatus = "ACTIVE"
	StatusClosed  RoomStatus = "CLOSED"
)

// rank orders the room lifecycle. Transitions only ever move forward;
// CLOSED is terminal.
func (s RoomStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusActive:
		return 1
	case StatusClosed:
		return 2
	}
	return -1
}

// Before reports whether s precedes other in the lifecycle ordering.
func (s RoomStatus) Before(other RoomStatus) bool {
	return s.rank() < other.rank()
}

// canonical representation of a chat room as cached on this client.
type Room struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Status        RoomStatus `json:"status"`
	HasNewMessage bool       `json:"hasNewMessage"`
}

type MessageVariant string

const (
	// VariantPlain is the zero value: absence of a type field on the wire
	// denotes displayable chat content.
	VariantPlain       MessageVariant = ""
	VariantStaffJoined MessageVariant = "STAFF_JOINED"
	VariantChatEnded   MessageVariant = "CHAT_ENDED"
)

// ChatMessage is the wire entity for room traffic, inbound or outbound.
// STAFF_JOINED and CHAT_ENDED frames are room-lifecycle signals carrying
// the joiner/ender identity and no content.
type ChatMessage struct {
	RoomID        int64          `json:"roomId"`
	SenderID      int64          `json:"senderId"`
	SenderName    string         `json:"senderName,omitempty"`
	Content       string         `json:"content,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Variant       MessageVariant `json:"type,omitempty"`
	CorrelationID string         `json:"correlationId,omitempty"`

	// System marks a locally synthesized notice surfaced in the transcript
	// (staff joined, chat ended). Never sent on the wire.
	System bool `json:"-"`
}

// timestampLayouts lists the wire forms the backend emits: RFC 3339 with a
// zone offset, and the zone-less LocalDateTime serialization.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// UnmarshalJSON accepts both zoned and zone-less timestamps. A frame with an
// unreadable timestamp keeps its content and gets a zero time; the timestamp
// is display metadata and must never cost the message.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	type plain ChatMessage
	aux := struct {
		Timestamp string `json:"timestamp"`
		*plain
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.Timestamp = parseTimestamp(aux.Timestamp)
	return nil
}

// Snapshot is the read-only view handed to UI surfaces.
type Snapshot struct {
	Rooms        []Room
	UnreadCount  int
	ActiveRoomID int64
}
