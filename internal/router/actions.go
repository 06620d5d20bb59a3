package router

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/itzBaowy/ecms-livechat/pkg/state"
)

// A staff member joined the room: PENDING -> ACTIVE. If the viewer is
// looking at this room, surface a synthetic system notice.
func (r *MessageRouter) handleStaffJoined(msg state.ChatMessage, rctx Context) {
	if !r.state.SetRoomStatus(msg.RoomID, state.StatusActive) {
		return
	}
	if msg.RoomID == rctx.ActiveRoomID {
		r.state.AppendNotice(msg.RoomID, fmt.Sprintf("%s joined the chat", msg.SenderName))
	}
}

// Either party ended the chat: room goes CLOSED, terminal. The room stays in
// the cache. A CHAT_ENDED frame for an already-closed room changes nothing.
func (r *MessageRouter) handleChatEnded(msg state.ChatMessage, rctx Context) {
	if !r.state.SetRoomStatus(msg.RoomID, state.StatusClosed) {
		return
	}
	if msg.RoomID == rctx.ActiveRoomID {
		r.state.AppendNotice(msg.RoomID, "The chat has ended")
	}
}

func (r *MessageRouter) handlePlain(msg state.ChatMessage, rctx Context) {
	// The sender already appended this message optimistically at send time;
	// the inbound echo is discarded to avoid duplicate display.
	if msg.SenderID == rctx.LocalUserID {
		return
	}

	if msg.RoomID == rctx.ActiveRoomID {
		if err := r.state.AppendMessage(msg); err != nil {
			if errors.Is(err, state.ErrRoomClosed) {
				r.logger.Warn("Dropping delayed message for closed room", slog.Int64("roomID", msg.RoomID))
				return
			}
			r.logger.Error("Failed to append message", slog.Any("error", err))
		}
		return
	}

	// Message for a background room: badge it and bump the counter by
	// exactly one, regardless of room.
	r.state.MarkNewMessage(msg.RoomID)
	r.state.IncrementUnread()
}

// A new pending request appeared on the lobby. Dedupe by id; only a genuine
// arrival bumps the staff-facing counter.
func (r *MessageRouter) handleLobbyArrival(arrival lobbyArrival) {
	room := state.Room{
		ID:     arrival.ID,
		Name:   arrival.Name,
		Status: state.StatusPending,
	}
	if !r.state.PutRoom(room) {
		return
	}
	r.state.IncrementUnread()
}

// Another staff member claimed a pending request: drop it from the pending
// list. Rooms we already claimed ourselves are ACTIVE and stay put.
func (r *MessageRouter) handleLobbyClaim(claim lobbyClaim) {
	room, ok := r.state.FindRoom(claim.RoomID)
	if !ok || room.Status != state.StatusPending {
		return
	}
	r.state.RemoveRoom(claim.RoomID)
}
