// Package router classifies inbound push payloads and dispatches them to the
// notification state. Routing has no side channels: everything a rule needs
// arrives in the payload or the per-invocation Context.
package router

import (
	"encoding/json"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/itzBaowy/ecms-livechat/pkg/state"
)

type MessageRouter struct {
	logger *slog.Logger
	state  state.Manager
}

func NewMessageRouter(logger *slog.Logger, stateManager state.Manager) *MessageRouter {
	return &MessageRouter{
		logger: logger.With(slog.String("component", "message_router")),
		state:  stateManager,
	}
}

// Route classifies one inbound room-topic payload and applies the matching
// state update. A malformed payload is dropped and logged; a single corrupt
// frame must never take down the live connection.
func (r *MessageRouter) Route(raw []byte, rctx Context) {
	var msg state.ChatMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.logger.Warn("Dropping unparseable room payload", slog.Any("error", err))
		return
	}

	switch msg.Variant {
	case state.VariantStaffJoined:
		r.handleStaffJoined(msg, rctx)
	case state.VariantChatEnded:
		r.handleChatEnded(msg, rctx)
	case state.VariantPlain:
		r.handlePlain(msg, rctx)
	default:
		r.logger.Warn("Dropping payload with unknown variant", slog.String("variant", string(msg.Variant)))
	}
}

// RouteLobby classifies one inbound staff-lobby payload. The lobby carries
// two shapes: a room arrival {id, status} and a claim notice
// {type: "CLAIMED", roomId}. Neither is a ChatMessage.
func (r *MessageRouter) RouteLobby(raw []byte) {
	if !gjson.ValidBytes(raw) {
		r.logger.Warn("Dropping invalid lobby payload")
		return
	}
	payload := gjson.ParseBytes(raw)

	if payload.Get("type").String() == "CLAIMED" {
		var claim lobbyClaim
		if err := json.Unmarshal(raw, &claim); err != nil {
			r.logger.Warn("Dropping malformed claim notice", slog.Any("error", err))
			return
		}
		r.handleLobbyClaim(claim)
		return
	}

	if payload.Get("id").Exists() {
		var arrival lobbyArrival
		if err := json.Unmarshal(raw, &arrival); err != nil {
			r.logger.Warn("Dropping malformed lobby arrival", slog.Any("error", err))
			return
		}
		r.handleLobbyArrival(arrival)
		return
	}

	r.logger.Warn("Dropping unrecognized lobby payload")
}
