package router

// Context carries the facts the dispatch rules depend on, captured at the
// moment of invocation rather than closed over, so long-lived subscription
// callbacks never observe a stale active-room pointer.
type Context struct {
	LocalUserID  int64
	ActiveRoomID int64
}

// lobbyArrival is the lobby-only payload announcing a new pending support
// request: {id, status: "PENDING"}. It is not a ChatMessage.
type lobbyArrival struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// lobbyClaim announces that a pending request was claimed by a staff member:
// {type: "CLAIMED", roomId}.
type lobbyClaim struct {
	Type   string `json:"type"`
	RoomID int64  `json:"roomId"`
}
