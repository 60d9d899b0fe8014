package rooms

import (
	"context"
	"encoding/json"
)

// Notification methods pushed to room members
const (
	MethodUserJoined = "user-joined"
	MethodUserLeft   = "user-left"
	MethodRoomUsers  = "room-users"
	MethodSignal     = "signal"
)

// Sender delivers a server-push notification to one connection.
// Implementations must not block on network I/O; the coordinator calls
// Notify while holding the room lock.
type Sender interface {
	Notify(ctx context.Context, method string, params any) error
}

// UserEvent is the payload of user-joined and user-left notifications
type UserEvent struct {
	UserID string `json:"userId"`
}

// RoomUsers is the payload of room-users notifications.
// Users is a stable (sorted) snapshot of the current roster.
type RoomUsers struct {
	Users []string `json:"users"`
}

// SignalEvent is the payload of signal notifications relayed between peers.
// Payload is opaque to the server.
type SignalEvent struct {
	UserID  string          `json:"userId"`
	Payload json.RawMessage `json:"payload"`
}

// Binding is one (room, user) membership held by a connection
type Binding struct {
	RoomKey string
	UserID  string
}

// RoomStat is a point-in-time view of one room for the operational API
type RoomStat struct {
	Key     string `json:"key"`
	Members int    `json:"members"`
}
