package presence

import "time"

// Status is a user's realtime availability as observed by live connections.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

// Settable reports whether clients may request this status explicitly.
// Offline is derived from the connection count, never set directly.
func (s Status) Settable() bool {
	return s == StatusOnline || s == StatusAway
}

// UserStatus is one user's presence as carried in snapshots and broadcasts.
type UserStatus struct {
	UserID   string    `json:"userId"`
	Status   Status    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

// Event types pushed over the realtime channel.
const (
	EventInitialStatus     = "initial-status"
	EventUserStatusChanged = "user-status-changed"
)

// Event is a server-to-client presence frame. Users is populated only for
// initial-status; the remaining fields only for user-status-changed.
type Event struct {
	Type     string       `json:"type"`
	UserID   string       `json:"userId,omitempty"`
	Status   Status       `json:"status,omitempty"`
	LastSeen *time.Time   `json:"lastSeen,omitempty"`
	Users    []UserStatus `json:"users,omitempty"`
}
