package domain

import "time"

// ConnectionInfo is a point-in-time view of one live realtime connection,
// as returned by the registry snapshot. It is diagnostic output only and is
// never persisted.
type ConnectionInfo struct {
	UserID         string    `json:"user_id"`
	Username       string    `json:"username"`
	ConnectedAt    time.Time `json:"connected_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}
