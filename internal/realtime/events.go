package realtime

import (
	"encoding/json"
	"time"

	"github.com/fazil2161/pingme/internal/domain"
)

// Event is the wire envelope for every message on the realtime channel,
// in both directions: {"event": "...", "data": {...}}.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals data into an Event envelope. Marshal failures are a
// programming error (all payload types below are marshalable), so they are
// swallowed and produce an empty data field.
func NewEvent(name string, data interface{}) Event {
	raw, _ := json.Marshal(data)
	return Event{Event: name, Data: raw}
}

// Events consumed from clients.
const (
	EventJoinRoom     = "join_room"
	EventLeaveRoom    = "leave_room"
	EventSendMessage  = "send_message"
	EventTypingStart  = "typing_start"
	EventTypingStop   = "typing_stop"
	EventActivity     = "activity"
	EventStatusUpdate = "status_update"
)

// Events emitted to clients.
const (
	EventConnectionEstablished = "connection_established"
	EventNewNotification       = "new_notification"
	EventUserOnline            = "user_online"
	EventUserOffline           = "user_offline"
	EventNewMessage            = "new_message"
	EventUserTyping            = "user_typing"
	EventUserStopTyping        = "user_stop_typing"
	EventUserStatusChange      = "user_status_change"
)

type ConnectionEstablishedPayload struct {
	Message   string    `json:"message"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// PresencePayload is shared by user_online and user_offline.
type PresencePayload struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationPayload is the new_notification event body. Post carries a
// snippet of the related post when the dispatcher can resolve one, so
// clients can render the toast without a follow-up fetch.
type NotificationPayload struct {
	Type      domain.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	Sender    domain.UserSummary      `json:"sender"`
	PostID    string                  `json:"postId,omitempty"`
	CommentID string                  `json:"commentId,omitempty"`
	Post      *domain.PostSummary     `json:"post,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

type SendMessageRequest struct {
	RecipientID string `json:"recipientId"`
	Message     string `json:"message"`
	Type        string `json:"type"`
}

type NewMessagePayload struct {
	SenderID       string    `json:"senderId"`
	SenderUsername string    `json:"senderUsername"`
	Message        string    `json:"message"`
	Type           string    `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
}

type TypingRequest struct {
	RecipientID string `json:"recipientId"`
}

type TypingPayload struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

type StatusChangePayload struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
