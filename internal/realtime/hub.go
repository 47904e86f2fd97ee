package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fazil2161/pingme/internal/domain"
	"github.com/fazil2161/pingme/internal/pkg/id"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 16
	maxMessageSize = 4096
)

// SessionVerifier resolves a bearer token presented at connect time to a
// user identity. Any failure refuses the connection; no anonymous realtime
// connections are admitted.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (*domain.User, error)
}

// Hub owns the websocket endpoint: it authenticates connections, admits
// them into the registry, announces presence transitions and routes inbound
// events. Business code reaches it only through IsOnline/PushNotification.
type Hub struct {
	registry *Registry
	verifier SessionVerifier
	upgrader websocket.Upgrader

	roomsMu sync.RWMutex
	rooms   map[string]map[string]Conn // roomID -> userID -> conn
}

func NewHub(registry *Registry, verifier SessionVerifier, allowedOrigins []string) *Hub {
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"
	return &Hub{
		registry: registry,
		verifier: verifier,
		rooms:    make(map[string]map[string]Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, o := range allowedOrigins {
					if o == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// ServeHTTP upgrades an authenticated HTTP request to a websocket
// connection. The token is taken from the `token` query parameter or the
// Authorization header.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		http.Error(w, `{"error":"authentication token required"}`, http.StatusUnauthorized)
		return
	}

	user, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		slog.Warn("websocket authentication refused", "err", err)
		http.Error(w, `{"error":"authentication failed"}`, http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "user_id", user.UserID, "err", err)
		return
	}

	conn := &wsConn{id: id.New(), ws: ws, send: make(chan Event, sendBufferSize)}
	h.admit(user, conn)
}

// admit registers the connection, announces presence and runs the pumps.
// The read pump runs on the caller's goroutine until disconnect.
func (h *Hub) admit(user *domain.User, conn *wsConn) {
	if displaced := h.registry.Register(user.UserID, user.Username, conn); displaced != nil {
		// A newer session replaces the old one; close the stale channel so
		// it cannot keep receiving pushes.
		slog.Info("displacing previous connection", "user_id", user.UserID)
		displaced.Close()
	}

	h.joinRoom(personalRoom(user.UserID), user.UserID, conn)

	slog.Info("user connected", "user_id", user.UserID, "username", user.Username, "conn_id", conn.ID())

	go conn.writePump()

	conn.Send(NewEvent(EventConnectionEstablished, ConnectionEstablishedPayload{
		Message:   "Connected to PingMe",
		UserID:    user.UserID,
		Timestamp: time.Now().UTC(),
	}))

	h.registry.Broadcast(NewEvent(EventUserOnline, PresencePayload{
		UserID:    user.UserID,
		Username:  user.Username,
		Timestamp: time.Now().UTC(),
	}), user.UserID)

	h.readPump(user, conn)
}

func (h *Hub) readPump(user *domain.User, conn *wsConn) {
	defer h.disconnect(user, conn, "read loop ended")
	conn.ws.SetReadLimit(maxMessageSize)

	for {
		var ev Event
		if err := conn.ws.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read error", "user_id", user.UserID, "err", err)
			}
			return
		}
		// Any recognized inbound signal counts as activity.
		h.registry.Touch(user.UserID)
		h.handleEvent(user, conn, ev)
	}
}

func (h *Hub) handleEvent(user *domain.User, conn *wsConn, ev Event) {
	switch ev.Event {
	case EventActivity:
		// Touch already happened; the heartbeat carries no payload.

	case EventJoinRoom:
		var roomID string
		if err := json.Unmarshal(ev.Data, &roomID); err == nil && roomID != "" {
			h.joinRoom(roomID, user.UserID, conn)
			slog.Info("user joined room", "username", user.Username, "room", roomID)
		}

	case EventLeaveRoom:
		var roomID string
		if err := json.Unmarshal(ev.Data, &roomID); err == nil && roomID != "" {
			h.leaveRoom(roomID, user.UserID)
			slog.Info("user left room", "username", user.Username, "room", roomID)
		}

	case EventSendMessage:
		var req SendMessageRequest
		if err := json.Unmarshal(ev.Data, &req); err != nil || req.RecipientID == "" {
			return
		}
		if req.Type == "" {
			req.Type = "text"
		}
		h.registry.Send(req.RecipientID, NewEvent(EventNewMessage, NewMessagePayload{
			SenderID:       user.UserID,
			SenderUsername: user.Username,
			Message:        req.Message,
			Type:           req.Type,
			Timestamp:      time.Now().UTC(),
		}))

	case EventTypingStart, EventTypingStop:
		var req TypingRequest
		if err := json.Unmarshal(ev.Data, &req); err != nil || req.RecipientID == "" {
			return
		}
		out := EventUserTyping
		if ev.Event == EventTypingStop {
			out = EventUserStopTyping
		}
		h.registry.Send(req.RecipientID, NewEvent(out, TypingPayload{
			UserID:    user.UserID,
			Username:  user.Username,
			Timestamp: time.Now().UTC(),
		}))

	case EventStatusUpdate:
		var status string
		if err := json.Unmarshal(ev.Data, &status); err != nil {
			return
		}
		h.registry.Broadcast(NewEvent(EventUserStatusChange, StatusChangePayload{
			UserID:    user.UserID,
			Username:  user.Username,
			Status:    status,
			Timestamp: time.Now().UTC(),
		}), user.UserID)

	default:
		slog.Warn("unrecognized event", "event", ev.Event, "user_id", user.UserID)
	}
}

// disconnect handles the graceful-close path. The registry mutation happens
// before the presence broadcast, and the offline announcement is suppressed
// when a newer connection has already replaced this one.
func (h *Hub) disconnect(user *domain.User, conn *wsConn, reason string) {
	removed := h.registry.Unregister(user.UserID, conn.ID())
	h.leaveAllRooms(user.UserID, conn)
	conn.Close()

	slog.Info("user disconnected", "user_id", user.UserID, "username", user.Username, "reason", reason)

	if removed {
		h.registry.Broadcast(NewEvent(EventUserOffline, PresencePayload{
			UserID:    user.UserID,
			Username:  user.Username,
			Timestamp: time.Now().UTC(),
		}), user.UserID)
	}
}

// AnnounceOffline broadcasts a user_offline transition for a connection that
// was evicted by the liveness sweep rather than closed by its owner.
func (h *Hub) AnnounceOffline(userID, username string) {
	h.registry.Broadcast(NewEvent(EventUserOffline, PresencePayload{
		UserID:    userID,
		Username:  username,
		Timestamp: time.Now().UTC(),
	}), userID)
}

// IsOnline reports live reachability of a user.
func (h *Hub) IsOnline(userID string) bool {
	return h.registry.IsOnline(userID)
}

// PushNotification attempts best-effort live delivery of a notification.
// Reports whether the event was queued on a live connection.
func (h *Hub) PushNotification(userID string, payload NotificationPayload) bool {
	return h.registry.Send(userID, NewEvent(EventNewNotification, payload))
}

// BroadcastToRoom emits an event to every member of a room.
func (h *Hub) BroadcastToRoom(roomID string, ev Event) {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	for _, c := range h.rooms[roomID] {
		c.Send(ev)
	}
}

func (h *Hub) joinRoom(roomID, userID string, conn Conn) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]Conn)
	}
	h.rooms[roomID][userID] = conn
}

func (h *Hub) leaveRoom(roomID, userID string) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	delete(h.rooms[roomID], userID)
	if len(h.rooms[roomID]) == 0 {
		delete(h.rooms, roomID)
	}
}

// leaveAllRooms removes the connection from every room it joined. Membership
// is matched by connection, not just user id, so a replaced connection does
// not evict its successor from shared rooms.
func (h *Hub) leaveAllRooms(userID string, conn Conn) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	for roomID, members := range h.rooms {
		if c, ok := members[userID]; ok && c.ID() == conn.ID() {
			delete(members, userID)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
}

func personalRoom(userID string) string {
	return "user_" + userID
}

// wsConn wraps one gorilla websocket connection with a buffered outbound
// queue so sends from business code never block on a slow client.
type wsConn struct {
	id        string
	ws        *websocket.Conn
	send      chan Event
	closeOnce sync.Once
}

func (c *wsConn) ID() string { return c.id }

// Send queues ev for delivery. Drops the event when the peer is lagging; the
// durable notification record remains the source of truth.
func (c *wsConn) Send(ev Event) bool {
	defer func() { recover() }() // send on closed channel loses the race, not the process
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *wsConn) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

func (c *wsConn) writePump() {
	defer c.ws.Close()
	for ev := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteJSON(ev); err != nil {
			return
		}
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
