package handler

import (
	"net/http"

	"github.com/fazil2161/pingme/internal/domain"
	"github.com/fazil2161/pingme/internal/realtime"
	"github.com/go-chi/chi/v5"
)

// PresenceHandler exposes read-only views over the live connection registry.
type PresenceHandler struct {
	registry *realtime.Registry
}

func NewPresenceHandler(registry *realtime.Registry) *PresenceHandler {
	return &PresenceHandler{registry: registry}
}

// OnlineEnvelope wraps the online-user listing.
type OnlineEnvelope struct {
	Count int                     `json:"count"`
	Users []domain.ConnectionInfo `json:"users"`
}

func (h *PresenceHandler) Online(w http.ResponseWriter, _ *http.Request) {
	users := h.registry.Snapshot()
	writeJSON(w, http.StatusOK, OnlineEnvelope{Count: len(users), Users: users})
}

// Status reports whether one user currently holds a live connection.
func (h *PresenceHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"online":  h.registry.IsOnline(userID),
	})
}
