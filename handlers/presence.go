package handlers

import (
	"net/http"
	"time"

	"github.com/Ajay-css/chatify/pkg"
)

// OnlineLister is the read side of the connection registry.
type OnlineLister interface {
	OnlineUserIDs() []string
}

type PresenceHandler struct {
	registry  OnlineLister
	startedAt time.Time
}

func NewPresenceHandler(registry OnlineLister) *PresenceHandler {
	return &PresenceHandler{registry: registry, startedAt: time.Now()}
}

// Online: GET /api/presence
func (h *PresenceHandler) Online(w http.ResponseWriter, r *http.Request) {
	pkg.JSON(w, http.StatusOK, h.registry.OnlineUserIDs())
}

// Health: GET /api/health
func (h *PresenceHandler) Health(w http.ResponseWriter, r *http.Request) {
	pkg.JSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"online":      len(h.registry.OnlineUserIDs()),
		"uptime_secs": int(time.Since(h.startedAt).Seconds()),
	})
}
