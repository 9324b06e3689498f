package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Ajay-css/chatify/models"
	"github.com/Ajay-css/chatify/pkg/logger"
)

// TokenValidator verifies the access token presented on the handshake.
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

// TokenCookieName is the cookie the auth handlers set; browsers send it on
// the upgrade request automatically.
const TokenCookieName = "jwt"

// Handler upgrades GET /ws requests and hands the connection to the hub.
type Handler struct {
	hub            *Hub
	tokenValidator TokenValidator
	upgrader       websocket.Upgrader
	pongWait       time.Duration
}

// NewHandler panics when hub is nil: a handler without a registry is a
// wiring bug that must surface at startup, not on the first connection.
// A nil validator accepts the userId query parameter as-is.
func NewHandler(hub *Hub, tokenValidator TokenValidator, allowedOrigins []string, pongWait time.Duration) *Handler {
	if hub == nil {
		panic("ws: NewHandler called with nil hub")
	}

	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &Handler{
		hub:            hub,
		tokenValidator: tokenValidator,
		pongWait:       pongWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// non-browser clients send no Origin
				return origin == "" || len(origins) == 0 || origins[origin]
			},
		},
	}
}

// HandleConnection: GET /ws?userId=<id>&token=<jwt>
//
// The identity is the userId query parameter. When a validator is set the
// token (query or cookie) must be valid and belong to that user; userId may
// then be omitted and is taken from the token.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")

	if h.tokenValidator != nil {
		token := r.URL.Query().Get("token")
		if token == "" {
			if cookie, err := r.Cookie(TokenCookieName); err == nil {
				token = cookie.Value
			}
		}
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		claims, err := h.tokenValidator.ValidateAccessToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		if userID == "" {
			userID = claims.UserID
		} else if userID != claims.UserID {
			http.Error(w, "userId does not match token", http.StatusForbidden)
			return
		}
	}

	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("[ws] upgrade failed", zap.String("user", userID), zap.Error(err))
		return
	}

	client := newClient(h.hub, conn, userID, h.pongWait)
	h.hub.Register(client)

	go client.WritePump()
	client.ReadPump() // blocks until the connection closes
}
