package main

import (
	"github.com/Ajay-css/chatify/config"
	"github.com/Ajay-css/chatify/handlers"
	"github.com/Ajay-css/chatify/middleware"
	"github.com/Ajay-css/chatify/ws"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	Message  *handlers.MessageHandler
	Presence *handlers.PresenceHandler
	WS       *ws.Handler
	AuthMw   *middleware.AuthMiddleware
}

func initHandlers(cfg *config.Config, s *Services, hub *ws.Hub) *Handlers {
	return &Handlers{
		Auth:     handlers.NewAuthHandler(s.Auth, s.LoginLimiter, cfg.Server.SecureCookies),
		Message:  handlers.NewMessageHandler(s.Message, s.Upload, s.MessageLimiter, cfg.Upload.MaxSize),
		Presence: handlers.NewPresenceHandler(hub),
		WS:       ws.NewHandler(hub, s.Auth, cfg.CORS.AllowedOrigins, cfg.WebSocket.PongWait),
		AuthMw:   middleware.NewAuthMiddleware(s.Auth),
	}
}

func (h *Handlers) Close() {
	h.AuthMw.Close()
}
