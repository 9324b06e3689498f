package main

import (
	"time"

	"github.com/Ajay-css/chatify/config"
	"github.com/Ajay-css/chatify/pkg/ratelimit"
	"github.com/Ajay-css/chatify/services"
	"github.com/Ajay-css/chatify/ws"
)

// Services is the container of service instances and the limiters the
// handlers share.
type Services struct {
	Auth    services.AuthService
	Router  services.MessageRouter
	Message services.MessageService
	Upload  services.UploadService

	LoginLimiter   *ratelimit.LoginRateLimiter
	MessageLimiter *ratelimit.MessageRateLimiter
}

func initServices(cfg *config.Config, repos *Repositories, hub *ws.Hub) *Services {
	router := services.NewMessageRouter(hub, repos.Message)

	s := &Services{
		Auth:         services.NewAuthService(repos.User, cfg.JWT.Secret, cfg.JWT.Expiry),
		Router:       router,
		Message:      services.NewMessageService(repos.User, repos.Message, router, hub),
		Upload:       services.NewUploadService(cfg.Upload.Dir, cfg.Upload.MaxSize),
		LoginLimiter: ratelimit.NewLoginRateLimiter(10, 5*time.Minute),
	}

	if cfg.RateLimit.Messages > 0 {
		s.MessageLimiter = ratelimit.NewMessageRateLimiter(cfg.RateLimit.Messages, cfg.RateLimit.Window, cfg.RateLimit.Cooldown)
	}
	return s
}

func (s *Services) Close() {
	s.LoginLimiter.Close()
	if s.MessageLimiter != nil {
		s.MessageLimiter.Close()
	}
}
