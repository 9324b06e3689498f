package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Ajay-css/chatify/pkg/logger"
	"github.com/Ajay-css/chatify/ws"
)

// registerHubCallbacks connects client-originated WebSocket ops to the
// services. The hub stays free of service dependencies.
func registerHubCallbacks(hub *ws.Hub, s *Services) {
	hub.OnMarkSeen(func(viewerID, partnerID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		n, err := s.Router.MarkSeen(ctx, viewerID, partnerID, time.Now().UTC())
		if err != nil {
			logger.Error("[router] mark seen failed",
				zap.String("viewer", viewerID), zap.String("partner", partnerID), zap.Error(err))
			return
		}
		if n > 0 {
			logger.Debug("[router] messages seen",
				zap.String("viewer", viewerID), zap.String("partner", partnerID), zap.Int64("count", n))
		}
	})
}
