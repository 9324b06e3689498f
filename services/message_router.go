package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Ajay-css/chatify/models"
	"github.com/Ajay-css/chatify/pkg/logger"
	"github.com/Ajay-css/chatify/repository"
	"github.com/Ajay-css/chatify/ws"
)

// Delivery is the outcome of routing one persisted message.
type Delivery int

const (
	// DeliveredStoreOnly: the receiver had no live connection, or the push
	// failed. The message is in the store and shows up on the next history
	// fetch.
	DeliveredStoreOnly Delivery = iota
	// DeliveredLive: the message was queued on the receiver's connection.
	DeliveredLive
)

func (d Delivery) String() string {
	if d == DeliveredLive {
		return "live"
	}
	return "store-only"
}

// MessageRouter pushes persisted messages and read receipts to whoever is
// connected. It never persists messages itself and never retries a push.
type MessageRouter interface {
	Route(msg *models.Message) Delivery
	MarkSeen(ctx context.Context, viewerID, partnerID string, seenAt time.Time) (int64, error)
}

type messageRouter struct {
	registry ws.Registry
	messages repository.MessageRepository
}

// NewMessageRouter panics on nil collaborators; a router without a registry
// is a startup wiring error.
func NewMessageRouter(registry ws.Registry, messages repository.MessageRepository) MessageRouter {
	if registry == nil {
		panic("services: NewMessageRouter called with nil registry")
	}
	if messages == nil {
		panic("services: NewMessageRouter called with nil message repository")
	}
	return &messageRouter{registry: registry, messages: messages}
}

func (r *messageRouter) Route(msg *models.Message) Delivery {
	conn, ok := r.registry.Lookup(msg.ReceiverID)
	if !ok {
		return DeliveredStoreOnly
	}

	if err := conn.Push(ws.Event{Op: ws.OpNewMessage, Data: msg}); err != nil {
		logger.Warn("[router] live push failed",
			zap.String("message", msg.ID),
			zap.String("receiver", msg.ReceiverID),
			zap.Error(err))
		return DeliveredStoreOnly
	}
	return DeliveredLive
}

// MarkSeen records that viewerID has seen everything partnerID sent them and,
// when something changed and the partner is connected, sends the partner a
// read receipt carrying seenAt.
func (r *messageRouter) MarkSeen(ctx context.Context, viewerID, partnerID string, seenAt time.Time) (int64, error) {
	n, err := r.messages.MarkSeen(ctx, partnerID, viewerID, seenAt)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	conn, ok := r.registry.Lookup(partnerID)
	if !ok {
		return n, nil
	}

	receipt := ws.Event{
		Op:   ws.OpMessagesSeen,
		Data: ws.MessagesSeenData{UserID: viewerID, SeenAt: seenAt},
	}
	if err := conn.Push(receipt); err != nil {
		logger.Warn("[router] read receipt push failed",
			zap.String("viewer", viewerID),
			zap.String("partner", partnerID),
			zap.Error(err))
	}
	return n, nil
}
