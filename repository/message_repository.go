package repository

import (
	"context"
	"time"

	"github.com/Ajay-css/chatify/models"
)

// MessageRepository is the conversation store.
type MessageRepository interface {
	// Create persists msg and fills ID, CreatedAt and UpdatedAt.
	Create(ctx context.Context, msg *models.Message) error

	// ListConversation returns every message exchanged between a and b in
	// either direction, oldest first.
	ListConversation(ctx context.Context, a, b string) ([]models.Message, error)

	// MarkSeen flags every unseen message from senderID to receiverID as seen
	// at seenAt and returns how many changed.
	MarkSeen(ctx context.Context, senderID, receiverID string, seenAt time.Time) (int64, error)
}
