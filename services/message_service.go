package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"

	"github.com/Ajay-css/chatify/models"
	"github.com/Ajay-css/chatify/pkg"
	"github.com/Ajay-css/chatify/pkg/logger"
	"github.com/Ajay-css/chatify/repository"
	"github.com/Ajay-css/chatify/ws"
)

type MessageService interface {
	// ListUsers is the sidebar: every other user with their online flag.
	ListUsers(ctx context.Context, viewerID string) ([]models.UserWithPresence, error)
	GetConversation(ctx context.Context, viewerID, partnerID string) ([]models.Message, error)
	// Send validates, persists, then routes. A persistence failure aborts
	// before anything is pushed.
	Send(ctx context.Context, senderID, receiverID string, req *models.CreateMessageRequest) (*models.Message, Delivery, error)
}

// OnlineChecker is the slice of the registry the sidebar needs.
type OnlineChecker interface {
	OnlineUserIDs() []string
}

const pairLockStripes = 64

type messageService struct {
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
	router      MessageRouter
	online      OnlineChecker

	// pairLocks serialise persist+route per conversation so live delivery
	// order matches persistence order.
	pairLocks [pairLockStripes]sync.Mutex
}

func NewMessageService(
	userRepo repository.UserRepository,
	messageRepo repository.MessageRepository,
	router MessageRouter,
	online OnlineChecker,
) MessageService {
	return &messageService{
		userRepo:    userRepo,
		messageRepo: messageRepo,
		router:      router,
		online:      online,
	}
}

func (s *messageService) ListUsers(ctx context.Context, viewerID string) ([]models.UserWithPresence, error) {
	users, err := s.userRepo.ListExcept(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	online := make(map[string]bool)
	for _, id := range s.online.OnlineUserIDs() {
		online[id] = true
	}

	result := make([]models.UserWithPresence, len(users))
	for i, u := range users {
		result[i] = models.UserWithPresence{User: u, IsOnline: online[u.ID]}
	}
	return result, nil
}

func (s *messageService) GetConversation(ctx context.Context, viewerID, partnerID string) ([]models.Message, error) {
	if partnerID == "" {
		return nil, fmt.Errorf("%w: user id is required", pkg.ErrBadRequest)
	}
	return s.messageRepo.ListConversation(ctx, viewerID, partnerID)
}

func (s *messageService) Send(ctx context.Context, senderID, receiverID string, req *models.CreateMessageRequest) (*models.Message, Delivery, error) {
	if err := req.Validate(); err != nil {
		return nil, DeliveredStoreOnly, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if receiverID == senderID {
		return nil, DeliveredStoreOnly, fmt.Errorf("%w: cannot send a message to yourself", pkg.ErrBadRequest)
	}

	if _, err := s.userRepo.GetByID(ctx, receiverID); err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, DeliveredStoreOnly, fmt.Errorf("%w: receiver not found", pkg.ErrNotFound)
		}
		return nil, DeliveredStoreOnly, err
	}

	msg := &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       req.Text,
		Kind:       req.Kind,
		FileURL:    req.FileURL,
	}

	mu := s.pairLock(senderID, receiverID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, DeliveredStoreOnly, fmt.Errorf("failed to store message: %w", err)
	}

	delivery := s.router.Route(msg)
	logger.Debug("[messages] sent",
		zap.String("message", msg.ID),
		zap.String("sender", senderID),
		zap.String("receiver", receiverID),
		zap.Stringer("delivery", delivery))

	return msg, delivery, nil
}

func (s *messageService) pairLock(a, b string) *sync.Mutex {
	if a > b {
		a, b = b, a
	}
	h := fnv.New32a()
	h.Write([]byte(a))
	h.Write([]byte{0})
	h.Write([]byte(b))
	return &s.pairLocks[h.Sum32()%pairLockStripes]
}

var _ OnlineChecker = (*ws.Hub)(nil)
