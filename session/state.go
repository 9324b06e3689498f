// Package session holds the client side of a chat session: the cached
// conversation with the selected partner, unread counters, the online set
// and a stream of user-facing notifications. State is transport agnostic;
// Client feeds it from a WebSocket and API from the REST endpoints.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/aquilax/truncate"

	"github.com/Ajay-css/chatify/models"
)

// PartnerState is how the session sees one partner at a time.
type PartnerState int

const (
	// InactiveSeen: not selected, nothing unread.
	InactiveSeen PartnerState = iota
	// InactiveUnseen: not selected, at least one message arrived since the
	// partner was last viewed.
	InactiveUnseen
	// Active: the open conversation.
	Active
)

func (s PartnerState) String() string {
	switch s {
	case InactiveSeen:
		return "inactive-seen-no-unread"
	case InactiveUnseen:
		return "inactive-unseen"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("PartnerState(%d)", int(s))
	}
}

type NotificationKind int

const (
	NotifyMessage NotificationKind = iota
	NotifyError
)

// Notification is a toast: a new message from someone other than the open
// partner, or a failed request.
type Notification struct {
	Kind    NotificationKind
	From    string // sender id, empty for errors
	Title   string
	Preview string
	At      time.Time
}

func (n Notification) String() string {
	if n.Preview == "" {
		return n.Title
	}
	return n.Title + ": " + n.Preview
}

const (
	notificationBuffer = 32
	previewLength      = 48
	fallbackSenderName = "Someone"
)

// ErrSuperseded is returned by SelectPartner when another selection (or
// ClearActive) happened while its history fetch was in flight.
var ErrSuperseded = errors.New("session: selection superseded")

// Fetcher is the request side a State needs. *API implements it.
type Fetcher interface {
	Users(ctx context.Context) ([]models.UserWithPresence, error)
	Conversation(ctx context.Context, partnerID string) ([]models.Message, error)
	Send(ctx context.Context, partnerID string, req models.CreateMessageRequest) (*models.Message, error)
}

// State is safe for concurrent use. Push handlers (HandleNewMessage,
// HandleMessagesSeen, HandleOnlineUsers, HandleDisconnect) never block.
type State struct {
	selfID  string
	fetcher Fetcher

	mu          sync.RWMutex
	active      string
	messages    []models.Message // active conversation, creation order
	unread      map[string]int
	users       []models.UserWithPresence
	online      map[string]struct{}
	onlineKnown bool

	// A history fetch is in flight for fetching. Messages for that partner
	// that arrive meanwhile are kept in pending and merged into the result.
	// gen increments on every selection change; a fetch started under an
	// older gen is discarded.
	gen      uint64
	fetching string
	pending  []models.Message

	notify    chan Notification
	onMessage func(models.Message)
	now       func() time.Time
}

func NewState(selfID string, fetcher Fetcher) *State {
	if fetcher == nil {
		panic("session: fetcher must not be nil")
	}
	return &State{
		selfID:  selfID,
		fetcher: fetcher,
		unread:  make(map[string]int),
		online:  make(map[string]struct{}),
		notify:  make(chan Notification, notificationBuffer),
		now:     time.Now,
	}
}

// Notifications delivers toasts. When nobody drains the channel new
// notifications are dropped.
func (s *State) Notifications() <-chan Notification {
	return s.notify
}

// OnMessage registers fn to run for every pushed message that lands in the
// open conversation. Set it before pushes start; fn runs outside the lock.
func (s *State) OnMessage(fn func(models.Message)) {
	s.mu.Lock()
	s.onMessage = fn
	s.mu.Unlock()
}

// SelectPartner fetches the conversation with partnerID, replaces the cache,
// clears the partner's unread count and makes it active. Messages pushed
// while the fetch is in flight are appended after the fetched history. On
// failure nothing changes and an error notification is emitted.
func (s *State) SelectPartner(ctx context.Context, partnerID string) error {
	s.mu.Lock()
	s.gen++
	gen := s.beginFetchLocked(partnerID)
	s.mu.Unlock()

	msgs, err := s.fetcher.Conversation(ctx, partnerID)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return ErrSuperseded
	}
	pending := s.endFetchLocked()
	if err != nil {
		s.mu.Unlock()
		s.emitError("Failed to load messages", err)
		return err
	}

	s.active = partnerID
	s.messages = msgs
	for _, m := range pending {
		s.appendLocked(m)
	}
	delete(s.unread, partnerID)
	s.mu.Unlock()
	return nil
}

// ClearActive closes the open conversation.
func (s *State) ClearActive() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.endFetchLocked()
	s.active = ""
	s.messages = nil
}

// Reconnect re-fetches the active conversation after the transport came
// back. Unread counters and presence are not reconciled; the server resends
// the online set on connect.
func (s *State) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	partnerID := s.active
	// a selection in flight brings fresh history itself
	if partnerID == "" || s.fetching != "" {
		s.mu.Unlock()
		return nil
	}
	gen := s.beginFetchLocked(partnerID)
	s.mu.Unlock()

	msgs, err := s.fetcher.Conversation(ctx, partnerID)

	s.mu.Lock()
	if gen != s.gen {
		// selection changed while fetching
		s.mu.Unlock()
		return nil
	}
	pending := s.endFetchLocked()
	if err != nil {
		s.mu.Unlock()
		s.emitError("Failed to reload messages", err)
		return err
	}

	s.messages = msgs
	for _, m := range pending {
		s.appendLocked(m)
	}
	s.mu.Unlock()
	return nil
}

func (s *State) beginFetchLocked(partnerID string) uint64 {
	s.fetching = partnerID
	s.pending = nil
	return s.gen
}

func (s *State) endFetchLocked() []models.Message {
	pending := s.pending
	s.fetching = ""
	s.pending = nil
	return pending
}

// holdLocked keeps msg for the in-flight fetch of its conversation.
func (s *State) holdLocked(partnerID string, msg models.Message) {
	if s.fetching != "" && s.fetching == partnerID {
		s.pending = append(s.pending, msg)
	}
}

// LoadUsers refreshes the sidebar list. On failure the previous list stays.
func (s *State) LoadUsers(ctx context.Context) error {
	users, err := s.fetcher.Users(ctx)
	if err != nil {
		s.emitError("Failed to load users", err)
		return err
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
	return nil
}

// SendMessage posts a message and appends the stored copy to the cache when
// partnerID is still the open conversation.
func (s *State) SendMessage(ctx context.Context, partnerID string, req models.CreateMessageRequest) (*models.Message, error) {
	msg, err := s.fetcher.Send(ctx, partnerID, req)
	if err != nil {
		s.emitError("Failed to send message", err)
		return nil, err
	}

	s.mu.Lock()
	s.holdLocked(partnerID, *msg)
	if s.active == partnerID {
		s.appendLocked(*msg)
	}
	s.mu.Unlock()
	return msg, nil
}

// HandleNewMessage applies a "newMessage" push.
func (s *State) HandleNewMessage(msg models.Message) {
	s.mu.Lock()
	s.holdLocked(msg.SenderID, msg)

	if s.active != "" && msg.SenderID == s.active {
		added := s.appendLocked(msg)
		fn := s.onMessage
		s.mu.Unlock()
		if added && fn != nil {
			fn(msg)
		}
		return
	}

	s.unread[msg.SenderID]++
	name := s.displayNameLocked(msg.SenderID)
	s.mu.Unlock()

	s.emit(Notification{
		Kind:    NotifyMessage,
		From:    msg.SenderID,
		Title:   "New message from " + name,
		Preview: Preview(msg),
		At:      s.now(),
	})
}

// HandleMessagesSeen applies a "messagesSeen" receipt: userID has read what
// we sent them. Only the open conversation is cached, so receipts for any
// other partner are dropped; the next fetch carries the flags.
func (s *State) HandleMessagesSeen(userID string, seenAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userID == "" || userID != s.active {
		return
	}
	for i := range s.messages {
		m := &s.messages[i]
		if m.SenderID == s.selfID && m.ReceiverID == userID && !m.Seen {
			at := seenAt
			m.Seen = true
			m.SeenAt = &at
		}
	}
}

// HandleOnlineUsers replaces the online set.
func (s *State) HandleOnlineUsers(ids []string) {
	online := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		online[id] = struct{}{}
	}

	s.mu.Lock()
	s.online = online
	s.onlineKnown = true
	s.mu.Unlock()
}

// HandleDisconnect forgets presence: with no connection nobody is known to
// be online.
func (s *State) HandleDisconnect() {
	s.HandleOnlineUsers(nil)
}

func (s *State) PartnerState(partnerID string) PartnerState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case partnerID != "" && partnerID == s.active:
		return Active
	case s.unread[partnerID] > 0:
		return InactiveUnseen
	default:
		return InactiveSeen
	}
}

func (s *State) Unread(partnerID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread[partnerID]
}

// UnreadCounts returns a copy of every non-zero counter.
func (s *State) UnreadCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, len(s.unread))
	for id, n := range s.unread {
		out[id] = n
	}
	return out
}

func (s *State) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Messages returns a copy of the open conversation.
func (s *State) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

// OnlineUsers returns the online set, sorted.
func (s *State) OnlineUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.online))
	for id := range s.online {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *State) IsOnline(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.online[userID]
	return ok
}

// Users returns the sidebar list. Once a presence push has arrived IsOnline
// reflects it rather than the snapshot taken at fetch time.
func (s *State) Users() []models.UserWithPresence {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.users)
	if s.onlineKnown {
		for i := range out {
			_, out[i].IsOnline = s.online[out[i].ID]
		}
	}
	return out
}

// appendLocked adds msg at the tail unless it is already cached; a push can
// race with the fetch that already returned it.
func (s *State) appendLocked(msg models.Message) bool {
	if msg.ID != "" && slices.ContainsFunc(s.messages, func(m models.Message) bool { return m.ID == msg.ID }) {
		return false
	}
	s.messages = append(s.messages, msg)
	return true
}

func (s *State) displayNameLocked(userID string) string {
	for _, u := range s.users {
		if u.ID == userID && u.FullName != "" {
			return u.FullName
		}
	}
	return fallbackSenderName
}

func (s *State) emitError(title string, err error) {
	s.emit(Notification{
		Kind:    NotifyError,
		Title:   title,
		Preview: err.Error(),
		At:      s.now(),
	})
}

func (s *State) emit(n Notification) {
	select {
	case s.notify <- n:
	default:
	}
}

// Preview is the one-line summary of a message used in notifications.
func Preview(msg models.Message) string {
	if msg.Text != "" {
		return truncate.Truncate(msg.Text, previewLength, "...", truncate.PositionEnd)
	}
	switch msg.Kind {
	case models.KindImage:
		return "sent an image"
	case models.KindVideo:
		return "sent a video"
	case models.KindDocument:
		return "sent a document"
	case models.KindOther:
		return "sent a file"
	default:
		return ""
	}
}
