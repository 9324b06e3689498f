package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Ajay-css/chatify/pkg/logger"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
)

// Conn is the registry's view of a live connection: something a payload can
// be pushed to.
type Conn interface {
	Push(event Event) error
}

// Registry answers "is this user reachable in real time right now".
// Lookup never blocks on I/O.
type Registry interface {
	Lookup(userID string) (Conn, bool)
	OnlineUserIDs() []string
}

// PresenceStore mirrors the online set somewhere outside the process.
// The hub never reads it back; the in-memory map stays authoritative.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

type presenceUpdate struct {
	userID string
	online bool
}

// Hub is the connection registry and presence broadcaster.
//
// It tracks at most one connection per user; a newer connection for the same
// user replaces the older one (last socket wins). Every change to the map is
// followed by a full online-set broadcast while the write lock is still
// held, so no client can observe a registry state without its broadcast.
// Sends are non-blocking channel writes, which keeps the lock hold short.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex

	seq atomic.Int64

	presence      PresenceStore
	presenceQueue chan presenceUpdate
	presenceStop  chan struct{}

	onMarkSeen func(viewerID, partnerID string)
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// SetPresenceStore enables the presence mirror. Updates are applied in order
// by a single worker goroutine; a full queue drops the update with a warning.
func (h *Hub) SetPresenceStore(store PresenceStore) {
	if store == nil {
		return
	}
	h.presence = store
	h.presenceQueue = make(chan presenceUpdate, 256)
	h.presenceStop = make(chan struct{})
	go h.presenceWorker()
}

// OnMarkSeen sets the callback invoked when a client reports that it has
// viewed a conversation. It runs on its own goroutine.
func (h *Hub) OnMarkSeen(fn func(viewerID, partnerID string)) {
	h.onMarkSeen = fn
}

// Register stores client as the live connection of its user, replacing any
// previous one. The displaced connection is closed. Never fails.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.clients[client.userID]; ok && old != client {
		h.closeLocked(old)
		logger.Info("[ws] connection replaced",
			zap.String("user", client.userID),
			zap.String("old_conn", old.id),
			zap.String("new_conn", client.id))
	}
	h.clients[client.userID] = client

	logger.Info("[ws] client connected",
		zap.String("user", client.userID),
		zap.String("conn", client.id),
		zap.Int("online", len(h.clients)))

	h.broadcastOnlineLocked()
	h.queuePresence(client.userID, true)
}

// Unregister removes the user's connection if there is one. Calling it for
// an absent user is a no-op apart from the (unchanged) presence resync.
func (h *Hub) Unregister(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, ok := h.clients[userID]; ok {
		delete(h.clients, userID)
		h.closeLocked(client)
		logger.Info("[ws] client disconnected",
			zap.String("user", userID),
			zap.String("conn", client.id),
			zap.Duration("connected_for", time.Since(client.ConnectedAt())))
		h.queuePresence(userID, false)
	}

	h.broadcastOnlineLocked()
}

// release is the disconnect path of a connection's own pumps. It only
// unregisters when client is still the user's current connection, so a
// replaced socket closing late never evicts its successor.
func (h *Hub) release(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closeLocked(client)

	if current, ok := h.clients[client.userID]; !ok || current != client {
		return
	}

	delete(h.clients, client.userID)
	logger.Info("[ws] client disconnected",
		zap.String("user", client.userID),
		zap.String("conn", client.id),
		zap.Duration("connected_for", time.Since(client.ConnectedAt())))

	h.broadcastOnlineLocked()
	h.queuePresence(client.userID, false)
}

// Lookup returns the user's live connection. Pure read.
func (h *Hub) Lookup(userID string) (Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[userID]
	if !ok {
		return nil, false
	}
	return client, true
}

// IsOnline reports whether userID currently holds a connection.
func (h *Hub) IsOnline(userID string) bool {
	_, ok := h.Lookup(userID)
	return ok
}

// OnlineUserIDs returns the online set, sorted.
func (h *Hub) OnlineUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.onlineLocked()
}

// SendToUser pushes event to the user's connection, if any. It reports
// whether the event was queued.
func (h *Hub) SendToUser(userID string, event Event) bool {
	conn, ok := h.Lookup(userID)
	if !ok {
		return false
	}
	return conn.Push(event) == nil
}

// Shutdown closes every connection and clears the registry.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		h.closeLocked(client)
	}
	h.clients = make(map[string]*Client)

	if h.presenceStop != nil {
		close(h.presenceStop)
		h.presenceStop = nil
	}
	logger.Info("[ws] hub shut down, all connections closed")
}

func (h *Hub) onlineLocked() []string {
	ids := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		ids = append(ids, userID)
	}
	sort.Strings(ids)
	return ids
}

// broadcastOnlineLocked requires h.mu to be held (read or write).
func (h *Hub) broadcastOnlineLocked() {
	data, err := h.encode(Event{Op: OpGetOnlineUsers, Data: h.onlineLocked()})
	if err != nil {
		logger.Errorf("[ws] failed to marshal online users: %v", err)
		return
	}

	for _, client := range h.clients {
		if err := client.enqueueLocked(data); err != nil {
			logger.Warn("[ws] presence broadcast dropped",
				zap.String("user", client.userID), zap.Error(err))
		}
	}
}

// closeLocked requires the write lock. Safe to call more than once.
func (h *Hub) closeLocked(client *Client) {
	if client.closed {
		return
	}
	client.closed = true
	close(client.send)
}

func (h *Hub) encode(event Event) ([]byte, error) {
	event.Seq = h.seq.Add(1)
	return json.Marshal(event)
}

func (h *Hub) queuePresence(userID string, online bool) {
	if h.presenceQueue == nil {
		return
	}
	select {
	case h.presenceQueue <- presenceUpdate{userID: userID, online: online}:
	default:
		logger.Warn("[presence] mirror queue full, update dropped", zap.String("user", userID))
	}
}

func (h *Hub) presenceWorker() {
	stop := h.presenceStop
	for {
		select {
		case u := <-h.presenceQueue:
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			var err error
			if u.online {
				err = h.presence.SetOnline(ctx, u.userID)
			} else {
				err = h.presence.SetOffline(ctx, u.userID)
			}
			cancel()
			if err != nil {
				logger.Warn("[presence] mirror update failed",
					zap.String("user", u.userID), zap.Bool("online", u.online), zap.Error(err))
			}
		case <-stop:
			return
		}
	}
}

// refreshPresence renews the mirror entry of a live user (heartbeat path).
func (h *Hub) refreshPresence(userID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[userID]; ok {
		h.queuePresence(userID, true)
	}
}
