package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ajay-css/chatify/database"
	"github.com/Ajay-css/chatify/models"
	"github.com/Ajay-css/chatify/repository"
	"github.com/Ajay-css/chatify/ws"
)

// fakeConn records pushed events; failWith makes every push fail.
type fakeConn struct {
	mu       sync.Mutex
	events   []ws.Event
	failWith error
}

func (c *fakeConn) Push(e ws.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	c.events = append(c.events, e)
	return nil
}

func (c *fakeConn) Events() []ws.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ws.Event(nil), c.events...)
}

type fakeRegistry struct {
	mu    sync.Mutex
	conns map[string]*fakeConn
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{conns: make(map[string]*fakeConn)}
}

func (r *fakeRegistry) connect(userID string) *fakeConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &fakeConn{}
	r.conns[userID] = c
	return c
}

func (r *fakeRegistry) Lookup(userID string) (ws.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[userID]
	if !ok {
		return nil, false
	}
	return c, true
}

func (r *fakeRegistry) OnlineUserIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

type testEnv struct {
	users    repository.UserRepository
	messages repository.MessageRepository
	registry *fakeRegistry
	router   MessageRouter
	service  MessageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewEmbedded(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		users:    repository.NewSQLiteUserRepo(db.Conn),
		messages: repository.NewSQLiteMessageRepo(db.Conn),
		registry: newFakeRegistry(),
	}
	env.router = NewMessageRouter(env.registry, env.messages)
	env.service = NewMessageService(env.users, env.messages, env.router, env.registry)
	return env
}

func (e *testEnv) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{FullName: name, Email: name + "@example.com", PasswordHash: "x"}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

// pushedMessage decodes the payload of a newMessage event.
func pushedMessage(t *testing.T, e ws.Event) models.Message {
	t.Helper()
	require.Equal(t, ws.OpNewMessage, e.Op)
	raw, err := json.Marshal(e.Data)
	require.NoError(t, err)
	var m models.Message
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

var testTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
