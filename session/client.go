package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Ajay-css/chatify/models"
	"github.com/Ajay-css/chatify/pkg"
	"github.com/Ajay-css/chatify/pkg/logger"
	"github.com/Ajay-css/chatify/ws"
)

const (
	defaultHeartbeatInterval = 25 * time.Second
	defaultMinBackoff        = 500 * time.Millisecond
	defaultMaxBackoff        = 30 * time.Second
	clientWriteWait          = 10 * time.Second
)

// ErrNotConnected is returned by writes while the socket is down.
var ErrNotConnected = errors.New("session: not connected")

type ClientConfig struct {
	// ServerURL is the HTTP base URL; the socket URL is derived from it.
	ServerURL string
	Token     string
	UserID    string

	HeartbeatInterval time.Duration
	MinBackoff        time.Duration
	MaxBackoff        time.Duration

	Dialer *websocket.Dialer
}

// Client keeps one WebSocket open for a State: it dispatches server pushes
// onto the state, sends heartbeats, and redials with exponential backoff.
type Client struct {
	cfg   ClientConfig
	state *State

	writeMu sync.Mutex
	connMu  sync.RWMutex
	conn    *websocket.Conn

	connected chan struct{} // closed on the first successful dial
	once      sync.Once
}

func NewClient(state *State, cfg ClientConfig) *Client {
	if state == nil {
		panic("session: state must not be nil")
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = defaultMinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = defaultMaxBackoff
		if cfg.MaxBackoff < cfg.MinBackoff {
			cfg.MaxBackoff = cfg.MinBackoff
		}
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Client{
		cfg:       cfg,
		state:     state,
		connected: make(chan struct{}),
	}
}

func (c *Client) State() *State { return c.state }

// Connected is closed once the first connection is up.
func (c *Client) Connected() <-chan struct{} { return c.connected }

// Run dials and serves the socket until ctx is done. After every reconnect
// the active conversation is re-fetched. A rejected handshake (bad token)
// ends Run with an error wrapping pkg.ErrUnauthorized.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.cfg.MinBackoff
	first := true

	for {
		conn, err := c.dial(ctx)
		switch {
		case err == nil:
			backoff = c.cfg.MinBackoff
			c.setConn(conn)
			c.once.Do(func() { close(c.connected) })

			if !first {
				if err := c.state.Reconnect(ctx); err != nil {
					logger.Warn("[session] reload after reconnect failed", zap.Error(err))
				}
			}
			first = false

			err = c.serve(ctx, conn)
			c.setConn(nil)
			c.state.HandleDisconnect()
			logger.Debug("[session] connection closed", zap.Error(err))

		case ctx.Err() != nil:
			return ctx.Err()

		default:
			var apiErr *APIError
			if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
				return err
			}
			logger.Warn("[session] dial failed", zap.Duration("retry_in", backoff), zap.Error(err))
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.cfg.MaxBackoff)
	}
}

// SelectPartner opens the conversation and tells the server the partner's
// messages were seen.
func (c *Client) SelectPartner(ctx context.Context, partnerID string) error {
	if err := c.state.SelectPartner(ctx, partnerID); err != nil {
		return err
	}
	if err := c.send(ws.Event{Op: ws.OpMarkMessagesAsSeen, Data: ws.MarkSeenData{UserID: partnerID}}); err != nil {
		logger.Debug("[session] mark seen not sent", zap.String("partner", partnerID), zap.Error(err))
	}
	return nil
}

// Close closes the current socket, if any. Run notices and redials unless
// its context is done.
func (c *Client) Close() error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := SocketURL(c.cfg.ServerURL, c.cfg.UserID, c.cfg.Token)
	if err != nil {
		return nil, err
	}

	conn, resp, err := c.cfg.Dialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("handshake rejected: %s", resp.Status)}
		}
		return nil, err
	}
	return conn, nil
}

// serve blocks until the connection fails or ctx is done.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(c.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				if err := c.send(ws.Event{Op: ws.OpHeartbeat}); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var event ws.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			logger.Debug("[session] invalid frame", zap.Error(err))
			continue
		}
		c.dispatch(event)
	}
}

func (c *Client) dispatch(event ws.Event) {
	switch event.Op {
	case ws.OpGetOnlineUsers:
		var ids []string
		if err := ws.DecodeData(event, &ids); err != nil {
			logger.Debug("[session] bad online set", zap.Error(err))
			return
		}
		c.state.HandleOnlineUsers(ids)

	case ws.OpNewMessage:
		var msg models.Message
		if err := ws.DecodeData(event, &msg); err != nil {
			logger.Debug("[session] bad message push", zap.Error(err))
			return
		}
		c.state.HandleNewMessage(msg)

	case ws.OpMessagesSeen:
		var data ws.MessagesSeenData
		if err := ws.DecodeData(event, &data); err != nil {
			logger.Debug("[session] bad seen receipt", zap.Error(err))
			return
		}
		c.state.HandleMessagesSeen(data.UserID, data.SeenAt)

	case ws.OpHeartbeatAck:
		// read deadline is the server's concern

	default:
		logger.Debugf("[session] unknown op: %s", event.Op)
	}
}

func (c *Client) send(event ws.Event) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(clientWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
}

// SocketURL turns an HTTP base URL into the /ws handshake URL.
func SocketURL(serverURL, userID, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return "", fmt.Errorf("%w: invalid server url: %v", pkg.ErrBadRequest, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", pkg.ErrBadRequest, u.Scheme)
	}
	u.Path += "/ws"

	q := url.Values{}
	q.Set("userId", userID)
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
