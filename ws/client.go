package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Ajay-css/chatify/pkg/logger"
)

const (
	writeWait = 10 * time.Second

	defaultPongWait = 60 * time.Second

	maxMessageSize = 4096

	sendBufferSize = 256
)

// Client is one live WebSocket connection owned by the hub.
//
// Two goroutines serve it: ReadPump (inbound frames, disconnect detection)
// and WritePump (the only writer on conn). Everything else talks to it
// through the buffered send channel.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	id          string
	userID      string
	connectedAt time.Time
	pongWait    time.Duration

	send chan []byte

	// closed is guarded by hub.mu; send is closed exactly once, under the
	// write lock, and only written to while the lock is held.
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, userID string, pongWait time.Duration) *Client {
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	return &Client{
		hub:         hub,
		conn:        conn,
		id:          uuid.NewString(),
		userID:      userID,
		connectedAt: time.Now(),
		pongWait:    pongWait,
		send:        make(chan []byte, sendBufferSize),
	}
}

func (c *Client) ID() string             { return c.id }
func (c *Client) UserID() string         { return c.userID }
func (c *Client) ConnectedAt() time.Time { return c.connectedAt }

// Push queues event for delivery on this connection. It never blocks: a
// closed connection or a full buffer is reported as an error and the caller
// decides whether that matters.
func (c *Client) Push(event Event) error {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	data, err := c.hub.encode(event)
	if err != nil {
		return err
	}
	return c.enqueueLocked(data)
}

// enqueueLocked requires hub.mu (read or write). A full buffer means the
// peer is not reading; the connection is dropped asynchronously.
func (c *Client) enqueueLocked(data []byte) error {
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		go c.hub.release(c)
		return ErrSendBufferFull
	}
}

// ReadPump reads frames until the connection fails, then releases the
// client from the hub. It blocks; the HTTP handler goroutine runs it.
//
// A silent peer is evicted when the read deadline passes: pongs (answers to
// WritePump's pings) and heartbeat frames both push the deadline forward.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.release(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
		logger.Warnf("[ws] failed to set read deadline for user %s: %v", c.userID, err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("[ws] unexpected close", zap.String("user", c.userID), zap.Error(err))
			}
			return
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			logger.Debug("[ws] invalid frame", zap.String("user", c.userID), zap.Error(err))
			continue
		}

		c.handleEvent(event)
	}
}

func (c *Client) handleEvent(event Event) {
	switch event.Op {
	case OpHeartbeat:
		if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
			logger.Warnf("[ws] failed to set read deadline for user %s: %v", c.userID, err)
			return
		}
		c.hub.refreshPresence(c.userID)
		if err := c.Push(Event{Op: OpHeartbeatAck}); err != nil {
			logger.Debug("[ws] heartbeat ack dropped", zap.String("user", c.userID), zap.Error(err))
		}

	case OpMarkMessagesAsSeen:
		c.handleMarkSeen(event)

	default:
		logger.Debugf("[ws] unknown op from user %s: %s", c.userID, event.Op)
	}
}

func (c *Client) handleMarkSeen(event Event) {
	var data MarkSeenData
	if err := DecodeData(event, &data); err != nil || data.UserID == "" {
		logger.Debugf("[ws] markMessagesAsSeen without userId from user %s", c.userID)
		return
	}

	if c.hub.onMarkSeen != nil {
		go c.hub.onMarkSeen(c.userID, data.UserID)
	}
}

// WritePump drains the send channel onto the socket and pings the peer.
// It exits when the hub closes the channel or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
