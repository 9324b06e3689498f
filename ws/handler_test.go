package ws

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ajay-css/chatify/models"
)

type staticValidator map[string]string

func (v staticValidator) ValidateAccessToken(token string) (*models.TokenClaims, error) {
	userID, ok := v[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &models.TokenClaims{UserID: userID}, nil
}

func newTestServer(t *testing.T, validator TokenValidator, setup ...func(*Hub)) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	for _, fn := range setup {
		fn(hub)
	}
	h := NewHandler(hub, validator, nil, 2*time.Second)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleConnection))
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})
	return hub, srv
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e Event
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func TestNewHandlerNilHubPanics(t *testing.T) {
	assert.Panics(t, func() { NewHandler(nil, nil, nil, 0) })
}

func TestHandshakeRejectsMissingUserID(t *testing.T) {
	_, srv := newTestServer(t, nil)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandshakeTokenChecks(t *testing.T) {
	_, srv := newTestServer(t, staticValidator{"tok-a": "alice"})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "userId=alice"), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL(srv, "userId=bob&token=tok-a"), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header := http.Header{}
	header.Set("Cookie", TokenCookieName+"=tok-a")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), header)
	require.NoError(t, err)
	defer conn.Close()

	e := readEvent(t, conn)
	var ids []string
	require.NoError(t, DecodeData(e, &ids))
	assert.Equal(t, []string{"alice"}, ids)
}

func TestConnectAndDisconnectUpdatePresence(t *testing.T) {
	hub, srv := newTestServer(t, nil)

	alice, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "userId=alice"), nil)
	require.NoError(t, err)
	defer alice.Close()
	assert.Equal(t, []string{"alice"}, onlineSet(t, readEvent(t, alice)))

	bob, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "userId=bob"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, onlineSet(t, readEvent(t, alice)))

	require.NoError(t, bob.Close())
	assert.Equal(t, []string{"alice"}, onlineSet(t, readEvent(t, alice)))
	assert.False(t, hub.IsOnline("bob"))
}

func TestHeartbeatIsAcked(t *testing.T) {
	_, srv := newTestServer(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "userId=alice"), nil)
	require.NoError(t, err)
	defer conn.Close()
	readEvent(t, conn)

	require.NoError(t, conn.WriteJSON(Event{Op: OpHeartbeat}))
	assert.Equal(t, OpHeartbeatAck, readEvent(t, conn).Op)
}

func TestMarkSeenInvokesCallback(t *testing.T) {
	got := make(chan [2]string, 1)
	_, srv := newTestServer(t, nil, func(h *Hub) {
		h.OnMarkSeen(func(viewerID, partnerID string) { got <- [2]string{viewerID, partnerID} })
	})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "userId=alice"), nil)
	require.NoError(t, err)
	defer conn.Close()
	readEvent(t, conn)

	require.NoError(t, conn.WriteJSON(Event{Op: OpMarkMessagesAsSeen, Data: MarkSeenData{UserID: "bob"}}))

	select {
	case pair := <-got:
		assert.Equal(t, [2]string{"alice", "bob"}, pair)
	case <-time.After(2 * time.Second):
		t.Fatal("mark-seen callback not invoked")
	}
}

func TestSilentPeerIsEvicted(t *testing.T) {
	hub := NewHub()
	h := NewHandler(hub, nil, nil, 200*time.Millisecond)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleConnection))
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})

	// never reads, so pings go unanswered
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "userId=alice"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.IsOnline("alice") }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return !hub.IsOnline("alice") }, 3*time.Second, 20*time.Millisecond)
}
