package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient builds a client without a socket; tests read frames straight
// from its send channel.
func testClient(h *Hub, userID string) *Client {
	return newClient(h, nil, userID, time.Minute)
}

func drain(t *testing.T, c *Client) []Event {
	t.Helper()
	var events []Event
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return events
			}
			var e Event
			require.NoError(t, json.Unmarshal(raw, &e))
			events = append(events, e)
		default:
			return events
		}
	}
}

func onlineSet(t *testing.T, e Event) []string {
	t.Helper()
	require.Equal(t, OpGetOnlineUsers, e.Op)
	var ids []string
	require.NoError(t, DecodeData(e, &ids))
	return ids
}

func TestRegisterBroadcastsOnlineSet(t *testing.T) {
	h := NewHub()
	alice := testClient(h, "alice")
	bob := testClient(h, "bob")

	h.Register(alice)
	h.Register(bob)

	aliceEvents := drain(t, alice)
	require.Len(t, aliceEvents, 2)
	assert.Equal(t, []string{"alice"}, onlineSet(t, aliceEvents[0]))
	assert.Equal(t, []string{"alice", "bob"}, onlineSet(t, aliceEvents[1]))

	bobEvents := drain(t, bob)
	require.Len(t, bobEvents, 1)
	assert.Equal(t, []string{"alice", "bob"}, onlineSet(t, bobEvents[0]))

	assert.True(t, h.IsOnline("alice"))
	assert.Equal(t, []string{"alice", "bob"}, h.OnlineUserIDs())
}

func TestRegisterLastConnectionWins(t *testing.T) {
	h := NewHub()
	first := testClient(h, "alice")
	second := testClient(h, "alice")

	h.Register(first)
	h.Register(second)

	conn, ok := h.Lookup("alice")
	require.True(t, ok)
	assert.Same(t, second, conn)
	assert.True(t, first.closed)
	assert.Equal(t, []string{"alice"}, h.OnlineUserIDs())

	// the replaced socket's pumps exit later; that must not evict the successor
	h.release(first)
	assert.True(t, h.IsOnline("alice"))
	assert.Empty(t, drain(t, second)[1:], "stale release must not broadcast")
}

func TestUnregisterRemovesAndBroadcasts(t *testing.T) {
	h := NewHub()
	alice := testClient(h, "alice")
	bob := testClient(h, "bob")
	h.Register(alice)
	h.Register(bob)
	drain(t, bob)

	h.Unregister("alice")

	assert.False(t, h.IsOnline("alice"))
	assert.True(t, alice.closed)

	events := drain(t, bob)
	require.Len(t, events, 1)
	assert.Equal(t, []string{"bob"}, onlineSet(t, events[0]))
}

func TestUnregisterAbsentUserStillBroadcasts(t *testing.T) {
	h := NewHub()
	bob := testClient(h, "bob")
	h.Register(bob)
	drain(t, bob)

	h.Unregister("ghost")

	events := drain(t, bob)
	require.Len(t, events, 1)
	assert.Equal(t, []string{"bob"}, onlineSet(t, events[0]))
}

func TestReleaseCurrentClient(t *testing.T) {
	h := NewHub()
	alice := testClient(h, "alice")
	bob := testClient(h, "bob")
	h.Register(alice)
	h.Register(bob)
	drain(t, bob)

	h.release(alice)
	h.release(alice)

	assert.False(t, h.IsOnline("alice"))
	events := drain(t, bob)
	require.Len(t, events, 1)
	assert.Equal(t, []string{"bob"}, onlineSet(t, events[0]))
}

func TestPushAfterCloseFails(t *testing.T) {
	h := NewHub()
	alice := testClient(h, "alice")
	h.Register(alice)
	h.Unregister("alice")

	err := alice.Push(Event{Op: OpNewMessage})
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.False(t, h.SendToUser("alice", Event{Op: OpNewMessage}))
}

func TestPushFullBufferDropsConnection(t *testing.T) {
	h := NewHub()
	alice := testClient(h, "alice")
	h.Register(alice)

	var err error
	for i := 0; i <= sendBufferSize; i++ {
		if err = alice.Push(Event{Op: OpNewMessage}); err != nil {
			break
		}
	}
	require.ErrorIs(t, err, ErrSendBufferFull)

	assert.Eventually(t, func() bool { return !h.IsOnline("alice") }, time.Second, 10*time.Millisecond)
}

func TestSeqIsMonotonic(t *testing.T) {
	h := NewHub()
	alice := testClient(h, "alice")
	h.Register(alice)
	require.NoError(t, alice.Push(Event{Op: OpNewMessage}))
	require.NoError(t, alice.Push(Event{Op: OpMessagesSeen}))

	events := drain(t, alice)
	require.Len(t, events, 3)
	assert.Less(t, events[0].Seq, events[1].Seq)
	assert.Less(t, events[1].Seq, events[2].Seq)
}

func TestConcurrentRegisterKeepsOneEntryPerUser(t *testing.T) {
	h := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Register(testClient(h, "alice"))
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"alice"}, h.OnlineUserIDs())
}

// TestRegistryMatchesReferenceSet drives the hub through random
// register/unregister/release sequences and compares it to a plain map
// after every step.
func TestRegistryMatchesReferenceSet(t *testing.T) {
	users := []string{"alice", "bob", "carol", "dave"}

	for _, seed := range []int64{1, 7, 42, 1337} {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			h := NewHub()
			current := make(map[string]*Client)
			var created []*Client

			for step := 0; step < 300; step++ {
				var broadcast bool
				var desc string

				switch op := rng.Intn(3); {
				case op == 0:
					c := testClient(h, users[rng.Intn(len(users))])
					created = append(created, c)
					h.Register(c)
					current[c.userID] = c
					broadcast = true
					desc = "register " + c.userID
				case op == 1:
					userID := users[rng.Intn(len(users))]
					h.Unregister(userID)
					delete(current, userID)
					broadcast = true
					desc = "unregister " + userID
				case len(created) > 0:
					c := created[rng.Intn(len(created))]
					h.release(c)
					if current[c.userID] == c {
						delete(current, c.userID)
						broadcast = true
					}
					desc = "release " + c.id
				default:
					continue
				}

				want := make([]string, 0, len(current))
				for userID := range current {
					want = append(want, userID)
				}
				sort.Strings(want)

				msg := fmt.Sprintf("step %d: %s", step, desc)
				assert.Equal(t, want, h.OnlineUserIDs(), msg)
				for _, userID := range users {
					_, online := current[userID]
					assert.Equal(t, online, h.IsOnline(userID), msg)
				}

				for userID, c := range current {
					events := drain(t, c)
					if !broadcast {
						assert.Empty(t, events, "%s: %s saw a broadcast", msg, userID)
						continue
					}
					require.Len(t, events, 1, "%s: %s", msg, userID)
					assert.Equal(t, want, onlineSet(t, events[0]), "%s: %s", msg, userID)
				}

				for _, c := range created {
					if current[c.userID] != c {
						assert.True(t, c.closed, "%s: displaced %s still open", msg, c.id)
					}
				}
			}
		})
	}
}

func TestShutdownClosesEverything(t *testing.T) {
	h := NewHub()
	alice := testClient(h, "alice")
	h.Register(alice)

	h.Shutdown()

	assert.Empty(t, h.OnlineUserIDs())
	assert.True(t, alice.closed)
}

type recordingPresence struct {
	mu      sync.Mutex
	updates []string
}

func (p *recordingPresence) SetOnline(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, "+"+userID)
	return nil
}

func (p *recordingPresence) SetOffline(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, "-"+userID)
	return nil
}

func (p *recordingPresence) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.updates...)
}

func TestPresenceMirrorFollowsRegistry(t *testing.T) {
	h := NewHub()
	store := &recordingPresence{}
	h.SetPresenceStore(store)
	defer h.Shutdown()

	h.Register(testClient(h, "alice"))
	h.refreshPresence("alice")
	h.Unregister("alice")
	h.refreshPresence("alice")

	want := []string{"+alice", "+alice", "-alice"}
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, store.snapshot())
	}, time.Second, 10*time.Millisecond)
}
