package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory Conn for registry and sweeper tests.
type fakeConn struct {
	mu     sync.Mutex
	id     string
	sent   []Event
	closed bool
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.sent = append(c.sent, ev)
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) sentEvents() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	conn := newFakeConn("c1")

	displaced := r.Register("u1", "alice", conn)
	assert.Nil(t, displaced)
	assert.True(t, r.IsOnline("u1"))

	got, ok := r.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "c1", got.ID())
}

func TestRegistry_LastWriterWins(t *testing.T) {
	r := NewRegistry()
	first := newFakeConn("c1")
	second := newFakeConn("c2")

	require.Nil(t, r.Register("u1", "alice", first))
	displaced := r.Register("u1", "alice", second)

	require.NotNil(t, displaced)
	assert.Equal(t, "c1", displaced.ID())

	got, ok := r.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "c2", got.ID())
}

func TestRegistry_UnregisterMatchesConnection(t *testing.T) {
	r := NewRegistry()
	first := newFakeConn("c1")
	second := newFakeConn("c2")

	r.Register("u1", "alice", first)
	r.Register("u1", "alice", second)

	// The stale close from the displaced connection must not knock the
	// replacement offline.
	assert.False(t, r.Unregister("u1", "c1"))
	assert.True(t, r.IsOnline("u1"))

	assert.True(t, r.Unregister("u1", "c2"))
	assert.False(t, r.IsOnline("u1"))
}

func TestRegistry_UnregisterUnknownUser(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Unregister("ghost", "c1"))
}

func TestRegistry_SendToOfflineUser(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Send("u1", NewEvent(EventNewNotification, nil)))
}

func TestRegistry_BroadcastSkipsSender(t *testing.T) {
	r := NewRegistry()
	alice := newFakeConn("c1")
	bob := newFakeConn("c2")
	r.Register("u1", "alice", alice)
	r.Register("u2", "bob", bob)

	r.Broadcast(NewEvent(EventUserOnline, PresencePayload{UserID: "u1"}), "u1")

	assert.Empty(t, alice.sentEvents())
	require.Len(t, bob.sentEvents(), 1)
	assert.Equal(t, EventUserOnline, bob.sentEvents()[0].Event)
}

func TestRegistry_TouchRefreshesActivity(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	r.now = func() time.Time { return now }

	r.Register("u1", "alice", newFakeConn("c1"))

	now = base.Add(10 * time.Minute)
	r.Touch("u1")

	// The cutoff sits after the register time but before the touch, so a
	// touched entry must survive.
	evicted := r.EvictStale(base.Add(5 * time.Minute))
	assert.Empty(t, evicted)
	assert.True(t, r.IsOnline("u1"))
}

func TestRegistry_EvictStale(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	r.now = func() time.Time { return now }

	stale := newFakeConn("c1")
	fresh := newFakeConn("c2")
	r.Register("u1", "alice", stale)

	now = base.Add(10 * time.Minute)
	r.Register("u2", "bob", fresh)

	evicted := r.EvictStale(base.Add(5 * time.Minute))
	require.Len(t, evicted, 1)
	assert.Equal(t, "u1", evicted[0].UserID)
	assert.Equal(t, "alice", evicted[0].Username)

	assert.False(t, r.IsOnline("u1"))
	assert.True(t, r.IsOnline("u2"))
}

func TestRegistry_Snapshot(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "alice", newFakeConn("c1"))
	r.Register("u2", "bob", newFakeConn("c2"))

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	names := map[string]string{}
	for _, info := range snap {
		names[info.UserID] = info.Username
	}
	assert.Equal(t, "alice", names["u1"])
	assert.Equal(t, "bob", names["u2"])
}
