package realtime

import (
	"sync"
	"time"

	"github.com/fazil2161/pingme/internal/domain"
)

// Conn is the transport-level handle the registry tracks. Send must never
// block: implementations drop the event when the peer is lagging.
type Conn interface {
	ID() string
	Send(ev Event) bool
	Close()
}

type entry struct {
	conn           Conn
	userID         string
	username       string
	connectedAt    time.Time
	lastActivityAt time.Time
}

// Registry is the single source of truth for which users are reachable over
// a live push channel. It holds at most one connection per user: a second
// register for the same user displaces the first (last-writer-wins). All
// mutation goes through Register, Unregister, Touch and EvictStale; nothing
// else may modify the map.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*entry
	now    func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]*entry),
		now:    time.Now,
	}
}

// Register admits or replaces the mapping for userID and returns the
// displaced connection, if any, so the caller can force-close it.
func (r *Registry) Register(userID, username string, conn Conn) Conn {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	var displaced Conn
	if prev, ok := r.byUser[userID]; ok && prev.conn.ID() != conn.ID() {
		displaced = prev.conn
	}
	r.byUser[userID] = &entry{
		conn:           conn,
		userID:         userID,
		username:       username,
		connectedAt:    now,
		lastActivityAt: now,
	}
	return displaced
}

// Unregister removes the mapping only if the stored connection matches
// connID. A stale disconnect for a connection that has already been replaced
// is a no-op. Reports whether an entry was actually removed.
func (r *Registry) Unregister(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byUser[userID]
	if !ok || e.conn.ID() != connID {
		return false
	}
	delete(r.byUser, userID)
	return true
}

// Lookup returns the live connection for userID, if any.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byUser[userID]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Touch refreshes the liveness timestamp for userID. Called on every
// recognized inbound event, including the explicit activity heartbeat.
func (r *Registry) Touch(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byUser[userID]; ok {
		e.lastActivityAt = r.now()
	}
}

// Send delivers an event to userID's connection if one is registered.
// Reports whether the user was online and the event was queued.
func (r *Registry) Send(userID string, ev Event) bool {
	conn, ok := r.Lookup(userID)
	if !ok {
		return false
	}
	return conn.Send(ev)
}

// Broadcast queues an event on every connection except exceptUserID.
func (r *Registry) Broadcast(ev Event, exceptUserID string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for uid, e := range r.byUser {
		if uid == exceptUserID {
			continue
		}
		e.conn.Send(ev)
	}
}

// Snapshot returns a point-in-time view of all registered connections.
// It is not transactionally consistent with concurrent mutation; it exists
// for diagnostics only.
func (r *Registry) Snapshot() []domain.ConnectionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ConnectionInfo, 0, len(r.byUser))
	for _, e := range r.byUser {
		out = append(out, domain.ConnectionInfo{
			UserID:         e.userID,
			Username:       e.username,
			ConnectedAt:    e.connectedAt,
			LastActivityAt: e.lastActivityAt,
		})
	}
	return out
}

// Evicted describes a connection removed by EvictStale.
type Evicted struct {
	UserID   string
	Username string
	Conn     Conn
}

// EvictStale removes every entry whose last activity is older than cutoff
// and returns the evicted connections. Removal happens under the lock so a
// concurrently-arriving Touch cannot resurrect an evicted entry.
func (r *Registry) EvictStale(cutoff time.Time) []Evicted {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []Evicted
	for uid, e := range r.byUser {
		if e.lastActivityAt.Before(cutoff) {
			evicted = append(evicted, Evicted{UserID: uid, Username: e.username, Conn: e.conn})
			delete(r.byUser, uid)
		}
	}
	return evicted
}
