package realtime

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically evicts registry entries whose connection has gone
// silent without a clean disconnect. It compensates for network drops that
// never deliver a close frame and would otherwise leave a user "online"
// forever.
type Sweeper struct {
	registry  *Registry
	hub       *Hub
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
}

func NewSweeper(registry *Registry, hub *Hub, interval, threshold time.Duration) *Sweeper {
	return &Sweeper{
		registry:  registry,
		hub:       hub,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep evicts every stale entry: remove from the registry, announce the
// user offline exactly once, and force-close the transport if it is still
// technically open.
func (s *Sweeper) sweep() {
	cutoff := s.now().Add(-s.threshold)
	for _, ev := range s.registry.EvictStale(cutoff) {
		slog.Info("sweeping inactive connection", "user_id", ev.UserID, "username", ev.Username)
		s.hub.AnnounceOffline(ev.UserID, ev.Username)
		ev.Conn.Close()
	}
}
