// Package session issues session identifiers and retires idle sessions.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"
)

const (
	// HeaderName carries the session identifier on every request.
	HeaderName = "X-Session-ID"
	// QueryParam is the fallback for clients that cannot set headers.
	QueryParam = "session_id"

	minSweepInterval = 30 * time.Second
)

// Coordinator owns session identity and the idle-eviction janitor.
type Coordinator struct {
	store  Evictor
	ttl    time.Duration
	logger *slog.Logger
}

// Evictor is the slice of the store the coordinator drives.
type Evictor interface {
	Evict(sessionID string)
	Sweep(ttl time.Duration) int
}

func New(store Evictor, ttl time.Duration, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// NewID mints a fresh session identifier.
func (c *Coordinator) NewID() string {
	return xid.New().String()
}

// Resolve extracts the caller's session ID from the header or, failing that,
// the query string. The boolean is false when neither is present.
func (c *Coordinator) Resolve(r *http.Request) (string, bool) {
	if id := r.Header.Get(HeaderName); id != "" {
		return id, true
	}
	if id := r.URL.Query().Get(QueryParam); id != "" {
		return id, true
	}
	return "", false
}

// Evict removes a single session immediately.
func (c *Coordinator) Evict(sessionID string) {
	c.store.Evict(sessionID)
}

// Start runs the TTL janitor until ctx is cancelled. Sessions idle longer
// than the configured TTL are swept on each tick.
func (c *Coordinator) Start(ctx context.Context) {
	interval := c.ttl / 4
	if interval < minSweepInterval {
		interval = minSweepInterval
	}

	c.logger.Info("session janitor started",
		slog.Duration("ttl", c.ttl),
		slog.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("session janitor stopped")
			return
		case <-ticker.C:
			if n := c.store.Sweep(c.ttl); n > 0 {
				c.logger.Info("idle sessions evicted", slog.Int("count", n))
			}
		}
	}
}
