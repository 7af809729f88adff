// Package sessions holds the in-memory conversation registry. Sessions are
// per process; distributed deployments pin a conversation to one instance
// or swap this package for a shared store.
package sessions

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/haven-ai/haven/internal/engine"
)

// DefaultTTL is how long an idle session survives before the sweeper
// evicts it.
const DefaultTTL = 30 * time.Minute

const sweepInterval = 1 * time.Minute

type entry struct {
	mu       sync.Mutex
	session  *engine.Session
	lastSeen atomic.Int64 // unix nanoseconds, so the sweeper reads it lock-free
}

// Registry is a thread-safe map of live conversation sessions keyed by
// project and session id. Session state is only touched inside Do, under
// the per-session lock, so concurrent requests for the same conversation
// serialize while different conversations proceed in parallel.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	logger  *zap.Logger
}

// NewRegistry creates an empty registry with the given idle TTL.
func NewRegistry(ttl time.Duration, logger *zap.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		entries: make(map[string]*entry),
		ttl:     ttl,
		logger:  logger,
	}
}

func key(projectID, sessionID string) string {
	return projectID + "/" + sessionID
}

// Do runs fn with the session for (projectID, sessionID), creating it at
// STANDARD on first use. fn holds the session's lock for its duration and
// must not retain the session afterwards.
func (r *Registry) Do(projectID, sessionID string, fn func(*engine.Session)) {
	k := key(projectID, sessionID)

	for {
		r.mu.RLock()
		e := r.entries[k]
		r.mu.RUnlock()

		if e == nil {
			r.mu.Lock()
			e = r.entries[k]
			if e == nil {
				e = &entry{session: engine.NewSession(0)}
				e.lastSeen.Store(time.Now().UnixNano())
				r.entries[k] = e
			}
			r.mu.Unlock()
		}

		e.mu.Lock()
		// The sweeper (or Delete) may have removed the key between the
		// lookup and this lock; mutating an orphaned session would lose
		// the turn, so re-check membership and retry against the map.
		r.mu.RLock()
		current := r.entries[k] == e
		r.mu.RUnlock()
		if !current {
			e.mu.Unlock()
			continue
		}

		e.lastSeen.Store(time.Now().UnixNano())
		fn(e.session)
		e.mu.Unlock()
		return
	}
}

// Delete removes a session, reporting whether it existed. The next turn on
// the same id starts a fresh session at STANDARD.
func (r *Registry) Delete(projectID, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(projectID, sessionID)
	_, ok := r.entries[k]
	delete(r.entries, k)
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Run sweeps idle sessions until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.sweep(time.Now()); n > 0 {
				r.logger.Debug("evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}

func (r *Registry) sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for k, e := range r.entries {
		if now.Sub(time.Unix(0, e.lastSeen.Load())) > r.ttl {
			delete(r.entries, k)
			evicted++
		}
	}
	return evicted
}
