package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docsight-api/internal/metrics"
)

// Manager is the registry of live sessions. Sessions idle for longer than the
// TTL are evicted and closed.
type Manager struct {
	cache *cache.Cache
	ttl   time.Duration
	opts  Options
	log   *zap.Logger
}

// NewManager creates a registry whose sessions expire after ttl of inactivity.
func NewManager(ttl time.Duration, opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cleanup := ttl / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	m := &Manager{
		cache: cache.New(ttl, cleanup),
		ttl:   ttl,
		opts:  opts,
		log:   log.Named("sessions"),
	}
	m.cache.OnEvicted(func(id string, v interface{}) {
		if s, ok := v.(*Session); ok {
			s.Close()
			metrics.ActiveSessions.Dec()
			m.log.Debug("session evicted", zap.String("session", id))
		}
	})
	return m
}

// TTL returns the idle expiry of sessions.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create registers a new empty session.
func (m *Manager) Create() *Session {
	s := New(uuid.NewString(), m.opts)
	m.cache.Set(s.ID, s, cache.DefaultExpiration)
	metrics.ActiveSessions.Inc()
	m.log.Info("session created", zap.String("session", s.ID))
	return s
}

// Get returns a live session and refreshes its expiry.
//
// The janitor may evict and close the session between the lookup and the
// refresh. Replace fails once the item is gone, so an evicted session is never
// put back, and a closed one still sitting in the cache counts as not found.
func (m *Manager) Get(id string) (*Session, bool) {
	x, found := m.cache.Get(id)
	if !found {
		return nil, false
	}
	s := x.(*Session)
	if s.isClosed() {
		return nil, false
	}
	if err := m.cache.Replace(id, s, cache.DefaultExpiration); err != nil {
		return nil, false
	}
	return s, true
}

// Delete closes and removes a session.
func (m *Manager) Delete(id string) {
	m.cache.Delete(id)
}

// Count returns the number of registered sessions, expired ones included
// until the next cleanup.
func (m *Manager) Count() int {
	return m.cache.ItemCount()
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	for id, item := range m.cache.Items() {
		if s, ok := item.Object.(*Session); ok {
			s.Close()
		}
		m.log.Debug("session closed on shutdown", zap.String("session", id))
	}
	m.cache.Flush()
	metrics.ActiveSessions.Set(0)
}
