package cache

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pario-ai/promptlab/pkg/models"
)

// Memory is an in-process Store guarded by a single lock.
type Memory struct {
	opts   Options
	hits   atomic.Int64
	misses atomic.Int64

	mu      sync.RWMutex
	entries map[string]*models.CacheEntry
	order   []string
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory cache.
func NewMemory(opts ...Option) *Memory {
	return &Memory{
		opts:    BuildOptions(opts...),
		entries: make(map[string]*models.CacheEntry),
	}
}

// Create stores a copy of the content under a new handle.
func (m *Memory) Create(_ context.Context, n models.NewCacheEntry) (*models.CacheEntry, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	now := m.opts.Clock.Now()
	expires, err := ExpiresAt(now, n.TTL)
	if err != nil {
		return nil, err
	}
	e := &models.CacheEntry{
		Handle:            NewHandle(),
		ModelID:           n.ModelID,
		Payload:           ClonePayload(n.Payload),
		SystemInstruction: n.SystemInstruction,
		DisplayName:       n.DisplayName,
		CreatedAt:         now,
		ExpiresAt:         expires,
	}

	m.mu.Lock()
	m.entries[e.Handle] = e
	m.order = append(m.order, e.Handle)
	m.mu.Unlock()

	m.opts.Logger.Debug().Str("handle", e.Handle).Str("model", e.ModelID).Time("expires_at", e.ExpiresAt).Msg("cache entry created")
	return cloneEntry(e), nil
}

// Get returns the entry if it exists and has not expired.
func (m *Memory) Get(_ context.Context, handle string) (*models.CacheEntry, error) {
	now := m.opts.Clock.Now()

	m.mu.RLock()
	e, ok := m.entries[handle]
	if ok && e.Expired(now) {
		ok = false
	}
	var out *models.CacheEntry
	if ok {
		out = cloneEntry(e)
	}
	m.mu.RUnlock()

	if !ok {
		m.misses.Add(1)
		return nil, NotFound(handle)
	}
	m.hits.Add(1)
	return out, nil
}

// List returns unexpired entries in creation order.
func (m *Memory) List(_ context.Context) ([]models.CacheEntry, error) {
	now := m.opts.Clock.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.CacheEntry, 0, len(m.order))
	for _, h := range m.order {
		e := m.entries[h]
		if e.Expired(now) {
			continue
		}
		out = append(out, *cloneEntry(e))
	}
	return out, nil
}

// Delete removes the entry, expired or not.
func (m *Memory) Delete(_ context.Context, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[handle]; !ok {
		return NotFound(handle)
	}
	m.remove(handle)
	m.opts.Logger.Debug().Str("handle", handle).Msg("cache entry deleted")
	return nil
}

// remove must be called with m.mu held for writing.
func (m *Memory) remove(handle string) {
	delete(m.entries, handle)
	m.order = slices.DeleteFunc(m.order, func(h string) bool { return h == handle })
}

// ExtendTTL resets the expiry of a live entry to now+ttl.
func (m *Memory) ExtendTTL(_ context.Context, handle string, ttl time.Duration) (*models.CacheEntry, error) {
	now := m.opts.Clock.Now()
	expires, err := ExpiresAt(now, ttl)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[handle]
	if !ok || e.Expired(now) {
		return nil, NotFound(handle)
	}
	e.ExpiresAt = expires

	m.opts.Logger.Debug().Str("handle", handle).Time("expires_at", e.ExpiresAt).Msg("cache entry extended")
	return cloneEntry(e), nil
}

// Purge drops expired entries.
func (m *Memory) Purge(_ context.Context) (int64, error) {
	now := m.opts.Clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for h, e := range m.entries {
		if e.Expired(now) {
			delete(m.entries, h)
			n++
		}
	}
	if n > 0 {
		m.order = slices.DeleteFunc(m.order, func(h string) bool {
			_, ok := m.entries[h]
			return !ok
		})
	}
	return n, nil
}

// Stats reports entry counts and lookup counters.
func (m *Memory) Stats(_ context.Context) (models.CacheStats, error) {
	now := m.opts.Clock.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := models.CacheStats{
		Entries: int64(len(m.entries)),
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
	}
	for _, e := range m.entries {
		if !e.Expired(now) {
			stats.Active++
		}
	}
	return stats, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

func cloneEntry(e *models.CacheEntry) *models.CacheEntry {
	c := *e
	c.Payload = ClonePayload(e.Payload)
	return &c
}
