package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Memory is an in-process Store guarded by a RWMutex.
//
// With ttl == 0 entries never expire. With maxEntries > 0 the oldest entry
// is dropped when the bound is reached.
type Memory[V any] struct {
	mu         sync.RWMutex
	entries    map[string]*entry[V]
	order      []string
	ttl        time.Duration
	maxEntries int

	hits   atomic.Uint64
	misses atomic.Uint64

	now func() time.Time
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewMemory creates an in-process store.
func NewMemory[V any](ttl time.Duration, maxEntries int) *Memory[V] {
	return &Memory[V]{
		entries:    make(map[string]*entry[V]),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the value stored under key.
func (m *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || m.expired(e) {
		m.misses.Add(1)
		var zero V
		return zero, false, nil
	}
	m.hits.Add(1)
	return e.value, true, nil
}

// Set stores value under key.
func (m *Memory[V]) Set(_ context.Context, key string, value V) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := &entry[V]{value: value}
	if m.ttl > 0 {
		e.expiresAt = m.now().Add(m.ttl)
	}

	if _, exists := m.entries[key]; !exists {
		if m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
			m.evictLocked()
		}
		m.order = append(m.order, key)
	}
	m.entries[key] = e
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stats returns hit/miss counters.
func (m *Memory[V]) Stats() Stats {
	return Stats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
		Size:   m.Len(),
	}
}

func (m *Memory[V]) expired(e *entry[V]) bool {
	return !e.expiresAt.IsZero() && m.now().After(e.expiresAt)
}

// evictLocked drops expired entries, then the oldest one if still full.
// Caller must hold m.mu.
func (m *Memory[V]) evictLocked() {
	kept := m.order[:0]
	for _, key := range m.order {
		if e, ok := m.entries[key]; ok && m.expired(e) {
			delete(m.entries, key)
			continue
		}
		kept = append(kept, key)
	}
	m.order = kept

	for len(m.entries) >= m.maxEntries && len(m.order) > 0 {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.entries, oldest)
	}
}
