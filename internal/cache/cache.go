// Package cache memoizes enrichment results.
//
// A Store is keyed by the normalized lookup subject. Entries live for the
// process lifetime unless a TTL or size bound is configured.
package cache

import "context"

// Store is a key/value cache for one enrichment domain.
type Store[V any] interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) (V, bool, error)

	// Set stores value under key, replacing any previous entry.
	Set(ctx context.Context, key string, value V) error
}

// Stats reports hit/miss counters for a store.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}
