package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store shared across engine instances. Values are stored as JSON
// under "<prefix>:<namespace>:<key>".
type Redis[V any] struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisClient connects to redisURL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string, maxRetries, poolSize int) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if maxRetries > 0 {
		opt.MaxRetries = maxRetries
	}
	if poolSize > 0 {
		opt.PoolSize = poolSize
	}

	client := redis.NewClient(opt)

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// NewRedis creates a store for one namespace (e.g. "ip" or "geo").
// ttl == 0 keeps entries until Redis evicts them.
func NewRedis[V any](client *redis.Client, prefix, namespace string, ttl time.Duration) *Redis[V] {
	keyPrefix := namespace
	if prefix != "" {
		keyPrefix = prefix + ":" + namespace
	}
	return &Redis[V]{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// Get returns the value stored under key.
func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var value V

	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return value, false, nil
	}
	if err != nil {
		return value, false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	if err := json.Unmarshal(data, &value); err != nil {
		return value, false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	return value, true, nil
}

// Set stores value under key.
func (r *Redis[V]) Set(ctx context.Context, key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

func (r *Redis[V]) key(k string) string {
	return r.keyPrefix + ":" + k
}
