// Package sourcestats keeps Redis-backed per-source intake statistics.
//
// Designed for multiple engine instances writing concurrently.
//
// Redis Key Structure:
//
//	intel:src:stats:{source}               - Hash with totals and last seen
//	intel:src:hourly:{source}:{YYYYMMDDHH} - Record count for the hour (expires 48h)
//	intel:src:daily:{source}:{YYYYMMDD}    - Record count for the day (expires 7d)
//	intel:src:instances:{source}           - Hash of engine instance -> last seen
package sourcestats

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "intel:src:"

// Stats is the current intake picture for one collector source.
type Stats struct {
	Source           string            `json:"source"`
	LastSeenAt       *time.Time        `json:"last_seen_at,omitempty"`
	TotalRecords     int64             `json:"total_records"`
	TotalBatches     int64             `json:"total_batches"`
	RecordsLastHour  int64             `json:"records_last_hour"`
	RecordsLast24h   int64             `json:"records_last_24h"`
	RecordsToday     int64             `json:"records_today"`
	Instances        map[string]string `json:"instances,omitempty"` // instance_id -> last_seen
	StatsRetrievedAt time.Time         `json:"stats_retrieved_at"`
}

// Client records and reads source statistics.
type Client struct {
	redis      *redis.Client
	instanceID string
	now        func() time.Time
}

// NewClient wraps an existing Redis connection. instanceID should be unique
// per engine instance (hostname, pod name).
func NewClient(client *redis.Client, instanceID string) *Client {
	return &Client{redis: client, instanceID: instanceID, now: time.Now}
}

// Update holds accumulated counts for one source.
type Update struct {
	Source  string
	Records int64
	Batches int64
}

// Flush writes an accumulated update.
func (c *Client) Flush(ctx context.Context, u *Update) error {
	if u.Records == 0 && u.Batches == 0 {
		return nil
	}

	now := c.now()
	hourKey := now.Format("2006010215")
	dayKey := now.Format("20060102")
	nowUnix := strconv.FormatInt(now.Unix(), 10)

	pipe := c.redis.Pipeline()

	statsKey := keyPrefix + "stats:" + u.Source
	pipe.HSet(ctx, statsKey, "last_seen_at", nowUnix)
	pipe.HIncrBy(ctx, statsKey, "total_records", u.Records)
	pipe.HIncrBy(ctx, statsKey, "total_batches", u.Batches)

	hourlyKey := fmt.Sprintf("%shourly:%s:%s", keyPrefix, u.Source, hourKey)
	pipe.IncrBy(ctx, hourlyKey, u.Records)
	pipe.Expire(ctx, hourlyKey, 48*time.Hour)

	dailyKey := fmt.Sprintf("%sdaily:%s:%s", keyPrefix, u.Source, dayKey)
	pipe.IncrBy(ctx, dailyKey, u.Records)
	pipe.Expire(ctx, dailyKey, 7*24*time.Hour)

	instancesKey := keyPrefix + "instances:" + u.Source
	pipe.HSet(ctx, instancesKey, c.instanceID, nowUnix)
	pipe.Expire(ctx, instancesKey, 24*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to flush source stats: %w", err)
	}
	return nil
}

// Get retrieves current statistics for a source.
func (c *Client) Get(ctx context.Context, source string) (*Stats, error) {
	now := c.now()

	pipe := c.redis.Pipeline()
	statsCmd := pipe.HGetAll(ctx, keyPrefix+"stats:"+source)
	hourlyCmds := make([]*redis.StringCmd, 24)
	for i := range hourlyCmds {
		t := now.Add(-time.Duration(i) * time.Hour)
		hourlyCmds[i] = pipe.Get(ctx, fmt.Sprintf("%shourly:%s:%s", keyPrefix, source, t.Format("2006010215")))
	}
	dailyCmd := pipe.Get(ctx, fmt.Sprintf("%sdaily:%s:%s", keyPrefix, source, now.Format("20060102")))
	instancesCmd := pipe.HGetAll(ctx, keyPrefix+"instances:"+source)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get source stats: %w", err)
	}

	stats := &Stats{Source: source, StatsRetrievedAt: now, Instances: map[string]string{}}

	if m, err := statsCmd.Result(); err == nil {
		if unix, err := strconv.ParseInt(m["last_seen_at"], 10, 64); err == nil {
			t := time.Unix(unix, 0).UTC()
			stats.LastSeenAt = &t
		}
		stats.TotalRecords, _ = strconv.ParseInt(m["total_records"], 10, 64)
		stats.TotalBatches, _ = strconv.ParseInt(m["total_batches"], 10, 64)
	}
	if v, err := hourlyCmds[0].Int64(); err == nil {
		stats.RecordsLastHour = v
	}
	for _, cmd := range hourlyCmds {
		if v, err := cmd.Int64(); err == nil {
			stats.RecordsLast24h += v
		}
	}
	if v, err := dailyCmd.Int64(); err == nil {
		stats.RecordsToday = v
	}
	if instances, err := instancesCmd.Result(); err == nil {
		for instance, lastSeen := range instances {
			if unix, err := strconv.ParseInt(lastSeen, 10, 64); err == nil {
				stats.Instances[instance] = time.Unix(unix, 0).UTC().Format(time.RFC3339)
			}
		}
	}
	return stats, nil
}

// ListActive returns sources seen within since.
func (c *Client) ListActive(ctx context.Context, since time.Duration) ([]string, error) {
	var sources []string
	cutoff := c.now().Add(-since).Unix()
	prefix := keyPrefix + "stats:"

	iter := c.redis.Scan(ctx, 0, prefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		lastSeen, err := c.redis.HGet(ctx, key, "last_seen_at").Int64()
		if err == nil && lastSeen >= cutoff {
			sources = append(sources, strings.TrimPrefix(key, prefix))
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sources: %w", err)
	}
	return sources, nil
}
