package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rcliao/flightfinder/internal/model"
)

const redisKeyPrefix = "flightfinder:cache:"

// RedisCache is a PriceCache shared between machines through Redis.
// Entries live for retention (0 keeps them forever) so that stale results
// remain available for degraded mode long after the search TTL has passed.
type RedisCache struct {
	rdb       *redis.Client
	retention time.Duration
}

type redisEntry struct {
	FetchedAt   time.Time         `json:"fetched_at"`
	Provider    string            `json:"provider"`
	Itineraries []model.Itinerary `json:"itineraries"`
}

// NewRedisCache parses redisURL and verifies connectivity.
func NewRedisCache(ctx context.Context, redisURL string, retention time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisCache{rdb: client, retention: retention}, nil
}

// Get returns the cached entry for key regardless of its age.
func (c *RedisCache) Get(ctx context.Context, key string) (*model.CacheEntry, bool, error) {
	b, err := c.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var e redisEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return &model.CacheEntry{
		Key:         key,
		FetchedAt:   e.FetchedAt,
		Itineraries: e.Itineraries,
		Provider:    e.Provider,
	}, true, nil
}

// Put replaces the entry for key.
func (c *RedisCache) Put(ctx context.Context, key string, itineraries []model.Itinerary, provider string) error {
	if itineraries == nil {
		itineraries = []model.Itinerary{}
	}
	b, err := json.Marshal(redisEntry{FetchedAt: time.Now().UTC(), Provider: provider, Itineraries: itineraries})
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return c.rdb.Set(ctx, redisKeyPrefix+key, b, c.retention).Err()
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
