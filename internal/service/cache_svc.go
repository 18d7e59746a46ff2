package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ratings change only when a new scan lands, so they can sit in cache a
// little longer than typical read-through entries.
const (
	RatingCacheTTL = 10 * time.Minute
	StatsCacheTTL  = time.Minute
)

// CacheService provides a Redis cache-aside layer for rating lookups.
type CacheService struct {
	rdb *redis.Client
}

// NewCacheService creates a new CacheService. If redisURL is empty or the
// connection fails, cache operations become no-ops.
func NewCacheService(redisURL string) *CacheService {
	if redisURL == "" {
		log.Println("redis: no URL configured, caching disabled")
		return &CacheService{}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("redis: invalid URL %q, caching disabled: %v", redisURL, err)
		return &CacheService{}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("redis: connection failed, caching disabled: %v", err)
		return &CacheService{}
	}

	log.Println("redis: connected, caching enabled")
	return &CacheService{rdb: rdb}
}

// Client returns the underlying Redis client (for health checks). May be nil.
func (c *CacheService) Client() *redis.Client {
	return c.rdb
}

// GetRating retrieves a cached rating response. Returns nil when not cached
// or the cache is disabled.
func (c *CacheService) GetRating(ctx context.Context, videoID string) ([]byte, error) {
	if c.rdb == nil {
		return nil, nil
	}
	data, err := c.rdb.Get(ctx, ratingKey(videoID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return data, err
}

// SetRating stores a rating response in cache.
func (c *CacheService) SetRating(ctx context.Context, videoID string, data interface{}) error {
	if c.rdb == nil {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, ratingKey(videoID), b, RatingCacheTTL).Err()
}

// InvalidateRating removes a rating from cache (called after a new scan).
func (c *CacheService) InvalidateRating(ctx context.Context, videoID string) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, ratingKey(videoID)).Err()
}

// GetStats retrieves the cached stats response. Returns nil when not cached.
func (c *CacheService) GetStats(ctx context.Context) ([]byte, error) {
	if c.rdb == nil {
		return nil, nil
	}
	data, err := c.rdb.Get(ctx, "stats:ratings").Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return data, err
}

// SetStats stores the stats response in cache.
func (c *CacheService) SetStats(ctx context.Context, data interface{}) error {
	if c.rdb == nil {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, "stats:ratings", b, StatsCacheTTL).Err()
}

// Close shuts down the Redis connection.
func (c *CacheService) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func ratingKey(videoID string) string {
	return fmt.Sprintf("rating:%s", videoID)
}
