package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache TTLs
const (
	TTLBadge   = 1 * time.Minute  // unread notification badge counts
	TTLUser    = 10 * time.Minute // public user lookups
	TTLDefault = 5 * time.Minute
)

// Cache key prefixes
const (
	PrefixBadge = "badge:"
	PrefixUser  = "user:"
)

// ErrCacheMiss is returned when a key is absent
var ErrCacheMiss = errors.New("cache miss")

// Service is the redis cache surface used by the notification and
// messaging services: generic entries for user lookups (expiry only, the
// identity store is written elsewhere) and the unread notification badge.
// Conversation summaries are deliberately never cached; they are recomputed
// from the message store on every request.
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Unread notification badge
	GetUnreadBadge(ctx context.Context, userID uint) (int64, error)
	SetUnreadBadge(ctx context.Context, userID uint, count int64) error
	InvalidateUnreadBadge(ctx context.Context, userID uint) error

	Ping(ctx context.Context) error
}

type redisCache struct {
	client *redis.Client
}

// NewService creates a redis-backed cache service
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = TTLDefault
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func badgeKey(userID uint) string {
	return PrefixBadge + strconv.FormatUint(uint64(userID), 10)
}

func (c *redisCache) GetUnreadBadge(ctx context.Context, userID uint) (int64, error) {
	v, err := c.client.Get(ctx, badgeKey(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, err
	}
	return v, nil
}

func (c *redisCache) SetUnreadBadge(ctx context.Context, userID uint, count int64) error {
	return c.client.Set(ctx, badgeKey(userID), count, TTLBadge).Err()
}

func (c *redisCache) InvalidateUnreadBadge(ctx context.Context, userID uint) error {
	return c.client.Del(ctx, badgeKey(userID)).Err()
}

func (c *redisCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client not configured")
	}
	return c.client.Ping(ctx).Err()
}
