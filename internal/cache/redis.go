package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/industria/internal/logging"
	"github.com/redis/go-redis/v9"
)

// ErrEmptyAddress is returned when no Redis address is configured
var ErrEmptyAddress = errors.New("redis address is required")

const (
	connectionTimeout = 5 * time.Second
	scanBatch         = 500
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string // Namespace for every key, e.g. "industria:"
}

// NewRedisClient creates a client and verifies the connection
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// RedisCache shares decisions between processes. Lookup failures are
// logged and reported as misses.
type RedisCache struct {
	client *redis.Client
	prefix string
	logger logging.Logger
}

// NewRedisCache wraps a connected client
func NewRedisCache(client *redis.Client, prefix string, logger logging.Logger) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, logger: logging.OrNop(logger)}
}

// Get retrieves a value from Redis
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("redis get failed", logging.String("key", key), logging.Error(err))
		return nil, false
	}
	return val, true
}

// Set stores a value; a zero ttl keeps it until Clear
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a value from Redis
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Clear deletes every key under the prefix. Keys outside it are untouched.
func (c *RedisCache) Clear(ctx context.Context) error {
	var cursor uint64
	deleted := 0

	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.logger.Debug("redis cache cleared", logging.String("prefix", c.prefix), logging.Int("keys", deleted))
	return nil
}
