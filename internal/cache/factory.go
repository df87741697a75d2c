package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/industria/internal/logging"
	"github.com/ppiankov/industria/internal/model"
)

// New builds the backend named by cfg.Backend. The returned close function
// releases connections and is never nil.
func New(cfg model.CacheConfig, logger logging.Logger) (Cache, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case "", "memory":
		return NewMemoryCache(cfg.TTL, 10*time.Minute), noop, nil
	case "disk":
		return NewMemoryDiskCache(cfg.TTL, cfg.Dir, cfg.TTL), noop, nil
	case "redis":
		// Clear deletes by prefix, so an empty one would match every key
		if strings.TrimSpace(cfg.Prefix) == "" {
			return nil, noop, &model.ConfigError{Source: "cache.prefix", Reason: "redis backend needs a non-empty key prefix"}
		}
		client, err := NewRedisClient(RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.Prefix,
		})
		if err != nil {
			return nil, noop, err
		}
		layered := NewLayeredCache(
			NewMemoryCache(cfg.TTL, 10*time.Minute),
			NewRedisCache(client, cfg.Prefix, logger),
		)
		return layered, client.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q (want memory, disk or redis)", cfg.Backend)
	}
}
