package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/industria/internal/logging"
	"github.com/ppiankov/industria/internal/model"
	"golang.org/x/sync/singleflight"
)

// DecisionCache stores engine decisions as JSON in a Cache and collapses
// concurrent computations of the same fingerprint into one
type DecisionCache struct {
	store  Cache
	ttl    time.Duration
	group  singleflight.Group
	logger logging.Logger
}

// NewDecisionCache wraps store
func NewDecisionCache(store Cache, ttl time.Duration, logger logging.Logger) *DecisionCache {
	return &DecisionCache{store: store, ttl: ttl, logger: logging.OrNop(logger)}
}

// Get returns the cached decision for key
func (c *DecisionCache) Get(ctx context.Context, key string) (*model.Decision, bool) {
	data, found := c.store.Get(ctx, key)
	if !found {
		return nil, false
	}

	var d model.Decision
	if err := json.Unmarshal(data, &d); err != nil {
		c.logger.Warn("discarding corrupt cache entry", logging.String("key", key), logging.Error(err))
		_ = c.store.Delete(ctx, key)
		return nil, false
	}
	return &d, true
}

// GetOrCompute returns the cached decision for key, or computes, stores and
// returns it. hit reports whether the value came from the cache. A failure
// to store is logged; the computed decision is still returned.
func (c *DecisionCache) GetOrCompute(ctx context.Context, key string, compute func() (*model.Decision, error)) (*model.Decision, bool, error) {
	if d, ok := c.Get(ctx, key); ok {
		return d, true, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if d, ok := c.Get(ctx, key); ok {
			return d, nil
		}

		d, err := compute()
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("encode decision: %w", err)
		}
		if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.Warn("cache store failed", logging.String("key", key), logging.Error(err))
		}
		return d, nil
	})
	if err != nil {
		return nil, false, err
	}

	return v.(*model.Decision), false, nil
}

// Flush removes every cached decision
func (c *DecisionCache) Flush(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("flush cache: %w", err)
	}
	return nil
}
