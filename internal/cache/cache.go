// Package cache stores engine decisions keyed by content fingerprint.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// NoTTL stores an entry until it is deleted or the cache is cleared
const NoTTL time.Duration = 0

// Fingerprint derives the cache key of a decision from the version of the
// rules that produced it and the normalized content
func Fingerprint(version, normalized string) string {
	h := sha256.New()
	h.Write([]byte("industria:v1:"))
	h.Write([]byte(version))
	h.Write([]byte{0})
	h.Write([]byte(normalized))
	return hex.EncodeToString(h.Sum(nil))
}
