// Package cache provides the optional read-through cache used by hot read
// paths. Redis backs it when configured; otherwise an in-process store keeps
// the same semantics for single-node deployments and tests.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented cache with per-entry TTLs. Implementations must be
// safe for concurrent use. A miss is (nil, false); errors are swallowed by
// implementations since the cache is advisory.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
}
