package ports

import (
	"context"
	"time"
)

// Cache is a string key-value store with per-entry expiry. The currency
// converter memoises resolved exchange rates in it under "fx:" keys.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Delete drops a key; a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
