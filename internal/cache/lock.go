package cache

import (
	"context"
	"time"
)

// Locker grants short-lived exclusive leases across replicas. A lease is
// never released explicitly; it expires with its TTL.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type NoopLocker struct{}

func (NoopLocker) Acquire(_ context.Context, _ string, _ time.Duration) (bool, error) {
	return true, nil
}
