package adapter

import (
	"context"
	"time"
)

// ReferenceLocker is the mutual-exclusion port used to serialize duplicate
// notification deliveries for one merchant reference across processes.
type ReferenceLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
