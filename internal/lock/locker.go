package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when the context ends before the lock is obtained.
var ErrNotAcquired = errors.New("lock: not acquired")

// Locker serializes work per key. Acquire blocks until the key is free or ctx
// is done. The returned release func is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
