package repository

import (
	"context"
	"time"
)

// TickLocker grants a short lease so that only one scanner instance runs a tick at a time.
type TickLocker interface {
	TryLock(ctx context.Context, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}
