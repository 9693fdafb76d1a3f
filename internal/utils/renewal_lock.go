package utils

import (
	"context"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// RedsyncLocker serializes per-record renewal across overlapping batch
// runs: a manual trigger racing the scheduled one cannot issue two orders
// for the same subscription.
type RedsyncLocker struct {
	rs *redsync.Redsync
}

func NewRedsyncLocker(rdb *redis.Client) *RedsyncLocker {
	pool := goredis.NewPool(rdb)
	return &RedsyncLocker{rs: redsync.New(pool)}
}

// Lock takes the mutex for key without retrying; a held lock means another
// run owns the record and the caller should skip it. The returned func
// releases the lock.
func (l *RedsyncLocker) Lock(ctx context.Context, key string) (func(), error) {
	mu := l.rs.NewMutex(key,
		redsync.WithExpiry(2*time.Minute),
		redsync.WithTries(1),
	)
	if err := mu.LockContext(ctx); err != nil {
		return nil, err
	}
	return func() {
		_, _ = mu.UnlockContext(ctx)
	}, nil
}
