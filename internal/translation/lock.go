package translation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Locker serializes cache-miss work for one key across workers. The returned
// unlock func is always non-nil when err is nil.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NopLocker never blocks. Use it when a single worker process owns the queue;
// in-process duplicates are already collapsed by the worker.
type NopLocker struct{}

// Lock implements Locker.
func (NopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

// RedisLocker is a cross-instance mutex built on redsync.
type RedisLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
}

// NewRedisLocker returns a Locker whose leases expire after expiry so a
// crashed holder cannot wedge a key.
func NewRedisLocker(client redis.UniversalClient, expiry time.Duration) *RedisLocker {
	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
	}
}

// Lock acquires the mutex for key, retrying until ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	m := l.rs.NewMutex("tlock:"+key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(64),
		redsync.WithRetryDelay(100*time.Millisecond),
	)
	if err := m.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	return func() {
		// Release with a fresh context: the caller's may already be cancelled.
		uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := m.UnlockContext(uctx); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("release translation lock")
		}
	}, nil
}
