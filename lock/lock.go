// Package lock serializes work on one key across processes with a redis
// lease.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"groupbuy-backend/apperr"
)

// ErrNotAcquired is returned while another holder owns the key. It wraps
// apperr.ErrConflict so callers treat it as transient.
var ErrNotAcquired = fmt.Errorf("lock held elsewhere: %w", apperr.ErrConflict)

// Deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out leases. A Locker with a nil client grants every lock.
type Locker struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{rdb: rdb, ttl: ttl, prefix: "lock:"}
}

// Lock takes the lease on key without waiting. The returned func releases it.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	if l == nil || l.rdb == nil {
		return func() {}, nil
	}

	token := uuid.NewString()
	name := l.prefix + key
	ok, err := l.rdb.SetNX(ctx, name, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to take lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return func() {
		// The caller's context may already be done.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := releaseScript.Run(rctx, l.rdb, []string{name}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			// The lease still expires after ttl.
			slog.Warn("failed to release lock", "key", key, "error", err)
		}
	}, nil
}
