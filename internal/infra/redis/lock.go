// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockHeld is returned by TryLock when another holder owns the key.
var ErrLockHeld = errors.New("lock held by another process")

type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type RedisLocker struct {
	cli     *redis.Client
	retries int
	backoff time.Duration
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli, retries: 3, backoff: 50 * time.Millisecond}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < l.retries; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			lastErr = err
		} else if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.backoff):
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", ErrLockHeld
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// Unlock releases key only if token still owns it.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
