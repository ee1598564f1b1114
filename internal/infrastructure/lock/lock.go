// Package lock serializes work on one key across goroutines and instances.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/keylock"
	"github.com/payops/payops/internal/shared/logger"
)

// Locker grants exclusive ownership of a key. Acquire returns
// errors.ErrLockNotAcquired when another instance holds it.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker takes the in-process lock for key, then a Redis lease with a
// random owner token. The lease expires after ttl if the holder dies.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	local  *keylock.Map
	logger logger.Interface
}

func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration, log logger.Interface) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: prefix + "lock:",
		ttl:    ttl,
		local:  keylock.New(),
		logger: log,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	unlock := l.local.Lock(key)

	token, err := newToken()
	if err != nil {
		unlock()
		return nil, err
	}
	redisKey := l.prefix + key
	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		unlock()
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		unlock()
		return nil, apperrors.ErrLockNotAcquired
	}

	return func() {
		// The caller's ctx may be cancelled by now.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.logger.Warnw("failed to release lock", "key", key, "error", err)
		}
		unlock()
	}, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// LocalLocker only serializes within the process.
type LocalLocker struct {
	local *keylock.Map
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{local: keylock.New()}
}

func (l *LocalLocker) Acquire(_ context.Context, key string) (func(), error) {
	return l.local.Lock(key), nil
}
