package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

func newLocker(t *testing.T, mr *miniredis.Miniredis) *RedisLocker {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, "payops:", time.Minute, logger.NewNop())
}

func TestRedisLocker_ExclusiveAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newLocker(t, mr)
	b := newLocker(t, mr)
	ctx := context.Background()

	release, err := a.Acquire(ctx, "org_1|sub_1")
	require.NoError(t, err)

	_, err = b.Acquire(ctx, "org_1|sub_1")
	assert.ErrorIs(t, err, apperrors.ErrLockNotAcquired)

	otherRelease, err := b.Acquire(ctx, "org_1|sub_2")
	require.NoError(t, err)
	otherRelease()

	release()
	assert.False(t, mr.Exists("payops:lock:org_1|sub_1"))

	release, err = b.Acquire(ctx, "org_1|sub_1")
	require.NoError(t, err)
	release()
}

func TestRedisLocker_ReleaseKeepsForeignLease(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newLocker(t, mr)
	ctx := context.Background()

	release, err := a.Acquire(ctx, "k")
	require.NoError(t, err)

	// Lease expired and was taken by someone else.
	mr.FastForward(2 * time.Minute)
	require.NoError(t, mr.Set("payops:lock:k", "foreign"))

	release()
	got, err := mr.Get("payops:lock:k")
	require.NoError(t, err)
	assert.Equal(t, "foreign", got)
}

func TestRedisLocker_SerializesInProcess(t *testing.T) {
	mr := miniredis.RunT(t)
	l := newLocker(t, mr)
	ctx := context.Background()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "same")
			if err != nil {
				return
			}
			n := inside.Add(1)
			if n > maxInside.Load() {
				maxInside.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, maxInside.Load())
}
