package shift

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/georgemunganga/printa-pos/internal/platform/logging"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client, 200*time.Millisecond, logging.Discard()), mr
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	locker, mr := newLocker(t)
	key := lockKey(uuid.New())

	release, err := locker.Acquire(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))

	release()
	assert.False(t, mr.Exists(key))
}

func TestRedisLocker_BusyProceedsUnlocked(t *testing.T) {
	locker, mr := newLocker(t)
	key := lockKey(uuid.New())
	require.NoError(t, mr.Set(key, "someone-else"))
	mr.SetTTL(key, time.Minute)

	start := time.Now()
	release, err := locker.Acquire(context.Background(), key)
	require.NoError(t, err)
	release()
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond, "should retry before giving up")
	assert.True(t, mr.Exists(key), "releasing an unobtained lock must not touch the holder's key")
}

func TestRedisLocker_RedisDown(t *testing.T) {
	locker, mr := newLocker(t)
	mr.Close()

	release, err := locker.Acquire(context.Background(), lockKey(uuid.New()))
	require.NoError(t, err)
	release()
}

func TestRedisLocker_CancelledContext(t *testing.T) {
	locker, mr := newLocker(t)
	key := lockKey(uuid.New())
	require.NoError(t, mr.Set(key, "someone-else"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := locker.Acquire(ctx, key)
	assert.Error(t, err)
}
