package shift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Locker serialises shift opening per cashier across instances. The open-shift
// unique index stays authoritative; a lock only avoids racing into it.
type Locker interface {
	// Acquire returns a release func. A nil error with a no-op release means
	// the caller proceeds unlocked.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type redisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	logger logrus.FieldLogger
}

// NewRedisLocker obtains locks with bsm/redislock, retrying until ttl elapses.
func NewRedisLocker(client redislock.RedisClient, ttl time.Duration, logger logrus.FieldLogger) Locker {
	return &redisLocker{client: redislock.New(client), ttl: ttl, logger: logger}
}

func (l *redisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(50 * time.Millisecond),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("obtain lock %s: %w", key, ctxErr)
		}
		if errors.Is(err, redislock.ErrNotObtained) {
			l.logger.WithField("key", key).Warn("could not obtain redis lock; proceeding without it")
		} else {
			l.logger.WithField("key", key).WithError(err).Warn("redis lock unavailable; proceeding without it")
		}
		return func() {}, nil
	}
	return func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.WithField("key", key).WithError(err).Warn("release redis lock")
		}
	}, nil
}

type noopLocker struct{}

// NoopLocker is used when redis is not configured.
func NoopLocker() Locker { return noopLocker{} }

func (noopLocker) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

func lockKey(cashierID uuid.UUID) string { return "lock:shift:" + cashierID.String() }
