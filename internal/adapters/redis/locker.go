package redis

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

var ErrLockHeld = errors.New("lock is held by another instance")

// Locker lets gocron run a job on one instance at a time. The lease expires
// after ttl even if the holder dies.
type Locker struct {
	cache *Cache
	ttl   time.Duration
}

var _ gocron.Locker = (*Locker)(nil)

func NewLocker(cache *Cache, ttl time.Duration) *Locker {
	return &Locker{cache: cache, ttl: ttl}
}

func (l *Locker) Lock(ctx context.Context, key string) (gocron.Lock, error) {
	token := uuid.NewString()
	ok, err := l.cache.AcquireLock(ctx, key, token, l.ttl)
	if err != nil {
		return nil, errors.Wrapf(err, "acquire lock %s", key)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &lease{cache: l.cache, key: key, token: token}, nil
}

type lease struct {
	cache *Cache
	key   string
	token string
}

func (l *lease) Unlock(ctx context.Context) error {
	_, err := l.cache.ReleaseLock(ctx, l.key, l.token)
	return err
}
