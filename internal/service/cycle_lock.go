package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrCycleInProgress indicates another publication cycle holds the lock.
var ErrCycleInProgress = errors.New("publication cycle already in progress")

// CycleLock fences publication cycles against each other.
type CycleLock interface {
	// TryAcquire never blocks. release is nil when acquired is false.
	TryAcquire(ctx context.Context) (release func(), acquired bool, err error)
}

// LocalCycleLock serialises cycles inside one process.
type LocalCycleLock struct {
	mu sync.Mutex
}

// NewLocalCycleLock constructs an in-process lock.
func NewLocalCycleLock() *LocalCycleLock {
	return &LocalCycleLock{}
}

func (l *LocalCycleLock) TryAcquire(context.Context) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}

var releaseLeaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCycleLock is a lease shared by every replica. The TTL bounds how long a
// crashed holder can block later cycles.
type RedisCycleLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisCycleLock constructs a lease lock on key.
func NewRedisCycleLock(client *redis.Client, key string, ttl time.Duration, logger zerolog.Logger) *RedisCycleLock {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisCycleLock{
		client: client,
		key:    key,
		ttl:    ttl,
		logger: logger.With().Str("component", "cycle_lock").Logger(),
	}
}

func (l *RedisCycleLock) TryAcquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// The cycle context may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseLeaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Err(); err != nil {
			l.logger.Warn().Err(err).Str("key", l.key).Msg("failed to release cycle lease")
		}
	}
	return release, true, nil
}
