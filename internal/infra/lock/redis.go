package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisMutex is a single-instance Redis lock (SET NX PX with an owner token).
// The TTL bounds how long a crashed holder can block others.
type RedisMutex struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
	logger zerolog.Logger
}

// NewRedisMutex builds a NamedMutex on Redis.
func NewRedisMutex(client redis.UniversalClient, ttl time.Duration, logger zerolog.Logger) *RedisMutex {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisMutex{client: client, ttl: ttl, retry: 25 * time.Millisecond, logger: logger}
}

func (m *RedisMutex) Acquire(ctx context.Context, key string) (Guard, error) {
	token := uuid.NewString()
	lockKey := "lock:" + key
	for {
		ok, err := m.client.SetNX(ctx, lockKey, token, m.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock: %s: %w", key, err)
		}
		if ok {
			return &redisGuard{m: m, key: lockKey, token: token}, nil
		}
		timer := time.NewTimer(m.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

type redisGuard struct {
	once  sync.Once
	m     *RedisMutex
	key   string
	token string
}

func (g *redisGuard) Release() {
	g.once.Do(func() {
		err := releaseScript.Run(context.Background(), g.m.client, []string{g.key}, g.token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			g.m.logger.Error().Err(err).Str("key", g.key).Msg("lock.redis_release_failed")
		}
	})
}

var _ NamedMutex = (*RedisMutex)(nil)
