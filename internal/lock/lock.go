// Package lock provides a Redis-backed advisory lock.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseScript deletes the key only if it still holds our token, so a lock
// that expired and was taken by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker hands out expiring locks keyed by name.
type RedisLocker struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
	log    zerolog.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, log zerolog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 90 * time.Minute
	}
	return &RedisLocker{
		redis:  client,
		ttl:    ttl,
		prefix: "lock:",
		log:    log.With().Str("component", "lock").Logger(),
	}
}

// Acquire tries once to take the lock. acquired is false when another holder
// owns it. The returned release func is safe to call after expiry.
func (l *RedisLocker) Acquire(ctx context.Context, name string) (release func(), acquired bool, err error) {
	key := l.prefix + name
	token := uuid.NewString()

	ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release = func() {
		// the job context may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.redis, []string{key}, token).Err(); err != nil {
			l.log.Warn().Err(err).Str("key", key).Msg("cannot release lock")
		}
	}
	return release, true, nil
}
