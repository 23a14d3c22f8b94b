package userlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

const (
	redisKeyPrefix    = "mastery:userlock:"
	redisRetryInitial = 10 * time.Millisecond
	redisRetryMax     = 250 * time.Millisecond
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds per-user locks in Redis so several processes can share one database.
// The TTL bounds how long a crashed holder blocks the user.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, baseLog *logger.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisLocker{client: client, ttl: ttl, log: baseLog.With("component", "RedisUserLocker")}
}

func (l *RedisLocker) Lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	key := redisKeyPrefix + userID.String()
	token := uuid.NewString()
	wait := redisRetryInitial
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return func() {}, errors.Join(ErrLockTimeout, ctx.Err())
			}
			return func() {}, fmt.Errorf("redis setnx %s: %w", key, err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return func() {}, errors.Join(ErrLockTimeout, ctx.Err())
		case <-timer.C:
		}
		if wait *= 2; wait > redisRetryMax {
			wait = redisRetryMax
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's ctx may already be cancelled; release on a short detached deadline.
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil {
				l.log.Warn("Failed to release user lock", "user_id", userID, "error", err)
			}
		})
	}, nil
}
