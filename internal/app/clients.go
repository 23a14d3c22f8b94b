package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
	"github.com/yungbote/neurobridge-mastery/internal/platform/userlock"
)

// wireLocker returns the Redis lock when REDIS_ADDR is set, else an in-process keyed mutex.
// The client is returned so Close can release it.
func wireLocker(ctx context.Context, log *logger.Logger, cfg Config) (userlock.Locker, *redis.Client, error) {
	if cfg.RedisAddr == "" {
		log.Info("Per-user lock: in-process")
		return userlock.NewKeyedMutex(), nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	log.Info("Per-user lock: redis", "addr", cfg.RedisAddr, "ttl", cfg.UserLockTTL)
	return userlock.NewRedisLocker(client, cfg.UserLockTTL, log), client, nil
}
