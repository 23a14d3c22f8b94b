package app

import (
	"strings"
	"time"

	"github.com/yungbote/neurobridge-mastery/internal/data/db"
	"github.com/yungbote/neurobridge-mastery/internal/platform/envutil"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
	"github.com/yungbote/neurobridge-mastery/internal/services"
)

type Config struct {
	HTTPAddr       string
	AllowedOrigins []string

	DB db.Config

	// RedisAddr enables the Redis-backed per-user lock; empty keeps locking in process.
	RedisAddr     string
	RedisPassword string
	UserLockTTL   time.Duration

	Batch     services.BatchConfig
	CacheTTLs services.CacheTTLs

	// CacheMaxKeys bounds the in-process cache. Zero means unbounded.
	CacheMaxKeys int

	SchedulerEnabled bool
	ShutdownTimeout  time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	batchDef := services.DefaultBatchConfig()
	ttlDef := services.DefaultCacheTTLs()
	return Config{
		HTTPAddr:       envutil.String("HTTP_ADDR", ":8080", log),
		AllowedOrigins: splitList(envutil.String("CORS_ALLOWED_ORIGINS", "", log)),
		DB: db.Config{
			Driver:     strings.ToLower(envutil.String("DB_DRIVER", "postgres", log)),
			Host:       envutil.String("POSTGRES_HOST", "localhost", log),
			Port:       envutil.String("POSTGRES_PORT", "5432", log),
			User:       envutil.String("POSTGRES_USER", "postgres", log),
			Password:   envutil.String("POSTGRES_PASSWORD", "", log),
			Name:       envutil.String("POSTGRES_NAME", "mastery", log),
			SQLitePath: envutil.String("SQLITE_PATH", "", log),
		},
		RedisAddr:     envutil.String("REDIS_ADDR", "", log),
		RedisPassword: envutil.String("REDIS_PASSWORD", "", log),
		UserLockTTL:   envutil.Seconds("USER_LOCK_TTL_SECONDS", 60*time.Second, log),
		Batch: services.BatchConfig{
			MaxBatchSize: envutil.Int("BATCH_MAX_SIZE", batchDef.MaxBatchSize, log),
			ChunkPause:   envutil.Millis("BATCH_CHUNK_PAUSE_MS", batchDef.ChunkPause, log),
			ChunkTimeout: envutil.Seconds("BATCH_TX_TIMEOUT_SECONDS", batchDef.ChunkTimeout, log),
		},
		CacheTTLs: services.CacheTTLs{
			DailyTasks:   envutil.Seconds("CACHE_TASKS_TTL_SECONDS", ttlDef.DailyTasks, log),
			DailySummary: envutil.Seconds("CACHE_SUMMARY_TTL_SECONDS", ttlDef.DailySummary, log),
			UserStats:    envutil.Seconds("CACHE_STATS_TTL_SECONDS", ttlDef.UserStats, log),
		},
		CacheMaxKeys:     envutil.Int("CACHE_MAX_KEYS", 0, log),
		SchedulerEnabled: envutil.Bool("MAINTENANCE_SCHEDULER_ENABLED", true, log),
		ShutdownTimeout:  envutil.Seconds("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second, log),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
