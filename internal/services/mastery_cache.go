package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/neurobridge-mastery/internal/cache"
	repos "github.com/yungbote/neurobridge-mastery/internal/data/repos/mastery"
	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

// CacheInvalidator drops derived per-user entries after source-of-truth writes. Failures
// are logged, never returned.
type CacheInvalidator interface {
	InvalidateUserCache(ctx context.Context, userID uuid.UUID)
	InvalidateDailyTasksCache(ctx context.Context, userID uuid.UUID)
	InvalidateDailySummaryCache(ctx context.Context, userID uuid.UUID)
}

type CacheTTLs struct {
	DailyTasks   time.Duration
	DailySummary time.Duration
	UserStats    time.Duration
}

// sharedLoadTimeout bounds a load shared by concurrent misses. It runs detached from any
// single caller's context.
const sharedLoadTimeout = 30 * time.Second

func DefaultCacheTTLs() CacheTTLs {
	return CacheTTLs{
		DailyTasks:   time.Hour,
		DailySummary: time.Hour,
		UserStats:    30 * time.Minute,
	}
}

type cacheInvalidator struct {
	store cache.Store
	log   *logger.Logger
	now   func() time.Time
}

func NewCacheInvalidator(log *logger.Logger, store cache.Store) CacheInvalidator {
	return &cacheInvalidator{store: store, log: log.With("service", "CacheInvalidator"), now: time.Now}
}

func (c *cacheInvalidator) InvalidateUserCache(ctx context.Context, userID uuid.UUID) {
	n, err := c.store.DeleteUser(ctx, userID)
	if err != nil {
		c.log.Warn("Cache invalidation failed", "user_id", userID, "error", err)
		return
	}
	c.log.Debug("User cache invalidated", "user_id", userID, "keys", n)
}

func (c *cacheInvalidator) InvalidateDailyTasksCache(ctx context.Context, userID uuid.UUID) {
	if _, err := c.store.Delete(ctx, cache.DailyTasksKey(userID, c.now())); err != nil {
		c.log.Warn("Daily tasks invalidation failed", "user_id", userID, "error", err)
	}
}

func (c *cacheInvalidator) InvalidateDailySummaryCache(ctx context.Context, userID uuid.UUID) {
	if _, err := c.store.Delete(ctx, cache.DailySummaryKey(userID, c.now())); err != nil {
		c.log.Warn("Daily summary invalidation failed", "user_id", userID, "error", err)
	}
}

type MasteryCacheService interface {
	CacheInvalidator
	GetDailyTasks(ctx context.Context, userID uuid.UUID) ([]DailyTask, error)
	GetDailySummary(ctx context.Context, userID uuid.UUID) ([]*types.UserPrimitiveDailySummary, error)
	GetUserStats(ctx context.Context, userID uuid.UUID) (*UserStats, error)
	ClearCache(ctx context.Context)
	GetCacheStats() cache.Stats
	PurgeExpired(ctx context.Context) int
}

type masteryCacheService struct {
	CacheInvalidator

	log         *logger.Logger
	store       cache.Store
	ttls        CacheTTLs
	tasks       TaskGenerator
	stats       StatsProvider
	summaries   SummaryMaintenanceService
	summaryRepo repos.UserPrimitiveDailySummaryRepo
	group       singleflight.Group
	loadTimeout time.Duration
	now         func() time.Time
}

func NewMasteryCacheService(
	log *logger.Logger,
	store cache.Store,
	invalidator CacheInvalidator,
	ttls CacheTTLs,
	tasks TaskGenerator,
	stats StatsProvider,
	summaries SummaryMaintenanceService,
	summaryRepo repos.UserPrimitiveDailySummaryRepo,
) MasteryCacheService {
	def := DefaultCacheTTLs()
	if ttls.DailyTasks <= 0 {
		ttls.DailyTasks = def.DailyTasks
	}
	if ttls.DailySummary <= 0 {
		ttls.DailySummary = def.DailySummary
	}
	if ttls.UserStats <= 0 {
		ttls.UserStats = def.UserStats
	}
	return &masteryCacheService{
		CacheInvalidator: invalidator,
		log:              log.With("service", "MasteryCacheService"),
		store:            store,
		ttls:             ttls,
		tasks:            tasks,
		stats:            stats,
		summaries:        summaries,
		summaryRepo:      summaryRepo,
		loadTimeout:      sharedLoadTimeout,
		now:              time.Now,
	}
}

func (s *masteryCacheService) GetDailyTasks(ctx context.Context, userID uuid.UUID) ([]DailyTask, error) {
	return loadThrough(ctx, s, cache.DailyTasksKey(userID, s.now()), s.ttls.DailyTasks, func(ctx context.Context) ([]DailyTask, error) {
		return s.tasks.GenerateDailyTasks(ctx, userID)
	})
}

func (s *masteryCacheService) GetDailySummary(ctx context.Context, userID uuid.UUID) ([]*types.UserPrimitiveDailySummary, error) {
	return loadThrough(ctx, s, cache.DailySummaryKey(userID, s.now()), s.ttls.DailySummary, func(ctx context.Context) ([]*types.UserPrimitiveDailySummary, error) {
		if _, err := s.summaries.RecomputeUserSummaries(ctx, userID); err != nil {
			return nil, err
		}
		rows, err := s.summaryRepo.ListByUserID(dbctx.Context{Ctx: ctx}, userID)
		if err != nil {
			return nil, fmt.Errorf("list summaries: %w", err)
		}
		return rows, nil
	})
}

func (s *masteryCacheService) GetUserStats(ctx context.Context, userID uuid.UUID) (*UserStats, error) {
	return loadThrough(ctx, s, cache.UserStatsKey(userID), s.ttls.UserStats, func(ctx context.Context) (*UserStats, error) {
		return s.stats.ComputeUserStats(ctx, userID)
	})
}

func (s *masteryCacheService) ClearCache(ctx context.Context) {
	if err := s.store.Flush(ctx); err != nil {
		s.log.Warn("Cache flush failed", "error", err)
		return
	}
	s.log.Info("Cache cleared")
}

func (s *masteryCacheService) GetCacheStats() cache.Stats {
	return s.store.Stats()
}

func (s *masteryCacheService) PurgeExpired(ctx context.Context) int {
	return s.store.PurgeExpired(ctx)
}

// loadThrough is cache-aside with no stale reads: a miss blocks on load. Concurrent misses
// for one key share a single load, which keeps going when the caller that started it gives
// up. Store errors degrade to computing without the cache.
func loadThrough[T any](ctx context.Context, s *masteryCacheService, key cache.Key, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var zero T
	cached, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.log.Warn("Cache read failed, recomputing", "key", key.String(), "error", err)
	} else if ok {
		if v, typed := cached.(T); typed {
			return v, nil
		}
		s.log.Warn("Cached value has unexpected type, recomputing", "key", key.String())
	}

	ch := s.group.DoChan(key.String(), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()
		val, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if err := s.store.Set(loadCtx, key, val, ttl); err != nil {
			s.log.Warn("Cache write failed", "key", key.String(), "error", err)
		}
		return val, nil
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
