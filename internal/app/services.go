package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-mastery/internal/cache"
	"github.com/yungbote/neurobridge-mastery/internal/jobs/maintenance"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
	"github.com/yungbote/neurobridge-mastery/internal/platform/userlock"
	"github.com/yungbote/neurobridge-mastery/internal/services"
)

type Services struct {
	Preferences services.PreferencesService
	Invalidator services.CacheInvalidator
	Summaries   services.SummaryMaintenanceService
	Batch       services.BatchReviewService
	Tasks       services.TaskGenerator
	Stats       services.StatsProvider
	Cache       services.MasteryCacheService
	Schedule    services.ReviewScheduleService
	Hooks       services.MasteryHooks
	Progression services.ProgressionService

	Scheduler *maintenance.Scheduler
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, locker userlock.Locker) (Services, error) {
	log.Info("Wiring services...")
	var storeOpts []cache.Option
	if cfg.CacheMaxKeys > 0 {
		storeOpts = append(storeOpts, cache.WithCapacity(uint64(cfg.CacheMaxKeys)))
	}
	store := cache.NewMemoryStore(log, storeOpts...)

	prefs := services.NewPreferencesService(log, r.Preferences)
	invalidator := services.NewCacheInvalidator(log, store)
	summaries := services.NewSummaryMaintenanceService(log, r.Primitive, r.Criterion, r.CriterionMastery, r.Progress, r.Summary, prefs, invalidator)
	batch := services.NewBatchReviewService(db, log, cfg.Batch, r.Progress, r.CriterionMastery, prefs, locker)
	tasks := services.NewTaskGenerator(log, summaries, r.Summary, r.Progress, prefs)
	stats := services.NewUserStatsService(log, r.Summary, r.Progress)
	cacheSvc := services.NewMasteryCacheService(log, store, invalidator, cfg.CacheTTLs, tasks, stats, summaries, r.Summary)

	scheduler := maintenance.NewScheduler(log)
	if err := maintenance.RegisterMasteryJobs(scheduler, log, maintenance.LoadSchedule(log), maintenance.Deps{
		Summaries: summaries,
		Cache:     cacheSvc,
	}); err != nil {
		return Services{}, fmt.Errorf("wire maintenance jobs: %w", err)
	}

	return Services{
		Preferences: prefs,
		Invalidator: invalidator,
		Summaries:   summaries,
		Batch:       batch,
		Tasks:       tasks,
		Stats:       stats,
		Cache:       cacheSvc,
		Schedule:    services.NewReviewScheduleService(db, log, r.Summary, r.Progress, summaries, invalidator),
		Hooks:       services.NewMasteryHooks(log, batch, summaries, invalidator),
		Progression: services.NewProgressionService(log, r.Progress, r.Criterion, r.CriterionMastery, prefs, summaries, invalidator),
		Scheduler:   scheduler,
	}, nil
}
