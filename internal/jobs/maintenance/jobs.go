package maintenance

import (
	"context"
	"fmt"

	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
	"github.com/yungbote/neurobridge-mastery/internal/services"
)

// Deps are the services the maintenance jobs drive.
type Deps struct {
	Summaries services.SummaryMaintenanceService
	Cache     services.MasteryCacheService
}

// RegisterMasteryJobs binds every known job name in specs to its implementation.
func RegisterMasteryJobs(s *Scheduler, log *logger.Logger, specs []JobSpec, deps Deps) error {
	funcs := map[string]JobFunc{
		JobDailySummaryMaintenance: func(ctx context.Context) error {
			_, err := deps.Summaries.PerformDailySummaryMaintenance(ctx)
			return err
		},
		JobWeeklyStaleCleanup: func(ctx context.Context) error {
			_, err := deps.Summaries.CleanupStaleData(ctx)
			return err
		},
		JobHourlyCacheHousekeeping: func(ctx context.Context) error {
			purged := deps.Cache.PurgeExpired(ctx)
			st := deps.Cache.GetCacheStats()
			log.Info("Cache housekeeping",
				"purged", purged,
				"keys", st.Keys,
				"hits", st.Hits,
				"misses", st.Misses,
				"ksize", st.KSize,
				"vsize", st.VSize,
			)
			return nil
		},
		JobStaleSummaryRefresh: func(ctx context.Context) error {
			_, err := deps.Summaries.RefreshStaleSummaries(ctx)
			return err
		},
	}
	for _, spec := range specs {
		fn, ok := funcs[spec.Name]
		if !ok {
			log.Warn("maintenance: no implementation for scheduled job; ignoring", "job", spec.Name)
			continue
		}
		if err := s.Register(spec, fn); err != nil {
			return fmt.Errorf("register maintenance jobs: %w", err)
		}
	}
	return nil
}
