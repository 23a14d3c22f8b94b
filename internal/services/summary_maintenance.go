package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	repos "github.com/yungbote/neurobridge-mastery/internal/data/repos/mastery"
	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/mastery/scoring"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

const (
	dailyMaintenanceWindow = 7 * 24 * time.Hour
	summaryFreshness       = 24 * time.Hour
)

// MaintenanceReport summarizes completed and skipped work of one maintenance run.
type MaintenanceReport struct {
	UsersProcessed   int         `json:"users_processed"`
	UsersFailed      int         `json:"users_failed"`
	FailedUserIDs    []uuid.UUID `json:"failed_user_ids,omitempty"`
	SummariesDeleted int64       `json:"summaries_deleted"`
	UsersInvalidated int         `json:"users_invalidated"`
	DurationMs       int64       `json:"duration_ms"`
}

type SummaryStats struct {
	TotalSummaries         int64   `json:"total_summaries"`
	RecentlyUpdated        int64   `json:"recently_updated"`
	StaleCount             int64   `json:"stale_count"`
	AverageWeightedMastery float64 `json:"average_weighted_mastery"`
}

type SummaryMaintenanceService interface {
	UpdatePrimitiveSummary(ctx context.Context, userID uuid.UUID, primitiveID string) (*types.UserPrimitiveDailySummary, error)
	// UpdateAllUserSummaries refreshes every primitive the user owns, in order, and stops at
	// the first failure.
	UpdateAllUserSummaries(ctx context.Context, userID uuid.UUID) (int, error)
	// RecomputeUserSummaries rewrites the user's summary rows without touching the cache.
	// Cache loaders use it so that filling one entry never evicts a sibling.
	RecomputeUserSummaries(ctx context.Context, userID uuid.UUID) (int, error)
	// BatchUpdateSummaries isolates failures per user.
	BatchUpdateSummaries(ctx context.Context, userIDs []uuid.UUID) MaintenanceReport
	PerformDailySummaryMaintenance(ctx context.Context) (MaintenanceReport, error)
	CleanupStaleData(ctx context.Context) (MaintenanceReport, error)
	RefreshStaleSummaries(ctx context.Context) (MaintenanceReport, error)
	GetSummaryStats(ctx context.Context) (SummaryStats, error)
}

type summaryMaintenanceService struct {
	log           *logger.Logger
	primitiveRepo repos.KnowledgePrimitiveRepo
	criteriaRepo  repos.MasteryCriterionRepo
	masteryRepo   repos.UserCriterionMasteryRepo
	progressRepo  repos.UserPrimitiveProgressRepo
	summaryRepo   repos.UserPrimitiveDailySummaryRepo
	prefs         PreferencesService
	invalidator   CacheInvalidator
	now           func() time.Time
}

func NewSummaryMaintenanceService(
	log *logger.Logger,
	primitiveRepo repos.KnowledgePrimitiveRepo,
	criteriaRepo repos.MasteryCriterionRepo,
	masteryRepo repos.UserCriterionMasteryRepo,
	progressRepo repos.UserPrimitiveProgressRepo,
	summaryRepo repos.UserPrimitiveDailySummaryRepo,
	prefs PreferencesService,
	invalidator CacheInvalidator,
) SummaryMaintenanceService {
	return &summaryMaintenanceService{
		log:           log.With("service", "SummaryMaintenanceService"),
		primitiveRepo: primitiveRepo,
		criteriaRepo:  criteriaRepo,
		masteryRepo:   masteryRepo,
		progressRepo:  progressRepo,
		summaryRepo:   summaryRepo,
		prefs:         prefs,
		invalidator:   invalidator,
		now:           time.Now,
	}
}

func (s *summaryMaintenanceService) UpdatePrimitiveSummary(ctx context.Context, userID uuid.UUID, primitiveID string) (*types.UserPrimitiveDailySummary, error) {
	row, err := s.recompute(ctx, userID, primitiveID)
	if err != nil {
		return nil, err
	}
	s.invalidator.InvalidateDailySummaryCache(ctx, userID)
	s.invalidator.InvalidateDailyTasksCache(ctx, userID)
	return row, nil
}

func (s *summaryMaintenanceService) recompute(ctx context.Context, userID uuid.UUID, primitiveID string) (*types.UserPrimitiveDailySummary, error) {
	dbc := dbctx.Context{Ctx: ctx}

	found, err := s.primitiveRepo.GetByPrimitiveIDs(dbc, []string{primitiveID})
	if err != nil {
		return nil, fmt.Errorf("load primitive %s: %w", primitiveID, err)
	}
	if len(found) == 0 || found[0] == nil {
		return nil, fmt.Errorf("%w: %s", ErrPrimitiveNotFound, primitiveID)
	}
	primitive := found[0]

	criteria, err := s.criteriaRepo.ListByPrimitiveID(dbc, primitiveID)
	if err != nil {
		return nil, fmt.Errorf("load criteria for %s: %w", primitiveID, err)
	}
	masteries, err := s.masteryRepo.ListByUserAndPrimitive(dbc, userID, primitiveID)
	if err != nil {
		return nil, fmt.Errorf("load criterion mastery for %s: %w", primitiveID, err)
	}
	progress, err := s.progressRepo.GetLatestForPrimitive(dbc, userID, primitiveID)
	if err != nil {
		return nil, fmt.Errorf("load progress for %s: %w", primitiveID, err)
	}
	prefs, err := s.prefs.GetBucketPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	mastered := make(map[string]bool, len(masteries))
	for _, m := range masteries {
		if m != nil && m.IsMastered {
			mastered[m.CriterionID] = true
		}
	}
	states := make([]scoring.CriterionState, 0, len(criteria))
	for _, c := range criteria {
		states = append(states, scoring.CriterionState{Weight: c.EffectiveWeight(), Mastered: mastered[c.CriterionID]})
	}
	score := scoring.WeightedMastery(states)

	now := s.now().UTC()
	row := &types.UserPrimitiveDailySummary{
		UserID:               userID,
		PrimitiveID:          primitiveID,
		PrimitiveTitle:       primitive.Title,
		MasteryLevel:         types.MasteryLevelNotStarted,
		WeightedMasteryScore: score.Score,
		TotalCriteria:        score.TotalCriteria,
		MasteredCriteria:     score.MasteredCriteria,
		CanProgressToNext:    scoring.CanProgress(score.Score, prefs.MasteryThresholdLevel),
		LastCalculated:       now,
		UpdatedAt:            now,
	}
	if progress != nil {
		row.MasteryLevel = progress.MasteryLevel
		row.NextReviewAt = progress.NextReviewAt
	}
	if err := s.summaryRepo.Upsert(dbc, row); err != nil {
		return nil, fmt.Errorf("upsert summary for %s: %w", primitiveID, err)
	}

	s.invalidator.InvalidateDailySummaryCache(ctx, userID)
	s.invalidator.InvalidateDailyTasksCache(ctx, userID)
	return row, nil
}

func (s *summaryMaintenanceService) UpdateAllUserSummaries(ctx context.Context, userID uuid.UUID) (int, error) {
	updated, err := s.RecomputeUserSummaries(ctx, userID)
	if updated > 0 {
		s.invalidator.InvalidateDailySummaryCache(ctx, userID)
		s.invalidator.InvalidateDailyTasksCache(ctx, userID)
	}
	return updated, err
}

func (s *summaryMaintenanceService) RecomputeUserSummaries(ctx context.Context, userID uuid.UUID) (int, error) {
	primitives, err := s.primitiveRepo.ListByUserID(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return 0, fmt.Errorf("list primitives: %w", err)
	}
	updated := 0
	for _, p := range primitives {
		if _, err := s.recompute(ctx, userID, p.PrimitiveID); err != nil {
			return updated, fmt.Errorf("update summaries for user %s: %w", userID, err)
		}
		updated++
	}
	return updated, nil
}

func (s *summaryMaintenanceService) BatchUpdateSummaries(ctx context.Context, userIDs []uuid.UUID) MaintenanceReport {
	start := time.Now()
	var report MaintenanceReport
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.UpdateAllUserSummaries(ctx, userID); err != nil {
			s.log.Warn("Summary update failed for user", "user_id", userID, "error", err)
			report.UsersFailed++
			report.FailedUserIDs = append(report.FailedUserIDs, userID)
			continue
		}
		report.UsersProcessed++
	}
	report.DurationMs = time.Since(start).Milliseconds()
	return report
}

func (s *summaryMaintenanceService) PerformDailySummaryMaintenance(ctx context.Context) (MaintenanceReport, error) {
	ctx, span := otel.Tracer("neurobridge-mastery/services").Start(ctx, "summary_maintenance.daily")
	defer span.End()

	since := s.now().UTC().Add(-dailyMaintenanceWindow)
	userIDs, err := s.progressRepo.ListUserIDsReviewedSince(dbctx.Context{Ctx: ctx}, since)
	if err != nil {
		span.RecordError(err)
		return MaintenanceReport{}, fmt.Errorf("list recently active users: %w", err)
	}
	report := s.BatchUpdateSummaries(ctx, userIDs)
	span.SetAttributes(
		attribute.Int("users.processed", report.UsersProcessed),
		attribute.Int("users.failed", report.UsersFailed),
	)
	s.log.Info("Daily summary maintenance finished",
		"users", len(userIDs),
		"processed", report.UsersProcessed,
		"failed", report.UsersFailed,
		"duration_ms", report.DurationMs,
	)
	return report, nil
}

func (s *summaryMaintenanceService) CleanupStaleData(ctx context.Context) (MaintenanceReport, error) {
	ctx, span := otel.Tracer("neurobridge-mastery/services").Start(ctx, "summary_maintenance.cleanup")
	defer span.End()

	start := time.Now()
	var report MaintenanceReport
	dbc := dbctx.Context{Ctx: ctx}
	orphans, err := s.summaryRepo.ListOrphans(dbc)
	if err != nil {
		span.RecordError(err)
		return report, fmt.Errorf("list orphaned summaries: %w", err)
	}
	if len(orphans) == 0 {
		report.DurationMs = time.Since(start).Milliseconds()
		return report, nil
	}

	ids := make([]uuid.UUID, 0, len(orphans))
	var users []uuid.UUID
	seen := map[uuid.UUID]bool{}
	for _, o := range orphans {
		ids = append(ids, o.ID)
		if !seen[o.UserID] {
			seen[o.UserID] = true
			users = append(users, o.UserID)
		}
	}
	deleted, err := s.summaryRepo.DeleteByIDs(dbc, ids)
	if err != nil {
		span.RecordError(err)
		return report, fmt.Errorf("delete orphaned summaries: %w", err)
	}
	report.SummariesDeleted = deleted
	for _, userID := range users {
		s.invalidator.InvalidateUserCache(ctx, userID)
	}
	report.UsersInvalidated = len(users)
	report.DurationMs = time.Since(start).Milliseconds()
	s.log.Info("Stale summary cleanup finished", "deleted", deleted, "users", len(users))
	return report, nil
}

func (s *summaryMaintenanceService) RefreshStaleSummaries(ctx context.Context) (MaintenanceReport, error) {
	cutoff := s.now().UTC().Add(-summaryFreshness)
	userIDs, err := s.summaryRepo.ListUserIDsCalculatedBefore(dbctx.Context{Ctx: ctx}, cutoff)
	if err != nil {
		return MaintenanceReport{}, fmt.Errorf("list users with stale summaries: %w", err)
	}
	report := s.BatchUpdateSummaries(ctx, userIDs)
	if len(userIDs) > 0 {
		s.log.Info("Stale summaries refreshed", "users", len(userIDs), "failed", report.UsersFailed)
	}
	return report, nil
}

func (s *summaryMaintenanceService) GetSummaryStats(ctx context.Context) (SummaryStats, error) {
	agg, err := s.summaryRepo.Aggregate(dbctx.Context{Ctx: ctx}, s.now().UTC().Add(-summaryFreshness))
	if err != nil {
		return SummaryStats{}, fmt.Errorf("aggregate summaries: %w", err)
	}
	return SummaryStats{
		TotalSummaries:         agg.Total,
		RecentlyUpdated:        agg.RecentlyUpdated,
		StaleCount:             agg.Stale,
		AverageWeightedMastery: agg.AverageWeightedMastery,
	}, nil
}
