package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	repos "github.com/yungbote/neurobridge-mastery/internal/data/repos/mastery"
	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/mastery/scoring"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

type UserStats struct {
	UserID                 uuid.UUID            `json:"user_id"`
	TotalPrimitives        int                  `json:"total_primitives"`
	MasteryDistribution    map[types.Bucket]int `json:"mastery_distribution"`
	AverageWeightedMastery float64              `json:"average_weighted_mastery"`
	ProgressionEligible    int                  `json:"progression_eligible"`
	ByMasteryLevel         map[string]int       `json:"by_mastery_level"`
	TotalReviews           int                  `json:"total_reviews"`
	SuccessfulReviews      int                  `json:"successful_reviews"`
	SuccessRate            float64              `json:"success_rate"`
	ReviewedLast7Days      int                  `json:"reviewed_last_7_days"`
	ReviewedLast30Days     int                  `json:"reviewed_last_30_days"`
	ReviewStreakDays       int                  `json:"review_streak_days"`
	GeneratedAt            time.Time            `json:"generated_at"`
}

type StatsProvider interface {
	ComputeUserStats(ctx context.Context, userID uuid.UUID) (*UserStats, error)
}

type userStatsService struct {
	log          *logger.Logger
	summaryRepo  repos.UserPrimitiveDailySummaryRepo
	progressRepo repos.UserPrimitiveProgressRepo
	now          func() time.Time
}

func NewUserStatsService(log *logger.Logger, summaryRepo repos.UserPrimitiveDailySummaryRepo, progressRepo repos.UserPrimitiveProgressRepo) StatsProvider {
	return &userStatsService{
		log:          log.With("service", "UserStatsService"),
		summaryRepo:  summaryRepo,
		progressRepo: progressRepo,
		now:          time.Now,
	}
}

func (s *userStatsService) ComputeUserStats(ctx context.Context, userID uuid.UUID) (*UserStats, error) {
	var (
		summaries []*types.UserPrimitiveDailySummary
		progress  []*types.UserPrimitiveProgress
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.summaryRepo.ListByUserID(dbctx.Context{Ctx: gctx}, userID)
		if err != nil {
			return fmt.Errorf("list summaries: %w", err)
		}
		summaries = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.progressRepo.ListByUserID(dbctx.Context{Ctx: gctx}, userID)
		if err != nil {
			return fmt.Errorf("list progress: %w", err)
		}
		progress = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return buildUserStats(userID, s.now().UTC(), summaries, progress), nil
}

func buildUserStats(userID uuid.UUID, now time.Time, summaries []*types.UserPrimitiveDailySummary, progress []*types.UserPrimitiveProgress) *UserStats {
	out := &UserStats{
		UserID: userID,
		MasteryDistribution: map[types.Bucket]int{
			types.BucketCritical: 0,
			types.BucketCore:     0,
			types.BucketPlus:     0,
		},
		ByMasteryLevel: map[string]int{},
		GeneratedAt:    now,
	}

	var scoreSum float64
	for _, s := range summaries {
		if s == nil {
			continue
		}
		out.TotalPrimitives++
		scoreSum += s.WeightedMasteryScore
		out.MasteryDistribution[scoring.ClassifyBucket(s.WeightedMasteryScore)]++
		out.ByMasteryLevel[s.MasteryLevel]++
		if s.CanProgressToNext {
			out.ProgressionEligible++
		}
	}
	if out.TotalPrimitives > 0 {
		out.AverageWeightedMastery = scoreSum / float64(out.TotalPrimitives)
	}

	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, 0, -30)
	reviewDays := map[string]struct{}{}
	for _, p := range progress {
		if p == nil {
			continue
		}
		out.TotalReviews += p.ReviewCount
		out.SuccessfulReviews += p.SuccessfulReviews
		if p.LastReviewedAt == nil {
			continue
		}
		last := p.LastReviewedAt.UTC()
		reviewDays[last.Format(time.DateOnly)] = struct{}{}
		if !last.Before(weekAgo) {
			out.ReviewedLast7Days++
		}
		if !last.Before(monthAgo) {
			out.ReviewedLast30Days++
		}
	}
	if out.TotalReviews > 0 {
		out.SuccessRate = float64(out.SuccessfulReviews) / float64(out.TotalReviews)
	}
	for day := now; ; day = day.AddDate(0, 0, -1) {
		if _, ok := reviewDays[day.Format(time.DateOnly)]; !ok {
			break
		}
		out.ReviewStreakDays++
	}
	return out
}
