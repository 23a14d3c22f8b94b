package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	repos "github.com/yungbote/neurobridge-mastery/internal/data/repos/mastery"
	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/mastery/scoring"
	apperrors "github.com/yungbote/neurobridge-mastery/internal/pkg/errors"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

const DefaultScheduleWindowDays = 7

type ScheduledReview struct {
	PrimitiveID          string       `json:"primitive_id"`
	PrimitiveTitle       string       `json:"primitive_title"`
	MasteryLevel         string       `json:"mastery_level"`
	WeightedMasteryScore float64      `json:"weighted_mastery_score"`
	Bucket               types.Bucket `json:"bucket"`
	NextReviewAt         *time.Time   `json:"next_review_at,omitempty"`
	// DaysOverdue is only set for overdue reviews with a known due date.
	DaysOverdue int `json:"days_overdue,omitempty"`
}

type RescheduleRequest struct {
	PrimitiveID  string    `json:"primitive_id"`
	BlueprintID  uuid.UUID `json:"blueprint_id"`
	NextReviewAt time.Time `json:"next_review_at"`
}

type ReviewScheduleService interface {
	GetScheduledReviews(ctx context.Context, userID uuid.UUID, days int) ([]ScheduledReview, error)
	GetOverdueReviews(ctx context.Context, userID uuid.UUID) ([]ScheduledReview, error)
	// GetReviewCalendar groups a month's scheduled reviews by YYYY-MM-DD.
	GetReviewCalendar(ctx context.Context, userID uuid.UUID, year int, month time.Month) (map[string][]ScheduledReview, error)
	Reschedule(ctx context.Context, userID uuid.UUID, reqs []RescheduleRequest) (int, error)
}

type reviewScheduleService struct {
	db           *gorm.DB
	log          *logger.Logger
	summaryRepo  repos.UserPrimitiveDailySummaryRepo
	progressRepo repos.UserPrimitiveProgressRepo
	summaries    SummaryMaintenanceService
	invalidator  CacheInvalidator
	now          func() time.Time
}

func NewReviewScheduleService(
	db *gorm.DB,
	log *logger.Logger,
	summaryRepo repos.UserPrimitiveDailySummaryRepo,
	progressRepo repos.UserPrimitiveProgressRepo,
	summaries SummaryMaintenanceService,
	invalidator CacheInvalidator,
) ReviewScheduleService {
	return &reviewScheduleService{
		db:           db,
		log:          log.With("service", "ReviewScheduleService"),
		summaryRepo:  summaryRepo,
		progressRepo: progressRepo,
		summaries:    summaries,
		invalidator:  invalidator,
		now:          time.Now,
	}
}

func (s *reviewScheduleService) GetScheduledReviews(ctx context.Context, userID uuid.UUID, days int) ([]ScheduledReview, error) {
	if days <= 0 {
		days = DefaultScheduleWindowDays
	}
	now := s.now().UTC()
	rows, err := s.summaryRepo.ListScheduledBetween(dbctx.Context{Ctx: ctx}, userID, now, now.AddDate(0, 0, days))
	if err != nil {
		return nil, fmt.Errorf("list scheduled reviews: %w", err)
	}
	out := make([]ScheduledReview, 0, len(rows))
	for _, r := range rows {
		out = append(out, toScheduledReview(r, now, false))
	}
	return out, nil
}

func (s *reviewScheduleService) GetOverdueReviews(ctx context.Context, userID uuid.UUID) ([]ScheduledReview, error) {
	now := s.now().UTC()
	rows, err := s.summaryRepo.ListOverdue(dbctx.Context{Ctx: ctx}, userID, now)
	if err != nil {
		return nil, fmt.Errorf("list overdue reviews: %w", err)
	}
	out := make([]ScheduledReview, 0, len(rows))
	for _, r := range rows {
		out = append(out, toScheduledReview(r, now, true))
	}
	return out, nil
}

func (s *reviewScheduleService) GetReviewCalendar(ctx context.Context, userID uuid.UUID, year int, month time.Month) (map[string][]ScheduledReview, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("%w: month %d", apperrors.ErrInvalidArgument, month)
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	rows, err := s.summaryRepo.ListScheduledBetween(dbctx.Context{Ctx: ctx}, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list calendar reviews: %w", err)
	}
	now := s.now().UTC()
	calendar := make(map[string][]ScheduledReview)
	for _, r := range rows {
		if r.NextReviewAt == nil {
			continue
		}
		day := r.NextReviewAt.UTC().Format(time.DateOnly)
		calendar[day] = append(calendar[day], toScheduledReview(r, now, false))
	}
	return calendar, nil
}

// Reschedule moves next_review_at for every request in one transaction, then refreshes the
// affected summaries and invalidates the user's cache once. Any missing progress row rolls
// back the whole request. It returns the number of progress rows moved.
func (s *reviewScheduleService) Reschedule(ctx context.Context, userID uuid.UUID, reqs []RescheduleRequest) (int, error) {
	for _, r := range reqs {
		if r.PrimitiveID == "" || r.NextReviewAt.IsZero() {
			return 0, fmt.Errorf("%w: reschedule needs primitive_id and next_review_at", apperrors.ErrInvalidArgument)
		}
	}
	moved := 0
	var order []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		touched := map[string]bool{}
		for _, r := range reqs {
			n, err := s.progressRepo.SetNextReviewAt(dbc, userID,
				repos.ProgressKey{PrimitiveID: r.PrimitiveID, BlueprintID: r.BlueprintID}, r.NextReviewAt.UTC())
			if err != nil {
				return fmt.Errorf("reschedule %s: %w", r.PrimitiveID, err)
			}
			if n == 0 {
				return fmt.Errorf("reschedule %s: %w", r.PrimitiveID, ErrProgressNotFound)
			}
			moved += int(n)
			if !touched[r.PrimitiveID] {
				touched[r.PrimitiveID] = true
				order = append(order, r.PrimitiveID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, primitiveID := range order {
		if _, err := s.summaries.UpdatePrimitiveSummary(ctx, userID, primitiveID); err != nil {
			s.log.Warn("Summary refresh after reschedule failed", "user_id", userID, "primitive_id", primitiveID, "error", err)
		}
	}
	if moved > 0 {
		s.invalidator.InvalidateUserCache(ctx, userID)
	}
	return moved, nil
}

func toScheduledReview(r *types.UserPrimitiveDailySummary, now time.Time, overdue bool) ScheduledReview {
	out := ScheduledReview{
		PrimitiveID:          r.PrimitiveID,
		PrimitiveTitle:       r.PrimitiveTitle,
		MasteryLevel:         r.MasteryLevel,
		WeightedMasteryScore: r.WeightedMasteryScore,
		Bucket:               scoring.ClassifyBucket(r.WeightedMasteryScore),
		NextReviewAt:         r.NextReviewAt,
	}
	if overdue && r.NextReviewAt != nil {
		out.DaysOverdue = int(now.Sub(r.NextReviewAt.UTC()).Hours() / 24)
	}
	return out
}
