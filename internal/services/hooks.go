package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

// MasteryHooks are the event entry points used by controllers and other services.
type MasteryHooks interface {
	// SubmitReviews processes a batch, refreshes the summary of every primitive that had a
	// successful outcome and invalidates the user's cache. Summaries of chunks that committed
	// before a failure are still refreshed.
	SubmitReviews(ctx context.Context, userID uuid.UUID, outcomes []ReviewOutcome) (*BatchResult, error)
	OnReviewSubmitted(ctx context.Context, userID uuid.UUID, primitiveID string) error
	OnUserPreferencesChanged(ctx context.Context, userID uuid.UUID) error
}

type masteryHooks struct {
	log         *logger.Logger
	batch       BatchReviewService
	summaries   SummaryMaintenanceService
	invalidator CacheInvalidator
}

func NewMasteryHooks(log *logger.Logger, batch BatchReviewService, summaries SummaryMaintenanceService, invalidator CacheInvalidator) MasteryHooks {
	return &masteryHooks{
		log:         log.With("service", "MasteryHooks"),
		batch:       batch,
		summaries:   summaries,
		invalidator: invalidator,
	}
}

func (h *masteryHooks) SubmitReviews(ctx context.Context, userID uuid.UUID, outcomes []ReviewOutcome) (*BatchResult, error) {
	result, batchErr := h.batch.ProcessBatch(ctx, userID, outcomes)
	if result == nil || result.Successful == 0 {
		return result, batchErr
	}

	seen := map[string]bool{}
	for _, o := range result.Outcomes {
		if !o.Success || seen[o.PrimitiveID] {
			continue
		}
		seen[o.PrimitiveID] = true
		if _, err := h.summaries.UpdatePrimitiveSummary(ctx, userID, o.PrimitiveID); err != nil {
			h.log.Warn("Summary refresh after review failed", "user_id", userID, "primitive_id", o.PrimitiveID, "error", err)
		}
	}
	h.invalidator.InvalidateUserCache(ctx, userID)
	return result, batchErr
}

func (h *masteryHooks) OnReviewSubmitted(ctx context.Context, userID uuid.UUID, primitiveID string) error {
	if _, err := h.summaries.UpdatePrimitiveSummary(ctx, userID, primitiveID); err != nil {
		return fmt.Errorf("review submitted hook: %w", err)
	}
	h.invalidator.InvalidateUserCache(ctx, userID)
	return nil
}

// OnUserPreferencesChanged recomputes every summary because thresholds may have moved.
func (h *masteryHooks) OnUserPreferencesChanged(ctx context.Context, userID uuid.UUID) error {
	n, err := h.summaries.UpdateAllUserSummaries(ctx, userID)
	if err != nil {
		return fmt.Errorf("preferences changed hook: %w", err)
	}
	h.invalidator.InvalidateUserCache(ctx, userID)
	h.log.Debug("Summaries recomputed after preference change", "user_id", userID, "primitives", n)
	return nil
}
