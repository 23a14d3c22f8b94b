package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	repos "github.com/yungbote/neurobridge-mastery/internal/data/repos/mastery"
	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/mastery/scoring"
	apperrors "github.com/yungbote/neurobridge-mastery/internal/pkg/errors"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

var (
	ErrCannotProgress = fmt.Errorf("weighted mastery below the progression threshold: %w", apperrors.ErrConflict)
	ErrFinalLevel     = fmt.Errorf("already at %s: %w", types.MasteryLevelExplore, apperrors.ErrConflict)
)

// ProgressionCheck scores the criteria of the stage a learner would enter next.
type ProgressionCheck struct {
	PrimitiveID     string    `json:"primitive_id"`
	BlueprintID     uuid.UUID `json:"blueprint_id"`
	CurrentLevel    string    `json:"current_level"`
	NextLevel       string    `json:"next_level,omitempty"`
	WeightedMastery float64   `json:"weighted_mastery"`
	Threshold       float64   `json:"threshold"`
	CanProgress     bool      `json:"can_progress"`
}

type ProgressionService interface {
	CheckProgression(ctx context.Context, userID uuid.UUID, primitiveID string, blueprintID uuid.UUID) (*ProgressionCheck, error)
	// AdvanceLevel moves the progress row one rung up the ladder when CheckProgression allows
	// it, then refreshes the summary and drops the user's cache.
	AdvanceLevel(ctx context.Context, userID uuid.UUID, primitiveID string, blueprintID uuid.UUID) (*ProgressionCheck, error)
}

type progressionService struct {
	log          *logger.Logger
	progressRepo repos.UserPrimitiveProgressRepo
	criteriaRepo repos.MasteryCriterionRepo
	masteryRepo  repos.UserCriterionMasteryRepo
	prefs        PreferencesService
	summaries    SummaryMaintenanceService
	invalidator  CacheInvalidator
	now          func() time.Time
}

func NewProgressionService(
	log *logger.Logger,
	progressRepo repos.UserPrimitiveProgressRepo,
	criteriaRepo repos.MasteryCriterionRepo,
	masteryRepo repos.UserCriterionMasteryRepo,
	prefs PreferencesService,
	summaries SummaryMaintenanceService,
	invalidator CacheInvalidator,
) ProgressionService {
	return &progressionService{
		log:          log.With("service", "ProgressionService"),
		progressRepo: progressRepo,
		criteriaRepo: criteriaRepo,
		masteryRepo:  masteryRepo,
		prefs:        prefs,
		summaries:    summaries,
		invalidator:  invalidator,
		now:          time.Now,
	}
}

func (s *progressionService) CheckProgression(ctx context.Context, userID uuid.UUID, primitiveID string, blueprintID uuid.UUID) (*ProgressionCheck, error) {
	check, _, err := s.check(ctx, userID, primitiveID, blueprintID)
	return check, err
}

func (s *progressionService) check(ctx context.Context, userID uuid.UUID, primitiveID string, blueprintID uuid.UUID) (*ProgressionCheck, *types.UserPrimitiveProgress, error) {
	if primitiveID == "" {
		return nil, nil, fmt.Errorf("%w: missing primitive id", apperrors.ErrInvalidArgument)
	}
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := s.progressRepo.GetByKeys(dbc, userID, []repos.ProgressKey{{PrimitiveID: primitiveID, BlueprintID: blueprintID}})
	if err != nil {
		return nil, nil, fmt.Errorf("load progress for %s: %w", primitiveID, err)
	}
	if len(rows) == 0 || rows[0] == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrProgressNotFound, primitiveID)
	}
	progress := rows[0]

	check := &ProgressionCheck{
		PrimitiveID:  primitiveID,
		BlueprintID:  blueprintID,
		CurrentLevel: progress.MasteryLevel,
	}
	next, ok := scoring.NextLevel(progress.MasteryLevel)
	if !ok {
		return check, progress, nil
	}
	check.NextLevel = next

	criteria, err := s.criteriaRepo.ListByPrimitiveID(dbc, primitiveID)
	if err != nil {
		return nil, nil, fmt.Errorf("load criteria for %s: %w", primitiveID, err)
	}
	masteries, err := s.masteryRepo.ListByUserAndPrimitive(dbc, userID, primitiveID)
	if err != nil {
		return nil, nil, fmt.Errorf("load criterion mastery for %s: %w", primitiveID, err)
	}
	prefs, err := s.prefs.GetBucketPreferences(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	mastered := make(map[string]bool, len(masteries))
	for _, m := range masteries {
		if m != nil && m.IsMastered && m.BlueprintID == blueprintID {
			mastered[m.CriterionID] = true
		}
	}
	stage := scoring.StageOf(next)
	var states []scoring.CriterionState
	for _, c := range criteria {
		if c.UUEStage != stage {
			continue
		}
		states = append(states, scoring.CriterionState{Weight: c.EffectiveWeight(), Mastered: mastered[c.CriterionID]})
	}
	score := scoring.WeightedMastery(states)
	check.WeightedMastery = score.Score
	check.Threshold = scoring.Threshold(prefs.MasteryThresholdLevel)
	check.CanProgress = scoring.CanProgress(score.Score, prefs.MasteryThresholdLevel)
	return check, progress, nil
}

func (s *progressionService) AdvanceLevel(ctx context.Context, userID uuid.UUID, primitiveID string, blueprintID uuid.UUID) (*ProgressionCheck, error) {
	check, progress, err := s.check(ctx, userID, primitiveID, blueprintID)
	if err != nil {
		return nil, err
	}
	if check.NextLevel == "" {
		return check, ErrFinalLevel
	}
	if !check.CanProgress {
		return check, fmt.Errorf("%w: %.2f < %.2f", ErrCannotProgress, check.WeightedMastery, check.Threshold)
	}

	ok, err := s.progressRepo.SetMasteryLevelIfVersion(dbctx.Context{Ctx: ctx}, progress.ID, check.NextLevel, progress.Version, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("advance %s: %w", primitiveID, err)
	}
	if !ok {
		return nil, fmt.Errorf("advance %s: %w", primitiveID, ErrConcurrentUpdate)
	}

	if _, err := s.summaries.UpdatePrimitiveSummary(ctx, userID, primitiveID); err != nil {
		s.log.Warn("Summary refresh after level change failed", "user_id", userID, "primitive_id", primitiveID, "error", err)
	}
	s.invalidator.InvalidateUserCache(ctx, userID)
	s.log.Info("Mastery level advanced",
		"user_id", userID,
		"primitive_id", primitiveID,
		"from", check.CurrentLevel,
		"to", check.NextLevel,
	)

	check.CurrentLevel = check.NextLevel
	check.NextLevel, _ = scoring.NextLevel(check.CurrentLevel)
	check.CanProgress = false
	return check, nil
}
