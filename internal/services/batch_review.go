package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	repos "github.com/yungbote/neurobridge-mastery/internal/data/repos/mastery"
	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/mastery/interval"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
	"github.com/yungbote/neurobridge-mastery/internal/platform/userlock"
)

const criterionMasteryAttempts = 2

type ReviewOutcome struct {
	PrimitiveID string    `json:"primitive_id"`
	BlueprintID uuid.UUID `json:"blueprint_id"`
	IsCorrect   bool      `json:"is_correct"`
	CriterionID string    `json:"criterion_id,omitempty"`
	// DifficultyRating is 1-5; 0 means not rated.
	DifficultyRating int   `json:"difficulty_rating,omitempty"`
	ResponseTimeMs   int64 `json:"response_time_ms,omitempty"`
}

type OutcomeResult struct {
	PrimitiveID       string     `json:"primitive_id"`
	BlueprintID       uuid.UUID  `json:"blueprint_id"`
	Success           bool       `json:"success"`
	Error             string     `json:"error,omitempty"`
	ReviewCount       int        `json:"review_count,omitempty"`
	NextReviewAt      *time.Time `json:"next_review_at,omitempty"`
	CriterionMastered bool       `json:"criterion_mastered,omitempty"`
}

// BatchResult aggregates every committed chunk. When a chunk fails, its outcomes are absent
// and Outcomes is shorter than the submitted batch.
type BatchResult struct {
	TotalProcessed   int             `json:"total_processed"`
	Successful       int             `json:"successful"`
	Failed           int             `json:"failed"`
	Chunks           int             `json:"chunks"`
	Outcomes         []OutcomeResult `json:"outcomes"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
}

type BatchConfig struct {
	MaxBatchSize int
	ChunkPause   time.Duration
	ChunkTimeout time.Duration
}

func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxBatchSize: 100,
		ChunkPause:   100 * time.Millisecond,
		ChunkTimeout: 30 * time.Second,
	}
}

type BatchReviewService interface {
	// ProcessBatch applies outcomes in sequential chunks, one transaction per chunk. A failed
	// chunk stops the call; chunks committed before it stay committed and are reported in the
	// returned result alongside the error. The processor never touches the cache.
	ProcessBatch(ctx context.Context, userID uuid.UUID, outcomes []ReviewOutcome) (*BatchResult, error)
}

type batchReviewService struct {
	db            *gorm.DB
	log           *logger.Logger
	cfg           BatchConfig
	progressRepo  repos.UserPrimitiveProgressRepo
	criterionRepo repos.UserCriterionMasteryRepo
	prefs         PreferencesService
	locker        userlock.Locker
	now           func() time.Time
}

func NewBatchReviewService(
	db *gorm.DB,
	log *logger.Logger,
	cfg BatchConfig,
	progressRepo repos.UserPrimitiveProgressRepo,
	criterionRepo repos.UserCriterionMasteryRepo,
	prefs PreferencesService,
	locker userlock.Locker,
) BatchReviewService {
	def := DefaultBatchConfig()
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = def.MaxBatchSize
	}
	if cfg.ChunkPause < 0 {
		cfg.ChunkPause = 0
	}
	if cfg.ChunkTimeout <= 0 {
		cfg.ChunkTimeout = def.ChunkTimeout
	}
	if locker == nil {
		locker = userlock.NewKeyedMutex()
	}
	return &batchReviewService{
		db:            db,
		log:           log.With("service", "BatchReviewService"),
		cfg:           cfg,
		progressRepo:  progressRepo,
		criterionRepo: criterionRepo,
		prefs:         prefs,
		locker:        locker,
		now:           time.Now,
	}
}

func (s *batchReviewService) ProcessBatch(ctx context.Context, userID uuid.UUID, outcomes []ReviewOutcome) (*BatchResult, error) {
	start := time.Now()
	result := &BatchResult{Outcomes: make([]OutcomeResult, 0, len(outcomes))}
	finish := func() *BatchResult {
		result.ProcessingTimeMs = time.Since(start).Milliseconds()
		return result
	}
	if userID == uuid.Nil {
		return finish(), fmt.Errorf("process batch: missing user id")
	}
	if len(outcomes) == 0 {
		return finish(), nil
	}

	prefs, err := s.prefs.GetBucketPreferences(ctx, userID)
	if err != nil {
		return finish(), fmt.Errorf("process batch: %w", err)
	}

	chunks := chunkOutcomes(outcomes, s.cfg.MaxBatchSize)
	for i, chunk := range chunks {
		if i > 0 && s.cfg.ChunkPause > 0 {
			select {
			case <-ctx.Done():
				return finish(), ctx.Err()
			case <-time.After(s.cfg.ChunkPause):
			}
		}
		if err := ctx.Err(); err != nil {
			return finish(), err
		}

		chunkResults, err := s.processChunk(ctx, userID, chunk, prefs.TrackingIntensity, i)
		if err != nil {
			s.log.Error("Batch chunk failed",
				"user_id", userID,
				"chunk", i+1,
				"chunks", len(chunks),
				"committed_outcomes", result.TotalProcessed,
				"error", err,
			)
			return finish(), fmt.Errorf("process chunk %d/%d: %w", i+1, len(chunks), err)
		}
		result.Chunks++
		for _, r := range chunkResults {
			result.TotalProcessed++
			if r.Success {
				result.Successful++
			} else {
				result.Failed++
			}
			result.Outcomes = append(result.Outcomes, r)
		}
	}

	finish()
	s.log.Info("Batch processed",
		"user_id", userID,
		"batch_size", len(outcomes),
		"chunks", result.Chunks,
		"successful", result.Successful,
		"failed", result.Failed,
		"processing_time_ms", result.ProcessingTimeMs,
	)
	return result, nil
}

type progressWrite struct {
	row             *types.UserPrimitiveProgress
	expectedVersion int64
}

func (s *batchReviewService) processChunk(ctx context.Context, userID uuid.UUID, chunk []ReviewOutcome, intensity types.TrackingIntensity, index int) ([]OutcomeResult, error) {
	ctx, span := otel.Tracer("neurobridge-mastery/services").Start(ctx, "batch_review.chunk")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", userID.String()),
		attribute.Int("chunk.index", index),
		attribute.Int("chunk.size", len(chunk)),
	)

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.ChunkTimeout)
	defer cancel()

	release, err := s.locker.Lock(txCtx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock")
		return nil, err
	}
	defer release()

	var (
		results        []OutcomeResult
		progressWrites int
		criterionWrite int
	)
	now := s.now().UTC()
	err = s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: txCtx, Tx: tx}

		progressKeys := make([]repos.ProgressKey, 0, len(chunk))
		var criterionKeys []repos.CriterionKey
		for _, o := range chunk {
			progressKeys = append(progressKeys, repos.ProgressKey{PrimitiveID: o.PrimitiveID, BlueprintID: o.BlueprintID})
			if o.CriterionID != "" {
				criterionKeys = append(criterionKeys, repos.CriterionKey{CriterionID: o.CriterionID, PrimitiveID: o.PrimitiveID, BlueprintID: o.BlueprintID})
			}
		}

		progressRows, err := s.progressRepo.GetByKeys(dbc, userID, progressKeys)
		if err != nil {
			return fmt.Errorf("fetch progress: %w", err)
		}
		progressByKey := make(map[repos.ProgressKey]*types.UserPrimitiveProgress, len(progressRows))
		for _, p := range progressRows {
			progressByKey[repos.ProgressKey{PrimitiveID: p.PrimitiveID, BlueprintID: p.BlueprintID}] = p
		}

		masteryRows, err := s.criterionRepo.GetByKeys(dbc, userID, criterionKeys)
		if err != nil {
			return fmt.Errorf("fetch criterion mastery: %w", err)
		}
		masteryByKey := make(map[repos.CriterionKey]*types.UserCriterionMastery, len(masteryRows))
		for _, m := range masteryRows {
			masteryByKey[repos.CriterionKey{CriterionID: m.CriterionID, PrimitiveID: m.PrimitiveID, BlueprintID: m.BlueprintID}] = m
		}

		var (
			pendingProgress []progressWrite
			seenProgress    = map[uuid.UUID]bool{}
			pendingMastery  []*types.UserCriterionMastery
			seenMastery     = map[uuid.UUID]bool{}
		)
		results = make([]OutcomeResult, 0, len(chunk))
		for _, o := range chunk {
			res := OutcomeResult{PrimitiveID: o.PrimitiveID, BlueprintID: o.BlueprintID}
			p := progressByKey[repos.ProgressKey{PrimitiveID: o.PrimitiveID, BlueprintID: o.BlueprintID}]
			if p == nil {
				res.Error = progressNotFoundMessage
				results = append(results, res)
				continue
			}
			if !seenProgress[p.ID] {
				seenProgress[p.ID] = true
				pendingProgress = append(pendingProgress, progressWrite{row: p, expectedVersion: p.Version})
			}
			applyOutcomeToProgress(p, o, now, intensity)

			if o.CriterionID != "" {
				m := masteryByKey[repos.CriterionKey{CriterionID: o.CriterionID, PrimitiveID: o.PrimitiveID, BlueprintID: o.BlueprintID}]
				if m != nil {
					if !seenMastery[m.ID] {
						seenMastery[m.ID] = true
						pendingMastery = append(pendingMastery, m)
					}
					res.CriterionMastered = applyOutcomeToCriterion(m, o.IsCorrect, now)
				}
			}

			res.Success = true
			res.ReviewCount = p.ReviewCount
			next := *p.NextReviewAt
			res.NextReviewAt = &next
			results = append(results, res)
		}

		for _, w := range pendingProgress {
			ok, err := s.progressRepo.UpdateIfVersion(dbc, w.row, w.expectedVersion)
			if err != nil {
				return fmt.Errorf("update progress %s: %w", w.row.PrimitiveID, err)
			}
			if !ok {
				return fmt.Errorf("progress %s: %w", w.row.PrimitiveID, ErrConcurrentUpdate)
			}
		}
		for _, m := range pendingMastery {
			if err := s.criterionRepo.ApplyAttempt(dbc, m); err != nil {
				return fmt.Errorf("update criterion mastery %s: %w", m.CriterionID, err)
			}
		}
		progressWrites = len(pendingProgress)
		criterionWrite = len(pendingMastery)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chunk transaction")
		return nil, err
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	s.log.Debug("Batch chunk committed",
		"user_id", userID,
		"chunk", index+1,
		"batch_size", len(chunk),
		"success_rate", float64(succeeded)/float64(len(chunk)),
		"progress_updates", progressWrites,
		"criterion_updates", criterionWrite,
	)
	return results, nil
}

// applyOutcomeToProgress schedules the next review from the row's current interval step.
func applyOutcomeToProgress(p *types.UserPrimitiveProgress, o ReviewOutcome, now time.Time, intensity types.TrackingIntensity) {
	next := interval.ComputeNextReview(now, p.IntervalStep, o.IsCorrect, o.DifficultyRating, intensity)
	p.ReviewCount++
	if o.IsCorrect {
		p.SuccessfulReviews++
	}
	p.IntervalStep = next.NewReviewCount
	reviewedAt := now
	p.LastReviewedAt = &reviewedAt
	nextAt := next.NextReviewAt
	p.NextReviewAt = &nextAt
	p.UpdatedAt = now
}

// applyOutcomeToCriterion records one attempt and reports whether this attempt mastered
// the criterion. Mastery is never revoked.
func applyOutcomeToCriterion(m *types.UserCriterionMastery, isCorrect bool, now time.Time) bool {
	m.AttemptCount++
	if isCorrect {
		m.SuccessfulAttempts++
	}
	attemptedAt := now
	m.LastAttemptedAt = &attemptedAt
	m.UpdatedAt = now
	if !m.IsMastered && m.SuccessfulAttempts >= criterionMasteryAttempts {
		m.IsMastered = true
		masteredAt := now
		m.MasteredAt = &masteredAt
		return true
	}
	return false
}

// chunkOutcomes splits outcomes into consecutive slices of at most size elements.
func chunkOutcomes(outcomes []ReviewOutcome, size int) [][]ReviewOutcome {
	if size <= 0 {
		size = len(outcomes)
	}
	chunks := make([][]ReviewOutcome, 0, (len(outcomes)+size-1)/max(size, 1))
	for start := 0; start < len(outcomes); start += size {
		end := min(start+size, len(outcomes))
		chunks = append(chunks, outcomes[start:end])
	}
	return chunks
}
