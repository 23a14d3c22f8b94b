package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	repos "github.com/yungbote/neurobridge-mastery/internal/data/repos/mastery"
	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/mastery/scoring"
	apperrors "github.com/yungbote/neurobridge-mastery/internal/pkg/errors"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

type DailyTask struct {
	PrimitiveID          string       `json:"primitive_id"`
	PrimitiveTitle       string       `json:"primitive_title"`
	MasteryLevel         string       `json:"mastery_level"`
	WeightedMasteryScore float64      `json:"weighted_mastery_score"`
	NextReviewAt         *time.Time   `json:"next_review_at,omitempty"`
	Bucket               types.Bucket `json:"bucket"`
	QuestionCount        int          `json:"question_count"`
}

type BucketCompletion struct {
	TotalAssigned  int `json:"total_assigned"`
	CompletedCount int `json:"completed_count"`
}

func (b BucketCompletion) rate() float64 {
	return float64(b.CompletedCount) / float64(max(1, b.TotalAssigned))
}

// TaskCompletion is the client's tally of today's tasks per bucket.
type TaskCompletion struct {
	Critical BucketCompletion `json:"critical"`
	Core     BucketCompletion `json:"core"`
	Plus     BucketCompletion `json:"plus"`
}

func (c TaskCompletion) of(b types.Bucket) BucketCompletion {
	switch b {
	case types.BucketCritical:
		return c.Critical
	case types.BucketCore:
		return c.Core
	default:
		return c.Plus
	}
}

func (c TaskCompletion) assigned() int {
	return c.Critical.TotalAssigned + c.Core.TotalAssigned + c.Plus.TotalAssigned
}

func (c TaskCompletion) validate() error {
	for _, b := range []types.Bucket{types.BucketCritical, types.BucketCore, types.BucketPlus} {
		bc := c.of(b)
		if bc.TotalAssigned < 0 || bc.CompletedCount < 0 || bc.CompletedCount > bc.TotalAssigned {
			return fmt.Errorf("%w: %s completion %d/%d", apperrors.ErrInvalidArgument, b, bc.CompletedCount, bc.TotalAssigned)
		}
	}
	return nil
}

// BucketSourceMixed marks an increment drawn from every bucket.
const BucketSourceMixed = "mixed"

type AdditionalTasks struct {
	Tasks           []DailyTask              `json:"tasks"`
	Message         string                   `json:"message"`
	CanAddMore      bool                     `json:"can_add_more"`
	BucketSource    string                   `json:"bucket_source,omitempty"`
	CompletionRates map[types.Bucket]float64 `json:"completion_rates,omitempty"`
}

// TaskGenerator builds a user's task list for today. GenerateDailyTasks is only called on a
// cache miss.
type TaskGenerator interface {
	GenerateDailyTasks(ctx context.Context, userID uuid.UUID) ([]DailyTask, error)
	// GetAdditionalTasks hands out one more increment beyond today's assignment, never past
	// the daily limit.
	GetAdditionalTasks(ctx context.Context, userID uuid.UUID, done TaskCompletion) (*AdditionalTasks, error)
}

type taskGenerator struct {
	log          *logger.Logger
	summaries    SummaryMaintenanceService
	summaryRepo  repos.UserPrimitiveDailySummaryRepo
	progressRepo repos.UserPrimitiveProgressRepo
	prefs        PreferencesService
	now          func() time.Time
}

func NewTaskGenerator(
	log *logger.Logger,
	summaries SummaryMaintenanceService,
	summaryRepo repos.UserPrimitiveDailySummaryRepo,
	progressRepo repos.UserPrimitiveProgressRepo,
	prefs PreferencesService,
) TaskGenerator {
	return &taskGenerator{
		log:          log.With("service", "TaskGenerator"),
		summaries:    summaries,
		summaryRepo:  summaryRepo,
		progressRepo: progressRepo,
		prefs:        prefs,
		now:          time.Now,
	}
}

func (g *taskGenerator) GenerateDailyTasks(ctx context.Context, userID uuid.UUID) ([]DailyTask, error) {
	prefs, err := g.prefs.GetBucketPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	// Reviews may have moved next_review_at since the last maintenance run.
	if _, err := g.summaries.RecomputeUserSummaries(ctx, userID); err != nil {
		return nil, err
	}
	due, err := g.summaryRepo.ListDue(dbctx.Context{Ctx: ctx}, userID, g.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list due summaries: %w", err)
	}
	tasks := selectDailyTasks(due, prefs)
	g.log.Debug("Daily tasks generated", "user_id", userID, "due", len(due), "tasks", len(tasks))
	return tasks, nil
}

// selectDailyTasks fills the critical, core and plus buckets up to their caps from due
// summaries (already ordered by urgency) and then trims to the daily limit, critical first.
func selectDailyTasks(due []*types.UserPrimitiveDailySummary, prefs types.UserBucketPreferences) []DailyTask {
	caps := map[types.Bucket]int{
		types.BucketCritical: prefs.CriticalSize,
		types.BucketCore:     prefs.CoreSize,
		types.BucketPlus:     prefs.PlusSize,
	}
	picked := map[types.Bucket][]*types.UserPrimitiveDailySummary{}
	for _, s := range due {
		if s == nil {
			continue
		}
		b := scoring.ClassifyBucket(s.WeightedMasteryScore)
		if len(picked[b]) < caps[b] {
			picked[b] = append(picked[b], s)
		}
	}

	tasks := make([]DailyTask, 0, len(due))
	for _, b := range []types.Bucket{types.BucketCritical, types.BucketCore, types.BucketPlus} {
		inBucket := picked[b]
		for _, s := range inBucket {
			if prefs.MaxDailyLimit > 0 && len(tasks) >= prefs.MaxDailyLimit {
				return tasks
			}
			tasks = append(tasks, newDailyTask(s, b, caps[b], len(inBucket)))
		}
	}
	return tasks
}

func newDailyTask(s *types.UserPrimitiveDailySummary, b types.Bucket, bucketCap, inBucket int) DailyTask {
	return DailyTask{
		PrimitiveID:          s.PrimitiveID,
		PrimitiveTitle:       s.PrimitiveTitle,
		MasteryLevel:         s.MasteryLevel,
		WeightedMasteryScore: s.WeightedMasteryScore,
		NextReviewAt:         s.NextReviewAt,
		Bucket:               b,
		QuestionCount:        questionCount(s.WeightedMasteryScore, bucketCap, inBucket),
	}
}

func (g *taskGenerator) GetAdditionalTasks(ctx context.Context, userID uuid.UUID, done TaskCompletion) (*AdditionalTasks, error) {
	if err := done.validate(); err != nil {
		return nil, err
	}
	prefs, err := g.prefs.GetBucketPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &AdditionalTasks{
		Tasks: []DailyTask{},
		CompletionRates: map[types.Bucket]float64{
			types.BucketCritical: done.Critical.rate(),
			types.BucketCore:     done.Core.rate(),
			types.BucketPlus:     done.Plus.rate(),
		},
	}

	assigned := done.assigned()
	increment := prefs.AddMoreIncrements
	if prefs.MaxDailyLimit > 0 {
		if assigned >= prefs.MaxDailyLimit {
			out.Message = "Daily limit reached."
			return out, nil
		}
		increment = min(increment, prefs.MaxDailyLimit-assigned)
	}
	if increment <= 0 {
		out.Message = "No more tasks available today."
		return out, nil
	}

	if _, err := g.summaries.RecomputeUserSummaries(ctx, userID); err != nil {
		return nil, err
	}
	pool, err := g.bucketPool(ctx, userID)
	if err != nil {
		return nil, err
	}
	picked, source := pickAdditional(pool, done, increment)

	caps := map[types.Bucket]int{
		types.BucketCritical: prefs.CriticalSize,
		types.BucketCore:     prefs.CoreSize,
		types.BucketPlus:     prefs.PlusSize,
	}
	perBucket := map[types.Bucket]int{}
	for _, s := range picked {
		perBucket[scoring.ClassifyBucket(s.WeightedMasteryScore)]++
	}
	for _, s := range picked {
		b := scoring.ClassifyBucket(s.WeightedMasteryScore)
		out.Tasks = append(out.Tasks, newDailyTask(s, b, caps[b], perBucket[b]))
	}

	out.BucketSource = source
	switch {
	case len(out.Tasks) == 0:
		out.Message = "No more tasks available today."
	case source == BucketSourceMixed:
		out.Message = fmt.Sprintf("Added %d more tasks.", len(out.Tasks))
	default:
		out.Message = fmt.Sprintf("Added %d more %s tasks.", len(out.Tasks), source)
	}
	total := assigned + len(out.Tasks)
	out.CanAddMore = len(out.Tasks) > 0 && (prefs.MaxDailyLimit <= 0 || total < prefs.MaxDailyLimit)
	g.log.Debug("Additional tasks generated", "user_id", userID, "source", source, "tasks", len(out.Tasks))
	return out, nil
}

// bucketPool buckets every primitive the user has progress on, most urgent first. Due rows
// lead in the same order GenerateDailyTasks uses, so skipping a bucket's assigned count skips
// exactly the tasks already handed out.
func (g *taskGenerator) bucketPool(ctx context.Context, userID uuid.UUID) (map[types.Bucket][]*types.UserPrimitiveDailySummary, error) {
	dbc := dbctx.Context{Ctx: ctx}
	progress, err := g.progressRepo.ListByUserID(dbc, userID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	started := make(map[string]bool, len(progress))
	for _, p := range progress {
		started[p.PrimitiveID] = true
	}
	rows, err := g.summaryRepo.ListByUserID(dbc, userID)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].NextReviewAt, rows[j].NextReviewAt
		switch {
		case a == nil && b == nil:
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		}
		return rows[i].WeightedMasteryScore < rows[j].WeightedMasteryScore
	})
	pool := map[types.Bucket][]*types.UserPrimitiveDailySummary{}
	for _, r := range rows {
		if r == nil || !started[r.PrimitiveID] {
			continue
		}
		b := scoring.ClassifyBucket(r.WeightedMasteryScore)
		pool[b] = append(pool[b], r)
	}
	return pool, nil
}

// additionalRules are tried in order. The first bucket whose completion rate clears its bar
// and still has unassigned primitives supplies the whole increment.
var additionalRules = []struct {
	bucket  types.Bucket
	minRate float64
}{
	{types.BucketCritical, 0.8},
	{types.BucketCore, 0.7},
	{types.BucketPlus, 0.6},
}

// pickAdditional falls back to a 40/40/20 critical/core/plus mix when no bucket qualifies.
func pickAdditional(pool map[types.Bucket][]*types.UserPrimitiveDailySummary, done TaskCompletion, n int) ([]*types.UserPrimitiveDailySummary, string) {
	remaining := func(b types.Bucket) []*types.UserPrimitiveDailySummary {
		list, skip := pool[b], done.of(b).TotalAssigned
		if skip >= len(list) {
			return nil
		}
		return list[skip:]
	}
	for _, rule := range additionalRules {
		avail := remaining(rule.bucket)
		if len(avail) > 0 && done.of(rule.bucket).rate() >= rule.minRate {
			return head(avail, n), string(rule.bucket)
		}
	}
	share := func(f float64) int { return int(math.Ceil(float64(n) * f)) }
	var mixed []*types.UserPrimitiveDailySummary
	mixed = append(mixed, head(remaining(types.BucketCritical), share(0.4))...)
	mixed = append(mixed, head(remaining(types.BucketCore), share(0.4))...)
	mixed = append(mixed, head(remaining(types.BucketPlus), share(0.2))...)
	return head(mixed, n), BucketSourceMixed
}

func head[T any](s []T, n int) []T {
	if n < len(s) {
		return s[:n]
	}
	return s
}

// questionCount spreads a bucket's capacity across its primitives, weighting weaker ones
// by 1.2x up to 2.0x.
func questionCount(mastery float64, bucketCap, inBucket int) int {
	if inBucket < 1 {
		inBucket = 1
	}
	base := bucketCap / inBucket
	if base < 1 {
		base = 1
	}
	n := int(math.Round(float64(base) * (1.2 + 0.8*(1-mastery))))
	if n < 1 {
		return 1
	}
	return n
}
