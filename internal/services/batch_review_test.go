package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	repos "github.com/yungbote/neurobridge-mastery/internal/data/repos/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/data/repos/testutil"
	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
)

func noPause() BatchConfig {
	cfg := DefaultBatchConfig()
	cfg.ChunkPause = 0
	return cfg
}

func TestChunkOutcomesSplitsIntoHundreds(t *testing.T) {
	outcomes := make([]ReviewOutcome, 250)
	chunks := chunkOutcomes(outcomes, 100)
	if len(chunks) != 3 {
		t.Fatalf("chunks: want=3 got=%d", len(chunks))
	}
	for i, want := range []int{100, 100, 50} {
		if got := len(chunks[i]); got != want {
			t.Fatalf("chunk %d size: want=%d got=%d", i, want, got)
		}
	}
	if got := chunkOutcomes(nil, 100); len(got) != 0 {
		t.Fatalf("empty input: want=0 chunks got=%d", len(got))
	}
}

func TestProcessBatchAggregatesAllChunks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	blueprintID := uuid.New()

	var ids []string
	for i := 0; i < 5; i++ {
		id := testutil.UniqueID("prim")
		ids = append(ids, id)
		testutil.SeedProgress(t, ctx, env.db, userID, id, blueprintID, 0)
	}
	outcomes := make([]ReviewOutcome, 0, 250)
	for i := 0; i < 250; i++ {
		outcomes = append(outcomes, ReviewOutcome{
			PrimitiveID: ids[i%len(ids)],
			BlueprintID: blueprintID,
			IsCorrect:   i%2 == 0,
		})
	}

	res, err := env.batchService(noPause()).ProcessBatch(ctx, userID, outcomes)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if res.Chunks != 3 {
		t.Fatalf("chunks: want=3 got=%d", res.Chunks)
	}
	if res.TotalProcessed != 250 || res.Successful+res.Failed != 250 {
		t.Fatalf("totals: want=250 got processed=%d successful=%d failed=%d", res.TotalProcessed, res.Successful, res.Failed)
	}
	if res.Failed != 0 {
		t.Fatalf("failed: want=0 got=%d", res.Failed)
	}
	if len(res.Outcomes) != 250 {
		t.Fatalf("outcomes: want=250 got=%d", len(res.Outcomes))
	}

	rows, err := env.progress.ListByUserID(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		t.Fatalf("ListByUserID: %v", err)
	}
	for _, p := range rows {
		if p.ReviewCount != 50 {
			t.Fatalf("review count for %s: want=50 got=%d", p.PrimitiveID, p.ReviewCount)
		}
		if p.Version == 0 {
			t.Fatalf("version for %s was not bumped", p.PrimitiveID)
		}
	}
}

func TestProcessBatchMissingProgressIsPerOutcome(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	blueprintID := uuid.New()
	known := testutil.UniqueID("prim")
	testutil.SeedProgress(t, ctx, env.db, userID, known, blueprintID, 0)

	res, err := env.batchService(noPause()).ProcessBatch(ctx, userID, []ReviewOutcome{
		{PrimitiveID: "missing", BlueprintID: blueprintID, IsCorrect: true},
		{PrimitiveID: known, BlueprintID: blueprintID, IsCorrect: true},
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if res.Successful != 1 || res.Failed != 1 {
		t.Fatalf("counts: want=1/1 got=%d/%d", res.Successful, res.Failed)
	}
	if got := res.Outcomes[0].Error; got != "Progress record not found" {
		t.Fatalf("error: want=%q got=%q", "Progress record not found", got)
	}
	if !res.Outcomes[1].Success || res.Outcomes[1].ReviewCount != 1 {
		t.Fatalf("second outcome: got=%+v", res.Outcomes[1])
	}
}

func TestProcessBatchSchedulesFromIntervalStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	blueprintID := uuid.New()
	up := testutil.UniqueID("prim")
	down := testutil.UniqueID("prim")
	testutil.SeedProgress(t, ctx, env.db, userID, up, blueprintID, 2)
	testutil.SeedProgress(t, ctx, env.db, userID, down, blueprintID, 3)

	res, err := env.batchService(noPause()).ProcessBatch(ctx, userID, []ReviewOutcome{
		{PrimitiveID: up, BlueprintID: blueprintID, IsCorrect: true, DifficultyRating: 3},
		{PrimitiveID: down, BlueprintID: blueprintID, IsCorrect: false, DifficultyRating: 3},
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if want := testNow.AddDate(0, 0, 7); !res.Outcomes[0].NextReviewAt.Equal(want) {
		t.Fatalf("correct at step 2: want=%v got=%v", want, res.Outcomes[0].NextReviewAt)
	}
	if want := testNow.AddDate(0, 0, 7); !res.Outcomes[1].NextReviewAt.Equal(want) {
		t.Fatalf("incorrect at step 3: want=%v got=%v", want, res.Outcomes[1].NextReviewAt)
	}

	rows, err := env.progress.GetByKeys(dbctx.Context{Ctx: ctx}, userID, []repos.ProgressKey{
		{PrimitiveID: up, BlueprintID: blueprintID},
		{PrimitiveID: down, BlueprintID: blueprintID},
	})
	if err != nil {
		t.Fatalf("GetByKeys: %v", err)
	}
	for _, p := range rows {
		switch p.PrimitiveID {
		case up:
			if p.IntervalStep != 3 || p.SuccessfulReviews != 1 || p.ReviewCount != 3 {
				t.Fatalf("up row: got step=%d successful=%d reviews=%d", p.IntervalStep, p.SuccessfulReviews, p.ReviewCount)
			}
		case down:
			if p.IntervalStep != 2 || p.SuccessfulReviews != 0 || p.ReviewCount != 4 {
				t.Fatalf("down row: got step=%d successful=%d reviews=%d", p.IntervalStep, p.SuccessfulReviews, p.ReviewCount)
			}
		}
	}
}

func TestProcessBatchUsesTrackingIntensity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	blueprintID := uuid.New()
	prim := testutil.UniqueID("prim")
	testutil.SeedProgress(t, ctx, env.db, userID, prim, blueprintID, 1)
	prefs := types.DefaultBucketPreferences(userID)
	prefs.TrackingIntensity = types.IntensitySparse
	testutil.SeedPreferences(t, ctx, env.db, prefs)

	res, err := env.batchService(noPause()).ProcessBatch(ctx, userID, []ReviewOutcome{
		{PrimitiveID: prim, BlueprintID: blueprintID, IsCorrect: true},
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if want := testNow.AddDate(0, 0, 5); !res.Outcomes[0].NextReviewAt.Equal(want) {
		t.Fatalf("sparse step 1: want=%v got=%v", want, res.Outcomes[0].NextReviewAt)
	}
}

func TestCriterionMasteryFlipsAtTwoAndIsSticky(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	blueprintID := uuid.New()
	prim := testutil.UniqueID("prim")
	crit := testutil.UniqueID("crit")
	testutil.SeedProgress(t, ctx, env.db, userID, prim, blueprintID, 0)
	testutil.SeedCriterionMastery(t, ctx, env.db, userID, crit, prim, blueprintID, 0, false)

	svc := env.batchService(noPause())
	outcome := func(correct bool) ReviewOutcome {
		return ReviewOutcome{PrimitiveID: prim, BlueprintID: blueprintID, CriterionID: crit, IsCorrect: correct}
	}
	load := func() *types.UserCriterionMastery {
		rows, err := env.mastery.GetByKeys(dbctx.Context{Ctx: ctx}, userID, []repos.CriterionKey{{CriterionID: crit, PrimitiveID: prim, BlueprintID: blueprintID}})
		if err != nil || len(rows) != 1 {
			t.Fatalf("load mastery: rows=%d err=%v", len(rows), err)
		}
		return rows[0]
	}

	res, err := svc.ProcessBatch(ctx, userID, []ReviewOutcome{outcome(true)})
	if err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if m := load(); m.IsMastered || m.SuccessfulAttempts != 1 {
		t.Fatalf("after one success: mastered=%v successful=%d", m.IsMastered, m.SuccessfulAttempts)
	}
	if res.Outcomes[0].CriterionMastered {
		t.Fatalf("first success should not report mastery")
	}

	res, err = svc.ProcessBatch(ctx, userID, []ReviewOutcome{outcome(true)})
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	m := load()
	if !m.IsMastered || m.MasteredAt == nil {
		t.Fatalf("after two successes: mastered=%v masteredAt=%v", m.IsMastered, m.MasteredAt)
	}
	if !res.Outcomes[0].CriterionMastered {
		t.Fatalf("second success should report mastery")
	}
	masteredAt := *m.MasteredAt

	if _, err := svc.ProcessBatch(ctx, userID, []ReviewOutcome{outcome(false), outcome(false)}); err != nil {
		t.Fatalf("third batch: %v", err)
	}
	m = load()
	if !m.IsMastered {
		t.Fatalf("mastery was revoked by incorrect answers")
	}
	if !m.MasteredAt.Equal(masteredAt) {
		t.Fatalf("masteredAt moved: want=%v got=%v", masteredAt, m.MasteredAt)
	}
	if m.AttemptCount != 4 {
		t.Fatalf("attempts: want=4 got=%d", m.AttemptCount)
	}
}

// conflictOnNthUpdate reports a version conflict on the nth UpdateIfVersion call.
type conflictOnNthUpdate struct {
	repos.UserPrimitiveProgressRepo
	n     int
	calls int
}

func (c *conflictOnNthUpdate) UpdateIfVersion(dbc dbctx.Context, row *types.UserPrimitiveProgress, expected int64) (bool, error) {
	c.calls++
	if c.calls == c.n {
		return false, nil
	}
	return c.UserPrimitiveProgressRepo.UpdateIfVersion(dbc, row, expected)
}

func TestChunkFailureKeepsCommittedChunks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	blueprintID := uuid.New()
	prim := testutil.UniqueID("prim")
	testutil.SeedProgress(t, ctx, env.db, userID, prim, blueprintID, 0)

	svc := env.batchService(noPause())
	svc.progressRepo = &conflictOnNthUpdate{UserPrimitiveProgressRepo: env.progress, n: 2}

	outcomes := make([]ReviewOutcome, 250)
	for i := range outcomes {
		outcomes[i] = ReviewOutcome{PrimitiveID: prim, BlueprintID: blueprintID, IsCorrect: true}
	}
	res, err := svc.ProcessBatch(ctx, userID, outcomes)
	if !errors.Is(err, ErrConcurrentUpdate) {
		t.Fatalf("expected ErrConcurrentUpdate, got %v", err)
	}
	if res == nil || res.Chunks != 1 || res.TotalProcessed != 100 || len(res.Outcomes) != 100 {
		t.Fatalf("partial result: got=%+v", res)
	}

	p, err := env.progress.GetLatestForPrimitive(dbctx.Context{Ctx: ctx}, userID, prim)
	if err != nil || p == nil {
		t.Fatalf("GetLatestForPrimitive: %v", err)
	}
	if p.ReviewCount != 100 {
		t.Fatalf("committed reviews: want=100 got=%d", p.ReviewCount)
	}
}

func TestProcessBatchStopsOnCancelledContext(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := env.batchService(noPause()).ProcessBatch(ctx, userID, []ReviewOutcome{{PrimitiveID: "p", BlueprintID: uuid.New(), IsCorrect: true}})
	if err == nil {
		t.Fatalf("expected error for cancelled context")
	}
	if res == nil || res.TotalProcessed != 0 {
		t.Fatalf("nothing should be processed: got=%+v", res)
	}
}

func seedBatch(t *testing.T, env *testEnv, n int) (uuid.UUID, string, []ReviewOutcome) {
	t.Helper()
	userID := uuid.New()
	blueprintID := uuid.New()
	prim := testutil.UniqueID("prim")
	testutil.SeedProgress(t, context.Background(), env.db, userID, prim, blueprintID, 0)
	outcomes := make([]ReviewOutcome, n)
	for i := range outcomes {
		outcomes[i] = ReviewOutcome{PrimitiveID: prim, BlueprintID: blueprintID, IsCorrect: true}
	}
	return userID, prim, outcomes
}

func TestProcessBatchPausesBetweenChunks(t *testing.T) {
	env := newTestEnv(t)
	userID, _, outcomes := seedBatch(t, env, 3)
	pause := 30 * time.Millisecond

	start := time.Now()
	res, err := env.batchService(BatchConfig{MaxBatchSize: 1, ChunkPause: pause}).ProcessBatch(context.Background(), userID, outcomes)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if res.Chunks != 3 {
		t.Fatalf("chunks: want=3 got=%d", res.Chunks)
	}
	if elapsed < 2*pause {
		t.Fatalf("elapsed: want>=%v got=%v", 2*pause, elapsed)
	}
}

// stallingUpdates blocks the nth progress write until the chunk context ends.
type stallingUpdates struct {
	repos.UserPrimitiveProgressRepo
	n     int
	calls int
}

func (s *stallingUpdates) UpdateIfVersion(dbc dbctx.Context, row *types.UserPrimitiveProgress, expected int64) (bool, error) {
	s.calls++
	if s.calls == s.n {
		<-dbc.Ctx.Done()
		return false, dbc.Ctx.Err()
	}
	return s.UserPrimitiveProgressRepo.UpdateIfVersion(dbc, row, expected)
}

func TestProcessBatchChunkTimeoutRollsBackChunk(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID, prim, outcomes := seedBatch(t, env, 3)

	svc := env.batchService(BatchConfig{MaxBatchSize: 1, ChunkTimeout: 50 * time.Millisecond})
	svc.progressRepo = &stallingUpdates{UserPrimitiveProgressRepo: env.progress, n: 2}

	start := time.Now()
	res, err := svc.ProcessBatch(ctx, userID, outcomes)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want context.DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("chunk timeout did not bound the stalled chunk")
	}
	if res == nil || res.Chunks != 1 || res.TotalProcessed != 1 {
		t.Fatalf("only the first chunk should be reported: %+v", res)
	}
	p, err := env.progress.GetLatestForPrimitive(dbctx.Context{Ctx: ctx}, userID, prim)
	if err != nil || p == nil {
		t.Fatalf("GetLatestForPrimitive: %v", err)
	}
	if p.ReviewCount != 1 {
		t.Fatalf("timed-out chunk must roll back: review count want=1 got=%d", p.ReviewCount)
	}
}

// stallingLocker grants the first lock and holds every later request until it gives up.
type stallingLocker struct{ calls int }

func (l *stallingLocker) Lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	l.calls++
	if l.calls == 1 {
		return func() {}, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestProcessBatchChunkTimeoutCoversLockWait(t *testing.T) {
	env := newTestEnv(t)
	userID, _, outcomes := seedBatch(t, env, 2)

	svc := env.batchService(BatchConfig{MaxBatchSize: 1, ChunkTimeout: 30 * time.Millisecond})
	svc.locker = &stallingLocker{}

	res, err := svc.ProcessBatch(context.Background(), userID, outcomes)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want context.DeadlineExceeded, got %v", err)
	}
	if res.Chunks != 1 || res.Successful != 1 {
		t.Fatalf("first chunk should commit: %+v", res)
	}
}
