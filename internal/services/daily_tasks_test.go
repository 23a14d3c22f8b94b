package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-mastery/internal/data/repos/testutil"
	types "github.com/yungbote/neurobridge-mastery/internal/domain/mastery"
	apperrors "github.com/yungbote/neurobridge-mastery/internal/pkg/errors"
	"github.com/yungbote/neurobridge-mastery/internal/platform/dbctx"
)

func summaryWithScore(id string, score float64) *types.UserPrimitiveDailySummary {
	return &types.UserPrimitiveDailySummary{PrimitiveID: id, WeightedMasteryScore: score}
}

func TestQuestionCount(t *testing.T) {
	cases := []struct {
		mastery  float64
		cap, n   int
		expected int
	}{
		{0, 10, 2, 10},
		{1, 10, 2, 6},
		{0.5, 15, 3, 8},
		{0, 5, 20, 2},
		{1, 0, 0, 1},
	}
	for _, tc := range cases {
		if got := questionCount(tc.mastery, tc.cap, tc.n); got != tc.expected {
			t.Fatalf("questionCount(%v,%d,%d): want=%d got=%d", tc.mastery, tc.cap, tc.n, tc.expected, got)
		}
	}
}

func TestSelectDailyTasksRespectsCapsAndLimit(t *testing.T) {
	prefs := types.DefaultBucketPreferences(uuid.New())
	prefs.CriticalSize = 2
	prefs.CoreSize = 1
	prefs.PlusSize = 1
	prefs.MaxDailyLimit = 3

	due := []*types.UserPrimitiveDailySummary{
		summaryWithScore("c1", 0.1),
		summaryWithScore("p1", 0.9),
		summaryWithScore("c2", 0.2),
		summaryWithScore("c3", 0.3),
		summaryWithScore("m1", 0.5),
		summaryWithScore("m2", 0.6),
	}
	tasks := selectDailyTasks(due, prefs)
	if len(tasks) != 3 {
		t.Fatalf("tasks: want=3 got=%d", len(tasks))
	}
	want := []struct {
		id     string
		bucket types.Bucket
	}{
		{"c1", types.BucketCritical},
		{"c2", types.BucketCritical},
		{"m1", types.BucketCore},
	}
	for i, w := range want {
		if tasks[i].PrimitiveID != w.id || tasks[i].Bucket != w.bucket {
			t.Fatalf("task %d: want=%s/%s got=%s/%s", i, w.id, w.bucket, tasks[i].PrimitiveID, tasks[i].Bucket)
		}
	}
}

func TestSelectDailyTasksEmpty(t *testing.T) {
	if got := selectDailyTasks(nil, types.DefaultBucketPreferences(uuid.New())); len(got) != 0 {
		t.Fatalf("want no tasks, got %d", len(got))
	}
}

func (e *testEnv) taskGenerator() *taskGenerator {
	gen := NewTaskGenerator(e.log, e.summaryService(), e.summaries, e.progress, e.prefs).(*taskGenerator)
	gen.now = fixedNow
	return gen
}

func TestGenerateDailyTasksBuildsMissingSummaries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	prim := testutil.UniqueID("due")
	testutil.SeedPrimitive(t, ctx, env.db, userID, prim)
	testutil.SeedCriterion(t, ctx, env.db, prim, testutil.UniqueID("crit"), nil)
	progress := testutil.SeedProgress(t, ctx, env.db, userID, prim, uuid.New(), 1)
	if err := env.db.Model(progress).Update("next_review_at", testNow.Add(-48*time.Hour)).Error; err != nil {
		t.Fatalf("set next_review_at: %v", err)
	}

	rows, _ := env.summaries.ListByUserID(dbctx.Context{Ctx: ctx}, userID)
	if len(rows) != 0 {
		t.Fatalf("precondition: want no summary rows, got %d", len(rows))
	}

	tasks, err := env.taskGenerator().GenerateDailyTasks(ctx, userID)
	if err != nil {
		t.Fatalf("GenerateDailyTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].PrimitiveID != prim {
		t.Fatalf("tasks: want=[%s] got=%+v", prim, tasks)
	}
	if tasks[0].Bucket != types.BucketCritical {
		t.Fatalf("bucket: want=%s got=%s", types.BucketCritical, tasks[0].Bucket)
	}
	if n := env.invalidator.users()[userID]; n != 0 || env.invalidator.tasksCalls[userID] != 0 {
		t.Fatalf("generating tasks must not invalidate the cache")
	}
}

func TestGenerateDailyTasksSkipsFutureReviews(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	prim := testutil.UniqueID("later")
	testutil.SeedPrimitive(t, ctx, env.db, userID, prim)
	progress := testutil.SeedProgress(t, ctx, env.db, userID, prim, uuid.New(), 1)
	if err := env.db.Model(progress).Update("next_review_at", testNow.Add(48*time.Hour)).Error; err != nil {
		t.Fatalf("set next_review_at: %v", err)
	}

	tasks, err := env.taskGenerator().GenerateDailyTasks(ctx, userID)
	if err != nil {
		t.Fatalf("GenerateDailyTasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("tasks: want none got=%d", len(tasks))
	}
}

func bucketPoolOf(ids map[types.Bucket][]string) map[types.Bucket][]*types.UserPrimitiveDailySummary {
	scores := map[types.Bucket]float64{types.BucketCritical: 0.1, types.BucketCore: 0.5, types.BucketPlus: 0.9}
	pool := map[types.Bucket][]*types.UserPrimitiveDailySummary{}
	for b, list := range ids {
		for _, id := range list {
			pool[b] = append(pool[b], summaryWithScore(id, scores[b]))
		}
	}
	return pool
}

func primitiveIDs(rows []*types.UserPrimitiveDailySummary) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.PrimitiveID)
	}
	return out
}

func TestPickAdditionalChoosesBucketByCompletionRate(t *testing.T) {
	pool := bucketPoolOf(map[types.Bucket][]string{
		types.BucketCritical: {"c1", "c2", "c3", "c4"},
		types.BucketCore:     {"m1", "m2", "m3"},
		types.BucketPlus:     {"p1", "p2"},
	})
	cases := []struct {
		name   string
		done   TaskCompletion
		want   []string
		source string
	}{
		{
			name:   "critical clears its bar",
			done:   TaskCompletion{Critical: BucketCompletion{TotalAssigned: 2, CompletedCount: 2}},
			want:   []string{"c3", "c4"},
			source: "critical",
		},
		{
			name: "core when critical lags",
			done: TaskCompletion{
				Critical: BucketCompletion{TotalAssigned: 2, CompletedCount: 1},
				Core:     BucketCompletion{TotalAssigned: 1, CompletedCount: 1},
			},
			want:   []string{"m2", "m3"},
			source: "core",
		},
		{
			name: "critical exhausted falls through to plus",
			done: TaskCompletion{
				Critical: BucketCompletion{TotalAssigned: 4, CompletedCount: 4},
				Core:     BucketCompletion{TotalAssigned: 3, CompletedCount: 3},
				Plus:     BucketCompletion{TotalAssigned: 1, CompletedCount: 1},
			},
			want:   []string{"p2"},
			source: "plus",
		},
		{
			name: "mixed when nothing qualifies",
			done: TaskCompletion{
				Critical: BucketCompletion{TotalAssigned: 1, CompletedCount: 0},
				Core:     BucketCompletion{TotalAssigned: 1, CompletedCount: 0},
				Plus:     BucketCompletion{TotalAssigned: 1, CompletedCount: 0},
			},
			want:   []string{"c2", "c3", "m2", "m3", "p2"},
			source: BucketSourceMixed,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, source := pickAdditional(pool, tc.done, 5)
			if source != tc.source {
				t.Fatalf("source: want=%s got=%s", tc.source, source)
			}
			ids := primitiveIDs(got)
			if len(ids) != len(tc.want) {
				t.Fatalf("picked: want=%v got=%v", tc.want, ids)
			}
			for i := range ids {
				if ids[i] != tc.want[i] {
					t.Fatalf("picked: want=%v got=%v", tc.want, ids)
				}
			}
		})
	}
}

func TestPickAdditionalMixedRespectsIncrement(t *testing.T) {
	pool := bucketPoolOf(map[types.Bucket][]string{
		types.BucketCritical: {"c1", "c2", "c3"},
		types.BucketCore:     {"m1", "m2", "m3"},
		types.BucketPlus:     {"p1", "p2"},
	})
	got, source := pickAdditional(pool, TaskCompletion{}, 3)
	if source != BucketSourceMixed {
		t.Fatalf("source: want=%s got=%s", BucketSourceMixed, source)
	}
	want := []string{"c1", "c2", "m1"}
	ids := primitiveIDs(got)
	if len(ids) != len(want) || ids[0] != want[0] || ids[1] != want[1] || ids[2] != want[2] {
		t.Fatalf("picked: want=%v got=%v", want, ids)
	}
}

func seedDueProgress(t *testing.T, env *testEnv, userID uuid.UUID, prim string, mastered bool, due time.Time) {
	t.Helper()
	ctx := context.Background()
	blueprintID := uuid.New()
	testutil.SeedPrimitive(t, ctx, env.db, userID, prim)
	crit := testutil.UniqueID("crit")
	testutil.SeedCriterion(t, ctx, env.db, prim, crit, nil)
	testutil.SeedCriterionMastery(t, ctx, env.db, userID, crit, prim, blueprintID, 1, mastered)
	progress := testutil.SeedProgress(t, ctx, env.db, userID, prim, blueprintID, 1)
	if err := env.db.Model(progress).Update("next_review_at", due).Error; err != nil {
		t.Fatalf("set next_review_at: %v", err)
	}
}

func TestGetAdditionalTasksCapsAtDailyLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	prefs := types.DefaultBucketPreferences(userID)
	prefs.MaxDailyLimit = 4
	prefs.AddMoreIncrements = 5
	testutil.SeedPreferences(t, ctx, env.db, prefs)
	for i := 0; i < 6; i++ {
		seedDueProgress(t, env, userID, testutil.UniqueID("weak"), false, testNow.Add(-time.Duration(6-i)*time.Hour))
	}

	done := TaskCompletion{Critical: BucketCompletion{TotalAssigned: 2, CompletedCount: 2}}
	got, err := env.taskGenerator().GetAdditionalTasks(ctx, userID, done)
	if err != nil {
		t.Fatalf("GetAdditionalTasks: %v", err)
	}
	if len(got.Tasks) != 2 {
		t.Fatalf("tasks: want=2 (limit 4 minus 2 assigned) got=%d", len(got.Tasks))
	}
	if got.BucketSource != string(types.BucketCritical) || got.CanAddMore {
		t.Fatalf("source=%s canAddMore=%v", got.BucketSource, got.CanAddMore)
	}
	for _, task := range got.Tasks {
		if task.Bucket != types.BucketCritical {
			t.Fatalf("bucket: want=%s got=%s", types.BucketCritical, task.Bucket)
		}
	}

	full := TaskCompletion{Critical: BucketCompletion{TotalAssigned: 4, CompletedCount: 4}}
	got, err = env.taskGenerator().GetAdditionalTasks(ctx, userID, full)
	if err != nil {
		t.Fatalf("GetAdditionalTasks at limit: %v", err)
	}
	if len(got.Tasks) != 0 || got.CanAddMore {
		t.Fatalf("at limit: want no tasks, got %d canAddMore=%v", len(got.Tasks), got.CanAddMore)
	}
}

func TestGetAdditionalTasksSkipsAssignedTasks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	prefs := types.DefaultBucketPreferences(userID)
	prefs.CriticalSize = 2
	testutil.SeedPreferences(t, ctx, env.db, prefs)
	var ids []string
	for i := 0; i < 4; i++ {
		id := testutil.UniqueID("weak")
		ids = append(ids, id)
		seedDueProgress(t, env, userID, id, false, testNow.Add(-time.Duration(4-i)*time.Hour))
	}

	gen := env.taskGenerator()
	daily, err := gen.GenerateDailyTasks(ctx, userID)
	if err != nil {
		t.Fatalf("GenerateDailyTasks: %v", err)
	}
	if len(daily) != 2 || daily[0].PrimitiveID != ids[0] || daily[1].PrimitiveID != ids[1] {
		t.Fatalf("daily: want the two most overdue, got %+v", daily)
	}
	done := TaskCompletion{Critical: BucketCompletion{TotalAssigned: 2, CompletedCount: 2}}
	more, err := gen.GetAdditionalTasks(ctx, userID, done)
	if err != nil {
		t.Fatalf("GetAdditionalTasks: %v", err)
	}
	if len(more.Tasks) != 2 || more.Tasks[0].PrimitiveID != ids[2] || more.Tasks[1].PrimitiveID != ids[3] {
		t.Fatalf("more: want %v got %+v", ids[2:], more.Tasks)
	}
	if !more.CanAddMore {
		t.Fatalf("4 of 30 assigned, more should be allowed")
	}
}

func TestGetAdditionalTasksRejectsBadCompletion(t *testing.T) {
	env := newTestEnv(t)
	done := TaskCompletion{Core: BucketCompletion{TotalAssigned: 1, CompletedCount: 2}}
	_, err := env.taskGenerator().GetAdditionalTasks(context.Background(), uuid.New(), done)
	if !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}
