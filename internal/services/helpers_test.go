package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-mastery/internal/cache"
	repos "github.com/yungbote/neurobridge-mastery/internal/data/repos/mastery"
	"github.com/yungbote/neurobridge-mastery/internal/data/repos/testutil"
	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

type testEnv struct {
	db  *gorm.DB
	log *logger.Logger

	primitives repos.KnowledgePrimitiveRepo
	criteria   repos.MasteryCriterionRepo
	mastery    repos.UserCriterionMasteryRepo
	progress   repos.UserPrimitiveProgressRepo
	summaries  repos.UserPrimitiveDailySummaryRepo
	prefsRepo  repos.UserBucketPreferencesRepo

	prefs       PreferencesService
	invalidator *recordingInvalidator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	env := &testEnv{
		db:          db,
		log:         log,
		primitives:  repos.NewKnowledgePrimitiveRepo(db, log),
		criteria:    repos.NewMasteryCriterionRepo(db, log),
		mastery:     repos.NewUserCriterionMasteryRepo(db, log),
		progress:    repos.NewUserPrimitiveProgressRepo(db, log),
		summaries:   repos.NewUserPrimitiveDailySummaryRepo(db, log),
		prefsRepo:   repos.NewUserBucketPreferencesRepo(db, log),
		invalidator: newRecordingInvalidator(),
	}
	env.prefs = NewPreferencesService(log, env.prefsRepo)
	return env
}

func (e *testEnv) summaryService() *summaryMaintenanceService {
	svc := NewSummaryMaintenanceService(e.log, e.primitives, e.criteria, e.mastery, e.progress, e.summaries, e.prefs, e.invalidator).(*summaryMaintenanceService)
	svc.now = fixedNow
	return svc
}

func (e *testEnv) batchService(cfg BatchConfig) *batchReviewService {
	svc := NewBatchReviewService(e.db, e.log, cfg, e.progress, e.mastery, e.prefs, nil).(*batchReviewService)
	svc.now = fixedNow
	return svc
}

type recordingInvalidator struct {
	mu           sync.Mutex
	userCalls    map[uuid.UUID]int
	tasksCalls   map[uuid.UUID]int
	summaryCalls map[uuid.UUID]int
}

func newRecordingInvalidator() *recordingInvalidator {
	return &recordingInvalidator{
		userCalls:    map[uuid.UUID]int{},
		tasksCalls:   map[uuid.UUID]int{},
		summaryCalls: map[uuid.UUID]int{},
	}
}

func (r *recordingInvalidator) InvalidateUserCache(ctx context.Context, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userCalls[userID]++
}

func (r *recordingInvalidator) InvalidateDailyTasksCache(ctx context.Context, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasksCalls[userID]++
}

func (r *recordingInvalidator) InvalidateDailySummaryCache(ctx context.Context, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaryCalls[userID]++
}

func (r *recordingInvalidator) users() map[uuid.UUID]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]int, len(r.userCalls))
	for k, v := range r.userCalls {
		out[k] = v
	}
	return out
}

// failingStore is a cache.Store whose reads and writes always fail.
type failingStore struct{ cache.Store }

func (failingStore) Get(ctx context.Context, key cache.Key) (interface{}, bool, error) {
	return nil, false, errStoreDown
}

func (failingStore) Set(ctx context.Context, key cache.Key, value interface{}, ttl time.Duration) error {
	return errStoreDown
}

var errStoreDown = &storeError{}

type storeError struct{}

func (*storeError) Error() string { return "cache store unavailable" }

func newTestEnvLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return testutil.Logger(t)
}
