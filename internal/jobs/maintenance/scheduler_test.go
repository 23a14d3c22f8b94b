package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

var (
	testLogOnce sync.Once
	testLog     *logger.Logger
)

func testLogger(tb testing.TB) *logger.Logger {
	tb.Helper()
	testLogOnce.Do(func() {
		l, err := logger.New("test")
		if err != nil {
			tb.Fatalf("logger: %v", err)
		}
		testLog = l
	})
	return testLog
}

func TestTriggerRunsJob(t *testing.T) {
	s := NewScheduler(testLogger(t))
	defer s.Stop(context.Background())

	calls := 0
	if err := s.Register(JobSpec{Name: "noop", Schedule: "0 * * * *", Enabled: true}, func(ctx context.Context) error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Trigger(context.Background(), "noop"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
	st := s.Jobs()
	if len(st) != 1 || st[0].Runs != 1 || st[0].LastStarted == nil {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestTriggerUnknownJob(t *testing.T) {
	s := NewScheduler(testLogger(t))
	defer s.Stop(context.Background())
	if err := s.Trigger(context.Background(), "nope"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("want ErrUnknownJob, got %v", err)
	}
}

func TestTriggerWhileRunningIsRejected(t *testing.T) {
	s := NewScheduler(testLogger(t))
	defer s.Stop(context.Background())

	started := make(chan struct{})
	release := make(chan struct{})
	if err := s.Register(JobSpec{Name: "slow", Schedule: "0 * * * *"}, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Trigger(context.Background(), "slow") }()
	<-started

	if err := s.Trigger(context.Background(), "slow"); !errors.Is(err, ErrJobRunning) {
		t.Fatalf("want ErrJobRunning, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	st := s.Jobs()
	if st[0].Skipped != 1 || st[0].Runs != 1 {
		t.Fatalf("status: want runs=1 skipped=1 got %+v", st[0])
	}
}

func TestJobErrorIsRecorded(t *testing.T) {
	s := NewScheduler(testLogger(t))
	defer s.Stop(context.Background())

	boom := errors.New("boom")
	_ = s.Register(JobSpec{Name: "fails", Schedule: "0 * * * *"}, func(ctx context.Context) error { return boom })
	if err := s.Trigger(context.Background(), "fails"); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if got := s.Jobs()[0].LastError; got == "" {
		t.Fatalf("expected last error to be recorded")
	}
}

func TestJobTimeoutAppliesToContext(t *testing.T) {
	s := NewScheduler(testLogger(t))
	defer s.Stop(context.Background())

	_ = s.Register(JobSpec{Name: "bounded", Schedule: "0 * * * *", Timeout: 20 * time.Millisecond}, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err := s.Trigger(context.Background(), "bounded"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	s := NewScheduler(testLogger(t))
	defer s.Stop(context.Background())

	ok := func(ctx context.Context) error { return nil }
	if err := s.Register(JobSpec{Name: "bad", Schedule: "not a cron", Enabled: true}, ok); err == nil {
		t.Fatalf("expected invalid schedule error")
	}
	if err := s.Register(JobSpec{Name: "a", Schedule: "0 * * * *", Enabled: true}, ok); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Register(JobSpec{Name: "a", Schedule: "0 * * * *", Enabled: true}, ok); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if err := s.Register(JobSpec{Name: "nil", Schedule: "0 * * * *"}, nil); err == nil {
		t.Fatalf("expected nil func error")
	}
}

func TestStartedSchedulerReportsNextRun(t *testing.T) {
	s := NewScheduler(testLogger(t))
	_ = s.Register(JobSpec{Name: "hourly", Schedule: "0 * * * *", Enabled: true}, func(ctx context.Context) error { return nil })
	s.Start()
	defer s.Stop(context.Background())

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if st := s.Jobs(); st[0].NextRun != nil {
			if st[0].NextRun.Minute() != 0 {
				t.Fatalf("next run should be on the hour: %v", st[0].NextRun)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("next run never populated")
}
