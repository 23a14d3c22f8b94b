// Package maintenance runs the periodic summary and cache jobs. Each named job has its own
// mutex shared by cron ticks and manual triggers, so a run never overlaps itself.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

var (
	ErrJobRunning = errors.New("maintenance job already running")
	ErrUnknownJob = errors.New("unknown maintenance job")
)

type JobFunc func(ctx context.Context) error

type JobStatus struct {
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	Running     bool       `json:"running"`
	LastStarted *time.Time `json:"last_started,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Runs        int64      `json:"runs"`
	Skipped     int64      `json:"skipped"`
	NextRun     *time.Time `json:"next_run,omitempty"`
}

type job struct {
	spec    JobSpec
	fn      JobFunc
	runMu   sync.Mutex
	entryID cron.EntryID

	stateMu     sync.Mutex
	running     bool
	lastStarted time.Time
	lastErr     error
	runs        int64
	skipped     int64
}

type Scheduler struct {
	log  *logger.Logger
	cron *cron.Cron

	mu      sync.RWMutex
	jobs    map[string]*job
	baseCtx context.Context
	cancel  context.CancelFunc
	started bool
}

func NewScheduler(baseLog *logger.Logger) *Scheduler {
	log := baseLog.With("component", "MaintenanceScheduler")
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		log: log,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		jobs:    make(map[string]*job),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Register adds a job. Disabled specs are kept for manual triggering but never scheduled.
func (s *Scheduler) Register(spec JobSpec, fn JobFunc) error {
	if fn == nil {
		return fmt.Errorf("register %q: nil job func", spec.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[spec.Name]; exists {
		return fmt.Errorf("register %q: already registered", spec.Name)
	}
	j := &job{spec: spec, fn: fn}
	if spec.Enabled {
		id, err := s.cron.AddFunc(spec.Schedule, func() {
			if err := s.run(s.baseCtx, j); err != nil && !errors.Is(err, ErrJobRunning) {
				s.log.Warn("Scheduled maintenance job failed", "job", j.spec.Name, "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("register %q: invalid schedule %q: %w", spec.Name, spec.Schedule, err)
		}
		j.entryID = id
	}
	s.jobs[spec.Name] = j
	s.log.Info("Maintenance job registered", "job", spec.Name, "schedule", spec.Schedule, "enabled", spec.Enabled)
	return nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	s.log.Info("Maintenance scheduler started", "jobs", len(s.jobs))
}

// Stop cancels in-flight runs and waits for them to return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("Maintenance scheduler stop timed out")
	}
}

// Trigger runs a job now on the caller's goroutine. It returns ErrJobRunning when the job
// is already running, whether started by cron or by another trigger.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, j)
}

func (s *Scheduler) Jobs() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		j.stateMu.Lock()
		st := JobStatus{
			Name:     j.spec.Name,
			Schedule: j.spec.Schedule,
			Running:  j.running,
			Runs:     j.runs,
			Skipped:  j.skipped,
		}
		if !j.lastStarted.IsZero() {
			t := j.lastStarted
			st.LastStarted = &t
		}
		if j.lastErr != nil {
			st.LastError = j.lastErr.Error()
		}
		j.stateMu.Unlock()
		if j.entryID != 0 {
			if next := s.cron.Entry(j.entryID).Next; !next.IsZero() {
				st.NextRun = &next
			}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

func (s *Scheduler) run(ctx context.Context, j *job) error {
	if !j.runMu.TryLock() {
		j.stateMu.Lock()
		j.skipped++
		j.stateMu.Unlock()
		s.log.Info("Maintenance job skipped; previous run still active", "job", j.spec.Name)
		return fmt.Errorf("%w: %s", ErrJobRunning, j.spec.Name)
	}
	defer j.runMu.Unlock()

	if j.spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.spec.Timeout)
		defer cancel()
	}
	ctx, span := otel.Tracer("neurobridge-mastery/maintenance").Start(ctx, "maintenance."+j.spec.Name)
	defer span.End()

	start := time.Now()
	j.stateMu.Lock()
	j.running = true
	j.lastStarted = start.UTC()
	j.stateMu.Unlock()

	err := j.fn(ctx)

	j.stateMu.Lock()
	j.running = false
	j.runs++
	j.lastErr = err
	j.stateMu.Unlock()

	span.SetAttributes(attribute.Int64("duration_ms", time.Since(start).Milliseconds()))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("job %s: %w", j.spec.Name, err)
	}
	s.log.Info("Maintenance job finished", "job", j.spec.Name, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
