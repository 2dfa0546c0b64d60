// Package scheduler runs named periodic jobs on fixed intervals. The
// Scheduler is an explicit value constructed once at startup and passed to
// whatever composes the process; it holds no global state. All skip and
// no-op decisions inside jobs derive from persisted flags and timestamps,
// so the process surviving a restart mid-sweep is safe.
package scheduler

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// JobFunc is one run of a periodic job.
type JobFunc func(ctx context.Context) error

type job struct {
	name     string
	interval time.Duration
	run      JobFunc

	busy     atomic.Bool
	runs     atomic.Int64
	skips    atomic.Int64
	failures atomic.Int64
	lastRun  atomic.Int64 // unix nanos, 0 until first run
}

// JobStatus is the externally visible state of one job.
type JobStatus struct {
	Running  bool          `json:"running"`
	Interval time.Duration `json:"interval"`
	Runs     int64         `json:"runs"`
	Skips    int64         `json:"skips"`
	Failures int64         `json:"failures"`
	LastRun  *time.Time    `json:"last_run,omitempty"`
}

// Status is the externally visible state of the scheduler.
type Status struct {
	Running bool                 `json:"running"`
	Jobs    map[string]JobStatus `json:"jobs"`
}

// Scheduler owns a registry of named periodic jobs.
type Scheduler struct {
	logger *zap.Logger

	mu      sync.Mutex
	jobs    []*job
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates an empty scheduler.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Register adds a named job. Registration after Start is rejected.
func (s *Scheduler) Register(name string, interval time.Duration, run JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Error("cannot register job on a running scheduler", zap.String("job", name))
		return
	}
	s.jobs = append(s.jobs, &job{name: name, interval: interval, run: run})
}

// Start launches one ticker goroutine per registered job. Calling Start on
// a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
	}

	// ctx cancellation stops the job loops without going through Stop, so
	// the running flag has to track it.
	stopCh := s.stopCh
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			if s.stopCh == stopCh {
				s.running = false
			}
			s.mu.Unlock()
		case <-stopCh:
		}
	}()

	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop prevents future triggers and waits for in-flight runs to finish. It
// does not interrupt a run already underway.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Status reports scheduler and per-job state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{Running: s.running, Jobs: make(map[string]JobStatus, len(s.jobs))}
	for _, j := range s.jobs {
		js := JobStatus{
			Running:  j.busy.Load(),
			Interval: j.interval,
			Runs:     j.runs.Load(),
			Skips:    j.skips.Load(),
			Failures: j.failures.Load(),
		}
		if nanos := j.lastRun.Load(); nanos != 0 {
			t := time.Unix(0, nanos)
			js.LastRun = &t
		}
		status.Jobs[j.name] = js
	}
	return status
}

// Trigger runs a job immediately, outside its ticker cadence, honoring the
// same overlap guard. It reports whether the job was found and started.
func (s *Scheduler) Trigger(ctx context.Context, name string) bool {
	s.mu.Lock()
	var target *job
	for _, j := range s.jobs {
		if j.name == name {
			target = j
			break
		}
	}
	s.mu.Unlock()
	if target == nil {
		return false
	}
	s.runJob(ctx, target)
	return true
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJob(ctx, j)
		}
	}
}

// runJob executes one run with an overlap guard: if the previous run of the
// same job is still going, this trigger is skipped rather than stacked.
func (s *Scheduler) runJob(ctx context.Context, j *job) {
	if !j.busy.CompareAndSwap(false, true) {
		j.skips.Add(1)
		s.logger.Warn("job still running, skipping trigger", zap.String("job", j.name))
		return
	}
	defer j.busy.Store(false)

	j.lastRun.Store(time.Now().UnixNano())
	j.runs.Add(1)

	defer func() {
		if r := recover(); r != nil {
			j.failures.Add(1)
			s.logger.Error("job panicked",
				zap.String("job", j.name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	if err := j.run(ctx); err != nil {
		j.failures.Add(1)
		s.logger.Error("job run failed", zap.String("job", j.name), zap.Error(err))
	}
}
