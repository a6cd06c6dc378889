package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finbot/observability"
)

// tickInterval is the scheduler's wake-up resolution.
const tickInterval = time.Minute

// Task is one scheduled unit of work. Due decides, from the current time
// and the last completed run, whether the task should fire this tick.
type Task struct {
	Name string
	Due  func(now, last time.Time) bool
	Run  func(ctx context.Context) error
}

// Every fires when at least interval has elapsed since the last run. The
// first tick always fires.
func Every(interval time.Duration) func(now, last time.Time) bool {
	return func(now, last time.Time) bool {
		return last.IsZero() || now.Sub(last) >= interval
	}
}

// DailyAt fires once per day at or after the given local time.
func DailyAt(hour, minute int) func(now, last time.Time) bool {
	return func(now, last time.Time) bool {
		target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if now.Before(target) {
			return false
		}
		return last.Before(target)
	}
}

// WeeklyAt fires once per week at or after the given local weekday and time.
func WeeklyAt(weekday time.Weekday, hour, minute int) func(now, last time.Time) bool {
	return func(now, last time.Time) bool {
		daysBack := (int(now.Weekday()) - int(weekday) + 7) % 7
		target := time.Date(now.Year(), now.Month(), now.Day()-daysBack, hour, minute, 0, 0, now.Location())
		if now.Before(target) {
			return false
		}
		return last.Before(target)
	}
}

// Scheduler runs its task table on a single background worker. Tasks never
// overlap each other; a panicking or failing task is logged and the loop
// continues.
type Scheduler struct {
	tasks   []Task
	log     *slog.Logger
	metrics *observability.SchedulerMetrics
	now     func() time.Time

	mu      sync.Mutex
	lastRun map[string]time.Time
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// New builds a scheduler over the given task table.
func New(tasks []Task, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		tasks:   tasks,
		log:     log.With("component", "scheduler"),
		metrics: observability.Scheduler(),
		now:     time.Now,
		lastRun: make(map[string]time.Time, len(tasks)),
	}
}

// WithClock overrides the scheduler clock. Intended for tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Start launches the worker. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stop, s.done)
	s.log.Info("scheduler started", "tasks", len(s.tasks))
}

// Stop signals the worker and waits up to timeout for it to finish. A task
// still executing at the deadline is abandoned; it will not re-run until
// its next due tick on a future Start.
func (s *Scheduler) Stop(timeout time.Duration) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-time.After(timeout):
		s.log.Warn("scheduler stop timed out", "timeout", timeout)
	}
}

func (s *Scheduler) loop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	// Fire once immediately so hourly tasks do not wait a full tick after
	// startup.
	s.RunDue(context.Background())
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.RunDue(context.Background())
		}
	}
}

// RunDue executes every task whose Due predicate fires, sequentially in
// table order. Exposed for tests driving the scheduler with a fake clock.
func (s *Scheduler) RunDue(ctx context.Context) {
	now := s.now()
	for _, task := range s.tasks {
		s.mu.Lock()
		last := s.lastRun[task.Name]
		s.mu.Unlock()

		if !task.Due(now, last) {
			continue
		}
		s.runOne(ctx, task)

		s.mu.Lock()
		s.lastRun[task.Name] = now
		s.mu.Unlock()
	}
}

func (s *Scheduler) runOne(ctx context.Context, task Task) {
	start := s.now()
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		err = task.Run(ctx)
	}()
	took := s.now().Sub(start)
	s.metrics.RecordRun(task.Name, took, err)
	if err != nil {
		s.log.Error("scheduled task failed", "task", task.Name, "error", err)
		return
	}
	s.log.Debug("scheduled task complete", "task", task.Name, "took", took)
}
