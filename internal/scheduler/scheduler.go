// Package scheduler drives periodic console refreshes.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is one refresh. It receives a context that Stop does not cancel.
type Task func(ctx context.Context)

// Scheduler runs Task immediately on Start and then once per period. Every run gets its
// own goroutine and runs are allowed to overlap; a slow refresh never delays the next tick.
type Scheduler struct {
	name   string
	task   Task
	logger *slog.Logger

	mu      sync.Mutex
	period  time.Duration
	cancel  context.CancelFunc
	resetCh chan time.Duration
	wg      sync.WaitGroup
	running bool
}

// New builds a scheduler. A non-positive period falls back to 10s.
func New(name string, period time.Duration, task Task, logger *slog.Logger) *Scheduler {
	if period <= 0 {
		period = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{name: name, period: period, task: task, logger: logger}
}

// Name identifies the page the scheduler refreshes.
func (s *Scheduler) Name() string { return s.name }

// Period returns the current tick period.
func (s *Scheduler) Period() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period
}

// Start begins the loop. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.resetCh = make(chan time.Duration, 1)
	s.running = true
	period := s.period
	resetCh := s.resetCh
	s.mu.Unlock()

	taskCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		s.fire(taskCtx)
		for {
			select {
			case <-loopCtx.Done():
				return
			case p := <-resetCh:
				ticker.Reset(p)
				s.logger.Info("refresh period changed", slog.String("page", s.name), slog.Duration("period", p))
			case <-ticker.C:
				s.fire(taskCtx)
			}
		}
	}()
	s.logger.Debug("scheduler started", slog.String("page", s.name), slog.Duration("period", period))
}

func (s *Scheduler) fire(ctx context.Context) {
	if s.task == nil {
		return
	}
	go s.task(ctx)
}

// Stop tears the timer down and waits for the loop to exit. In-flight tasks are not
// cancelled; they finish on their own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Reset changes the period, taking effect from the next tick.
func (s *Scheduler) Reset(period time.Duration) {
	if period <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.period == period {
		return
	}
	s.period = period
	if !s.running {
		return
	}
	select {
	case <-s.resetCh:
	default:
	}
	s.resetCh <- period
}
