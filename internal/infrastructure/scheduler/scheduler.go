package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one recurring maintenance task
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs maintenance jobs on fixed intervals. Mutual exclusion
// across service instances is each job's own concern; the scheduler only
// drives the local timing.
type Scheduler struct {
	jobs   []Job
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a scheduler for the given jobs
func NewScheduler(logger *zap.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{jobs: jobs, logger: logger}
}

// Start launches one ticker loop per job. Starting a running scheduler is
// a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(ctx, job)
	}

	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.jobs)))
	return nil
}

// Stop cancels the job loops and waits for in-flight runs to finish, or
// until the given context expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runLoop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.logger.Info("Job loop started",
		zap.String("job", job.Name),
		zap.Duration("interval", job.Interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Job loop stopped", zap.String("job", job.Name))
			return
		case <-ticker.C:
			start := time.Now()
			if err := job.Run(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("Job run failed",
					zap.String("job", job.Name),
					zap.Duration("took", time.Since(start)),
					zap.Error(err))
				continue
			}
			s.logger.Debug("Job run finished",
				zap.String("job", job.Name),
				zap.Duration("took", time.Since(start)))
		}
	}
}
