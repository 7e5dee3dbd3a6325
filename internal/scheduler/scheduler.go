// Package scheduler runs the periodic processing cycle and the independent
// retention cleanup job.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"receipt-sentinel/internal/model"
)

// Runner is the work a tick triggers. The processor implements it.
type Runner interface {
	ProcessCycle(ctx context.Context) (*model.ProcessingRun, error)
	RunRetentionSweep()
}

// Config carries the two schedules.
type Config struct {
	IntervalMinutes      int
	CleanupIntervalHours int
}

// Scheduler fires the processing cycle on a fixed interval. Cycles are
// expected to finish before the next tick; a tick that arrives while a
// cycle is still in flight is skipped so deduplication never races against
// an overlapping run. The retention sweep runs on its own schedule and may
// interleave with a cycle.
type Scheduler struct {
	cron    *cron.Cron
	entryID cron.EntryID
	config  Config
	runner  Runner
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu           sync.RWMutex
	isRunning    bool
	cycleRunning bool
	lastCycle    time.Time
}

// New creates a scheduler around the given runner.
func New(cfg Config, runner Runner) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		config: cfg,
		runner: runner,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	schedule := fmt.Sprintf("0 */%d * * * *", s.config.IntervalMinutes)
	entryID, err := s.cron.AddFunc(schedule, s.tick)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entryID = entryID

	cleanup := fmt.Sprintf("0 0 */%d * * *", s.config.CleanupIntervalHours)
	if _, err := s.cron.AddFunc(cleanup, s.runner.RunRetentionSweep); err != nil {
		return fmt.Errorf("failed to add cleanup job: %w", err)
	}

	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}

	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started: processing every %d minutes, cleanup every %d hours",
		s.config.IntervalMinutes, s.config.CleanupIntervalHours)
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()
	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.cron = cron.New(cron.WithSeconds())
	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// tick runs one processing cycle unless one is already in flight.
func (s *Scheduler) tick() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	if s.cycleRunning {
		s.mu.Unlock()
		logrus.Warn("Previous processing cycle still running, skipping this tick")
		return
	}
	s.cycleRunning = true
	s.lastCycle = time.Now()
	s.mu.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.cycleRunning = false
		s.mu.Unlock()
	}()

	if _, err := s.runner.ProcessCycle(s.ctx); err != nil {
		logrus.Errorf("Processing cycle failed: %v", err)
	}
}

// RunOnce triggers a processing cycle outside the schedule, observing the
// same overlap guard. Returns an error if a cycle is already in flight.
func (s *Scheduler) RunOnce() error {
	s.mu.Lock()
	if s.cycleRunning {
		s.mu.Unlock()
		return fmt.Errorf("a processing cycle is already running")
	}
	s.cycleRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cycleRunning = false
		s.mu.Unlock()
	}()

	_, err := s.runner.ProcessCycle(s.ctx)
	return err
}

// CycleInFlight reports whether a processing cycle is currently running.
func (s *Scheduler) CycleInFlight() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycleRunning
}

// NextRun returns the time of the next scheduled cycle.
func (s *Scheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// LastRun returns when the last cycle was triggered.
func (s *Scheduler) LastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCycle
}

// Wait blocks until any in-flight cycle has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
