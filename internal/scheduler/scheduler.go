// Package scheduler runs the periodic reconciliation batch and the revalidation sweep.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tourism-compliance/internal/common/config"
	"tourism-compliance/internal/common/errors"
	"tourism-compliance/internal/common/logger"
	"tourism-compliance/internal/reconciliation"

	"github.com/robfig/cron/v3"
)

// Runner is implemented by *reconciliation.Service.
type Runner interface {
	RunBatch(ctx context.Context, req reconciliation.BatchRequest) (*reconciliation.BatchResult, error)
	Revalidate(ctx context.Context) (*reconciliation.RevalidationResult, error)
}

// Scheduler owns the cron loop for the batch and the revalidation sweep.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	config  config.SchedulerConfig
	logger  logger.Logger
	timeout time.Duration

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a stopped scheduler.
func New(runner Runner, cfg config.SchedulerConfig, log logger.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(),
		runner:  runner,
		config:  cfg,
		logger:  log.WithFields(map[string]interface{}{"component": "scheduler"}),
		timeout: 2 * time.Hour,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start registers both jobs and starts the cron loop. It does nothing when the scheduler is
// disabled.
func (s *Scheduler) Start() error {
	if !s.config.Enabled {
		s.logger.Info("scheduler disabled", nil)
		return nil
	}

	if _, err := s.cron.AddFunc(s.config.ReconcileCron, s.ReconcileNow); err != nil {
		return fmt.Errorf("invalid reconcile_cron %q: %w", s.config.ReconcileCron, err)
	}
	if _, err := s.cron.AddFunc(s.config.RevalidateCron, s.RevalidateNow); err != nil {
		return fmt.Errorf("invalid revalidate_cron %q: %w", s.config.RevalidateCron, err)
	}

	s.cron.Start()
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.logger.Info("scheduler started", map[string]interface{}{
		"reconcileCron":  s.config.ReconcileCron,
		"revalidateCron": s.config.RevalidateCron,
	})
	return nil
}

// Stop cancels in-flight runs between listings and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("scheduler stopped", nil)
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// ReconcileNow runs one batch over every city.
func (s *Scheduler) ReconcileNow() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	res, err := s.runner.RunBatch(ctx, reconciliation.BatchRequest{})
	if err != nil {
		s.logFailure("reconcile", err)
		return
	}
	s.logger.Info("scheduled batch finished", map[string]interface{}{
		"runId":     res.RunID,
		"processed": res.Processed,
		"failed":    res.Failed,
		"cancelled": res.Cancelled,
	})
}

// RevalidateNow runs one deregistration sweep.
func (s *Scheduler) RevalidateNow() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	res, err := s.runner.Revalidate(ctx)
	if err != nil {
		s.logFailure("revalidate", err)
		return
	}
	s.logger.Info("scheduled revalidation finished", map[string]interface{}{
		"checked":  res.Checked,
		"reopened": len(res.Reopened),
	})
}

func (s *Scheduler) logFailure(job string, err error) {
	// a manual run holds the lock
	if errors.IsCode(err, errors.ErrCodeBatchInProgress) {
		s.logger.Info("scheduled job skipped, batch already running", map[string]interface{}{"job": job})
		return
	}
	s.logger.Error("scheduled job failed", map[string]interface{}{
		"job":       job,
		"errorCode": string(errors.CodeOf(err)),
		"error":     err.Error(),
	})
}
