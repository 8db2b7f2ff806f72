package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/shift-ledger-api/internal/dto"
	"github.com/noah-isme/shift-ledger-api/internal/models"
)

const defaultSweepBatch = 100

type overdueLister interface {
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Timecard, error)
}

type autoApprover interface {
	AutoApprove(ctx context.Context, tc *models.Timecard, now time.Time) (bool, error)
}

// DeadlineSchedulerConfig tunes the sweep.
type DeadlineSchedulerConfig struct {
	Interval  time.Duration
	BatchSize int
	Clock     func() time.Time
}

// DeadlineScheduler auto-approves SUBMITTED timecards whose deadline passed.
// Each row is flipped with its own conditional update, so overlapping sweeps
// and racing client decisions resolve to a single winner.
type DeadlineScheduler struct {
	lister    overdueLister
	approver  autoApprover
	metrics   *MetricsService
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time

	mu          sync.Mutex
	lastSuccess time.Time
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewDeadlineScheduler constructs the sweep.
func NewDeadlineScheduler(lister overdueLister, approver autoApprover, metrics *MetricsService, logger *zap.Logger, cfg DeadlineSchedulerConfig) *DeadlineScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultSweepBatch
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &DeadlineScheduler{
		lister:    lister,
		approver:  approver,
		metrics:   metrics,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		now:       cfg.Clock,
	}
}

// RunOnce performs one sweep. Rows another writer already moved are counted
// as skipped. Any per-row failure fails the sweep so LastSuccess stays put,
// but the remaining rows are still attempted.
func (s *DeadlineScheduler) RunOnce(ctx context.Context) (*dto.SweepResult, error) {
	begin := time.Now()
	startedAt := s.now()
	result := &dto.SweepResult{StartedAt: startedAt}
	seen := make(map[string]struct{})
	var firstErr error

	for {
		batch, err := s.lister.ListOverdue(ctx, startedAt, s.batchSize)
		if err != nil {
			firstErr = err
			break
		}
		progressed := false
		for i := range batch {
			tc := batch[i]
			if _, ok := seen[tc.ID]; ok {
				continue
			}
			seen[tc.ID] = struct{}{}
			progressed = true
			result.Scanned++

			applied, err := s.approver.AutoApprove(ctx, &tc, startedAt)
			if err != nil {
				s.logger.Warn("auto-approval failed", zap.String("timecard_id", tc.ID), zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if applied {
				result.Affected++
			} else {
				result.Skipped++
			}
		}
		if len(batch) < s.batchSize || !progressed {
			break
		}
	}

	elapsed := time.Since(begin)
	result.Duration = elapsed.String()
	s.metrics.ObserveSweep(result.Affected, result.Skipped, elapsed, firstErr)

	if firstErr != nil {
		s.logger.Error("auto-approval sweep failed",
			zap.Int("scanned", result.Scanned),
			zap.Int("affected", result.Affected),
			zap.Error(firstErr))
		return result, firstErr
	}

	s.mu.Lock()
	s.lastSuccess = startedAt
	s.mu.Unlock()

	if result.Scanned > 0 {
		s.logger.Info("auto-approval sweep finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("affected", result.Affected),
			zap.Int("skipped", result.Skipped),
			zap.String("duration", result.Duration))
	}
	return result, nil
}

// LastSuccess returns the start time of the most recent successful sweep.
func (s *DeadlineScheduler) LastSuccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSuccess
}

// Start runs a sweep immediately and then on every interval until Stop.
func (s *DeadlineScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Info("auto-approval scheduler started", zap.Duration("interval", s.interval), zap.Int("batch_size", s.batchSize))

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunOnce(runCtx) //nolint:errcheck
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.RunOnce(runCtx) //nolint:errcheck
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sweep to return.
func (s *DeadlineScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("auto-approval scheduler stopped")
}
