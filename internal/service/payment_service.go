package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/shift-ledger-api/internal/models"
	appErrors "github.com/noah-isme/shift-ledger-api/pkg/errors"
	"github.com/noah-isme/shift-ledger-api/pkg/jobs"
)

// PayoutGateway issues the transfer for a payout and returns its reference.
// Implementations must be idempotent per timecard.
type PayoutGateway interface {
	Transfer(ctx context.Context, payout *models.Payout) (string, error)
}

type payableLister interface {
	GetByID(ctx context.Context, id string) (*models.Timecard, error)
	List(ctx context.Context, filter models.TimecardFilter) ([]models.Timecard, int, error)
}

type paidMarker interface {
	MarkPaid(ctx context.Context, id, reference string) (*models.Timecard, error)
}

type feeWaiverLookup interface {
	FeeWaived(ctx context.Context, nurseID string) (bool, error)
}

// PaymentService settles approved timecards through the payout gateway.
type PaymentService struct {
	timecards payableLister
	marker    paidMarker
	stats     feeWaiverLookup
	gateway   PayoutGateway
	queue     jobDispatcher
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewPaymentService constructs the settlement service.
func NewPaymentService(timecards payableLister, marker paidMarker, stats feeWaiverLookup, gateway PayoutGateway, metrics *MetricsService, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{timecards: timecards, marker: marker, stats: stats, gateway: gateway, metrics: metrics, logger: logger}
}

// SetQueue attaches the queue whose handler is HandleJob.
func (s *PaymentService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// Settle transfers funds for one approved timecard and marks it paid. A failed
// transfer leaves the approval in place so the job can be retried.
func (s *PaymentService) Settle(ctx context.Context, timecardID string) (*models.Payout, error) {
	tc, err := s.timecards.GetByID(ctx, timecardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timecard not found")
		}
		return nil, appErrors.Internal(err, "failed to load timecard")
	}
	if !tc.Status.Payable() {
		return nil, appErrors.Clonef(appErrors.ErrInvalidState, "cannot pay: timecard is %s", tc.Status)
	}

	waived := false
	if s.stats != nil {
		if waived, err = s.stats.FeeWaived(ctx, tc.NurseID); err != nil {
			return nil, err
		}
	}
	earnings, err := CalculateEarnings(tc.TotalHours, tc.HourlyRate, waived)
	if err != nil {
		return nil, err
	}

	payout := &models.Payout{
		TimecardID:   tc.ID,
		NurseID:      tc.NurseID,
		ClientID:     tc.ClientID,
		TotalHours:   earnings.TotalHours,
		HourlyRate:   earnings.HourlyRate,
		Gross:        earnings.Gross,
		ClientCharge: earnings.ClientCharge,
		ProviderNet:  earnings.ProviderNet,
		PlatformFee:  earnings.PlatformFee,
		FeeWaived:    earnings.FeeWaived,
	}
	reference, err := s.gateway.Transfer(ctx, payout)
	if err != nil {
		s.metrics.ObservePayout("failed")
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "payout transfer failed")
	}
	payout.Reference = reference

	if _, err := s.marker.MarkPaid(ctx, tc.ID, reference); err != nil {
		return nil, err
	}
	s.metrics.ObservePayout("settled")
	s.logger.Info("timecard settled",
		zap.String("timecard_id", tc.ID),
		zap.String("reference", reference),
		zap.String("provider_net", payout.ProviderNet.StringFixed(2)))
	return payout, nil
}

// Enqueue schedules a settlement on the payout queue.
func (s *PaymentService) Enqueue(timecardID string) error {
	if s.queue == nil {
		return appErrors.Clone(appErrors.ErrUnavailable, "payout queue not running")
	}
	if err := s.queue.TryEnqueue(jobs.Job{ID: timecardID, Type: JobTypePayout}); err != nil {
		s.metrics.ObservePayout("dropped")
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "payout queue full")
	}
	return nil
}

// EnqueuePending queues every approved timecard that has not been paid yet.
// It returns how many jobs were accepted.
func (s *PaymentService) EnqueuePending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = maxPageSize
	}
	items, _, err := s.timecards.List(ctx, models.TimecardFilter{
		Status: []models.TimecardStatus{models.TimecardStatusApproved, models.TimecardStatusAutoApproved},
		Limit:  limit,
	})
	if err != nil {
		return 0, appErrors.Internal(err, "failed to list payable timecards")
	}
	queued := 0
	for _, tc := range items {
		if err := s.Enqueue(tc.ID); err != nil {
			s.logger.Warn("stopped queueing payouts", zap.Int("queued", queued), zap.Error(err))
			return queued, err
		}
		queued++
	}
	return queued, nil
}

// HandleJob is the payout queue handler. Timecards already paid or no longer
// payable are dropped without retry.
func (s *PaymentService) HandleJob(ctx context.Context, job jobs.Job) error {
	_, err := s.Settle(ctx, job.ID)
	if err == nil {
		return nil
	}
	if errors.Is(err, appErrors.ErrInvalidState) || errors.Is(err, appErrors.ErrNotFound) {
		s.metrics.ObservePayout("skipped")
		s.logger.Info("payout skipped", zap.String("timecard_id", job.ID), zap.Error(err))
		return nil
	}
	return err
}

// GiveUp is the queue failure hook.
func (s *PaymentService) GiveUp(job jobs.Job, err error) {
	s.metrics.ObservePayout("abandoned")
	s.logger.Error("payout abandoned", zap.String("timecard_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
}
