package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/shift-ledger-api/internal/models"
	"github.com/noah-isme/shift-ledger-api/pkg/jobs"
)

type messageBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// NotificationService delivers lifecycle events to subscribers asynchronously.
// Delivery is best effort: a full buffer or a failed publish never affects the
// workflow.
type NotificationService struct {
	bus     messageBus
	queue   jobDispatcher
	prefix  string
	metrics *MetricsService
	logger  *zap.Logger
	enabled bool
}

// NewNotificationService constructs the notifier. Call SetQueue before Publish
// to route events through the worker pool.
func NewNotificationService(bus messageBus, prefix string, metrics *MetricsService, logger *zap.Logger, enabled bool) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "timecards"
	}
	return &NotificationService{bus: bus, prefix: prefix, metrics: metrics, logger: logger, enabled: enabled}
}

// SetQueue attaches the queue whose handler is HandleJob.
func (s *NotificationService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// Publish hands the event to the worker pool without blocking.
func (s *NotificationService) Publish(ctx context.Context, event models.TimecardEvent) {
	if s == nil || !s.enabled || s.queue == nil {
		return
	}
	if err := s.queue.TryEnqueue(jobs.Job{ID: event.TimecardID, Type: string(event.Type), Payload: event}); err != nil {
		s.metrics.ObserveNotification("dropped")
		s.logger.Warn("notification dropped", zap.String("timecard_id", event.TimecardID), zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// HandleJob publishes one event to the party channels and the firehose.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.TimecardEvent)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	for _, channel := range s.Channels(event) {
		if err := s.bus.Publish(ctx, channel, payload); err != nil {
			s.metrics.ObserveNotification("failed")
			return fmt.Errorf("publish %s: %w", channel, err)
		}
	}
	s.metrics.ObserveNotification("published")
	return nil
}

// Channels lists the pub/sub channels that receive the event.
func (s *NotificationService) Channels(event models.TimecardEvent) []string {
	return []string{
		s.prefix + ".events",
		fmt.Sprintf("%s.users.%s", s.prefix, event.NurseID),
		fmt.Sprintf("%s.users.%s", s.prefix, event.ClientID),
	}
}

// GiveUp is the queue failure hook.
func (s *NotificationService) GiveUp(job jobs.Job, err error) {
	s.metrics.ObserveNotification("dropped")
	s.logger.Error("notification abandoned", zap.String("timecard_id", job.ID), zap.String("type", job.Type), zap.Error(err))
}
