package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/shift-ledger-api/internal/dto"
	"github.com/noah-isme/shift-ledger-api/internal/models"
	appErrors "github.com/noah-isme/shift-ledger-api/pkg/errors"
	"github.com/noah-isme/shift-ledger-api/pkg/jobs"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200

	// JobTypePayout identifies payout jobs on the settlement queue.
	JobTypePayout = "timecard.payout"
)

type timecardStore interface {
	Create(ctx context.Context, tc *models.Timecard) error
	GetByID(ctx context.Context, id string) (*models.Timecard, error)
	List(ctx context.Context, filter models.TimecardFilter) ([]models.Timecard, int, error)
	Transition(ctx context.Context, t models.TimecardTransition) (int64, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// EventPublisher fans lifecycle events out to interested parties. Publishing
// never fails the transition that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, event models.TimecardEvent)
}

type providerStatsResolver interface {
	FeeWaived(ctx context.Context, nurseID string) (bool, error)
	Invalidate(ctx context.Context, nurseID string)
}

type jobDispatcher interface {
	TryEnqueue(job jobs.Job) error
}

// TimecardService owns the timecard state machine. Every status change is a
// conditional write so concurrent actors cannot both win.
type TimecardService struct {
	repo      timecardStore
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	events    EventPublisher
	stats     providerStatsResolver
	payouts   jobDispatcher
	now       func() time.Time
}

// TimecardServiceOption configures the service.
type TimecardServiceOption func(*TimecardService)

// WithTimecardClock overrides the wall clock.
func WithTimecardClock(now func() time.Time) TimecardServiceOption {
	return func(s *TimecardService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTimecardEvents sets the lifecycle event publisher.
func WithTimecardEvents(events EventPublisher) TimecardServiceOption {
	return func(s *TimecardService) { s.events = events }
}

// WithTimecardMetrics attaches transition counters.
func WithTimecardMetrics(metrics *MetricsService) TimecardServiceOption {
	return func(s *TimecardService) { s.metrics = metrics }
}

// WithProviderStats enables fee waiver lookups and cache invalidation.
func WithProviderStats(stats providerStatsResolver) TimecardServiceOption {
	return func(s *TimecardService) { s.stats = stats }
}

// WithPayoutDispatcher queues a payout whenever a client approves.
func WithPayoutDispatcher(d jobDispatcher) TimecardServiceOption {
	return func(s *TimecardService) { s.payouts = d }
}

// NewTimecardService constructs the lifecycle manager.
func NewTimecardService(repo timecardStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger, opts ...TimecardServiceOption) *TimecardService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &TimecardService{
		repo:      repo,
		audit:     audit,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit normalises a provider's raw shift and stores it awaiting client review.
func (s *TimecardService) Submit(ctx context.Context, req dto.SubmitTimecardRequest, actor *models.JWTClaims) (*models.Timecard, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleProvider {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only providers can submit timecards")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timecard payload")
	}
	if req.ClientID == actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "clientId must differ from the submitting provider")
	}
	if !req.HourlyRate.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "hourlyRate must be positive")
	}

	shiftDate, err := ParseShiftDate(req.ShiftDate)
	if err != nil {
		return nil, err
	}
	normalized, err := NormalizeShift(ShiftInput{
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		IsOvernight:  req.IsOvernight,
		BreakMinutes: req.BreakMinutes,
	})
	if err != nil {
		return nil, err
	}
	weekStart, weekEnd, err := resolveWeek(req, shiftDate)
	if err != nil {
		return nil, err
	}

	now := s.now()
	tc := &models.Timecard{
		ID:                 uuid.NewString(),
		NurseID:            actor.UserID,
		ClientID:           req.ClientID,
		JobCode:            strings.TrimSpace(req.JobCode),
		ShiftDate:          shiftDate,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		IsOvernight:        req.IsOvernight,
		BreakMinutes:       req.BreakMinutes,
		RoundedStartTime:   normalized.RoundedStartTime,
		RoundedEndTime:     normalized.RoundedEndTime,
		TotalHours:         normalized.TotalHours,
		HourlyRate:         req.HourlyRate,
		Status:             models.TimecardStatusSubmitted,
		ApprovalDeadline:   ApprovalDeadline(now),
		TimestampSubmitted: now,
		Notes:              strings.TrimSpace(req.Notes),
		WeekStartDate:      weekStart,
		WeekEndDate:        weekEnd,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Create(ctx, tc); err != nil {
		return nil, appErrors.Internal(err, "failed to store timecard")
	}

	s.recordTransition(ctx, tc, "", actor.UserID, models.AuditActionTimecardSubmit, models.TimecardEventSubmitted)
	return tc, nil
}

// Approve records the client's approval. It fails with a conflict when the
// timecard already left SUBMITTED, including when the sweep got there first.
func (s *TimecardService) Approve(ctx context.Context, id string, actor *models.JWTClaims) (*models.Timecard, error) {
	tc, err := s.loadForClientDecision(ctx, id, actor, "approve")
	if err != nil {
		return nil, err
	}

	now := s.now()
	approved := true
	rows, err := s.repo.Transition(ctx, models.TimecardTransition{
		ID:                tc.ID,
		From:              []models.TimecardStatus{models.TimecardStatusSubmitted},
		To:                models.TimecardStatusApproved,
		At:                now,
		ApprovedByClient:  &approved,
		TimestampApproved: &now,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to approve timecard")
	}
	if rows == 0 {
		return nil, s.lostDecision(ctx, tc.ID, "approve")
	}

	tc.Status = models.TimecardStatusApproved
	tc.ApprovedByClient = true
	tc.TimestampApproved = &now
	tc.UpdatedAt = now

	s.recordTransition(ctx, tc, models.TimecardStatusSubmitted, actor.UserID, models.AuditActionTimecardApprove, models.TimecardEventApproved)
	s.invalidateStats(ctx, tc.NurseID)
	s.schedulePayout(tc.ID)
	return tc, nil
}

// Reject records the client's rejection with a mandatory reason.
func (s *TimecardService) Reject(ctx context.Context, id string, req dto.RejectTimecardRequest, actor *models.JWTClaims) (*models.Timecard, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reason is required to reject a timecard")
	}
	tc, err := s.loadForClientDecision(ctx, id, actor, "reject")
	if err != nil {
		return nil, err
	}

	now := s.now()
	approved := false
	notes := appendNote(tc.Notes, "Rejected by client: "+reason)
	rows, err := s.repo.Transition(ctx, models.TimecardTransition{
		ID:               tc.ID,
		From:             []models.TimecardStatus{models.TimecardStatusSubmitted},
		To:               models.TimecardStatusRejected,
		At:               now,
		ApprovedByClient: &approved,
		Notes:            &notes,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to reject timecard")
	}
	if rows == 0 {
		return nil, s.lostDecision(ctx, tc.ID, "reject")
	}

	tc.Status = models.TimecardStatusRejected
	tc.ApprovedByClient = false
	tc.Notes = notes
	tc.UpdatedAt = now

	s.recordTransition(ctx, tc, models.TimecardStatusSubmitted, actor.UserID, models.AuditActionTimecardReject, models.TimecardEventRejected)
	return tc, nil
}

// AutoApprove moves one overdue timecard to AUTO_APPROVED. It reports false
// without error when the timecard is no longer eligible.
func (s *TimecardService) AutoApprove(ctx context.Context, tc *models.Timecard, now time.Time) (bool, error) {
	if tc == nil {
		return false, nil
	}
	autoApproved := true
	rows, err := s.repo.Transition(ctx, models.TimecardTransition{
		ID:                tc.ID,
		From:              []models.TimecardStatus{models.TimecardStatusSubmitted},
		To:                models.TimecardStatusAutoApproved,
		At:                now,
		AutoApproved:      &autoApproved,
		TimestampApproved: &now,
		DeadlineBefore:    &now,
	})
	if err != nil {
		return false, appErrors.Internal(err, "failed to auto-approve timecard")
	}
	if rows == 0 {
		return false, nil
	}

	updated := *tc
	updated.Status = models.TimecardStatusAutoApproved
	updated.AutoApproved = true
	updated.TimestampApproved = &now
	updated.UpdatedAt = now

	s.recordTransition(ctx, &updated, models.TimecardStatusSubmitted, "", models.AuditActionTimecardAutoApprove, models.TimecardEventAutoApproved)
	s.invalidateStats(ctx, updated.NurseID)
	return true, nil
}

// MarkPaid settles an approved timecard. Timecards outside APPROVED or
// AUTO_APPROVED are refused with INVALID_STATE and left untouched.
func (s *TimecardService) MarkPaid(ctx context.Context, id, reference string) (*models.Timecard, error) {
	tc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tc.Status.Payable() {
		return nil, appErrors.Clonef(appErrors.ErrInvalidState, "cannot mark paid: timecard is %s", tc.Status)
	}

	now := s.now()
	var ref *string
	if reference = strings.TrimSpace(reference); reference != "" {
		ref = &reference
	}
	from := tc.Status
	rows, err := s.repo.Transition(ctx, models.TimecardTransition{
		ID:               tc.ID,
		From:             []models.TimecardStatus{models.TimecardStatusApproved, models.TimecardStatusAutoApproved},
		To:               models.TimecardStatusPaid,
		At:               now,
		TimestampPaid:    &now,
		PaymentReference: ref,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to mark timecard paid")
	}
	if rows == 0 {
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, appErrors.Clonef(appErrors.ErrInvalidState, "cannot mark paid: timecard is %s", current.Status)
	}

	tc.Status = models.TimecardStatusPaid
	tc.TimestampPaid = &now
	tc.PaymentReference = ref
	tc.UpdatedAt = now

	s.recordTransition(ctx, tc, from, "", models.AuditActionTimecardPaid, models.TimecardEventPaid)
	s.invalidateStats(ctx, tc.NurseID)
	return tc, nil
}

// Get returns a timecard visible to the actor.
func (s *TimecardService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Timecard, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	tc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !tc.IsParty(actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "timecard belongs to other parties")
	}
	return tc, nil
}

// List returns timecards scoped to the actor's role.
func (s *TimecardService) List(ctx context.Context, query dto.TimecardQuery, actor *models.JWTClaims) ([]models.Timecard, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	for _, status := range query.Status {
		if !status.Valid() {
			return nil, nil, appErrors.Clonef(appErrors.ErrValidation, "unknown status %q", status)
		}
	}
	page, size := normalizePage(query.Page, query.PageSize)
	filter := models.TimecardFilter{
		JobCode: strings.TrimSpace(query.JobCode),
		Status:  query.Status,
		From:    query.From,
		To:      query.To,
		Limit:   size,
		Offset:  (page - 1) * size,
	}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleProvider:
		filter.NurseID = actor.UserID
	case models.RoleClient:
		filter.ClientID = actor.UserID
	default:
		return nil, nil, appErrors.ErrForbidden
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list timecards")
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Earnings computes the fee split for a timecard, applying the provider's
// waiver when their history qualifies.
func (s *TimecardService) Earnings(ctx context.Context, id string, actor *models.JWTClaims) (*models.Earnings, error) {
	tc, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	waived := false
	if s.stats != nil {
		waived, err = s.stats.FeeWaived(ctx, tc.NurseID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to resolve fee waiver")
		}
	}
	earnings, err := CalculateEarnings(tc.TotalHours, tc.HourlyRate, waived)
	if err != nil {
		return nil, err
	}
	return &earnings, nil
}

func (s *TimecardService) load(ctx context.Context, id string) (*models.Timecard, error) {
	tc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timecard not found")
		}
		return nil, appErrors.Internal(err, "failed to load timecard")
	}
	return tc, nil
}

func (s *TimecardService) loadForClientDecision(ctx context.Context, id string, actor *models.JWTClaims, verb string) (*models.Timecard, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	tc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.UserID != tc.ClientID {
		return nil, appErrors.Clonef(appErrors.ErrForbidden, "only the timecard's client can %s it", verb)
	}
	if tc.Status != models.TimecardStatusSubmitted {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "cannot %s: already %s", verb, tc.Status)
	}
	return tc, nil
}

// lostDecision explains a conditional update that matched no row.
func (s *TimecardService) lostDecision(ctx context.Context, id, verb string) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	return appErrors.Clonef(appErrors.ErrConflict, "cannot %s: already %s", verb, current.Status)
}

func (s *TimecardService) recordTransition(ctx context.Context, tc *models.Timecard, from models.TimecardStatus, actorID, action string, event models.TimecardEventType) {
	s.metrics.ObserveTransition(from, tc.Status)

	log := &models.AuditLog{
		Action:     action,
		Resource:   "timecard",
		ResourceID: &tc.ID,
		NewValues:  statusSnapshot(tc.Status, tc.TotalHours.StringFixed(2)),
	}
	if from != "" {
		log.OldValues = statusSnapshot(from, tc.TotalHours.StringFixed(2))
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	s.emitAudit(ctx, log)

	if s.events != nil {
		s.events.Publish(ctx, models.NewTimecardEvent(event, tc, actorID, tc.UpdatedAt))
	}
}

func (s *TimecardService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "timecard-service"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func (s *TimecardService) invalidateStats(ctx context.Context, nurseID string) {
	if s.stats != nil {
		s.stats.Invalidate(ctx, nurseID)
	}
}

func (s *TimecardService) schedulePayout(timecardID string) {
	if s.payouts == nil {
		return
	}
	if err := s.payouts.TryEnqueue(jobs.Job{ID: timecardID, Type: JobTypePayout}); err != nil {
		s.metrics.ObservePayout("dropped")
		s.logger.Warn("payout not queued", zap.String("timecard_id", timecardID), zap.Error(err))
	}
}

func resolveWeek(req dto.SubmitTimecardRequest, shiftDate time.Time) (time.Time, time.Time, error) {
	if req.WeekStartDate == "" && req.WeekEndDate == "" {
		start, end := WeekBounds(shiftDate)
		return start, end, nil
	}
	if req.WeekStartDate == "" || req.WeekEndDate == "" {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "weekStartDate and weekEndDate must be provided together")
	}
	start, err := ParseShiftDate(req.WeekStartDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := ParseShiftDate(req.WeekEndDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "weekEndDate must not precede weekStartDate")
	}
	if shiftDate.Before(start) || shiftDate.After(end) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "shiftDate must fall inside the given week")
	}
	return start, end, nil
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func appendNote(existing, note string) string {
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}

func statusSnapshot(status models.TimecardStatus, hours string) []byte {
	payload, _ := json.Marshal(map[string]string{"status": string(status), "totalHours": hours})
	return payload
}
