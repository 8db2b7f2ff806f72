package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/shift-ledger-api/internal/dto"
	"github.com/noah-isme/shift-ledger-api/internal/models"
	"github.com/noah-isme/shift-ledger-api/internal/repository"
	appErrors "github.com/noah-isme/shift-ledger-api/pkg/errors"
)

type disputeStore interface {
	Create(ctx context.Context, dispute *models.Dispute) error
	GetByID(ctx context.Context, id string) (*models.Dispute, error)
	GetByTimecardID(ctx context.Context, timecardID string) (*models.Dispute, error)
	List(ctx context.Context, filter models.DisputeFilter) ([]models.Dispute, int, error)
	UpdateEvidence(ctx context.Context, id string, role models.UserRole, evidence string, at time.Time) (int64, error)
	Resolve(ctx context.Context, record models.DisputeResolutionRecord, override models.TimecardOverride) error
}

type timecardReader interface {
	GetByID(ctx context.Context, id string) (*models.Timecard, error)
}

// DisputeServiceConfig carries dispute policy switches.
type DisputeServiceConfig struct {
	// AllowPaidReopen lets disputes touch timecards that were already paid.
	AllowPaidReopen bool
	Clock           func() time.Time
}

// DisputeService lets either party contest a timecard and lets an
// administrator force the final outcome, overriding the normal state machine.
type DisputeService struct {
	repo      disputeStore
	timecards timecardReader
	audit     auditLogger
	events    EventPublisher
	stats     providerStatsResolver
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       DisputeServiceConfig
}

// NewDisputeService constructs the resolver.
func NewDisputeService(repo disputeStore, timecards timecardReader, audit auditLogger, events EventPublisher, stats providerStatsResolver, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg DisputeServiceConfig) *DisputeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &DisputeService{
		repo:      repo,
		timecards: timecards,
		audit:     audit,
		events:    events,
		stats:     stats,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Open files the single dispute a timecard may carry.
func (s *DisputeService) Open(ctx context.Context, timecardID string, req dto.OpenDisputeRequest, actor *models.JWTClaims) (*dto.DisputeDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dispute payload")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reason is required")
	}

	tc, err := s.loadTimecard(ctx, timecardID)
	if err != nil {
		return nil, err
	}
	if !tc.IsParty(actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the timecard's provider or client can open a dispute")
	}
	if tc.Status == models.TimecardStatusPaid && !s.cfg.AllowPaidReopen {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cannot dispute: timecard already PAID")
	}
	if existing, err := s.repo.GetByTimecardID(ctx, tc.ID); err == nil && existing != nil {
		return nil, appErrors.Clonef(appErrors.ErrConflict, "timecard already has a dispute (%s)", existing.Status)
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check existing dispute")
	}

	now := s.cfg.Clock()
	dispute := &models.Dispute{
		ID:            uuid.NewString(),
		TimecardID:    tc.ID,
		Reason:        reason,
		InitiatedBy:   actor.UserID,
		InitiatorRole: partyRole(tc, actor.UserID),
		Status:        models.DisputeStatusOpen,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if evidence := strings.TrimSpace(req.Evidence); evidence != "" {
		if dispute.InitiatorRole == models.RoleProvider {
			dispute.ProviderEvidence = &evidence
		} else {
			dispute.ClientEvidence = &evidence
		}
	}
	if err := s.repo.Create(ctx, dispute); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "timecard already has a dispute")
		}
		return nil, appErrors.Internal(err, "failed to open dispute")
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionDisputeOpen,
		Resource:   "dispute",
		ResourceID: &dispute.ID,
		NewValues:  mustJSON(map[string]string{"timecardId": tc.ID, "reason": reason}),
	})
	s.publish(ctx, models.TimecardEventDisputed, tc, actor.UserID, now)
	return &dto.DisputeDetail{Dispute: dispute, Timecard: tc}, nil
}

// SubmitEvidence records the caller's side on an open dispute. Each party
// writes only its own evidence field; a later submission replaces the earlier one.
func (s *DisputeService) SubmitEvidence(ctx context.Context, id string, req dto.DisputeEvidenceRequest, actor *models.JWTClaims) (*dto.DisputeDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evidence payload")
	}
	evidence := strings.TrimSpace(req.Evidence)
	if evidence == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "evidence is required")
	}

	dispute, err := s.loadDispute(ctx, id)
	if err != nil {
		return nil, err
	}
	tc, err := s.loadTimecard(ctx, dispute.TimecardID)
	if err != nil {
		return nil, err
	}
	if !tc.IsParty(actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the timecard's provider or client can add evidence")
	}
	if dispute.Status != models.DisputeStatusOpen {
		return nil, appErrors.Clone(appErrors.ErrConflict, "dispute already resolved")
	}

	now := s.cfg.Clock()
	role := partyRole(tc, actor.UserID)
	rows, err := s.repo.UpdateEvidence(ctx, dispute.ID, role, evidence, now)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to store evidence")
	}
	if rows == 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "dispute already resolved")
	}
	if role == models.RoleProvider {
		dispute.ProviderEvidence = &evidence
	} else {
		dispute.ClientEvidence = &evidence
	}
	dispute.UpdatedAt = now

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionDisputeEvidence,
		Resource:   "dispute",
		ResourceID: &dispute.ID,
		NewValues:  mustJSON(map[string]string{"role": string(role)}),
	})
	return &dto.DisputeDetail{Dispute: dispute, Timecard: tc}, nil
}

// Resolve applies an administrator's forced outcome to the dispute and its
// timecard in one transaction. Only a PAID timecard can block it, and only
// when paid reopening is disabled.
func (s *DisputeService) Resolve(ctx context.Context, id string, req dto.ResolveDisputeRequest, actor *models.JWTClaims) (*dto.DisputeDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can resolve disputes")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resolution payload")
	}

	dispute, err := s.loadDispute(ctx, id)
	if err != nil {
		return nil, err
	}
	if dispute.Status != models.DisputeStatusOpen {
		return nil, appErrors.Clone(appErrors.ErrConflict, "dispute already resolved")
	}
	tc, err := s.loadTimecard(ctx, dispute.TimecardID)
	if err != nil {
		return nil, err
	}
	if tc.Status == models.TimecardStatusPaid && !s.cfg.AllowPaidReopen {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cannot resolve: timecard already PAID")
	}

	now := s.cfg.Clock()
	notes := strings.TrimSpace(req.AdminNotes)
	override := models.TimecardOverride{ID: tc.ID, At: now}
	if !s.cfg.AllowPaidReopen {
		override.ForbidStatus = []models.TimecardStatus{models.TimecardStatusPaid}
	}
	record := models.DisputeResolutionRecord{
		ID:            dispute.ID,
		Resolution:    req.Resolution,
		AdminNotes:    notes,
		OriginalHours: tc.TotalHours,
		ResolvedBy:    actor.UserID,
		ResolvedAt:    now,
	}

	switch req.Resolution {
	case models.DisputeResolutionApprove:
		override.Status = models.TimecardStatusApproved
		override.TimestampApproved = &now
		annotated := appendNote(tc.Notes, annotation("Approved by admin", actor.UserID, notes))
		override.Notes = &annotated
	case models.DisputeResolutionDeny:
		if notes == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "adminNotes are required to deny a timecard")
		}
		override.Status = models.TimecardStatusRejected
		annotated := annotation("Denied by admin", actor.UserID, notes)
		override.Notes = &annotated
	case models.DisputeResolutionPartial:
		if req.AdjustedHours == nil || !req.AdjustedHours.IsPositive() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "adjustedHours must be a positive number for a partial approval")
		}
		adjusted := req.AdjustedHours.Round(2)
		override.Status = models.TimecardStatusApproved
		override.TotalHours = &adjusted
		override.TimestampApproved = &now
		record.AdjustedHours = &adjusted
		summary := fmt.Sprintf("Partial approval by admin %s: hours adjusted from %s to %s",
			actor.UserID, tc.TotalHours.StringFixed(2), adjusted.StringFixed(2))
		if notes != "" {
			summary += ". " + notes
		}
		annotated := appendNote(tc.Notes, summary)
		override.Notes = &annotated
	default:
		return nil, appErrors.Clonef(appErrors.ErrValidation, "unknown resolution %q", req.Resolution)
	}

	if err := s.repo.Resolve(ctx, record, override); err != nil {
		var stale *repository.StaleTimecardError
		if errors.As(err, &stale) {
			return nil, appErrors.Clonef(appErrors.ErrConflict, "cannot resolve: timecard is now %s", stale.Status)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "dispute already resolved")
		}
		return nil, appErrors.Internal(err, "failed to resolve dispute")
	}

	before := *tc
	resolution := req.Resolution
	dispute.Status = models.DisputeStatusResolvedAdmin
	dispute.Resolution = &resolution
	dispute.ResolvedBy = &actor.UserID
	dispute.ResolvedAt = &now
	dispute.UpdatedAt = now
	dispute.OriginalHours = &record.OriginalHours
	dispute.AdjustedHours = record.AdjustedHours
	if notes != "" {
		dispute.AdminNotes = &notes
	}

	tc.Status = override.Status
	if override.TotalHours != nil {
		tc.TotalHours = *override.TotalHours
	}
	if override.Notes != nil {
		tc.Notes = *override.Notes
	}
	if override.TimestampApproved != nil {
		tc.TimestampApproved = override.TimestampApproved
	}
	if before.Status == models.TimecardStatusPaid {
		tc.TimestampPaid = nil
		tc.PaymentReference = nil
	}
	tc.UpdatedAt = now

	s.metrics.ObserveTransition(before.Status, tc.Status)
	previous := map[string]string{
		"status":     string(before.Status),
		"totalHours": before.TotalHours.StringFixed(2),
		"notes":      before.Notes,
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionDisputeResolve,
		Resource:   "dispute",
		ResourceID: &dispute.ID,
		OldValues:  mustJSON(previous),
		NewValues:  mustJSON(map[string]string{"resolution": string(resolution), "status": string(tc.Status)}),
	})
	if record.AdjustedHours != nil {
		s.emitAudit(ctx, &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     models.AuditActionTimecardHoursOverride,
			Resource:   "timecard",
			ResourceID: &tc.ID,
			OldValues:  mustJSON(map[string]string{"totalHours": before.TotalHours.StringFixed(2)}),
			NewValues:  mustJSON(map[string]string{"totalHours": tc.TotalHours.StringFixed(2)}),
		})
	}
	if s.stats != nil {
		s.stats.Invalidate(ctx, tc.NurseID)
	}
	s.publish(ctx, models.TimecardEventResolved, tc, actor.UserID, now)
	return &dto.DisputeDetail{Dispute: dispute, Timecard: tc}, nil
}

// Get returns a dispute visible to the actor.
func (s *DisputeService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.DisputeDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	dispute, err := s.loadDispute(ctx, id)
	if err != nil {
		return nil, err
	}
	tc, err := s.loadTimecard(ctx, dispute.TimecardID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !tc.IsParty(actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "dispute belongs to other parties")
	}
	return &dto.DisputeDetail{Dispute: dispute, Timecard: tc}, nil
}

// List returns disputes; non-admins only see disputes on their own timecards.
func (s *DisputeService) List(ctx context.Context, query dto.DisputeQuery, actor *models.JWTClaims) ([]models.Dispute, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	page, size := normalizePage(query.Page, query.PageSize)
	filter := models.DisputeFilter{
		Status:     query.Status,
		TimecardID: query.TimecardID,
		Limit:      size,
		Offset:     (page - 1) * size,
	}
	if !actor.IsAdmin() {
		filter.PartyID = actor.UserID
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list disputes")
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *DisputeService) loadDispute(ctx context.Context, id string) (*models.Dispute, error) {
	dispute, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "dispute not found")
		}
		return nil, appErrors.Internal(err, "failed to load dispute")
	}
	return dispute, nil
}

func (s *DisputeService) loadTimecard(ctx context.Context, id string) (*models.Timecard, error) {
	tc, err := s.timecards.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timecard not found")
		}
		return nil, appErrors.Internal(err, "failed to load timecard")
	}
	return tc, nil
}

func (s *DisputeService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "dispute-service"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func (s *DisputeService) publish(ctx context.Context, eventType models.TimecardEventType, tc *models.Timecard, actorID string, at time.Time) {
	if s.events != nil {
		s.events.Publish(ctx, models.NewTimecardEvent(eventType, tc, actorID, at))
	}
}

func partyRole(tc *models.Timecard, userID string) models.UserRole {
	if tc.NurseID == userID {
		return models.RoleProvider
	}
	return models.RoleClient
}

func annotation(prefix, adminID, notes string) string {
	out := fmt.Sprintf("%s %s", prefix, adminID)
	if notes != "" {
		out += ": " + notes
	}
	return out
}

func mustJSON(v interface{}) []byte {
	payload, _ := json.Marshal(v)
	return payload
}
