package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/shift-ledger-api/internal/dto"
	"github.com/noah-isme/shift-ledger-api/internal/models"
	"github.com/noah-isme/shift-ledger-api/internal/repository"
	appErrors "github.com/noah-isme/shift-ledger-api/pkg/errors"
)

type memoryDisputeStore struct {
	mu        sync.Mutex
	disputes  map[string]*models.Dispute
	timecards *memoryTimecardStore
	filter    models.DisputeFilter
}

func newMemoryDisputeStore(timecards *memoryTimecardStore) *memoryDisputeStore {
	return &memoryDisputeStore{disputes: make(map[string]*models.Dispute), timecards: timecards}
}

func (m *memoryDisputeStore) Create(ctx context.Context, dispute *models.Dispute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.disputes {
		if d.TimecardID == dispute.TimecardID {
			return repository.ErrDuplicate
		}
	}
	cp := *dispute
	m.disputes[dispute.ID] = &cp
	return nil
}

func (m *memoryDisputeStore) GetByID(ctx context.Context, id string) (*models.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *d
	return &cp, nil
}

func (m *memoryDisputeStore) GetByTimecardID(ctx context.Context, timecardID string) (*models.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.disputes {
		if d.TimecardID == timecardID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryDisputeStore) List(ctx context.Context, filter models.DisputeFilter) ([]models.Dispute, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = filter
	out := make([]models.Dispute, 0, len(m.disputes))
	for _, d := range m.disputes {
		out = append(out, *d)
	}
	return out, len(out), nil
}

func (m *memoryDisputeStore) UpdateEvidence(ctx context.Context, id string, role models.UserRole, evidence string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[id]
	if !ok || d.Status != models.DisputeStatusOpen {
		return 0, nil
	}
	if role == models.RoleProvider {
		d.ProviderEvidence = &evidence
	} else {
		d.ClientEvidence = &evidence
	}
	d.UpdatedAt = at
	return 1, nil
}

func (m *memoryDisputeStore) Resolve(ctx context.Context, record models.DisputeResolutionRecord, override models.TimecardOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[record.ID]
	if !ok || d.Status != models.DisputeStatusOpen {
		return sql.ErrNoRows
	}
	if err := m.timecards.applyOverride(override); err != nil {
		return err
	}
	resolution := record.Resolution
	d.Status = models.DisputeStatusResolvedAdmin
	d.Resolution = &resolution
	d.AdjustedHours = record.AdjustedHours
	d.ResolvedBy = &record.ResolvedBy
	d.ResolvedAt = &record.ResolvedAt
	return nil
}

type disputeFixture struct {
	timecards *memoryTimecardStore
	disputes  *memoryDisputeStore
	audit     *auditStub
	events    *eventRecorder
	svc       *DisputeService
}

func newDisputeFixture(allowPaid bool, cards ...*models.Timecard) *disputeFixture {
	f := &disputeFixture{
		timecards: newMemoryTimecardStore(cards...),
		audit:     &auditStub{},
		events:    &eventRecorder{},
	}
	f.disputes = newMemoryDisputeStore(f.timecards)
	f.svc = NewDisputeService(f.disputes, f.timecards, f.audit, f.events, &statsStub{}, NewMetricsService(), nil, nil, DisputeServiceConfig{
		AllowPaidReopen: allowPaid,
		Clock:           func() time.Time { return time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC) },
	})
	return f
}

func timecardWithStatus(id string, status models.TimecardStatus) *models.Timecard {
	tc := submittedTimecard(id, time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC))
	tc.Status = status
	return tc
}

func (f *disputeFixture) open(t *testing.T, timecardID string, actor *models.JWTClaims) *models.Dispute {
	t.Helper()
	detail, err := f.svc.Open(context.Background(), timecardID, dto.OpenDisputeRequest{Reason: "hours are wrong"}, actor)
	require.NoError(t, err)
	return detail.Dispute
}

func TestDisputeServiceOpen(t *testing.T) {
	f := newDisputeFixture(false, timecardWithStatus("tc-1", models.TimecardStatusRejected))

	detail, err := f.svc.Open(context.Background(), "tc-1", dto.OpenDisputeRequest{Reason: "I worked the full shift", Evidence: "badge log"}, providerClaims)
	require.NoError(t, err)
	assert.Equal(t, models.DisputeStatusOpen, detail.Dispute.Status)
	assert.Equal(t, models.RoleProvider, detail.Dispute.InitiatorRole)
	require.NotNil(t, detail.Dispute.ProviderEvidence)
	assert.Equal(t, "badge log", *detail.Dispute.ProviderEvidence)
	assert.Nil(t, detail.Dispute.ClientEvidence)
	assert.Equal(t, []models.TimecardEventType{models.TimecardEventDisputed}, f.events.types())

	_, err = f.svc.Open(context.Background(), "tc-1", dto.OpenDisputeRequest{Reason: "again"}, clientClaims)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestDisputeServiceOpenGuards(t *testing.T) {
	f := newDisputeFixture(false, timecardWithStatus("tc-1", models.TimecardStatusSubmitted), timecardWithStatus("tc-paid", models.TimecardStatusPaid))
	ctx := context.Background()

	_, err := f.svc.Open(ctx, "tc-1", dto.OpenDisputeRequest{Reason: "x"}, strangerClaims)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	_, err = f.svc.Open(ctx, "tc-1", dto.OpenDisputeRequest{}, providerClaims)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = f.svc.Open(ctx, "missing", dto.OpenDisputeRequest{Reason: "x"}, providerClaims)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = f.svc.Open(ctx, "tc-paid", dto.OpenDisputeRequest{Reason: "x"}, providerClaims)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestDisputeServiceEvidenceIsPerParty(t *testing.T) {
	f := newDisputeFixture(false, timecardWithStatus("tc-1", models.TimecardStatusRejected))
	dispute := f.open(t, "tc-1", providerClaims)

	detail, err := f.svc.SubmitEvidence(context.Background(), dispute.ID, dto.DisputeEvidenceRequest{Evidence: "sign-out sheet"}, clientClaims)
	require.NoError(t, err)
	require.NotNil(t, detail.Dispute.ClientEvidence)
	assert.Equal(t, "sign-out sheet", *detail.Dispute.ClientEvidence)
	assert.Nil(t, detail.Dispute.ProviderEvidence)

	_, err = f.svc.SubmitEvidence(context.Background(), dispute.ID, dto.DisputeEvidenceRequest{Evidence: "x"}, strangerClaims)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestDisputeServicePartialApprovalOverridesRejected(t *testing.T) {
	f := newDisputeFixture(false, timecardWithStatus("tc-1", models.TimecardStatusRejected))
	dispute := f.open(t, "tc-1", providerClaims)
	adjusted := decimal.RequireFromString("5.25")

	detail, err := f.svc.Resolve(context.Background(), dispute.ID, dto.ResolveDisputeRequest{
		Resolution:    models.DisputeResolutionPartial,
		AdjustedHours: &adjusted,
		AdminNotes:    "left at 14:15 per badge log",
	}, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolvedAdmin, detail.Dispute.Status)
	assert.Equal(t, models.TimecardStatusApproved, detail.Timecard.Status)
	assert.Equal(t, "5.25", detail.Timecard.TotalHours.StringFixed(2))
	assert.Contains(t, detail.Timecard.Notes, "from 8.00 to 5.25")
	assert.Equal(t, "8.00", detail.Dispute.OriginalHours.StringFixed(2))

	stored, _ := f.timecards.GetByID(context.Background(), "tc-1")
	assert.Equal(t, models.TimecardStatusApproved, stored.Status)
	assert.Equal(t, "5.25", stored.TotalHours.StringFixed(2))
	assert.Contains(t, f.audit.actions(), models.AuditActionTimecardHoursOverride)

	_, err = f.svc.Resolve(context.Background(), dispute.ID, dto.ResolveDisputeRequest{Resolution: models.DisputeResolutionApprove}, adminClaims)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestDisputeServiceDenyOverridesApproval(t *testing.T) {
	tc := timecardWithStatus("tc-1", models.TimecardStatusAutoApproved)
	tc.Notes = "covered ICU wing"
	f := newDisputeFixture(false, tc)
	dispute := f.open(t, "tc-1", clientClaims)

	_, err := f.svc.Resolve(context.Background(), dispute.ID, dto.ResolveDisputeRequest{Resolution: models.DisputeResolutionDeny}, adminClaims)
	require.ErrorIs(t, err, appErrors.ErrValidation)

	detail, err := f.svc.Resolve(context.Background(), dispute.ID, dto.ResolveDisputeRequest{
		Resolution: models.DisputeResolutionDeny,
		AdminNotes: "no-show confirmed",
	}, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, models.TimecardStatusRejected, detail.Timecard.Status)
	assert.Equal(t, "Denied by admin admin-1: no-show confirmed", detail.Timecard.Notes)

	stored, _ := f.timecards.GetByID(context.Background(), "tc-1")
	assert.Equal(t, "Denied by admin admin-1: no-show confirmed", stored.Notes)
	assert.NotContains(t, stored.Notes, "covered ICU wing")

	var resolveLog *models.AuditLog
	for _, log := range f.audit.logs {
		if log.Action == models.AuditActionDisputeResolve {
			resolveLog = log
		}
	}
	require.NotNil(t, resolveLog)
	assert.Contains(t, string(resolveLog.OldValues), "covered ICU wing")
}

func TestDisputeServiceResolveGuards(t *testing.T) {
	f := newDisputeFixture(false, timecardWithStatus("tc-1", models.TimecardStatusRejected))
	dispute := f.open(t, "tc-1", providerClaims)
	ctx := context.Background()

	_, err := f.svc.Resolve(ctx, dispute.ID, dto.ResolveDisputeRequest{Resolution: models.DisputeResolutionApprove}, clientClaims)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	_, err = f.svc.Resolve(ctx, dispute.ID, dto.ResolveDisputeRequest{Resolution: "MAYBE"}, adminClaims)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = f.svc.Resolve(ctx, dispute.ID, dto.ResolveDisputeRequest{Resolution: models.DisputeResolutionPartial}, adminClaims)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	zero := decimal.Zero
	_, err = f.svc.Resolve(ctx, dispute.ID, dto.ResolveDisputeRequest{Resolution: models.DisputeResolutionPartial, AdjustedHours: &zero}, adminClaims)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, models.TimecardStatusRejected, f.timecards.status("tc-1"))
}

func TestDisputeServicePaidTimecardPolicy(t *testing.T) {
	strict := newDisputeFixture(false, timecardWithStatus("tc-1", models.TimecardStatusApproved))
	dispute := strict.open(t, "tc-1", clientClaims)
	strict.timecards.markPaid("tc-1", "PO-tc-1", time.Date(2026, 10, 13, 9, 0, 0, 0, time.UTC))

	_, err := strict.svc.Resolve(context.Background(), dispute.ID, dto.ResolveDisputeRequest{Resolution: models.DisputeResolutionApprove}, adminClaims)
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	lenient := newDisputeFixture(true, timecardWithStatus("tc-2", models.TimecardStatusPaid))
	dispute = lenient.open(t, "tc-2", clientClaims)
	detail, err := lenient.svc.Resolve(context.Background(), dispute.ID, dto.ResolveDisputeRequest{
		Resolution: models.DisputeResolutionDeny,
		AdminNotes: "charge back",
	}, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, models.TimecardStatusRejected, detail.Timecard.Status)
}

func TestDisputeServiceListScopesNonAdmins(t *testing.T) {
	f := newDisputeFixture(false, timecardWithStatus("tc-1", models.TimecardStatusRejected))
	f.open(t, "tc-1", providerClaims)

	_, page, err := f.svc.List(context.Background(), dto.DisputeQuery{}, clientClaims)
	require.NoError(t, err)
	assert.Equal(t, "client-1", f.disputes.filter.PartyID)
	assert.Equal(t, 1, page.TotalCount)

	_, _, err = f.svc.List(context.Background(), dto.DisputeQuery{}, adminClaims)
	require.NoError(t, err)
	assert.Empty(t, f.disputes.filter.PartyID)
}

type snapshotReader struct {
	snapshot models.Timecard
}

func (r snapshotReader) GetByID(ctx context.Context, id string) (*models.Timecard, error) {
	cp := r.snapshot
	return &cp, nil
}

func TestDisputeServiceResolveLosesToConcurrentPayment(t *testing.T) {
	f := newDisputeFixture(false, timecardWithStatus("tc-1", models.TimecardStatusApproved))
	dispute := f.open(t, "tc-1", clientClaims)
	snapshot, _ := f.timecards.GetByID(context.Background(), "tc-1")

	paidAt := time.Date(2026, 10, 14, 11, 59, 0, 0, time.UTC)
	f.timecards.markPaid("tc-1", "PO-tc-1", paidAt)
	svc := NewDisputeService(f.disputes, snapshotReader{snapshot: *snapshot}, f.audit, f.events, &statsStub{}, NewMetricsService(), nil, nil, DisputeServiceConfig{
		Clock: func() time.Time { return time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC) },
	})

	_, err := svc.Resolve(context.Background(), dispute.ID, dto.ResolveDisputeRequest{
		Resolution: models.DisputeResolutionDeny,
		AdminNotes: "no-show",
	}, adminClaims)
	require.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Contains(t, err.Error(), "PAID")

	stored, _ := f.timecards.GetByID(context.Background(), "tc-1")
	assert.Equal(t, models.TimecardStatusPaid, stored.Status)
	require.NotNil(t, stored.TimestampPaid)
	assert.Equal(t, paidAt, *stored.TimestampPaid)

	still, _ := f.disputes.GetByID(context.Background(), dispute.ID)
	assert.Equal(t, models.DisputeStatusOpen, still.Status)
}

func TestDisputeServiceReopenedPaidCardSettlesOnAdjustedHours(t *testing.T) {
	f := newDisputeFixture(true, timecardWithStatus("tc-1", models.TimecardStatusApproved))
	f.timecards.markPaid("tc-1", "PO-first", time.Date(2026, 10, 13, 9, 0, 0, 0, time.UTC))
	dispute := f.open(t, "tc-1", clientClaims)
	adjusted := decimal.RequireFromString("5.25")

	detail, err := f.svc.Resolve(context.Background(), dispute.ID, dto.ResolveDisputeRequest{
		Resolution:    models.DisputeResolutionPartial,
		AdjustedHours: &adjusted,
	}, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, models.TimecardStatusApproved, detail.Timecard.Status)
	assert.Nil(t, detail.Timecard.TimestampPaid)
	assert.Nil(t, detail.Timecard.PaymentReference)

	stored, _ := f.timecards.GetByID(context.Background(), "tc-1")
	assert.Nil(t, stored.TimestampPaid)
	assert.Nil(t, stored.PaymentReference)

	gateway := &gatewayStub{}
	marker := NewTimecardService(f.timecards, &auditStub{}, nil, nil)
	payments := NewPaymentService(f.timecards, marker, &statsStub{}, gateway, NewMetricsService(), nil)

	payout, err := payments.Settle(context.Background(), "tc-1")
	require.NoError(t, err)
	assert.Equal(t, "5.25", payout.TotalHours.StringFixed(2))
	assert.Equal(t, "65.63", payout.Gross.StringFixed(2))
	assert.Equal(t, "62.35", payout.ProviderNet.StringFixed(2))
	require.Equal(t, 1, gateway.count())
	assert.Equal(t, "5.25", gateway.payouts[0].TotalHours.StringFixed(2))

	settled, _ := f.timecards.GetByID(context.Background(), "tc-1")
	assert.Equal(t, models.TimecardStatusPaid, settled.Status)
	require.NotNil(t, settled.PaymentReference)
	assert.Equal(t, "PO-tc-1", *settled.PaymentReference)
}
