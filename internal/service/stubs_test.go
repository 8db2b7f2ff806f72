package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/shift-ledger-api/internal/models"
	"github.com/noah-isme/shift-ledger-api/internal/repository"
	"github.com/noah-isme/shift-ledger-api/pkg/jobs"
)

// memoryTimecardStore mimics the conditional updates of the SQL repository.
type memoryTimecardStore struct {
	mu        sync.Mutex
	timecards map[string]*models.Timecard
	filter    models.TimecardFilter
	listErr   error
}

func newMemoryTimecardStore(cards ...*models.Timecard) *memoryTimecardStore {
	store := &memoryTimecardStore{timecards: make(map[string]*models.Timecard)}
	for _, tc := range cards {
		store.timecards[tc.ID] = tc
	}
	return store
}

func (m *memoryTimecardStore) Create(ctx context.Context, tc *models.Timecard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tc
	m.timecards[tc.ID] = &cp
	return nil
}

func (m *memoryTimecardStore) GetByID(ctx context.Context, id string) (*models.Timecard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tc, ok := m.timecards[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *tc
	return &cp, nil
}

func (m *memoryTimecardStore) List(ctx context.Context, filter models.TimecardFilter) ([]models.Timecard, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	out := make([]models.Timecard, 0, len(m.timecards))
	for _, tc := range m.timecards {
		if filter.NurseID != "" && tc.NurseID != filter.NurseID {
			continue
		}
		if filter.ClientID != "" && tc.ClientID != filter.ClientID {
			continue
		}
		if len(filter.Status) > 0 && !containsStatus(filter.Status, tc.Status) {
			continue
		}
		out = append(out, *tc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memoryTimecardStore) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Timecard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]models.Timecard, 0)
	for _, tc := range m.timecards {
		if tc.Status == models.TimecardStatusSubmitted && !tc.ApprovalDeadline.After(now) {
			out = append(out, *tc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryTimecardStore) Transition(ctx context.Context, t models.TimecardTransition) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tc, ok := m.timecards[t.ID]
	if !ok || !containsStatus(t.From, tc.Status) {
		return 0, nil
	}
	if t.DeadlineBefore != nil && tc.ApprovalDeadline.After(*t.DeadlineBefore) {
		return 0, nil
	}
	tc.Status = t.To
	tc.UpdatedAt = t.At
	if t.ApprovedByClient != nil {
		tc.ApprovedByClient = *t.ApprovedByClient
	}
	if t.AutoApproved != nil {
		tc.AutoApproved = *t.AutoApproved
	}
	if t.TimestampApproved != nil {
		tc.TimestampApproved = t.TimestampApproved
	}
	if t.TimestampPaid != nil {
		tc.TimestampPaid = t.TimestampPaid
	}
	if t.Notes != nil {
		tc.Notes = *t.Notes
	}
	if t.PaymentReference != nil {
		tc.PaymentReference = t.PaymentReference
	}
	return 1, nil
}

func (m *memoryTimecardStore) applyOverride(o models.TimecardOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tc, ok := m.timecards[o.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if containsStatus(o.ForbidStatus, tc.Status) {
		return &repository.StaleTimecardError{ID: o.ID, Status: tc.Status}
	}
	if tc.Status == models.TimecardStatusPaid && o.Status != models.TimecardStatusPaid {
		tc.TimestampPaid = nil
		tc.PaymentReference = nil
	}
	tc.Status = o.Status
	tc.UpdatedAt = o.At
	if o.TotalHours != nil {
		tc.TotalHours = *o.TotalHours
	}
	if o.Notes != nil {
		tc.Notes = *o.Notes
	}
	if o.TimestampApproved != nil {
		tc.TimestampApproved = o.TimestampApproved
	}
	return nil
}

// markPaid stamps a stored card as paid outside any service call.
func (m *memoryTimecardStore) markPaid(id, reference string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tc := m.timecards[id]
	tc.Status = models.TimecardStatusPaid
	tc.TimestampPaid = &at
	tc.PaymentReference = &reference
}

func (m *memoryTimecardStore) status(id string) models.TimecardStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timecards[id].Status
}

func containsStatus(list []models.TimecardStatus, s models.TimecardStatus) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

type auditStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *auditStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.logs))
	for i, l := range a.logs {
		out[i] = l.Action
	}
	return out
}

type eventRecorder struct {
	mu     sync.Mutex
	events []models.TimecardEvent
}

func (e *eventRecorder) Publish(ctx context.Context, event models.TimecardEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *eventRecorder) types() []models.TimecardEventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.TimecardEventType, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Type
	}
	return out
}

type statsStub struct {
	mu          sync.Mutex
	waived      bool
	err         error
	invalidated []string
}

func (s *statsStub) FeeWaived(ctx context.Context, nurseID string) (bool, error) {
	return s.waived, s.err
}

func (s *statsStub) Invalidate(ctx context.Context, nurseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, nurseID)
}

type dispatcherStub struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (d *dispatcherStub) TryEnqueue(job jobs.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func submittedTimecard(id string, submittedAt time.Time) *models.Timecard {
	return &models.Timecard{
		ID:                 id,
		NurseID:            "nurse-1",
		ClientID:           "client-1",
		JobCode:            "JOB-1",
		StartTime:          "09:00",
		EndTime:            "17:00",
		RoundedStartTime:   "09:00",
		RoundedEndTime:     "17:00",
		TotalHours:         dec("8"),
		HourlyRate:         dec("12.50"),
		Status:             models.TimecardStatusSubmitted,
		TimestampSubmitted: submittedAt,
		ApprovalDeadline:   ApprovalDeadline(submittedAt),
		CreatedAt:          submittedAt,
		UpdatedAt:          submittedAt,
	}
}

var (
	providerClaims = &models.JWTClaims{UserID: "nurse-1", Role: models.RoleProvider}
	clientClaims   = &models.JWTClaims{UserID: "client-1", Role: models.RoleClient}
	strangerClaims = &models.JWTClaims{UserID: "client-9", Role: models.RoleClient}
	adminClaims    = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
)
