package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/shift-ledger-api/internal/models"
)

const timecardColumns = `id, nurse_id, client_id, job_code, shift_date, start_time, end_time, is_overnight, break_minutes,
       rounded_start_time, rounded_end_time, total_hours, hourly_rate, status, approved_by_client, auto_approved,
       approval_deadline, timestamp_submitted, timestamp_approved, timestamp_paid, notes, payment_reference,
       week_start_date, week_end_date, created_at, updated_at`

// TimecardRepository persists timecards.
type TimecardRepository struct {
	db *sqlx.DB
}

// NewTimecardRepository constructs the repository.
func NewTimecardRepository(db *sqlx.DB) *TimecardRepository {
	return &TimecardRepository{db: db}
}

// Create inserts a new timecard row.
func (r *TimecardRepository) Create(ctx context.Context, tc *models.Timecard) error {
	const query = `INSERT INTO timecards
	(id, nurse_id, client_id, job_code, shift_date, start_time, end_time, is_overnight, break_minutes,
	 rounded_start_time, rounded_end_time, total_hours, hourly_rate, status, approved_by_client, auto_approved,
	 approval_deadline, timestamp_submitted, timestamp_approved, timestamp_paid, notes, payment_reference,
	 week_start_date, week_end_date, created_at, updated_at)
	VALUES (:id, :nurse_id, :client_id, :job_code, :shift_date, :start_time, :end_time, :is_overnight, :break_minutes,
	 :rounded_start_time, :rounded_end_time, :total_hours, :hourly_rate, :status, :approved_by_client, :auto_approved,
	 :approval_deadline, :timestamp_submitted, :timestamp_approved, :timestamp_paid, :notes, :payment_reference,
	 :week_start_date, :week_end_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tc); err != nil {
		return fmt.Errorf("create timecard: %w", err)
	}
	return nil
}

// GetByID fetches a timecard by identifier.
func (r *TimecardRepository) GetByID(ctx context.Context, id string) (*models.Timecard, error) {
	query := `SELECT ` + timecardColumns + ` FROM timecards WHERE id = $1`
	var tc models.Timecard
	if err := r.db.GetContext(ctx, &tc, query, id); err != nil {
		return nil, err
	}
	return &tc, nil
}

// List returns timecards matching the filter, newest shift first, plus the total match count.
func (r *TimecardRepository) List(ctx context.Context, filter models.TimecardFilter) ([]models.Timecard, int, error) {
	args := make([]interface{}, 0, 8)
	conditions := make([]string, 0, 6)
	if filter.NurseID != "" {
		args = append(args, filter.NurseID)
		conditions = append(conditions, fmt.Sprintf("nurse_id = $%d", len(args)))
	}
	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if filter.JobCode != "" {
		args = append(args, filter.JobCode)
		conditions = append(conditions, fmt.Sprintf("job_code = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		args = append(args, pq.Array(timecardStatuses(filter.Status)))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("shift_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("shift_date <= $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM timecards"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count timecards: %w", err)
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf("SELECT %s FROM timecards%s ORDER BY shift_date DESC, created_at DESC LIMIT %d OFFSET %d",
		timecardColumns, where, limit, offset)
	var items []models.Timecard
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timecards: %w", err)
	}
	return items, total, nil
}

// ListOverdue returns SUBMITTED timecards whose approval deadline is at or before now.
func (r *TimecardRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Timecard, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + timecardColumns + ` FROM timecards
	WHERE status = $1 AND approval_deadline <= $2
	ORDER BY approval_deadline ASC LIMIT $3`
	var items []models.Timecard
	if err := r.db.SelectContext(ctx, &items, query, string(models.TimecardStatusSubmitted), now, limit); err != nil {
		return nil, fmt.Errorf("list overdue timecards: %w", err)
	}
	return items, nil
}

// Transition applies a guarded status change and reports how many rows moved.
// Zero means the stored status no longer matched and nothing was written.
func (r *TimecardRepository) Transition(ctx context.Context, t models.TimecardTransition) (int64, error) {
	if len(t.From) == 0 {
		return 0, fmt.Errorf("transition timecard %s: no source status", t.ID)
	}
	args := []interface{}{string(t.To), t.At}
	sets := []string{"status = $1", "updated_at = $2"}
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if t.ApprovedByClient != nil {
		set("approved_by_client", *t.ApprovedByClient)
	}
	if t.AutoApproved != nil {
		set("auto_approved", *t.AutoApproved)
	}
	if t.TimestampApproved != nil {
		set("timestamp_approved", *t.TimestampApproved)
	}
	if t.TimestampPaid != nil {
		set("timestamp_paid", *t.TimestampPaid)
	}
	if t.Notes != nil {
		set("notes", *t.Notes)
	}
	if t.PaymentReference != nil {
		set("payment_reference", *t.PaymentReference)
	}

	args = append(args, t.ID)
	where := fmt.Sprintf("id = $%d", len(args))
	args = append(args, pq.Array(timecardStatuses(t.From)))
	where += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	if t.DeadlineBefore != nil {
		args = append(args, *t.DeadlineBefore)
		where += fmt.Sprintf(" AND approval_deadline <= $%d", len(args))
	}

	query := fmt.Sprintf("UPDATE timecards SET %s WHERE %s", strings.Join(sets, ", "), where)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("transition timecard %s to %s: %w", t.ID, t.To, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check timecard transition rows: %w", err)
	}
	return rows, nil
}

// overrideTimecard locks the timecard row and rewrites it. A status listed in
// ForbidStatus aborts with StaleTimecardError. A PAID card loses its payment
// stamp and its active payout is voided so a later settlement starts fresh.
func overrideTimecard(ctx context.Context, tx *sqlx.Tx, o models.TimecardOverride) error {
	var current string
	if err := tx.GetContext(ctx, &current, `SELECT status FROM timecards WHERE id = $1 FOR UPDATE`, o.ID); err != nil {
		return fmt.Errorf("lock timecard %s: %w", o.ID, err)
	}
	status := models.TimecardStatus(current)
	for _, forbidden := range o.ForbidStatus {
		if status == forbidden {
			return &StaleTimecardError{ID: o.ID, Status: status}
		}
	}
	reopen := status == models.TimecardStatusPaid && o.Status != models.TimecardStatusPaid

	args := []interface{}{string(o.Status), o.At}
	sets := []string{"status = $1", "updated_at = $2"}
	if o.TotalHours != nil {
		args = append(args, *o.TotalHours)
		sets = append(sets, fmt.Sprintf("total_hours = $%d", len(args)))
	}
	if o.Notes != nil {
		args = append(args, *o.Notes)
		sets = append(sets, fmt.Sprintf("notes = $%d", len(args)))
	}
	if o.TimestampApproved != nil {
		args = append(args, *o.TimestampApproved)
		sets = append(sets, fmt.Sprintf("timestamp_approved = $%d", len(args)))
	}
	if reopen {
		sets = append(sets, "timestamp_paid = NULL", "payment_reference = NULL")
	}
	args = append(args, o.ID)
	query := fmt.Sprintf("UPDATE timecards SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("override timecard %s: %w", o.ID, err)
	}
	if !reopen {
		return nil
	}
	const voidPayout = `UPDATE payouts SET voided_at = $1 WHERE timecard_id = $2 AND voided_at IS NULL`
	if _, err := tx.ExecContext(ctx, voidPayout, o.At, o.ID); err != nil {
		return fmt.Errorf("void payout for %s: %w", o.ID, err)
	}
	return nil
}

func timecardStatuses(statuses []models.TimecardStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
