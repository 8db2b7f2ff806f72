package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/shift-ledger-api/internal/models"
	"github.com/noah-isme/shift-ledger-api/pkg/database"
)

const disputeColumns = `d.id, d.timecard_id, d.reason, d.initiated_by, d.initiator_role, d.provider_evidence, d.client_evidence,
       d.admin_notes, d.status, d.resolution, d.original_hours, d.adjusted_hours, d.resolved_by, d.resolved_at,
       d.created_at, d.updated_at`

// DisputeRepository persists disputes and applies resolutions.
type DisputeRepository struct {
	db *sqlx.DB
}

// NewDisputeRepository constructs the repository.
func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Create inserts a dispute. A second dispute for the same timecard yields ErrDuplicate.
func (r *DisputeRepository) Create(ctx context.Context, dispute *models.Dispute) error {
	const query = `INSERT INTO disputes
	(id, timecard_id, reason, initiated_by, initiator_role, provider_evidence, client_evidence, admin_notes, status,
	 resolution, original_hours, adjusted_hours, resolved_by, resolved_at, created_at, updated_at)
	VALUES (:id, :timecard_id, :reason, :initiated_by, :initiator_role, :provider_evidence, :client_evidence, :admin_notes, :status,
	 :resolution, :original_hours, :adjusted_hours, :resolved_by, :resolved_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, dispute); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create dispute: %w", err)
	}
	return nil
}

// GetByID fetches a dispute by identifier.
func (r *DisputeRepository) GetByID(ctx context.Context, id string) (*models.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes d WHERE d.id = $1`
	var dispute models.Dispute
	if err := r.db.GetContext(ctx, &dispute, query, id); err != nil {
		return nil, err
	}
	return &dispute, nil
}

// GetByTimecardID fetches the dispute attached to a timecard.
func (r *DisputeRepository) GetByTimecardID(ctx context.Context, timecardID string) (*models.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes d WHERE d.timecard_id = $1`
	var dispute models.Dispute
	if err := r.db.GetContext(ctx, &dispute, query, timecardID); err != nil {
		return nil, err
	}
	return &dispute, nil
}

// List returns disputes matching the filter, newest first, plus the total match count.
func (r *DisputeRepository) List(ctx context.Context, filter models.DisputeFilter) ([]models.Dispute, int, error) {
	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 4)
	from := " FROM disputes d"
	if filter.PartyID != "" {
		from += " JOIN timecards t ON t.id = d.timecard_id"
		args = append(args, filter.PartyID)
		conditions = append(conditions, fmt.Sprintf("(t.nurse_id = $%d OR t.client_id = $%d)", len(args), len(args)))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("d.status = ANY($%d)", len(args)))
	}
	if filter.TimecardID != "" {
		args = append(args, filter.TimecardID)
		conditions = append(conditions, fmt.Sprintf("d.timecard_id = $%d", len(args)))
	}
	if filter.InitiatedBy != "" {
		args = append(args, filter.InitiatedBy)
		conditions = append(conditions, fmt.Sprintf("d.initiated_by = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+from+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count disputes: %w", err)
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf("SELECT %s%s%s ORDER BY d.created_at DESC LIMIT %d OFFSET %d", disputeColumns, from, where, limit, offset)
	var items []models.Dispute
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list disputes: %w", err)
	}
	return items, total, nil
}

// UpdateEvidence stores one party's evidence while the dispute is still open.
func (r *DisputeRepository) UpdateEvidence(ctx context.Context, id string, role models.UserRole, evidence string, at time.Time) (int64, error) {
	column := "client_evidence"
	if role == models.RoleProvider {
		column = "provider_evidence"
	}
	query := fmt.Sprintf("UPDATE disputes SET %s = $1, updated_at = $2 WHERE id = $3 AND status = $4", column)
	result, err := r.db.ExecContext(ctx, query, evidence, at, id, string(models.DisputeStatusOpen))
	if err != nil {
		return 0, fmt.Errorf("update dispute evidence: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check dispute evidence rows: %w", err)
	}
	return rows, nil
}

// Resolve closes an open dispute and rewrites its timecard in one transaction.
// It returns sql.ErrNoRows when the dispute was already resolved.
func (r *DisputeRepository) Resolve(ctx context.Context, record models.DisputeResolutionRecord, override models.TimecardOverride) error {
	const query = `UPDATE disputes SET status = $1, resolution = $2, admin_notes = NULLIF($3, ''), original_hours = $4,
	adjusted_hours = $5, resolved_by = $6, resolved_at = $7, updated_at = $7
	WHERE id = $8 AND status = $9`
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			string(models.DisputeStatusResolvedAdmin),
			string(record.Resolution),
			record.AdminNotes,
			record.OriginalHours,
			record.AdjustedHours,
			record.ResolvedBy,
			record.ResolvedAt,
			record.ID,
			string(models.DisputeStatusOpen),
		)
		if err != nil {
			return fmt.Errorf("resolve dispute %s: %w", record.ID, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("check dispute resolution rows: %w", err)
		}
		if rows == 0 {
			return sql.ErrNoRows
		}
		return overrideTimecard(ctx, tx, override)
	})
}
