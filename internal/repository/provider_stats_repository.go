package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/shift-ledger-api/internal/models"
)

// ProviderStatsRepository aggregates provider history from timecards.
type ProviderStatsRepository struct {
	db *sqlx.DB
}

// NewProviderStatsRepository constructs the repository.
func NewProviderStatsRepository(db *sqlx.DB) *ProviderStatsRepository {
	return &ProviderStatsRepository{db: db}
}

// GetProviderStats sums approved hours and counts engagements with at least one paid timecard.
func (r *ProviderStatsRepository) GetProviderStats(ctx context.Context, nurseID string) (*models.ProviderStats, error) {
	const query = `SELECT $1::text AS nurse_id,
	COALESCE(SUM(total_hours) FILTER (WHERE status IN ('APPROVED', 'AUTO_APPROVED', 'PAID')), 0) AS approved_hours,
	COUNT(DISTINCT job_code) FILTER (WHERE status = 'PAID') AS completed_engagements
	FROM timecards WHERE nurse_id = $1`
	var stats models.ProviderStats
	if err := r.db.GetContext(ctx, &stats, query, nurseID); err != nil {
		return nil, fmt.Errorf("provider stats: %w", err)
	}
	return &stats, nil
}
