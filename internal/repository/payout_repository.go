package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/shift-ledger-api/internal/models"
)

// PayoutRepository records payout instructions. It is the settlement gateway:
// the external transfer runner reads pending rows from the payouts table.
type PayoutRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewPayoutRepository constructs the repository.
func NewPayoutRepository(db *sqlx.DB) *PayoutRepository {
	return &PayoutRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Transfer records the payout and returns its reference. Repeated calls for the
// same timecard return the reference of its active payout. Payouts voided by a
// dispute no longer match, so the next call records fresh amounts.
func (r *PayoutRepository) Transfer(ctx context.Context, payout *models.Payout) (string, error) {
	if payout.ID == "" {
		payout.ID = uuid.NewString()
	}
	if payout.Reference == "" {
		payout.Reference = "PO-" + uuid.NewString()
	}
	if payout.CreatedAt.IsZero() {
		payout.CreatedAt = r.now()
	}
	const query = `INSERT INTO payouts
	(id, timecard_id, nurse_id, client_id, total_hours, hourly_rate, gross, client_charge, provider_net, platform_fee, fee_waived, reference, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (timecard_id) WHERE voided_at IS NULL DO UPDATE SET timecard_id = EXCLUDED.timecard_id
	RETURNING reference`
	var reference string
	err := r.db.QueryRowxContext(ctx, query,
		payout.ID, payout.TimecardID, payout.NurseID, payout.ClientID,
		payout.TotalHours, payout.HourlyRate, payout.Gross, payout.ClientCharge, payout.ProviderNet, payout.PlatformFee,
		payout.FeeWaived, payout.Reference, payout.CreatedAt,
	).Scan(&reference)
	if err != nil {
		return "", fmt.Errorf("record payout for %s: %w", payout.TimecardID, err)
	}
	return reference, nil
}

