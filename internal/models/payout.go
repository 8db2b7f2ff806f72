package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payout records the settlement instruction issued for a paid timecard.
type Payout struct {
	ID           string          `db:"id" json:"id"`
	TimecardID   string          `db:"timecard_id" json:"timecardId"`
	NurseID      string          `db:"nurse_id" json:"nurseId"`
	ClientID     string          `db:"client_id" json:"clientId"`
	TotalHours   decimal.Decimal `db:"total_hours" json:"totalHours"`
	HourlyRate   decimal.Decimal `db:"hourly_rate" json:"hourlyRate"`
	Gross        decimal.Decimal `db:"gross" json:"gross"`
	ClientCharge decimal.Decimal `db:"client_charge" json:"clientCharge"`
	ProviderNet  decimal.Decimal `db:"provider_net" json:"providerNet"`
	PlatformFee  decimal.Decimal `db:"platform_fee" json:"platformFee"`
	FeeWaived    bool            `db:"fee_waived" json:"feeWaived"`
	Reference    string          `db:"reference" json:"reference"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
}
