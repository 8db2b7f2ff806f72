package models

import "github.com/shopspring/decimal"

// Earnings is the fee split derived from a timecard's hours and rate.
type Earnings struct {
	TotalHours   decimal.Decimal `json:"totalHours"`
	HourlyRate   decimal.Decimal `json:"hourlyRate"`
	Gross        decimal.Decimal `json:"gross"`
	ClientCharge decimal.Decimal `json:"clientCharge"`
	ProviderNet  decimal.Decimal `json:"providerNet"`
	PlatformFee  decimal.Decimal `json:"platformFee"`
	FeeWaived    bool            `json:"feeWaived"`
}

// ProviderStats aggregates a provider's history for fee waiver eligibility.
type ProviderStats struct {
	NurseID              string          `db:"nurse_id" json:"nurseId"`
	ApprovedHours        decimal.Decimal `db:"approved_hours" json:"approvedHours"`
	CompletedEngagements int             `db:"completed_engagements" json:"completedEngagements"`
}
