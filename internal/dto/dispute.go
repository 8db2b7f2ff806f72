package dto

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/shift-ledger-api/internal/models"
)

// OpenDisputeRequest is filed by either party of a timecard.
type OpenDisputeRequest struct {
	Reason   string `json:"reason" validate:"required,max=2000"`
	Evidence string `json:"evidence" validate:"max=4000"`
}

// DisputeEvidenceRequest attaches the caller's side of the story.
type DisputeEvidenceRequest struct {
	Evidence string `json:"evidence" validate:"required,max=4000"`
}

// ResolveDisputeRequest captures the administrator's forced outcome.
type ResolveDisputeRequest struct {
	Resolution    models.DisputeResolution `json:"resolution" validate:"required,oneof=APPROVE_TIMECARD DENY_TIMECARD PARTIAL_APPROVAL"`
	AdminNotes    string                   `json:"adminNotes" validate:"max=2000"`
	AdjustedHours *decimal.Decimal         `json:"adjustedHours"`
}

// DisputeQuery mirrors supported listing filters.
type DisputeQuery struct {
	Status     []models.DisputeStatus
	TimecardID string
	Page       int
	PageSize   int
}

// DisputeDetail bundles a dispute with the timecard it concerns.
type DisputeDetail struct {
	Dispute  *models.Dispute  `json:"dispute"`
	Timecard *models.Timecard `json:"timecard"`
}
