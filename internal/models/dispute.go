package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DisputeStatus captures the review state of a dispute.
type DisputeStatus string

const (
	DisputeStatusOpen          DisputeStatus = "OPEN"
	DisputeStatusResolvedAdmin DisputeStatus = "RESOLVED_ADMIN"
)

// DisputeResolution enumerates the outcomes an administrator can force.
type DisputeResolution string

const (
	DisputeResolutionApprove DisputeResolution = "APPROVE_TIMECARD"
	DisputeResolutionDeny    DisputeResolution = "DENY_TIMECARD"
	DisputeResolutionPartial DisputeResolution = "PARTIAL_APPROVAL"
)

// Dispute is the optional one-per-timecard disagreement record.
type Dispute struct {
	ID               string             `db:"id" json:"id"`
	TimecardID       string             `db:"timecard_id" json:"timecardId"`
	Reason           string             `db:"reason" json:"reason"`
	InitiatedBy      string             `db:"initiated_by" json:"initiatedBy"`
	InitiatorRole    UserRole           `db:"initiator_role" json:"initiatorRole"`
	ProviderEvidence *string            `db:"provider_evidence" json:"providerEvidence,omitempty"`
	ClientEvidence   *string            `db:"client_evidence" json:"clientEvidence,omitempty"`
	AdminNotes       *string            `db:"admin_notes" json:"adminNotes,omitempty"`
	Status           DisputeStatus      `db:"status" json:"status"`
	Resolution       *DisputeResolution `db:"resolution" json:"resolution,omitempty"`
	OriginalHours    *decimal.Decimal   `db:"original_hours" json:"originalHours,omitempty"`
	AdjustedHours    *decimal.Decimal   `db:"adjusted_hours" json:"adjustedHours,omitempty"`
	ResolvedBy       *string            `db:"resolved_by" json:"resolvedBy,omitempty"`
	ResolvedAt       *time.Time         `db:"resolved_at" json:"resolvedAt,omitempty"`
	CreatedAt        time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time          `db:"updated_at" json:"updatedAt"`
}

// DisputeFilter constrains listing queries.
type DisputeFilter struct {
	Status      []DisputeStatus
	TimecardID  string
	PartyID     string
	InitiatedBy string
	Limit       int
	Offset      int
}

// DisputeResolutionRecord is persisted when an administrator closes a dispute.
type DisputeResolutionRecord struct {
	ID            string
	Resolution    DisputeResolution
	AdminNotes    string
	OriginalHours decimal.Decimal
	AdjustedHours *decimal.Decimal
	ResolvedBy    string
	ResolvedAt    time.Time
}
