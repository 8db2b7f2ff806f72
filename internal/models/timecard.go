package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimecardStatus captures the approval workflow state of a timecard.
type TimecardStatus string

const (
	TimecardStatusSubmitted    TimecardStatus = "SUBMITTED"
	TimecardStatusApproved     TimecardStatus = "APPROVED"
	TimecardStatusAutoApproved TimecardStatus = "AUTO_APPROVED"
	TimecardStatusRejected     TimecardStatus = "REJECTED"
	TimecardStatusPaid         TimecardStatus = "PAID"
)

// Valid reports whether the status is one of the known workflow states.
func (s TimecardStatus) Valid() bool {
	switch s {
	case TimecardStatusSubmitted, TimecardStatusApproved, TimecardStatusAutoApproved, TimecardStatusRejected, TimecardStatusPaid:
		return true
	}
	return false
}

// Payable reports whether a timecard in this status may be marked paid.
func (s TimecardStatus) Payable() bool {
	return s == TimecardStatusApproved || s == TimecardStatusAutoApproved
}

// ApprovalWindow is the fixed time a client has to act before auto-approval.
const ApprovalWindow = 24 * time.Hour

// Timecard is a single self-reported shift moving through client approval.
type Timecard struct {
	ID               string          `db:"id" json:"id"`
	NurseID          string          `db:"nurse_id" json:"nurseId"`
	ClientID         string          `db:"client_id" json:"clientId"`
	JobCode          string          `db:"job_code" json:"jobCode"`
	ShiftDate        time.Time       `db:"shift_date" json:"shiftDate"`
	StartTime        string          `db:"start_time" json:"startTime"`
	EndTime          string          `db:"end_time" json:"endTime"`
	IsOvernight      bool            `db:"is_overnight" json:"isOvernight"`
	BreakMinutes     int             `db:"break_minutes" json:"breakMinutes"`
	RoundedStartTime string          `db:"rounded_start_time" json:"roundedStartTime"`
	RoundedEndTime   string          `db:"rounded_end_time" json:"roundedEndTime"`
	TotalHours       decimal.Decimal `db:"total_hours" json:"totalHours"`
	HourlyRate       decimal.Decimal `db:"hourly_rate" json:"hourlyRate"`

	Status             TimecardStatus `db:"status" json:"status"`
	ApprovedByClient   bool           `db:"approved_by_client" json:"approvedByClient"`
	AutoApproved       bool           `db:"auto_approved" json:"autoApproved"`
	ApprovalDeadline   time.Time      `db:"approval_deadline" json:"approvalDeadline"`
	TimestampSubmitted time.Time      `db:"timestamp_submitted" json:"timestampSubmitted"`
	TimestampApproved  *time.Time     `db:"timestamp_approved" json:"timestampApproved,omitempty"`
	TimestampPaid      *time.Time     `db:"timestamp_paid" json:"timestampPaid,omitempty"`
	Notes              string         `db:"notes" json:"notes"`
	PaymentReference   *string        `db:"payment_reference" json:"paymentReference,omitempty"`

	WeekStartDate time.Time `db:"week_start_date" json:"weekStartDate"`
	WeekEndDate   time.Time `db:"week_end_date" json:"weekEndDate"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// IsParty reports whether userID is the provider or client bound to the timecard.
func (t *Timecard) IsParty(userID string) bool {
	return userID != "" && (t.NurseID == userID || t.ClientID == userID)
}

// TimecardFilter constrains listing queries. Zero values are ignored.
type TimecardFilter struct {
	NurseID  string
	ClientID string
	JobCode  string
	Status   []TimecardStatus
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// TimecardTransition describes a guarded status change. The update only applies
// while the stored status is one of From.
type TimecardTransition struct {
	ID                string
	From              []TimecardStatus
	To                TimecardStatus
	At                time.Time
	ApprovedByClient  *bool
	AutoApproved      *bool
	TimestampApproved *time.Time
	TimestampPaid     *time.Time
	Notes             *string
	PaymentReference  *string

	// DeadlineBefore additionally requires approval_deadline <= the given instant.
	DeadlineBefore *time.Time
}

// TimecardOverride is the administrative rewrite used by dispute resolution.
// It ignores the normal state machine except for ForbidStatus, which is checked
// against the locked row. Rewriting a PAID card clears its payment and voids
// the active payout.
type TimecardOverride struct {
	ID                string
	Status            TimecardStatus
	TotalHours        *decimal.Decimal
	Notes             *string
	TimestampApproved *time.Time
	ForbidStatus      []TimecardStatus
	At                time.Time
}
