package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/shift-ledger-api/internal/models"
)

// SubmitTimecardRequest is the raw shift entry typed by the provider.
type SubmitTimecardRequest struct {
	ClientID      string          `json:"clientId" validate:"required"`
	JobCode       string          `json:"jobCode" validate:"required,max=64"`
	ShiftDate     string          `json:"shiftDate" validate:"required,datetime=2006-01-02"`
	StartTime     string          `json:"startTime" validate:"required,datetime=15:04"`
	EndTime       string          `json:"endTime" validate:"required,datetime=15:04"`
	IsOvernight   bool            `json:"isOvernight"`
	BreakMinutes  int             `json:"breakMinutes" validate:"gte=0,lte=1440"`
	HourlyRate    decimal.Decimal `json:"hourlyRate"`
	Notes         string          `json:"notes" validate:"max=2000"`
	WeekStartDate string          `json:"weekStartDate" validate:"omitempty,datetime=2006-01-02"`
	WeekEndDate   string          `json:"weekEndDate" validate:"omitempty,datetime=2006-01-02"`
}

// RejectTimecardRequest carries the client's mandatory rejection reason.
type RejectTimecardRequest struct {
	Reason string `json:"reason"`
}

// TimecardQuery mirrors supported listing filters.
type TimecardQuery struct {
	Status   []models.TimecardStatus
	JobCode  string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// SweepResult summarises one auto-approval pass.
type SweepResult struct {
	Scanned   int       `json:"scanned"`
	Affected  int       `json:"affected"`
	Skipped   int       `json:"skipped"`
	StartedAt time.Time `json:"startedAt"`
	Duration  string    `json:"duration"`
}

// StatementQuery selects a weekly statement.
type StatementQuery struct {
	WeekStart time.Time
	Format    string
}

// StatementFile is a rendered statement ready for download.
type StatementFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// PayTimecardRequest records a payment made outside the payout gateway. An
// empty reference routes the payment through the gateway instead.
type PayTimecardRequest struct {
	Reference string `json:"reference" validate:"max=128"`
}
