package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/shift-ledger-api/internal/models"
	appErrors "github.com/noah-isme/shift-ledger-api/pkg/errors"
)

const (
	quarterHour   = 15
	minutesPerDay = 24 * 60
	dateLayout    = "2006-01-02"
)

var sixty = decimal.NewFromInt(60)

// ShiftInput is a shift as typed by the provider.
type ShiftInput struct {
	StartTime    string
	EndTime      string
	IsOvernight  bool
	BreakMinutes int
}

// NormalizedShift holds the canonical values derived from a ShiftInput.
type NormalizedShift struct {
	RoundedStartTime string
	RoundedEndTime   string
	TotalHours       decimal.Decimal
}

// ParseClock converts "HH:MM" into minutes since midnight.
func ParseClock(raw string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return 0, appErrors.Clonef(appErrors.ErrValidation, "invalid time %q: expected HH:MM", raw)
	}
	hours, err := strconv.Atoi(hh)
	if err != nil || hours < 0 || hours > 23 {
		return 0, appErrors.Clonef(appErrors.ErrValidation, "invalid hour in %q", raw)
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, appErrors.Clonef(appErrors.ErrValidation, "invalid minute in %q", raw)
	}
	return hours*60 + minutes, nil
}

// FormatClock renders minutes since midnight as "HH:MM", wrapping past midnight.
func FormatClock(minutes int) string {
	minutes = ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// RoundToQuarterHour rounds to the nearest 15-minute boundary. A remainder below
// 7.5 minutes rounds down, anything else rounds up. The result may be 1440 when
// a late-evening time rounds up to midnight.
func RoundToQuarterHour(minutes int) int {
	remainder := minutes % quarterHour
	if remainder*2 < quarterHour {
		return minutes - remainder
	}
	return minutes - remainder + quarterHour
}

// RoundClock applies RoundToQuarterHour to an "HH:MM" string.
func RoundClock(raw string) (string, error) {
	minutes, err := ParseClock(raw)
	if err != nil {
		return "", err
	}
	return FormatClock(RoundToQuarterHour(minutes)), nil
}

// NormalizeShift rounds both ends of the shift and computes the paid duration
// in hours, rounded half-up to two decimals.
func NormalizeShift(in ShiftInput) (NormalizedShift, error) {
	if in.BreakMinutes < 0 {
		return NormalizedShift{}, appErrors.Clone(appErrors.ErrValidation, "breakMinutes must not be negative")
	}
	start, err := ParseClock(in.StartTime)
	if err != nil {
		return NormalizedShift{}, err
	}
	end, err := ParseClock(in.EndTime)
	if err != nil {
		return NormalizedShift{}, err
	}

	roundedStart := RoundToQuarterHour(start)
	roundedEnd := RoundToQuarterHour(end)

	effectiveEnd := roundedEnd
	if in.IsOvernight && effectiveEnd <= roundedStart {
		effectiveEnd += minutesPerDay
	}

	worked := effectiveEnd - roundedStart - in.BreakMinutes
	hours := decimal.NewFromInt(int64(worked)).Div(sixty).Round(2)
	if !hours.IsPositive() {
		return NormalizedShift{}, appErrors.Clonef(appErrors.ErrInvalidDuration,
			"computed duration %s hours from %s to %s (overnight=%t, break=%dm) must be positive",
			hours.StringFixed(2), FormatClock(roundedStart), FormatClock(roundedEnd), in.IsOvernight, in.BreakMinutes)
	}

	return NormalizedShift{
		RoundedStartTime: FormatClock(roundedStart),
		RoundedEndTime:   FormatClock(roundedEnd),
		TotalHours:       hours,
	}, nil
}

// ApprovalDeadline returns the instant after which a submitted timecard is auto-approved.
func ApprovalDeadline(submittedAt time.Time) time.Time {
	return submittedAt.Add(models.ApprovalWindow)
}

// ParseShiftDate parses a "YYYY-MM-DD" calendar date at UTC midnight.
func ParseShiftDate(raw string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return time.Time{}, appErrors.Clonef(appErrors.ErrValidation, "invalid date %q: expected YYYY-MM-DD", raw)
	}
	return d, nil
}

// WeekBounds returns the Monday and Sunday of the week containing day.
func WeekBounds(day time.Time) (time.Time, time.Time) {
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7
	start := d.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}
