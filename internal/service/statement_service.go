package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/shift-ledger-api/internal/dto"
	"github.com/noah-isme/shift-ledger-api/internal/models"
	appErrors "github.com/noah-isme/shift-ledger-api/pkg/errors"
	"github.com/noah-isme/shift-ledger-api/pkg/export"
)

const statementRowLimit = 1000

type statementSource interface {
	List(ctx context.Context, filter models.TimecardFilter) ([]models.Timecard, int, error)
}

type statementRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

var statementHeaders = []string{"date", "job", "counterparty", "start", "end", "rounded", "break", "hours", "status"}

// StatementService renders weekly timecard statements for download.
type StatementService struct {
	source statementSource
	csv    statementRenderer
	pdf    statementRenderer
	logger *zap.Logger
}

// NewStatementService constructs the statement renderer.
func NewStatementService(source statementSource, csv, pdf statementRenderer, logger *zap.Logger) *StatementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatementService{source: source, csv: csv, pdf: pdf, logger: logger}
}

// Weekly renders the Monday to Sunday statement containing query.WeekStart.
func (s *StatementService) Weekly(ctx context.Context, query dto.StatementQuery, actor *models.JWTClaims) (*dto.StatementFile, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	format := strings.ToLower(strings.TrimSpace(query.Format))
	if format == "" {
		format = "csv"
	}
	var renderer statementRenderer
	contentType := ""
	switch format {
	case "csv":
		renderer, contentType = s.csv, "text/csv"
	case "pdf":
		renderer, contentType = s.pdf, "application/pdf"
	default:
		return nil, appErrors.Clonef(appErrors.ErrValidation, "unsupported format %q", query.Format)
	}
	if query.WeekStart.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "weekStart is required")
	}

	weekStart, weekEnd := WeekBounds(query.WeekStart)
	filter := models.TimecardFilter{From: &weekStart, To: &weekEnd, Limit: statementRowLimit}
	switch actor.Role {
	case models.RoleProvider:
		filter.NurseID = actor.UserID
	case models.RoleClient:
		filter.ClientID = actor.UserID
	case models.RoleAdmin:
	default:
		return nil, appErrors.ErrForbidden
	}

	items, _, err := s.source.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load statement timecards")
	}

	data := BuildStatement(items, actor, weekStart, weekEnd)
	body, err := renderer.Render(data)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render statement")
	}
	return &dto.StatementFile{
		Filename:    fmt.Sprintf("statement-%s.%s", weekStart.Format(dateLayout), format),
		ContentType: contentType,
		Body:        body,
	}, nil
}

// BuildStatement lays out timecards as export rows with a total hours footer.
// Rejected timecards are listed but excluded from the total.
func BuildStatement(items []models.Timecard, actor *models.JWTClaims, weekStart, weekEnd time.Time) export.Dataset {
	data := export.Dataset{
		Title:   fmt.Sprintf("Timecard statement %s to %s", weekStart.Format(dateLayout), weekEnd.Format(dateLayout)),
		Headers: statementHeaders,
		Rows:    make([]map[string]string, 0, len(items)),
	}
	total := decimal.Zero
	for _, tc := range items {
		counterparty := tc.ClientID
		if actor != nil && actor.Role == models.RoleClient {
			counterparty = tc.NurseID
		}
		data.Rows = append(data.Rows, map[string]string{
			"date":         tc.ShiftDate.Format(dateLayout),
			"job":          tc.JobCode,
			"counterparty": counterparty,
			"start":        tc.StartTime,
			"end":          tc.EndTime,
			"rounded":      tc.RoundedStartTime + "-" + tc.RoundedEndTime,
			"break":        fmt.Sprintf("%d", tc.BreakMinutes),
			"hours":        tc.TotalHours.StringFixed(2),
			"status":       string(tc.Status),
		})
		if tc.Status != models.TimecardStatusRejected {
			total = total.Add(tc.TotalHours)
		}
	}
	data.Footer = map[string]string{"date": "TOTAL", "hours": total.StringFixed(2)}
	return data
}
