package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/shift-ledger-api/internal/dto"
	"github.com/noah-isme/shift-ledger-api/internal/models"
	appErrors "github.com/noah-isme/shift-ledger-api/pkg/errors"
	"github.com/noah-isme/shift-ledger-api/pkg/response"
)

type timecardService interface {
	Submit(ctx context.Context, req dto.SubmitTimecardRequest, actor *models.JWTClaims) (*models.Timecard, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Timecard, error)
	List(ctx context.Context, query dto.TimecardQuery, actor *models.JWTClaims) ([]models.Timecard, *models.Pagination, error)
	Approve(ctx context.Context, id string, actor *models.JWTClaims) (*models.Timecard, error)
	Reject(ctx context.Context, id string, req dto.RejectTimecardRequest, actor *models.JWTClaims) (*models.Timecard, error)
	MarkPaid(ctx context.Context, id, reference string) (*models.Timecard, error)
	Earnings(ctx context.Context, id string, actor *models.JWTClaims) (*models.Earnings, error)
}

type payoutSettler interface {
	Settle(ctx context.Context, timecardID string) (*models.Payout, error)
}

type statementService interface {
	Weekly(ctx context.Context, query dto.StatementQuery, actor *models.JWTClaims) (*dto.StatementFile, error)
}

// TimecardHandler exposes the timecard lifecycle endpoints.
type TimecardHandler struct {
	timecards  timecardService
	payments   payoutSettler
	statements statementService
}

// NewTimecardHandler builds a new handler.
func NewTimecardHandler(timecards timecardService, payments payoutSettler, statements statementService) *TimecardHandler {
	return &TimecardHandler{timecards: timecards, payments: payments, statements: statements}
}

// Submit godoc
// @Summary Submit a timecard
// @Description Rounds the shift to quarter hours and opens the 24 hour approval window.
// @Tags Timecards
// @Accept json
// @Produce json
// @Param payload body dto.SubmitTimecardRequest true "Shift entry"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timecards [post]
func (h *TimecardHandler) Submit(c *gin.Context) {
	var req dto.SubmitTimecardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timecard payload"))
		return
	}
	tc, err := h.timecards.Submit(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tc)
}

// List godoc
// @Summary List timecards visible to the caller
// @Tags Timecards
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param jobCode query string false "Job code"
// @Param from query string false "Shift date from (YYYY-MM-DD)"
// @Param to query string false "Shift date to (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timecards [get]
func (h *TimecardHandler) List(c *gin.Context) {
	query := dto.TimecardQuery{
		JobCode:  c.Query("jobCode"),
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "limit", 20),
	}
	for _, s := range queryList(c, "status") {
		query.Status = append(query.Status, models.TimecardStatus(s))
	}
	var err error
	if query.From, err = parseDateParam(c.Query("from")); err != nil {
		response.Error(c, err)
		return
	}
	if query.To, err = parseDateParam(c.Query("to")); err != nil {
		response.Error(c, err)
		return
	}

	items, pagination, err := h.timecards.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a timecard
// @Tags Timecards
// @Produce json
// @Param id path string true "Timecard ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timecards/{id} [get]
func (h *TimecardHandler) Get(c *gin.Context) {
	tc, err := h.timecards.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tc)
}

// Approve godoc
// @Summary Approve a submitted timecard
// @Tags Timecards
// @Produce json
// @Param id path string true "Timecard ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timecards/{id}/approve [post]
func (h *TimecardHandler) Approve(c *gin.Context) {
	tc, err := h.timecards.Approve(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tc)
}

// Reject godoc
// @Summary Reject a submitted timecard
// @Tags Timecards
// @Accept json
// @Produce json
// @Param id path string true "Timecard ID"
// @Param payload body dto.RejectTimecardRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timecards/{id}/reject [post]
func (h *TimecardHandler) Reject(c *gin.Context) {
	var req dto.RejectTimecardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rejection payload"))
		return
	}
	tc, err := h.timecards.Reject(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tc)
}

// Pay godoc
// @Summary Pay an approved timecard
// @Description With a reference the payment is recorded as made elsewhere; without one the payout gateway settles it.
// @Tags Timecards
// @Accept json
// @Produce json
// @Param id path string true "Timecard ID"
// @Param payload body dto.PayTimecardRequest false "External payment reference"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timecards/{id}/pay [post]
func (h *TimecardHandler) Pay(c *gin.Context) {
	var req dto.PayTimecardRequest
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		// An empty body means settle through the gateway.
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
			return
		}
	}

	id := c.Param("id")
	if req.Reference != "" || h.payments == nil {
		tc, err := h.timecards.MarkPaid(c.Request.Context(), id, req.Reference)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, tc)
		return
	}

	payout, err := h.payments.Settle(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payout)
}

// Earnings godoc
// @Summary Earnings breakdown for a timecard
// @Tags Timecards
// @Produce json
// @Param id path string true "Timecard ID"
// @Success 200 {object} response.Envelope
// @Router /timecards/{id}/earnings [get]
func (h *TimecardHandler) Earnings(c *gin.Context) {
	earnings, err := h.timecards.Earnings(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, earnings)
}

// Statement godoc
// @Summary Download a weekly statement
// @Tags Timecards
// @Produce text/csv
// @Produce application/pdf
// @Param weekStart query string true "Any day of the week (YYYY-MM-DD)"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /timecards/statement [get]
func (h *TimecardHandler) Statement(c *gin.Context) {
	weekStart, err := parseDateParam(c.Query("weekStart"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if weekStart == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "weekStart is required"))
		return
	}
	file, err := h.statements.Weekly(c.Request.Context(), dto.StatementQuery{
		WeekStart: *weekStart,
		Format:    c.Query("format"),
	}, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
