package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/shift-ledger-api/internal/dto"
	"github.com/noah-isme/shift-ledger-api/internal/models"
	appErrors "github.com/noah-isme/shift-ledger-api/pkg/errors"
	"github.com/noah-isme/shift-ledger-api/pkg/response"
)

type disputeService interface {
	Open(ctx context.Context, timecardID string, req dto.OpenDisputeRequest, actor *models.JWTClaims) (*dto.DisputeDetail, error)
	SubmitEvidence(ctx context.Context, id string, req dto.DisputeEvidenceRequest, actor *models.JWTClaims) (*dto.DisputeDetail, error)
	Resolve(ctx context.Context, id string, req dto.ResolveDisputeRequest, actor *models.JWTClaims) (*dto.DisputeDetail, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.DisputeDetail, error)
	List(ctx context.Context, query dto.DisputeQuery, actor *models.JWTClaims) ([]models.Dispute, *models.Pagination, error)
}

// DisputeHandler exposes dispute filing and administrator resolution.
type DisputeHandler struct {
	service disputeService
}

// NewDisputeHandler builds a new handler.
func NewDisputeHandler(service disputeService) *DisputeHandler {
	return &DisputeHandler{service: service}
}

// Open godoc
// @Summary Open a dispute on a timecard
// @Tags Disputes
// @Accept json
// @Produce json
// @Param id path string true "Timecard ID"
// @Param payload body dto.OpenDisputeRequest true "Dispute payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timecards/{id}/disputes [post]
func (h *DisputeHandler) Open(c *gin.Context) {
	var req dto.OpenDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid dispute payload"))
		return
	}
	detail, err := h.service.Open(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// List godoc
// @Summary List disputes
// @Tags Disputes
// @Produce json
// @Param status query string false "OPEN or RESOLVED_ADMIN"
// @Param timecardId query string false "Timecard ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /disputes [get]
func (h *DisputeHandler) List(c *gin.Context) {
	query := dto.DisputeQuery{
		TimecardID: c.Query("timecardId"),
		Page:       parseQueryInt(c, "page", 1),
		PageSize:   parseQueryInt(c, "limit", 20),
	}
	for _, s := range queryList(c, "status") {
		query.Status = append(query.Status, models.DisputeStatus(s))
	}
	items, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a dispute with its timecard
// @Tags Disputes
// @Produce json
// @Param id path string true "Dispute ID"
// @Success 200 {object} response.Envelope
// @Router /disputes/{id} [get]
func (h *DisputeHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// Evidence godoc
// @Summary Submit evidence for an open dispute
// @Tags Disputes
// @Accept json
// @Produce json
// @Param id path string true "Dispute ID"
// @Param payload body dto.DisputeEvidenceRequest true "Evidence"
// @Success 200 {object} response.Envelope
// @Router /disputes/{id}/evidence [post]
func (h *DisputeHandler) Evidence(c *gin.Context) {
	var req dto.DisputeEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid evidence payload"))
		return
	}
	detail, err := h.service.SubmitEvidence(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// Resolve godoc
// @Summary Resolve a dispute
// @Description Forces the timecard outcome regardless of its current status.
// @Tags Disputes
// @Accept json
// @Produce json
// @Param id path string true "Dispute ID"
// @Param payload body dto.ResolveDisputeRequest true "Resolution"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /disputes/{id}/resolve [post]
func (h *DisputeHandler) Resolve(c *gin.Context) {
	var req dto.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resolution payload"))
		return
	}
	detail, err := h.service.Resolve(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}
