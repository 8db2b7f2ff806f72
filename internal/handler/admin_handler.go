package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/shift-ledger-api/internal/dto"
	"github.com/noah-isme/shift-ledger-api/pkg/response"
)

type sweepRunner interface {
	RunOnce(ctx context.Context) (*dto.SweepResult, error)
}

type payoutBatcher interface {
	EnqueuePending(ctx context.Context, limit int) (int, error)
}

// AdminHandler exposes operational triggers for administrators.
type AdminHandler struct {
	sweeper sweepRunner
	payouts payoutBatcher
}

// NewAdminHandler builds a new handler.
func NewAdminHandler(sweeper sweepRunner, payouts payoutBatcher) *AdminHandler {
	return &AdminHandler{sweeper: sweeper, payouts: payouts}
}

// Sweep godoc
// @Summary Run the auto-approval sweep now
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/auto-approvals/sweep [post]
func (h *AdminHandler) Sweep(c *gin.Context) {
	result, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// RunPayouts godoc
// @Summary Queue payouts for every approved, unpaid timecard
// @Tags Admin
// @Produce json
// @Param limit query int false "Maximum timecards to queue"
// @Success 202 {object} response.Envelope
// @Router /admin/payouts/run [post]
func (h *AdminHandler) RunPayouts(c *gin.Context) {
	queued, err := h.payouts.EnqueuePending(c.Request.Context(), parseQueryInt(c, "limit", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"queued": queued}, nil)
}
