package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/shift-ledger-api/internal/middleware"
	"github.com/noah-isme/shift-ledger-api/internal/models"
)

// Handlers groups the endpoint handlers mounted under the API prefix.
type Handlers struct {
	Timecards *TimecardHandler
	Disputes  *DisputeHandler
	Admin     *AdminHandler
}

// RegisterRoutes mounts the authenticated API on group.
func RegisterRoutes(group *gin.RouterGroup, h Handlers, validator middleware.TokenValidator) {
	secured := group.Group("")
	secured.Use(middleware.JWT(validator))

	parties := middleware.RequireRoles(models.RoleProvider, models.RoleClient)
	everyone := middleware.RequireRoles(models.RoleProvider, models.RoleClient, models.RoleAdmin)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	timecards := secured.Group("/timecards")
	timecards.POST("", middleware.RequireRoles(models.RoleProvider), h.Timecards.Submit)
	timecards.GET("", everyone, h.Timecards.List)
	timecards.GET("/statement", everyone, h.Timecards.Statement)
	timecards.GET("/:id", everyone, h.Timecards.Get)
	timecards.GET("/:id/earnings", everyone, h.Timecards.Earnings)
	timecards.POST("/:id/approve", middleware.RequireRoles(models.RoleClient), h.Timecards.Approve)
	timecards.POST("/:id/reject", middleware.RequireRoles(models.RoleClient), h.Timecards.Reject)
	timecards.POST("/:id/pay", adminOnly, h.Timecards.Pay)
	timecards.POST("/:id/disputes", parties, h.Disputes.Open)

	disputes := secured.Group("/disputes")
	disputes.GET("", everyone, h.Disputes.List)
	disputes.GET("/:id", everyone, h.Disputes.Get)
	disputes.POST("/:id/evidence", parties, h.Disputes.Evidence)
	disputes.POST("/:id/resolve", adminOnly, h.Disputes.Resolve)

	admin := secured.Group("/admin", adminOnly)
	admin.POST("/auto-approvals/sweep", h.Admin.Sweep)
	admin.POST("/payouts/run", h.Admin.RunPayouts)
}
