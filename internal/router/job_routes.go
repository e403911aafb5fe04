package router

import (
	"github.com/labstack/echo/v4"

	"github.com/autohive/workshop-service/internal/handler"
	"github.com/autohive/workshop-service/internal/middleware"
	"github.com/autohive/workshop-service/internal/model"
)

// RegisterJobs registers the staff-facing job card endpoints under /v1.
// All routes require a valid JWT carrying a workshop claim; extra
// middleware (response cache, rate limiting) is applied after auth so
// cached entries are always keyed by an authenticated workshop.
func RegisterJobs(e *echo.Echo, jobs *handler.JobHandler, wf *handler.WorkflowHandler, stats *handler.StatsHandler, approvals *handler.ApprovalHandler, jwtSecret string, extra ...echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleManager, model.RoleAdvisor, model.RoleTechnician))
	for _, m := range extra {
		g.Use(m)
	}

	g.POST("/jobs", jobs.Create)
	g.GET("/jobs", jobs.List)
	g.GET("/jobs/:id", jobs.Get)
	g.PATCH("/jobs/:id", jobs.Patch)

	g.POST("/jobs/:id/transition", wf.Transition)
	g.GET("/jobs/:id/transitions", wf.ValidTransitions)
	g.GET("/jobs/:id/history", wf.StateHistory)

	// Sending an estimate out for approval is a front-desk action, so
	// technicians cannot issue links.
	g.POST("/jobs/:id/approval-token", approvals.IssueToken, middleware.RequireRole(model.RoleManager, model.RoleAdvisor))

	g.GET("/stats", stats.Stats)
	// The audit trail stays manager-only.
	g.GET("/audit", stats.AuditTrail, middleware.RequireRole(model.RoleManager))
}
