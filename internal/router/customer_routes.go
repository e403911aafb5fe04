package router

import (
	"github.com/labstack/echo/v4"

	"github.com/autohive/workshop-service/internal/handler"
)

// RegisterCustomer registers the public approval endpoints.  The customer
// reaches these through a link containing a single-use token; there is no
// account, no login and no JWT on this surface.  The token itself is the
// only credential, so no other job routes are exposed here.
func RegisterCustomer(e *echo.Echo, a *handler.ApprovalHandler, extra ...echo.MiddlewareFunc) {
	g := e.Group("/v1/approvals")
	for _, m := range extra {
		g.Use(m)
	}
	g.GET("/:token", a.Show)
	g.POST("/:token", a.Act)
}
