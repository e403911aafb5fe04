package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/autohive/workshop-service/internal/handler"    // import the handlers that implement business logic
	"github.com/autohive/workshop-service/internal/middleware" // import middleware for JWT authentication and role enforcement
	"github.com/autohive/workshop-service/internal/model"      // staff role constants
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	// Operations that do not require an existing session: registering a new
	// workshop, logging in, and exchanging a refresh token.
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)

	// Protected session endpoints.  All handlers registered on this group
	// execute the JWTAuth middleware before being invoked.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleManager, model.RoleAdvisor, model.RoleTechnician))
	auth.GET("/me", a.Me)
	auth.POST("/auth/logout", a.Logout)
	// Only managers can add staff, and always to their own workshop.
	auth.POST("/staff", a.CreateStaff, middleware.RequireRole(model.RoleManager))
}
