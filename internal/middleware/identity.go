package middleware

// identity.go defines helper functions shared across middleware files.
// They pull the identity values that JWTAuth stored in the Echo context
// and render them as strings for cache and rate-limit key building. When
// no authenticated identity is present, stable placeholder values are
// returned so unauthenticated traffic still buckets consistently.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID renders the authenticated user id for key building, or
// "anon" when the request carries no staff session.
func currentUserID(c echo.Context) string {
	if v, ok := c.Get("user_id").(uint64); ok && v > 0 {
		return strconv.FormatUint(v, 10)
	}
	if s, ok := c.Get("user_id").(string); ok && s != "" {
		return s
	}
	return "anon"
}

// currentWorkshopID renders the tenant id for key building, or "public"
// for routes outside the staff session (health, customer approvals).
// Including it in cache keys keeps one workshop's cached listings
// invisible to every other workshop.
func currentWorkshopID(c echo.Context) string {
	if v, ok := c.Get("workshop_id").(uint64); ok && v > 0 {
		return strconv.FormatUint(v, 10)
	}
	return "public"
}
