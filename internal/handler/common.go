package handler // handler defines http handlers

import (
	"database/sql" // sentinel errors like sql.ErrNoRows
	"errors"       // sentinel values and errors.As matching
	"net/http"     // HTTP status codes
	"strconv"      // string-to-int conversion

	"github.com/labstack/echo/v4" // echo defines request context types

	"github.com/autohive/workshop-service/internal/repository" // DB repositories
	"github.com/autohive/workshop-service/internal/workflow"   // lifecycle engine errors
)

// getUserID extracts the user_id from echo.Context and converts it to uint64.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// getWorkshopID extracts the workshop_id placed in context by the JWT
// middleware. Every tenant-scoped query takes this value, never one from
// the request body or URL.
func getWorkshopID(c echo.Context) (uint64, error) {
	v := c.Get("workshop_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	}
	return 0, errors.New("invalid workshop_id in context")
}

// parseID parses the :id path parameter.
func parseID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

// writeWorkflowError maps lifecycle engine errors onto HTTP responses.
// Invalid transitions and lost CAS races are conflicts; unmet transition
// requirements come back as 422 with every failure listed so the client
// can fix them all in one pass.
func writeWorkflowError(c echo.Context, err error) error {
	var invalid *workflow.InvalidTransitionError
	if errors.As(err, &invalid) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":            "invalid transition",
			"current_status":   invalid.Current,
			"requested_status": invalid.Requested,
			"allowed_targets":  invalid.Allowed,
		})
	}
	var unmet *workflow.RequirementsNotMetError
	if errors.As(err, &unmet) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":    "transition requirements not met",
			"target":   unmet.Target,
			"failures": unmet.Failures,
		})
	}
	switch {
	case errors.Is(err, workflow.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "job was modified concurrently, retry"})
	case errors.Is(err, workflow.ErrTokenExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "approval link expired"})
	case errors.Is(err, repository.ErrStaleStatus):
		return c.JSON(http.StatusConflict, echo.Map{"error": "job was modified concurrently, retry"})
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "job not found"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "operation failed"})
}
