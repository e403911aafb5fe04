package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/autohive/workshop-service/internal/repository"
)

// StatsHandler serves workshop-level aggregates and the audit trail.
type StatsHandler struct {
	Jobs  *repository.JobRepo
	Audit *repository.AuditRepo
}

func NewStatsHandler(jobs *repository.JobRepo, audit *repository.AuditRepo) *StatsHandler {
	return &StatsHandler{Jobs: jobs, Audit: audit}
}

// Stats handles GET /v1/stats: per-status counts, total, and the number of
// jobs still in flight (neither CLOSED nor CANCELLED).
func (h *StatsHandler) Stats(c echo.Context) error {
	wsID, err := getWorkshopID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	stats, err := h.Jobs.StatsByWorkshop(ctx, wsID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, stats)
}

// AuditTrail handles GET /v1/audit (MANAGER only), newest first.
func (h *StatsHandler) AuditTrail(c echo.Context) error {
	wsID, err := getWorkshopID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	limit := 0
	offset := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	if raw := c.QueryParam("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	entries, err := h.Audit.ListByWorkshop(ctx, wsID, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": entries})
}
