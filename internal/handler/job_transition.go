package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/autohive/workshop-service/internal/model"
	"github.com/autohive/workshop-service/internal/queue"
	"github.com/autohive/workshop-service/internal/repository"
	queue_publisher "github.com/autohive/workshop-service/internal/service"
	"github.com/autohive/workshop-service/internal/workflow"
)

// WorkflowHandler exposes the lifecycle engine over HTTP: status moves,
// the list of currently legal moves, and the transition history.
type WorkflowHandler struct {
	Machine *workflow.Machine
	Jobs    *repository.JobRepo
	History *repository.HistoryRepo
}

func NewWorkflowHandler(m *workflow.Machine, jobs *repository.JobRepo, history *repository.HistoryRepo) *WorkflowHandler {
	return &WorkflowHandler{Machine: m, Jobs: jobs, History: history}
}

type transitionReq struct {
	TargetStatus string  `json:"target_status"`
	Notes        *string `json:"notes"`
}

// Transition handles POST /v1/jobs/:id/transition. The status move, its
// history row and its audit row commit as one unit; a lost update race is
// retried inside the machine before surfacing as a 409.
func (h *WorkflowHandler) Transition(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	wsID, err := getWorkshopID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	var req transitionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	target, err := model.ParseJobStatus(strings.TrimSpace(req.TargetStatus))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid target_status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	job, allowed, err := h.Machine.Transition(ctx, id, wsID, target, uid, req.Notes)
	if err != nil {
		return writeWorkflowError(c, err)
	}

	if job.Status.Terminal() {
		ev := queue.NotificationEvent{
			Kind:               "job.finalized",
			JobID:              job.ID,
			WorkshopID:         job.WorkshopID,
			RegistrationNumber: job.RegistrationNumber,
			Status:             string(job.Status),
			OccurredAt:         time.Now().UTC().Format(time.RFC3339),
		}
		if job.CustomerPhone != nil {
			ev.CustomerPhone = *job.CustomerPhone
		}
		if job.CustomerEmail != nil {
			ev.CustomerEmail = *job.CustomerEmail
		}
		// Notification delivery must never fail the transition itself.
		_ = queue_publisher.PublishNotification(ctx, ev)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"job":             job,
		"allowed_targets": allowed,
	})
}

// ValidTransitions handles GET /v1/jobs/:id/transitions and returns the
// moves legal from the job's current status.
func (h *WorkflowHandler) ValidTransitions(c echo.Context) error {
	wsID, err := getWorkshopID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	current, allowed, err := h.Machine.ValidTransitions(ctx, id, wsID)
	if err != nil {
		return writeWorkflowError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"current_status":  current,
		"allowed_targets": allowed,
	})
}

// StateHistory handles GET /v1/jobs/:id/history. The tenant check runs
// first so foreign job ids 404 before any history rows are read.
func (h *WorkflowHandler) StateHistory(c echo.Context) error {
	wsID, err := getWorkshopID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	job, err := h.Jobs.GetForWorkshop(ctx, id, wsID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "job not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	entries, err := h.History.ListByJob(ctx, job.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"job_id":         job.ID,
		"current_status": job.Status,
		"history":        entries,
	})
}
