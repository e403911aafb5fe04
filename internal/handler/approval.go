package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/autohive/workshop-service/internal/config"
	"github.com/autohive/workshop-service/internal/model"
	"github.com/autohive/workshop-service/internal/queue"
	queue_publisher "github.com/autohive/workshop-service/internal/service"
	"github.com/autohive/workshop-service/internal/workflow"
)

// ApprovalHandler covers both sides of the estimate approval flow: staff
// issuing a link for a job in CUSTOMER_APPROVAL, and the customer opening
// that link without any account or login.
type ApprovalHandler struct {
	Cfg       config.Config
	Approvals *workflow.ApprovalManager
}

func NewApprovalHandler(cfg config.Config, a *workflow.ApprovalManager) *ApprovalHandler {
	return &ApprovalHandler{Cfg: cfg, Approvals: a}
}

type customerActionReq struct {
	Action string `json:"action"` // approve | reject | concern
	Note   string `json:"note"`
}

// approvalView is what the customer sees behind the link: the job identified
// by their vehicle, the estimate, and how long the link stays valid. Internal
// ids and staff fields stay out of it.
type approvalView struct {
	RegistrationNumber string          `json:"registration_number"`
	Status             model.JobStatus `json:"status"`
	Symptoms           []string        `json:"symptoms,omitempty"`
	Estimate           any             `json:"estimate,omitempty"`
	ExpiresAt          *time.Time      `json:"expires_at,omitempty"`
}

func viewOf(job *model.JobCard) approvalView {
	v := approvalView{
		RegistrationNumber: job.RegistrationNumber,
		Status:             job.Status,
		Symptoms:           job.Symptoms,
		ExpiresAt:          job.ApprovalExpiresAt,
	}
	if len(job.Estimate) > 0 {
		v.Estimate = job.Estimate
	}
	return v
}

// IssueToken handles POST /v1/jobs/:id/approval-token (staff only). Issuing
// again before the customer responds replaces the previous link.
func (h *ApprovalHandler) IssueToken(c echo.Context) error {
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

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	expiresAt := time.Now().UTC().Add(time.Duration(h.Cfg.ApprovalTTLHours) * time.Hour)
	token, job, err := h.Approvals.Issue(ctx, id, wsID, expiresAt, uid)
	if err != nil {
		return writeWorkflowError(c, err)
	}

	ev := queue.NotificationEvent{
		Kind:               "approval.requested",
		JobID:              job.ID,
		WorkshopID:         job.WorkshopID,
		RegistrationNumber: job.RegistrationNumber,
		Status:             string(job.Status),
		Detail:             "approval link issued",
		OccurredAt:         time.Now().UTC().Format(time.RFC3339),
	}
	if job.CustomerPhone != nil {
		ev.CustomerPhone = *job.CustomerPhone
	}
	if job.CustomerEmail != nil {
		ev.CustomerEmail = *job.CustomerEmail
	}
	_ = queue_publisher.PublishNotification(ctx, ev)

	return c.JSON(http.StatusCreated, echo.Map{
		"token":      token,
		"expires_at": expiresAt,
	})
}

// Show handles GET /v1/approvals/:token, the public page behind the link
// sent to the customer.
func (h *ApprovalHandler) Show(c echo.Context) error {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "job not found"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	job, err := h.Approvals.Resolve(ctx, token)
	if err != nil {
		return writeWorkflowError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(job))
}

// Act handles POST /v1/approvals/:token. The token is consumed on any
// successful action, so a second click on the same link 404s.
func (h *ApprovalHandler) Act(c echo.Context) error {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "job not found"})
	}
	var req customerActionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	action, err := workflow.ParseCustomerAction(req.Action)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "action must be approve, reject or concern"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	job, err := h.Approvals.Apply(ctx, token, action, strings.TrimSpace(req.Note))
	if err != nil {
		return writeWorkflowError(c, err)
	}

	ev := queue.NotificationEvent{
		Kind:               "approval.resolved",
		JobID:              job.ID,
		WorkshopID:         job.WorkshopID,
		RegistrationNumber: job.RegistrationNumber,
		Status:             string(job.Status),
		Detail:             string(action),
		OccurredAt:         time.Now().UTC().Format(time.RFC3339),
	}
	_ = queue_publisher.PublishNotification(ctx, ev)

	return c.JSON(http.StatusOK, echo.Map{
		"job_id": job.ID,
		"status": job.Status,
	})
}
