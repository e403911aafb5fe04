package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/autohive/workshop-service/internal/model"
	"github.com/autohive/workshop-service/internal/repository"
)

// JobHandler serves job card CRUD within the caller's workshop.
type JobHandler struct {
	DB    *sql.DB
	Jobs  *repository.JobRepo
	Audit *repository.AuditRepo
}

func NewJobHandler(db *sql.DB, jobs *repository.JobRepo, audit *repository.AuditRepo) *JobHandler {
	return &JobHandler{DB: db, Jobs: jobs, Audit: audit}
}

type createJobReq struct {
	RegistrationNumber string   `json:"registration_number"`
	VehicleID          *uint64  `json:"vehicle_id"`
	Symptoms           []string `json:"symptoms"`
	Priority           string   `json:"priority"`
	CustomerPhone      *string  `json:"customer_phone"`
	CustomerEmail      *string  `json:"customer_email"`
}

type patchJobReq struct {
	Symptoms      *[]string        `json:"symptoms"`
	Diagnosis     *json.RawMessage `json:"diagnosis"`
	Estimate      *json.RawMessage `json:"estimate"`
	CustomerPhone *string          `json:"customer_phone"`
	CustomerEmail *string          `json:"customer_email"`
	TechnicianID  *uint64          `json:"technician_id"`
	Priority      *string          `json:"priority"`
	VehicleID     *uint64          `json:"vehicle_id"`
	Notes         *string          `json:"notes"`
}

// Create handles POST /v1/jobs. Every job starts in CREATED; the insert and
// its audit row commit together.
func (h *JobHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	wsID, err := getWorkshopID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req createJobReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	reg := strings.ToUpper(strings.TrimSpace(req.RegistrationNumber))
	if reg == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "registration_number is required"})
	}
	priority := model.PriorityNormal
	if strings.TrimSpace(req.Priority) != "" {
		priority, err = model.ParsePriority(req.Priority)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid priority"})
		}
	}

	job := &model.JobCard{
		WorkshopID:         wsID,
		RegistrationNumber: reg,
		VehicleID:          req.VehicleID,
		Status:             model.StatusCreated,
		Priority:           priority,
		Symptoms:           req.Symptoms,
		CustomerPhone:      req.CustomerPhone,
		CustomerEmail:      req.CustomerEmail,
		UpdatedBy:          &uid,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin failed"})
	}
	defer tx.Rollback()

	if err := h.Jobs.CreateTx(ctx, tx, job); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create job failed"})
	}
	snapshot, _ := json.Marshal(echo.Map{"status": job.Status, "registration_number": job.RegistrationNumber})
	if err := h.Audit.InsertTx(ctx, tx, &model.AuditEntry{
		WorkshopID: wsID,
		ActorID:    &uid,
		Action:     "job.created",
		EntityType: "job_card",
		EntityID:   job.ID,
		NewValues:  snapshot,
	}); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create job failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	return c.JSON(http.StatusCreated, job)
}

// Get handles GET /v1/jobs/:id. A job from another workshop is a plain 404,
// never a 403, so ids cannot be probed across tenants.
func (h *JobHandler) Get(c echo.Context) error {
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
	return c.JSON(http.StatusOK, job)
}

// List handles GET /v1/jobs with optional status, technician_id and priority
// filters plus limit/offset paging.
func (h *JobHandler) List(c echo.Context) error {
	wsID, err := getWorkshopID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var f model.JobFilter
	if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
		st, err := model.ParseJobStatus(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status filter"})
		}
		f.Status = &st
	}
	if raw := strings.TrimSpace(c.QueryParam("priority")); raw != "" {
		p, err := model.ParsePriority(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid priority filter"})
		}
		f.Priority = &p
	}
	if raw := strings.TrimSpace(c.QueryParam("technician_id")); raw != "" {
		tid, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid technician_id filter"})
		}
		f.TechnicianID = &tid
	}
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			f.Limit = n
		}
	}
	if raw := c.QueryParam("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			f.Offset = n
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	jobs, total, err := h.Jobs.List(ctx, wsID, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"jobs":   jobs,
		"total":  total,
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

// Patch handles PATCH /v1/jobs/:id. Only allow-listed fields are updatable;
// status never changes here, that is what transitions are for.
func (h *JobHandler) Patch(c echo.Context) error {
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

	var req patchJobReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	patch := model.JobPatch{
		Symptoms:      req.Symptoms,
		Diagnosis:     req.Diagnosis,
		Estimate:      req.Estimate,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		TechnicianID:  req.TechnicianID,
		VehicleID:     req.VehicleID,
		Notes:         req.Notes,
	}
	if req.Priority != nil {
		p, err := model.ParsePriority(*req.Priority)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid priority"})
		}
		patch.Priority = &p
	}
	if patch.Empty() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no updatable fields in body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin failed"})
	}
	defer tx.Rollback()

	job, err := h.Jobs.UpdateFieldsTx(ctx, tx, id, wsID, patch, uid)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "job not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	changed, _ := json.Marshal(&req)
	if err := h.Audit.InsertTx(ctx, tx, &model.AuditEntry{
		WorkshopID: wsID,
		ActorID:    &uid,
		Action:     "job.updated",
		EntityType: "job_card",
		EntityID:   job.ID,
		NewValues:  changed,
	}); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	return c.JSON(http.StatusOK, job)
}
