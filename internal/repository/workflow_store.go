package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/autohive/workshop-service/internal/model"
)

// TransitionWrite describes the single atomic unit a status transition
// commits: the compare-and-swap status update (with optional stage
// timestamps), one job_history row and one audit_log row. The workflow
// engine builds one of these per attempt after validating the transition
// against a freshly loaded snapshot.
type TransitionWrite struct {
	JobID      uint64
	WorkshopID uint64
	FromStatus model.JobStatus // CAS condition: the status read in this attempt
	ToStatus   model.JobStatus
	ActorID    *uint64 // nil for token-authenticated customer actions
	Notes      *string
	Action     string // audit action name, e.g. "job.transition"

	// Stage timestamps, set only when entering the matching state and
	// never cleared afterwards.
	SentForApprovalAt  *time.Time
	CustomerApprovedAt *time.Time
	StartedAt          *time.Time
	ClosedAt           *time.Time

	// ClearApprovalToken invalidates the job's approval token in the same
	// transaction (single-use tokens).
	ClearApprovalToken bool
}

// TokenBind describes binding a fresh approval token to a job. Any prior
// token for the job is overwritten, so at most one token is live per job.
type TokenBind struct {
	JobID      uint64
	WorkshopID uint64
	Token      string
	ExpiresAt  time.Time
	ActorID    uint64
}

// WorkflowStore bundles the job, history and audit tables behind the
// atomic operations the workflow engine needs. It is the only place that
// writes job_cards.status.
type WorkflowStore struct {
	db      *sql.DB
	jobs    *JobRepo
	history *HistoryRepo
	audit   *AuditRepo
}

// NewWorkflowStore constructs a WorkflowStore over the given repositories.
func NewWorkflowStore(db *sql.DB, jobs *JobRepo, history *HistoryRepo, audit *AuditRepo) *WorkflowStore {
	return &WorkflowStore{db: db, jobs: jobs, history: history, audit: audit}
}

// GetForWorkshop loads a job scoped to its workshop; see JobRepo.
func (s *WorkflowStore) GetForWorkshop(ctx context.Context, jobID, workshopID uint64) (*model.JobCard, error) {
	return s.jobs.GetForWorkshop(ctx, jobID, workshopID)
}

// GetByApprovalToken loads the job an approval token is bound to; see JobRepo.
func (s *WorkflowStore) GetByApprovalToken(ctx context.Context, token string) (*model.JobCard, error) {
	return s.jobs.GetByApprovalToken(ctx, token)
}

// ApplyTransition commits a validated transition as one transaction. The
// status UPDATE is conditioned on the status still being w.FromStatus;
// when another writer got there first, no row matches, nothing is written
// and ErrStaleStatus is returned so the engine can re-read and retry.
// On success the updated job is returned.
func (s *WorkflowStore) ApplyTransition(ctx context.Context, w TransitionWrite) (*model.JobCard, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	sets := []string{"status = ?", "status_notes = ?", "updated_by = ?"}
	args := []any{string(w.ToStatus), nullString(w.Notes), nullUint64(w.ActorID)}
	if w.SentForApprovalAt != nil {
		sets = append(sets, "sent_for_approval_at = ?")
		args = append(args, nullTime(w.SentForApprovalAt))
	}
	if w.CustomerApprovedAt != nil {
		sets = append(sets, "customer_approved_at = ?")
		args = append(args, nullTime(w.CustomerApprovedAt))
	}
	if w.StartedAt != nil {
		sets = append(sets, "started_at = ?")
		args = append(args, nullTime(w.StartedAt))
	}
	if w.ClosedAt != nil {
		sets = append(sets, "closed_at = ?")
		args = append(args, nullTime(w.ClosedAt))
	}
	if w.ClearApprovalToken {
		sets = append(sets, "approval_token = NULL", "approval_expires_at = NULL")
	}
	args = append(args, w.JobID, w.WorkshopID, string(w.FromStatus))

	q := `UPDATE job_cards SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND workshop_id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrStaleStatus
	}

	if err := s.history.InsertTx(ctx, tx, &model.HistoryEntry{
		JobID:          w.JobID,
		PreviousStatus: w.FromStatus,
		NewStatus:      w.ToStatus,
		ActorID:        w.ActorID,
		Notes:          w.Notes,
	}); err != nil {
		return nil, err
	}

	oldValues, _ := json.Marshal(map[string]any{"status": w.FromStatus})
	newValues, _ := json.Marshal(map[string]any{"status": w.ToStatus})
	if err := s.audit.InsertTx(ctx, tx, &model.AuditEntry{
		WorkshopID: w.WorkshopID,
		ActorID:    w.ActorID,
		Action:     w.Action,
		EntityType: "job_card",
		EntityID:   w.JobID,
		OldValues:  oldValues,
		NewValues:  newValues,
	}); err != nil {
		return nil, err
	}

	job, err := s.jobs.getTx(ctx, tx, w.JobID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return job, nil
}

// BindApprovalToken stores a fresh token and expiry on the job and audits
// the issuance in the same transaction. The UPDATE is workshop-scoped so
// a foreign job reports sql.ErrNoRows.
func (s *WorkflowStore) BindApprovalToken(ctx context.Context, b TokenBind) (*model.JobCard, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `UPDATE job_cards SET approval_token = ?, approval_expires_at = ?, updated_by = ?
               WHERE id = ? AND workshop_id = ?`
	res, err := tx.ExecContext(ctx, q, b.Token, b.ExpiresAt.UTC(), b.ActorID, b.JobID, b.WorkshopID)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, sql.ErrNoRows
	}

	newValues, _ := json.Marshal(map[string]any{"approval_expires_at": b.ExpiresAt.UTC()})
	actor := b.ActorID
	if err := s.audit.InsertTx(ctx, tx, &model.AuditEntry{
		WorkshopID: b.WorkshopID,
		ActorID:    &actor,
		Action:     "job.approval_token_issued",
		EntityType: "job_card",
		EntityID:   b.JobID,
		NewValues:  newValues,
	}); err != nil {
		return nil, err
	}

	job, err := s.jobs.getTx(ctx, tx, b.JobID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return job, nil
}
