package workflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/autohive/workshop-service/internal/model"
	"github.com/autohive/workshop-service/internal/repository"
)

// CustomerAction is one of the three things a customer can do with an
// approval token.
type CustomerAction string

const (
	ActionApprove CustomerAction = "approve"
	ActionReject  CustomerAction = "reject"
	ActionConcern CustomerAction = "concern"
)

// ParseCustomerAction validates a raw action string from a request body.
func ParseCustomerAction(s string) (CustomerAction, error) {
	switch CustomerAction(s) {
	case ActionApprove, ActionReject, ActionConcern:
		return CustomerAction(s), nil
	}
	return "", fmt.Errorf("unknown customer action %q", s)
}

// ApprovalManager issues and consumes the opaque tokens that let a
// customer act on exactly one job without holding a staff session. A
// token bypasses workshop scoping (the token is the capability) but never
// the workflow rules: customer actions run through the same validation
// and atomic commit as staff transitions.
type ApprovalManager struct {
	store Store
}

// NewApprovalManager returns an ApprovalManager over the given store.
func NewApprovalManager(store Store) *ApprovalManager { return &ApprovalManager{store: store} }

// Issue generates an unguessable token, binds it to the job and audits
// the issuance. Issuing is staff-scoped, so the job is loaded through the
// workshop guard first. Any previously issued token for the job is
// overwritten; at most one token is live per job.
func (a *ApprovalManager) Issue(ctx context.Context, jobID, workshopID uint64, expiresAt time.Time, actorID uint64) (string, *model.JobCard, error) {
	if _, err := a.store.GetForWorkshop(ctx, jobID, workshopID); err != nil {
		return "", nil, err
	}
	token, err := randomToken(32)
	if err != nil {
		return "", nil, err
	}
	job, err := a.store.BindApprovalToken(ctx, repository.TokenBind{
		JobID:      jobID,
		WorkshopID: workshopID,
		Token:      token,
		ExpiresAt:  expiresAt.UTC(),
		ActorID:    actorID,
	})
	if err != nil {
		return "", nil, err
	}
	return token, job, nil
}

// Resolve returns the job a token is bound to. An unknown token is
// sql.ErrNoRows; a known token past its expiry is ErrTokenExpired. The
// expiry comparison treats "now equals expiry" as expired.
func (a *ApprovalManager) Resolve(ctx context.Context, token string) (*model.JobCard, error) {
	job, err := a.store.GetByApprovalToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if job.ApprovalExpiresAt == nil || !time.Now().UTC().Before(*job.ApprovalExpiresAt) {
		return nil, ErrTokenExpired
	}
	return job, nil
}

// Apply performs a customer action: approve starts the work, reject
// returns the job to intake, concern flags it for renegotiation. The
// action maps to a target state and runs through the same requirement
// checks and atomic commit as staff transitions, with a nil actor. A
// non-empty customerNote is recorded as the transition note in place of
// the canned one. Every successful action also invalidates the token in
// the same transaction, so a token is single-use.
func (a *ApprovalManager) Apply(ctx context.Context, token string, action CustomerAction, customerNote string) (*model.JobCard, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		job, err := a.Resolve(ctx, token)
		if err != nil {
			return nil, err
		}
		w, err := a.writeFor(job, action, customerNote)
		if err != nil {
			return nil, err
		}
		updated, err := a.store.ApplyTransition(ctx, w)
		if errors.Is(err, repository.ErrStaleStatus) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, ErrConflict
}

// writeFor builds the atomic write for a customer action against the
// loaded snapshot. Approve and concern are ordinary table transitions;
// reject moves the job back to CREATED, a lane that exists only on the
// token path and only from CUSTOMER_APPROVAL — staff cannot take it and
// ValidTransitions never advertises it.
func (a *ApprovalManager) writeFor(job *model.JobCard, action CustomerAction, customerNote string) (repository.TransitionWrite, error) {
	now := time.Now().UTC()
	var (
		w   repository.TransitionWrite
		err error
	)
	switch action {
	case ActionApprove:
		w, err = buildWrite(job, model.StatusInProgress, nil, noteFor(customerNote, "approved by customer"), "job.customer_action")
		if err != nil {
			return repository.TransitionWrite{}, err
		}
		w.CustomerApprovedAt = &now
	case ActionConcern:
		w, err = buildWrite(job, model.StatusConcernRaised, nil, noteFor(customerNote, "concern raised by customer"), "job.customer_action")
		if err != nil {
			return repository.TransitionWrite{}, err
		}
	case ActionReject:
		if job.Status != model.StatusCustomerApproval {
			return repository.TransitionWrite{}, &InvalidTransitionError{
				Current:   job.Status,
				Requested: model.StatusCreated,
				Allowed:   AllowedTargets(job.Status),
			}
		}
		w = repository.TransitionWrite{
			JobID:      job.ID,
			WorkshopID: job.WorkshopID,
			FromStatus: job.Status,
			ToStatus:   model.StatusCreated,
			Notes:      noteFor(customerNote, "rejected by customer"),
			Action:     "job.customer_action",
		}
	default:
		return repository.TransitionWrite{}, fmt.Errorf("unknown customer action %q", action)
	}
	w.ClearApprovalToken = true
	return w, nil
}

// randomToken generates a cryptographically secure random hex string of
// 2n characters for the approval_token column.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// noteFor prefers the customer's own words over the canned fallback.
func noteFor(customerNote, fallback string) *string {
	if customerNote != "" {
		return &customerNote
	}
	return &fallback
}
