// Package workflow implements the job lifecycle state machine: the fixed
// transition table, per-target requirement checks, stage timestamps and
// the customer approval token flow. It is the only component that moves a
// job card between statuses; repositories refuse direct status writes by
// construction (there is no such method outside the workflow store).
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/autohive/workshop-service/internal/model"
	"github.com/autohive/workshop-service/internal/repository"
)

// Store is the persistence contract the state machine needs. The MySQL
// implementation is repository.WorkflowStore; tests use an in-memory
// fake with the same compare-and-swap semantics.
type Store interface {
	GetForWorkshop(ctx context.Context, jobID, workshopID uint64) (*model.JobCard, error)
	GetByApprovalToken(ctx context.Context, token string) (*model.JobCard, error)
	ApplyTransition(ctx context.Context, w repository.TransitionWrite) (*model.JobCard, error)
	BindApprovalToken(ctx context.Context, b repository.TokenBind) (*model.JobCard, error)
}

// transitionTable maps each status to the set of states it may move to.
// CLOSED and CANCELLED are terminal and deliberately absent.
var transitionTable = map[model.JobStatus][]model.JobStatus{
	model.StatusCreated:          {model.StatusContextVerified},
	model.StatusContextVerified:  {model.StatusDiagnosed},
	model.StatusDiagnosed:        {model.StatusEstimated},
	model.StatusEstimated:        {model.StatusCustomerApproval},
	model.StatusCustomerApproval: {model.StatusInProgress, model.StatusConcernRaised},
	model.StatusConcernRaised:    {model.StatusEstimated, model.StatusCancelled},
	model.StatusInProgress:       {model.StatusPDI},
	model.StatusPDI:              {model.StatusInvoiced},
	model.StatusInvoiced:         {model.StatusClosed},
}

// AllowedTargets returns the legal next states for a status. The result
// is a fresh slice; terminal states yield an empty one.
func AllowedTargets(s model.JobStatus) []model.JobStatus {
	targets := transitionTable[s]
	out := make([]model.JobStatus, len(targets))
	copy(out, targets)
	return out
}

// maxAttempts bounds the optimistic-concurrency retry loop. Each attempt
// re-reads the job and re-validates the transition from scratch.
const maxAttempts = 3

// Machine drives staff-initiated transitions. It holds no state of its
// own; everything is read from and written through the Store.
type Machine struct {
	store Store
}

// NewMachine returns a Machine over the given store.
func NewMachine(store Store) *Machine { return &Machine{store: store} }

// Transition moves a job to target on behalf of a staff actor. It loads
// the job scoped by workshop (a foreign or missing job is sql.ErrNoRows),
// validates the transition table and the target's requirements against
// that snapshot, and commits status + history + audit atomically with a
// compare-and-swap on the status. A CAS miss triggers a full re-read and
// re-validation; after maxAttempts the transient ErrConflict surfaces.
//
// On success the updated job and its new allowed-target set are returned.
func (m *Machine) Transition(ctx context.Context, jobID, workshopID uint64, target model.JobStatus, actorID uint64, notes *string) (*model.JobCard, []model.JobStatus, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		job, err := m.store.GetForWorkshop(ctx, jobID, workshopID)
		if err != nil {
			return nil, nil, err
		}
		w, err := buildWrite(job, target, &actorID, notes, "job.transition")
		if err != nil {
			return nil, nil, err
		}
		updated, err := m.store.ApplyTransition(ctx, w)
		if errors.Is(err, repository.ErrStaleStatus) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return updated, AllowedTargets(updated.Status), nil
	}
	return nil, nil, ErrConflict
}

// ValidTransitions reports a job's current status and allowed targets
// without changing anything.
func (m *Machine) ValidTransitions(ctx context.Context, jobID, workshopID uint64) (model.JobStatus, []model.JobStatus, error) {
	job, err := m.store.GetForWorkshop(ctx, jobID, workshopID)
	if err != nil {
		return "", nil, err
	}
	return job.Status, AllowedTargets(job.Status), nil
}

// buildWrite validates one transition attempt against the loaded snapshot
// and assembles the atomic write for it. Validation order matches the
// operation contract: transition table first, then requirement checks
// (all failures collected), then stage timestamps.
func buildWrite(job *model.JobCard, target model.JobStatus, actorID *uint64, notes *string, action string) (repository.TransitionWrite, error) {
	allowed := AllowedTargets(job.Status)
	if !containsStatus(allowed, target) {
		return repository.TransitionWrite{}, &InvalidTransitionError{
			Current:   job.Status,
			Requested: target,
			Allowed:   allowed,
		}
	}
	if failures := checkRequirements(job, target); len(failures) > 0 {
		return repository.TransitionWrite{}, &RequirementsNotMetError{Target: target, Failures: failures}
	}

	w := repository.TransitionWrite{
		JobID:      job.ID,
		WorkshopID: job.WorkshopID,
		FromStatus: job.Status,
		ToStatus:   target,
		ActorID:    actorID,
		Notes:      notes,
		Action:     action,
	}
	now := time.Now().UTC()
	switch target {
	case model.StatusCustomerApproval:
		w.SentForApprovalAt = &now
	case model.StatusInProgress:
		w.StartedAt = &now
	case model.StatusClosed:
		w.ClosedAt = &now
	}
	return w, nil
}

func containsStatus(set []model.JobStatus, s model.JobStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
