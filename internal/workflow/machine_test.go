package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autohive/workshop-service/internal/model"
)

const (
	testJobID      = uint64(10)
	testWorkshopID = uint64(1)
	testActorID    = uint64(7)
)

// testJob returns a job with every field populated far enough to pass the
// requirement checks up to the given status.
func testJob(status model.JobStatus) *model.JobCard {
	return &model.JobCard{
		ID:                 testJobID,
		WorkshopID:         testWorkshopID,
		RegistrationNumber: "KA01AB1234",
		Status:             status,
		Priority:           model.PriorityNormal,
		Symptoms:           []string{"engine noise"},
		Diagnosis:          json.RawMessage(`{"finding":"worn belt"}`),
		Estimate:           json.RawMessage(`{"total":4200}`),
	}
}

func TestAllowedTargets(t *testing.T) {
	assert.Equal(t, []model.JobStatus{model.StatusContextVerified}, AllowedTargets(model.StatusCreated))
	assert.ElementsMatch(t,
		[]model.JobStatus{model.StatusInProgress, model.StatusConcernRaised},
		AllowedTargets(model.StatusCustomerApproval))
	assert.Empty(t, AllowedTargets(model.StatusClosed))
	assert.Empty(t, AllowedTargets(model.StatusCancelled))
}

func TestTransitionRejectsTargetNotInTable(t *testing.T) {
	store := newMemStore(testJob(model.StatusCreated))
	m := NewMachine(store)

	_, _, err := m.Transition(context.Background(), testJobID, testWorkshopID, model.StatusInProgress, testActorID, nil)

	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, model.StatusCreated, invalid.Current)
	assert.Equal(t, model.StatusInProgress, invalid.Requested)
	assert.Equal(t, []model.JobStatus{model.StatusContextVerified}, invalid.Allowed)

	// Nothing changed, nothing recorded.
	assert.Equal(t, model.StatusCreated, store.job(testJobID).Status)
	assert.Empty(t, store.historyFor(testJobID))
}

func TestTransitionRejectsAnythingFromTerminal(t *testing.T) {
	for _, terminal := range []model.JobStatus{model.StatusClosed, model.StatusCancelled} {
		store := newMemStore(testJob(terminal))
		m := NewMachine(store)

		_, _, err := m.Transition(context.Background(), testJobID, testWorkshopID, model.StatusCreated, testActorID, nil)

		var invalid *InvalidTransitionError
		require.ErrorAs(t, err, &invalid, "from %s", terminal)
		assert.Empty(t, invalid.Allowed)
	}
}

func TestTransitionFullLifecycle(t *testing.T) {
	store := newMemStore(testJob(model.StatusCreated))
	m := NewMachine(store)
	ctx := context.Background()

	path := []model.JobStatus{
		model.StatusContextVerified,
		model.StatusDiagnosed,
		model.StatusEstimated,
		model.StatusCustomerApproval,
		model.StatusInProgress,
		model.StatusPDI,
		model.StatusInvoiced,
		model.StatusClosed,
	}
	for _, target := range path {
		job, allowed, err := m.Transition(ctx, testJobID, testWorkshopID, target, testActorID, nil)
		require.NoError(t, err, "to %s", target)
		assert.Equal(t, target, job.Status)
		assert.Equal(t, AllowedTargets(target), allowed)
	}

	final := store.job(testJobID)
	assert.True(t, final.Status.Terminal())
	require.NotNil(t, final.SentForApprovalAt)
	require.NotNil(t, final.StartedAt)
	require.NotNil(t, final.ClosedAt)

	// Replaying the ledger reconstructs the exact walk: each entry chains
	// onto the previous one and the last lands on the current status.
	entries := store.historyFor(testJobID)
	require.Len(t, entries, len(path))
	cursor := model.StatusCreated
	for i, e := range entries {
		assert.Equal(t, cursor, e.PreviousStatus, "entry %d", i)
		assert.Equal(t, path[i], e.NewStatus, "entry %d", i)
		cursor = e.NewStatus
	}
	assert.Equal(t, final.Status, cursor)
}

func TestTransitionCollectsRequirementFailures(t *testing.T) {
	job := testJob(model.StatusContextVerified)
	job.Symptoms = nil
	store := newMemStore(job)
	m := NewMachine(store)
	ctx := context.Background()

	_, _, err := m.Transition(ctx, testJobID, testWorkshopID, model.StatusDiagnosed, testActorID, nil)

	var unmet *RequirementsNotMetError
	require.ErrorAs(t, err, &unmet)
	require.Len(t, unmet.Failures, 1)
	assert.Equal(t, "symptoms", unmet.Failures[0].Field)
	assert.Equal(t, model.StatusContextVerified, store.job(testJobID).Status)

	// Recording a symptom unblocks the same transition.
	store.mu.Lock()
	store.jobs[testJobID].Symptoms = []string{"rattle at idle"}
	store.mu.Unlock()

	job2, _, err := m.Transition(ctx, testJobID, testWorkshopID, model.StatusDiagnosed, testActorID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDiagnosed, job2.Status)
}

func TestTransitionEstimateNeedsDiagnosis(t *testing.T) {
	job := testJob(model.StatusDiagnosed)
	job.Diagnosis = nil
	store := newMemStore(job)
	m := NewMachine(store)

	_, _, err := m.Transition(context.Background(), testJobID, testWorkshopID, model.StatusEstimated, testActorID, nil)

	var unmet *RequirementsNotMetError
	require.ErrorAs(t, err, &unmet)
	require.Len(t, unmet.Failures, 1)
	assert.Equal(t, "diagnosis", unmet.Failures[0].Field)
}

func TestTransitionForeignWorkshopIsNotFound(t *testing.T) {
	store := newMemStore(testJob(model.StatusCreated))
	m := NewMachine(store)

	_, _, err := m.Transition(context.Background(), testJobID, testWorkshopID+1, model.StatusContextVerified, testActorID, nil)
	require.ErrorIs(t, err, sql.ErrNoRows)

	_, _, err = m.ValidTransitions(context.Background(), testJobID, testWorkshopID+1)
	require.ErrorIs(t, err, sql.ErrNoRows)

	assert.Equal(t, model.StatusCreated, store.job(testJobID).Status)
}

func TestTransitionRetriesLostRace(t *testing.T) {
	store := newMemStore(testJob(model.StatusCreated))
	store.staleNext = 1
	m := NewMachine(store)

	job, _, err := m.Transition(context.Background(), testJobID, testWorkshopID, model.StatusContextVerified, testActorID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusContextVerified, job.Status)
	assert.Len(t, store.historyFor(testJobID), 1)
}

func TestTransitionConflictAfterRetriesExhausted(t *testing.T) {
	store := newMemStore(testJob(model.StatusCreated))
	store.staleNext = maxAttempts + 1
	m := NewMachine(store)

	_, _, err := m.Transition(context.Background(), testJobID, testWorkshopID, model.StatusContextVerified, testActorID, nil)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, model.StatusCreated, store.job(testJobID).Status)
	assert.Empty(t, store.historyFor(testJobID))
}

// Two staff members race on the CUSTOMER_APPROVAL branch point. The winner
// commits IN_PROGRESS; the loser's CAS misses, re-reads, and finds its
// target no longer reachable.
func TestTransitionRaceAtBranchPoint(t *testing.T) {
	store := newMemStore(testJob(model.StatusCustomerApproval))
	m := NewMachine(store)
	ctx := context.Background()

	store.beforeApply = func(s *memStore) {
		winner := NewMachine(s)
		_, _, err := winner.Transition(ctx, testJobID, testWorkshopID, model.StatusInProgress, testActorID+1, nil)
		require.NoError(t, err)
	}

	_, _, err := m.Transition(ctx, testJobID, testWorkshopID, model.StatusConcernRaised, testActorID, nil)

	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, model.StatusInProgress, invalid.Current)

	// Exactly one transition happened and the ledger agrees with it.
	entries := store.historyFor(testJobID)
	require.Len(t, entries, 1)
	assert.Equal(t, model.StatusInProgress, entries[0].NewStatus)
	assert.Equal(t, model.StatusInProgress, store.job(testJobID).Status)
}

func TestValidTransitionsReadsOnly(t *testing.T) {
	store := newMemStore(testJob(model.StatusConcernRaised))
	m := NewMachine(store)

	current, allowed, err := m.ValidTransitions(context.Background(), testJobID, testWorkshopID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConcernRaised, current)
	assert.ElementsMatch(t, []model.JobStatus{model.StatusEstimated, model.StatusCancelled}, allowed)
	assert.Empty(t, store.historyFor(testJobID))
}
