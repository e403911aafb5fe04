package workflow

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autohive/workshop-service/internal/model"
)

func issueFor(t *testing.T, store *memStore, ttl time.Duration) (string, *ApprovalManager) {
	t.Helper()
	mgr := NewApprovalManager(store)
	token, job, err := mgr.Issue(context.Background(), testJobID, testWorkshopID, time.Now().UTC().Add(ttl), testActorID)
	require.NoError(t, err)
	require.NotNil(t, job.ApprovalToken)
	return token, mgr
}

func TestIssueBindsUnguessableToken(t *testing.T) {
	store := newMemStore(testJob(model.StatusCustomerApproval))
	token, _ := issueFor(t, store, time.Hour)

	assert.Len(t, token, 64) // 32 random bytes, hex encoded
	stored := store.job(testJobID)
	require.NotNil(t, stored.ApprovalToken)
	assert.Equal(t, token, *stored.ApprovalToken)
	require.NotNil(t, stored.ApprovalExpiresAt)

	// Issuance leaves an audit trace.
	require.NotEmpty(t, store.audits)
	assert.Equal(t, "job.approval_token_issued", store.audits[len(store.audits)-1].Action)
}

func TestIssueForeignWorkshopIsNotFound(t *testing.T) {
	store := newMemStore(testJob(model.StatusCustomerApproval))
	mgr := NewApprovalManager(store)

	_, _, err := mgr.Issue(context.Background(), testJobID, testWorkshopID+1, time.Now().Add(time.Hour), testActorID)
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.Nil(t, store.job(testJobID).ApprovalToken)
}

func TestIssueReplacesPreviousToken(t *testing.T) {
	store := newMemStore(testJob(model.StatusCustomerApproval))
	first, mgr := issueFor(t, store, time.Hour)

	second, _, err := mgr.Issue(context.Background(), testJobID, testWorkshopID, time.Now().UTC().Add(time.Hour), testActorID)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// The old link is dead, the new one resolves.
	_, err = mgr.Resolve(context.Background(), first)
	require.ErrorIs(t, err, sql.ErrNoRows)
	job, err := mgr.Resolve(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, testJobID, job.ID)
}

func TestResolveUnknownToken(t *testing.T) {
	store := newMemStore(testJob(model.StatusCustomerApproval))
	mgr := NewApprovalManager(store)

	_, err := mgr.Resolve(context.Background(), "deadbeef")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestResolveExpiredToken(t *testing.T) {
	store := newMemStore(testJob(model.StatusCustomerApproval))
	token, mgr := issueFor(t, store, -time.Second)

	_, err := mgr.Resolve(context.Background(), token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestApplyApproveStartsWork(t *testing.T) {
	store := newMemStore(testJob(model.StatusCustomerApproval))
	token, mgr := issueFor(t, store, time.Hour)
	ctx := context.Background()

	job, err := mgr.Apply(ctx, token, ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, job.Status)
	require.NotNil(t, job.CustomerApprovedAt)
	require.NotNil(t, job.StartedAt)

	// Single use: the token died with the action.
	assert.Nil(t, store.job(testJobID).ApprovalToken)
	_, err = mgr.Apply(ctx, token, ActionApprove, "")
	require.ErrorIs(t, err, sql.ErrNoRows)

	// The customer action is in the ledger with no staff actor.
	entries := store.historyFor(testJobID)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].ActorID)
	assert.Equal(t, model.StatusCustomerApproval, entries[0].PreviousStatus)
	assert.Equal(t, model.StatusInProgress, entries[0].NewStatus)
}

func TestApplyRejectReturnsToIntake(t *testing.T) {
	store := newMemStore(testJob(model.StatusCustomerApproval))
	token, mgr := issueFor(t, store, time.Hour)

	job, err := mgr.Apply(context.Background(), token, ActionReject, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCreated, job.Status)
	assert.Nil(t, job.CustomerApprovedAt)
	assert.Nil(t, store.job(testJobID).ApprovalToken)
}

// The customer's own words end up in the transition notes; without them
// the canned text stands in.
func TestApplyCarriesCustomerNote(t *testing.T) {
	store := newMemStore(testJob(model.StatusCustomerApproval))
	token, mgr := issueFor(t, store, time.Hour)

	job, err := mgr.Apply(context.Background(), token, ActionConcern, "brake pads quote seems high")
	require.NoError(t, err)
	require.NotNil(t, job.StatusNotes)
	assert.Equal(t, "brake pads quote seems high", *job.StatusNotes)

	entries := store.historyFor(testJobID)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Notes)
	assert.Equal(t, "brake pads quote seems high", *entries[0].Notes)
}

func TestApplyDefaultNoteWhenCustomerSilent(t *testing.T) {
	store := newMemStore(testJob(model.StatusCustomerApproval))
	token, mgr := issueFor(t, store, time.Hour)

	job, err := mgr.Apply(context.Background(), token, ActionApprove, "")
	require.NoError(t, err)
	require.NotNil(t, job.StatusNotes)
	assert.Equal(t, "approved by customer", *job.StatusNotes)
}

func TestApplyConcernFlagsRenegotiation(t *testing.T) {
	store := newMemStore(testJob(model.StatusCustomerApproval))
	token, mgr := issueFor(t, store, time.Hour)

	job, err := mgr.Apply(context.Background(), token, ActionConcern, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConcernRaised, job.Status)
	assert.Nil(t, store.job(testJobID).ApprovalToken)
}

func TestApplyExpiredTokenLeavesJobUntouched(t *testing.T) {
	store := newMemStore(testJob(model.StatusCustomerApproval))
	token, mgr := issueFor(t, store, -time.Second)

	_, err := mgr.Apply(context.Background(), token, ActionApprove, "")
	require.ErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, model.StatusCustomerApproval, store.job(testJobID).Status)
	assert.Empty(t, store.historyFor(testJobID))
}

// A token cannot skip workflow rules: if the job already left
// CUSTOMER_APPROVAL through the staff path, the customer's click is an
// invalid transition like any other.
func TestApplyAfterStaffAlreadyMoved(t *testing.T) {
	store := newMemStore(testJob(model.StatusCustomerApproval))
	token, mgr := issueFor(t, store, time.Hour)

	machine := NewMachine(store)
	_, _, err := machine.Transition(context.Background(), testJobID, testWorkshopID, model.StatusInProgress, testActorID, nil)
	require.NoError(t, err)

	_, err = mgr.Apply(context.Background(), token, ActionApprove, "")
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, model.StatusInProgress, invalid.Current)

	_, err = mgr.Apply(context.Background(), token, ActionReject, "")
	require.ErrorAs(t, err, &invalid)
}

func TestParseCustomerAction(t *testing.T) {
	for _, valid := range []string{"approve", "reject", "concern"} {
		got, err := ParseCustomerAction(valid)
		require.NoError(t, err)
		assert.Equal(t, CustomerAction(valid), got)
	}
	_, err := ParseCustomerAction("APPROVE")
	require.Error(t, err)
	_, err = ParseCustomerAction("")
	require.Error(t, err)
}
