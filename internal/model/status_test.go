package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobStatus(t *testing.T) {
	all := []JobStatus{
		StatusCreated, StatusContextVerified, StatusDiagnosed, StatusEstimated,
		StatusCustomerApproval, StatusInProgress, StatusPDI, StatusInvoiced,
		StatusClosed, StatusConcernRaised, StatusCancelled,
	}
	for _, s := range all {
		got, err := ParseJobStatus(string(s))
		require.NoError(t, err, s)
		assert.Equal(t, s, got)
	}

	for _, bad := range []string{"", "created", "DONE", "CLOSED "} {
		_, err := ParseJobStatus(bad)
		require.Error(t, err, "%q should not parse", bad)
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, StatusClosed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	for _, s := range []JobStatus{
		StatusCreated, StatusContextVerified, StatusDiagnosed, StatusEstimated,
		StatusCustomerApproval, StatusInProgress, StatusPDI, StatusInvoiced,
		StatusConcernRaised,
	} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestParsePriority(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical} {
		got, err := ParsePriority(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParsePriority("URGENT")
	require.Error(t, err)
}

func TestJobPatchEmpty(t *testing.T) {
	assert.True(t, JobPatch{}.Empty())

	phone := "+4917012345"
	assert.False(t, JobPatch{CustomerPhone: &phone}.Empty())

	p := PriorityHigh
	assert.False(t, JobPatch{Priority: &p}.Empty())

	n := "customer called, parts on order"
	assert.False(t, JobPatch{Notes: &n}.Empty())
}

func TestWorkshopStatsAdd(t *testing.T) {
	stats := NewWorkshopStats()
	stats.Add(StatusClosed, 3)
	stats.Add(StatusInProgress, 2)
	stats.Add(StatusCancelled, 1)

	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 2, stats.Active, "terminal jobs never count as active")
	assert.Equal(t, map[JobStatus]int{
		StatusClosed:     3,
		StatusInProgress: 2,
		StatusCancelled:  1,
	}, stats.ByStatus)

	// Folding in more of an already-seen status accumulates.
	stats.Add(StatusInProgress, 1)
	assert.Equal(t, 7, stats.Total)
	assert.Equal(t, 3, stats.Active)
	assert.Equal(t, 3, stats.ByStatus[StatusInProgress])
}
