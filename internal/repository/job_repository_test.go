package repository

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autohive/workshop-service/internal/model"
)

func TestPatchAssignmentsSkipsNilFields(t *testing.T) {
	sets, args, err := patchAssignments(model.JobPatch{})
	require.NoError(t, err)
	assert.Empty(t, sets)
	assert.Empty(t, args)
}

func TestPatchAssignmentsWritesOnlyProvidedFields(t *testing.T) {
	phone := "+4917012345"
	notes := "awaiting parts delivery"
	tech := uint64(12)
	patch := model.JobPatch{
		CustomerPhone: &phone,
		TechnicianID:  &tech,
		Notes:         &notes,
	}

	sets, args, err := patchAssignments(patch)
	require.NoError(t, err)
	assert.Equal(t, []string{"customer_phone = ?", "technician_id = ?", "status_notes = ?"}, sets)
	assert.Equal(t, []any{phone, tech, notes}, args)
}

func TestPatchAssignmentsMarshalsSymptoms(t *testing.T) {
	symptoms := []string{"grinding noise", "vibration at speed"}
	diag := json.RawMessage(`{"finding":"worn brake pads"}`)
	patch := model.JobPatch{Symptoms: &symptoms, Diagnosis: &diag}

	sets, args, err := patchAssignments(patch)
	require.NoError(t, err)
	require.Equal(t, []string{"symptoms = ?", "diagnosis = ?"}, sets)
	assert.JSONEq(t, `["grinding noise","vibration at speed"]`, args[0].(string))
	assert.JSONEq(t, `{"finding":"worn brake pads"}`, args[1].(string))
}

// Columns the workflow engine owns never appear in the patch SQL: the
// allow-list is closed by construction, there is simply no field that
// could produce a status or timestamp assignment.
func TestPatchAssignmentsNeverTouchStatus(t *testing.T) {
	symptoms := []string{"noise"}
	diag := json.RawMessage(`{}`)
	est := json.RawMessage(`{}`)
	phone, email, notes := "p", "e", "n"
	tech, veh := uint64(1), uint64(2)
	prio := model.PriorityHigh
	full := model.JobPatch{
		Symptoms:      &symptoms,
		Diagnosis:     &diag,
		Estimate:      &est,
		CustomerPhone: &phone,
		CustomerEmail: &email,
		TechnicianID:  &tech,
		Priority:      &prio,
		VehicleID:     &veh,
		Notes:         &notes,
	}

	sets, _, err := patchAssignments(full)
	require.NoError(t, err)
	require.Len(t, sets, 9)
	for _, clause := range sets {
		assert.NotContains(t, clause, "status =")
		assert.NotContains(t, clause, "approval_token")
		assert.NotContains(t, clause, "_at =")
	}
}
