package workflow

import (
	"strings"

	"github.com/autohive/workshop-service/internal/model"
)

// checkRequirements evaluates the target state's field-level
// prerequisites against the job snapshot the transition was validated
// with. All failures are collected so the caller learns every unmet
// requirement in one pass.
//
// The IN_PROGRESS and PDI checks restate the expected source status on
// purpose: table check and requirement check run against the same loaded
// snapshot, and the commit itself is CAS-guarded, so a status change
// between the two can never slip a transition through.
func checkRequirements(job *model.JobCard, target model.JobStatus) []RequirementFailure {
	var failures []RequirementFailure
	switch target {
	case model.StatusContextVerified:
		if strings.TrimSpace(job.RegistrationNumber) == "" {
			failures = append(failures, RequirementFailure{
				Field:   "registration_number",
				Message: "vehicle registration number is required before context verification",
			})
		}
	case model.StatusDiagnosed:
		if len(job.Symptoms) == 0 {
			failures = append(failures, RequirementFailure{
				Field:   "symptoms",
				Message: "at least one symptom must be recorded before diagnosis",
			})
		}
	case model.StatusEstimated:
		if len(job.Diagnosis) == 0 {
			failures = append(failures, RequirementFailure{
				Field:   "diagnosis",
				Message: "a diagnosis must be attached before estimation",
			})
		}
	case model.StatusInProgress:
		if job.Status != model.StatusCustomerApproval {
			failures = append(failures, RequirementFailure{
				Field:   "status",
				Message: "work can only start from CUSTOMER_APPROVAL",
			})
		}
	case model.StatusPDI:
		if job.Status != model.StatusInProgress {
			failures = append(failures, RequirementFailure{
				Field:   "status",
				Message: "pre-delivery inspection can only start from IN_PROGRESS",
			})
		}
	}
	// PDI -> INVOICED carries no checklist requirement here: inspection
	// completion is tracked by the checklist service and gated at the
	// orchestration layer.
	return failures
}
