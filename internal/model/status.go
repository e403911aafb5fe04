package model // package model defines the persistent entities of the workshop service

import "fmt"

// JobStatus is the closed set of workflow states a job card moves through.
// Values are stored as strings in the job_cards.status column and are
// validated with ParseJobStatus whenever a raw string enters the system,
// so an unknown status is rejected at the storage boundary instead of
// surfacing later inside the workflow engine.
type JobStatus string

const (
	StatusCreated          JobStatus = "CREATED"
	StatusContextVerified  JobStatus = "CONTEXT_VERIFIED"
	StatusDiagnosed        JobStatus = "DIAGNOSED"
	StatusEstimated        JobStatus = "ESTIMATED"
	StatusCustomerApproval JobStatus = "CUSTOMER_APPROVAL"
	StatusInProgress       JobStatus = "IN_PROGRESS"
	StatusPDI              JobStatus = "PDI"
	StatusInvoiced         JobStatus = "INVOICED"
	StatusClosed           JobStatus = "CLOSED"
	StatusConcernRaised    JobStatus = "CONCERN_RAISED"
	StatusCancelled        JobStatus = "CANCELLED"
)

// jobStatuses is the authoritative membership set used by ParseJobStatus.
var jobStatuses = map[JobStatus]struct{}{
	StatusCreated:          {},
	StatusContextVerified:  {},
	StatusDiagnosed:        {},
	StatusEstimated:        {},
	StatusCustomerApproval: {},
	StatusInProgress:       {},
	StatusPDI:              {},
	StatusInvoiced:         {},
	StatusClosed:           {},
	StatusCancelled:        {},
	StatusConcernRaised:    {},
}

// ParseJobStatus converts a raw string (request body or database column)
// into a JobStatus. Unknown values return an error so callers never carry
// an out-of-set status into business logic.
func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(s)
	if _, ok := jobStatuses[st]; !ok {
		return "", fmt.Errorf("unknown job status %q", s)
	}
	return st, nil
}

// Terminal reports whether the status has no outgoing transitions.
// CLOSED and CANCELLED jobs are retained for audit and never move again.
func (s JobStatus) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// Priority expresses how urgently a job should be worked.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityNormal   Priority = "NORMAL"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

var priorities = map[Priority]struct{}{
	PriorityLow:      {},
	PriorityNormal:   {},
	PriorityHigh:     {},
	PriorityCritical: {},
}

// ParsePriority validates a raw priority string the same way
// ParseJobStatus validates statuses.
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if _, ok := priorities[p]; !ok {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}
