package model

import (
	"encoding/json"
	"time"
)

// JobCard is the central record tracking one vehicle's repair from intake
// to closure. Every status change goes through the workflow engine; the
// remaining fields are mutated only through the patch path (see JobPatch).
//
// Diagnosis and Estimate are opaque payloads produced by external
// collaborators (diagnostic tooling, estimation engine). The workflow only
// cares whether they are present, so they are kept as raw JSON.
type JobCard struct {
	ID                 uint64          `json:"id"`                   // job_cards.id
	WorkshopID         uint64          `json:"workshop_id"`          // job_cards.workshop_id (owning tenant)
	RegistrationNumber string          `json:"registration_number"`  // vehicle registration identifier
	VehicleID          *uint64         `json:"vehicle_id,omitempty"` // optional linked vehicle record
	Status             JobStatus       `json:"status"`
	Priority           Priority        `json:"priority"`
	Symptoms           []string        `json:"symptoms"`            // ordered free-text symptoms, stored as JSON
	Diagnosis          json.RawMessage `json:"diagnosis,omitempty"` // opaque payload, presence gates ESTIMATED
	Estimate           json.RawMessage `json:"estimate,omitempty"`  // opaque payload consumed by billing
	CustomerPhone      *string         `json:"customer_phone,omitempty"`
	CustomerEmail      *string         `json:"customer_email,omitempty"`
	TechnicianID       *uint64         `json:"technician_id,omitempty"`
	StatusNotes        *string         `json:"status_notes,omitempty"` // notes attached to the latest transition
	ApprovalToken      *string         `json:"-"`                      // never serialized back to staff clients
	ApprovalExpiresAt  *time.Time      `json:"approval_expires_at,omitempty"`
	SentForApprovalAt  *time.Time      `json:"sent_for_approval_at,omitempty"`
	CustomerApprovedAt *time.Time      `json:"customer_approved_at,omitempty"`
	StartedAt          *time.Time      `json:"started_at,omitempty"`
	ClosedAt           *time.Time      `json:"closed_at,omitempty"`
	UpdatedBy          *uint64         `json:"updated_by,omitempty"` // last actor; nil for customer actions
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// JobPatch lists exactly the fields staff may change outside the workflow
// engine. Each field is a pointer: nil means "leave unchanged". Fields not
// present here (status, stage timestamps, approval token) simply cannot be
// patched, which makes an illegal update a compile error rather than a
// silently dropped map key.
type JobPatch struct {
	Symptoms      *[]string        `json:"symptoms,omitempty"`
	Diagnosis     *json.RawMessage `json:"diagnosis,omitempty"`
	Estimate      *json.RawMessage `json:"estimate,omitempty"`
	CustomerPhone *string          `json:"customer_phone,omitempty"`
	CustomerEmail *string          `json:"customer_email,omitempty"`
	TechnicianID  *uint64          `json:"technician_id,omitempty"`
	Priority      *Priority        `json:"priority,omitempty"`
	VehicleID     *uint64          `json:"vehicle_id,omitempty"`
	Notes         *string          `json:"notes,omitempty"` // overwrites status_notes without a transition
}

// Empty reports whether the patch changes nothing.
func (p JobPatch) Empty() bool {
	return p.Symptoms == nil && p.Diagnosis == nil && p.Estimate == nil &&
		p.CustomerPhone == nil && p.CustomerEmail == nil &&
		p.TechnicianID == nil && p.Priority == nil && p.VehicleID == nil &&
		p.Notes == nil
}

// JobFilter narrows job listings. Zero values mean "no filter".
type JobFilter struct {
	Status       *JobStatus
	TechnicianID *uint64
	Priority     *Priority
	Limit        int
	Offset       int
}

// WorkshopStats aggregates a tenant's jobs by status. Active excludes the
// two terminal states.
type WorkshopStats struct {
	Total    int               `json:"total"`
	Active   int               `json:"active"`
	ByStatus map[JobStatus]int `json:"by_status"`
}

// NewWorkshopStats returns an empty aggregate ready for Add.
func NewWorkshopStats() *WorkshopStats {
	return &WorkshopStats{ByStatus: make(map[JobStatus]int)}
}

// Add folds n jobs in the given status into the aggregate, keeping the
// total and active counts consistent with the by-status breakdown.
func (s *WorkshopStats) Add(status JobStatus, n int) {
	s.ByStatus[status] += n
	s.Total += n
	if !status.Terminal() {
		s.Active += n
	}
}
