package model

import "time"

// HistoryEntry records a single status transition of a job card. Entries
// are append-only: they are written in the same transaction as the status
// change they describe and are never updated or deleted, so replaying a
// job's entries in order reconstructs its current status.
//
// ActorID is nil for customer actions performed through an approval token.
type HistoryEntry struct {
	ID             uint64    `json:"id"`
	JobID          uint64    `json:"job_id"`
	PreviousStatus JobStatus `json:"previous_status"`
	NewStatus      JobStatus `json:"new_status"`
	ActorID        *uint64   `json:"actor_id,omitempty"`
	Notes          *string   `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
