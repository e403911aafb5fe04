package model

import (
	"encoding/json"
	"time"
)

// AuditEntry is the broad, append-only record of every mutating action in
// a workshop: creates, field updates and workflow transitions alike. It is
// wider than the per-job history ledger, which only covers transitions.
// Old/NewValues carry small JSON snapshots of the fields that changed.
type AuditEntry struct {
	ID         uint64          `json:"id"`
	WorkshopID uint64          `json:"workshop_id"`
	ActorID    *uint64         `json:"actor_id,omitempty"` // nil for token-authenticated actions
	Action     string          `json:"action"`             // e.g. "job.create", "job.transition"
	EntityType string          `json:"entity_type"`        // e.g. "job_card"
	EntityID   uint64          `json:"entity_id"`
	OldValues  json.RawMessage `json:"old_values,omitempty"`
	NewValues  json.RawMessage `json:"new_values,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
