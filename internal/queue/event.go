// Package queue defines message payloads exchanged over the message broker.
package queue

// NotificationEvent is published whenever a job reaches a point the customer
// or staff should hear about: an approval link was issued, the customer
// responded, or the job reached a terminal state. It carries enough context
// for downstream consumers to notify or log without querying the primary
// database.
type NotificationEvent struct {
	Kind               string `json:"kind"` // approval.requested | approval.resolved | job.finalized
	JobID              uint64 `json:"job_id"`
	WorkshopID         uint64 `json:"workshop_id"`
	RegistrationNumber string `json:"registration_number"`
	Status             string `json:"status"`
	Detail             string `json:"detail,omitempty"`
	CustomerPhone      string `json:"customer_phone,omitempty"`
	CustomerEmail      string `json:"customer_email,omitempty"`
	OccurredAt         string `json:"occurred_at"`
}
