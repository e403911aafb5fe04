package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/autohive/workshop-service/internal/model"
)

// ErrTokenExpired is returned when an approval token resolves to a job
// but its expiry instant has passed. The job itself is left untouched.
var ErrTokenExpired = errors.New("approval token expired")

// ErrConflict is returned once the bounded optimistic-concurrency retries
// are exhausted. It is transient: the caller may retry the whole
// operation.
var ErrConflict = errors.New("job was modified concurrently, retry the operation")

// InvalidTransitionError reports a request for a target state that is not
// reachable from the job's current state. The triple of current state,
// requested state and allowed set is carried verbatim so clients can
// render the legal next moves without a second round-trip.
type InvalidTransitionError struct {
	Current   model.JobStatus   `json:"current_status"`
	Requested model.JobStatus   `json:"requested_status"`
	Allowed   []model.JobStatus `json:"allowed_targets"`
}

func (e *InvalidTransitionError) Error() string {
	targets := make([]string, len(e.Allowed))
	for i, t := range e.Allowed {
		targets[i] = string(t)
	}
	return fmt.Sprintf("cannot transition from %s to %s (allowed: %s)",
		e.Current, e.Requested, strings.Join(targets, ", "))
}

// RequirementFailure names one unmet field-level prerequisite.
type RequirementFailure struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RequirementsNotMetError reports that the target state is reachable per
// the transition table but the job's fields do not satisfy its
// prerequisites. Every failing requirement is collected, not just the
// first, so clients see the complete remaining work.
type RequirementsNotMetError struct {
	Target   model.JobStatus      `json:"target_status"`
	Failures []RequirementFailure `json:"requirements"`
}

func (e *RequirementsNotMetError) Error() string {
	fields := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		fields[i] = f.Field
	}
	return fmt.Sprintf("requirements not met for %s: %s", e.Target, strings.Join(fields, ", "))
}
