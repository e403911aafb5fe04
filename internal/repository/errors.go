// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and the workflow engine to distinguish between different
// failure scenarios. A missing row and a row owned by another workshop
// are both reported as sql.ErrNoRows so callers cannot learn whether a
// foreign tenant's record exists.
package repository

import "errors"

// ErrStaleStatus is returned by the compare-and-swap status update when
// the job's status no longer matches the value the caller read. The
// workflow engine reacts by re-reading the job and re-validating the
// transition; it is never surfaced to HTTP clients directly.
var ErrStaleStatus = errors.New("job status changed concurrently")

// ErrEmailExists is returned when registering a staff account with an
// email address that is already taken.
var ErrEmailExists = errors.New("email already exists")
