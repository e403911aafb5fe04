package repository

import (
	"context"
	"database/sql"

	"github.com/autohive/workshop-service/internal/model"
)

// HistoryRepo provides access to the job_history ledger. The table is
// append-only: rows are inserted in the same transaction as the status
// change they describe and there are no update or delete paths.
type HistoryRepo struct {
	db *sql.DB
}

// NewHistoryRepo returns a new HistoryRepo bound to the given database.
func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

// InsertTx appends one transition record within the provided transaction.
// ActorID is nil for customer actions performed via an approval token.
func (r *HistoryRepo) InsertTx(ctx context.Context, tx *sql.Tx, e *model.HistoryEntry) error {
	const q = `INSERT INTO job_history (job_id, previous_status, new_status, actor_id, notes)
               VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		e.JobID, string(e.PreviousStatus), string(e.NewStatus),
		nullUint64(e.ActorID), nullString(e.Notes))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// ListByJob returns a job's transition records in chronological order.
// Replaying the NewStatus column of the result reconstructs the job's
// current status.
func (r *HistoryRepo) ListByJob(ctx context.Context, jobID uint64) ([]model.HistoryEntry, error) {
	const q = `SELECT id, job_id, previous_status, new_status, actor_id, notes, created_at
               FROM job_history WHERE job_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]model.HistoryEntry, 0)
	for rows.Next() {
		var (
			e       model.HistoryEntry
			prev    string
			next    string
			actorID sql.NullInt64
			notes   sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.JobID, &prev, &next, &actorID, &notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.PreviousStatus, err = model.ParseJobStatus(prev); err != nil {
			return nil, err
		}
		if e.NewStatus, err = model.ParseJobStatus(next); err != nil {
			return nil, err
		}
		if actorID.Valid {
			a := uint64(actorID.Int64)
			e.ActorID = &a
		}
		if notes.Valid {
			e.Notes = &notes.String
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
