package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/autohive/workshop-service/internal/model"
)

// AuditRepo provides access to the audit_log table, the broad append-only
// record of every mutating action in a workshop. Unlike job_history it is
// not limited to workflow transitions.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns a new AuditRepo bound to the given database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// InsertTx appends one audit record within the provided transaction so
// the entry commits or rolls back together with the mutation it records.
func (r *AuditRepo) InsertTx(ctx context.Context, tx *sql.Tx, e *model.AuditEntry) error {
	const q = `INSERT INTO audit_log
        (workshop_id, actor_id, action, entity_type, entity_id, old_values, new_values)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		e.WorkshopID, nullUint64(e.ActorID), e.Action, e.EntityType, e.EntityID,
		nullRaw(e.OldValues), nullRaw(e.NewValues))
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

// ListByWorkshop returns a workshop's audit trail, newest first.
func (r *AuditRepo) ListByWorkshop(ctx context.Context, workshopID uint64, limit, offset int) ([]model.AuditEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const q = `SELECT id, workshop_id, actor_id, action, entity_type, entity_id,
                      old_values, new_values, created_at
               FROM audit_log WHERE workshop_id = ?
               ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, workshopID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]model.AuditEntry, 0)
	for rows.Next() {
		var (
			e         model.AuditEntry
			actorID   sql.NullInt64
			oldValues sql.NullString
			newValues sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.WorkshopID, &actorID, &e.Action, &e.EntityType,
			&e.EntityID, &oldValues, &newValues, &e.CreatedAt); err != nil {
			return nil, err
		}
		if actorID.Valid {
			a := uint64(actorID.Int64)
			e.ActorID = &a
		}
		if oldValues.Valid {
			e.OldValues = json.RawMessage(oldValues.String)
		}
		if newValues.Valid {
			e.NewValues = json.RawMessage(newValues.String)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// nullRaw converts an optional JSON snapshot into a driver-friendly value.
func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}
