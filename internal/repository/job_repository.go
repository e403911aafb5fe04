package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/autohive/workshop-service/internal/model"
)

// JobRepo provides data access to the job_cards table. All reads that act
// on behalf of staff are scoped by workshop id inside the SQL itself, so a
// job belonging to another workshop is indistinguishable from a missing
// one (sql.ErrNoRows in both cases). Token lookups are deliberately
// unscoped: the token is the capability and names exactly one job.
//
// Status writes do not live here; they go through WorkflowStore so the
// status change, history entry and audit entry always commit as one unit.
type JobRepo struct {
	db *sql.DB
}

// NewJobRepo returns a new JobRepo bound to the given database.
func NewJobRepo(db *sql.DB) *JobRepo { return &JobRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span multiple repositories.
func (r *JobRepo) DB() *sql.DB { return r.db }

// jobColumns is the canonical column list shared by every SELECT in this
// file. Keeping one list means scanJob stays in sync with all queries.
const jobColumns = `id, workshop_id, registration_number, vehicle_id, status, priority,
       symptoms, diagnosis, estimate, customer_phone, customer_email, technician_id,
       status_notes, approval_token, approval_expires_at,
       sent_for_approval_at, customer_approved_at, started_at, closed_at,
       updated_by, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob reads one job_cards row into a model.JobCard, converting
// nullable columns and decoding the symptoms JSON. The status and
// priority strings are validated here so an out-of-set value in the
// database is rejected at the boundary instead of leaking upward.
func scanJob(row rowScanner) (*model.JobCard, error) {
	var (
		j             model.JobCard
		vehicleID     sql.NullInt64
		status        string
		priority      string
		symptomsRaw   sql.NullString
		diagnosisRaw  sql.NullString
		estimateRaw   sql.NullString
		customerPhone sql.NullString
		customerEmail sql.NullString
		technicianID  sql.NullInt64
		statusNotes   sql.NullString
		approvalToken sql.NullString
		approvalExp   sql.NullTime
		sentAt        sql.NullTime
		approvedAt    sql.NullTime
		startedAt     sql.NullTime
		closedAt      sql.NullTime
		updatedBy     sql.NullInt64
	)
	err := row.Scan(
		&j.ID, &j.WorkshopID, &j.RegistrationNumber, &vehicleID, &status, &priority,
		&symptomsRaw, &diagnosisRaw, &estimateRaw, &customerPhone, &customerEmail, &technicianID,
		&statusNotes, &approvalToken, &approvalExp,
		&sentAt, &approvedAt, &startedAt, &closedAt,
		&updatedBy, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if j.Status, err = model.ParseJobStatus(status); err != nil {
		return nil, err
	}
	if j.Priority, err = model.ParsePriority(priority); err != nil {
		return nil, err
	}
	j.Symptoms = []string{}
	if symptomsRaw.Valid && strings.TrimSpace(symptomsRaw.String) != "" {
		if err := json.Unmarshal([]byte(symptomsRaw.String), &j.Symptoms); err != nil {
			return nil, err
		}
	}
	if diagnosisRaw.Valid && diagnosisRaw.String != "" {
		j.Diagnosis = json.RawMessage(diagnosisRaw.String)
	}
	if estimateRaw.Valid && estimateRaw.String != "" {
		j.Estimate = json.RawMessage(estimateRaw.String)
	}
	if vehicleID.Valid {
		v := uint64(vehicleID.Int64)
		j.VehicleID = &v
	}
	if customerPhone.Valid {
		j.CustomerPhone = &customerPhone.String
	}
	if customerEmail.Valid {
		j.CustomerEmail = &customerEmail.String
	}
	if technicianID.Valid {
		t := uint64(technicianID.Int64)
		j.TechnicianID = &t
	}
	if statusNotes.Valid {
		j.StatusNotes = &statusNotes.String
	}
	if approvalToken.Valid {
		j.ApprovalToken = &approvalToken.String
	}
	if approvalExp.Valid {
		t := approvalExp.Time.UTC()
		j.ApprovalExpiresAt = &t
	}
	if sentAt.Valid {
		t := sentAt.Time.UTC()
		j.SentForApprovalAt = &t
	}
	if approvedAt.Valid {
		t := approvedAt.Time.UTC()
		j.CustomerApprovedAt = &t
	}
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		j.StartedAt = &t
	}
	if closedAt.Valid {
		t := closedAt.Time.UTC()
		j.ClosedAt = &t
	}
	if updatedBy.Valid {
		u := uint64(updatedBy.Int64)
		j.UpdatedBy = &u
	}
	return &j, nil
}

// CreateTx inserts a new job card within the scope of an existing
// transaction and populates the generated ID, status and timestamps on
// the provided record. New jobs always start in CREATED. The caller must
// commit or roll back the transaction (the audit entry for the creation
// is written by the caller in the same transaction).
func (r *JobRepo) CreateTx(ctx context.Context, tx *sql.Tx, job *model.JobCard) error {
	symptoms, err := json.Marshal(job.Symptoms)
	if err != nil {
		return err
	}
	if job.Priority == "" {
		job.Priority = model.PriorityNormal
	}
	const q = `INSERT INTO job_cards
        (workshop_id, registration_number, vehicle_id, status, priority, symptoms,
         customer_phone, customer_email, technician_id, updated_by)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		job.WorkshopID, job.RegistrationNumber, nullUint64(job.VehicleID),
		string(model.StatusCreated), string(job.Priority), string(symptoms),
		nullString(job.CustomerPhone), nullString(job.CustomerEmail),
		nullUint64(job.TechnicianID), nullUint64(job.UpdatedBy),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	// Query back the full row to populate defaults and timestamps.
	created, err := r.getTx(ctx, tx, uint64(id))
	if err != nil {
		return err
	}
	*job = *created
	return nil
}

// getTx loads a job by primary key inside a transaction, without tenant
// scoping. It is used internally after writes that already proved
// ownership via their WHERE clause.
func (r *JobRepo) getTx(ctx context.Context, tx *sql.Tx, jobID uint64) (*model.JobCard, error) {
	const q = `SELECT ` + jobColumns + ` FROM job_cards WHERE id = ?`
	return scanJob(tx.QueryRowContext(ctx, q, jobID))
}

// GetForWorkshop returns a single job scoped to the given workshop. When
// the job does not exist or belongs to a different workshop, the result
// is sql.ErrNoRows in both cases: the guard fails closed.
func (r *JobRepo) GetForWorkshop(ctx context.Context, jobID, workshopID uint64) (*model.JobCard, error) {
	const q = `SELECT ` + jobColumns + ` FROM job_cards WHERE id = ? AND workshop_id = ?`
	return scanJob(r.db.QueryRowContext(ctx, q, jobID, workshopID))
}

// GetByApprovalToken returns the single job the token is bound to,
// regardless of workshop. Expiry is not checked here; the approval
// manager owns that rule so expired and unknown tokens can be reported
// differently.
func (r *JobRepo) GetByApprovalToken(ctx context.Context, token string) (*model.JobCard, error) {
	const q = `SELECT ` + jobColumns + ` FROM job_cards WHERE approval_token = ? LIMIT 1`
	return scanJob(r.db.QueryRowContext(ctx, q, token))
}

// List returns jobs for a workshop matching the filter, newest first,
// along with the total match count before limit/offset are applied so
// clients can paginate.
func (r *JobRepo) List(ctx context.Context, workshopID uint64, f model.JobFilter) ([]model.JobCard, int, error) {
	where := []string{"workshop_id = ?"}
	args := []any{workshopID}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.TechnicianID != nil {
		where = append(where, "technician_id = ?")
		args = append(args, *f.TechnicianID)
	}
	if f.Priority != nil {
		where = append(where, "priority = ?")
		args = append(args, string(*f.Priority))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM job_cards WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	q := `SELECT ` + jobColumns + ` FROM job_cards WHERE ` + cond +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	jobs := make([]model.JobCard, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// UpdateFieldsTx applies a partial update to the allow-listed mutable
// fields of a job. Only non-nil patch fields are written; the UPDATE is
// scoped by workshop id, so a foreign job yields sql.ErrNoRows. The
// updated row is returned. Callers append the audit entry in the same
// transaction.
func (r *JobRepo) UpdateFieldsTx(ctx context.Context, tx *sql.Tx, jobID, workshopID uint64, patch model.JobPatch, actorID uint64) (*model.JobCard, error) {
	sets, args, err := patchAssignments(patch)
	if err != nil {
		return nil, err
	}
	sets = append(sets, "updated_by = ?")
	args = append(args, actorID)
	args = append(args, jobID, workshopID)

	q := `UPDATE job_cards SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND workshop_id = ?`
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Distinguish "no row" from "row unchanged": MySQL reports 0
		// affected rows when the new values equal the old ones, so
		// verify existence before reporting not found.
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM job_cards WHERE id = ? AND workshop_id = ?`,
			jobID, workshopID).Scan(&exists); err != nil {
			return nil, err // sql.ErrNoRows when missing or foreign
		}
	}
	return r.getTx(ctx, tx, jobID)
}

// patchAssignments translates the non-nil fields of a patch into SQL SET
// clauses and their arguments. This is the entire patch allow-list: a
// column not produced here cannot be changed through the update path.
func patchAssignments(patch model.JobPatch) ([]string, []any, error) {
	sets := make([]string, 0, 10)
	args := make([]any, 0, 11)
	if patch.Symptoms != nil {
		b, err := json.Marshal(*patch.Symptoms)
		if err != nil {
			return nil, nil, err
		}
		sets = append(sets, "symptoms = ?")
		args = append(args, string(b))
	}
	if patch.Diagnosis != nil {
		sets = append(sets, "diagnosis = ?")
		args = append(args, string(*patch.Diagnosis))
	}
	if patch.Estimate != nil {
		sets = append(sets, "estimate = ?")
		args = append(args, string(*patch.Estimate))
	}
	if patch.CustomerPhone != nil {
		sets = append(sets, "customer_phone = ?")
		args = append(args, *patch.CustomerPhone)
	}
	if patch.CustomerEmail != nil {
		sets = append(sets, "customer_email = ?")
		args = append(args, *patch.CustomerEmail)
	}
	if patch.TechnicianID != nil {
		sets = append(sets, "technician_id = ?")
		args = append(args, *patch.TechnicianID)
	}
	if patch.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*patch.Priority))
	}
	if patch.VehicleID != nil {
		sets = append(sets, "vehicle_id = ?")
		args = append(args, *patch.VehicleID)
	}
	if patch.Notes != nil {
		sets = append(sets, "status_notes = ?")
		args = append(args, *patch.Notes)
	}
	return sets, args, nil
}

// StatsByWorkshop groups a workshop's jobs by status and derives the
// total and active counts. Active excludes CLOSED and CANCELLED.
func (r *JobRepo) StatsByWorkshop(ctx context.Context, workshopID uint64) (*model.WorkshopStats, error) {
	const q = `SELECT status, COUNT(*) FROM job_cards WHERE workshop_id = ? GROUP BY status`
	rows, err := r.db.QueryContext(ctx, q, workshopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stats := model.NewWorkshopStats()
	for rows.Next() {
		var raw string
		var n int
		if err := rows.Scan(&raw, &n); err != nil {
			return nil, err
		}
		st, err := model.ParseJobStatus(raw)
		if err != nil {
			return nil, err
		}
		stats.Add(st, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}

// nullString converts an optional string into a driver-friendly value.
func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// nullUint64 converts an optional id into a driver-friendly value.
func nullUint64(v *uint64) any {
	if v == nil {
		return nil
	}
	return *v
}

// nullTime converts an optional timestamp into a driver-friendly value,
// normalizing to UTC like the rest of the schema.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
