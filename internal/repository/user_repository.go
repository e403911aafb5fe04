package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/autohive/workshop-service/internal/model"
	"github.com/autohive/workshop-service/internal/utils"
)

// UserRepo persists staff accounts. Every user belongs to exactly one
// workshop; lookups used for authorization are workshop-scoped.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id, workshop_id, email, password_hash, role, is_active, created_at, updated_at`

// CreateTx inserts a staff account inside an existing transaction and
// returns its ID. The email is normalized to lower case; a duplicate
// yields ErrEmailExists (MySQL error 1062 on the unique index).
func (r *UserRepo) CreateTx(ctx context.Context, tx *sql.Tx, workshopID uint64, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (workshop_id, email, password_hash, role) VALUES (?,?,?,?)",
		workshopID, email, hash, role)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Create inserts a staff account outside any caller-managed transaction.
func (r *UserRepo) Create(ctx context.Context, workshopID uint64, email, password, role string, cost int) (uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	id, err := r.CreateTx(ctx, tx, workshopID, email, password, role, cost)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.WorkshopID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.WorkshopID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetForWorkshop fetches a user only when it belongs to the given
// workshop; a foreign user is indistinguishable from a missing one.
func (r *UserRepo) GetForWorkshop(ctx context.Context, id, workshopID uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? AND workshop_id=? LIMIT 1",
		id, workshopID).Scan(&u.ID, &u.WorkshopID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
