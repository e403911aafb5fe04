package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/autohive/workshop-service/internal/model"
)

// WorkshopRepo persists tenant records. Workshops are created during
// registration together with their first MANAGER account, inside one
// transaction owned by the handler.
type WorkshopRepo struct{ DB *sql.DB }

func NewWorkshopRepo(db *sql.DB) *WorkshopRepo { return &WorkshopRepo{DB: db} }

// CreateTx inserts a workshop and returns its ID.
func (r *WorkshopRepo) CreateTx(ctx context.Context, tx *sql.Tx, name string) (uint64, error) {
	name = strings.TrimSpace(name)
	res, err := tx.ExecContext(ctx, "INSERT INTO workshops (name) VALUES (?)", name)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a workshop by id.
func (r *WorkshopRepo) GetByID(ctx context.Context, id uint64) (model.Workshop, error) {
	var w model.Workshop
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM workshops WHERE id=? LIMIT 1",
		id).Scan(&w.ID, &w.Name, &w.CreatedAt)
	return w, err
}
