package departments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository defines persistence operations for department administration.
type Repository interface {
	Create(ctx context.Context, dept Department) (int64, error)
	Update(ctx context.Context, dept Department) error
	Get(ctx context.Context, id int64) (Department, error)
	List(ctx context.Context) ([]Department, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

// Create inserts a department.
func (r *PGRepository) Create(ctx context.Context, dept Department) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO departments (name, default_role_id) VALUES ($1, $2)
		RETURNING id`, dept.Name, dept.DefaultRoleID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("departments: create: %w", err)
	}
	return id, nil
}

// Update rewrites name and default role.
func (r *PGRepository) Update(ctx context.Context, dept Department) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE departments SET name = $2, default_role_id = $3, updated_at = now()
		WHERE id = $1`, dept.ID, dept.Name, dept.DefaultRoleID)
	if err != nil {
		return fmt.Errorf("departments: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Get fetches one department.
func (r *PGRepository) Get(ctx context.Context, id int64) (Department, error) {
	var dept Department
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, default_role_id, created_at, updated_at
		FROM departments WHERE id = $1`, id).Scan(
		&dept.ID, &dept.Name, &dept.DefaultRoleID, &dept.CreatedAt, &dept.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Department{}, shared.ErrNotFound
		}
		return Department{}, fmt.Errorf("departments: get: %w", err)
	}
	return dept, nil
}

// List returns every department ordered by id.
func (r *PGRepository) List(ctx context.Context) ([]Department, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, default_role_id, created_at, updated_at
		FROM departments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("departments: list: %w", err)
	}
	defer rows.Close()

	var depts []Department
	for rows.Next() {
		var dept Department
		if err := rows.Scan(&dept.ID, &dept.Name, &dept.DefaultRoleID, &dept.CreatedAt, &dept.UpdatedAt); err != nil {
			return nil, fmt.Errorf("departments: scan: %w", err)
		}
		depts = append(depts, dept)
	}
	return depts, rows.Err()
}
