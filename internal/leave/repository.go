package leave

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository defines persistence operations for leave requests.
type Repository interface {
	Create(ctx context.Context, req Request) (int64, error)
	Update(ctx context.Context, req Request) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (Request, error)
	ListByClient(ctx context.Context, clientID int64) ([]Request, error)
	ListPending(ctx context.Context, departmentID int64) ([]Request, error)
	SetStatus(ctx context.Context, id int64, status Status, decidedBy int64) error
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

const requestColumns = `id, client_id, department_id, kind, reason, start_at, end_at,
	status, COALESCE(decided_by, 0), created_at, updated_at`

// Create inserts a pending request.
func (r *PGRepository) Create(ctx context.Context, req Request) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO leave_requests (client_id, department_id, kind, reason, start_at, end_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		req.ClientID, req.DepartmentID, req.Kind, req.Reason, req.StartAt, req.EndAt, StatusPending,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("leave: create: %w", err)
	}
	return id, nil
}

// Update rewrites the mutable fields of a pending request.
func (r *PGRepository) Update(ctx context.Context, req Request) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leave_requests
		SET kind = $2, reason = $3, start_at = $4, end_at = $5, updated_at = now()
		WHERE id = $1 AND status = $6`,
		req.ID, req.Kind, req.Reason, req.StartAt, req.EndAt, StatusPending)
	if err != nil {
		return fmt.Errorf("leave: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

// Delete removes a pending request.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM leave_requests WHERE id = $1 AND status = $2`, id, StatusPending)
	if err != nil {
		return fmt.Errorf("leave: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

// Get fetches one request.
func (r *PGRepository) Get(ctx context.Context, id int64) (Request, error) {
	var req Request
	err := r.pool.QueryRow(ctx, `
		SELECT `+requestColumns+` FROM leave_requests WHERE id = $1`, id).Scan(
		&req.ID, &req.ClientID, &req.DepartmentID, &req.Kind, &req.Reason,
		&req.StartAt, &req.EndAt, &req.Status, &req.DecidedBy, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, shared.ErrNotFound
		}
		return Request{}, fmt.Errorf("leave: get: %w", err)
	}
	return req, nil
}

// ListByClient returns a client's own requests, newest first.
func (r *PGRepository) ListByClient(ctx context.Context, clientID int64) ([]Request, error) {
	return r.list(ctx, `
		SELECT `+requestColumns+` FROM leave_requests
		WHERE client_id = $1 ORDER BY created_at DESC`, clientID)
}

// ListPending returns pending requests. A zero departmentID means every
// department.
func (r *PGRepository) ListPending(ctx context.Context, departmentID int64) ([]Request, error) {
	return r.list(ctx, `
		SELECT `+requestColumns+` FROM leave_requests
		WHERE status = 'PENDING' AND ($1 = 0 OR department_id = $1)
		ORDER BY created_at`, departmentID)
}

// SetStatus decides a pending request.
func (r *PGRepository) SetStatus(ctx context.Context, id int64, status Status, decidedBy int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leave_requests
		SET status = $2, decided_by = $3, updated_at = now()
		WHERE id = $1 AND status = $4`, id, status, decidedBy, StatusPending)
	if err != nil {
		return fmt.Errorf("leave: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

func (r *PGRepository) list(ctx context.Context, query string, args ...any) ([]Request, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("leave: list: %w", err)
	}
	defer rows.Close()

	var reqs []Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(
			&req.ID, &req.ClientID, &req.DepartmentID, &req.Kind, &req.Reason,
			&req.StartAt, &req.EndAt, &req.Status, &req.DecidedBy, &req.CreatedAt, &req.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("leave: scan: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}
