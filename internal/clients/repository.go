package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ErrDuplicateUsername indicates the username or email is already taken.
var ErrDuplicateUsername = errors.New("clients: username or email already registered")

// Repository defines persistence operations for the clients module.
type Repository interface {
	Create(ctx context.Context, client Client) (int64, error)
	GetByUsername(ctx context.Context, username string) (Client, error)
	List(ctx context.Context, filter ListFilter) ([]Client, int, error)
	UpdatePassword(ctx context.Context, username, passwordHash string, mustChange bool) error
	SetLocked(ctx context.Context, username string, locked bool) error
	TouchLastLogin(ctx context.Context, username string) error
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

// Create inserts a client and its role assignments in one transaction.
func (r *PGRepository) Create(ctx context.Context, client Client) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO clients (username, display_name, password_hash, email, is_active, is_locked, must_change_password, department_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, 0))
			RETURNING id`,
			client.Username, client.DisplayName, client.PasswordHash, client.Email,
			client.Active, client.Locked, client.MustChangePassword, client.DepartmentID,
		).Scan(&id)
		if err != nil {
			return err
		}
		for _, roleID := range client.RoleIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO client_roles (client_id, role_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING`, id, roleID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return 0, ErrDuplicateUsername
		}
		return 0, fmt.Errorf("clients: create: %w", err)
	}
	return id, nil
}

// GetByUsername fetches a client regardless of active state.
func (r *PGRepository) GetByUsername(ctx context.Context, username string) (Client, error) {
	var client Client
	err := r.pool.QueryRow(ctx, `
		SELECT c.id, c.username, c.display_name, c.password_hash, c.email,
			c.is_active, c.is_locked, c.must_change_password, COALESCE(c.department_id, 0),
			COALESCE(array_agg(cr.role_id) FILTER (WHERE cr.role_id IS NOT NULL), '{}'),
			COALESCE(c.last_login_at, 'epoch'::timestamptz), c.created_at, c.updated_at
		FROM clients c
		LEFT JOIN client_roles cr ON cr.client_id = c.id
		WHERE c.username = $1
		GROUP BY c.id`, username).Scan(
		&client.ID, &client.Username, &client.DisplayName, &client.PasswordHash, &client.Email,
		&client.Active, &client.Locked, &client.MustChangePassword, &client.DepartmentID,
		&client.RoleIDs, &client.LastLoginAt, &client.CreatedAt, &client.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, shared.ErrNotFound
		}
		return Client{}, fmt.Errorf("clients: get: %w", err)
	}
	return client, nil
}

// List returns a filtered page of clients plus the total row count.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Client, int, error) {
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)

	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM clients
		WHERE ($1 = '' OR username ILIKE '%' || $1 || '%')
		  AND ($2 = 0 OR department_id = $2)`,
		filter.Username, filter.DepartmentID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("clients: count: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.username, c.display_name, c.password_hash, c.email,
			c.is_active, c.is_locked, c.must_change_password, COALESCE(c.department_id, 0),
			COALESCE(array_agg(cr.role_id) FILTER (WHERE cr.role_id IS NOT NULL), '{}'),
			COALESCE(c.last_login_at, 'epoch'::timestamptz), c.created_at, c.updated_at
		FROM clients c
		LEFT JOIN client_roles cr ON cr.client_id = c.id
		WHERE ($1 = '' OR c.username ILIKE '%' || $1 || '%')
		  AND ($2 = 0 OR c.department_id = $2)
		GROUP BY c.id
		ORDER BY c.id
		LIMIT $3 OFFSET $4`,
		filter.Username, filter.DepartmentID, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("clients: list: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var client Client
		if err := rows.Scan(
			&client.ID, &client.Username, &client.DisplayName, &client.PasswordHash, &client.Email,
			&client.Active, &client.Locked, &client.MustChangePassword, &client.DepartmentID,
			&client.RoleIDs, &client.LastLoginAt, &client.CreatedAt, &client.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("clients: scan: %w", err)
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("clients: list: %w", err)
	}
	return clients, total, nil
}

// UpdatePassword replaces a client's password hash.
func (r *PGRepository) UpdatePassword(ctx context.Context, username, passwordHash string, mustChange bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clients SET password_hash = $2, must_change_password = $3, updated_at = now()
		WHERE username = $1`, username, passwordHash, mustChange)
	if err != nil {
		return fmt.Errorf("clients: update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetLocked toggles a client's lock flag.
func (r *PGRepository) SetLocked(ctx context.Context, username string, locked bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clients SET is_locked = $2, updated_at = now() WHERE username = $1`, username, locked)
	if err != nil {
		return fmt.Errorf("clients: set locked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// TouchLastLogin stamps the last successful login time.
func (r *PGRepository) TouchLastLogin(ctx context.Context, username string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE clients SET last_login_at = now() WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("clients: touch last login: %w", err)
	}
	return nil
}
