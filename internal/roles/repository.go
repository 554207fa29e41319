package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ErrRoleInUse indicates a role still has member clients and cannot be
// deleted.
var ErrRoleInUse = errors.New("roles: role still assigned to clients")

// Repository defines persistence operations for role administration.
type Repository interface {
	Create(ctx context.Context, role Role) (int64, error)
	Update(ctx context.Context, role Role) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (Role, error)
	SetPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	SetRoutes(ctx context.Context, roleID int64, routeIDs []int64) error
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListRoutes(ctx context.Context) ([]Route, error)
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

// Create inserts a role.
func (r *PGRepository) Create(ctx context.Context, role Role) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description, level) VALUES ($1, $2, $3)
		RETURNING id`, role.Name, role.Description, role.Level).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("roles: create: %w", err)
	}
	return id, nil
}

// Update rewrites role attributes.
func (r *PGRepository) Update(ctx context.Context, role Role) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE roles SET name = $2, description = $3, level = $4, updated_at = now()
		WHERE id = $1`, role.ID, role.Name, role.Description, role.Level)
	if err != nil {
		return fmt.Errorf("roles: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a role unless clients still hold it.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var members int
		if err := tx.QueryRow(ctx, `
			SELECT count(*) FROM client_roles WHERE role_id = $1`, id).Scan(&members); err != nil {
			return fmt.Errorf("roles: count members: %w", err)
		}
		if members > 0 {
			return ErrRoleInUse
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return fmt.Errorf("roles: delete grants: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_routes WHERE role_id = $1`, id); err != nil {
			return fmt.Errorf("roles: delete routes: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("roles: delete: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// Get fetches one role with its grant id lists.
func (r *PGRepository) Get(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		SELECT r.id, r.name, COALESCE(r.description, ''), r.level,
			COALESCE((SELECT array_agg(rp.permission_id ORDER BY rp.permission_id) FROM role_permissions rp WHERE rp.role_id = r.id), '{}'),
			COALESCE((SELECT array_agg(rr.route_id ORDER BY rr.route_id) FROM role_routes rr WHERE rr.role_id = r.id), '{}'),
			r.created_at, r.updated_at
		FROM roles r WHERE r.id = $1`, id).Scan(
		&role.ID, &role.Name, &role.Description, &role.Level,
		&role.PermissionIDs, &role.RouteIDs, &role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, fmt.Errorf("roles: get: %w", err)
	}
	return role, nil
}

// SetPermissions replaces the permission grants of a role.
func (r *PGRepository) SetPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return fmt.Errorf("roles: clear grants: %w", err)
		}
		for _, pid := range permissionIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING`, roleID, pid); err != nil {
				return fmt.Errorf("roles: grant: %w", err)
			}
		}
		return nil
	})
}

// SetRoutes replaces the route grants of a role.
func (r *PGRepository) SetRoutes(ctx context.Context, roleID int64, routeIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_routes WHERE role_id = $1`, roleID); err != nil {
			return fmt.Errorf("roles: clear routes: %w", err)
		}
		for _, rid := range routeIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO role_routes (role_id, route_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING`, roleID, rid); err != nil {
				return fmt.Errorf("roles: route grant: %w", err)
			}
		}
		return nil
	})
}

// ListPermissions returns the full permission catalogue.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, authority, url, is_open FROM permissions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("roles: list permissions: %w", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Authority, &p.URL, &p.Open); err != nil {
			return nil, fmt.Errorf("roles: scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// ListRoutes returns the full route catalogue.
func (r *PGRepository) ListRoutes(ctx context.Context) ([]Route, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, path FROM routes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("roles: list routes: %w", err)
	}
	defer rows.Close()

	var routes []Route
	for rows.Next() {
		var route Route
		if err := rows.Scan(&route.ID, &route.Name, &route.Path); err != nil {
			return nil, fmt.Errorf("roles: scan route: %w", err)
		}
		routes = append(routes, route)
	}
	return routes, rows.Err()
}
