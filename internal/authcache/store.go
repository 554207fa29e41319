package authcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Store is the read-side contract against the authoritative backing store.
// Every query returns a fully materialized result so snapshots can be built
// without additional round trips.
type Store interface {
	ListActiveClients(ctx context.Context) ([]ClientRecord, error)
	GetClientByUsername(ctx context.Context, username string) (*ClientRecord, error)
	ListRoles(ctx context.Context) ([]RoleRecord, error)
	ListPermissions(ctx context.Context) ([]PermissionRecord, error)
	ListRoutes(ctx context.Context) ([]RouteRecord, error)
	ListDepartments(ctx context.Context) ([]DepartmentRecord, error)
}

// PGStore implements Store against PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

var _ Store = (*PGStore)(nil)

const clientColumns = `c.id, c.username, c.display_name, c.password_hash, c.email,
		c.is_active, c.is_locked, c.must_change_password,
		COALESCE(c.department_id, 0),
		COALESCE(array_agg(cr.role_id) FILTER (WHERE cr.role_id IS NOT NULL), '{}'),
		COALESCE(c.last_login_at, 'epoch'::timestamptz), c.created_at`

// ListActiveClients loads every active client together with its role ids.
func (s *PGStore) ListActiveClients(ctx context.Context) ([]ClientRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+clientColumns+`
		FROM clients c
		LEFT JOIN client_roles cr ON cr.client_id = c.id
		WHERE c.is_active
		GROUP BY c.id
		ORDER BY c.id`)
	if err != nil {
		return nil, storeErr("list clients", err)
	}
	defer rows.Close()

	var clients []ClientRecord
	for rows.Next() {
		record, err := scanClient(rows)
		if err != nil {
			return nil, storeErr("scan client", err)
		}
		clients = append(clients, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list clients", err)
	}
	return clients, nil
}

// GetClientByUsername loads a single active client, or shared.ErrNotFound
// when no matching active row exists.
func (s *PGStore) GetClientByUsername(ctx context.Context, username string) (*ClientRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+clientColumns+`
		FROM clients c
		LEFT JOIN client_roles cr ON cr.client_id = c.id
		WHERE c.is_active AND c.username = $1
		GROUP BY c.id`, username)
	if err != nil {
		return nil, storeErr("get client", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, storeErr("get client", err)
		}
		return nil, shared.ErrNotFound
	}
	record, err := scanClient(rows)
	if err != nil {
		return nil, storeErr("scan client", err)
	}
	return &record, nil
}

// ListRoles loads every role with its permission and route id sets.
func (s *PGStore) ListRoles(ctx context.Context) ([]RoleRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.name, r.level,
			COALESCE(array_agg(DISTINCT rp.permission_id) FILTER (WHERE rp.permission_id IS NOT NULL), '{}'),
			COALESCE(array_agg(DISTINCT rr.route_id) FILTER (WHERE rr.route_id IS NOT NULL), '{}')
		FROM roles r
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN role_routes rr ON rr.role_id = r.id
		GROUP BY r.id
		ORDER BY r.id`)
	if err != nil {
		return nil, storeErr("list roles", err)
	}
	defer rows.Close()

	var roles []RoleRecord
	for rows.Next() {
		var role RoleRecord
		if err := rows.Scan(&role.ID, &role.Name, &role.Level, &role.PermissionIDs, &role.RouteIDs); err != nil {
			return nil, storeErr("scan role", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list roles", err)
	}
	return roles, nil
}

// ListPermissions loads every permission row.
func (s *PGStore) ListPermissions(ctx context.Context) ([]PermissionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, authority, url, is_open FROM permissions ORDER BY id`)
	if err != nil {
		return nil, storeErr("list permissions", err)
	}
	defer rows.Close()

	var perms []PermissionRecord
	for rows.Next() {
		var perm PermissionRecord
		if err := rows.Scan(&perm.ID, &perm.Authority, &perm.URL, &perm.Open); err != nil {
			return nil, storeErr("scan permission", err)
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list permissions", err)
	}
	return perms, nil
}

// ListRoutes loads every route row.
func (s *PGStore) ListRoutes(ctx context.Context) ([]RouteRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, path FROM routes ORDER BY id`)
	if err != nil {
		return nil, storeErr("list routes", err)
	}
	defer rows.Close()

	var routes []RouteRecord
	for rows.Next() {
		var route RouteRecord
		if err := rows.Scan(&route.ID, &route.Name, &route.Path); err != nil {
			return nil, storeErr("scan route", err)
		}
		routes = append(routes, route)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list routes", err)
	}
	return routes, nil
}

// ListDepartments loads every department with its default role and the
// derived member id list.
func (s *PGStore) ListDepartments(ctx context.Context) ([]DepartmentRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.id, d.name, d.default_role_id,
			COALESCE(array_agg(c.id) FILTER (WHERE c.id IS NOT NULL), '{}')
		FROM departments d
		LEFT JOIN clients c ON c.department_id = d.id AND c.is_active
		GROUP BY d.id
		ORDER BY d.id`)
	if err != nil {
		return nil, storeErr("list departments", err)
	}
	defer rows.Close()

	var departments []DepartmentRecord
	for rows.Next() {
		var dept DepartmentRecord
		if err := rows.Scan(&dept.ID, &dept.Name, &dept.DefaultRoleID, &dept.MemberIDs); err != nil {
			return nil, storeErr("scan department", err)
		}
		departments = append(departments, dept)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list departments", err)
	}
	return departments, nil
}

func scanClient(rows pgx.Rows) (ClientRecord, error) {
	var record ClientRecord
	err := rows.Scan(
		&record.ID, &record.Username, &record.DisplayName, &record.PasswordHash, &record.Email,
		&record.Active, &record.Locked, &record.MustChangePassword,
		&record.DepartmentID, &record.RoleIDs, &record.LastLoginAt, &record.CreatedAt,
	)
	return record, err
}

func storeErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	return fmt.Errorf("authcache: %s: %w", op, errors.Join(shared.ErrBackingStoreUnavailable, err))
}
