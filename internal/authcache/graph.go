package authcache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// PermissionGraph caches the role, permission, route, and department graph
// together with the precomputed per-URL access table. The table is a pure
// function of the role and permission rows; it is rebuilt from scratch on
// every refresh and never mutated independently.
type PermissionGraph struct {
	store Store

	mu     sync.Mutex
	snap   atomic.Pointer[graphSnapshot]
	flight singleflight.Group
}

type graphSnapshot struct {
	roles        map[int64]*RoleRecord
	permsByRole  map[int64][]PermissionRecord
	routesByRole map[int64][]RouteRecord
	urlOpen      map[string]bool
	departments  map[int64]*DepartmentRecord
}

// NewPermissionGraph constructs an empty graph. Call RefreshAll to perform
// the eager initial load.
func NewPermissionGraph(store Store) *PermissionGraph {
	g := &PermissionGraph{store: store}
	g.snap.Store(emptyGraphSnapshot())
	return g
}

func emptyGraphSnapshot() *graphSnapshot {
	return &graphSnapshot{
		roles:        map[int64]*RoleRecord{},
		permsByRole:  map[int64][]PermissionRecord{},
		routesByRole: map[int64][]RouteRecord{},
		urlOpen:      map[string]bool{},
		departments:  map[int64]*DepartmentRecord{},
	}
}

// RefreshAll reloads roles, permissions, routes, and departments and
// recomputes every index. Concurrent calls coalesce; a failure leaves the
// previous snapshot visible.
func (g *PermissionGraph) RefreshAll(ctx context.Context) error {
	_, err, _ := g.flight.Do("all", func() (any, error) {
		next, err := g.loadRoleGraph(ctx)
		if err != nil {
			return nil, err
		}
		departments, err := g.store.ListDepartments(ctx)
		if err != nil {
			return nil, err
		}
		for i := range departments {
			next.departments[departments[i].ID] = &departments[i]
		}

		g.mu.Lock()
		defer g.mu.Unlock()
		g.snap.Store(next)
		return nil, nil
	})
	return err
}

// RefreshRoles reloads just the role/permission/route graph, carrying the
// current department mapping over unchanged. Used for role or permission
// admin edits that cannot touch departments.
func (g *PermissionGraph) RefreshRoles(ctx context.Context) error {
	_, err, _ := g.flight.Do("roles", func() (any, error) {
		next, err := g.loadRoleGraph(ctx)
		if err != nil {
			return nil, err
		}

		g.mu.Lock()
		defer g.mu.Unlock()
		next.departments = g.snap.Load().departments
		g.snap.Store(next)
		return nil, nil
	})
	return err
}

func (g *PermissionGraph) loadRoleGraph(ctx context.Context) (*graphSnapshot, error) {
	roles, err := g.store.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	perms, err := g.store.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	routes, err := g.store.ListRoutes(ctx)
	if err != nil {
		return nil, err
	}

	permByID := make(map[int64]PermissionRecord, len(perms))
	for _, perm := range perms {
		permByID[perm.ID] = perm
	}
	routeByID := make(map[int64]RouteRecord, len(routes))
	for _, route := range routes {
		routeByID[route.ID] = route
	}

	next := emptyGraphSnapshot()
	for i := range roles {
		role := roles[i]
		next.roles[role.ID] = &role
		for _, pid := range role.PermissionIDs {
			if perm, ok := permByID[pid]; ok {
				next.permsByRole[role.ID] = append(next.permsByRole[role.ID], perm)
			}
		}
		for _, rid := range role.RouteIDs {
			if route, ok := routeByID[rid]; ok {
				next.routesByRole[role.ID] = append(next.routesByRole[role.ID], route)
			}
		}
	}
	for _, perm := range perms {
		if perm.URL != "" {
			next.urlOpen[perm.URL] = perm.Open
		}
	}
	return next, nil
}

// Role returns the cached role record.
func (g *PermissionGraph) Role(id int64) (RoleRecord, bool) {
	role, ok := g.snap.Load().roles[id]
	if !ok {
		return RoleRecord{}, false
	}
	return *role, true
}

// Roles returns every cached role, ordered by id.
func (g *PermissionGraph) Roles() []RoleRecord {
	snap := g.snap.Load()
	roles := make([]RoleRecord, 0, len(snap.roles))
	for _, role := range snap.roles {
		roles = append(roles, *role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles
}

// PermissionsFor unions the permission sets of every given role. Unknown
// role ids contribute nothing; an empty input yields an empty set, never an
// error. The result is ordered by permission id.
func (g *PermissionGraph) PermissionsFor(roleIDs []int64) []PermissionRecord {
	snap := g.snap.Load()
	seen := make(map[int64]struct{})
	var union []PermissionRecord
	for _, roleID := range roleIDs {
		for _, perm := range snap.permsByRole[roleID] {
			if _, ok := seen[perm.ID]; ok {
				continue
			}
			seen[perm.ID] = struct{}{}
			union = append(union, perm)
		}
	}
	sort.Slice(union, func(i, j int) bool { return union[i].ID < union[j].ID })
	return union
}

// RoutesFor returns the routes visible to one role.
func (g *PermissionGraph) RoutesFor(roleID int64) []RouteRecord {
	routes := g.snap.Load().routesByRole[roleID]
	out := make([]RouteRecord, len(routes))
	copy(out, routes)
	return out
}

// URLOpen reports the precomputed decision for url. The second result is
// false when the URL is absent from the access table; callers must treat
// that as deny.
func (g *PermissionGraph) URLOpen(url string) (bool, bool) {
	open, ok := g.snap.Load().urlOpen[url]
	return open, ok
}

// Department returns the cached department record.
func (g *PermissionGraph) Department(id int64) (DepartmentRecord, bool) {
	dept, ok := g.snap.Load().departments[id]
	if !ok {
		return DepartmentRecord{}, false
	}
	return *dept, true
}
