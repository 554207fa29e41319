package authcache

import (
	"context"
	"sync"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// stubStore is an in-memory Store used across the cache tests. Setting fail
// makes every query report an unreachable backing store.
type stubStore struct {
	mu          sync.Mutex
	clients     []ClientRecord
	roles       []RoleRecord
	perms       []PermissionRecord
	routes      []RouteRecord
	departments []DepartmentRecord
	fail        bool
	loads       int
}

func (s *stubStore) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *stubStore) failErr() error {
	return shared.ErrBackingStoreUnavailable
}

func (s *stubStore) ListActiveClients(ctx context.Context) ([]ClientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.fail {
		return nil, s.failErr()
	}
	out := make([]ClientRecord, len(s.clients))
	copy(out, s.clients)
	return out, nil
}

func (s *stubStore) GetClientByUsername(ctx context.Context, username string) (*ClientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.fail {
		return nil, s.failErr()
	}
	for _, c := range s.clients {
		if c.Username == username && c.Active {
			record := c
			return &record, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubStore) ListRoles(ctx context.Context) ([]RoleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.fail {
		return nil, s.failErr()
	}
	out := make([]RoleRecord, len(s.roles))
	copy(out, s.roles)
	return out, nil
}

func (s *stubStore) ListPermissions(ctx context.Context) ([]PermissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, s.failErr()
	}
	out := make([]PermissionRecord, len(s.perms))
	copy(out, s.perms)
	return out, nil
}

func (s *stubStore) ListRoutes(ctx context.Context) ([]RouteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, s.failErr()
	}
	out := make([]RouteRecord, len(s.routes))
	copy(out, s.routes)
	return out, nil
}

func (s *stubStore) ListDepartments(ctx context.Context) ([]DepartmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, s.failErr()
	}
	out := make([]DepartmentRecord, len(s.departments))
	copy(out, s.departments)
	return out, nil
}

var _ Store = (*stubStore)(nil)

func seededStore() *stubStore {
	return &stubStore{
		clients: []ClientRecord{
			{ID: 1, Username: "alice", DisplayName: "Alice Chen", PasswordHash: "h1", Email: "alice@meridian.local", Active: true, DepartmentID: 10, RoleIDs: []int64{2}},
			{ID: 2, Username: "bob", DisplayName: "Bob Lin", PasswordHash: "h2", Email: "bob@meridian.local", Active: true, DepartmentID: 10, RoleIDs: []int64{2, 3}},
		},
		roles: []RoleRecord{
			{ID: 1, Name: "visitor", Level: 0},
			{ID: 2, Name: "staff", Level: 2, PermissionIDs: []int64{1}, RouteIDs: []int64{1}},
			{ID: 3, Name: "manager", Level: 3, PermissionIDs: []int64{1, 2}, RouteIDs: []int64{1, 2}},
		},
		perms: []PermissionRecord{
			{ID: 1, Authority: "LEAVE_READ", URL: "/leave", Open: false},
			{ID: 2, Authority: "LEAVE_APPROVE", URL: "/leave/accept", Open: false},
			{ID: 3, Authority: "PROFILE_READ", URL: "/client", Open: true},
		},
		routes: []RouteRecord{
			{ID: 1, Name: "leave", Path: "/leave"},
			{ID: 2, Name: "leave-approval", Path: "/leave/pending"},
		},
		departments: []DepartmentRecord{
			{ID: 10, Name: "Engineering", DefaultRoleID: 2, MemberIDs: []int64{1, 2}},
		},
	}
}
