package departments

import (
	"context"
	"fmt"
	"sort"

	"github.com/meridian-erp/meridian-erp/internal/authcache"
)

// Service orchestrates department administration. Department rows ride in
// the permission graph snapshot (default role resolution happens there), so
// writes refresh the full graph.
type Service struct {
	repo     Repository
	cache    *authcache.Coordinator
	resolver *authcache.Resolver
}

// NewService constructs a Service.
func NewService(repo Repository, cache *authcache.Coordinator, resolver *authcache.Resolver) *Service {
	return &Service{repo: repo, cache: cache, resolver: resolver}
}

// CreateInput collects the attributes for a new department.
type CreateInput struct {
	Name          string
	DefaultRoleID int64
}

// Create inserts a department and refreshes the graph.
func (s *Service) Create(ctx context.Context, input CreateInput) (int64, error) {
	id, err := s.repo.Create(ctx, Department{Name: input.Name, DefaultRoleID: input.DefaultRoleID})
	if err != nil {
		return 0, err
	}
	if err := s.cache.RefreshRolePermission(ctx); err != nil {
		return id, fmt.Errorf("departments: create refresh: %w", err)
	}
	return id, nil
}

// Update rewrites name and default role. A default-role change affects what
// future registrations receive, so the refresh is part of the write.
func (s *Service) Update(ctx context.Context, dept Department) error {
	if err := s.repo.Update(ctx, dept); err != nil {
		return err
	}
	if err := s.cache.RefreshRolePermission(ctx); err != nil {
		return fmt.Errorf("departments: update refresh: %w", err)
	}
	return nil
}

// List returns every department.
func (s *Service) List(ctx context.Context) ([]Department, error) {
	return s.repo.List(ctx)
}

// Staff lists department members with their senior-most role, ordered by
// role level descending, ties by client id ascending.
func (s *Service) Staff(departmentID int64) ([]StaffMember, bool) {
	dept, ok := s.cache.Department(departmentID)
	if !ok {
		return nil, false
	}

	staff := make([]StaffMember, 0, len(dept.MemberIDs))
	for _, clientID := range dept.MemberIDs {
		client, ok := s.cache.GetClientByID(clientID)
		if !ok {
			continue
		}
		member := StaffMember{
			ClientID:    client.ID,
			Username:    client.Username,
			DisplayName: client.DisplayName,
		}
		if role, ok := s.resolver.SeniorMost(client.RoleIDs); ok {
			member.RoleName = role.Name
			member.RoleLevel = role.Level
		}
		staff = append(staff, member)
	}
	sort.Slice(staff, func(i, j int) bool {
		if staff[i].RoleLevel != staff[j].RoleLevel {
			return staff[i].RoleLevel > staff[j].RoleLevel
		}
		return staff[i].ClientID < staff[j].ClientID
	})
	return staff, true
}
