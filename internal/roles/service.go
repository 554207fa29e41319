package roles

import (
	"context"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/authcache"
)

// Service orchestrates role administration. Every write that changes what a
// role may do is followed by a graph refresh so authorization decisions pick
// the change up without waiting for the periodic reload.
type Service struct {
	repo  Repository
	cache *authcache.Coordinator
}

// NewService constructs a Service.
func NewService(repo Repository, cache *authcache.Coordinator) *Service {
	return &Service{repo: repo, cache: cache}
}

// CreateInput collects the attributes for a new role.
type CreateInput struct {
	Name        string
	Description string
	Level       int
}

// Create inserts a role and refreshes the role slice of the graph.
func (s *Service) Create(ctx context.Context, input CreateInput) (int64, error) {
	id, err := s.repo.Create(ctx, Role{
		Name:        input.Name,
		Description: input.Description,
		Level:       input.Level,
	})
	if err != nil {
		return 0, err
	}
	if err := s.cache.RefreshRoles(ctx); err != nil {
		return id, fmt.Errorf("roles: create refresh: %w", err)
	}
	return id, nil
}

// Update rewrites role attributes. Level changes affect seniority ordering,
// so the graph refresh is not optional.
func (s *Service) Update(ctx context.Context, role Role) error {
	if err := s.repo.Update(ctx, role); err != nil {
		return err
	}
	if err := s.cache.RefreshRoles(ctx); err != nil {
		return fmt.Errorf("roles: update refresh: %w", err)
	}
	return nil
}

// Delete removes an unused role.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.cache.RefreshRoles(ctx); err != nil {
		return fmt.Errorf("roles: delete refresh: %w", err)
	}
	return nil
}

// Get returns the write-side view of one role.
func (s *Service) Get(ctx context.Context, id int64) (Role, error) {
	return s.repo.Get(ctx, id)
}

// List returns the cached roles ordered by id.
func (s *Service) List() []authcache.RoleRecord {
	return s.cache.Roles()
}

// SetPermissions replaces a role's permission grants and refreshes the full
// graph so the per-URL access index is rebuilt.
func (s *Service) SetPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if _, err := s.repo.Get(ctx, roleID); err != nil {
		return err
	}
	if err := s.repo.SetPermissions(ctx, roleID, permissionIDs); err != nil {
		return err
	}
	if err := s.cache.RefreshRolePermission(ctx); err != nil {
		return fmt.Errorf("roles: grants refresh: %w", err)
	}
	return nil
}

// SetRoutes replaces a role's route grants.
func (s *Service) SetRoutes(ctx context.Context, roleID int64, routeIDs []int64) error {
	if _, err := s.repo.Get(ctx, roleID); err != nil {
		return err
	}
	if err := s.repo.SetRoutes(ctx, roleID, routeIDs); err != nil {
		return err
	}
	if err := s.cache.RefreshRolePermission(ctx); err != nil {
		return fmt.Errorf("roles: routes refresh: %w", err)
	}
	return nil
}

// Permissions returns the full permission catalogue for grant editing.
func (s *Service) Permissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// Routes returns the full route catalogue for grant editing.
func (s *Service) Routes(ctx context.Context) ([]Route, error) {
	return s.repo.ListRoutes(ctx)
}
