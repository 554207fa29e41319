package authcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Kind identifies one of the coordinator's sub-caches.
type Kind int

const (
	// KindClient is the identity directory.
	KindClient Kind = iota
	// KindRolePermission is the role/permission/route/department graph.
	KindRolePermission
	// KindTokenBlacklist is the revoked-token set.
	KindTokenBlacklist
)

// Stable names exposed to operational tooling for keyed refreshes.
const (
	CacheClient         = "client"
	CacheRolePermission = "role_permission"
	CacheTokenBlacklist = "token_blacklist"
)

// Observer receives refresh outcomes, typically for metrics.
type Observer interface {
	ObserveRefresh(cache string, d time.Duration, err error)
}

// Coordinator is the single façade in front of the three sub-caches. Every
// authorization call site and every write-path invalidation goes through
// it, which keeps the surface auditable and lets operational tooling
// refresh one named cache without knowing its type.
type Coordinator struct {
	clients  *ClientDirectory
	graph    *PermissionGraph
	revoked  *RevocationSet
	byName   map[string]Kind
	logger   *slog.Logger
	observer Observer
}

// NewCoordinator wires the three sub-caches. The name registry is fixed at
// construction; there is no dynamic registration.
func NewCoordinator(clients *ClientDirectory, graph *PermissionGraph, revoked *RevocationSet, logger *slog.Logger, observer Observer) *Coordinator {
	return &Coordinator{
		clients: clients,
		graph:   graph,
		revoked: revoked,
		byName: map[string]Kind{
			CacheClient:         KindClient,
			CacheRolePermission: KindRolePermission,
			CacheTokenBlacklist: KindTokenBlacklist,
		},
		logger:   logger,
		observer: observer,
	}
}

// Warm performs the eager full load at process start. Unlike RefreshAll it
// fails hard, because serving requests before the first load would answer
// every authorization check from empty snapshots.
func (c *Coordinator) Warm(ctx context.Context) error {
	if err := c.RefreshAll(ctx); err != nil {
		return fmt.Errorf("authcache: warm: %w", err)
	}
	return nil
}

// RefreshAll refreshes every sub-cache. Order does not matter: each cache's
// refresh is independently atomic. All failures are reported together; the
// caches that succeeded keep their new snapshots.
func (c *Coordinator) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, kind := range []Kind{KindClient, KindRolePermission, KindTokenBlacklist} {
		if err := c.refreshKind(ctx, kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Refresh refreshes the sub-cache registered under name. Unknown names fail
// with shared.ErrUnknownCache; they never silently no-op.
func (c *Coordinator) Refresh(ctx context.Context, name string) error {
	kind, ok := c.byName[name]
	if !ok {
		return fmt.Errorf("%w: %q", shared.ErrUnknownCache, name)
	}
	return c.refreshKind(ctx, kind)
}

// RefreshClient reloads a single client record after a targeted mutation.
func (c *Coordinator) RefreshClient(ctx context.Context, username string) error {
	start := time.Now()
	err := c.clients.RefreshOne(ctx, username)
	c.observe(CacheClient, start, err)
	return err
}

// RefreshClients reloads the whole identity directory.
func (c *Coordinator) RefreshClients(ctx context.Context) error {
	return c.refreshKind(ctx, KindClient)
}

// RefreshRolePermission reloads the full graph including departments.
func (c *Coordinator) RefreshRolePermission(ctx context.Context) error {
	return c.refreshKind(ctx, KindRolePermission)
}

// RefreshRoles reloads only the role/permission/route slice of the graph.
func (c *Coordinator) RefreshRoles(ctx context.Context) error {
	start := time.Now()
	err := c.graph.RefreshRoles(ctx)
	c.observe(CacheRolePermission, start, err)
	return err
}

func (c *Coordinator) refreshKind(ctx context.Context, kind Kind) error {
	start := time.Now()
	var (
		name string
		err  error
	)
	switch kind {
	case KindClient:
		name, err = CacheClient, c.clients.RefreshAll(ctx)
	case KindRolePermission:
		name, err = CacheRolePermission, c.graph.RefreshAll(ctx)
	case KindTokenBlacklist:
		name, err = CacheTokenBlacklist, c.revoked.RefreshAll(ctx)
	}
	c.observe(name, start, err)
	if err != nil && c.logger != nil {
		c.logger.Error("cache refresh failed", slog.String("cache", name), slog.Any("error", err))
	}
	return err
}

func (c *Coordinator) observe(name string, start time.Time, err error) {
	if c.observer != nil {
		c.observer.ObserveRefresh(name, time.Since(start), err)
	}
}

// GetClient returns the cached identity record for username.
func (c *Coordinator) GetClient(username string) (ClientRecord, bool) {
	return c.clients.Get(username)
}

// GetClientByID returns the cached identity record for the given id.
func (c *Coordinator) GetClientByID(id int64) (ClientRecord, bool) {
	return c.clients.GetByID(id)
}

// ClientNames returns the collated (id, display name) listing.
func (c *Coordinator) ClientNames() []ClientName {
	return c.clients.Names()
}

// Role returns the cached role record.
func (c *Coordinator) Role(id int64) (RoleRecord, bool) {
	return c.graph.Role(id)
}

// Roles returns every cached role, ordered by id.
func (c *Coordinator) Roles() []RoleRecord {
	return c.graph.Roles()
}

// RolePermissions returns the union of permission grants across roleIDs.
func (c *Coordinator) RolePermissions(roleIDs ...int64) []PermissionRecord {
	return c.graph.PermissionsFor(roleIDs)
}

// RoleRoutes returns the routes visible to one role.
func (c *Coordinator) RoleRoutes(roleID int64) []RouteRecord {
	return c.graph.RoutesFor(roleID)
}

// URLOpen reports the precomputed access decision for url; absent means
// the caller must deny.
func (c *Coordinator) URLOpen(url string) (bool, bool) {
	return c.graph.URLOpen(url)
}

// Department returns the cached department record.
func (c *Coordinator) Department(id int64) (DepartmentRecord, bool) {
	return c.graph.Department(id)
}

// AddTokenBlacklist revokes a token until its own expiry.
func (c *Coordinator) AddTokenBlacklist(ctx context.Context, token string, expiresAt time.Time) error {
	return c.revoked.Add(ctx, token, expiresAt)
}

// ExistsTokenBlacklist reports whether a token has been revoked.
func (c *Coordinator) ExistsTokenBlacklist(ctx context.Context, token string) bool {
	return c.revoked.Exists(ctx, token)
}
