package authcache

// Resolver is the stateless permission-resolution algorithm over the
// current PermissionGraph snapshot. All decisions default to deny when the
// graph has no answer.
type Resolver struct {
	graph *PermissionGraph
}

// NewResolver constructs a Resolver.
func NewResolver(graph *PermissionGraph) *Resolver {
	return &Resolver{graph: graph}
}

// EffectivePermissions returns the union of permission grants across every
// role held. Roles compose additively: a grant from any role is effective.
func (r *Resolver) EffectivePermissions(roleIDs []int64) []PermissionRecord {
	return r.graph.PermissionsFor(roleIDs)
}

// HasAuthority reports whether any of the roles grants the named authority.
func (r *Resolver) HasAuthority(roleIDs []int64, authority string) bool {
	for _, perm := range r.graph.PermissionsFor(roleIDs) {
		if perm.Authority == authority {
			return true
		}
	}
	return false
}

// MayAccess decides whether the roles can reach url. An unknown URL is
// denied; an open URL is allowed for any authenticated client; a guarded
// URL requires the matching authority in the effective permission set.
func (r *Resolver) MayAccess(roleIDs []int64, url string) bool {
	open, known := r.graph.URLOpen(url)
	if !known {
		return false
	}
	if open {
		return true
	}
	for _, perm := range r.graph.PermissionsFor(roleIDs) {
		if perm.URL == url {
			return true
		}
	}
	return false
}

// SeniorMost returns the role with the highest level among roleIDs, false
// when none of the ids resolve. Ties break toward the smaller role id so
// the result is stable across calls.
func (r *Resolver) SeniorMost(roleIDs []int64) (RoleRecord, bool) {
	var (
		best  RoleRecord
		found bool
	)
	for _, id := range roleIDs {
		role, ok := r.graph.Role(id)
		if !ok {
			continue
		}
		if !found || role.Level > best.Level || (role.Level == best.Level && role.ID < best.ID) {
			best = role
			found = true
		}
	}
	return best, found
}
