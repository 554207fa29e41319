// Package authcache keeps an in-memory, query-optimized projection of
// identity, role, and permission data so the request path never touches
// PostgreSQL for an authorization decision. Snapshots are built aside and
// published with a single atomic swap; readers never lock.
package authcache

import "time"

// ClientRecord is the cached identity projection for one staff account.
// Records are replaced wholesale on refresh, never patched in place.
type ClientRecord struct {
	ID                 int64
	Username           string
	DisplayName        string
	PasswordHash       string
	Email              string
	Active             bool
	Locked             bool
	MustChangePassword bool
	DepartmentID       int64
	RoleIDs            []int64
	LastLoginAt        time.Time
	CreatedAt          time.Time
}

// ClientName is the lightweight (id, display name) pair used by listings.
type ClientName struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayName"`
}

// RoleRecord describes a role and the grants attached to it. Level orders
// roles by seniority; higher values carry broader authority.
type RoleRecord struct {
	ID            int64
	Name          string
	Level         int
	PermissionIDs []int64
	RouteIDs      []int64
}

// PermissionRecord is an atomic grant keyed by authority name and the URL
// it guards. Open reports whether the URL is reachable by any authenticated
// client without holding the authority.
type PermissionRecord struct {
	ID        int64
	Authority string
	URL       string
	Open      bool
}

// RouteRecord is a navigable frontend route with role-scoped visibility.
type RouteRecord struct {
	ID   int64
	Name string
	Path string
}

// DepartmentRecord carries a department, its default role grant, and the
// ids of its member clients. MemberIDs is derived from the client table on
// every refresh and never treated as a source of truth.
type DepartmentRecord struct {
	ID            int64
	Name          string
	DefaultRoleID int64
	MemberIDs     []int64
}
