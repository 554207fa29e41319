package roles

import "time"

// Role is the write-side model for role administration. The read side lives
// in the permission graph cache.
type Role struct {
	ID            int64
	Name          string
	Description   string
	Level         int
	PermissionIDs []int64
	RouteIDs      []int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Permission is a guarded authority bound to a URL.
type Permission struct {
	ID        int64
	Authority string
	URL       string
	Open      bool
}

// Route is a navigable frontend route granted per role.
type Route struct {
	ID   int64
	Name string
	Path string
}
