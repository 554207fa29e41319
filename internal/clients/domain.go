package clients

import "time"

// Client represents a staff account row in the backing store.
type Client struct {
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
	UpdatedAt          time.Time
}

// ListFilter narrows the paginated client listing.
type ListFilter struct {
	Username     string
	DepartmentID int64
	Page         int
	PerPage      int
}
