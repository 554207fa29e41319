package departments

import "time"

// Department is the write-side model for department administration.
type Department struct {
	ID            int64
	Name          string
	DefaultRoleID int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StaffMember is one row of the department staff listing, annotated with
// the member's senior-most role.
type StaffMember struct {
	ClientID    int64  `json:"clientId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	RoleName    string `json:"roleName"`
	RoleLevel   int    `json:"roleLevel"`
}
