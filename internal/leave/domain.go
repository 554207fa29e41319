package leave

import (
	"errors"
	"time"
)

// Status is the leave request lifecycle state.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

// Request is a leave request row.
type Request struct {
	ID           int64     `json:"id"`
	ClientID     int64     `json:"clientId"`
	DepartmentID int64     `json:"departmentId"`
	Kind         string    `json:"kind"`
	Reason       string    `json:"reason"`
	StartAt      time.Time `json:"startAt"`
	EndAt        time.Time `json:"endAt"`
	Status       Status    `json:"status"`
	DecidedBy    int64     `json:"decidedBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

var (
	// ErrNotPending occurs when a mutation targets a request that has
	// already been decided.
	ErrNotPending = errors.New("leave: request already decided")
	// ErrNotOwner occurs when a client mutates another client's request.
	ErrNotOwner = errors.New("leave: not the request owner")
	// ErrNotApprover occurs when the caller lacks the seniority to act on
	// pending requests.
	ErrNotApprover = errors.New("leave: caller may not approve requests")
)
