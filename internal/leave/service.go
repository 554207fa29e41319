package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/authcache"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuthorityApprove is the permission authority that gates leave decisions.
const AuthorityApprove = "LEAVE_APPROVE"

// allDepartmentsLevel is the role level at which the pending list stops
// being scoped to the approver's own department.
const allDepartmentsLevel = 3

// Notifier fans a message out to the approvers of one department.
type Notifier interface {
	NotifyDepartmentApprovers(ctx context.Context, departmentID int64, message string) error
}

// Service orchestrates the leave workflow.
type Service struct {
	repo     Repository
	resolver *authcache.Resolver
	notifier Notifier
}

// NewService constructs a Service.
func NewService(repo Repository, resolver *authcache.Resolver, notifier Notifier) *Service {
	return &Service{repo: repo, resolver: resolver, notifier: notifier}
}

// AddInput collects the attributes of a new leave request.
type AddInput struct {
	Kind    string
	Reason  string
	StartAt time.Time
	EndAt   time.Time
}

// Add files a pending request for the identity and notifies the approvers
// of its department.
func (s *Service) Add(ctx context.Context, identity shared.Identity, input AddInput) (int64, error) {
	id, err := s.repo.Create(ctx, Request{
		ClientID:     identity.ClientID,
		DepartmentID: identity.DepartmentID,
		Kind:         input.Kind,
		Reason:       input.Reason,
		StartAt:      input.StartAt,
		EndAt:        input.EndAt,
	})
	if err != nil {
		return 0, err
	}
	if s.notifier != nil {
		message := fmt.Sprintf("%s filed a %s leave request", identity.Username, input.Kind)
		if err := s.notifier.NotifyDepartmentApprovers(ctx, identity.DepartmentID, message); err != nil {
			return id, fmt.Errorf("leave: notify: %w", err)
		}
	}
	return id, nil
}

// Update rewrites the caller's own pending request.
func (s *Service) Update(ctx context.Context, identity shared.Identity, req Request) error {
	existing, err := s.repo.Get(ctx, req.ID)
	if err != nil {
		return err
	}
	if existing.ClientID != identity.ClientID {
		return ErrNotOwner
	}
	return s.repo.Update(ctx, req)
}

// Delete removes the caller's own request while it is still pending.
func (s *Service) Delete(ctx context.Context, identity shared.Identity, id int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.ClientID != identity.ClientID {
		return ErrNotOwner
	}
	return s.repo.Delete(ctx, id)
}

// ListOwn returns the caller's requests, newest first.
func (s *Service) ListOwn(ctx context.Context, identity shared.Identity) ([]Request, error) {
	return s.repo.ListByClient(ctx, identity.ClientID)
}

// PendingList returns the pending requests the caller may decide. Senior
// roles at or above allDepartmentsLevel see every department; other
// approvers see only their own.
func (s *Service) PendingList(ctx context.Context, identity shared.Identity) ([]Request, error) {
	if !s.resolver.HasAuthority(identity.RoleIDs, AuthorityApprove) {
		return nil, ErrNotApprover
	}
	departmentID := identity.DepartmentID
	if role, ok := s.resolver.SeniorMost(identity.RoleIDs); ok && role.Level >= allDepartmentsLevel {
		departmentID = 0
	}
	return s.repo.ListPending(ctx, departmentID)
}

// Accept approves a pending request.
func (s *Service) Accept(ctx context.Context, identity shared.Identity, id int64) error {
	return s.decide(ctx, identity, id, StatusAccepted)
}

// Reject declines a pending request.
func (s *Service) Reject(ctx context.Context, identity shared.Identity, id int64) error {
	return s.decide(ctx, identity, id, StatusRejected)
}

func (s *Service) decide(ctx context.Context, identity shared.Identity, id int64, status Status) error {
	if !s.resolver.HasAuthority(identity.RoleIDs, AuthorityApprove) {
		return ErrNotApprover
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.DepartmentID != identity.DepartmentID {
		role, ok := s.resolver.SeniorMost(identity.RoleIDs)
		if !ok || role.Level < allDepartmentsLevel {
			return ErrNotApprover
		}
	}
	return s.repo.SetStatus(ctx, id, status, identity.ClientID)
}
