package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/authcache"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/jobs"
)

// Queue is the slice of the job client the service enqueues through.
type Queue interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
	EnqueueNotificationFanout(ctx context.Context, payload jobs.NotificationPayload) (*asynq.TaskInfo, error)
}

// Service stores notifications and fans them out through the job queue. It
// implements the Notifier and Mailer ports of the leave and clients modules.
type Service struct {
	repo             Repository
	cache            *authcache.Coordinator
	resolver         *authcache.Resolver
	queue            Queue
	approveAuthority string
}

// NewService constructs a Service. approveAuthority selects which department
// members count as approvers for workflow fan-out.
func NewService(repo Repository, cache *authcache.Coordinator, resolver *authcache.Resolver, queue Queue, approveAuthority string) *Service {
	return &Service{
		repo:             repo,
		cache:            cache,
		resolver:         resolver,
		queue:            queue,
		approveAuthority: approveAuthority,
	}
}

// NotifyDepartmentApprovers stores one notification per approver in the
// department and enqueues its delivery. Members without the approve
// authority are skipped.
func (s *Service) NotifyDepartmentApprovers(ctx context.Context, departmentID int64, message string) error {
	dept, ok := s.cache.Department(departmentID)
	if !ok {
		return fmt.Errorf("notifications: department %d: %w", departmentID, shared.ErrNotFound)
	}
	for _, memberID := range dept.MemberIDs {
		member, ok := s.cache.GetClientByID(memberID)
		if !ok {
			continue
		}
		if !s.resolver.HasAuthority(member.RoleIDs, s.approveAuthority) {
			continue
		}
		if err := s.notify(ctx, member.ID, message); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) notify(ctx context.Context, recipientID int64, message string) error {
	n := Notification{
		ID:          uuid.New(),
		RecipientID: recipientID,
		Message:     message,
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		return err
	}
	if s.queue != nil {
		_, err := s.queue.EnqueueNotificationFanout(ctx, jobs.NotificationPayload{
			NotificationID: n.ID,
			RecipientID:    n.RecipientID,
			Message:        n.Message,
		})
		if err != nil {
			return fmt.Errorf("notifications: enqueue fanout: %w", err)
		}
	}
	return nil
}

// SendPasswordReset enqueues the password reset mail.
func (s *Service) SendPasswordReset(ctx context.Context, email, tempPassword string) error {
	if s.queue == nil {
		return nil
	}
	_, err := s.queue.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		To:      email,
		Subject: "Your password has been reset",
		Body:    fmt.Sprintf("Your temporary password is %s. Change it after your next login.", tempPassword),
	})
	if err != nil {
		return fmt.Errorf("notifications: enqueue mail: %w", err)
	}
	return nil
}

// ListOwn returns the identity's notifications.
func (s *Service) ListOwn(ctx context.Context, identity shared.Identity, unreadOnly bool) ([]Notification, error) {
	return s.repo.ListByRecipient(ctx, identity.ClientID, unreadOnly)
}

// MarkRead flags one of the identity's notifications as read.
func (s *Service) MarkRead(ctx context.Context, identity shared.Identity, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, id, identity.ClientID)
}
