package clients

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-erp/meridian-erp/internal/authcache"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// visitorRoleID is granted when a client is registered without a department.
const visitorRoleID = 1

// Mailer delivers the temporary password after a reset. Transport is out of
// scope here; the notifications module enqueues the actual send.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, tempPassword string) error
}

// Service orchestrates staff account writes. Every mutation that lands in
// the backing store is followed by the matching cache refresh within the
// same call; that pairing is the consistency contract the cache relies on.
type Service struct {
	repo   Repository
	cache  *authcache.Coordinator
	mailer Mailer
}

// NewService constructs a Service.
func NewService(repo Repository, cache *authcache.Coordinator, mailer Mailer) *Service {
	return &Service{repo: repo, cache: cache, mailer: mailer}
}

// RegisterInput collects the attributes for a new staff account.
type RegisterInput struct {
	Username     string
	DisplayName  string
	Password     string
	Email        string
	DepartmentID int64
}

// Register creates an account. Without a department the visitor role is
// granted; with one, the department's default role.
func (s *Service) Register(ctx context.Context, input RegisterInput) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("clients: hash password: %w", err)
	}

	roleID := int64(visitorRoleID)
	if input.DepartmentID != 0 {
		dept, ok := s.cache.Department(input.DepartmentID)
		if !ok {
			return 0, fmt.Errorf("clients: department %d: %w", input.DepartmentID, shared.ErrNotFound)
		}
		roleID = dept.DefaultRoleID
	}

	id, err := s.repo.Create(ctx, Client{
		Username:     strings.TrimSpace(input.Username),
		DisplayName:  strings.TrimSpace(input.DisplayName),
		PasswordHash: string(hash),
		Email:        strings.TrimSpace(input.Email),
		Active:       true,
		DepartmentID: input.DepartmentID,
		RoleIDs:      []int64{roleID},
	})
	if err != nil {
		return 0, err
	}
	if err := s.cache.RefreshClient(ctx, input.Username); err != nil {
		return id, fmt.Errorf("clients: register refresh: %w", err)
	}
	return id, nil
}

// List returns a filtered page of accounts.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Client, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Names returns the cached (id, display name) listing.
func (s *Service) Names() []authcache.ClientName {
	return s.cache.ClientNames()
}

// ResetPassword generates a temporary password, stores its hash, refreshes
// the single cached record, and mails the password to the account owner.
func (s *Service) ResetPassword(ctx context.Context, username, email string) error {
	client, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if client.Email != email {
		return shared.ErrInvalidCredentials
	}

	tempPassword, err := randomPassword(18)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("clients: hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, username, string(hash), true); err != nil {
		return err
	}
	if err := s.cache.RefreshClient(ctx, username); err != nil {
		return fmt.Errorf("clients: reset refresh: %w", err)
	}
	if s.mailer != nil {
		if err := s.mailer.SendPasswordReset(ctx, email, tempPassword); err != nil {
			return fmt.Errorf("clients: reset mail: %w", err)
		}
	}
	return nil
}

// UpdatePassword changes a password for the calling client after verifying
// the old one.
func (s *Service) UpdatePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	client, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.ErrInvalidCredentials
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(client.PasswordHash), []byte(oldPassword)); err != nil {
		return shared.ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("clients: hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, username, string(hash), false); err != nil {
		return err
	}
	if err := s.cache.RefreshClient(ctx, username); err != nil {
		return fmt.Errorf("clients: password refresh: %w", err)
	}
	return nil
}

// SetLocked toggles the lock flag and refreshes the cached record so the
// next authentication attempt sees the new state.
func (s *Service) SetLocked(ctx context.Context, username string, locked bool) error {
	if err := s.repo.SetLocked(ctx, username, locked); err != nil {
		return err
	}
	if err := s.cache.RefreshClient(ctx, username); err != nil {
		return fmt.Errorf("clients: lock refresh: %w", err)
	}
	return nil
}

// RecordLogin stamps the last login time and refreshes the cached record.
func (s *Service) RecordLogin(ctx context.Context, username string) error {
	if err := s.repo.TouchLastLogin(ctx, username); err != nil {
		return err
	}
	return s.cache.RefreshClient(ctx, username)
}

func randomPassword(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("clients: random password: %w", err)
	}
	// Trailing symbols satisfy password complexity rules.
	return base64.RawURLEncoding.EncodeToString(buf)[:length] + "*#", nil
}
