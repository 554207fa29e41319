package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-erp/meridian-erp/internal/authcache"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// LoginRecorder is notified after a successful login, typically to stamp
// the last-login time on the account.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, username string) error
}

// Service wraps authentication business rules. Credentials are verified
// against the cached identity record so the login path never queries the
// backing store.
type Service struct {
	cache    *authcache.Coordinator
	tokens   *TokenManager
	recorder LoginRecorder
}

// NewService constructs a new Service.
func NewService(cache *authcache.Coordinator, tokens *TokenManager) *Service {
	return &Service{cache: cache, tokens: tokens}
}

// SetLoginRecorder installs the optional post-login hook.
func (s *Service) SetLoginRecorder(recorder LoginRecorder) {
	s.recorder = recorder
}

// LoginResult carries the issued token together with the cached profile.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Client    authcache.ClientRecord
}

// Login validates credentials and issues an access token. Inactive and
// locked accounts are rejected with the same error as a bad password.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	client, ok := s.cache.GetClient(username)
	if !ok {
		return nil, shared.ErrInvalidCredentials
	}
	if !client.Active || client.Locked {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(client.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	token, expiresAt, err := s.tokens.Issue(client.ID, client.Username, client.RoleIDs, client.DepartmentID)
	if err != nil {
		return nil, err
	}
	if s.recorder != nil {
		if err := s.recorder.RecordLogin(ctx, client.Username); err != nil {
			return nil, fmt.Errorf("auth: record login: %w", err)
		}
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Client: client}, nil
}

// Logout revokes the presented token until its natural expiry.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		// An invalid token cannot be presented again; nothing to revoke.
		return nil
	}
	if err := s.cache.AddTokenBlacklist(ctx, token, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("auth: logout: %w", err)
	}
	return nil
}

// Rotate exchanges a still-valid token for a fresh one and revokes the old
// token so it cannot be replayed.
func (s *Service) Rotate(ctx context.Context, token string) (*LoginResult, error) {
	claims, err := s.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	client, ok := s.cache.GetClient(claims.Username)
	if !ok || !client.Active || client.Locked {
		return nil, shared.ErrInvalidCredentials
	}
	fresh, expiresAt, err := s.tokens.Issue(client.ID, client.Username, client.RoleIDs, client.DepartmentID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.AddTokenBlacklist(ctx, token, claims.ExpiresAt.Time); err != nil {
		return nil, fmt.Errorf("auth: rotate: %w", err)
	}
	return &LoginResult{Token: fresh, ExpiresAt: expiresAt, Client: client}, nil
}

// Verify parses a token and rejects it when revoked.
func (s *Service) Verify(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	if s.cache.ExistsTokenBlacklist(ctx, token) {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
