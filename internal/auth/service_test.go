package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-erp/meridian-erp/internal/auth"
	"github.com/meridian-erp/meridian-erp/internal/authcache"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type stubStore struct {
	clients []authcache.ClientRecord
}

func (s *stubStore) ListActiveClients(ctx context.Context) ([]authcache.ClientRecord, error) {
	return s.clients, nil
}

func (s *stubStore) GetClientByUsername(ctx context.Context, username string) (*authcache.ClientRecord, error) {
	for _, c := range s.clients {
		if c.Username == username {
			record := c
			return &record, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubStore) ListRoles(ctx context.Context) ([]authcache.RoleRecord, error) {
	return []authcache.RoleRecord{{ID: 2, Name: "staff", Level: 2}}, nil
}

func (s *stubStore) ListPermissions(ctx context.Context) ([]authcache.PermissionRecord, error) {
	return nil, nil
}

func (s *stubStore) ListRoutes(ctx context.Context) ([]authcache.RouteRecord, error) {
	return nil, nil
}

func (s *stubStore) ListDepartments(ctx context.Context) ([]authcache.DepartmentRecord, error) {
	return nil, nil
}

func newService(t *testing.T) (*auth.Service, *authcache.Coordinator) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	store := &stubStore{clients: []authcache.ClientRecord{
		{ID: 1, Username: "alice", DisplayName: "Alice Chen", PasswordHash: string(hash), Active: true, RoleIDs: []int64{2}},
		{ID: 2, Username: "mallory", PasswordHash: string(hash), Active: true, Locked: true},
	}}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := authcache.NewCoordinator(
		authcache.NewClientDirectory(store),
		authcache.NewPermissionGraph(store),
		authcache.NewRevocationSet(client, time.Hour),
		nil,
		nil,
	)
	require.NoError(t, cache.Warm(context.Background()))

	tokens := auth.NewTokenManager("test-secret", "meridian-test", time.Hour)
	return auth.NewService(cache, tokens), cache
}

func TestLoginIssuesToken(t *testing.T) {
	service, _ := newService(t)

	result, err := service.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Equal(t, "alice", result.Client.Username)
	require.WithinDuration(t, time.Now().Add(time.Hour), result.ExpiresAt, time.Minute)

	claims, err := service.Verify(context.Background(), result.Token)
	require.NoError(t, err)
	require.Equal(t, int64(1), claims.ClientID)
	require.Equal(t, []int64{2}, claims.RoleIDs)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	service, _ := newService(t)

	_, err := service.Login(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLoginRejectsUnknownAndLocked(t *testing.T) {
	service, _ := newService(t)

	_, err := service.Login(context.Background(), "nobody", "correct-horse")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = service.Login(context.Background(), "mallory", "correct-horse")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLogoutRevokesToken(t *testing.T) {
	service, cache := newService(t)
	ctx := context.Background()

	result, err := service.Login(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, service.Logout(ctx, result.Token))
	require.True(t, cache.ExistsTokenBlacklist(ctx, result.Token))

	_, err = service.Verify(ctx, result.Token)
	require.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestRotateRevokesOldToken(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	result, err := service.Login(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	rotated, err := service.Rotate(ctx, result.Token)
	require.NoError(t, err)
	require.NotEqual(t, result.Token, rotated.Token)

	_, err = service.Verify(ctx, result.Token)
	require.ErrorIs(t, err, auth.ErrTokenInvalid)

	_, err = service.Verify(ctx, rotated.Token)
	require.NoError(t, err)
}

func TestVerifyRejectsForgedToken(t *testing.T) {
	service, _ := newService(t)

	other := auth.NewTokenManager("other-secret", "meridian-test", time.Hour)
	forged, _, err := other.Issue(1, "alice", []int64{2}, 0)
	require.NoError(t, err)

	_, err = service.Verify(context.Background(), forged)
	require.ErrorIs(t, err, auth.ErrTokenInvalid)
}
