package clients_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-erp/meridian-erp/internal/authcache"
	"github.com/meridian-erp/meridian-erp/internal/clients"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]clients.Client
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, rows: map[string]clients.Client{}}
}

func (m *memoryRepo) Create(ctx context.Context, client clients.Client) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rows[client.Username]; exists {
		return 0, clients.ErrDuplicateUsername
	}
	client.ID = m.nextID
	m.nextID++
	client.CreatedAt = time.Now()
	m.rows[client.Username] = client
	return client.ID, nil
}

func (m *memoryRepo) GetByUsername(ctx context.Context, username string) (clients.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	client, ok := m.rows[username]
	if !ok {
		return clients.Client{}, shared.ErrNotFound
	}
	return client, nil
}

func (m *memoryRepo) List(ctx context.Context, filter clients.ListFilter) ([]clients.Client, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []clients.Client
	for _, c := range m.rows {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *memoryRepo) UpdatePassword(ctx context.Context, username, passwordHash string, mustChange bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	client, ok := m.rows[username]
	if !ok {
		return shared.ErrNotFound
	}
	client.PasswordHash = passwordHash
	client.MustChangePassword = mustChange
	m.rows[username] = client
	return nil
}

func (m *memoryRepo) SetLocked(ctx context.Context, username string, locked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	client, ok := m.rows[username]
	if !ok {
		return shared.ErrNotFound
	}
	client.Locked = locked
	m.rows[username] = client
	return nil
}

func (m *memoryRepo) TouchLastLogin(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	client, ok := m.rows[username]
	if !ok {
		return shared.ErrNotFound
	}
	client.LastLoginAt = time.Now()
	m.rows[username] = client
	return nil
}

// repoBackedStore adapts the in-memory repository into the read model the
// caches load from, so service writes become visible to cache refreshes.
type repoBackedStore struct {
	repo *memoryRepo
}

func (s *repoBackedStore) ListActiveClients(ctx context.Context) ([]authcache.ClientRecord, error) {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()
	var out []authcache.ClientRecord
	for _, c := range s.repo.rows {
		if c.Active {
			out = append(out, toRecord(c))
		}
	}
	return out, nil
}

func (s *repoBackedStore) GetClientByUsername(ctx context.Context, username string) (*authcache.ClientRecord, error) {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()
	c, ok := s.repo.rows[username]
	if !ok || !c.Active {
		return nil, shared.ErrNotFound
	}
	record := toRecord(c)
	return &record, nil
}

func (s *repoBackedStore) ListRoles(ctx context.Context) ([]authcache.RoleRecord, error) {
	return []authcache.RoleRecord{
		{ID: 1, Name: "visitor", Level: 0},
		{ID: 5, Name: "engineer", Level: 2},
	}, nil
}

func (s *repoBackedStore) ListPermissions(ctx context.Context) ([]authcache.PermissionRecord, error) {
	return nil, nil
}

func (s *repoBackedStore) ListRoutes(ctx context.Context) ([]authcache.RouteRecord, error) {
	return nil, nil
}

func (s *repoBackedStore) ListDepartments(ctx context.Context) ([]authcache.DepartmentRecord, error) {
	return []authcache.DepartmentRecord{{ID: 10, Name: "Engineering", DefaultRoleID: 5}}, nil
}

func toRecord(c clients.Client) authcache.ClientRecord {
	return authcache.ClientRecord{
		ID:                 c.ID,
		Username:           c.Username,
		DisplayName:        c.DisplayName,
		PasswordHash:       c.PasswordHash,
		Email:              c.Email,
		Active:             c.Active,
		Locked:             c.Locked,
		MustChangePassword: c.MustChangePassword,
		DepartmentID:       c.DepartmentID,
		RoleIDs:            c.RoleIDs,
		LastLoginAt:        c.LastLoginAt,
		CreatedAt:          c.CreatedAt,
	}
}

type recordingMailer struct {
	email    string
	password string
}

func (m *recordingMailer) SendPasswordReset(ctx context.Context, email, tempPassword string) error {
	m.email = email
	m.password = tempPassword
	return nil
}

func newService(t *testing.T) (*clients.Service, *memoryRepo, *authcache.Coordinator, *recordingMailer) {
	t.Helper()
	repo := newMemoryRepo()
	store := &repoBackedStore{repo: repo}

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

	mailer := &recordingMailer{}
	return clients.NewService(repo, cache, mailer), repo, cache, mailer
}

func TestRegisterAssignsDepartmentDefaultRole(t *testing.T) {
	service, repo, cache, _ := newService(t)
	ctx := context.Background()

	id, err := service.Register(ctx, clients.RegisterInput{
		Username:     "alice",
		DisplayName:  "Alice Chen",
		Password:     "correct-horse",
		Email:        "alice@meridian.local",
		DepartmentID: 10,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	stored, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []int64{5}, stored.RoleIDs)

	cached, ok := cache.GetClient("alice")
	require.True(t, ok)
	require.Equal(t, id, cached.ID)
}

func TestRegisterWithoutDepartmentGrantsVisitor(t *testing.T) {
	service, repo, _, _ := newService(t)
	ctx := context.Background()

	_, err := service.Register(ctx, clients.RegisterInput{
		Username:    "bob",
		DisplayName: "Bob Ruiz",
		Password:    "correct-horse",
		Email:       "bob@meridian.local",
	})
	require.NoError(t, err)

	stored, err := repo.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, []int64{1}, stored.RoleIDs)
}

func TestRegisterRejectsUnknownDepartment(t *testing.T) {
	service, _, _, _ := newService(t)

	_, err := service.Register(context.Background(), clients.RegisterInput{
		Username:     "carol",
		DisplayName:  "Carol",
		Password:     "correct-horse",
		Email:        "carol@meridian.local",
		DepartmentID: 999,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResetPasswordMailsAndRefreshes(t *testing.T) {
	service, repo, cache, mailer := newService(t)
	ctx := context.Background()

	_, err := service.Register(ctx, clients.RegisterInput{
		Username:    "alice",
		DisplayName: "Alice Chen",
		Password:    "correct-horse",
		Email:       "alice@meridian.local",
	})
	require.NoError(t, err)

	require.NoError(t, service.ResetPassword(ctx, "alice", "alice@meridian.local"))
	require.Equal(t, "alice@meridian.local", mailer.email)
	require.NotEmpty(t, mailer.password)

	stored, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, stored.MustChangePassword)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(mailer.password)))

	cached, ok := cache.GetClient("alice")
	require.True(t, ok)
	require.Equal(t, stored.PasswordHash, cached.PasswordHash)
}

func TestResetPasswordRejectsWrongEmail(t *testing.T) {
	service, _, _, mailer := newService(t)
	ctx := context.Background()

	_, err := service.Register(ctx, clients.RegisterInput{
		Username:    "alice",
		DisplayName: "Alice Chen",
		Password:    "correct-horse",
		Email:       "alice@meridian.local",
	})
	require.NoError(t, err)

	err = service.ResetPassword(ctx, "alice", "attacker@evil.example")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	require.Empty(t, mailer.password)
}

func TestUpdatePasswordVerifiesOld(t *testing.T) {
	service, _, cache, _ := newService(t)
	ctx := context.Background()

	_, err := service.Register(ctx, clients.RegisterInput{
		Username:    "alice",
		DisplayName: "Alice Chen",
		Password:    "correct-horse",
		Email:       "alice@meridian.local",
	})
	require.NoError(t, err)

	err = service.UpdatePassword(ctx, "alice", "wrong-old", "new-password-1")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	require.NoError(t, service.UpdatePassword(ctx, "alice", "correct-horse", "new-password-1"))

	cached, ok := cache.GetClient("alice")
	require.True(t, ok)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(cached.PasswordHash), []byte("new-password-1")))
}

func TestSetLockedRefreshesCache(t *testing.T) {
	service, _, cache, _ := newService(t)
	ctx := context.Background()

	_, err := service.Register(ctx, clients.RegisterInput{
		Username:    "alice",
		DisplayName: "Alice Chen",
		Password:    "correct-horse",
		Email:       "alice@meridian.local",
	})
	require.NoError(t, err)

	require.NoError(t, service.SetLocked(ctx, "alice", true))

	cached, ok := cache.GetClient("alice")
	require.True(t, ok)
	require.True(t, cached.Locked)
}
