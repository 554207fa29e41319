package leave_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/authcache"
	"github.com/meridian-erp/meridian-erp/internal/leave"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]leave.Request
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, rows: map[int64]leave.Request{}}
}

func (m *memoryRepo) Create(ctx context.Context, req leave.Request) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req.ID = m.nextID
	m.nextID++
	req.Status = leave.StatusPending
	req.CreatedAt = time.Now()
	m.rows[req.ID] = req
	return req.ID, nil
}

func (m *memoryRepo) Update(ctx context.Context, req leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rows[req.ID]
	if !ok || existing.Status != leave.StatusPending {
		return leave.ErrNotPending
	}
	existing.Kind = req.Kind
	existing.Reason = req.Reason
	existing.StartAt = req.StartAt
	existing.EndAt = req.EndAt
	m.rows[req.ID] = existing
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rows[id]
	if !ok || existing.Status != leave.StatusPending {
		return leave.ErrNotPending
	}
	delete(m.rows, id)
	return nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (leave.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.rows[id]
	if !ok {
		return leave.Request{}, shared.ErrNotFound
	}
	return req, nil
}

func (m *memoryRepo) ListByClient(ctx context.Context, clientID int64) ([]leave.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []leave.Request
	for _, req := range m.rows {
		if req.ClientID == clientID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListPending(ctx context.Context, departmentID int64) ([]leave.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []leave.Request
	for _, req := range m.rows {
		if req.Status != leave.StatusPending {
			continue
		}
		if departmentID != 0 && req.DepartmentID != departmentID {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

func (m *memoryRepo) SetStatus(ctx context.Context, id int64, status leave.Status, decidedBy int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rows[id]
	if !ok || existing.Status != leave.StatusPending {
		return leave.ErrNotPending
	}
	existing.Status = status
	existing.DecidedBy = decidedBy
	m.rows[id] = existing
	return nil
}

type stubStore struct{}

func (stubStore) ListActiveClients(ctx context.Context) ([]authcache.ClientRecord, error) {
	return nil, nil
}

func (stubStore) GetClientByUsername(ctx context.Context, username string) (*authcache.ClientRecord, error) {
	return nil, shared.ErrNotFound
}

func (stubStore) ListRoles(ctx context.Context) ([]authcache.RoleRecord, error) {
	return []authcache.RoleRecord{
		{ID: 2, Name: "staff", Level: 2},
		{ID: 3, Name: "lead", Level: 2, PermissionIDs: []int64{2}},
		{ID: 4, Name: "manager", Level: 3, PermissionIDs: []int64{2}},
	}, nil
}

func (stubStore) ListPermissions(ctx context.Context) ([]authcache.PermissionRecord, error) {
	return []authcache.PermissionRecord{
		{ID: 2, Authority: leave.AuthorityApprove, URL: "/leave/accept"},
	}, nil
}

func (stubStore) ListRoutes(ctx context.Context) ([]authcache.RouteRecord, error) {
	return nil, nil
}

func (stubStore) ListDepartments(ctx context.Context) ([]authcache.DepartmentRecord, error) {
	return nil, nil
}

type recordingNotifier struct {
	departmentID int64
	message      string
	calls        int
}

func (n *recordingNotifier) NotifyDepartmentApprovers(ctx context.Context, departmentID int64, message string) error {
	n.departmentID = departmentID
	n.message = message
	n.calls++
	return nil
}

var (
	staffEng   = shared.Identity{ClientID: 1, Username: "alice", RoleIDs: []int64{2}, DepartmentID: 10}
	leadEng    = shared.Identity{ClientID: 2, Username: "bob", RoleIDs: []int64{3}, DepartmentID: 10}
	leadSales  = shared.Identity{ClientID: 3, Username: "carol", RoleIDs: []int64{3}, DepartmentID: 20}
	managerHQ  = shared.Identity{ClientID: 4, Username: "dana", RoleIDs: []int64{4}, DepartmentID: 30}
	staffSales = shared.Identity{ClientID: 5, Username: "evan", RoleIDs: []int64{2}, DepartmentID: 20}
)

func newService(t *testing.T) (*leave.Service, *memoryRepo, *recordingNotifier) {
	t.Helper()
	graph := authcache.NewPermissionGraph(stubStore{})
	require.NoError(t, graph.RefreshAll(context.Background()))

	repo := newMemoryRepo()
	notifier := &recordingNotifier{}
	return leave.NewService(repo, authcache.NewResolver(graph), notifier), repo, notifier
}

func file(t *testing.T, service *leave.Service, identity shared.Identity) int64 {
	t.Helper()
	id, err := service.Add(context.Background(), identity, leave.AddInput{
		Kind:    "annual",
		Reason:  "vacation",
		StartAt: time.Now().Add(24 * time.Hour),
		EndAt:   time.Now().Add(72 * time.Hour),
	})
	require.NoError(t, err)
	return id
}

func TestAddNotifiesDepartmentApprovers(t *testing.T) {
	service, _, notifier := newService(t)

	file(t, service, staffEng)

	require.Equal(t, 1, notifier.calls)
	require.Equal(t, int64(10), notifier.departmentID)
	require.Contains(t, notifier.message, "alice")
}

func TestPendingListRequiresApproveAuthority(t *testing.T) {
	service, _, _ := newService(t)

	_, err := service.PendingList(context.Background(), staffEng)
	require.ErrorIs(t, err, leave.ErrNotApprover)
}

func TestPendingListScopedToOwnDepartment(t *testing.T) {
	service, _, _ := newService(t)
	ctx := context.Background()

	file(t, service, staffEng)
	file(t, service, staffSales)

	pending, err := service.PendingList(ctx, leadEng)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, int64(10), pending[0].DepartmentID)
}

func TestPendingListSeniorRoleSeesAllDepartments(t *testing.T) {
	service, _, _ := newService(t)
	ctx := context.Background()

	file(t, service, staffEng)
	file(t, service, staffSales)

	pending, err := service.PendingList(ctx, managerHQ)
	require.NoError(t, err)
	require.Len(t, pending, 2)
}

func TestAcceptWithinOwnDepartment(t *testing.T) {
	service, repo, _ := newService(t)
	ctx := context.Background()

	id := file(t, service, staffEng)
	require.NoError(t, service.Accept(ctx, leadEng, id))

	stored, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, leave.StatusAccepted, stored.Status)
	require.Equal(t, leadEng.ClientID, stored.DecidedBy)
}

func TestAcceptForeignDepartmentNeedsSeniority(t *testing.T) {
	service, repo, _ := newService(t)
	ctx := context.Background()

	id := file(t, service, staffEng)

	require.ErrorIs(t, service.Accept(ctx, leadSales, id), leave.ErrNotApprover)
	require.NoError(t, service.Accept(ctx, managerHQ, id))

	stored, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, leave.StatusAccepted, stored.Status)
}

func TestAcceptTwiceFails(t *testing.T) {
	service, _, _ := newService(t)
	ctx := context.Background()

	id := file(t, service, staffEng)
	require.NoError(t, service.Accept(ctx, leadEng, id))
	require.ErrorIs(t, service.Reject(ctx, leadEng, id), leave.ErrNotPending)
}

func TestUpdateAndDeleteRequireOwnership(t *testing.T) {
	service, _, _ := newService(t)
	ctx := context.Background()

	id := file(t, service, staffEng)

	err := service.Update(ctx, leadEng, leave.Request{ID: id, Kind: "sick", Reason: "flu"})
	require.ErrorIs(t, err, leave.ErrNotOwner)
	require.ErrorIs(t, service.Delete(ctx, leadEng, id), leave.ErrNotOwner)

	require.NoError(t, service.Delete(ctx, staffEng, id))
	_, err = service.ListOwn(ctx, staffEng)
	require.NoError(t, err)
}

func TestDeleteDecidedRequestFails(t *testing.T) {
	service, _, _ := newService(t)
	ctx := context.Background()

	id := file(t, service, staffEng)
	require.NoError(t, service.Accept(ctx, leadEng, id))
	require.ErrorIs(t, service.Delete(ctx, staffEng, id), leave.ErrNotPending)
}
