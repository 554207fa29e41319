package authcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func refreshedGraph(t *testing.T, store *stubStore) *PermissionGraph {
	t.Helper()
	graph := NewPermissionGraph(store)
	require.NoError(t, graph.RefreshAll(context.Background()))
	return graph
}

func authorities(perms []PermissionRecord) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = p.Authority
	}
	return out
}

func TestPermissionsForIsUnionAcrossRoles(t *testing.T) {
	graph := refreshedGraph(t, seededStore())

	require.Equal(t, []string{"LEAVE_READ"}, authorities(graph.PermissionsFor([]int64{2})))
	require.Equal(t, []string{"LEAVE_READ", "LEAVE_APPROVE"}, authorities(graph.PermissionsFor([]int64{2, 3})))

	// Union equals P1 ∪ P2 regardless of order and duplicates.
	require.Equal(t,
		graph.PermissionsFor([]int64{2, 3}),
		graph.PermissionsFor([]int64{3, 2, 2}),
	)
}

func TestPermissionsForEmptyInputs(t *testing.T) {
	graph := refreshedGraph(t, seededStore())

	require.Empty(t, graph.PermissionsFor(nil))
	require.Empty(t, graph.PermissionsFor([]int64{99}))
}

func TestURLOpenDefaultDeny(t *testing.T) {
	graph := refreshedGraph(t, seededStore())

	open, known := graph.URLOpen("/client")
	require.True(t, known)
	require.True(t, open)

	open, known = graph.URLOpen("/leave")
	require.True(t, known)
	require.False(t, open)

	_, known = graph.URLOpen("/never-mapped")
	require.False(t, known)
}

func TestRoutesForRole(t *testing.T) {
	graph := refreshedGraph(t, seededStore())

	staff := graph.RoutesFor(2)
	require.Len(t, staff, 1)
	require.Equal(t, "/leave", staff[0].Path)

	manager := graph.RoutesFor(3)
	require.Len(t, manager, 2)

	require.Empty(t, graph.RoutesFor(42))
}

func TestGraphRefreshRolesKeepsDepartments(t *testing.T) {
	store := seededStore()
	graph := refreshedGraph(t, store)

	store.mu.Lock()
	store.roles[1].PermissionIDs = []int64{1, 2}
	store.departments[0].Name = "Renamed"
	store.mu.Unlock()

	require.NoError(t, graph.RefreshRoles(context.Background()))

	// Role slice refreshed.
	require.Equal(t, []string{"LEAVE_READ", "LEAVE_APPROVE"}, authorities(graph.PermissionsFor([]int64{2})))

	// Department mapping untouched by a role-only refresh.
	dept, ok := graph.Department(10)
	require.True(t, ok)
	require.Equal(t, "Engineering", dept.Name)

	require.NoError(t, graph.RefreshAll(context.Background()))
	dept, ok = graph.Department(10)
	require.True(t, ok)
	require.Equal(t, "Renamed", dept.Name)
}

func TestGraphRefreshFailureKeepsSnapshot(t *testing.T) {
	store := seededStore()
	graph := refreshedGraph(t, store)

	store.setFail(true)
	err := graph.RefreshAll(context.Background())
	require.ErrorIs(t, err, shared.ErrBackingStoreUnavailable)

	_, ok := graph.Role(2)
	require.True(t, ok)
	require.NotEmpty(t, graph.PermissionsFor([]int64{2}))
}

func TestGraphRefreshIdempotent(t *testing.T) {
	store := seededStore()
	graph := refreshedGraph(t, store)
	first := graph.snap.Load()

	require.NoError(t, graph.RefreshAll(context.Background()))
	second := graph.snap.Load()

	require.Equal(t, first.urlOpen, second.urlOpen)
	require.Equal(t, first.permsByRole, second.permsByRole)
	require.Equal(t, first.routesByRole, second.routesByRole)
	require.Equal(t, len(first.roles), len(second.roles))
	for id, role := range first.roles {
		require.Equal(t, *role, *second.roles[id])
	}
}

func TestGraphSnapshotNeverMixed(t *testing.T) {
	store := seededStore()
	graph := refreshedGraph(t, store)
	old := graph.snap.Load()

	store.mu.Lock()
	store.perms = append(store.perms, PermissionRecord{ID: 4, Authority: "PROCURE_READ", URL: "/procurement"})
	store.roles[2].PermissionIDs = append(store.roles[2].PermissionIDs, 4)
	store.mu.Unlock()
	require.NoError(t, graph.RefreshAll(context.Background()))

	_, known := old.urlOpen["/procurement"]
	require.False(t, known, "old snapshot must not contain new entries")

	fresh := graph.snap.Load()
	_, known = fresh.urlOpen["/procurement"]
	require.True(t, known)
}

func TestEveryClientRoleResolvesAfterRefresh(t *testing.T) {
	store := seededStore()
	graph := refreshedGraph(t, store)
	dir := NewClientDirectory(store)
	require.NoError(t, dir.RefreshAll(context.Background()))

	for _, name := range []string{"alice", "bob"} {
		client, ok := dir.Get(name)
		require.True(t, ok)
		for _, roleID := range client.RoleIDs {
			_, ok := graph.Role(roleID)
			require.True(t, ok, "client %s references role %d not present in graph", name, roleID)
		}
	}
}
