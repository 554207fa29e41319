package authcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func newCoordinator(t *testing.T, store *stubStore) *Coordinator {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	coord := NewCoordinator(
		NewClientDirectory(store),
		NewPermissionGraph(store),
		NewRevocationSet(client, time.Hour),
		nil,
		nil,
	)
	require.NoError(t, coord.Warm(context.Background()))
	return coord
}

func TestCoordinatorWarmLoadsEverything(t *testing.T) {
	coord := newCoordinator(t, seededStore())

	_, ok := coord.GetClient("alice")
	require.True(t, ok)
	_, ok = coord.Role(2)
	require.True(t, ok)
	_, ok = coord.Department(10)
	require.True(t, ok)
}

func TestCoordinatorRefreshByName(t *testing.T) {
	store := seededStore()
	coord := newCoordinator(t, store)

	store.mu.Lock()
	store.clients[0].DisplayName = "Alice Renamed"
	store.mu.Unlock()

	require.NoError(t, coord.Refresh(context.Background(), CacheClient))
	alice, ok := coord.GetClient("alice")
	require.True(t, ok)
	require.Equal(t, "Alice Renamed", alice.DisplayName)
}

func TestCoordinatorRefreshUnknownNameFails(t *testing.T) {
	store := seededStore()
	coord := newCoordinator(t, store)

	before := store.loads
	err := coord.Refresh(context.Background(), "unknown-name")
	require.ErrorIs(t, err, shared.ErrUnknownCache)
	require.Equal(t, before, store.loads, "a failed name lookup must not touch any cache")

	// All three sub-caches still answer from their previous snapshots.
	_, ok := coord.GetClient("alice")
	require.True(t, ok)
	_, ok = coord.Role(2)
	require.True(t, ok)
}

func TestCoordinatorRefreshAllReportsPartialFailure(t *testing.T) {
	store := seededStore()
	coord := newCoordinator(t, store)

	store.setFail(true)
	err := coord.RefreshAll(context.Background())
	require.ErrorIs(t, err, shared.ErrBackingStoreUnavailable)

	// Previous snapshots survive a failed refresh.
	_, ok := coord.GetClient("bob")
	require.True(t, ok)
	require.NotEmpty(t, coord.RolePermissions(2))
}

func TestCoordinatorTokenBlacklistPassThrough(t *testing.T) {
	coord := newCoordinator(t, seededStore())
	ctx := context.Background()

	require.False(t, coord.ExistsTokenBlacklist(ctx, "tok"))
	require.NoError(t, coord.AddTokenBlacklist(ctx, "tok", time.Now().Add(time.Minute)))
	require.True(t, coord.ExistsTokenBlacklist(ctx, "tok"))
}

func TestCoordinatorRefreshClientTargeted(t *testing.T) {
	store := seededStore()
	coord := newCoordinator(t, store)

	store.mu.Lock()
	store.clients[0].PasswordHash = "rotated"
	store.mu.Unlock()

	bobBefore, _ := coord.GetClient("bob")
	require.NoError(t, coord.RefreshClient(context.Background(), "alice"))

	alice, _ := coord.GetClient("alice")
	require.Equal(t, "rotated", alice.PasswordHash)
	bobAfter, _ := coord.GetClient("bob")
	require.Equal(t, bobBefore, bobAfter)
}

type recordingObserver struct {
	calls []string
}

func (r *recordingObserver) ObserveRefresh(cache string, d time.Duration, err error) {
	r.calls = append(r.calls, cache)
}

func TestCoordinatorObserverSeesEveryRefresh(t *testing.T) {
	store := seededStore()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	obs := &recordingObserver{}
	coord := NewCoordinator(
		NewClientDirectory(store),
		NewPermissionGraph(store),
		NewRevocationSet(client, time.Hour),
		nil,
		obs,
	)
	require.NoError(t, coord.RefreshAll(context.Background()))
	require.Equal(t, []string{CacheClient, CacheRolePermission, CacheTokenBlacklist}, obs.calls)
}
