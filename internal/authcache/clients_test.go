package authcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func TestClientDirectoryLookups(t *testing.T) {
	store := seededStore()
	dir := NewClientDirectory(store)
	require.NoError(t, dir.RefreshAll(context.Background()))

	alice, ok := dir.Get("alice")
	require.True(t, ok)
	require.Equal(t, int64(1), alice.ID)
	require.Equal(t, []int64{2}, alice.RoleIDs)

	byID, ok := dir.GetByID(2)
	require.True(t, ok)
	require.Equal(t, "bob", byID.Username)

	_, ok = dir.Get("mallory")
	require.False(t, ok)
}

func TestClientDirectoryGetIsIdempotent(t *testing.T) {
	store := seededStore()
	dir := NewClientDirectory(store)
	require.NoError(t, dir.RefreshAll(context.Background()))

	first, ok := dir.Get("alice")
	require.True(t, ok)
	second, ok := dir.Get("alice")
	require.True(t, ok)
	require.Equal(t, first, second)
}

func TestClientDirectoryNamesCollated(t *testing.T) {
	store := seededStore()
	dir := NewClientDirectory(store)
	require.NoError(t, dir.RefreshAll(context.Background()))

	names := dir.Names()
	require.Equal(t, []ClientName{
		{ID: 1, DisplayName: "Alice Chen"},
		{ID: 2, DisplayName: "Bob Lin"},
	}, names)
}

func TestClientDirectoryRefreshOneLeavesOthersUntouched(t *testing.T) {
	store := seededStore()
	dir := NewClientDirectory(store)
	require.NoError(t, dir.RefreshAll(context.Background()))

	bobBefore, ok := dir.Get("bob")
	require.True(t, ok)

	store.mu.Lock()
	store.clients[0].PasswordHash = "rotated"
	store.mu.Unlock()

	require.NoError(t, dir.RefreshOne(context.Background(), "alice"))

	alice, ok := dir.Get("alice")
	require.True(t, ok)
	require.Equal(t, "rotated", alice.PasswordHash)

	bobAfter, ok := dir.Get("bob")
	require.True(t, ok)
	require.Equal(t, bobBefore, bobAfter)
}

func TestClientDirectoryRefreshOneDropsDeactivated(t *testing.T) {
	store := seededStore()
	dir := NewClientDirectory(store)
	require.NoError(t, dir.RefreshAll(context.Background()))

	store.mu.Lock()
	store.clients[1].Active = false
	store.mu.Unlock()

	require.NoError(t, dir.RefreshOne(context.Background(), "bob"))

	_, ok := dir.Get("bob")
	require.False(t, ok)
	_, ok = dir.GetByID(2)
	require.False(t, ok)
	require.Len(t, dir.Names(), 1)
}

func TestClientDirectoryRefreshFailureKeepsSnapshot(t *testing.T) {
	store := seededStore()
	dir := NewClientDirectory(store)
	require.NoError(t, dir.RefreshAll(context.Background()))

	store.setFail(true)
	err := dir.RefreshAll(context.Background())
	require.ErrorIs(t, err, shared.ErrBackingStoreUnavailable)

	alice, ok := dir.Get("alice")
	require.True(t, ok)
	require.Equal(t, "alice", alice.Username)
}

func TestClientDirectoryRefreshIdempotent(t *testing.T) {
	store := seededStore()
	dir := NewClientDirectory(store)
	require.NoError(t, dir.RefreshAll(context.Background()))
	first := dir.snap.Load()

	require.NoError(t, dir.RefreshAll(context.Background()))
	second := dir.snap.Load()

	require.Equal(t, first.names, second.names)
	require.Equal(t, len(first.byUsername), len(second.byUsername))
	for name, record := range first.byUsername {
		require.Equal(t, *record, *second.byUsername[name])
	}
}

func TestClientDirectorySnapshotNeverMixed(t *testing.T) {
	store := seededStore()
	dir := NewClientDirectory(store)
	require.NoError(t, dir.RefreshAll(context.Background()))

	old := dir.snap.Load()

	store.mu.Lock()
	store.clients[0].Email = "new@meridian.local"
	store.clients[1].Email = "new2@meridian.local"
	store.mu.Unlock()
	require.NoError(t, dir.RefreshAll(context.Background()))

	// A reader holding the old snapshot sees only old entries.
	require.Equal(t, "alice@meridian.local", old.byUsername["alice"].Email)
	require.Equal(t, "bob@meridian.local", old.byUsername["bob"].Email)

	// A reader starting after the refresh sees only new entries.
	fresh := dir.snap.Load()
	require.Equal(t, "new@meridian.local", fresh.byUsername["alice"].Email)
	require.Equal(t, "new2@meridian.local", fresh.byUsername["bob"].Email)
}
