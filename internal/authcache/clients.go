package authcache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ClientDirectory caches identity records keyed by username and id. All
// reads resolve against an immutable snapshot; refreshes build the
// replacement aside and publish it with one atomic pointer swap.
type ClientDirectory struct {
	store Store

	// mu serializes writers (full and targeted refreshes). Readers never
	// take it; they load the snapshot pointer.
	mu     sync.Mutex
	snap   atomic.Pointer[clientSnapshot]
	flight singleflight.Group
}

type clientSnapshot struct {
	byUsername map[string]*ClientRecord
	byID       map[int64]*ClientRecord
	names      []ClientName
}

// NewClientDirectory constructs an empty directory. Call RefreshAll to
// perform the eager initial load.
func NewClientDirectory(store Store) *ClientDirectory {
	d := &ClientDirectory{store: store}
	d.snap.Store(emptyClientSnapshot())
	return d
}

func emptyClientSnapshot() *clientSnapshot {
	return &clientSnapshot{
		byUsername: map[string]*ClientRecord{},
		byID:       map[int64]*ClientRecord{},
	}
}

// Get returns the cached record for username. The second result is false
// when the backing store had no matching active row at last refresh.
func (d *ClientDirectory) Get(username string) (ClientRecord, bool) {
	record, ok := d.snap.Load().byUsername[username]
	if !ok {
		return ClientRecord{}, false
	}
	return *record, true
}

// GetByID returns the cached record for the given client id.
func (d *ClientDirectory) GetByID(id int64) (ClientRecord, bool) {
	record, ok := d.snap.Load().byID[id]
	if !ok {
		return ClientRecord{}, false
	}
	return *record, true
}

// Names returns the (id, display name) listing, collated by display name.
// The slice is a copy and snapshot-consistent at call time.
func (d *ClientDirectory) Names() []ClientName {
	names := d.snap.Load().names
	out := make([]ClientName, len(names))
	copy(out, names)
	return out
}

// RefreshAll reloads the whole directory. Concurrent calls coalesce into a
// single flight; a failure keeps the previous snapshot intact.
func (d *ClientDirectory) RefreshAll(ctx context.Context) error {
	_, err, _ := d.flight.Do("all", func() (any, error) {
		clients, err := d.store.ListActiveClients(ctx)
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		d.snap.Store(buildClientSnapshot(clients))
		return nil, nil
	})
	return err
}

// RefreshOne reloads a single record after a targeted mutation. When the
// backing store no longer has a matching active row the entry is dropped.
// Writers are serialized with RefreshAll; whichever publishes last wins,
// which is safe because both publish complete snapshots.
func (d *ClientDirectory) RefreshOne(ctx context.Context, username string) error {
	_, err, _ := d.flight.Do("one:"+username, func() (any, error) {
		record, err := d.store.GetClientByUsername(ctx, username)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}

		d.mu.Lock()
		defer d.mu.Unlock()

		current := d.snap.Load()
		next := emptyClientSnapshot()
		for name, existing := range current.byUsername {
			if name == username {
				continue
			}
			next.byUsername[name] = existing
			next.byID[existing.ID] = existing
		}
		if record != nil {
			next.byUsername[record.Username] = record
			next.byID[record.ID] = record
		}
		next.names = collateNames(next.byUsername)
		d.snap.Store(next)
		return nil, nil
	})
	return err
}

func buildClientSnapshot(clients []ClientRecord) *clientSnapshot {
	next := emptyClientSnapshot()
	for i := range clients {
		record := clients[i]
		next.byUsername[record.Username] = &record
		next.byID[record.ID] = &record
	}
	next.names = collateNames(next.byUsername)
	return next
}

func collateNames(byUsername map[string]*ClientRecord) []ClientName {
	names := make([]ClientName, 0, len(byUsername))
	for _, record := range byUsername {
		names = append(names, ClientName{ID: record.ID, DisplayName: record.DisplayName})
	}
	c := collate.New(language.Und)
	sort.Slice(names, func(i, j int) bool {
		if cmp := c.CompareString(names[i].DisplayName, names[j].DisplayName); cmp != 0 {
			return cmp < 0
		}
		return names[i].ID < names[j].ID
	})
	return names
}
