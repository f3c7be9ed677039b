package memory

import (
	"context"
	"sync"

	"toytrade/internal/domain/catalog"
)

// ListingDirectory is an in-memory catalog lookup seeded from fixtures.
type ListingDirectory struct {
	mu    sync.RWMutex
	items map[string]catalog.ListingSummary
}

func NewListingDirectory() *ListingDirectory {
	return &ListingDirectory{items: make(map[string]catalog.ListingSummary)}
}

// Put stores or replaces a listing summary.
func (d *ListingDirectory) Put(listing catalog.ListingSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items[listing.ID] = listing
}

func (d *ListingDirectory) ListingByID(ctx context.Context, id string) (catalog.ListingSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	listing, ok := d.items[id]
	if !ok {
		return catalog.ListingSummary{}, catalog.ErrListingNotFound
	}
	return listing, nil
}

// UserDirectory is an in-memory account lookup. Unknown users resolve to a
// bare summary rather than an error so chat keeps working when the account
// service has stale data.
type UserDirectory struct {
	mu    sync.RWMutex
	items map[string]catalog.UserSummary
}

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{items: make(map[string]catalog.UserSummary)}
}

func (d *UserDirectory) Put(user catalog.UserSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items[user.ID] = user
}

func (d *UserDirectory) UserByID(ctx context.Context, id string) (catalog.UserSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.items[id]
	if !ok {
		return catalog.UserSummary{ID: id}, nil
	}
	return user, nil
}

var (
	_ catalog.ListingDirectory = (*ListingDirectory)(nil)
	_ catalog.UserDirectory    = (*UserDirectory)(nil)
)
