// Package inmemory provides a map-backed export archive, used when no database
// is configured and in tests.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/papercomputeco/voxtap/pkg/storage"
)

// Driver implements storage.Driver with a map keyed by call id.
type Driver struct {
	mu      sync.RWMutex
	entries map[string]*storage.Entry
	now     func() time.Time
}

// NewDriver creates an empty in-memory archive.
func NewDriver() *Driver {
	return &Driver{
		entries: make(map[string]*storage.Entry),
		now:     time.Now,
	}
}

// Put upserts entry. CreatedAt of an existing entry is preserved.
func (d *Driver) Put(_ context.Context, entry *storage.Entry) error {
	if entry == nil || entry.CallID == "" {
		return storage.ErrNilEntry
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	stored := *entry
	stored.UpdatedAt = now
	if prev, ok := d.entries[entry.CallID]; ok {
		stored.CreatedAt = prev.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}

	d.entries[entry.CallID] = &stored
	return nil
}

// Get returns a copy of the entry archived under callID.
func (d *Driver) Get(_ context.Context, callID string) (*storage.Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.entries[callID]
	if !ok {
		return nil, storage.NotFoundError{CallID: callID}
	}
	cp := *e
	return &cp, nil
}

// List returns copies of the matching entries, newest first.
func (d *Driver) List(_ context.Context, opts storage.ListOptions) ([]*storage.Entry, error) {
	d.mu.RLock()
	out := make([]*storage.Entry, 0, len(d.entries))
	for _, e := range d.entries {
		if opts.Matches(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CallID > out[j].CallID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}
