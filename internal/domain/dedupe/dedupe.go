// Package dedupe guards a batch against records claimed by more than one group.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records which group claimed each record id.
type Deduper interface {
	// Claim atomically records owner as the claimant of id unless id is already
	// claimed. It returns the existing owner and true when id was seen before.
	Claim(ctx context.Context, id, owner string) (string, bool)

	// Owner returns the group that claimed id.
	Owner(ctx context.Context, id string) (string, bool)

	Size() int64
}

// inMemoryDeduper implements Deduper with a mutex-guarded map. Entries are
// never evicted: a forgotten claim would let a record into a second group.
type inMemoryDeduper struct {
	mu           sync.RWMutex
	owners       map[string]string
	expectedSize int
	size         atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{}
	for _, opt := range opts {
		opt(d)
	}
	d.owners = make(map[string]string, d.expectedSize)
	return d
}

func (d *inMemoryDeduper) Claim(ctx context.Context, id, owner string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, exists := d.owners[id]; exists {
		return prev, true
	}
	d.owners[id] = owner
	d.size.Add(1)
	return "", false
}

func (d *inMemoryDeduper) Owner(ctx context.Context, id string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	owner, ok := d.owners[id]
	return owner, ok
}

// Size returns the number of claimed ids.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
