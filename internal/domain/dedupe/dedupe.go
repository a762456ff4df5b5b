// Package dedupe tracks ids that were already handled within a bounded window.
package dedupe

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxSize = 10_000

// Deduper records seen ids to ensure at-most-once handling.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so it can be handled again, e.g. after it could not be enqueued.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper is bounded by an LRU cache that is never read through Get,
// so recency never changes and the oldest recorded id is evicted first.
// A non-positive max size switches to an unbounded map.
type inMemoryDeduper struct {
	maxSize int

	bounded *lru.Cache[string, struct{}]

	mu        sync.Mutex
	unbounded map[string]struct{}
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}

	if d.maxSize > 0 {
		c, err := lru.New[string, struct{}](d.maxSize)
		if err == nil {
			d.bounded = c
			return d
		}
	}
	d.unbounded = make(map[string]struct{})
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	if d.bounded != nil {
		seen, _ := d.bounded.ContainsOrAdd(id, struct{}{})
		return seen
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.unbounded[id]; ok {
		return true
	}
	d.unbounded[id] = struct{}{}
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	if d.bounded != nil {
		d.bounded.Remove(id)
		return
	}

	d.mu.Lock()
	delete(d.unbounded, id)
	d.mu.Unlock()
}

// Size returns the current number of recorded ids.
func (d *inMemoryDeduper) Size() int64 {
	if d.bounded != nil {
		return int64(d.bounded.Len())
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.unbounded))
}
