// Package egpdedup implements the bounded, content-addressed interning
// layer described in spec §4.1 (ObjectDeduplicator) and §3.4 (the family of
// per-kind deduplicators: type tuples, ref lists, endpoint refs, frozen
// graphs, signatures, small integers, UUIDs, TypeDef objects).
//
// Each Deduplicator[T] wraps a github.com/hashicorp/golang-lru/v2 cache
// (adopted from the wider example pack in place of the teacher's hand-rolled
// container/list LRU in pkg/cache/query_cache.go, since the spec calls for
// several independent bounded caches of exactly this shape) keyed on T
// itself: T must be comparable, so equal values collide to the same slot and
// Get returns the first-inserted instance for every subsequent equal value.
package egpdedup

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erasmus-gp/egpcore/pkg/egperr"
)

// Deduplicator is a bounded LRU content-addressed intern table. Get(v)
// returns an existing equal value if one is cached, otherwise inserts v and
// returns it. A cache Size of 0 makes the deduplicator a pass-through: Get
// always returns its argument unchanged and never stores anything.
type Deduplicator[T comparable] struct {
	name    string
	size    int
	cache   *lru.Cache[T, T]
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// New constructs a Deduplicator. size <= 0 means pass-through (no storage).
func New[T comparable](name string, size int) *Deduplicator[T] {
	d := &Deduplicator[T]{name: name, size: size}
	if size > 0 {
		c, err := lru.New[T, T](size)
		if err != nil {
			// Only returned by golang-lru for size <= 0, which we've already
			// excluded above; keep the deduplicator functional as a
			// pass-through rather than propagating an impossible error.
			d.size = 0
			return d
		}
		d.cache = c
	}
	return d
}

// Name returns the deduplicator's name, used in Info() reports.
func (d *Deduplicator[T]) Name() string { return d.name }

// Get returns the canonical stored instance equal to v, inserting v if no
// equal value is cached yet. It returns egperr.ErrInvariantViolation if v
// implements Freezable but is not frozen (a caller bug: see spec §9's
// freezable protocol and §4.1's failure mode).
func (d *Deduplicator[T]) Get(v T) (T, error) {
	if !IsFrozen(v) {
		var zero T
		return zero, fmt.Errorf("egpdedup: %s: %w: value is not frozen", d.name, egperr.ErrInvariantViolation)
	}
	if d.cache == nil {
		return v, nil
	}
	if existing, ok := d.cache.Get(v); ok {
		d.hits.Add(1)
		return existing, nil
	}
	d.misses.Add(1)
	d.cache.Add(v, v)
	return v, nil
}

// Len returns the number of values currently cached.
func (d *Deduplicator[T]) Len() int {
	if d.cache == nil {
		return 0
	}
	return d.cache.Len()
}

// Stats returns (hits, misses) observed so far.
func (d *Deduplicator[T]) Stats() (hits, misses uint64) {
	return d.hits.Load(), d.misses.Load()
}

// HitRate returns hits / (hits + misses), or 0 when no lookups were made.
func (d *Deduplicator[T]) HitRate() float64 {
	hits, misses := d.Stats()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Info formats a one-line report, mirroring the original's
// format_deduplicator_info helper (spec SUPPLEMENTED FEATURES §4).
func (d *Deduplicator[T]) Info() string {
	hits, misses := d.Stats()
	return fmt.Sprintf("%s: size=%d hits=%d misses=%d rate=%.1f%%",
		d.name, d.Len(), hits, misses, d.HitRate()*100)
}
