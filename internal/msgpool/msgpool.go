// Package msgpool implements MessagePool: a bounded multi-producer,
// multi-consumer ring buffer guarded by a pair of weighted semaphores
// (free-slots, filled-slots) plus a mutex over the ring indices, as
// described in spec §4.4.
//
// golang.org/x/sync is already part of the teacher's dependency graph
// (used there for singleflight in pkg/loader.go); MessagePool draws on its
// sibling semaphore package instead of a bare buffered channel because the
// design calls for an explicit, queryable free/filled slot count (used by
// Occupancy for stats/metrics) rather than channel length, which races
// under concurrent send/receive.
//
// © 2025 dbgbuilder authors. MIT License.
package msgpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Push once the pool has been closed, and by Pop
// once the pool is both closed and drained.
var ErrClosed = errors.New("msgpool: pool is closed")

// Pool is a bounded ring buffer of items of type T. Producers block in
// Push when the ring is full; consumers block in Pop when it is empty.
// Close wakes every blocked consumer; subsequent Pop calls drain whatever
// remains, then return ok=false once empty (spec §4.4: "dequeue returns
// None once empty and closed").
type Pool[T any] struct {
	slots    []T
	capacity int

	mu   sync.Mutex
	head int
	tail int
	n    int

	freeSlots   *semaphore.Weighted
	filledSlots *semaphore.Weighted
	closed      atomic.Bool
}

// New constructs a Pool with room for `capacity` in-flight items
// (MSGPOOLRSIZE in spec §4.4).
func New[T any](capacity int) *Pool[T] {
	if capacity <= 0 {
		capacity = 1
	}
	// filledSlots has one permit beyond capacity for Close to hand out, and
	// starts with every permit held so Pop blocks until Push releases one.
	filled := semaphore.NewWeighted(int64(capacity) + 1)
	filled.TryAcquire(int64(capacity) + 1)
	return &Pool[T]{
		slots:       make([]T, capacity),
		capacity:    capacity,
		freeSlots:   semaphore.NewWeighted(int64(capacity)),
		filledSlots: filled,
	}
}

// Push enqueues item, blocking until a slot is free or ctx is done. Returns
// ErrClosed if the pool was (or became) closed while waiting.
func (p *Pool[T]) Push(ctx context.Context, item T) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := p.freeSlots.Acquire(ctx, 1); err != nil {
		return err
	}
	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		p.freeSlots.Release(1)
		return ErrClosed
	}
	p.slots[p.tail] = item
	p.tail = (p.tail + 1) % p.capacity
	p.n++
	p.mu.Unlock()
	p.filledSlots.Release(1)
	return nil
}

// Pop dequeues the oldest pushed item, blocking until one is available, the
// pool is closed and drained, or ctx is done. ok is false only once the
// pool is closed and empty; a non-nil err indicates ctx was cancelled.
func (p *Pool[T]) Pop(ctx context.Context) (item T, ok bool, err error) {
	for {
		if aerr := p.filledSlots.Acquire(ctx, 1); aerr != nil {
			var zero T
			return zero, false, aerr
		}
		p.mu.Lock()
		if p.n == 0 {
			// Close() released one extra filledSlots permit; with nothing
			// actually queued, pass it on so the next blocked consumer also
			// wakes, and report drained.
			p.mu.Unlock()
			p.filledSlots.Release(1)
			var zero T
			return zero, false, nil
		}
		item = p.slots[p.head]
		var zero T
		p.slots[p.head] = zero
		p.head = (p.head + 1) % p.capacity
		p.n--
		p.mu.Unlock()
		p.freeSlots.Release(1)
		return item, true, nil
	}
}

// Close marks the pool closed and wakes every goroutine blocked in Pop.
// Idempotent.
func (p *Pool[T]) Close() {
	if p.closed.CompareAndSwap(false, true) {
		p.filledSlots.Release(1)
	}
}

// Occupancy returns the current number of queued items, for stats/metrics
// reporting (not the ingestion hot path).
func (p *Pool[T]) Occupancy() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

// Capacity returns the pool's fixed slot count.
func (p *Pool[T]) Capacity() int { return p.capacity }
