// Package hashtable implements BucketedHashTable: a fixed-capacity,
// open-addressed hash table keyed by canonical k-mer, with one spin-lock
// guarding each group of LockGroupSize buckets.
//
// The hashing strategy (hash/maphash with a table-local seed) mirrors
// pkg/shard.go's shard.hash() in the teacher repo; the sharded-lock
// striping is cross-checked against the bucket-mutex layout used by
// other_examples' maypok86/otter hashmap and gramework's threadsafe
// hashmap, adapted here to a spin-lock because bucket critical sections
// are a handful of instructions (a bounded linear probe), not worth a
// full mutex park/wake cycle.
//
// © 2025 dbgbuilder authors. MIT License.
package hashtable

import (
	"errors"
	"hash/maphash"
	"runtime"
	"sync/atomic"

	"github.com/mccortex/dbgbuilder/internal/bitpack"
)

// VertexId identifies a vertex by its bucket index in the table. It is
// opaque to callers beyond equality/array-indexing use.
type VertexId uint64

// LockGroupSize is the number of buckets covered by a single spin-lock
// (spec §4.1: "64 buckets/lock").
const LockGroupSize = 64

// DefaultProbeWindow bounds how many consecutive buckets find_or_insert
// will scan before declaring the table full.
const DefaultProbeWindow = 8

// ErrTableFull is returned by FindOrInsert when the bounded probe window is
// exhausted without finding a match or a free slot. Per spec §7 this is a
// fatal condition for the ingestion pipeline.
var ErrTableFull = errors.New("hashtable: probe window exhausted, table full")

type spinlock struct {
	held atomic.Bool
}

func (s *spinlock) Lock() {
	for !s.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (s *spinlock) Unlock() {
	s.held.Store(false)
}

type bucket struct {
	kmer     bitpack.Kmer
	occupied atomic.Uint32 // 0 = empty, 1 = occupied; transitions 0->1 exactly once
}

// Table is the BucketedHashTable described in spec §4.1.
type Table struct {
	buckets     []bucket
	locks       []spinlock
	seed        maphash.Seed
	capacity    uint64
	probeWindow int
	count       atomic.Uint64
}

// New allocates a table with room for `capacity` buckets. Callers should
// size capacity so the expected load factor stays <= 0.75 (spec §4.1).
func New(capacity uint64, probeWindow int) *Table {
	if capacity == 0 {
		capacity = 1
	}
	if probeWindow <= 0 {
		probeWindow = DefaultProbeWindow
	}
	numGroups := (capacity + LockGroupSize - 1) / LockGroupSize
	return &Table{
		buckets:     make([]bucket, capacity),
		locks:       make([]spinlock, numGroups),
		seed:        maphash.MakeSeed(),
		capacity:    capacity,
		probeWindow: probeWindow,
	}
}

// Capacity returns the fixed number of buckets.
func (t *Table) Capacity() uint64 { return t.capacity }

// Len returns the number of occupied buckets.
func (t *Table) Len() uint64 { return t.count.Load() }

// FillRatio returns Len()/Capacity(), useful for the debug-only integrity
// checks described in spec §7.
func (t *Table) FillRatio() float64 {
	return float64(t.count.Load()) / float64(t.capacity)
}

func (t *Table) hash(k bitpack.Kmer) uint64 {
	b := k.Bytes()
	return maphash.Bytes(t.seed, b[:])
}

func (t *Table) lockFor(idx uint64) *spinlock {
	return &t.locks[idx/LockGroupSize]
}

// FindOrInsert probes a bounded linear window starting at hash(key)%capacity.
// For each bucket it examines it takes the spin-lock covering that bucket,
// checks occupancy under the lock, and either returns the existing vertex or
// claims the first free bucket in the window. If the window is exhausted
// without success, it returns ErrTableFull — a fatal condition per spec §7.
func (t *Table) FindOrInsert(key bitpack.Kmer) (VertexId, bool, error) {
	start := t.hash(key) % t.capacity

	for i := 0; i < t.probeWindow; i++ {
		idx := (start + uint64(i)) % t.capacity
		lk := t.lockFor(idx)
		lk.Lock()
		b := &t.buckets[idx]
		if b.occupied.Load() == 1 {
			match := b.kmer.Equal(key)
			lk.Unlock()
			if match {
				return VertexId(idx), false, nil
			}
			continue
		}
		// Free slot: write the kmer bytes first, then publish occupancy with
		// a release store so concurrent lock-free Find() calls that observe
		// occupied==1 also observe the written kmer (spec §4.1 ordering
		// guarantee; spec §5 "acquire/release such that a find observing
		// occupied=true also observes the written kmer bytes").
		b.kmer = key
		b.occupied.Store(1)
		t.count.Add(1)
		lk.Unlock()
		return VertexId(idx), true, nil
	}
	return 0, false, ErrTableFull
}

// Find performs a lock-free lookup. It relies on the release/acquire pair
// established by FindOrInsert: an occupied==1 observation here happens
// after the corresponding kmer write.
func (t *Table) Find(key bitpack.Kmer) (VertexId, bool) {
	start := t.hash(key) % t.capacity
	for i := 0; i < t.probeWindow; i++ {
		idx := (start + uint64(i)) % t.capacity
		b := &t.buckets[idx]
		if b.occupied.Load() == 0 {
			// Open addressing with no deletion: an empty slot in the probe
			// sequence proves the key was never inserted, since insertion
			// always claims the first free slot it encounters.
			return 0, false
		}
		if b.kmer.Equal(key) {
			return VertexId(idx), true
		}
	}
	return 0, false
}

// Kmer returns the canonical kmer stored at vertex id. Used by collaborators
// iterating vertices to write the graph binary format (spec §6).
func (t *Table) Kmer(id VertexId) bitpack.Kmer {
	return t.buckets[id].kmer
}

// Occupied reports whether the bucket at id has been claimed.
func (t *Table) Occupied(id VertexId) bool {
	return t.buckets[id].occupied.Load() == 1
}
