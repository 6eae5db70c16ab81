// Package arena implements the append-only byte arena backing PathStore:
// a single fixed-capacity byte slice with a CAS-advanced cursor, handing
// out byte ranges that the caller fills in place.
//
// Unlike the teacher's arena package, this one cannot build on Go's
// experimental goexperiment.arenas API: PathRecords need stable integer
// byte offsets that outlive individual allocations and are stored inside
// other records (PathIndex.prev) and compared/CAS'd directly, something
// the typed, pointer-based experimental arena cannot express. The design
// instead follows original_source/src/paths/packed_path.c's pstore cursor:
// a single atomically-advanced byte offset into one flat buffer.
//
// © 2025 dbgbuilder authors. MIT License.
package arena

import (
	"errors"
	"sync/atomic"
)

// ErrOutOfSpace is returned by Alloc when the request would exceed the
// arena's fixed capacity. Per spec §7 this is a fatal condition for the
// caller (PathStore has no compaction or growth during ingestion).
var ErrOutOfSpace = errors.New("arena: out of space")

// Padding is the number of guaranteed-present bytes reserved past the
// logical end of the arena's allocatable region, matching
// original_source's PSTORE_PADDING so a reader may always over-read a
// bounded record header without special-casing the final record.
const Padding = 16

// Arena is a fixed-capacity, append-only byte buffer. Alloc reserves a byte
// range via a single CAS-advanced cursor; the returned range belongs
// exclusively to the caller and is never revisited or moved by the arena
// itself (no compaction, no relocation — PathStore is strictly append-only
// for the lifetime of a build, spec §4.3).
type Arena struct {
	buf    []byte
	cursor atomic.Uint64

	// tmpBase/tmpLen/tmpUsed describe a scratch region carved out of the
	// tail of buf by SetupTmp for staging an offline merge pass (spec §6's
	// optional post-build path merge). While active, Alloc's capacity
	// check treats tmpBase as the effective end of the allocatable region.
	tmpBase uint64
	tmpLen  uint64
	tmpUsed bool
}

// New allocates an arena with a fixed backing buffer of the given capacity
// in bytes, plus Padding bytes reserved at the tail.
func New(capacity int) *Arena {
	if capacity < 0 {
		capacity = 0
	}
	return &Arena{buf: make([]byte, capacity+Padding)}
}

// effectiveCapacity is the number of bytes Alloc may hand out, excluding
// the trailing Padding and any active tmp region.
func (a *Arena) effectiveCapacity() uint64 {
	total := uint64(len(a.buf)) - Padding
	if a.tmpUsed {
		return a.tmpBase
	}
	return total
}

// Alloc reserves n contiguous bytes and returns the byte offset at which
// they begin. The reservation is linearized by a CAS loop on the arena's
// cursor: every successful Alloc call observes a disjoint range from every
// other, even under concurrent callers (spec §5's "PathStore allocation is
// lock-free and linearizable via CAS").
func (a *Arena) Alloc(n int) (offset uint64, err error) {
	if n < 0 {
		n = 0
	}
	size := uint64(n)
	capEnd := a.effectiveCapacity()
	for {
		old := a.cursor.Load()
		newCursor := old + size
		if newCursor > capEnd {
			return 0, ErrOutOfSpace
		}
		if a.cursor.CompareAndSwap(old, newCursor) {
			return old, nil
		}
	}
}

// Bytes returns a mutable view of the n bytes starting at offset. The
// caller must have obtained offset (and a range at least n bytes wide) from
// a prior successful Alloc or SetupTmp call.
func (a *Arena) Bytes(offset uint64, n int) []byte {
	return a.buf[offset : offset+uint64(n)]
}

// Len returns the number of bytes committed so far (the current cursor
// position), not counting any active tmp region.
func (a *Arena) Len() uint64 { return a.cursor.Load() }

// Cap returns the total allocatable capacity, excluding Padding and any
// active tmp region.
func (a *Arena) Cap() uint64 { return a.effectiveCapacity() }

// SetupTmp carves out `size` bytes from the tail of the arena's unused
// region for exclusive use as merge-pass scratch space (spec §6's optional
// offline path merge, grounded on original_source's packed_path.c
// temporary-buffer handling for collapsing redundant paths). While a tmp
// region is active, ordinary Alloc calls can never grow into it. Returns
// ErrOutOfSpace if fewer than size unused bytes remain.
func (a *Arena) SetupTmp(size int) (offset uint64, err error) {
	if a.tmpUsed {
		return 0, errors.New("arena: tmp region already active")
	}
	total := uint64(len(a.buf)) - Padding
	used := a.cursor.Load()
	if total-used < uint64(size) {
		return 0, ErrOutOfSpace
	}
	base := total - uint64(size)
	a.tmpBase = base
	a.tmpLen = uint64(size)
	a.tmpUsed = true
	return base, nil
}

// ReleaseTmp returns the scratch region carved out by SetupTmp to the pool
// of space Alloc may use. Must be called only after the merge pass that
// required the scratch space has finished reading from it.
func (a *Arena) ReleaseTmp() {
	a.tmpUsed = false
	a.tmpBase = 0
	a.tmpLen = 0
}
