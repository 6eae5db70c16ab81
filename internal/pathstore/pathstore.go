// Package pathstore implements PathStore: a packed, append-only record
// arena recording the "extra" path information attached to junction
// k-mers, plus the per-vertex CAS-linked list (PathIndex) threading all
// records that originate at a given vertex.
//
// Record layout, unchanged in spirit from original_source's
// src/kmer/path_store.c ("{[1:uint64_t prev][N:uint8_t col_bitfield]
// [1:uint16_t len][M:uint8_t data]}.."):
//
//	offset 0              : prev         uint64 (PathNull if this is a list head)
//	offset 8              : colset       [ColsetBytes()]byte, one bit per colour
//	offset 8+colsetBytes  : len_and_orient uint16 (15-bit length, 1-bit start orientation)
//	offset 8+colsetBytes+2: packed bases, 2 bits each, ceil(length/4) bytes
//
// len_and_orient's orientation bit records which strand of the root vertex
// the walk that produced this record started from: path_store_find's dedup
// key is <PathLen><PackedSeq>, but original_source's PathLen field is
// actually this combined length/orientation word, so two walks of the same
// bases starting from opposite strands of one canonical vertex are distinct
// records, not merged.
//
// Unlike the original, colour-subset remapping across input files (the
// FileFilter cross-colour merge) is done by the caller into a small
// scratch buffer via RemapScratch before calling FindOrAdd once per
// resulting colour bit, rather than by writing a full record speculatively
// into the arena and only committing it after the event — PathStore's
// arena never takes back a reservation once made (see DESIGN.md's
// resolution of the FileFilter Open Question).
//
// © 2025 dbgbuilder authors. MIT License.
package pathstore

import (
	"errors"
	"sync"

	"github.com/mccortex/dbgbuilder/internal/arena"
	"github.com/mccortex/dbgbuilder/internal/bitpack"
	"github.com/mccortex/dbgbuilder/internal/graphcore"
	"github.com/mccortex/dbgbuilder/internal/hashtable"
)

// ErrIntegrity is returned by IntegrityCheck when the arena's committed
// bytes do not parse as a contiguous, self-describing sequence of records.
var ErrIntegrity = errors.New("pathstore: integrity check failed")

// PathNull aliases graphcore.PathNull: the sentinel "no record" value used
// both as a vertex's empty path_head and as a record's prev field when it
// is the first record ever attached to its vertex.
const PathNull = graphcore.PathNull

func colsetBytes(numColours int) int { return (numColours + 7) / 8 }

func packedLen(numBases int) int { return (numBases + 3) / 4 }

func packBases(bases []bitpack.Base) []byte {
	out := make([]byte, packedLen(len(bases)))
	for i, b := range bases {
		out[i/4] |= byte(b) << uint(2*(i%4))
	}
	return out
}

func unpackBases(packed []byte, n int) []bitpack.Base {
	out := make([]bitpack.Base, n)
	for i := range out {
		out[i] = bitpack.Base((packed[i/4] >> uint(2*(i%4))) & 0x3)
	}
	return out
}

func getBit(buf []byte, i int) bool  { return buf[i/8]&(1<<uint(i%8)) != 0 }
func setBit(buf []byte, i int)       { buf[i/8] |= 1 << uint(i%8) }

func getU64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> uint(8*i))
	}
}

func getU16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }

func putU16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

const (
	lenOrientLengthMask = 0x7FFF
	lenOrientOrientBit  = 0x8000
)

func encodeLenOrient(length int, orient bitpack.Orientation) uint16 {
	v := uint16(length) & lenOrientLengthMask
	if orient == bitpack.Reverse {
		v |= lenOrientOrientBit
	}
	return v
}

func decodeLenOrient(v uint16) (length int, orient bitpack.Orientation) {
	length = int(v & lenOrientLengthMask)
	if v&lenOrientOrientBit != 0 {
		return length, bitpack.Reverse
	}
	return length, bitpack.Forward
}

// PathStore is the packed path-record arena plus its per-vertex linked
// lists. It is safe for concurrent use by multiple ingestion goroutines.
type PathStore struct {
	arena      *arena.Arena
	graph      *graphcore.GraphCore
	numColours int
	colsetLen  int

	// colsetMu serializes colour-bit merges into an already-committed
	// record. This is the one coarse lock in the package: colour merges
	// only happen when FindOrAdd's deduplication match succeeds, which is
	// rare relative to total record appends (most appended records are
	// novel), so a shared mutex here does not contend with the CAS-based
	// append hot path.
	colsetMu sync.Mutex
}

// New constructs a PathStore over arena `a`, threading new records onto
// vertex path heads tracked by graph.
func New(a *arena.Arena, graph *graphcore.GraphCore, numColours int) *PathStore {
	return &PathStore{
		arena:      a,
		graph:      graph,
		numColours: numColours,
		colsetLen:  colsetBytes(numColours),
	}
}

// ColsetBytes returns the number of bytes used to store the colour bitset
// in each record.
func (ps *PathStore) ColsetBytes() int { return ps.colsetLen }

func (ps *PathStore) recordSize(numBases int) int {
	return 8 + ps.colsetLen + 2 + packedLen(numBases)
}

// find walks the CAS-linked list starting at head looking for a record
// whose (length, start orientation, packed sequence) exactly matches seq and
// orient, ignoring colset. Mirrors original_source's path_store_find, whose
// dedup key is <PathLen><PackedSeq> — PathLen there is the combined
// length/orientation word, so orient participates in the match.
func (ps *PathStore) find(head uint64, seq []bitpack.Base, orient bitpack.Orientation) (uint64, bool) {
	packed := packBases(seq)
	cur := head
	for cur != PathNull {
		hdr := ps.arena.Bytes(cur, 8+ps.colsetLen+2)
		length, recOrient := decodeLenOrient(getU16(hdr[8+ps.colsetLen : 8+ps.colsetLen+2]))
		if length == len(seq) && recOrient == orient {
			body := ps.arena.Bytes(cur+uint64(8+ps.colsetLen+2), packedLen(length))
			if bytesEqual(body, packed) {
				return cur, true
			}
		}
		cur = getU64(hdr[0:8])
	}
	return 0, false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (ps *PathStore) mergeColour(offset uint64, colour int) {
	ps.colsetMu.Lock()
	defer ps.colsetMu.Unlock()
	buf := ps.arena.Bytes(offset+8, ps.colsetLen)
	setBit(buf, colour)
}

// FindOrAdd threads a new path record of the given bases onto vertex vid's
// list. If dedupe is true, an existing record with identical bases already
// on the list has its colour bit merged instead of a new record being
// appended (spec §4.3's "FindOrAdd with deduplication"). It returns the
// byte offset of the (possibly pre-existing) record and whether a new
// record was appended.
//
// The loop below implements a standard lock-free list-prepend: read the
// current head, optionally search it for a duplicate, speculatively append
// a fresh record pointing at that head, then CAS the head forward. Losing
// the CAS race means another goroutine prepended first; we retry against
// the new head (and, with dedupe, re-search it — the concurrent insert may
// itself have been the duplicate we were looking for). A lost race leaves
// the just-written bytes stranded in the arena; since the arena never
// reclaims space before an explicit offline merge pass, this is wasted
// space, not a correctness issue.
func (ps *PathStore) FindOrAdd(vid hashtable.VertexId, bases []bitpack.Base, colour int, orient bitpack.Orientation, dedupe bool) (offset uint64, added bool, err error) {
	size := ps.recordSize(len(bases))
	packed := packBases(bases)
	for {
		head := ps.graph.PathHead(vid)
		if dedupe {
			if match, ok := ps.find(head, bases, orient); ok {
				ps.mergeColour(match, colour)
				return match, false, nil
			}
		}
		off, aerr := ps.arena.Alloc(size)
		if aerr != nil {
			return 0, false, aerr
		}
		buf := ps.arena.Bytes(off, size)
		putU64(buf[0:8], head)
		for i := 0; i < ps.colsetLen; i++ {
			buf[8+i] = 0
		}
		setBit(buf[8:8+ps.colsetLen], colour)
		putU16(buf[8+ps.colsetLen:8+ps.colsetLen+2], encodeLenOrient(len(bases), orient))
		copy(buf[8+ps.colsetLen+2:], packed)

		if ps.graph.CompareAndSwapPathHead(vid, head, off) {
			return off, true, nil
		}
	}
}

// RemapScratch clears dst (which must be len(dst) == colsetBytes(len(colourMap))
// bytes) and copies each set bit of src according to colourMap, where
// colourMap[fromCol] gives the destination colour index, or -1 if that
// source colour is excluded from the target file-filter subset. Callers
// use this to build the per-colour bit pattern of an incoming record
// before calling FindOrAdd once per resulting set bit, avoiding any
// speculative arena write (see the package doc comment).
func RemapScratch(dst, src []byte, colourMap []int) {
	for i := range dst {
		dst[i] = 0
	}
	for fromCol, intoCol := range colourMap {
		if intoCol < 0 {
			continue
		}
		if getBit(src, fromCol) {
			setBit(dst, intoCol)
		}
	}
}

// Bases decodes the packed sequence stored in the record at offset.
func (ps *PathStore) Bases(offset uint64) []bitpack.Base {
	hdr := ps.arena.Bytes(offset, 8+ps.colsetLen+2)
	length, _ := decodeLenOrient(getU16(hdr[8+ps.colsetLen : 8+ps.colsetLen+2]))
	body := ps.arena.Bytes(offset+uint64(8+ps.colsetLen+2), packedLen(length))
	return unpackBases(body, length)
}

// Orientation returns the start orientation recorded for the record at
// offset: which strand of the root vertex the walk that produced it began
// from.
func (ps *PathStore) Orientation(offset uint64) bitpack.Orientation {
	hdr := ps.arena.Bytes(offset, 8+ps.colsetLen+2)
	_, orient := decodeLenOrient(getU16(hdr[8+ps.colsetLen : 8+ps.colsetLen+2]))
	return orient
}

// HasColour reports whether the record at offset carries the given colour.
func (ps *PathStore) HasColour(offset uint64, colour int) bool {
	buf := ps.arena.Bytes(offset+8, ps.colsetLen)
	return getBit(buf, colour)
}

// Prev returns the prev-pointer of the record at offset (PathNull if it is
// a list head).
func (ps *PathStore) Prev(offset uint64) uint64 {
	buf := ps.arena.Bytes(offset, 8)
	return getU64(buf)
}

// Walk returns, in head-to-tail order, the offsets of every record
// reachable from vertex vid's path head.
func (ps *PathStore) Walk(vid hashtable.VertexId) []uint64 {
	var out []uint64
	for cur := ps.graph.PathHead(vid); cur != PathNull; cur = ps.Prev(cur) {
		out = append(out, cur)
	}
	return out
}

// IntegrityCheck re-parses every committed byte in the arena as a
// contiguous sequence of self-describing records, matching
// original_source's path_store_data_integrity_check. It is intended for
// use in debug builds and tests, not the ingestion hot path.
func (ps *PathStore) IntegrityCheck() error {
	end := ps.arena.Len()
	var offset uint64
	for offset < end {
		if offset+uint64(8+ps.colsetLen+2) > end {
			return ErrIntegrity
		}
		hdr := ps.arena.Bytes(offset, 8+ps.colsetLen+2)
		prev := getU64(hdr[0:8])
		if prev != PathNull && prev >= offset {
			return ErrIntegrity
		}
		length, _ := decodeLenOrient(getU16(hdr[8+ps.colsetLen : 8+ps.colsetLen+2]))
		size := uint64(ps.recordSize(length))
		if offset+size > end {
			return ErrIntegrity
		}
		offset += size
	}
	if offset != end {
		return ErrIntegrity
	}
	return nil
}
