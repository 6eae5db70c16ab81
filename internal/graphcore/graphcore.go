// Package graphcore implements GraphCore: the thin, thread-safe layer over
// BucketedHashTable that stores per-(colour,vertex) edge bitmasks, colour
// presence, read-start duplicate marks, and the PathStore head index.
//
// Grounded on original_source/src/kmer/build_graph.c's
// db_graph_find_or_add_node_mt / db_graph_add_edge_mt /
// db_node_set_read_start_mt for bit semantics, and on the teacher's
// pkg/shard.go entry[K,V] for the struct-of-parallel-arrays layout idiom.
//
// © 2025 dbgbuilder authors. MIT License.
package graphcore

import (
	"sync/atomic"

	"github.com/mccortex/dbgbuilder/internal/bitpack"
	"github.com/mccortex/dbgbuilder/internal/bitset"
	"github.com/mccortex/dbgbuilder/internal/hashtable"
)

// PathNull is the PathStore arena sentinel: "no path recorded yet" for a
// vertex's path_head entry.
const PathNull = ^uint64(0)

// GraphCore owns the hash table plus the parallel per-vertex state arrays
// described in spec §3.
type GraphCore struct {
	table      *hashtable.Table
	k          int
	numColours int

	// edges[colour][vertex]: low nibble = outgoing {A,C,G,T}, high nibble =
	// incoming. One atomic.Uint32 per vertex (only the low byte is used) so
	// that fetch-or can be expressed with the standard library's
	// CompareAndSwap loop without a bespoke atomic-byte type.
	edges [][]atomic.Uint32

	colourPresent *bitset.AtomicBitSet // bit = colour*capacity + vertex
	readStart     *bitset.AtomicBitSet // bit = vertex*2 + orientation
	pathHead      []atomic.Uint64
}

// New constructs a GraphCore over an already-sized hash table.
func New(table *hashtable.Table, k, numColours int) *GraphCore {
	cap := table.Capacity()
	edges := make([][]atomic.Uint32, numColours)
	for c := range edges {
		edges[c] = make([]atomic.Uint32, cap)
	}
	g := &GraphCore{
		table:         table,
		k:             k,
		numColours:    numColours,
		edges:         edges,
		colourPresent: bitset.New(numColours * int(cap)),
		readStart:     bitset.New(int(cap) * 2),
		pathHead:      make([]atomic.Uint64, cap),
	}
	for i := range g.pathHead {
		g.pathHead[i].Store(PathNull)
	}
	return g
}

// Table exposes the underlying hash table for vertex iteration by
// collaborators writing the graph binary format (spec §6).
func (g *GraphCore) Table() *hashtable.Table { return g.table }

// K returns the configured kmer length.
func (g *GraphCore) K() int { return g.k }

// NumColours returns the configured colour count.
func (g *GraphCore) NumColours() int { return g.numColours }

// VertexFor inserts the canonical form of km (or finds it if already
// present) without marking any colour as present, for callers — like
// duplicate-novelty checks — that must look a kmer up without committing it
// to a colour until the read it came from is confirmed not to be a
// duplicate.
func (g *GraphCore) VertexFor(km bitpack.Kmer) (hashtable.VertexId, bitpack.Orientation, error) {
	canon, orient := km.Canonical()
	vid, _, err := g.table.FindOrInsert(canon)
	if err != nil {
		return 0, 0, err
	}
	return vid, orient, nil
}

// FindOrAddVertex inserts the canonical form of km (or finds it if already
// present) and marks colour as present on the resulting vertex. It returns
// the vertex id and the Orientation of km relative to its canonical form.
func (g *GraphCore) FindOrAddVertex(km bitpack.Kmer, colour int) (hashtable.VertexId, bitpack.Orientation, error) {
	vid, orient, err := g.VertexFor(km)
	if err != nil {
		return 0, 0, err
	}
	g.colourPresent.Set(colour*int(g.table.Capacity()) + int(vid))
	return vid, orient, nil
}

// ColourPresent reports whether any read of the given colour has touched
// vertex vid.
func (g *GraphCore) ColourPresent(colour int, vid hashtable.VertexId) bool {
	return g.colourPresent.Get(colour*int(g.table.Capacity()) + int(vid))
}

func setEdgeBit(word *atomic.Uint32, base bitpack.Base, outgoing bool) {
	pos := uint32(base)
	if !outgoing {
		pos += 4
	}
	mask := uint32(1) << pos
	for {
		old := word.Load()
		if old&mask != 0 {
			return
		}
		if word.CompareAndSwap(old, old|mask) {
			return
		}
	}
}

// edgeBit maps a traversal-direction base onto the (nibble, base) pair
// actually stored at a vertex, accounting for that vertex's orientation
// relative to its canonical form: a vertex visited in Reverse orientation
// sees the traversal direction flipped and the base complemented, since the
// edge byte is always recorded relative to the vertex's canonical (Forward)
// strand.
func edgeBit(orient bitpack.Orientation, base bitpack.Base, outgoing bool) (bitpack.Base, bool) {
	if orient == bitpack.Forward {
		return base, outgoing
	}
	return base.Complement(), !outgoing
}

// AddEdge atomically ORs the outgoing-base bit into edges[colour][from] and
// the reciprocal incoming-base bit into edges[colour][to]. base is the
// nucleotide that was appended (in the read's own left-to-right direction)
// when the window slid from the from-kmer to the to-kmer; fromFirstBase is
// the from-kmer's leading base in that same read-orientation, i.e. the base
// the window dropped off the other end. to's reciprocal edge is not keyed
// on base: walking backward from to to from leaves, in to's direction, the
// complement of the base from lost, per original_source's
// db_graph_add_edge_mt (nuc_orient_to_edge(complement(first_nuc(src)),
// opposite(tgt_or))). Both writes are lock-free fetch-or and commute with
// any concurrent writer (spec §5).
func (g *GraphCore) AddEdge(colour int, from, to hashtable.VertexId, fromOr, toOr bitpack.Orientation, base, fromFirstBase bitpack.Base) {
	outBase, outgoing := edgeBit(fromOr, base, true)
	setEdgeBit(&g.edges[colour][from], outBase, outgoing)

	inBase, incoming := edgeBit(toOr, fromFirstBase.Complement(), false)
	setEdgeBit(&g.edges[colour][to], inBase, incoming)
}

// HasOutgoing reports whether vertex vid has an outgoing edge for base in
// colour, relative to vid's canonical (Forward) strand.
func (g *GraphCore) HasOutgoing(colour int, vid hashtable.VertexId, base bitpack.Base) bool {
	return g.edges[colour][vid].Load()&(uint32(1)<<uint(base)) != 0
}

// HasIncoming reports whether vertex vid has an incoming edge for base in
// colour, relative to vid's canonical (Forward) strand.
func (g *GraphCore) HasIncoming(colour int, vid hashtable.VertexId, base bitpack.Base) bool {
	return g.edges[colour][vid].Load()&(uint32(1)<<uint(base+4)) != 0
}

// OutDegree counts, relative to vid's traversal orientation orient, how
// many of the four possible next bases the graph records an edge for in
// colour. Used by PathThreader to detect junctions worth recording a path
// through (spec §4.6).
func (g *GraphCore) OutDegree(colour int, vid hashtable.VertexId, orient bitpack.Orientation) int {
	n := 0
	for _, b := range [4]bitpack.Base{bitpack.BaseA, bitpack.BaseC, bitpack.BaseG, bitpack.BaseT} {
		storedBase, outgoing := edgeBit(orient, b, true)
		if outgoing {
			if g.HasOutgoing(colour, vid, storedBase) {
				n++
			}
		} else if g.HasIncoming(colour, vid, storedBase) {
			n++
		}
	}
	return n
}

// EdgeByte returns the raw 8-bit edge mask for collaborators writing the
// graph binary format.
func (g *GraphCore) EdgeByte(colour int, vid hashtable.VertexId) uint8 {
	return uint8(g.edges[colour][vid].Load())
}

// SetEdgeByte overwrites vertex vid's raw edge mask for colour wholesale.
// Unlike AddEdge it is not a monotonic OR: it is meant for collaborators
// restoring a graph from a previously written binary image (spec §6),
// where the serialized byte is already the union of every edge that
// mattered and there is no concurrent writer to race with.
func (g *GraphCore) SetEdgeByte(colour int, vid hashtable.VertexId, b uint8) {
	g.edges[colour][vid].Store(uint32(b))
}

// SetColourPresent sets the colour-presence bit for vid outside the normal
// FindOrAddVertex flow, for the same binary-image-restore use case as
// SetEdgeByte. Restoring into a freshly allocated GraphCore never needs to
// clear a bit, so this mirrors AtomicBitSet.Set's monotonic semantics.
func (g *GraphCore) SetColourPresent(colour int, vid hashtable.VertexId) {
	g.colourPresent.Set(colour*int(g.table.Capacity()) + int(vid))
}

// MarkReadStart atomically test-and-sets the read-start bit for
// (vid, orient), used by duplicate suppression (spec §4.5). It returns
// whether the bit was already set before this call.
func (g *GraphCore) MarkReadStart(vid hashtable.VertexId, orient bitpack.Orientation) (wasAlreadySet bool) {
	return g.readStart.TestAndSet(int(vid)*2 + int(orient))
}

// IsReadStart reports the current value of the read-start bit.
func (g *GraphCore) IsReadStart(vid hashtable.VertexId, orient bitpack.Orientation) bool {
	return g.readStart.Get(int(vid)*2 + int(orient))
}

// PathHead returns the current PathStore arena offset for vertex vid's
// linked list head (PathNull if empty).
func (g *GraphCore) PathHead(vid hashtable.VertexId) uint64 {
	return g.pathHead[vid].Load()
}

// CompareAndSwapPathHead attempts to install `new` as the path head for vid,
// succeeding only if the current value still equals `old`. Used by
// PathStore.FindOrAdd to linearize per-vertex list insertion (spec §4.3).
func (g *GraphCore) CompareAndSwapPathHead(vid hashtable.VertexId, old, new uint64) bool {
	return g.pathHead[vid].CompareAndSwap(old, new)
}
