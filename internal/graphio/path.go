// © 2025 dbgbuilder authors. MIT License.
package graphio

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mccortex/dbgbuilder/internal/bitpack"
	"github.com/mccortex/dbgbuilder/internal/graphcore"
	"github.com/mccortex/dbgbuilder/internal/hashtable"
	"github.com/mccortex/dbgbuilder/pkg/graph"
)

// PathMagic identifies a dbgbuilder path binary (.ctp-equivalent) file.
var PathMagic = [4]byte{'D', 'B', 'G', 'P'}

// WritePaths serializes every PathRecord reachable from any vertex's head
// index. The 28-byte header holds PathMagic, k and colour count (uint32
// each), then the total path count and the head-vertex count (uint64
// each), all big-endian. The head-index table follows as (vertex id, head
// offset) pairs, one per vertex with paths. The records come last, grouped
// by vertex in the same order as the table and, within a vertex, in
// PathStore.Walk's head-to-tail order; records carry no prev pointer.
// Each record is a 2-byte len_and_orient word (15 bits length, the top bit
// the record's start orientation, matching PathStore's own packed layout),
// the colour set, then the packed bases.
func WritePaths(w io.Writer, g *graph.Graph) error {
	cfg := g.Config()
	core := g.Core()
	store := g.PathStore()
	colsetBytes := store.ColsetBytes()

	var heads []hashtable.VertexId
	var totalPaths uint64
	g.VisitVertices(func(v graph.Vertex) {
		if core.PathHead(v.ID) != graphcore.PathNull {
			heads = append(heads, v.ID)
			totalPaths += uint64(len(store.Walk(v.ID)))
		}
	})

	header := make([]byte, 4+4+4+8+8)
	copy(header[0:4], PathMagic[:])
	binary.BigEndian.PutUint32(header[4:8], uint32(cfg.K))
	binary.BigEndian.PutUint32(header[8:12], uint32(cfg.NumColours))
	binary.BigEndian.PutUint64(header[12:20], totalPaths)
	binary.BigEndian.PutUint64(header[20:28], uint64(len(heads)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("graphio: write path header: %w", err)
	}

	idx := make([]byte, 16)
	for _, vid := range heads {
		binary.BigEndian.PutUint64(idx[0:8], uint64(vid))
		binary.BigEndian.PutUint64(idx[8:16], core.PathHead(vid))
		if _, err := w.Write(idx); err != nil {
			return fmt.Errorf("graphio: write head index: %w", err)
		}
	}

	for _, vid := range heads {
		for _, off := range store.Walk(vid) {
			bases := store.Bases(off)
			colset := make([]byte, colsetBytes)
			for col := 0; col < cfg.NumColours; col++ {
				if store.HasColour(off, col) {
					colset[col/8] |= 1 << uint(col%8)
				}
			}
			lenAndOrient := uint16(len(bases)) & 0x7FFF
			if store.Orientation(off) == bitpack.Reverse {
				lenAndOrient |= 0x8000
			}
			rec := make([]byte, 2+colsetBytes+(len(bases)+3)/4)
			binary.BigEndian.PutUint16(rec[0:2], lenAndOrient)
			copy(rec[2:2+colsetBytes], colset)
			for i, b := range bases {
				rec[2+colsetBytes+i/4] |= byte(b) << uint(2*(i%4))
			}
			if _, err := w.Write(rec); err != nil {
				return fmt.Errorf("graphio: write path record: %w", err)
			}
		}
	}
	return nil
}
