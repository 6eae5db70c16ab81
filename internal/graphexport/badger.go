// Package graphexport is a reference GraphConsumer collaborator: it
// persists a finished graph.Graph's vertices, per-colour edge masks, and
// colour-presence bitmaps to an embedded Badger key-value store.
//
// Grounded on examples/disk_eject/main.go's badger.Open/Update/View usage
// (the teacher's only direct Badger consumer); unlike that example's
// single flat string->string keyspace, the graph binary format (spec §6)
// needs one record per vertex plus a small header record, so Badger is
// used here as a straightforward key-value table rather than as an
// eviction-callback sink.
//
// © 2025 dbgbuilder authors. MIT License.
package graphexport

import (
	"encoding/binary"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/mccortex/dbgbuilder/internal/hashtable"
	"github.com/mccortex/dbgbuilder/pkg/graph"
)

var (
	headerKey    = []byte("dbgbuilder:header")
	vertexPrefix = []byte("v:")
)

// BadgerConsumer implements graph.GraphConsumer by writing one Badger
// record per occupied vertex plus a single header record (k as a
// big-endian uint32, then colour count and vertex count as big-endian
// uint64s; no magic), all through one Badger WriteBatch.
type BadgerConsumer struct {
	// Dir is the Badger data directory, created if it does not exist.
	Dir string
}

func vertexKey(id hashtable.VertexId) []byte {
	key := make([]byte, len(vertexPrefix)+8)
	copy(key, vertexPrefix)
	binary.BigEndian.PutUint64(key[len(vertexPrefix):], uint64(id))
	return key
}

// ConsumeGraph opens (or creates) the Badger store at c.Dir and writes
// every vertex graph exposes via VisitVertices: the packed canonical kmer
// bytes, one edge byte per colour, and a colour-presence bitmap. Writes go
// through a WriteBatch, which Badger may commit in several transactions,
// so a concurrent reader can observe a partially written graph.
func (c *BadgerConsumer) ConsumeGraph(g *graph.Graph) error {
	opts := badger.DefaultOptions(c.Dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("graphexport: open badger at %q: %w", c.Dir, err)
	}
	defer db.Close()

	cfg := g.Config()
	colsetBytes := (cfg.NumColours + 7) / 8

	wb := db.NewWriteBatch()
	defer wb.Cancel()

	header := make([]byte, 4+8+8)
	binary.BigEndian.PutUint32(header[0:4], uint32(cfg.K))
	binary.BigEndian.PutUint64(header[4:12], uint64(cfg.NumColours))
	binary.BigEndian.PutUint64(header[12:20], g.VertexCount())
	if err := wb.Set(headerKey, header); err != nil {
		return fmt.Errorf("graphexport: write header: %w", err)
	}

	var visitErr error
	g.VisitVertices(func(v graph.Vertex) {
		if visitErr != nil {
			return
		}
		kmerBytes := v.Kmer.Bytes()
		val := make([]byte, len(kmerBytes)+cfg.NumColours+colsetBytes)
		n := copy(val, kmerBytes[:])
		for col := 0; col < cfg.NumColours; col++ {
			val[n+col] = g.EdgeByte(col, v.ID)
			if g.ColourPresent(col, v.ID) {
				val[n+cfg.NumColours+col/8] |= 1 << uint(col%8)
			}
		}
		if err := wb.Set(vertexKey(v.ID), val); err != nil {
			visitErr = fmt.Errorf("graphexport: write vertex %d: %w", v.ID, err)
		}
	})
	if visitErr != nil {
		return visitErr
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("graphexport: flush: %w", err)
	}
	return nil
}
