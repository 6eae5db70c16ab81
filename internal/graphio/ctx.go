// Package graphio implements the graph binary format spec §6 describes as
// an out-of-scope collaborator concern: "header with magic, kmer size,
// colour count, number of kmers; per-kmer record of packed kmer + edges +
// colour bitmap." No original_source file for binary_format.c was
// retrieved alongside build_graph.c/path_store.c, so the exact byte
// layout below is this package's own design against that prose
// description rather than a transcription of the original tool's .ctx
// format.
//
// © 2025 dbgbuilder authors. MIT License.
package graphio

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mccortex/dbgbuilder/internal/bitpack"
	"github.com/mccortex/dbgbuilder/pkg/graph"
)

// Magic identifies a dbgbuilder graph binary file.
var Magic = [4]byte{'D', 'B', 'G', '1'}

// WriteCTX writes g's full vertex set to w: a fixed header followed by one
// fixed-size record per occupied vertex, in hash table bucket order.
func WriteCTX(w io.Writer, g *graph.Graph) error {
	cfg := g.Config()
	colsetBytes := (cfg.NumColours + 7) / 8

	header := make([]byte, 4+4+4+8)
	copy(header[0:4], Magic[:])
	binary.BigEndian.PutUint32(header[4:8], uint32(cfg.K))
	binary.BigEndian.PutUint32(header[8:12], uint32(cfg.NumColours))
	binary.BigEndian.PutUint64(header[12:20], g.VertexCount())
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("graphio: write header: %w", err)
	}

	rec := make([]byte, 17+cfg.NumColours+colsetBytes)
	var writeErr error
	g.VisitVertices(func(v graph.Vertex) {
		if writeErr != nil {
			return
		}
		kb := v.Kmer.Bytes()
		n := copy(rec, kb[:])
		for col := 0; col < cfg.NumColours; col++ {
			rec[n+col] = g.EdgeByte(col, v.ID)
			if g.ColourPresent(col, v.ID) {
				rec[n+cfg.NumColours+col/8] |= 1 << uint(col%8)
			} else {
				rec[n+cfg.NumColours+col/8] &^= 1 << uint(col%8)
			}
		}
		if _, err := w.Write(rec); err != nil {
			writeErr = fmt.Errorf("graphio: write vertex %d: %w", v.ID, err)
		}
	})
	return writeErr
}

// Header is the decoded fixed portion of a graphio file, returned by
// ReadHeader so callers can size a Graph (k, colour count, capacity) before
// loading its vertices.
type Header struct {
	K          int
	NumColours int
	NumKmers   uint64
}

// ReadHeader decodes a graphio header from r without consuming any vertex
// records, so a caller can construct a correctly-sized graph.Graph via
// graph.New before calling LoadCTXBody.
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, 4+4+4+8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, fmt.Errorf("graphio: read header: %w", err)
	}
	if [4]byte(buf[0:4]) != Magic {
		return Header{}, fmt.Errorf("graphio: bad magic %q", buf[0:4])
	}
	return Header{
		K:          int(binary.BigEndian.Uint32(buf[4:8])),
		NumColours: int(binary.BigEndian.Uint32(buf[8:12])),
		NumKmers:   binary.BigEndian.Uint64(buf[12:20]),
	}, nil
}

// LoadCTXBody reads NumKmers vertex records from r (as left positioned by
// ReadHeader) and restores each into g via Graph.LoadVertex.
func LoadCTXBody(r io.Reader, g *graph.Graph, hdr Header) error {
	colsetBytes := (hdr.NumColours + 7) / 8
	recLen := 17 + hdr.NumColours + colsetBytes
	rec := make([]byte, recLen)

	for i := uint64(0); i < hdr.NumKmers; i++ {
		if _, err := io.ReadFull(r, rec); err != nil {
			return fmt.Errorf("graphio: read vertex %d: %w", i, err)
		}
		km, err := bitpack.FromBytes(rec[0:17])
		if err != nil {
			return fmt.Errorf("graphio: decode vertex %d: %w", i, err)
		}
		edgeBytes := append([]uint8(nil), rec[17:17+hdr.NumColours]...)
		colset := rec[17+hdr.NumColours : recLen]
		present := make([]bool, hdr.NumColours)
		for col := range present {
			present[col] = colset[col/8]&(1<<uint(col%8)) != 0
		}
		if _, err := g.LoadVertex(km, edgeBytes, present); err != nil {
			return fmt.Errorf("graphio: load vertex %d: %w", i, err)
		}
	}
	return nil
}
