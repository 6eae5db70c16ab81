// © 2025 dbgbuilder authors. MIT License.
package graphio

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/mccortex/dbgbuilder/pkg/graph"
)

type sliceSource struct {
	seqs [][]byte
	i    int
}

func (s *sliceSource) Next() (graph.ReadPair, bool, error) {
	if s.i >= len(s.seqs) {
		return graph.ReadPair{}, false, nil
	}
	seq := s.seqs[s.i]
	s.i++
	return graph.ReadPair{R1: &graph.Read{Seq: seq}}, true, nil
}

func buildTestGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.New(graph.WithK(5), graph.WithColours(2), graph.WithCapacity(4096), graph.WithArenaBytes(1<<16))
	if err != nil {
		t.Fatal(err)
	}
	src1 := &sliceSource{seqs: [][]byte{[]byte("ACGTACGTAC")}}
	src2 := &sliceSource{seqs: [][]byte{[]byte("TTTTTGGGGG")}}
	err = g.Build(context.Background(), []graph.Source{
		{Reader: src1, Colour: 0},
		{Reader: src2, Colour: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestWriteCTXReadHeaderRoundTrip(t *testing.T) {
	g := buildTestGraph(t)

	var buf bytes.Buffer
	if err := WriteCTX(&buf, g); err != nil {
		t.Fatal(err)
	}

	hdr, err := ReadHeader(bytes.NewReader(buf.Bytes()[:20]))
	if err != nil {
		t.Fatal(err)
	}
	if hdr.K != 5 {
		t.Errorf("hdr.K = %d, want 5", hdr.K)
	}
	if hdr.NumColours != 2 {
		t.Errorf("hdr.NumColours = %d, want 2", hdr.NumColours)
	}
	if hdr.NumKmers != g.VertexCount() {
		t.Errorf("hdr.NumKmers = %d, want %d", hdr.NumKmers, g.VertexCount())
	}
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	bad := make([]byte, 20)
	copy(bad, "XXXX")
	_, err := ReadHeader(bytes.NewReader(bad))
	if err == nil {
		t.Error("expected an error for a bad magic prefix")
	}
}

func TestWriteCTXLoadCTXBodyRoundTrip(t *testing.T) {
	src := buildTestGraph(t)

	var buf bytes.Buffer
	if err := WriteCTX(&buf, src); err != nil {
		t.Fatal(err)
	}

	r := bytes.NewReader(buf.Bytes())
	hdr, err := ReadHeader(r)
	if err != nil {
		t.Fatal(err)
	}

	dst, err := graph.New(graph.WithK(hdr.K), graph.WithColours(hdr.NumColours), graph.WithCapacity(4096), graph.WithArenaBytes(1<<16))
	if err != nil {
		t.Fatal(err)
	}
	if err := LoadCTXBody(r, dst, hdr); err != nil {
		t.Fatal(err)
	}

	if dst.VertexCount() != src.VertexCount() {
		t.Errorf("restored VertexCount() = %d, want %d", dst.VertexCount(), src.VertexCount())
	}

	var mismatches int
	src.VisitVertices(func(v graph.Vertex) {
		dvid, err := dst.LoadVertex(v.Kmer, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		for col := 0; col < 2; col++ {
			if dst.EdgeByte(col, dvid) != src.EdgeByte(col, v.ID) {
				mismatches++
			}
			if dst.ColourPresent(col, dvid) != src.ColourPresent(col, v.ID) {
				mismatches++
			}
		}
	})
	if mismatches != 0 {
		t.Errorf("%d edge/colour mismatches between source and restored graph", mismatches)
	}
}

func TestLoadCTXBodyRejectsTruncatedRecord(t *testing.T) {
	src := buildTestGraph(t)
	var buf bytes.Buffer
	if err := WriteCTX(&buf, src); err != nil {
		t.Fatal(err)
	}
	r := bytes.NewReader(buf.Bytes())
	hdr, err := ReadHeader(r)
	if err != nil {
		t.Fatal(err)
	}

	truncated := bytes.NewReader(nil)
	dst, err := graph.New(graph.WithK(hdr.K), graph.WithColours(hdr.NumColours), graph.WithCapacity(4096), graph.WithArenaBytes(1<<16))
	if err != nil {
		t.Fatal(err)
	}
	if err := LoadCTXBody(truncated, dst, hdr); err == nil {
		t.Error("expected an error reading vertex records from an empty reader")
	}
}

func TestWritePathsHeaderCountsMatchThreadedPaths(t *testing.T) {
	g, err := graph.New(graph.WithK(5), graph.WithColours(1), graph.WithCapacity(4096), graph.WithArenaBytes(1<<16))
	if err != nil {
		t.Fatal(err)
	}
	reads := [][]byte{[]byte("AAAAACGTAC"), []byte("AAAAATGTAC")}
	buildSrc := &sliceSource{seqs: reads}
	if err := g.Build(context.Background(), []graph.Source{{Reader: buildSrc, Colour: 0}}); err != nil {
		t.Fatal(err)
	}
	threadSrc := &sliceSource{seqs: reads}
	if err := g.ThreadPaths(context.Background(), []graph.ThreadSource{{Reader: threadSrc, Colour: 0, Dedupe: true}}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WritePaths(&buf, g); err != nil {
		t.Fatal(err)
	}
	if buf.Len() < 28 {
		t.Fatalf("written path file too short to hold a header: %d bytes", buf.Len())
	}
	if !bytes.Equal(buf.Bytes()[0:4], PathMagic[:]) {
		t.Error("written path file does not start with PathMagic")
	}

	var wantPaths, wantHeads uint64
	g.VisitVertices(func(v graph.Vertex) {
		if n := len(g.PathStore().Walk(v.ID)); n > 0 {
			wantHeads++
			wantPaths += uint64(n)
		}
	})
	if wantPaths == 0 {
		t.Fatal("threading recorded no paths at the AAAAA junction")
	}
	if got := binary.BigEndian.Uint64(buf.Bytes()[12:20]); got != wantPaths {
		t.Errorf("header path count = %d, want %d", got, wantPaths)
	}
	if got := binary.BigEndian.Uint64(buf.Bytes()[20:28]); got != wantHeads {
		t.Errorf("header head-vertex count = %d, want %d", got, wantHeads)
	}
}

func TestWritePathsNoPathsStillWritesHeader(t *testing.T) {
	g := buildTestGraph(t)
	var buf bytes.Buffer
	if err := WritePaths(&buf, g); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 28 {
		t.Errorf("header-only path file length = %d, want 28", buf.Len())
	}
}
