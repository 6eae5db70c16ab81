// © 2025 dbgbuilder authors. MIT License.
package ingest

import (
	"context"
	"testing"

	"github.com/mccortex/dbgbuilder/internal/graphcore"
	"github.com/mccortex/dbgbuilder/internal/hashtable"
	"github.com/mccortex/dbgbuilder/internal/stats"
)

func newTestGraph(t *testing.T, k int) *graphcore.GraphCore {
	t.Helper()
	tbl := hashtable.New(4096, hashtable.DefaultProbeWindow)
	return graphcore.New(tbl, k, 1)
}

func TestRunLengths(t *testing.T) {
	got := runLengths([]byte("AAACCGGGG"))
	want := []int{1, 2, 3, 1, 2, 1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("runLengths[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestBaseGoodRejectsNonACGT(t *testing.T) {
	r := &Read{Seq: []byte("ACGN")}
	runs := runLengths(r.Seq)
	if baseGood(r, runs, 3, 0, 0) {
		t.Error("N should not pass baseGood")
	}
	if !baseGood(r, runs, 0, 0, 0) {
		t.Error("A should pass baseGood")
	}
}

func TestBaseGoodQualityCutoff(t *testing.T) {
	r := &Read{Seq: []byte("ACGT"), Qual: []byte{40, 10, 40, 40}}
	runs := runLengths(r.Seq)
	if baseGood(r, runs, 1, 20, 0) {
		t.Error("base with quality below cutoff should fail baseGood")
	}
	if !baseGood(r, runs, 0, 20, 0) {
		t.Error("base with quality above cutoff should pass baseGood")
	}
}

func TestBaseGoodHomopolymerCutoff(t *testing.T) {
	r := &Read{Seq: []byte("AAAAA")}
	runs := runLengths(r.Seq)
	if baseGood(r, runs, 4, 0, 3) {
		t.Error("5th base of a run of 5 A's should fail a homopolymer cutoff of 3")
	}
	if !baseGood(r, runs, 2, 0, 3) {
		t.Error("3rd base of a run should still pass a homopolymer cutoff of 3")
	}
}

func TestSeqContigStartAndEnd(t *testing.T) {
	// "NN" breaks the read into a bad prefix and a 6-base good contig.
	r := &Read{Seq: []byte("NNACGTAC")}
	runs := runLengths(r.Seq)
	start := seqContigStart(r, runs, 0, 6, 0, 0)
	if start != 2 {
		t.Fatalf("seqContigStart = %d, want 2", start)
	}
	end, next := seqContigEnd(r, runs, start, 6, 0, 0)
	if end != 8 {
		t.Errorf("seqContigEnd = %d, want 8", end)
	}
	if next != 8 {
		t.Errorf("nextSearchStart = %d, want 8", next)
	}
}

func TestSeqContigStartNoValidWindow(t *testing.T) {
	r := &Read{Seq: []byte("ACGT")}
	runs := runLengths(r.Seq)
	start := seqContigStart(r, runs, 0, 10, 0, 0)
	if start != len(r.Seq) {
		t.Errorf("seqContigStart = %d, want %d (no window of length 10 fits)", start, len(r.Seq))
	}
}

func TestSeqReadIsNovel(t *testing.T) {
	g := newTestGraph(t, 5)
	r := &Read{Seq: []byte("ACGTACGTAC")}

	novel1, err := seqReadIsNovel(g, 5, r, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !novel1 {
		t.Error("first observation of a read should be novel")
	}

	novel2, err := seqReadIsNovel(g, 5, r, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if novel2 {
		t.Error("repeated observation of the identical read should not be novel")
	}
}

func TestSeqReadIsNovelRecognisesReverseComplementDuplicate(t *testing.T) {
	g := newTestGraph(t, 5)
	r1 := &Read{Seq: []byte("ACGTACGTAC")}
	r2 := &Read{Seq: reverseComplementStr(r1.Seq)}

	if _, err := seqReadIsNovel(g, 5, r1, 0, 0); err != nil {
		t.Fatal(err)
	}
	novel, err := seqReadIsNovel(g, 5, r2, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if novel {
		t.Error("the reverse-complement start kmer should be recognised as the same read-start")
	}
}

func reverseComplementStr(seq []byte) []byte {
	comp := map[byte]byte{'A': 'T', 'C': 'G', 'G': 'C', 'T': 'A'}
	out := make([]byte, len(seq))
	for i, b := range seq {
		out[len(seq)-1-i] = comp[b]
	}
	return out
}

// sliceSource replays a fixed set of read pairs, then reports exhaustion.
type sliceSource struct {
	pairs []ReadPair
	i     int
}

func (s *sliceSource) Next() (ReadPair, bool, error) {
	if s.i >= len(s.pairs) {
		return ReadPair{}, false, nil
	}
	p := s.pairs[s.i]
	s.i++
	return p, true, nil
}

func TestPipelineRunTrivialBuild(t *testing.T) {
	g := newTestGraph(t, 5)
	st := stats.New(nil)
	src := &sliceSource{pairs: []ReadPair{{R1: &Read{Seq: []byte("ACGTACGTAC")}}}}

	p := New(g, 2, 4)
	task := &BuildTask{Colour: 0, Stats: st}
	err := p.Run(context.Background(), []SourceTask{{Source: src, Task: task}})
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalGoodReads() != 1 {
		t.Errorf("TotalGoodReads() = %d, want 1", st.TotalGoodReads())
	}
	if st.TotalKmers() == 0 {
		t.Error("expected at least one kmer loaded")
	}
}

func TestPipelineRunShortReadIsBad(t *testing.T) {
	g := newTestGraph(t, 21)
	st := stats.New(nil)
	src := &sliceSource{pairs: []ReadPair{{R1: &Read{Seq: []byte("ACGT")}}}}

	p := New(g, 1, 4)
	task := &BuildTask{Colour: 0, Stats: st}
	if err := p.Run(context.Background(), []SourceTask{{Source: src, Task: task}}); err != nil {
		t.Fatal(err)
	}
	if st.TotalBadReads() != 1 {
		t.Errorf("TotalBadReads() = %d, want 1", st.TotalBadReads())
	}
	if st.TotalGoodReads() != 0 {
		t.Errorf("TotalGoodReads() = %d, want 0", st.TotalGoodReads())
	}
}

func TestPipelineRunSingleEndDuplicateSuppressed(t *testing.T) {
	g := newTestGraph(t, 5)
	st := stats.New(nil)
	seq := []byte("ACGTACGTACGTAC")
	src := &sliceSource{pairs: []ReadPair{
		{R1: &Read{Seq: seq}},
		{R1: &Read{Seq: append([]byte(nil), seq...)}},
	}}

	p := New(g, 1, 4)
	task := &BuildTask{Colour: 0, Stats: st, RemoveDupsSE: true}
	if err := p.Run(context.Background(), []SourceTask{{Source: src, Task: task}}); err != nil {
		t.Fatal(err)
	}
	if st.TotalGoodReads() != 1 {
		t.Errorf("TotalGoodReads() = %d, want 1", st.TotalGoodReads())
	}
	if st.TotalDupReads() != 1 {
		t.Errorf("TotalDupReads() = %d, want 1", st.TotalDupReads())
	}
}

func TestPipelineRunPairedEndNovelPairLoaded(t *testing.T) {
	g := newTestGraph(t, 5)
	st := stats.New(nil)
	src := &sliceSource{pairs: []ReadPair{
		{R1: &Read{Seq: []byte("ACGTACGTAC")}, R2: &Read{Seq: []byte("TTTTTGGGGG")}},
	}}

	p := New(g, 1, 4)
	task := &BuildTask{Colour: 0, Stats: st, RemoveDupsPE: true}
	if err := p.Run(context.Background(), []SourceTask{{Source: src, Task: task}}); err != nil {
		t.Fatal(err)
	}
	if st.TotalGoodReads() != 2 {
		t.Errorf("TotalGoodReads() = %d, want 2 (both mates loaded)", st.TotalGoodReads())
	}
	if st.TotalDupReads() != 0 {
		t.Errorf("TotalDupReads() = %d, want 0", st.TotalDupReads())
	}
}

func TestPipelineRunMultiContigReadTwoHistogramEntries(t *testing.T) {
	g := newTestGraph(t, 5)
	st := stats.New(nil)
	// A 10-base contig and a 15-base contig, separated by an N break, so the
	// histogram gains two distinct length entries.
	seq := []byte("ACGTACGTACNNNNNTTTTTGGGGGAAAAA")
	src := &sliceSource{pairs: []ReadPair{{R1: &Read{Seq: seq}}}}

	p := New(g, 1, 4)
	task := &BuildTask{Colour: 0, Stats: st}
	if err := p.Run(context.Background(), []SourceTask{{Source: src, Task: task}}); err != nil {
		t.Fatal(err)
	}
	if st.TotalContigs() != 2 {
		t.Errorf("TotalContigs() = %d, want 2", st.TotalContigs())
	}
	hist := st.ContigLengthHistogram(0)
	if len(hist) != 2 {
		t.Errorf("histogram has %d distinct lengths, want 2: %v", len(hist), hist)
	}
}
