// Package bench provides reproducible micro-benchmarks for the ingestion
// engine. Run via: go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// We measure:
//  1. BuildSingleEnd   — single-end IngestPipeline throughput
//  2. BuildPairedEnd   — paired-end IngestPipeline throughput
//  3. BuildConcurrency — same dataset across varying NumBuildThreads
//  4. ThreadPaths      — PathThreader throughput over a pre-built graph
//
// Grounded on bench/bench_test.go's package-level dataset built once,
// b.ReportAllocs/b.ResetTimer usage, and deterministic rand seed in
// init().
//
// © 2025 dbgbuilder authors. MIT License.
package bench

import (
	"context"
	"math/rand"
	"runtime"
	"testing"

	"github.com/mccortex/dbgbuilder/internal/ingest"
	"github.com/mccortex/dbgbuilder/pkg/graph"
)

const (
	genomeLen = 20000
	readLen   = 100
	numReads  = 20000
	k         = 25
)

var genome = func() []byte {
	rnd := rand.New(rand.NewSource(42))
	g := make([]byte, genomeLen)
	bases := [4]byte{'A', 'C', 'G', 'T'}
	for i := range g {
		g[i] = bases[rnd.Intn(4)]
	}
	return g
}()

var reads = func() [][]byte {
	rnd := rand.New(rand.NewSource(43))
	out := make([][]byte, numReads)
	for i := range out {
		start := rnd.Intn(len(genome) - readLen + 1)
		r := make([]byte, readLen)
		copy(r, genome[start:start+readLen])
		out[i] = r
	}
	return out
}()

// sliceSource replays a fixed in-memory read slice, so benchmarks measure
// pipeline/graph cost rather than file I/O.
type sliceSource struct {
	reads [][]byte
	i     int
}

func (s *sliceSource) Next() (ingest.ReadPair, bool, error) {
	if s.i >= len(s.reads) {
		return ingest.ReadPair{}, false, nil
	}
	r := s.reads[s.i]
	s.i++
	return ingest.ReadPair{R1: &ingest.Read{Seq: r}}, true, nil
}

func newGraph(buildThreads int) *graph.Graph {
	g, err := graph.New(
		graph.WithK(k),
		graph.WithColours(1),
		graph.WithCapacity(1<<20),
		graph.WithArenaBytes(8<<20),
		graph.WithBuildThreads(buildThreads),
		graph.WithPoolCapacity(256),
	)
	if err != nil {
		panic(err)
	}
	return g
}

func BenchmarkBuildSingleEnd(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		g := newGraph(4)
		src := &sliceSource{reads: reads}
		if err := g.Build(context.Background(), []graph.Source{{Reader: src, Colour: 0}}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBuildPairedEnd(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		g := newGraph(4)
		src := &pairedSliceSource{reads: reads}
		if err := g.Build(context.Background(), []graph.Source{{Reader: src, Colour: 0}}); err != nil {
			b.Fatal(err)
		}
	}
}

type pairedSliceSource struct {
	reads [][]byte
	i     int
}

func (s *pairedSliceSource) Next() (ingest.ReadPair, bool, error) {
	if s.i+1 >= len(s.reads) {
		return ingest.ReadPair{}, false, nil
	}
	r1, r2 := s.reads[s.i], s.reads[s.i+1]
	s.i += 2
	return ingest.ReadPair{R1: &ingest.Read{Seq: r1}, R2: &ingest.Read{Seq: r2}}, true, nil
}

func BenchmarkBuildConcurrency(b *testing.B) {
	for _, threads := range []int{1, 2, 4, 8} {
		threads := threads
		b.Run(concurrencyLabel(threads), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				g := newGraph(threads)
				src := &sliceSource{reads: reads}
				if err := g.Build(context.Background(), []graph.Source{{Reader: src, Colour: 0}}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkThreadPaths(b *testing.B) {
	b.ReportAllocs()
	b.StopTimer()
	for i := 0; i < b.N; i++ {
		g := newGraph(4)
		if err := g.Build(context.Background(), []graph.Source{{Reader: &sliceSource{reads: reads}, Colour: 0}}); err != nil {
			b.Fatal(err)
		}
		src := &sliceSource{reads: reads}
		b.StartTimer()
		if err := g.ThreadPaths(context.Background(), []graph.ThreadSource{{Reader: src, Colour: 0, Dedupe: true}}); err != nil {
			b.Fatal(err)
		}
		b.StopTimer()
	}
}

func concurrencyLabel(n int) string {
	switch n {
	case 1:
		return "threads=1"
	case 2:
		return "threads=2"
	case 4:
		return "threads=4"
	default:
		return "threads=8"
	}
}

func init() {
	runtime.GOMAXPROCS(runtime.NumCPU())
}
