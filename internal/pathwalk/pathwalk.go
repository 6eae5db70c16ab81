// Package pathwalk implements PathThreader: the second ingestion pass that
// replays every input read against the now-finalized graph and records, for
// each junction it passes through, the sequence of bases the read actually
// took until the branch resolves.
//
// No original_source file for this component was retrieved alongside
// build_graph.c/path_store.c, so the junction-detection algorithm below is
// an original design built directly on GraphCore.OutDegree and
// PathStore.FindOrAdd rather than transcribed from a reference
// implementation; its concurrency model (producer-per-file, N consumers,
// errgroup supervision) is copied from internal/ingest per spec §4.6's
// "concurrency model matches IngestPipeline".
//
// © 2025 dbgbuilder authors. MIT License.
package pathwalk

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mccortex/dbgbuilder/internal/bitpack"
	"github.com/mccortex/dbgbuilder/internal/graphcore"
	"github.com/mccortex/dbgbuilder/internal/ingest"
	"github.com/mccortex/dbgbuilder/internal/msgpool"
	"github.com/mccortex/dbgbuilder/internal/pathstore"
	"github.com/mccortex/dbgbuilder/internal/unsafehelpers"
)

// Task pairs one SequenceSource re-reading an input file with the colour
// and dedup mode its paths should be recorded under.
type Task struct {
	Source ingest.SequenceSource
	Colour int
	Dedupe bool
}

// Threader is the PathThreader.
type Threader struct {
	graph        *graphcore.GraphCore
	store        *pathstore.PathStore
	numThreads   int
	poolCapacity int
}

// New constructs a Threader over an already-built graph and its PathStore.
func New(graph *graphcore.GraphCore, store *pathstore.PathStore, numThreads, poolCapacity int) *Threader {
	if numThreads <= 0 {
		numThreads = 1
	}
	return &Threader{graph: graph, store: store, numThreads: numThreads, poolCapacity: poolCapacity}
}

type threadBatch struct {
	pair ingest.ReadPair
	task *Task
}

// Run replays every Task's source to completion, threading paths into the
// PathStore. It returns the first fatal error encountered, if any.
func (t *Threader) Run(ctx context.Context, tasks []Task) error {
	pool := msgpool.New[threadBatch](t.poolCapacity)
	g, gctx := errgroup.WithContext(ctx)

	var producers sync.WaitGroup
	producers.Add(len(tasks))
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			defer producers.Done()
			return t.produce(gctx, pool, task)
		})
	}
	g.Go(func() error {
		producers.Wait()
		pool.Close()
		return nil
	})
	for i := 0; i < t.numThreads; i++ {
		g.Go(func() error {
			return t.consume(gctx, pool)
		})
	}
	return g.Wait()
}

func (t *Threader) produce(ctx context.Context, pool *msgpool.Pool[threadBatch], task Task) error {
	for {
		pair, ok, err := task.Source.Next()
		if err != nil {
			return fmt.Errorf("pathwalk: source read failed: %w", err)
		}
		if !ok {
			return nil
		}
		if err := pool.Push(ctx, threadBatch{pair: pair, task: &task}); err != nil {
			if errors.Is(err, msgpool.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (t *Threader) consume(ctx context.Context, pool *msgpool.Pool[threadBatch]) error {
	for {
		batch, ok, err := pool.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !ok {
			return nil
		}
		if err := t.threadRead(batch.pair.R1, batch.task); err != nil {
			return err
		}
		if batch.pair.R2 != nil {
			if err := t.threadRead(batch.pair.R2, batch.task); err != nil {
				return err
			}
		}
	}
}

// validSpans returns the maximal runs of ACGT-only bases in seq that are at
// least k long. PathThreader does not apply the quality/homopolymer
// cutoffs IngestPipeline does: it only needs bases the graph itself can
// represent.
func validSpans(seq []byte, k int) [][2]int {
	var out [][2]int
	n := len(seq)
	for i := 0; i < n; {
		if _, ok := bitpack.BaseFromChar(seq[i]); !ok {
			i++
			continue
		}
		start := i
		for i < n {
			if _, ok := bitpack.BaseFromChar(seq[i]); !ok {
				break
			}
			i++
		}
		if i-start >= k {
			out = append(out, [2]int{start, i})
		}
	}
	return out
}

func (t *Threader) threadRead(r *ingest.Read, task *Task) error {
	if r == nil {
		return nil
	}
	k := t.graph.K()
	for _, span := range validSpans(r.Seq, k) {
		if err := t.threadContig(r.Seq[span[0]:span[1]], task.Colour, task.Dedupe); err != nil {
			return err
		}
	}
	return nil
}

// threadContig walks contig kmer by kmer. Whenever the current vertex's
// out-degree (relative to the walk's traversal orientation) exceeds one, it
// starts recording the bases actually taken; recording stops once the walk
// lands on a vertex whose out-degree has dropped back to at most one, at
// which point the accumulated bases are committed as a PathRecord rooted
// at the vertex where the branch began.
func (t *Threader) threadContig(seq []byte, colour int, dedupe bool) error {
	k := t.graph.K()
	km, err := bitpack.FromString(unsafehelpers.BytesToString(seq[:k]), k)
	if err != nil {
		return fmt.Errorf("pathwalk: %w", err)
	}
	curVid, curOr, err := t.graph.VertexFor(km)
	if err != nil {
		return err
	}

	accumulating := t.graph.OutDegree(colour, curVid, curOr) > 1
	pathStart := curVid
	pathStartOr := curOr
	var bases []bitpack.Base

	for i := k; i < len(seq); i++ {
		base, ok := bitpack.BaseFromChar(seq[i])
		if !ok {
			return fmt.Errorf("pathwalk: invalid base %q in pre-filtered span", seq[i])
		}
		km = km.LeftShiftAppend(base)
		nextVid, nextOr, err := t.graph.VertexFor(km)
		if err != nil {
			return err
		}
		if accumulating {
			bases = append(bases, base)
		}

		outdeg := t.graph.OutDegree(colour, nextVid, nextOr)
		switch {
		case !accumulating && outdeg > 1:
			accumulating = true
			pathStart = nextVid
			pathStartOr = nextOr
			bases = nil
		case accumulating && outdeg <= 1:
			if len(bases) > 0 {
				if _, _, err := t.store.FindOrAdd(pathStart, bases, colour, pathStartOr, dedupe); err != nil {
					return err
				}
			}
			accumulating = false
			bases = nil
		}
		curVid, curOr = nextVid, nextOr
	}

	if accumulating && len(bases) > 0 {
		if _, _, err := t.store.FindOrAdd(pathStart, bases, colour, pathStartOr, dedupe); err != nil {
			return err
		}
	}
	return nil
}
