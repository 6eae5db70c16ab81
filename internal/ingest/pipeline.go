// © 2025 dbgbuilder authors. MIT License.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mccortex/dbgbuilder/internal/bitpack"
	"github.com/mccortex/dbgbuilder/internal/graphcore"
	"github.com/mccortex/dbgbuilder/internal/msgpool"
	"github.com/mccortex/dbgbuilder/internal/unsafehelpers"
)

// SourceTask pairs one SequenceSource with the BuildTask describing how its
// reads should be loaded.
type SourceTask struct {
	Source SequenceSource
	Task   *BuildTask
}

// Pipeline is the IngestPipeline: one producer goroutine per SourceTask
// feeding a bounded MessagePool, drained by a fixed pool of builder
// goroutines that mutate GraphCore. Supervision is via
// golang.org/x/sync/errgroup so the first fatal error cancels every other
// goroutine and is the single error Run returns (spec §5's "on fatal error
// any thread calls a process-wide abort routine").
type Pipeline struct {
	graph           *graphcore.GraphCore
	numBuildThreads int
	poolCapacity    int
}

// New constructs a Pipeline over graph. numBuildThreads is the consumer
// goroutine count (spec's num_build_threads); poolCapacity is the
// MessagePool's MSGPOOLRSIZE.
func New(graph *graphcore.GraphCore, numBuildThreads, poolCapacity int) *Pipeline {
	if numBuildThreads <= 0 {
		numBuildThreads = 1
	}
	return &Pipeline{graph: graph, numBuildThreads: numBuildThreads, poolCapacity: poolCapacity}
}

// Run drives every SourceTask to completion, blocking until all producers
// and consumers have finished or a fatal error occurs. It returns the
// first fatal error encountered, if any.
func (p *Pipeline) Run(ctx context.Context, sources []SourceTask) error {
	pool := msgpool.New[readBatch](p.poolCapacity)
	g, gctx := errgroup.WithContext(ctx)

	var producers sync.WaitGroup
	producers.Add(len(sources))
	for _, st := range sources {
		st := st
		g.Go(func() error {
			defer producers.Done()
			return p.produce(gctx, pool, st)
		})
	}
	g.Go(func() error {
		producers.Wait()
		pool.Close()
		return nil
	})
	for i := 0; i < p.numBuildThreads; i++ {
		g.Go(func() error {
			return p.consume(gctx, pool)
		})
	}
	return g.Wait()
}

func (p *Pipeline) produce(ctx context.Context, pool *msgpool.Pool[readBatch], st SourceTask) error {
	for {
		pair, ok, err := st.Source.Next()
		if err != nil {
			return fmt.Errorf("ingest: source read failed: %w", err)
		}
		if !ok {
			return nil
		}
		if err := pool.Push(ctx, readBatch{pair: pair, task: st.Task}); err != nil {
			if errors.Is(err, msgpool.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (p *Pipeline) consume(ctx context.Context, pool *msgpool.Pool[readBatch]) error {
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
		if err := p.buildGraphReads(batch.pair, batch.task); err != nil {
			return err
		}
	}
}

// buildGraphReads mirrors original_source's build_graph_reads: count bases
// read, apply SAM/PCR and novelty-based duplicate suppression, then load
// whichever reads survive.
func (p *Pipeline) buildGraphReads(pair ReadPair, task *BuildTask) error {
	k := p.graph.K()

	nbases := uint64(len(pair.R1.Seq))
	if pair.R2 != nil {
		nbases += uint64(len(pair.R2.Seq))
	}
	task.Stats.AddBasesRead(task.Colour, nbases)

	fqCut1, fqCut2 := task.QualCutoff, task.QualCutoff
	if task.QualCutoff > 0 {
		fqCut1 += pair.R1.FqOffset
		if pair.R2 != nil {
			fqCut2 += pair.R2.FqOffset
		}
	}

	samdupe1 := pair.R1.SamDup
	// A missing mate counts as a SAM duplicate: confirmed intentional
	// (spec §9 Open Question discussion / DESIGN.md) so that a single
	// orphaned read with a dup-flagged mate cannot mask a true duplicate.
	samdupe2 := pair.R2 == nil || pair.R2.SamDup

	var isDup bool
	var err error
	switch {
	case samdupe1 && samdupe2:
		isDup = true
	case pair.R2 != nil && task.RemoveDupsPE:
		var novel bool
		novel, err = seqReadsAreNovel(p.graph, k, pair.R1, pair.R2, fqCut1, fqCut2, task.HomopolymerCutoff)
		isDup = !novel
	case pair.R2 == nil && task.RemoveDupsSE:
		var novel bool
		novel, err = seqReadIsNovel(p.graph, k, pair.R1, fqCut1, task.HomopolymerCutoff)
		isDup = !novel
	}
	if err != nil {
		return err
	}
	if isDup {
		n := uint64(1)
		if pair.R2 != nil {
			n = 2
		}
		task.Stats.AddDupReads(task.Colour, n)
		return nil
	}

	if err := p.loadRead(pair.R1, fqCut1, task); err != nil {
		return err
	}
	if pair.R2 != nil {
		if err := p.loadRead(pair.R2, fqCut2, task); err != nil {
			return err
		}
	}
	return nil
}

// loadRead mirrors original_source's load_read: repeatedly find a valid
// contig and insert it, tallying good/bad read counts by whether any
// contig was found at all.
func (p *Pipeline) loadRead(r *Read, qCut byte, task *BuildTask) error {
	k := p.graph.K()
	if len(r.Seq) < k {
		task.Stats.AddBadReads(task.Colour, 1)
		return nil
	}

	runs := runLengths(r.Seq)
	searchStart := 0
	foundAny := false

	for {
		contigStart := seqContigStart(r, runs, searchStart, k, qCut, task.HomopolymerCutoff)
		if contigStart >= len(r.Seq) {
			break
		}
		end, next := seqContigEnd(r, runs, contigStart, k, qCut, task.HomopolymerCutoff)
		searchStart = next
		contigLen := end - contigStart

		if err := buildGraphFromStr(p.graph, task.Colour, r.Seq[contigStart:end]); err != nil {
			return err
		}
		task.Stats.AddContig(task.Colour, contigLen, k)
		foundAny = true
	}

	if foundAny {
		task.Stats.AddGoodReads(task.Colour, 1)
	} else {
		task.Stats.AddBadReads(task.Colour, 1)
	}
	return nil
}

// buildGraphFromStr mirrors original_source's build_graph_from_str_mt:
// insert contig_len-k+1 kmers and contig_len-k edges for colour.
func buildGraphFromStr(graph *graphcore.GraphCore, colour int, seq []byte) error {
	k := graph.K()
	km, err := bitpack.FromString(unsafehelpers.BytesToString(seq[:k]), k)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	prevVid, prevOr, err := graph.FindOrAddVertex(km, colour)
	if err != nil {
		return err
	}
	prevFirstBase := km.Bases()[0]

	for i := k; i < len(seq); i++ {
		base, ok := bitpack.BaseFromChar(seq[i])
		if !ok {
			return fmt.Errorf("ingest: invalid base %q in pre-filtered contig", seq[i])
		}
		fromFirstBase := prevFirstBase
		km = km.LeftShiftAppend(base)
		curVid, curOr, err := graph.FindOrAddVertex(km, colour)
		if err != nil {
			return err
		}
		graph.AddEdge(colour, prevVid, curVid, prevOr, curOr, base, fromFirstBase)
		prevVid, prevOr = curVid, curOr
		prevFirstBase = km.Bases()[0]
	}
	return nil
}
