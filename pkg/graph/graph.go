// © 2025 dbgbuilder authors. MIT License.
package graph

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mccortex/dbgbuilder/internal/arena"
	"github.com/mccortex/dbgbuilder/internal/bitpack"
	"github.com/mccortex/dbgbuilder/internal/graphcore"
	"github.com/mccortex/dbgbuilder/internal/hashtable"
	"github.com/mccortex/dbgbuilder/internal/ingest"
	"github.com/mccortex/dbgbuilder/internal/pathstore"
	"github.com/mccortex/dbgbuilder/internal/pathwalk"
	"github.com/mccortex/dbgbuilder/internal/stats"
)

// SequenceSource re-exports internal/ingest's decoder contract: one input
// file's worth of decoded reads (spec §6's external collaborator).
type SequenceSource = ingest.SequenceSource

// Read and ReadPair re-export the decoded record types SequenceSource
// implementations produce.
type Read = ingest.Read
type ReadPair = ingest.ReadPair

// GraphConsumer accepts a finished Graph, per spec §6: "the core exposes
// iteration over vertices and their state for the writer". Internal
// implementations (binary graph format, path format, a key-value store)
// are not prescribed; graphexport.BadgerConsumer is one concrete example.
type GraphConsumer interface {
	ConsumeGraph(g *Graph) error
}

// Source pairs one SequenceSource with the ingestion parameters its reads
// should use, defaulting any zero field to the owning Graph's Config.
type Source struct {
	Reader            SequenceSource
	Colour            int
	QualCutoff        byte
	HomopolymerCutoff int
	RemoveDupsSE      bool
	RemoveDupsPE      bool
}

// ThreadSource pairs one re-readable SequenceSource with the colour its
// second-pass path threading should record under.
type ThreadSource struct {
	Reader SequenceSource
	Colour int
	Dedupe bool
}

// Graph owns a BucketedHashTable, GraphCore, arena-backed PathStore, and
// Stats, wired together exactly as spec §2 describes. It is the single
// object both IngestPipeline and PathThreader mutate and the object a
// GraphConsumer reads from once Build has returned.
type Graph struct {
	cfg   *Config
	table *hashtable.Table
	core  *graphcore.GraphCore
	arena *arena.Arena
	paths *pathstore.PathStore
	stats *stats.Stats
	log   *zap.Logger
}

// New validates opts and allocates the graph's fixed-capacity backing
// structures (hash table, edge arrays, path arena). It performs no I/O;
// call Build to ingest reads.
func New(opts ...Option) (*Graph, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	table := hashtable.New(cfg.Capacity, cfg.ProbeWindow)
	core := graphcore.New(table, cfg.K, cfg.NumColours)
	a := arena.New(cfg.ArenaBytes)
	ps := pathstore.New(a, core, cfg.NumColours)
	st := stats.New(cfg.Registry)

	cfg.Logger.Debug("graph: initialized",
		zap.Int("k", cfg.K),
		zap.Int("colours", cfg.NumColours),
		zap.Uint64("capacity", cfg.Capacity),
		zap.Int("arena_bytes", cfg.ArenaBytes),
	)

	return &Graph{cfg: cfg, table: table, core: core, arena: a, paths: ps, stats: st, log: cfg.Logger}, nil
}

// Config returns the Graph's effective (defaulted, validated) Config.
func (g *Graph) Config() Config { return *g.cfg }

// Core exposes GraphCore for collaborators (graphexport, tests) that need
// direct vertex/edge access beyond the read-only iteration helpers below.
func (g *Graph) Core() *graphcore.GraphCore { return g.core }

// PathStore exposes the packed path arena for collaborators that need to
// walk a vertex's recorded paths.
func (g *Graph) PathStore() *pathstore.PathStore { return g.paths }

// Stats returns the running ingestion counters and per-colour contig
// length histograms.
func (g *Graph) Stats() *stats.Stats { return g.stats }

// VertexCount returns the number of distinct canonical kmers inserted so
// far.
func (g *Graph) VertexCount() uint64 { return g.table.Len() }

// Vertex describes one occupied hash table slot, for GraphConsumer
// implementations writing the graph binary format (spec §6).
type Vertex struct {
	ID   hashtable.VertexId
	Kmer bitpack.Kmer
}

// VisitVertices calls fn once per occupied vertex, in hash table bucket
// order. It is safe to call only after Build has returned: mid-ingestion
// iteration would race with concurrent FindOrInsert calls.
func (g *Graph) VisitVertices(fn func(Vertex)) {
	cap := g.table.Capacity()
	for i := uint64(0); i < cap; i++ {
		id := hashtable.VertexId(i)
		if !g.table.Occupied(id) {
			continue
		}
		fn(Vertex{ID: id, Kmer: g.table.Kmer(id)})
	}
}

// EdgeByte returns vertex id's raw 8-bit edge mask for colour (low nibble
// outgoing, high nibble incoming), for the graph binary format writer.
func (g *Graph) EdgeByte(colour int, id hashtable.VertexId) uint8 {
	return g.core.EdgeByte(colour, id)
}

// ColourPresent reports whether any read of colour touched vertex id.
func (g *Graph) ColourPresent(colour int, id hashtable.VertexId) bool {
	return g.core.ColourPresent(colour, id)
}

// LoadVertex inserts km (restoring, not building, so no read ever competes
// with it) and overwrites its per-colour edge bytes and colour-presence
// bits from a previously serialized image. Used by collaborators
// restoring a graph binary format (spec §6) rather than by IngestPipeline.
func (g *Graph) LoadVertex(km bitpack.Kmer, edgeBytes []uint8, colourPresent []bool) (hashtable.VertexId, error) {
	vid, _, err := g.core.VertexFor(km)
	if err != nil {
		return 0, wrapErr("LoadVertex", OutOfMemory, err)
	}
	for col, b := range edgeBytes {
		g.core.SetEdgeByte(col, vid, b)
	}
	for col, present := range colourPresent {
		if present {
			g.core.SetColourPresent(col, vid)
		}
	}
	return vid, nil
}

// Build runs IngestPipeline to completion over every Source, blocking
// until all producers and consumers finish or a fatal error occurs (spec
// §5). Sources may be built in as many calls as the caller likes; each
// call drains completely before returning, so the caller can e.g. build
// one colour's inputs before loading the next file list.
func (g *Graph) Build(ctx context.Context, sources []Source) error {
	if len(sources) == 0 {
		return nil
	}
	pipeline := ingest.New(g.core, g.cfg.NumBuildThreads, g.cfg.PoolCapacity)

	tasks := make([]ingest.SourceTask, len(sources))
	for i, s := range sources {
		qc, hc := s.QualCutoff, s.HomopolymerCutoff
		if qc == 0 {
			qc = g.cfg.QualCutoff
		}
		if hc == 0 {
			hc = g.cfg.HomopolymerCutoff
		}
		tasks[i] = ingest.SourceTask{
			Source: s.Reader,
			Task: &ingest.BuildTask{
				Colour:            s.Colour,
				QualCutoff:        qc,
				HomopolymerCutoff: hc,
				RemoveDupsSE:      s.RemoveDupsSE || g.cfg.RemoveDupsSE,
				RemoveDupsPE:      s.RemoveDupsPE || g.cfg.RemoveDupsPE,
				Stats:             g.stats,
			},
		}
	}

	g.log.Info("graph: build starting", zap.Int("sources", len(sources)))
	if err := pipeline.Run(ctx, tasks); err != nil {
		g.log.Error("graph: build failed", zap.Error(err))
		return wrapErr("Build", classifyPipelineErr(err), err)
	}
	g.log.Info("graph: build finished",
		zap.Uint64("vertices", g.table.Len()),
		zap.Uint64("good_reads", g.stats.TotalGoodReads()),
		zap.Uint64("bad_reads", g.stats.TotalBadReads()),
		zap.Uint64("dup_reads", g.stats.TotalDupReads()),
	)

	if g.cfg.DebugChecks {
		if ratio := g.table.FillRatio(); ratio > 0.99 {
			g.log.Warn("graph: hash table nearly full", zap.Float64("fill_ratio", ratio))
		}
	}
	return nil
}

// ThreadPaths runs PathThreader over every ThreadSource, replaying each
// input a second time against the now-finalized graph and recording
// junction paths into the PathStore (spec §4.6). Call this only after
// every Build call whose output the paths should reflect has returned.
func (g *Graph) ThreadPaths(ctx context.Context, sources []ThreadSource) error {
	if len(sources) == 0 {
		return nil
	}
	threader := pathwalk.New(g.core, g.paths, g.cfg.NumThreadThreads, g.cfg.PoolCapacity)

	tasks := make([]pathwalk.Task, len(sources))
	for i, s := range sources {
		tasks[i] = pathwalk.Task{Source: s.Reader, Colour: s.Colour, Dedupe: s.Dedupe}
	}

	g.log.Info("graph: path threading starting", zap.Int("sources", len(sources)))
	if err := threader.Run(ctx, tasks); err != nil {
		g.log.Error("graph: path threading failed", zap.Error(err))
		return wrapErr("ThreadPaths", classifyPipelineErr(err), err)
	}

	if g.cfg.DebugChecks {
		if err := g.paths.IntegrityCheck(); err != nil {
			g.log.Error("graph: path store integrity check failed", zap.Error(err))
			return wrapErr("ThreadPaths", CorruptState, err)
		}
	}
	return nil
}

// Consume hands the finished Graph to consumer, for collaborators that
// persist or export it (spec §6's out-of-scope "graph-walking/variant-
// calling consumers" boundary: Graph itself stays collaborator-agnostic).
func (g *Graph) Consume(consumer GraphConsumer) error {
	if err := consumer.ConsumeGraph(g); err != nil {
		return wrapErr("Consume", IoError, err)
	}
	return nil
}

// classifyPipelineErr maps a fatal error from either IngestPipeline or
// PathThreader to its spec §7 ErrorKind: both a full hash table probe
// window (Build, Scenario A) and an exhausted PathStore arena (ThreadPaths,
// Scenario E) are capacity exhaustion, so both classify as OutOfMemory.
func classifyPipelineErr(err error) ErrorKind {
	switch {
	case errors.Is(err, hashtable.ErrTableFull), errors.Is(err, arena.ErrOutOfSpace):
		return OutOfMemory
	default:
		return IoError
	}
}
