// Package ingest implements IngestPipeline: the producer/consumer pipeline
// that decodes reads from SequenceSources, applies duplicate suppression,
// and inserts valid contigs into a GraphCore.
//
// Grounded on original_source/src/kmer/build_graph.c end to end
// (build_graph_reads / load_read / seq_read_is_novel / seq_reads_are_novel
// / build_graph_from_str_mt), with the hand-rolled pthread pool replaced by
// golang.org/x/sync/errgroup-supervised goroutines per spec §9's explicit
// call to do so.
//
// © 2025 dbgbuilder authors. MIT License.
package ingest

import "github.com/mccortex/dbgbuilder/internal/stats"

// Read is a single decoded sequencing read: raw bases, optional per-base
// quality scores, the FASTQ quality ASCII offset used to interpret them,
// and whether the upstream SAM/BAM record carried the PCR-duplicate flag.
// This is the full content of the "opaque iterator" described in spec §6.
type Read struct {
	Seq      []byte
	Qual     []byte // nil disables quality filtering entirely
	FqOffset byte
	SamDup   bool
}

// ReadPair is single-end (R2 == nil) or paired-end decoded input.
type ReadPair struct {
	R1 *Read
	R2 *Read
}

// BuildTask describes how a SequenceSource's reads should be loaded: which
// colour they belong to, the quality/homopolymer cutoffs, whether
// duplicate suppression is requested, and where stats land.
type BuildTask struct {
	Colour            int
	QualCutoff        byte
	HomopolymerCutoff int
	RemoveDupsSE      bool
	RemoveDupsPE      bool
	Stats             *stats.Stats
}

// SequenceSource decodes one input file's reads. Next returns ok=false
// once the source is exhausted; a non-nil error is always fatal to the
// pipeline (spec §7: "all errors encountered in worker threads ... are
// terminal").
type SequenceSource interface {
	Next() (pair ReadPair, ok bool, err error)
}

// readBatch is the message type threaded through msgpool.Pool, pairing one
// decoded read (or pair) with the task describing how to load it.
type readBatch struct {
	pair ReadPair
	task *BuildTask
}
