// Package stats implements Stats: the atomically-updated counters and
// per-contig-length histogram accumulated during ingestion, with optional
// Prometheus export.
//
// Grounded on the teacher's pkg/metrics.go no-op/Prometheus sink split:
// the hot path always talks to the same metricsSink interface, and pays
// nothing extra when metrics are disabled.
//
// © 2025 dbgbuilder authors. MIT License.
package stats

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// sink abstracts the Prometheus-vs-noop choice away from Stats itself,
// exactly as the teacher's metricsSink interface does for Cache.
type sink interface {
	incBases(colour int, delta uint64)
	incDupReads(colour int, delta uint64)
	incBadReads(colour int, delta uint64)
	incGoodReads(colour int, delta uint64)
	incKmers(colour int, delta uint64)
	incContigs(colour int, delta uint64)
	observeContigLen(colour int, length int)
}

type noopSink struct{}

func (noopSink) incBases(int, uint64)      {}
func (noopSink) incDupReads(int, uint64)   {}
func (noopSink) incBadReads(int, uint64)   {}
func (noopSink) incGoodReads(int, uint64)  {}
func (noopSink) incKmers(int, uint64)      {}
func (noopSink) incContigs(int, uint64)    {}
func (noopSink) observeContigLen(int, int) {}

type promSink struct {
	bases     *prometheus.CounterVec
	dupReads  *prometheus.CounterVec
	badReads  *prometheus.CounterVec
	goodReads *prometheus.CounterVec
	kmers     *prometheus.CounterVec
	contigs   *prometheus.CounterVec
	lengths   *prometheus.HistogramVec
}

func newPromSink(reg *prometheus.Registry) *promSink {
	label := []string{"colour"}
	ps := &promSink{
		bases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbgbuilder", Name: "bases_read_total",
			Help: "Total bases read across all loaded reads.",
		}, label),
		dupReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbgbuilder", Name: "dup_reads_total",
			Help: "Reads suppressed as PCR/SAM duplicates.",
		}, label),
		badReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbgbuilder", Name: "bad_reads_total",
			Help: "Reads that yielded no contig of length >= k.",
		}, label),
		goodReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbgbuilder", Name: "good_reads_total",
			Help: "Reads that yielded at least one contig.",
		}, label),
		kmers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbgbuilder", Name: "kmers_loaded_total",
			Help: "Kmers inserted into the graph.",
		}, label),
		contigs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbgbuilder", Name: "contigs_loaded_total",
			Help: "Contigs successfully loaded into the graph.",
		}, label),
		lengths: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dbgbuilder", Name: "contig_length_bases",
			Help:    "Distribution of loaded contig lengths.",
			Buckets: prometheus.ExponentialBuckets(16, 2, 12),
		}, label),
	}
	reg.MustRegister(ps.bases, ps.dupReads, ps.badReads, ps.goodReads, ps.kmers, ps.contigs, ps.lengths)
	return ps
}

func (p *promSink) incBases(c int, d uint64)     { p.bases.WithLabelValues(colourLabel(c)).Add(float64(d)) }
func (p *promSink) incDupReads(c int, d uint64)  { p.dupReads.WithLabelValues(colourLabel(c)).Add(float64(d)) }
func (p *promSink) incBadReads(c int, d uint64)  { p.badReads.WithLabelValues(colourLabel(c)).Add(float64(d)) }
func (p *promSink) incGoodReads(c int, d uint64) { p.goodReads.WithLabelValues(colourLabel(c)).Add(float64(d)) }
func (p *promSink) incKmers(c int, d uint64)     { p.kmers.WithLabelValues(colourLabel(c)).Add(float64(d)) }
func (p *promSink) incContigs(c int, d uint64)   { p.contigs.WithLabelValues(colourLabel(c)).Add(float64(d)) }
func (p *promSink) observeContigLen(c int, length int) {
	p.lengths.WithLabelValues(colourLabel(c)).Observe(float64(length))
}

func colourLabel(c int) string { return strconv.Itoa(c) }

// Stats accumulates the ingestion-wide counters and per-colour histograms
// described in spec §4.5/§7 ("stats counters: 64-bit atomic add"). All
// mutating methods are safe for concurrent use by every builder goroutine.
type Stats struct {
	totalBasesRead atomic.Uint64
	totalDupReads  atomic.Uint64
	totalBadReads  atomic.Uint64
	totalGoodReads atomic.Uint64
	totalKmers     atomic.Uint64
	totalContigs   atomic.Uint64

	mu              sync.Mutex
	contigLenByColour map[int]map[int]uint64 // colour -> length -> count

	sink sink
}

// New constructs an empty Stats. If reg is non-nil, counters and the contig
// length histogram are also mirrored into it; otherwise metric updates are
// no-ops beyond the atomic counters Stats always keeps for itself.
func New(reg *prometheus.Registry) *Stats {
	s := &Stats{contigLenByColour: make(map[int]map[int]uint64)}
	if reg == nil {
		s.sink = noopSink{}
	} else {
		s.sink = newPromSink(reg)
	}
	return s
}

// AddBasesRead records nbases bases having been pulled off the wire for
// colour, regardless of whether they end up loaded into the graph.
func (s *Stats) AddBasesRead(colour int, nbases uint64) {
	s.totalBasesRead.Add(nbases)
	s.sink.incBases(colour, nbases)
}

// AddDupReads records n reads suppressed by duplicate detection.
func (s *Stats) AddDupReads(colour int, n uint64) {
	s.totalDupReads.Add(n)
	s.sink.incDupReads(colour, n)
}

// AddBadReads records n reads that produced no contig of length >= k.
func (s *Stats) AddBadReads(colour int, n uint64) {
	s.totalBadReads.Add(n)
	s.sink.incBadReads(colour, n)
}

// AddGoodReads records n reads that produced at least one contig.
func (s *Stats) AddGoodReads(colour int, n uint64) {
	s.totalGoodReads.Add(n)
	s.sink.incGoodReads(colour, n)
}

// AddContig records one successfully loaded contig of the given length,
// contributing (length-k+1) kmers to the running kmer counter.
func (s *Stats) AddContig(colour int, length, k int) {
	s.totalContigs.Add(1)
	s.sink.incContigs(colour, 1)

	nkmers := uint64(0)
	if length >= k {
		nkmers = uint64(length - k + 1)
	}
	s.totalKmers.Add(nkmers)
	s.sink.incKmers(colour, nkmers)

	s.mu.Lock()
	byLen := s.contigLenByColour[colour]
	if byLen == nil {
		byLen = make(map[int]uint64)
		s.contigLenByColour[colour] = byLen
	}
	byLen[length]++
	s.mu.Unlock()
	s.sink.observeContigLen(colour, length)
}

// TotalBasesRead returns the running bases-read counter.
func (s *Stats) TotalBasesRead() uint64 { return s.totalBasesRead.Load() }

// TotalDupReads returns the running duplicate-suppressed-reads counter.
func (s *Stats) TotalDupReads() uint64 { return s.totalDupReads.Load() }

// TotalBadReads returns the running bad-reads counter.
func (s *Stats) TotalBadReads() uint64 { return s.totalBadReads.Load() }

// TotalGoodReads returns the running good-reads counter.
func (s *Stats) TotalGoodReads() uint64 { return s.totalGoodReads.Load() }

// TotalKmers returns the running kmers-loaded counter.
func (s *Stats) TotalKmers() uint64 { return s.totalKmers.Load() }

// TotalContigs returns the running contigs-loaded counter.
func (s *Stats) TotalContigs() uint64 { return s.totalContigs.Load() }

// ContigLengthHistogram returns a snapshot (length -> count) of contig
// lengths observed for colour. Intended for tests and debug reporting, not
// the ingestion hot path.
func (s *Stats) ContigLengthHistogram(colour int) map[int]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.contigLenByColour[colour]
	out := make(map[int]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
