// © 2025 dbgbuilder authors. MIT License.
package graph

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mccortex/dbgbuilder/internal/bitpack"
	"github.com/mccortex/dbgbuilder/internal/hashtable"
)

// Config bundles every knob that influences Build behaviour, following
// the teacher's config.go: a struct built exclusively through functional
// Options, validated and defaulted once at New time rather than mutated
// afterwards.
type Config struct {
	K          int
	NumColours int

	// Capacity is the hash table's fixed vertex capacity (spec's
	// hash_table_mem, expressed here directly in vertex slots rather than
	// bytes, since the packed kmer width already fixes the per-slot size).
	Capacity uint64
	// ProbeWindow bounds find_or_insert's linear probe (spec §4.1);
	// defaults to hashtable.DefaultProbeWindow.
	ProbeWindow int
	// ArenaBytes is PathStore's fixed-size backing arena in bytes.
	ArenaBytes int

	// NumBuildThreads is the IngestPipeline consumer goroutine count.
	NumBuildThreads int
	// NumThreadThreads is the PathThreader consumer goroutine count.
	NumThreadThreads int
	// PoolCapacity is MessagePool's MSGPOOLRSIZE, shared by both passes.
	PoolCapacity int

	// QualCutoff and HomopolymerCutoff apply to every BuildTask that does
	// not set its own (spec §4.5); individual BuildTasks may still
	// override these per source.
	QualCutoff        byte
	HomopolymerCutoff int
	RemoveDupsSE      bool
	RemoveDupsPE      bool

	// DebugChecks gates HashTable.FillRatio after Build (logged as a
	// warning above 0.99) and PathStore.IntegrityCheck after ThreadPaths,
	// per spec §7's "integrity checks run in debug builds only".
	DebugChecks bool

	Logger   *zap.Logger
	Registry *prometheus.Registry
}

// Option mutates a Config under construction. Unlike the teacher's
// generic Option[K,V] (needed there because WeightFn/EjectCallback are
// typed in terms of the cache's K/V), every Config field here has a
// concrete domain type, so Option is a plain function.
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		K:                 31,
		NumColours:        1,
		Capacity:          1 << 20,
		ProbeWindow:       hashtable.DefaultProbeWindow,
		ArenaBytes:        64 << 20,
		NumBuildThreads:   4,
		NumThreadThreads:  4,
		PoolCapacity:      256,
		HomopolymerCutoff: 0,
		Logger:            zap.NewNop(),
	}
}

// WithK sets the kmer length. Must be odd and within
// [bitpack.MinK, bitpack.MaxK]; checked by New, not by the option itself,
// so options can be applied in any order.
func WithK(k int) Option { return func(c *Config) { c.K = k } }

// WithColours sets the number of distinct sample colours the graph will
// track.
func WithColours(n int) Option { return func(c *Config) { c.NumColours = n } }

// WithCapacity sets the hash table's fixed vertex capacity.
func WithCapacity(n uint64) Option { return func(c *Config) { c.Capacity = n } }

// WithProbeWindow overrides the bounded linear-probe length.
func WithProbeWindow(n int) Option { return func(c *Config) { c.ProbeWindow = n } }

// WithArenaBytes sets PathStore's fixed arena capacity in bytes.
func WithArenaBytes(n int) Option { return func(c *Config) { c.ArenaBytes = n } }

// WithBuildThreads sets the IngestPipeline consumer goroutine count.
func WithBuildThreads(n int) Option { return func(c *Config) { c.NumBuildThreads = n } }

// WithThreadThreads sets the PathThreader consumer goroutine count.
func WithThreadThreads(n int) Option { return func(c *Config) { c.NumThreadThreads = n } }

// WithPoolCapacity sets the MessagePool ring size shared by both passes.
func WithPoolCapacity(n int) Option { return func(c *Config) { c.PoolCapacity = n } }

// WithQualityCutoff sets the default per-base Phred quality cutoff.
func WithQualityCutoff(q byte) Option { return func(c *Config) { c.QualCutoff = q } }

// WithHomopolymerCutoff sets the default homopolymer run-length cutoff;
// zero disables the filter.
func WithHomopolymerCutoff(n int) Option { return func(c *Config) { c.HomopolymerCutoff = n } }

// WithDedupSingleEnd enables novelty-based duplicate suppression for
// single-end BuildTasks that don't override it.
func WithDedupSingleEnd(on bool) Option { return func(c *Config) { c.RemoveDupsSE = on } }

// WithDedupPairedEnd enables novelty-based duplicate suppression for
// paired-end BuildTasks that don't override it.
func WithDedupPairedEnd(on bool) Option { return func(c *Config) { c.RemoveDupsPE = on } }

// WithDebugChecks enables the HashTable.FillRatio check after Build and
// PathStore.IntegrityCheck after ThreadPaths (spec §7's debug-build-only
// integrity checks).
func WithDebugChecks(on bool) Option { return func(c *Config) { c.DebugChecks = on } }

// WithLogger plugs an external zap.Logger. The engine never logs on the
// hot path, only at pipeline start/stop and on fatal error, exactly as
// the teacher's cache logs arena rotations and nothing else.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithMetrics enables Prometheus export for Stats. Passing nil disables
// metrics (the default): Stats always keeps its own atomic counters
// regardless, this only controls whether they are mirrored into reg.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *Config) { c.Registry = reg }
}

var (
	errInvalidK        = errors.New("graph: K must be odd and within bitpack's supported range")
	errInvalidColours  = errors.New("graph: NumColours must be > 0")
	errInvalidCapacity = errors.New("graph: Capacity must be > 0")
	errInvalidArena    = errors.New("graph: ArenaBytes must be > 0")
)

func applyOptions(opts []Option) (*Config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if !bitpack.ValidK(cfg.K) {
		return nil, wrapErr("New", InvalidArgument, errInvalidK)
	}
	if cfg.NumColours <= 0 {
		return nil, wrapErr("New", InvalidArgument, errInvalidColours)
	}
	if cfg.Capacity == 0 {
		return nil, wrapErr("New", InvalidArgument, errInvalidCapacity)
	}
	if cfg.ArenaBytes <= 0 {
		return nil, wrapErr("New", InvalidArgument, errInvalidArena)
	}
	if cfg.ProbeWindow <= 0 {
		cfg.ProbeWindow = hashtable.DefaultProbeWindow
	}
	if cfg.NumBuildThreads <= 0 {
		cfg.NumBuildThreads = 1
	}
	if cfg.NumThreadThreads <= 0 {
		cfg.NumThreadThreads = 1
	}
	if cfg.PoolCapacity <= 0 {
		cfg.PoolCapacity = 64
	}
	return cfg, nil
}
