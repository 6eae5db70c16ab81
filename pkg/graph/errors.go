// Package graph is the public facade over the colour de Bruijn graph and
// read-thread ingestion engine: it wires internal/hashtable,
// internal/graphcore, internal/arena, internal/pathstore,
// internal/ingest, and internal/pathwalk behind a single Config/New/Build
// entry point, the way the teacher's pkg/cache.go wires shard/clockpro/
// genring behind Cache.New/Put/Close.
//
// © 2025 dbgbuilder authors. MIT License.
package graph

import "fmt"

// ErrorKind classifies a graph.Error for callers that need to branch on
// failure category (spec §7) without parsing error strings.
type ErrorKind int

const (
	// InvalidArgument means a Config value or call argument violates an
	// invariant (bad k, zero colours, etc.).
	InvalidArgument ErrorKind = iota
	// IoError wraps a failure reading a SequenceSource or writing a
	// GraphConsumer.
	IoError
	// FormatError means decoded input did not match the expected shape
	// (e.g. malformed kmer text). A read too short for any k-mer is not a
	// FormatError; Build counts it as a bad read.
	FormatError
	// OutOfMemory means a fixed-capacity structure (hash table probe
	// window, path arena) was exhausted.
	OutOfMemory
	// CorruptState means a debug-only integrity check failed.
	CorruptState
	// ThreadingError means PathThreader encountered a graph it could not
	// replay consistently (a read referencing a kmer never inserted).
	ThreadingError
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case IoError:
		return "io_error"
	case FormatError:
		return "format_error"
	case OutOfMemory:
		return "out_of_memory"
	case CorruptState:
		return "corrupt_state"
	case ThreadingError:
		return "threading_error"
	default:
		return "unknown"
	}
}

// Error is the single exported error type the graph package returns: a
// Kind for programmatic branching plus a wrapped cause for human-readable
// diagnostics and errors.Is/errors.As chaining.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("graph: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("graph: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(op string, kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
