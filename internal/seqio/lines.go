// Package seqio provides a minimal reference SequenceSource: one raw
// ACGT sequence per line, optionally zipped from two files for paired-end
// input. Spec §1 explicitly keeps "file-format readers for FASTQ/SAM/BAM"
// out of the core's scope and leaves SequenceSource's own implementation
// unprescribed; this package exists only so cmd/ctxthread has something
// concrete and testable to read from (including the one-sequence-per-line
// files tools/readgen writes), not as a stand-in for a real FASTQ/SAM
// decoder.
//
// © 2025 dbgbuilder authors. MIT License.
package seqio

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/mccortex/dbgbuilder/internal/ingest"
)

// SingleEnd decodes one line-per-read file into ingest.Read values with no
// quality scores (quality filtering is then a no-op per
// internal/ingest/contig.go's nil-Qual check).
type SingleEnd struct {
	f   *os.File
	sc  *bufio.Scanner
	dup bool
}

// OpenSingleEnd opens path for single-end reading.
func OpenSingleEnd(path string) (*SingleEnd, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seqio: open %q: %w", path, err)
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &SingleEnd{f: f, sc: sc}, nil
}

// Next implements ingest.SequenceSource.
func (s *SingleEnd) Next() (ingest.ReadPair, bool, error) {
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return ingest.ReadPair{}, false, fmt.Errorf("seqio: scan: %w", err)
		}
		return ingest.ReadPair{}, false, nil
	}
	line := s.sc.Bytes()
	seq := make([]byte, len(line))
	copy(seq, line)
	return ingest.ReadPair{R1: &ingest.Read{Seq: seq}}, true, nil
}

// Close releases the underlying file handle.
func (s *SingleEnd) Close() error { return s.f.Close() }

var _ io.Closer = (*SingleEnd)(nil)

// PairedEnd zips two line-per-read files into (r1, r2) pairs, stopping as
// soon as either file is exhausted.
type PairedEnd struct {
	f1, f2 *os.File
	sc1    *bufio.Scanner
	sc2    *bufio.Scanner
}

// OpenPairedEnd opens two mate files for paired-end reading.
func OpenPairedEnd(path1, path2 string) (*PairedEnd, error) {
	f1, err := os.Open(path1)
	if err != nil {
		return nil, fmt.Errorf("seqio: open %q: %w", path1, err)
	}
	f2, err := os.Open(path2)
	if err != nil {
		f1.Close()
		return nil, fmt.Errorf("seqio: open %q: %w", path2, err)
	}
	mkScanner := func(f *os.File) *bufio.Scanner {
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		return sc
	}
	return &PairedEnd{f1: f1, f2: f2, sc1: mkScanner(f1), sc2: mkScanner(f2)}, nil
}

// Next implements ingest.SequenceSource.
func (p *PairedEnd) Next() (ingest.ReadPair, bool, error) {
	ok1 := p.sc1.Scan()
	ok2 := p.sc2.Scan()
	if !ok1 || !ok2 {
		if err := p.sc1.Err(); err != nil {
			return ingest.ReadPair{}, false, fmt.Errorf("seqio: scan %s: %w", p.f1.Name(), err)
		}
		if err := p.sc2.Err(); err != nil {
			return ingest.ReadPair{}, false, fmt.Errorf("seqio: scan %s: %w", p.f2.Name(), err)
		}
		return ingest.ReadPair{}, false, nil
	}
	seq1 := append([]byte(nil), p.sc1.Bytes()...)
	seq2 := append([]byte(nil), p.sc2.Bytes()...)
	return ingest.ReadPair{R1: &ingest.Read{Seq: seq1}, R2: &ingest.Read{Seq: seq2}}, true, nil
}

// Close releases both underlying file handles.
func (p *PairedEnd) Close() error {
	err1 := p.f1.Close()
	err2 := p.f2.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

var _ io.Closer = (*PairedEnd)(nil)
