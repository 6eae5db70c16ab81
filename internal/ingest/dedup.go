// © 2025 dbgbuilder authors. MIT License.
package ingest

import (
	"github.com/mccortex/dbgbuilder/internal/bitpack"
	"github.com/mccortex/dbgbuilder/internal/graphcore"
	"github.com/mccortex/dbgbuilder/internal/unsafehelpers"
)

func firstKmer(graph *graphcore.GraphCore, r *Read, runs []int, k int, qCut byte, hpCut int) (bitpack.Kmer, bool) {
	start := seqContigStart(r, runs, 0, k, qCut, hpCut)
	if start >= len(r.Seq) {
		return bitpack.Kmer{}, false
	}
	km, err := bitpack.FromString(unsafehelpers.BytesToString(r.Seq[start:start+k]), k)
	if err != nil {
		return bitpack.Kmer{}, false
	}
	return km, true
}

// seqReadIsNovel locates r's first valid kmer, inserts its vertex, and
// atomically test-and-sets the read_start bit for its orientation. It
// returns true iff the bit was not already set, or r had no valid kmer
// (spec §4.5).
func seqReadIsNovel(graph *graphcore.GraphCore, k int, r *Read, qCut byte, hpCut int) (bool, error) {
	runs := runLengths(r.Seq)
	km, ok := firstKmer(graph, r, runs, k, qCut, hpCut)
	if !ok {
		return true, nil
	}
	vid, orient, err := graph.VertexFor(km)
	if err != nil {
		return false, err
	}
	wasAlreadySet := graph.MarkReadStart(vid, orient)
	return !wasAlreadySet, nil
}

// seqReadsAreNovel does the same for both reads of a pair; the pair is
// novel iff at least one of the two read_start bits was freshly set, or
// neither read has a valid kmer at all (spec §4.5).
func seqReadsAreNovel(graph *graphcore.GraphCore, k int, r1, r2 *Read, qCut1, qCut2 byte, hpCut int) (bool, error) {
	runs1 := runLengths(r1.Seq)
	km1, got1 := firstKmer(graph, r1, runs1, k, qCut1, hpCut)
	runs2 := runLengths(r2.Seq)
	km2, got2 := firstKmer(graph, r2, runs2, k, qCut2, hpCut)

	if !got1 && !got2 {
		return true, nil
	}

	novel := false
	if got1 {
		vid, orient, err := graph.VertexFor(km1)
		if err != nil {
			return false, err
		}
		if wasAlreadySet := graph.MarkReadStart(vid, orient); !wasAlreadySet {
			novel = true
		}
	}
	if got2 {
		vid, orient, err := graph.VertexFor(km2)
		if err != nil {
			return false, err
		}
		if wasAlreadySet := graph.MarkReadStart(vid, orient); !wasAlreadySet {
			novel = true
		}
	}
	return novel, nil
}
