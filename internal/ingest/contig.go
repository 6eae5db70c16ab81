// © 2025 dbgbuilder authors. MIT License.
package ingest

import "github.com/mccortex/dbgbuilder/internal/bitpack"

// runLengths computes, for every position i in seq, the length of the
// homopolymer run ending at i (inclusive): runLengths[0] == 1, and
// runLengths[i] == runLengths[i-1]+1 when seq[i] == seq[i-1].
func runLengths(seq []byte) []int {
	out := make([]int, len(seq))
	for i := range seq {
		if i > 0 && seq[i] == seq[i-1] {
			out[i] = out[i-1] + 1
		} else {
			out[i] = 1
		}
	}
	return out
}

// baseGood reports whether position i of r passes every per-base filter:
// it decodes as one of {A,C,G,T}, its quality (if tracked) meets qCut, and
// — when hpCut > 0 — it does not extend a homopolymer run past hpCut
// repeats.
func baseGood(r *Read, runs []int, i int, qCut byte, hpCut int) bool {
	if _, ok := bitpack.BaseFromChar(r.Seq[i]); !ok {
		return false
	}
	if r.Qual != nil && i < len(r.Qual) && r.Qual[i] < qCut {
		return false
	}
	if hpCut > 0 && runs[i] > hpCut {
		return false
	}
	return true
}

// seqContigStart scans forward from start for the first offset at which a
// length-k window is entirely good (spec §4.5). It returns len(r.Seq) if
// no such window exists.
func seqContigStart(r *Read, runs []int, start, k int, qCut byte, hpCut int) int {
	n := len(r.Seq)
	for i := start; i+k <= n; i++ {
		ok := true
		for j := i; j < i+k; j++ {
			if !baseGood(r, runs, j, qCut, hpCut) {
				ok = false
				i = j // no point re-checking bases before the failure next loop
				break
			}
		}
		if ok {
			return i
		}
	}
	return n
}

// seqContigEnd extends the window beginning at contigStart forward while
// bases remain good, returning the exclusive end offset and the cursor
// from which the next seqContigStart call should resume searching.
func seqContigEnd(r *Read, runs []int, contigStart, k int, qCut byte, hpCut int) (end, nextSearchStart int) {
	n := len(r.Seq)
	j := contigStart + k
	for j < n && baseGood(r, runs, j, qCut, hpCut) {
		j++
	}
	return j, j
}
