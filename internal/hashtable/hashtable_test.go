// © 2025 dbgbuilder authors. MIT License.
package hashtable

import (
	"sync"
	"testing"

	"github.com/mccortex/dbgbuilder/internal/bitpack"
)

func mustKmer(t *testing.T, s string) bitpack.Kmer {
	t.Helper()
	km, err := bitpack.FromString(s, len(s))
	if err != nil {
		t.Fatalf("FromString(%q): %v", s, err)
	}
	return km
}

func TestFindOrInsertNewThenExisting(t *testing.T) {
	tbl := New(64, DefaultProbeWindow)
	km := mustKmer(t, "ACGTACGTACGTACGTACGTACGTACGTACG")

	id1, inserted, err := tbl.FindOrInsert(km)
	if err != nil {
		t.Fatalf("FindOrInsert: %v", err)
	}
	if !inserted {
		t.Error("first FindOrInsert should report inserted=true")
	}

	id2, inserted2, err := tbl.FindOrInsert(km)
	if err != nil {
		t.Fatalf("FindOrInsert (repeat): %v", err)
	}
	if inserted2 {
		t.Error("second FindOrInsert should report inserted=false")
	}
	if id1 != id2 {
		t.Errorf("ids differ across calls: %d vs %d", id1, id2)
	}
	if tbl.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tbl.Len())
	}
}

func TestFindMissingKey(t *testing.T) {
	tbl := New(64, DefaultProbeWindow)
	km := mustKmer(t, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	if _, ok := tbl.Find(km); ok {
		t.Error("Find should report false for an unseen key")
	}
}

func TestFindAfterInsert(t *testing.T) {
	tbl := New(64, DefaultProbeWindow)
	km := mustKmer(t, "CGTACGTACGTACGTACGTACGTACGTACGT")
	id, _, err := tbl.FindOrInsert(km)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := tbl.Find(km)
	if !ok {
		t.Fatal("Find should locate an inserted key")
	}
	if got != id {
		t.Errorf("Find id = %d, want %d", got, id)
	}
}

func TestTableFullReturnsErrTableFull(t *testing.T) {
	tbl := New(4, 4)
	seqs := []string{
		"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		"CCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC",
		"GGGGGGGGGGGGGGGGGGGGGGGGGGGGGGG",
		"TTTTTTTTTTTTTTTTTTTTTTTTTTTTTTT",
		"ACACACACACACACACACACACACACACACA"[:31],
		"AGAGAGAGAGAGAGAGAGAGAGAGAGAGAGA",
	}
	fullSeen := false
	for _, s := range seqs {
		km := mustKmer(t, s)
		if _, _, err := tbl.FindOrInsert(km); err != nil {
			if err != ErrTableFull {
				t.Fatalf("unexpected error: %v", err)
			}
			fullSeen = true
		}
	}
	if !fullSeen {
		t.Error("expected at least one ErrTableFull once capacity was exceeded")
	}
}

func TestKmerAndOccupied(t *testing.T) {
	tbl := New(64, DefaultProbeWindow)
	km := mustKmer(t, "GGGCCCAAATTTGGGCCCAAATTTGGGCCCA")
	id, _, err := tbl.FindOrInsert(km)
	if err != nil {
		t.Fatal(err)
	}
	if !tbl.Occupied(id) {
		t.Error("Occupied should be true for an inserted vertex")
	}
	if !tbl.Kmer(id).Equal(km) {
		t.Error("Kmer should return the stored key")
	}
}

func TestFillRatio(t *testing.T) {
	tbl := New(100, DefaultProbeWindow)
	if tbl.FillRatio() != 0 {
		t.Errorf("FillRatio() on empty table = %v, want 0", tbl.FillRatio())
	}
	km := mustKmer(t, "ACGTACGTACGTACGTACGTACGTACGTACG")
	if _, _, err := tbl.FindOrInsert(km); err != nil {
		t.Fatal(err)
	}
	if got := tbl.FillRatio(); got <= 0 {
		t.Errorf("FillRatio() after one insert = %v, want > 0", got)
	}
}

func TestConcurrentFindOrInsertSameKeyOneWinner(t *testing.T) {
	tbl := New(1024, DefaultProbeWindow)
	km := mustKmer(t, "TACGTACGTACGTACGTACGTACGTACGTAC")

	const workers = 32
	var wg sync.WaitGroup
	inserted := make([]bool, workers)
	ids := make([]VertexId, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			id, ok, err := tbl.FindOrInsert(km)
			if err != nil {
				t.Error(err)
				return
			}
			inserted[idx] = ok
			ids[idx] = id
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, ok := range inserted {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("expected exactly one winning insert, got %d", winners)
	}
	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Errorf("all goroutines should observe the same vertex id, got %d and %d", ids[0], ids[i])
		}
	}
	if tbl.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tbl.Len())
	}
}
