// readgen is a deterministic synthetic read generator, used to produce
// reproducible ingestion benchmarks and test fixtures without depending
// on a real FASTQ/SAM decoder. It emits seqio's one-sequence-per-line
// format (internal/seqio), sampling fixed-length windows at random
// positions of one random synthetic genome, so reads drawn from
// overlapping positions share k-mers and form graph edges.
//
// Grounded on tools/dataset_gen/dataset_gen.go: same flag surface shape
// (-n, -seed, -out), same math/rand-with-explicit-seed determinism, same
// buffered-writer output idiom.
//
// © 2025 dbgbuilder authors. MIT License.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
)

var bases = [4]byte{'A', 'C', 'G', 'T'}

func randomGenome(rnd *rand.Rand, length int) []byte {
	g := make([]byte, length)
	for i := range g {
		g[i] = bases[rnd.Intn(4)]
	}
	return g
}

func randomRead(rnd *rand.Rand, genome []byte, readLen int) []byte {
	if readLen >= len(genome) {
		return append([]byte(nil), genome...)
	}
	start := rnd.Intn(len(genome) - readLen + 1)
	return append([]byte(nil), genome[start:start+readLen]...)
}

func main() {
	var (
		n          = flag.Int("n", 1000, "number of reads to generate")
		readLen    = flag.Int("readlen", 100, "length of each read")
		genomeLen  = flag.Int("genomelen", 5000, "length of the backing synthetic genome")
		seedVal    = flag.Int64("seed", 42, "PRNG seed")
		outPath    = flag.String("out", "", "output file (default stdout)")
		pairedOut2 = flag.String("out2", "", "if set, emit paired-end reads: -out is R1, -out2 is R2, each mate is an independently sampled random window")
	)
	flag.Parse()

	if *readLen <= 0 || *genomeLen <= 0 || *n <= 0 {
		fmt.Fprintln(os.Stderr, "readgen: n, readlen and genomelen must all be positive")
		os.Exit(1)
	}
	if *readLen > *genomeLen {
		fmt.Fprintln(os.Stderr, "readgen: readlen must not exceed genomelen")
		os.Exit(1)
	}

	rnd := rand.New(rand.NewSource(*seedVal))
	genome := randomGenome(rnd, *genomeLen)

	out1, err := openOut(*outPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "readgen:", err)
		os.Exit(1)
	}
	defer out1.Close()
	w1 := bufio.NewWriterSize(out1, 1<<20)
	defer w1.Flush()

	if *pairedOut2 == "" {
		for i := 0; i < *n; i++ {
			fmt.Fprintln(w1, string(randomRead(rnd, genome, *readLen)))
		}
		return
	}

	out2, err := openOut(*pairedOut2)
	if err != nil {
		fmt.Fprintln(os.Stderr, "readgen:", err)
		os.Exit(1)
	}
	defer out2.Close()
	w2 := bufio.NewWriterSize(out2, 1<<20)
	defer w2.Flush()

	for i := 0; i < *n; i++ {
		fmt.Fprintln(w1, string(randomRead(rnd, genome, *readLen)))
		fmt.Fprintln(w2, string(randomRead(rnd, genome, *readLen)))
	}
}

func openOut(path string) (*os.File, error) {
	if path == "" {
		return os.Stdout, nil
	}
	return os.Create(path)
}
