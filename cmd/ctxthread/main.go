// ctxthread threads reads through an already-built colour de Bruijn graph
// and writes the resulting path records to <in.ctx>.ctp, mirroring
// original_source/src/tools/ctx_thread.c's argument surface:
//
//	ctxthread [OPTIONS] <threads> <mem> <in.ctx>
//	  --se_list <col> <in.list>
//	  --pe_list <col> <in1.list> <in2.list>
//
// <in.list> files here are line-per-path lists of seqio
// line-per-sequence files (see internal/seqio's package doc for why
// that format, not FASTQ/SAM, is what this reference CLI reads).
//
// © 2025 dbgbuilder authors. MIT License.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/mccortex/dbgbuilder/internal/graphio"
	"github.com/mccortex/dbgbuilder/internal/seqio"
	"github.com/mccortex/dbgbuilder/pkg/graph"
)

const usage = `usage: ctxthread [OPTIONS] <threads> <mem> <in.ctx>
  Thread reads through the graph. Saves to <in.ctx>.ctp
  Options:
    --se_list <col> <in.list>
    --pe_list <col> <in1.list> <in2.list>
`

type seList struct {
	colour int
	list   string
}

type peList struct {
	colour       int
	list1, list2 string
}

type options struct {
	threads  int
	memBytes int64
	ctxPath  string
	seLists  []seList
	peLists  []peList
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		fatal(err)
	}
}

func run(ctx context.Context, opts *options) error {
	in, err := os.Open(opts.ctxPath)
	if err != nil {
		return fmt.Errorf("open %q: %w", opts.ctxPath, err)
	}
	defer in.Close()

	hdr, err := graphio.ReadHeader(in)
	if err != nil {
		return fmt.Errorf("read %q: %w", opts.ctxPath, err)
	}

	g, err := graph.New(
		graph.WithK(hdr.K),
		graph.WithColours(hdr.NumColours),
		graph.WithCapacity(2*hdr.NumKmers+1),
		graph.WithArenaBytes(int(opts.memBytes/2)),
		graph.WithThreadThreads(opts.threads),
	)
	if err != nil {
		return fmt.Errorf("init graph: %w", err)
	}
	if err := graphio.LoadCTXBody(in, g, hdr); err != nil {
		return fmt.Errorf("load %q: %w", opts.ctxPath, err)
	}

	sources, closers, err := buildThreadSources(opts)
	defer closeAll(closers)
	if err != nil {
		return err
	}

	if err := g.ThreadPaths(ctx, sources); err != nil {
		return fmt.Errorf("thread paths: %w", err)
	}

	outPath := opts.ctxPath + ".ctp"
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %q: %w", outPath, err)
	}
	defer out.Close()
	if err := graphio.WritePaths(out, g); err != nil {
		return fmt.Errorf("write %q: %w", outPath, err)
	}

	fmt.Printf("paths written to %s\n", outPath)
	return nil
}

type closer interface{ Close() error }

func closeAll(cs []closer) {
	for _, c := range cs {
		_ = c.Close()
	}
}

func buildThreadSources(opts *options) ([]graph.ThreadSource, []closer, error) {
	var sources []graph.ThreadSource
	var closers []closer

	for _, sl := range opts.seLists {
		paths, err := readList(sl.list)
		if err != nil {
			return nil, closers, err
		}
		for _, p := range paths {
			src, err := seqio.OpenSingleEnd(p)
			if err != nil {
				return nil, closers, err
			}
			closers = append(closers, src)
			sources = append(sources, graph.ThreadSource{Reader: src, Colour: sl.colour, Dedupe: true})
		}
	}

	for _, pl := range opts.peLists {
		paths1, err := readList(pl.list1)
		if err != nil {
			return nil, closers, err
		}
		paths2, err := readList(pl.list2)
		if err != nil {
			return nil, closers, err
		}
		if len(paths1) != len(paths2) {
			return nil, closers, fmt.Errorf("list mismatch: %s has %d entries, %s has %d", pl.list1, len(paths1), pl.list2, len(paths2))
		}
		for i := range paths1 {
			src, err := seqio.OpenPairedEnd(paths1[i], paths2[i])
			if err != nil {
				return nil, closers, err
			}
			closers = append(closers, src)
			sources = append(sources, graph.ThreadSource{Reader: src, Colour: pl.colour, Dedupe: true})
		}
	}

	return sources, closers, nil
}

func readList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open list %q: %w", path, err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan list %q: %w", path, err)
	}
	return out, nil
}

func parseArgs(args []string) (*options, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("%snot enough arguments", usage)
	}

	n := len(args)
	ctxPath := args[n-1]
	memArg := args[n-2]
	threadsArg := args[n-3]

	threads, err := strconv.Atoi(threadsArg)
	if err != nil || threads <= 0 {
		return nil, fmt.Errorf("%sinvalid threads argument: %s", usage, threadsArg)
	}
	memBytes, err := parseMemSpec(memArg)
	if err != nil {
		return nil, fmt.Errorf("%s%v", usage, err)
	}

	opts := &options{threads: threads, memBytes: memBytes, ctxPath: ctxPath}

	flags := args[:n-3]
	for i := 0; i < len(flags); i++ {
		switch flags[i] {
		case "--se_list":
			if i+2 >= len(flags) {
				return nil, fmt.Errorf("%s--se_list <col> <in.list> missing args", usage)
			}
			col, err := strconv.Atoi(flags[i+1])
			if err != nil {
				return nil, fmt.Errorf("%s--se_list <col> <in.list> invalid colour", usage)
			}
			opts.seLists = append(opts.seLists, seList{colour: col, list: flags[i+2]})
			i += 2
		case "--pe_list":
			if i+3 >= len(flags) {
				return nil, fmt.Errorf("%s--pe_list <col> <in1.list> <in2.list> missing args", usage)
			}
			col, err := strconv.Atoi(flags[i+1])
			if err != nil {
				return nil, fmt.Errorf("%s--pe_list <col> <in1.list> <in2.list> invalid colour", usage)
			}
			opts.peLists = append(opts.peLists, peList{colour: col, list1: flags[i+2], list2: flags[i+3]})
			i += 3
		default:
			return nil, fmt.Errorf("%sunknown argument: %s", usage, flags[i])
		}
	}

	return opts, nil
}

// parseMemSpec parses a memory size with an optional K/M/G/T suffix (base
// 1024), e.g. "512M", "2G", "1024" (bytes).
func parseMemSpec(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid memory argument: %q", s)
	}
	mult := int64(1)
	numPart := s
	switch s[len(s)-1] {
	case 'k', 'K':
		mult = 1 << 10
		numPart = s[:len(s)-1]
	case 'm', 'M':
		mult = 1 << 20
		numPart = s[:len(s)-1]
	case 'g', 'G':
		mult = 1 << 30
		numPart = s[:len(s)-1]
	case 't', 'T':
		mult = 1 << 40
		numPart = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid memory argument: %q", s)
	}
	return n * mult, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "ctxthread:", err)
	os.Exit(1)
}
