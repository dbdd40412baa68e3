// Command predview prints the predicate chains of counted loops found in
// Go source code, optionally after unswitching them.
//
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/nickng/looppred/internal/logging"
	"github.com/nickng/looppred/ir"
	"github.com/nickng/looppred/looptree"
	"github.com/nickng/looppred/predicate"
	"github.com/nickng/looppred/ssaloop"
	"github.com/nickng/looppred/unswitch"
)

const (
	Usage = `predview is a tool for viewing loop predicate chains of Go source code.

Usage:

  predview [options] file.go [files.go...]

Options:

`
)

var (
	buildlogPath string
	outPath      string
	invariant    bool
	doUnswitch   bool
	verbose      bool

	out    io.Writer
	logger *logging.Logger
)

func init() {
	flag.StringVar(&buildlogPath, "log", "", "Specify build log file (use '-' for stdout)")
	flag.StringVar(&outPath, "out", "", "Specify output file (default: stdout)")
	flag.BoolVar(&invariant, "invariant", false, "Add an invariant test to each loop body")
	flag.BoolVar(&doUnswitch, "unswitch", false, "Unswitch loops with an invariant test")
	flag.BoolVar(&verbose, "v", false, "Log pass decisions")
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, Usage)
		flag.PrintDefaults()
		os.Exit(0)
	}

	conf := ssaloop.FromFiles(flag.Args()).Default()

	logFile := ""
	switch buildlogPath {
	case "":
	case "-":
		conf = conf.WithBuildLog(os.Stdout, log.LstdFlags)
	default:
		f, err := os.Create(buildlogPath)
		if err != nil {
			log.Fatalf("Cannot create log %s: %v", buildlogPath, err)
		}
		defer f.Close()
		conf = conf.WithBuildLog(f, log.LstdFlags)
		logFile = f.Name()
	}

	if verbose {
		if logFile != "" {
			logger = logging.NewFileLogger(logFile)
		} else {
			logger = logging.New()
		}
		// Sync error ignored. See https://github.com/uber-go/zap/issues/328
		defer logger.Sync()
	}

	switch outPath {
	case "":
		out = os.Stdout
	default:
		f, err := os.Create(outPath)
		if err != nil {
			log.Fatalf("Cannot create output file %s: %v", outPath, err)
		}
		defer f.Close()
		out = f
		color.NoColor = true
	}

	info, err := conf.Build()
	if err != nil {
		log.Fatal("Cannot build SSA from files:", err)
	}

	det := ssaloop.NewDetector()
	if buildlogPath == "-" {
		det.SetLog(os.Stdout)
	}
	loops := det.Detect(info)
	if len(loops) == 0 {
		fmt.Fprintln(out, "no counted loops found")
		return
	}

	header := color.New(color.FgCyan, color.Bold)
	for i, cl := range loops {
		header.Fprintf(out, "loop %d: %s (init=%d step=%d)\n", i, cl.Fn.String(), cl.Init, cl.Step)
		view(cl)
	}
}

func view(cl ssaloop.CountedLoop) {
	params := ssaloop.FromCounted(cl)
	params.InvariantTest = invariant
	f := ssaloop.Synthesise(params)

	tree := looptree.Build(f.G)
	l := tree.ByHead(f.Head)
	if l == nil {
		fmt.Fprintln(out, "  (loop not materialized)")
		return
	}
	if l.IsCounted() {
		ap := predicate.NewAssertionPredicates(f.G, l)
		if logger != nil {
			ap.SetLogger(logger)
		}
		ap.CreateAtLoop(1, nil, f.Range, ir.OpRangeCheck)
	}
	printChain(f.G, l.Entry(), "  ")

	if doUnswitch && invariant {
		u := unswitch.New(f.G)
		if logger != nil {
			u.SetLogger(logger)
		}
		slowHead, ok := u.Unswitch(l)
		if !ok {
			fmt.Fprintln(out, "  not unswitched (policy)")
			return
		}
		f.G.Worklist.Simplify()
		el := predicate.NewEliminator(f.G)
		if logger != nil {
			el.SetLogger(logger)
		}
		tree = looptree.Build(f.G)
		el.Eliminate(tree)
		f.G.Worklist.Simplify()
		section := color.New(color.FgGreen)
		section.Fprintln(out, "  fast loop:")
		printChain(f.G, l.Entry(), "    ")
		section.Fprintln(out, "  slow loop:")
		if slow := tree.ByHead(slowHead); slow != nil {
			printChain(f.G, slow.Entry(), "    ")
		}
	}
}

func printChain(g *ir.Graph, loopEntry *ir.Node, indent string) {
	lines := predicate.ChainLines(g, loopEntry)
	if len(lines) == 0 {
		fmt.Fprintf(out, "%s(no predicates)\n", indent)
		return
	}
	for _, line := range lines {
		fmt.Fprintf(out, "%s%s\n", indent, line)
	}
}
