package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"shadersched/internal/analysis"
	"shadersched/internal/asm"
	"shadersched/internal/depgraph"
	"shadersched/internal/diag"
	"shadersched/internal/isa"
	"shadersched/internal/passes"
	"shadersched/internal/pipeline"
	"shadersched/internal/validate"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printGlobalUsage()
		return fmt.Errorf("missing command")
	}

	switch args[0] {
	case "schedule":
		return runSchedule(args[1:])
	case "analyze":
		return runAnalyze(args[1:])
	case "lint":
		return runLint(args[1:])
	case "archs":
		return runArchs(args[1:])
	default:
		printGlobalUsage()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printGlobalUsage() {
	fmt.Fprintf(os.Stderr, "shsched shader instruction scheduler\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  shsched <command> [options] <program.asm>\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  schedule   Reorder a program and emit asm, the dependency graph, DOT, or statistics\n")
	fmt.Fprintf(os.Stderr, "  analyze    Report live temporaries and attribute usage\n")
	fmt.Fprintf(os.Stderr, "  lint       Run validation-only checks\n")
	fmt.Fprintf(os.Stderr, "  archs      List the known latency tables\n")
}

// archFlags are the architecture options shared by every command that
// processes a program.
type archFlags struct {
	arch        *string
	issueWidth  *int
	stallPolicy *string
	temps       *int
	outputs     *int
	preds       *int
}

func addArchFlags(fs *flag.FlagSet) *archFlags {
	def := isa.DefaultArchConfig()
	return &archFlags{
		arch:        fs.String("arch", def.Architecture, "latency table ("+strings.Join(isa.ArchitectureNames(), "|")+")"),
		issueWidth:  fs.Int("issue-width", def.IssueWidth, "instructions issued per cycle"),
		stallPolicy: fs.String("stall-policy", def.StallPolicy.String(), "behaviour when no instruction is ready (force|nop)"),
		temps:       fs.Int("temps", def.TemporaryRegisters, "temporary registers"),
		outputs:     fs.Int("outputs", def.OutputRegisters, "output registers"),
		preds:       fs.Int("preds", def.PredicateRegisters, "predicate registers"),
	}
}

func (f *archFlags) config() (isa.ArchConfig, error) {
	cfg := isa.DefaultArchConfig()
	cfg.Architecture = *f.arch
	cfg.IssueWidth = *f.issueWidth
	cfg.TemporaryRegisters = *f.temps
	cfg.OutputRegisters = *f.outputs
	cfg.PredicateRegisters = *f.preds
	policy, err := isa.ParseStallPolicy(*f.stallPolicy)
	if err != nil {
		return cfg, err
	}
	cfg.StallPolicy = policy
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runSchedule(args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	emit := fs.String("emit", "asm", "output format (asm|graph|dot|stats)")
	output := fs.String("o", "", "output file path (stdout when omitted)")
	passList := fs.String("passes", "liveness,usage,schedule", "comma-separated pass list")
	dotDir := fs.String("dot-dir", "", "directory receiving one graphNNN.dot snapshot per cycle (optional)")
	group := fs.Bool("group", false, "group DOT nodes by instruction text")
	diagFormat := fs.String("diag-format", "text", "diagnostic output format (text|json)")
	verbose := fs.Bool("v", false, "log pass progress")
	af := addArchFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("schedule command requires exactly one program")
	}

	arch, err := af.config()
	if err != nil {
		return err
	}
	kinds, err := passes.ParseKinds(*passList)
	if err != nil {
		return err
	}
	reporter := diag.NewReporter(os.Stderr, *diagFormat)
	reporter.SetVerbose(*verbose)
	dotOpts := depgraph.DOTOptions{Group: *group}

	var snapshotErr error
	var onCycle func(int, *depgraph.Graph)
	if *dotDir != "" {
		if err := os.MkdirAll(*dotDir, 0o755); err != nil {
			return fmt.Errorf("create dot directory: %w", err)
		}
		onCycle = func(cycle int, g *depgraph.Graph) {
			if snapshotErr != nil {
				return
			}
			path := filepath.Join(*dotDir, fmt.Sprintf("graph%03d.dot", cycle))
			snapshotErr = withOutputWriter(path, func(w io.Writer) error {
				return depgraph.WriteDOT(g, w, dotOpts)
			})
		}
	}

	out, err := optimizeFile(fs.Arg(0), arch, reporter, pipeline.Options{
		Passes:  kinds,
		OnCycle: onCycle,
	})
	if err != nil {
		return err
	}
	if snapshotErr != nil {
		return fmt.Errorf("write dot snapshot: %w", snapshotErr)
	}

	switch *emit {
	case "asm":
		return withOutputWriter(*output, func(w io.Writer) error {
			_, err := w.Write(out.Code)
			return err
		})
	case "graph":
		if out.Graph == nil {
			return fmt.Errorf("emit graph requires the schedule pass")
		}
		return withOutputWriter(*output, func(w io.Writer) error {
			depgraph.Dump(out.Graph, w)
			return nil
		})
	case "dot":
		if out.Graph == nil {
			return fmt.Errorf("emit dot requires the schedule pass")
		}
		return withOutputWriter(*output, func(w io.Writer) error {
			return depgraph.WriteDOT(out.Graph, w, dotOpts)
		})
	case "stats":
		return withOutputWriter(*output, func(w io.Writer) error {
			writeStats(w, out)
			return nil
		})
	default:
		return fmt.Errorf("unknown emit format: %s", *emit)
	}
}

func runAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	output := fs.String("o", "", "output file path (stdout when omitted)")
	diagFormat := fs.String("diag-format", "text", "diagnostic output format (text|json)")
	af := addArchFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("analyze command requires exactly one program")
	}

	arch, err := af.config()
	if err != nil {
		return err
	}
	reporter := diag.NewReporter(os.Stderr, *diagFormat)
	out, err := optimizeFile(fs.Arg(0), arch, reporter, pipeline.Options{
		Passes: []passes.Kind{passes.Liveness, passes.Usage},
	})
	if err != nil {
		return err
	}
	return withOutputWriter(*output, func(w io.Writer) error {
		writeAnalysis(w, out)
		return nil
	})
}

func runLint(args []string) error {
	fs := flag.NewFlagSet("lint", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	diagFormat := fs.String("diag-format", "text", "diagnostic output format (text|json)")
	af := addArchFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("lint requires at least one program")
	}

	arch, err := af.config()
	if err != nil {
		return err
	}
	lat, err := arch.Latencies()
	if err != nil {
		return err
	}
	reporter := diag.NewReporter(os.Stderr, *diagFormat)
	failed := 0
	for _, path := range fs.Args() {
		src, err := asm.LoadFile(path, lat, reporter)
		if err == nil {
			err = validate.CheckProgram(src, arch, reporter)
		}
		if err != nil {
			reporter.Errorf("%v", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("lint failed for %d of %d program(s)", failed, fs.NArg())
	}
	return nil
}

func runArchs(args []string) error {
	fs := flag.NewFlagSet("archs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	output := fs.String("o", "", "output file path (stdout when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	def := isa.DefaultArchConfig().Architecture
	return withOutputWriter(*output, func(w io.Writer) error {
		for _, name := range isa.ArchitectureNames() {
			if name == def {
				fmt.Fprintf(w, "%s (default)\n", name)
				continue
			}
			fmt.Fprintln(w, name)
		}
		return nil
	})
}

func optimizeFile(path string, arch isa.ArchConfig, reporter *diag.Reporter, opts pipeline.Options) (*pipeline.Output, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	lat, err := arch.Latencies()
	if err != nil {
		return nil, err
	}
	opts.Reporter = reporter
	opts.File = path
	codec := &asm.Codec{File: path, Latencies: lat, Reporter: reporter}
	opt, err := pipeline.New(arch, codec, opts)
	if err != nil {
		return nil, err
	}
	return opt.Optimize(data)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func writeStats(w io.Writer, out *pipeline.Output) {
	if s := out.Schedule; s != nil {
		fmt.Fprintf(w, "instructions: %d\n", s.Instructions)
		fmt.Fprintf(w, "cycles: %d\n", s.Cycles)
		fmt.Fprintf(w, "slots: %d\n", len(s.Slots))
		fmt.Fprintf(w, "forced: %d\n", s.Forced)
		fmt.Fprintf(w, "nops: %d\n", s.Nops)
	}
	writeAnalysis(w, out)
}

func writeAnalysis(w io.Writer, out *pipeline.Output) {
	fmt.Fprintf(w, "max live temps: %d\n", out.MaxAliveTemps)
	fmt.Fprintf(w, "inputs read: %s\n", formatIndices(out.InputsRead))
	fmt.Fprintf(w, "outputs written: %s\n", formatIndices(out.OutputsWritten))
}

func formatIndices(set []bool) string {
	idx := analysis.Indices(set)
	if len(idx) == 0 {
		return "-"
	}
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

func withOutputWriter(path string, fn func(io.Writer) error) error {
	w, cleanup, err := outputWriter(path)
	if err != nil {
		return err
	}
	if cleanup == nil {
		return fn(w)
	}
	err = fn(w)
	if closeErr := cleanup(); err == nil && closeErr != nil {
		err = closeErr
	}
	return err
}

func outputWriter(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
