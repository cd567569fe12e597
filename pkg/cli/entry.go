// Package cli implements the thunkc command: it loads tree documents, runs
// them through the thunk pipeline and reports how they were executed. It
// can also serve loaded delegates over gRPC and call them remotely.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/funvibe/thunkjit/internal/backend"
	"github.com/funvibe/thunkjit/internal/config"
	"github.com/funvibe/thunkjit/internal/journal"
	"github.com/funvibe/thunkjit/internal/thunk"
	"github.com/funvibe/thunkjit/internal/treefile"
	thunkjit "github.com/funvibe/thunkjit/pkg/embed"
)

const usage = `Usage:
  %[1]s run [-policy P] [-threshold N] [-config F] [-parallel N] [-calls K] [-journal DB] [-v] <file> [args...]
  %[1]s serve [-addr A] [-policy P] [-threshold N] [-config F] [-v] <file>...
  %[1]s call [-addr A] [-timeout D] <delegate> [args...]
  %[1]s list [-addr A] [-timeout D]
  %[1]s history [-n N] <journal.db>
  %[1]s convert <in.yaml> <out.pb>
  %[1]s help

Policies: immediate, interpreted, tiered.
Tree documents: .tree.yaml, .yaml, .yml, or protobuf .pb.
`

// Main runs the command line and exits the process.
func Main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run executes the command line in args (args[0] is the program name) and
// returns the exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	prog := "thunkc"
	if len(args) > 0 {
		prog = filepath.Base(args[0])
	}
	if len(args) < 2 {
		fmt.Fprintf(stderr, usage, prog)
		return 2
	}

	var err error
	switch cmd := args[1]; cmd {
	case "run":
		err = withOptions(cmd, args[2:], func(opts *options) error { return handleRun(opts, stdout, stderr) })
	case "serve":
		err = withOptions(cmd, args[2:], func(opts *options) error { return handleServe(opts, stdout, stderr) })
	case "call":
		err = withOptions(cmd, args[2:], func(opts *options) error { return handleCall(opts, stdout) })
	case "list":
		err = withOptions(cmd, args[2:], func(opts *options) error { return handleList(opts, stdout) })
	case "history":
		err = withOptions(cmd, args[2:], func(opts *options) error { return handleHistory(opts, stdout) })
	case "convert":
		err = handleConvert(args[2:], stdout)
	case "help", "-help", "--help", "-h":
		fmt.Fprintf(stdout, usage, prog)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[1])
		fmt.Fprintf(stderr, usage, prog)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s %s\n", paletteFor(stderr).err("error:"), err)
		return 1
	}
	return 0
}

type options struct {
	policy    string
	threshold int
	config    string
	parallel  int
	calls     int
	journal   string
	addr      string
	timeout   time.Duration
	limit     int
	verbose   bool
	file      string
	args      []string
}

// commandFlags lists the flags each command accepts.
var commandFlags = map[string][]string{
	"run":     {"policy", "threshold", "config", "parallel", "calls", "journal", "v"},
	"serve":   {"policy", "threshold", "config", "addr", "v"},
	"call":    {"addr", "timeout"},
	"list":    {"addr", "timeout"},
	"history": {"n"},
}

// operandNames name the first operand of each command in error messages.
var operandNames = map[string]string{
	"run":     "tree document",
	"serve":   "tree document",
	"call":    "delegate name",
	"history": "journal database",
}

func withOptions(cmd string, args []string, handle func(*options) error) error {
	opts, err := parseArgs(cmd, args)
	if err != nil {
		return err
	}
	return handle(opts)
}

// parseArgs reads flags up to the first operand; everything after it is
// passed through as arguments.
func parseArgs(cmd string, args []string) (*options, error) {
	opts := &options{parallel: 1, calls: 1, addr: config.DefaultAddr, limit: config.DefaultHistoryLimit}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			opts.file = arg
			opts.args = args[i+1:]
			break
		}
		name := strings.TrimLeft(arg, "-")
		if name == "verbose" {
			name = "v"
		}
		if !slices.Contains(commandFlags[cmd], name) {
			return nil, fmt.Errorf("unknown flag %s for %s", arg, cmd)
		}
		if name == "v" {
			opts.verbose = true
			continue
		}
		if i+1 >= len(args) {
			return nil, fmt.Errorf("flag %s needs a value", arg)
		}
		value := args[i+1]
		i++
		var err error
		switch name {
		case "policy":
			opts.policy = value
		case "config":
			opts.config = value
		case "journal":
			opts.journal = value
		case "addr":
			opts.addr = value
		case "threshold":
			opts.threshold, err = positive(arg, value)
		case "parallel":
			opts.parallel, err = positive(arg, value)
		case "calls":
			opts.calls, err = positive(arg, value)
		case "n":
			opts.limit, err = positive(arg, value)
		case "timeout":
			if opts.timeout, err = time.ParseDuration(value); err == nil && opts.timeout <= 0 {
				err = fmt.Errorf("flag %s needs a positive duration, got %q", arg, value)
			}
		}
		if err != nil {
			return nil, err
		}
	}
	if operand, ok := operandNames[cmd]; ok && opts.file == "" {
		return nil, fmt.Errorf("missing %s", operand)
	}
	return opts, nil
}

func positive(flag, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("flag %s needs a positive integer, got %q", flag, value)
	}
	return n, nil
}

// loadConfig prefers an explicit file, then a thunkjit.yaml found above the
// document, then the defaults. Command-line flags override all of them.
func loadConfig(opts *options) (*config.Config, error) {
	path := opts.config
	if path == "" {
		found, err := config.FindConfig(filepath.Dir(opts.file))
		if err != nil {
			return nil, err
		}
		path = found
	}
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.policy != "" {
		if _, err := thunk.ParsePolicy(opts.policy); err != nil {
			return nil, err
		}
		cfg.Policy = opts.policy
	}
	if opts.threshold > 0 {
		cfg.TieredThreshold = opts.threshold
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func handleRun(opts *options, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := cfg.Logger(stderr)

	set, native, interp := backend.InstrumentSet(backend.Default())
	engine, err := thunkjit.New(thunkjit.Options{Config: cfg, Logger: logger, Backends: set})
	if err != nil {
		return err
	}
	d, err := engine.LoadFile(opts.file)
	if err != nil {
		return err
	}

	callArgs := d.Args
	if len(opts.args) > 0 {
		if callArgs, err = treefile.ParseArgs(d.Thunk().Type().Shape().Params, opts.args); err != nil {
			return err
		}
	}

	started := time.Now()
	results, err := invokeAll(context.Background(), d, callArgs, opts.calls, opts.parallel, logger)
	if err != nil {
		return err
	}
	elapsed := time.Since(started)
	result := fmt.Sprint(results[len(results)-1])
	stats := []backend.Stats{native.Stats(), interp.Stats()}

	p := paletteFor(stdout)
	fmt.Fprintf(stdout, "%s %v\n", p.bold(d.Name+":"), p.ok(result))
	fmt.Fprintf(stdout, "%s\n", p.faint(fmt.Sprintf("policy=%s state=%s calls=%d", d.Thunk().Type().Policy(), d.Thunk().State(), opts.calls)))
	for _, s := range stats {
		fmt.Fprintf(stdout, "%s\n", p.faint(fmt.Sprintf("%-9s compiles=%d invocations=%d", s.Name, s.Compiles, s.Invocations)))
	}

	if opts.journal == "" {
		return nil
	}
	j, err := journal.Open(opts.journal)
	if err != nil {
		return err
	}
	defer j.Close()
	id, err := j.Record(context.Background(), journal.Run{
		At:       started,
		Delegate: d.Name,
		Policy:   d.Thunk().Type().Policy().String(),
		State:    d.Thunk().State().String(),
		Calls:    opts.calls,
		Elapsed:  elapsed,
		Result:   result,
		Backends: stats,
	})
	if err != nil {
		return err
	}
	logger.Debug("run recorded", "journal", opts.journal, "id", id)
	return nil
}

// invokeAll calls d the given number of times with at most parallel calls
// in flight.
func invokeAll(ctx context.Context, d *thunkjit.Delegate, args []any, calls, parallel int, logger *slog.Logger) ([]any, error) {
	results := make([]any, calls)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i := range calls {
		g.Go(func() error {
			v, err := d.InvokeContext(ctx, args...)
			if err != nil {
				return fmt.Errorf("call %d: %w", i+1, err)
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Debug("calls finished", "delegate", d.Name, "calls", calls, "parallel", parallel)
	return results, nil
}

func handleConvert(args []string, stdout io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("convert needs an input and an output file")
	}
	in, out := args[0], args[1]
	if format, err := treefile.FormatOf(in); err != nil || format != treefile.FormatYAML {
		return fmt.Errorf("%s: input must be a YAML tree document", in)
	}
	if format, err := treefile.FormatOf(out); err != nil || format != treefile.FormatProto {
		return fmt.Errorf("%s: output must have a protobuf extension", out)
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	pb, err := treefile.ConvertYAML(data)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	if err := os.WriteFile(out, pb, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (%d bytes)\n", out, len(pb))
	return nil
}
