package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/animate/internal/app"
	"github.com/vk/animate/internal/engine"
)

// Version is reported by --version. Release builds set it with -ldflags.
var Version = "dev"

// DefaultConfigPath is read when --config is not given; a missing file is skipped.
const DefaultConfigPath = "animate.hcl"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// options collects the raw flag values before validation.
type options struct {
	steps      int
	size       int
	invariants bool
	perf       bool
	save       string
	debug      bool
	logLevel   string
	logFormat  string
	config     string
	engine     string
	report     string
	pick       bool
	version    bool

	trace string
	info  engine.InfoRequest
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	command := app.CommandAnimate
	if len(args) > 0 {
		switch app.Command(args[0]) {
		case app.CommandReplay, app.CommandInfo:
			command = app.Command(args[0])
			args = args[1:]
		}
	}

	var opts options
	flagSet := newFlagSet(command, output, &opts)

	positional, err := parseInterspersed(flagSet, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, usageError("%s", err.Error())
	}
	slog.Debug("Arguments parsed successfully.", "command", command)

	if opts.version {
		fmt.Fprintf(output, "animate %s\n", Version)
		return nil, true, nil
	}

	switch len(positional) {
	case 0:
		slog.Debug("No model path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	case 1:
	default:
		return nil, false, usageError("expected a single MODEL argument, got %d: %s", len(positional), strings.Join(positional, " "))
	}

	logFormat := strings.ToLower(opts.logFormat)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, usageError("invalid log-format: must be 'text' or 'json'")
	}

	logLevel := strings.ToLower(opts.logLevel)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, usageError("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
	if opts.debug {
		logLevel = "debug"
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		Command:         command,
		ModelPath:       positional[0],
		ConfigPaths:     []string{opts.config},
		Engine:          opts.engine,
		Steps:           opts.steps,
		SetSize:         opts.size,
		CheckInvariants: opts.invariants,
		Perf:            opts.perf,
		SaveTrace:       opts.save,
		TracePath:       opts.trace,
		Info:            opts.info,
		ReportPath:      opts.report,
		Pick:            opts.pick,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
	})
	if err != nil {
		return nil, false, usageError("%s", err.Error())
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

func newFlagSet(command app.Command, output io.Writer, opts *options) *flag.FlagSet {
	flagSet := flag.NewFlagSet("animate "+string(command), flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, usageHeader(command))
		flagSet.PrintDefaults()
	}

	flagSet.IntVar(&opts.steps, "steps", 5, "Number of random steps to animate.")
	flagSet.IntVar(&opts.steps, "s", 5, "Number of random steps (shorthand).")
	flagSet.IntVar(&opts.size, "size", 4, "Default size for deferred sets.")
	flagSet.IntVar(&opts.size, "z", 4, "Default set size (shorthand).")
	flagSet.BoolVar(&opts.invariants, "invariants", false, "Check invariants after every step.")
	flagSet.BoolVar(&opts.invariants, "i", false, "Check invariants (shorthand).")
	flagSet.BoolVar(&opts.perf, "perf", false, "Ask the engine for performance information.")
	flagSet.StringVar(&opts.save, "save", "", "Save the animation trace to this JSON file.")
	flagSet.BoolVar(&opts.debug, "debug", false, "Shorthand for --log-level debug.")
	flagSet.StringVar(&opts.logLevel, "log-level", "warn", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flagSet.StringVar(&opts.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	flagSet.StringVar(&opts.config, "config", DefaultConfigPath, "Path to an HCL configuration file or directory.")
	flagSet.StringVar(&opts.engine, "engine", "", "Engine backend, overriding the configuration file.")
	flagSet.StringVar(&opts.report, "report", "", "Write a YAML resolution report to this file.")
	flagSet.BoolVar(&opts.pick, "pick", false, "Ask which machine to use when a bundle has several most refined machines.")
	flagSet.BoolVar(&opts.version, "version", false, "Print the version and exit.")

	switch command {
	case app.CommandReplay:
		flagSet.StringVar(&opts.trace, "trace", "", "JSON trace file to replay.")
		flagSet.StringVar(&opts.trace, "t", "", "Trace file (shorthand).")
	case app.CommandInfo:
		flagSet.StringVar(&opts.info.MachineGraph, "machine", "", "Write the machine hierarchy (.dot or .svg).")
		flagSet.StringVar(&opts.info.MachineGraph, "m", "", "Machine hierarchy (shorthand).")
		flagSet.StringVar(&opts.info.EventGraph, "events", "", "Write the event hierarchy (.dot or .svg).")
		flagSet.StringVar(&opts.info.EventGraph, "e", "", "Event hierarchy (shorthand).")
		flagSet.StringVar(&opts.info.PropertiesGraph, "properties", "", "Write the properties graph (.dot or .svg).")
		flagSet.StringVar(&opts.info.PropertiesGraph, "p", "", "Properties graph (shorthand).")
		flagSet.StringVar(&opts.info.InvariantGraph, "invariant", "", "Write the invariant graph (.dot or .svg).")
		flagSet.StringVar(&opts.info.EventB, "bmodel", "", "Write the model as a .eventb file.")
		flagSet.StringVar(&opts.info.EventB, "b", "", "Event-B model file (shorthand).")
	}
	return flagSet
}

// parseInterspersed lets flags follow the MODEL argument, which the flag
// package alone stops parsing at.
func parseInterspersed(flagSet *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := flagSet.Parse(args); err != nil {
			return nil, err
		}
		rest := flagSet.Args()
		if consumed := len(args) - len(rest); consumed > 0 && args[consumed-1] == "--" {
			return append(positional, rest...), nil
		}
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func usageHeader(command app.Command) string {
	var b strings.Builder
	b.WriteString(`
animate - Resolve an Event-B model and drive it through an animation engine.

Usage:
  animate [options] MODEL
  animate replay -t TRACE [options] MODEL
  animate info [dump options] [options] MODEL

Arguments:
  MODEL
    A .bum machine file, a directory of machines, or a .zip bundle. The most
    refined machine is selected automatically.
`)
	switch command {
	case app.CommandReplay:
		b.WriteString("\nReplays a JSON trace saved with --save.\n")
	case app.CommandInfo:
		b.WriteString("\nPrints the refinement chain and writes the requested model dumps.\n")
	}
	b.WriteString("\nOptions:\n")
	return b.String()
}
