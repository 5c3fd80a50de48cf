package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vk/animate/internal/ctxlog"
	"github.com/vk/animate/internal/engine"
	"github.com/vk/animate/internal/report"
	"github.com/vk/animate/internal/resolver"
)

const traceCreator = "animate"

var (
	// ErrInvariantViolated is returned when --invariants finds a violation.
	ErrInvariantViolated = errors.New("invariant violated")
	// ErrDumpFailed is returned when at least one info dump could not be produced.
	ErrDumpFailed = errors.New("one or more model dumps failed")
)

// Run resolves the model, loads it into the configured engine and executes
// the selected command. The resolver's scratch directory is removed on every
// exit path.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "command", a.appConfig.Command, "model", a.appConfig.ModelPath)

	eng, err := a.registry.NewEngine(ctx, a.config.Engine)
	if err != nil {
		return err
	}
	prefs := a.config.EffectivePreferences(a.appConfig.SetSize, a.appConfig.Perf)

	var choose resolver.Chooser
	if a.appConfig.Pick {
		choose = a.chooser
	}

	resolved := false
	err = resolver.Use(ctx, a.newResolver(), a.appConfig.ModelPath, choose, func(ref resolver.Reference) error {
		resolved = true
		return a.runWithModel(ctx, eng, ref, prefs)
	})
	if err != nil && !resolved {
		return fmt.Errorf("error loading model: %w", err)
	}

	a.logger.Debug("App.Run method finished.")
	return err
}

func (a *App) runWithModel(ctx context.Context, eng engine.Engine, ref resolver.Reference, prefs map[string]string) error {
	logger := ctxlog.FromContext(ctx)

	fmt.Fprintf(a.outW, "Machine: %s\n", ref.Machine)

	if a.appConfig.ReportPath != "" {
		rep, err := report.Build(ref)
		if err != nil {
			return fmt.Errorf("failed to build resolution report: %w", err)
		}
		if err := report.Write(rep, a.appConfig.ReportPath); err != nil {
			return fmt.Errorf("failed to write resolution report: %w", err)
		}
		logger.Info("Resolution report written.", "path", a.appConfig.ReportPath)
	}

	logger.Info("Load Event-B Machine", "path", ref.Path)
	sess, err := eng.Load(ctx, engine.LoadRequest{Path: ref.Path, Machine: ref.Machine, Preferences: prefs})
	if err != nil {
		return fmt.Errorf("error loading model: %w", err)
	}
	defer func() {
		if err := sess.Close(ctx); err != nil {
			logger.Warn("Failed to close engine session.", "error", err)
		}
	}()

	version, err := sess.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to query engine version: %w", err)
	}
	logger.Info("Engine version.", "version", version)

	switch a.appConfig.Command {
	case CommandReplay:
		return a.replay(ctx, sess)
	case CommandInfo:
		return a.info(ctx, sess, ref)
	default:
		return a.animate(ctx, sess, ref, version)
	}
}

func (a *App) animate(ctx context.Context, sess engine.Session, ref resolver.Reference, version string) error {
	logger := ctxlog.FromContext(ctx)
	var violation error

	fmt.Fprintln(a.outW, "Animation steps:")
	for i := 0; i < a.appConfig.Steps; i++ {
		tr, err := sess.Step(ctx)
		if errors.Is(err, engine.ErrDeadlock) {
			fmt.Fprintln(a.errW, "Error: Can't find an event to execute from this state (deadlock)")
			break
		}
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		fmt.Fprintln(a.outW, tr.Pretty)

		if a.appConfig.CheckInvariants {
			violated, err := sess.ViolatedInvariants(ctx)
			if err != nil {
				return fmt.Errorf("step %d: checking invariants: %w", i+1, err)
			}
			if len(violated) > 0 {
				fmt.Fprintf(a.errW, "Error: violated invariants:%s\n", bulletList(violated))
				violation = ErrInvariantViolated
				break
			}
		}
	}
	fmt.Fprintln(a.outW)

	state, err := sess.State(ctx)
	if err != nil {
		return fmt.Errorf("failed to read current state: %w", err)
	}
	fmt.Fprintf(a.outW, "Current state:\n%s\n\n", state)

	cov, err := sess.Coverage(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute coverage: %w", err)
	}
	a.printCoverage(cov)

	if a.appConfig.SaveTrace != "" {
		logger.Info("Saving animation trace.", "path", a.appConfig.SaveTrace)
		meta := engine.TraceMetadata{
			Creator:       traceCreator,
			EngineVersion: version,
			ModelName:     ref.Machine,
			SavedAt:       time.Now().UTC(),
		}
		if err := sess.SaveTrace(ctx, a.appConfig.SaveTrace, meta); err != nil {
			return fmt.Errorf("error saving trace: %w", err)
		}
	}
	return violation
}

func (a *App) printCoverage(cov engine.Coverage) {
	fmt.Fprintf(a.outW, "Coverage properties:%s\n", bulletList(cov.Nodes))
	if len(cov.Covered) > 0 {
		fmt.Fprintf(a.outW, "Covered operations:%s\n", bulletList(cov.Covered))
	}
	if len(cov.Uncovered) > 0 {
		fmt.Fprintf(a.outW, "Uncovered operations:%s\n", bulletList(cov.Uncovered))
	}
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return "\n\t - " + strings.Join(items, "\n\t - ")
}

func (a *App) replay(ctx context.Context, sess engine.Session) error {
	fmt.Fprintln(a.outW, "Starting trace replay. Use --debug to view steps.")
	status, err := sess.Replay(ctx, a.appConfig.TracePath)
	if err != nil {
		return fmt.Errorf("trace replay failed: %w", err)
	}
	fmt.Fprintf(a.outW, "Trace replay status: %s\n", status)
	return nil
}

func (a *App) info(ctx context.Context, sess engine.Session, ref resolver.Reference) error {
	logger := ctxlog.FromContext(ctx)
	req := a.appConfig.Info

	fmt.Fprintf(a.outW, "Refinement chain: %s\n", strings.Join(ref.Chain, " -> "))

	if req.Empty() {
		deps, err := sess.Dependencies(ctx)
		if err != nil {
			return fmt.Errorf("failed to compute dependencies: %w", err)
		}
		fmt.Fprint(a.outW, deps)
		return nil
	}

	if req.HasGraphs() {
		logger.Info("Initializing model")
		if err := sess.Initialise(ctx); err != nil {
			fmt.Fprintf(a.errW, "Warning: Could not fully initialize model: %v\n", err)
		}
	}

	failed := false
	dumps, errs := req.Dumps()
	for _, err := range errs {
		var extErr *engine.UnknownExtensionError
		if errors.As(err, &extErr) {
			fmt.Fprintf(a.errW, "Unknown extension %s\n", extErr.Ext)
		} else {
			fmt.Fprintln(a.errW, err)
		}
		failed = true
	}
	for _, d := range dumps {
		logger.Info("Saving model dump.", "kind", d.Kind, "path", d.Path)
		if err := sess.Dump(ctx, d); err != nil {
			fmt.Fprintf(a.errW, "Error saving %s: %v\n", d.Kind, err)
			failed = true
		}
	}
	if failed {
		return ErrDumpFailed
	}
	return nil
}
