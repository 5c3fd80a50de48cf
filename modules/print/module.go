// Package print provides the "print" engine backend: a dry run that prints
// what would be sent to the analysis engine instead of loading the model.
package print

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/vk/animate/internal/config"
	"github.com/vk/animate/internal/ctxlog"
	"github.com/vk/animate/internal/engine"
	"github.com/vk/animate/internal/registry"
)

// Name is the backend name used in configuration.
const Name = "print"

// Version is reported as the engine version of a dry run.
const Version = "dry-run"

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out receives the dry-run report. Defaults to os.Stdout.
	Out io.Writer
}

// Engine is the dry-run engine.
type Engine struct {
	out io.Writer
}

// New returns a dry-run engine writing to out.
func New(out io.Writer) *Engine {
	if out == nil {
		out = os.Stdout
	}
	return &Engine{out: out}
}

// Load prints the load request. The returned session has no enabled events.
func (e *Engine) Load(ctx context.Context, req engine.LoadRequest) (engine.Session, error) {
	ctxlog.FromContext(ctx).Info("Dry run, model is not loaded.", "path", req.Path)

	fmt.Fprintf(e.out, "Dry run: would load %s\n", req.Path)
	if len(req.Preferences) == 0 {
		fmt.Fprintln(e.out, "      (no preferences)")
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(req.Preferences))
	for k := range req.Preferences {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(e.out, "      %s = %q\n", k, req.Preferences[k])
	}

	return &session{machine: req.Machine}, nil
}

type session struct {
	machine string
	closed  bool
}

func (s *session) Version(context.Context) (string, error) { return Version, nil }

func (s *session) Initialise(context.Context) error { return nil }

func (s *session) Step(context.Context) (engine.Transition, error) {
	return engine.Transition{}, engine.ErrDeadlock
}

func (s *session) ViolatedInvariants(context.Context) ([]string, error) { return nil, nil }

func (s *session) State(context.Context) (string, error) {
	return "(dry run, no state)", nil
}

func (s *session) Coverage(context.Context) (engine.Coverage, error) {
	return engine.Coverage{}, nil
}

// traceFile is the minimal JSON trace layout written by a dry run.
type traceFile struct {
	Description    string               `json:"description"`
	TransitionList []engine.Transition  `json:"transitionList"`
	Metadata       engine.TraceMetadata `json:"metadata"`
}

func (s *session) SaveTrace(ctx context.Context, path string, meta engine.TraceMetadata) error {
	data, err := json.MarshalIndent(traceFile{
		Description:    "dry run of " + s.machine,
		TransitionList: []engine.Transition{},
		Metadata:       meta,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode trace: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write trace: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Dry-run trace written.", "path", path)
	return nil
}

func (s *session) Replay(_ context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("failed to open trace: %w", err)
	}
	return "NOT_REPLAYED", nil
}

func (s *session) Dump(_ context.Context, d engine.Dump) error {
	var content string
	switch d.Format {
	case engine.FormatDot:
		content = fmt.Sprintf("digraph %s {\n}\n", d.Kind)
	case engine.FormatSVG:
		content = `<svg xmlns="http://www.w3.org/2000/svg"/>` + "\n"
	default:
		content = fmt.Sprintf("%% dry run of %s\n", s.machine)
	}
	if err := os.WriteFile(d.Path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", d.Kind, err)
	}
	return nil
}

func (s *session) Dependencies(context.Context) (string, error) {
	return fmt.Sprintf("digraph dependencies {\n  %q;\n}\n", s.machine), nil
}

func (s *session) Close(context.Context) error {
	if s.closed {
		return fmt.Errorf("session for %s already closed", s.machine)
	}
	s.closed = true
	return nil
}

// Register registers the backend with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterBackend(Name, &registry.RegisteredBackend{
		Description: "dry run, prints the load request",
		New: func(context.Context, config.Engine) (engine.Engine, error) {
			return New(m.Out), nil
		},
	})
}
