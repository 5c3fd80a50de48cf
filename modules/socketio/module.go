// Package socketio provides the "socketio" engine backend. It drives a remote
// analysis engine over a socket.io connection using a small request/response
// protocol: every call is emitted as an engine:call event carrying an id, and
// the engine answers with an engine:result event carrying the same id.
package socketio

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/animate/internal/config"
	"github.com/vk/animate/internal/ctxlog"
	"github.com/vk/animate/internal/engine"
	"github.com/vk/animate/internal/registry"
)

// Name is the backend name used in configuration.
const Name = "socketio"

// Module implements the registry.Module interface for this package.
type Module struct{}

// caller is the part of Client the engine and its sessions use.
type caller interface {
	Call(ctx context.Context, method string, params any, out any) error
	Close()
}

// Engine loads machines on a remote engine. Each Load opens its own
// connection, which the session closes.
type Engine struct {
	cfg  config.Engine
	dial func(ctx context.Context, cfg config.Engine) (caller, error)
}

// New returns an engine that dials cfg.URL on every Load.
func New(cfg config.Engine) *Engine {
	return &Engine{
		cfg: cfg,
		dial: func(ctx context.Context, cfg config.Engine) (caller, error) {
			return Dial(ctx, cfg)
		},
	}
}

type loadResult struct {
	Session string `json:"session"`
}

// Load connects to the engine and asks it to load the machine at req.Path.
func (e *Engine) Load(ctx context.Context, req engine.LoadRequest) (engine.Session, error) {
	c, err := e.dial(ctx, e.cfg)
	if err != nil {
		return nil, err
	}

	var res loadResult
	if err := c.Call(ctx, "load", req, &res); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load %s: %w", req.Path, err)
	}
	if res.Session == "" {
		c.Close()
		return nil, errors.New("engine returned no session id")
	}
	ctxlog.FromContext(ctx).Debug("Machine loaded by engine.", "session", res.Session, "machine", req.Machine)
	return &session{c: c, id: res.Session}, nil
}

// session is one state space on the remote engine.
type session struct {
	c  caller
	id string
}

// params builds the call parameters, always tagged with the session id.
func (s *session) params(kv ...any) map[string]any {
	p := map[string]any{"session": s.id}
	for i := 0; i+1 < len(kv); i += 2 {
		p[kv[i].(string)] = kv[i+1]
	}
	return p
}

func (s *session) Version(ctx context.Context) (string, error) {
	var res struct {
		Version string `json:"version"`
	}
	if err := s.c.Call(ctx, "version", s.params(), &res); err != nil {
		return "", err
	}
	return res.Version, nil
}

func (s *session) Initialise(ctx context.Context) error {
	return s.c.Call(ctx, "initialise", s.params(), nil)
}

func (s *session) Step(ctx context.Context) (engine.Transition, error) {
	var res struct {
		Deadlock   bool              `json:"deadlock"`
		Transition engine.Transition `json:"transition"`
	}
	if err := s.c.Call(ctx, "step", s.params(), &res); err != nil {
		return engine.Transition{}, err
	}
	if res.Deadlock {
		return engine.Transition{}, engine.ErrDeadlock
	}
	return res.Transition, nil
}

func (s *session) ViolatedInvariants(ctx context.Context) ([]string, error) {
	var res struct {
		Violated []string `json:"violated"`
	}
	if err := s.c.Call(ctx, "invariants", s.params(), &res); err != nil {
		return nil, err
	}
	return res.Violated, nil
}

func (s *session) State(ctx context.Context) (string, error) {
	var res struct {
		State string `json:"state"`
	}
	if err := s.c.Call(ctx, "state", s.params(), &res); err != nil {
		return "", err
	}
	return res.State, nil
}

func (s *session) Coverage(ctx context.Context) (engine.Coverage, error) {
	var res engine.Coverage
	if err := s.c.Call(ctx, "coverage", s.params(), &res); err != nil {
		return engine.Coverage{}, err
	}
	return res, nil
}

func (s *session) SaveTrace(ctx context.Context, path string, meta engine.TraceMetadata) error {
	return s.c.Call(ctx, "saveTrace", s.params("path", path, "metadata", meta), nil)
}

func (s *session) Replay(ctx context.Context, path string) (string, error) {
	var res struct {
		Status string `json:"status"`
	}
	if err := s.c.Call(ctx, "replay", s.params("path", path), &res); err != nil {
		return "", err
	}
	return res.Status, nil
}

func (s *session) Dump(ctx context.Context, d engine.Dump) error {
	return s.c.Call(ctx, "dump", s.params("kind", d.Kind, "format", d.Format, "path", d.Path), nil)
}

func (s *session) Dependencies(ctx context.Context) (string, error) {
	var res struct {
		Graph string `json:"graph"`
	}
	if err := s.c.Call(ctx, "dependencies", s.params(), &res); err != nil {
		return "", err
	}
	return res.Graph, nil
}

// Close kills the remote state space and disconnects.
func (s *session) Close(ctx context.Context) error {
	defer s.c.Close()
	if err := s.c.Call(ctx, "kill", s.params(), nil); err != nil {
		return fmt.Errorf("failed to kill session %s: %w", s.id, err)
	}
	return nil
}

// Register registers the backend with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterBackend(Name, &registry.RegisteredBackend{
		Description: "remote engine over socket.io",
		NeedsURL:    true,
		New: func(_ context.Context, cfg config.Engine) (engine.Engine, error) {
			return New(cfg), nil
		},
	})
}
