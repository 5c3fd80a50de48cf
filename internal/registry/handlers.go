package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vk/animate/internal/config"
	"github.com/vk/animate/internal/engine"
)

// Factory builds an engine from the configured engine settings.
type Factory func(ctx context.Context, cfg config.Engine) (engine.Engine, error)

// RegisteredBackend holds the compiled Go parts of an engine backend.
type RegisteredBackend struct {
	Description string
	// NeedsURL marks backends that connect to a remote engine.
	NeedsURL bool
	New      Factory
}

// RegisterBackend registers an engine backend under name.
func (r *Registry) RegisterBackend(name string, backend *RegisteredBackend) {
	if _, exists := r.BackendRegistry[name]; exists {
		panic(fmt.Sprintf("engine backend with name '%s' already registered", name))
	}
	slog.Debug("Registering engine backend.", "name", name)
	r.BackendRegistry[name] = backend
}

// NewEngine builds the engine configured in cfg.
func (r *Registry) NewEngine(ctx context.Context, cfg config.Engine) (engine.Engine, error) {
	backend, ok := r.BackendRegistry[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown engine backend '%s' (available: %s)", cfg.Backend, strings.Join(r.Names(), ", "))
	}
	eng, err := backend.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine backend '%s': %w", cfg.Backend, err)
	}
	return eng, nil
}
