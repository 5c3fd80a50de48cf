package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/animate/internal/archive"
	"github.com/vk/animate/internal/config"
	"github.com/vk/animate/internal/ctxlog"
	"github.com/vk/animate/internal/picker"
	"github.com/vk/animate/internal/registry"
	"github.com/vk/animate/internal/resolver"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	errW      io.Writer
	logger    *slog.Logger
	registry  *registry.Registry
	appConfig *Config
	config    *config.Model
	chooser   resolver.Chooser
}

// NewApp is the constructor for the main application. Program output goes to
// outW; logs and diagnostics go to errW. When no modules are given, the core
// engine backends are registered.
func NewApp(outW, errW io.Writer, appConfig *Config, loader config.Loader, modules ...registry.Module) (*App, error) {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, errW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	// Load all configuration into the format-agnostic model first.
	cfgModel, err := loader.Load(ctx, appConfig.ConfigPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.Engine != "" {
		cfgModel.Engine.Backend = appConfig.Engine
	}
	logger.Debug("Configuration loaded and translated into unified model.", "backend", cfgModel.Engine.Backend)

	// Create and populate the registry with Go backends.
	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules(outW)
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All engine backends registered.", "count", len(modules), "names", reg.Names())

	if err := reg.ValidateModel(ctx, cfgModel); err != nil {
		return nil, err
	}
	logger.Debug("Configuration validation passed.")

	return &App{
		outW:      outW,
		errW:      errW,
		logger:    logger,
		registry:  reg,
		appConfig: appConfig,
		config:    cfgModel,
		chooser:   picker.New(os.Stdin, errW).Choose,
	}, nil
}

// WithChooser replaces the interactive picker used with --pick.
func (a *App) WithChooser(c resolver.Chooser) *App {
	a.chooser = c
	return a
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Model returns the loaded configuration model.
func (a *App) Model() *config.Model {
	return a.config
}

func (a *App) newResolver() *resolver.Resolver {
	return resolver.New(resolver.WithExtractor(&archive.Extractor{
		TempRoot: a.config.Scratch.Dir,
		Prefix:   a.config.Scratch.Prefix,
	}))
}
