package app

import (
	"errors"
	"fmt"

	"github.com/vk/animate/internal/engine"
)

// Command selects what Run does with the loaded model.
type Command string

const (
	CommandAnimate Command = "animate"
	CommandReplay  Command = "replay"
	CommandInfo    Command = "info"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Command   Command
	ModelPath string // .bum file, directory or .zip bundle

	// ConfigPaths lists HCL files or directories; missing ones are skipped.
	ConfigPaths []string
	// Engine overrides the backend named in the configuration files.
	Engine string

	Steps           int
	SetSize         int
	CheckInvariants bool
	Perf            bool
	SaveTrace       string

	TracePath string // replay
	Info      engine.InfoRequest

	ReportPath string
	Pick       bool

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and returns a copy.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	switch cfg.Command {
	case CommandAnimate, CommandReplay, CommandInfo:
	case "":
		cfg.Command = CommandAnimate
	default:
		return nil, fmt.Errorf("unknown command '%s'", cfg.Command)
	}
	if cfg.Steps <= 0 {
		return nil, fmt.Errorf("number of steps must be positive, got: %d", cfg.Steps)
	}
	if cfg.SetSize <= 0 {
		return nil, fmt.Errorf("default set size must be positive, got: %d", cfg.SetSize)
	}
	if cfg.Command == CommandReplay && cfg.TracePath == "" {
		return nil, errors.New("replay requires a trace file (-t)")
	}
	return &cfg, nil
}
