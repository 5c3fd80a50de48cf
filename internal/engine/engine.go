package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ErrDeadlock is returned by Session.Step when no event is enabled in the
// current state.
var ErrDeadlock = errors.New("can't find an event to execute from this state (deadlock)")

// Engine loads machines into sessions.
type Engine interface {
	Load(ctx context.Context, req LoadRequest) (Session, error)
}

// Session is one loaded machine and its animation trace. Close releases the
// engine-side state space; it must be called exactly once.
type Session interface {
	Version(ctx context.Context) (string, error)
	// Initialise sets up constants, when the machine has any, and executes
	// the initialisation event.
	Initialise(ctx context.Context) error
	// Step executes one randomly chosen enabled event and extends the trace.
	Step(ctx context.Context) (Transition, error)
	// ViolatedInvariants evaluates every invariant in the current state and
	// returns the predicates that do not hold.
	ViolatedInvariants(ctx context.Context) ([]string, error)
	State(ctx context.Context) (string, error)
	Coverage(ctx context.Context) (Coverage, error)
	SaveTrace(ctx context.Context, path string, meta TraceMetadata) error
	// Replay replays a JSON trace file and returns the replay status.
	Replay(ctx context.Context, path string) (string, error)
	Dump(ctx context.Context, d Dump) error
	// Dependencies returns the machine and context dependency graph.
	Dependencies(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// LoadRequest is forwarded verbatim to the engine.
type LoadRequest struct {
	// Path is the absolute path of the machine file.
	Path        string            `json:"path"`
	Machine     string            `json:"machine"`
	Preferences map[string]string `json:"preferences"`
}

// Transition is one executed event.
type Transition struct {
	Name   string `json:"name"`
	Pretty string `json:"pretty"`
}

// Coverage summarises which parts of the machine the trace exercised.
type Coverage struct {
	Nodes     []string `json:"nodes"`
	Covered   []string `json:"covered"`
	Uncovered []string `json:"uncovered"`
}

// TraceMetadata is stored alongside a saved trace.
type TraceMetadata struct {
	Creator       string    `json:"creator"`
	EngineVersion string    `json:"engineVersion"`
	ModelName     string    `json:"modelName"`
	SavedAt       time.Time `json:"savedAt"`
}

// DumpKind names a model artefact the engine can write.
type DumpKind string

const (
	DumpMachineHierarchy DumpKind = "machine_hierarchy"
	DumpEventHierarchy   DumpKind = "event_hierarchy"
	DumpProperties       DumpKind = "properties"
	DumpInvariant        DumpKind = "invariant"
	DumpEventB           DumpKind = "eventb"
)

// Format is the file format of a dump.
type Format string

const (
	FormatDot    Format = "dot"
	FormatSVG    Format = "svg"
	FormatProlog Format = "eventb"
)

// Dump asks the engine to write one artefact to Path.
type Dump struct {
	Kind   DumpKind `json:"kind"`
	Format Format   `json:"format"`
	Path   string   `json:"path"`
}

// IsGraph reports whether the dump is a graph visualisation.
func (d Dump) IsGraph() bool {
	return d.Kind != DumpEventB
}

// GraphDump builds a visualisation dump, deriving the format from the file
// extension. Only dot and svg are supported.
func GraphDump(kind DumpKind, path string) (Dump, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	switch Format(ext) {
	case FormatDot, FormatSVG:
		return Dump{Kind: kind, Format: Format(ext), Path: path}, nil
	}
	return Dump{}, &UnknownExtensionError{Ext: ext}
}

// UnknownExtensionError reports a dump path whose extension has no renderer.
type UnknownExtensionError struct {
	Ext string
}

func (e *UnknownExtensionError) Error() string {
	return fmt.Sprintf("unknown extension %q", e.Ext)
}

// InfoRequest holds the output paths requested from the info command. Empty
// fields are not produced; an entirely empty request prints the dependency
// graph instead.
type InfoRequest struct {
	MachineGraph    string
	EventGraph      string
	PropertiesGraph string
	InvariantGraph  string
	EventB          string
}

// Empty reports whether no artefact was requested.
func (r InfoRequest) Empty() bool {
	return r == InfoRequest{}
}

// Dumps returns the dumps to produce, graphs first in a fixed order. A graph
// path with an unsupported extension is reported in errs and skipped; the
// remaining dumps are still returned.
func (r InfoRequest) Dumps() (dumps []Dump, errs []error) {
	graphs := []struct {
		kind DumpKind
		path string
	}{
		{DumpMachineHierarchy, r.MachineGraph},
		{DumpEventHierarchy, r.EventGraph},
		{DumpProperties, r.PropertiesGraph},
		{DumpInvariant, r.InvariantGraph},
	}
	for _, g := range graphs {
		if g.path == "" {
			continue
		}
		d, err := GraphDump(g.kind, g.path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		dumps = append(dumps, d)
	}
	if r.EventB != "" {
		dumps = append(dumps, Dump{Kind: DumpEventB, Format: FormatProlog, Path: r.EventB})
	}
	return dumps, errs
}

// HasGraphs reports whether any graph visualisation was requested. Graphs
// are rendered from an initialised state.
func (r InfoRequest) HasGraphs() bool {
	return r.MachineGraph != "" || r.EventGraph != "" || r.PropertiesGraph != "" || r.InvariantGraph != ""
}
