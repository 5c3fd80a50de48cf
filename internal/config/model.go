package config

import (
	"maps"
	"strconv"
	"time"
)

const (
	// DefaultBackend is the engine backend used when none is configured.
	DefaultBackend = "socketio"
	// DefaultURL is where the socketio backend expects the engine.
	DefaultURL = "http://localhost:7700/engine"
	// DefaultTimeout bounds connecting to the engine and every call made to it.
	DefaultTimeout = 30 * time.Second
	// DefaultScratchPrefix prefixes every scratch directory name.
	DefaultScratchPrefix = "animate-"
	// DefaultSetSize is the default size of deferred sets.
	DefaultSetSize = 4
)

// Model is the unified, format-agnostic representation of the application
// configuration.
type Model struct {
	Engine      Engine
	// Preferences holds overrides of the default engine preferences.
	Preferences map[string]string
	Scratch     Scratch
}

// Engine selects and configures the analysis engine backend.
type Engine struct {
	Backend            string
	URL                string
	Namespace          string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Scratch configures where archives are extracted.
type Scratch struct {
	// Dir is the parent of scratch directories; empty means the system
	// temporary directory.
	Dir    string
	Prefix string
}

// Default returns the configuration used when no file overrides it.
func Default() *Model {
	return &Model{
		Engine: Engine{
			Backend:   DefaultBackend,
			URL:       DefaultURL,
			Namespace: "/",
			Timeout:   DefaultTimeout,
		},
		Preferences: map[string]string{},
		Scratch:     Scratch{Prefix: DefaultScratchPrefix},
	}
}

// DefaultPreferences returns the engine preferences animate always sets.
func DefaultPreferences(setSize int, perf bool) map[string]string {
	prefs := map[string]string{
		"MEMOIZE_FUNCTIONS": "true",
		"SYMBOLIC":          "true",
		"TRACE_INFO":        "true",
		"TRY_FIND_ABORT":    "true",
		"SYMMETRY_MODE":     "hash",
		"DEFAULT_SETSIZE":   strconv.Itoa(setSize),
		"COMPRESSION":       "true",
		"CLPFD":             "true",
		"PROOF_INFO":        "true",
		"OPERATION_REUSE":   "true",
	}
	if perf {
		prefs["PERFORMANCE_INFO"] = "true"
	}
	return prefs
}

// EffectivePreferences layers the preferences in m over the defaults and then
// applies the values derived from the command line, which always win.
func (m *Model) EffectivePreferences(setSize int, perf bool) map[string]string {
	prefs := DefaultPreferences(setSize, perf)
	maps.Copy(prefs, m.Preferences)
	prefs["DEFAULT_SETSIZE"] = strconv.Itoa(setSize)
	if perf {
		prefs["PERFORMANCE_INFO"] = "true"
	}
	return prefs
}
