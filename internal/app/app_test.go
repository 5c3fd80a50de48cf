package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/animate/internal/config"
	"github.com/vk/animate/internal/engine"
	"github.com/vk/animate/internal/registry"
	"github.com/vk/animate/internal/report"
	"github.com/vk/animate/internal/resolveerr"
	"github.com/vk/animate/internal/testutil"
)

// staticLoader returns a fixed model, with scratch directories under dir.
type staticLoader struct {
	model *config.Model
	err   error
}

func (l staticLoader) Load(context.Context, ...string) (*config.Model, error) {
	return l.model, l.err
}

func newLoader(t *testing.T) (staticLoader, string) {
	t.Helper()
	scratch := filepath.Join(t.TempDir(), "scratch")
	require.NoError(t, os.Mkdir(scratch, 0o755))
	m := config.Default()
	m.Engine.Backend = "fake"
	m.Scratch.Dir = scratch
	return staticLoader{model: m}, scratch
}

// fakeEngine scripts a session and records what the app asked for.
type fakeEngine struct {
	loads      []engine.LoadRequest
	loadErr    error
	loadedFile string // content of the machine file at load time

	steps      []engine.Transition
	violatedAt int // 1-based step after which invariants fail; 0 never
	dumpErr    error
	initErr    error

	stepped  int
	dumps    []engine.Dump
	saved    []engine.TraceMetadata
	replayed []string
	inited   bool
	closed   int
}

func (f *fakeEngine) Register(r *registry.Registry) {
	r.RegisterBackend("fake", &registry.RegisteredBackend{
		New: func(context.Context, config.Engine) (engine.Engine, error) { return f, nil },
	})
}

func (f *fakeEngine) Load(_ context.Context, req engine.LoadRequest) (engine.Session, error) {
	f.loads = append(f.loads, req)
	if raw, err := os.ReadFile(req.Path); err == nil {
		f.loadedFile = string(raw)
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f, nil
}

func (f *fakeEngine) Version(context.Context) (string, error) { return "1.15.0-test", nil }

func (f *fakeEngine) Initialise(context.Context) error {
	f.inited = true
	return f.initErr
}

func (f *fakeEngine) Step(context.Context) (engine.Transition, error) {
	if f.stepped >= len(f.steps) {
		return engine.Transition{}, engine.ErrDeadlock
	}
	f.stepped++
	return f.steps[f.stepped-1], nil
}

func (f *fakeEngine) ViolatedInvariants(context.Context) ([]string, error) {
	if f.violatedAt > 0 && f.stepped >= f.violatedAt {
		return []string{"count <= max"}, nil
	}
	return nil, nil
}

func (f *fakeEngine) State(context.Context) (string, error) { return "count = 2", nil }

func (f *fakeEngine) Coverage(context.Context) (engine.Coverage, error) {
	return engine.Coverage{Nodes: []string{"states: 3"}, Covered: []string{"inc"}, Uncovered: []string{"reset"}}, nil
}

func (f *fakeEngine) SaveTrace(_ context.Context, _ string, meta engine.TraceMetadata) error {
	f.saved = append(f.saved, meta)
	return nil
}

func (f *fakeEngine) Replay(_ context.Context, path string) (string, error) {
	f.replayed = append(f.replayed, path)
	return "FULL", nil
}

func (f *fakeEngine) Dump(_ context.Context, d engine.Dump) error {
	f.dumps = append(f.dumps, d)
	return f.dumpErr
}

func (f *fakeEngine) Dependencies(context.Context) (string, error) {
	return "digraph deps {}\n", nil
}

func (f *fakeEngine) Close(context.Context) error {
	f.closed++
	return nil
}

func chainZip(t *testing.T) string {
	t.Helper()
	return testutil.WriteZip(t, t.TempDir(), "model.zip", testutil.ChainEntries("model", "M0", "M1", "M2"))
}

func baseConfig(model string) *Config {
	return &Config{Command: CommandAnimate, ModelPath: model, Steps: 5, SetSize: 4}
}

func assertNoScratch(t *testing.T, scratch string) {
	t.Helper()
	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directory left behind")
}

func TestRun_AnimateArchive(t *testing.T) {
	t.Parallel()
	loader, scratch := newLoader(t)
	loader.model.Preferences["TIME_OUT"] = "2500"
	fake := &fakeEngine{steps: []engine.Transition{
		{Name: "$initialise_machine", Pretty: "INITIALISATION()"},
		{Name: "inc", Pretty: "inc()"},
	}}
	cfg := baseConfig(chainZip(t))
	cfg.SaveTrace = filepath.Join(t.TempDir(), "trace.json")

	a, out, logs := SetupAppTest(t, cfg, loader, fake)
	require.NoError(t, a.Run(context.Background()))

	require.Len(t, fake.loads, 1)
	req := fake.loads[0]
	assert.Equal(t, "M2", req.Machine)
	assert.True(t, filepath.IsAbs(req.Path))
	assert.Equal(t, scratch, filepath.Dir(filepath.Dir(filepath.Dir(req.Path))))
	assert.Equal(t, testutil.BumDocument("M1"), fake.loadedFile, "file must exist while the engine loads it")

	want := config.DefaultPreferences(4, false)
	want["TIME_OUT"] = "2500"
	if diff := cmp.Diff(want, req.Preferences); diff != "" {
		t.Errorf("preferences mismatch (-want +got):\n%s", diff)
	}

	wantOut := "Machine: M2\n" +
		"Animation steps:\n" +
		"INITIALISATION()\n" +
		"inc()\n" +
		"\n" +
		"Current state:\ncount = 2\n\n" +
		"Coverage properties:\n\t - states: 3\n" +
		"Covered operations:\n\t - inc\n" +
		"Uncovered operations:\n\t - reset\n"
	assert.Equal(t, wantOut, out.String())
	assert.Contains(t, logs.String(), "Error: Can't find an event to execute from this state (deadlock)")
	assert.Contains(t, logs.String(), "Multiple .bum files found, auto-selected most refined.")

	require.Len(t, fake.saved, 1)
	assert.Equal(t, "animate", fake.saved[0].Creator)
	assert.Equal(t, "1.15.0-test", fake.saved[0].EngineVersion)
	assert.Equal(t, "M2", fake.saved[0].ModelName)

	assert.Equal(t, 1, fake.closed)
	assertNoScratch(t, scratch)
}

func TestRun_InvariantViolationFails(t *testing.T) {
	t.Parallel()
	loader, scratch := newLoader(t)
	fake := &fakeEngine{
		steps:      []engine.Transition{{Pretty: "a"}, {Pretty: "b"}, {Pretty: "c"}},
		violatedAt: 2,
	}
	cfg := baseConfig(chainZip(t))
	cfg.CheckInvariants = true
	cfg.Perf = true
	cfg.SetSize = 6

	a, out, logs := SetupAppTest(t, cfg, loader, fake)
	err := a.Run(context.Background())

	require.ErrorIs(t, err, ErrInvariantViolated)
	assert.Equal(t, 2, fake.stepped)
	assert.Contains(t, logs.String(), "Error: violated invariants:\n\t - count <= max")
	assert.Contains(t, out.String(), "Coverage properties:")
	assert.Equal(t, "true", fake.loads[0].Preferences["PERFORMANCE_INFO"])
	assert.Equal(t, "6", fake.loads[0].Preferences["DEFAULT_SETSIZE"])
	assert.Equal(t, 1, fake.closed)
	assertNoScratch(t, scratch)
}

func TestRun_ResolutionErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		entries  []testutil.ZipEntry
		wantKind error
	}{
		{
			name:     "zip slip",
			entries:  []testutil.ZipEntry{{Name: "../escape.bum", Content: []byte("x")}},
			wantKind: resolveerr.ErrSecurityViolation,
		},
		{
			name: "ambiguous",
			entries: []testutil.ZipEntry{
				{Name: "A.bum", Content: []byte(testutil.BumDocument(""))},
				{Name: "B.bum", Content: []byte(testutil.BumDocument(""))},
			},
			wantKind: resolveerr.ErrAmbiguousBundle,
		},
		{
			name: "cycle",
			entries: []testutil.ZipEntry{
				{Name: "A.bum", Content: []byte(testutil.BumDocument("B"))},
				{Name: "B.bum", Content: []byte(testutil.BumDocument("A"))},
			},
			wantKind: resolveerr.ErrCircularRefinement,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			loader, scratch := newLoader(t)
			fake := &fakeEngine{}
			zipPath := testutil.WriteZip(t, t.TempDir(), "bad.zip", tc.entries)

			a, out, _ := SetupAppTest(t, baseConfig(zipPath), loader, fake)
			err := a.Run(context.Background())

			require.ErrorIs(t, err, tc.wantKind)
			assert.True(t, strings.HasPrefix(err.Error(), "error loading model: "))
			assert.Empty(t, fake.loads)
			assert.Empty(t, out.String())
			assertNoScratch(t, scratch)
		})
	}
}

func TestRun_PickSettlesAmbiguity(t *testing.T) {
	t.Parallel()
	loader, scratch := newLoader(t)
	fake := &fakeEngine{}
	zipPath := testutil.WriteZip(t, t.TempDir(), "two.zip", []testutil.ZipEntry{
		{Name: "Door.bum", Content: []byte(testutil.BumDocument(""))},
		{Name: "Lift0.bum", Content: []byte(testutil.BumDocument(""))},
		{Name: "Lift1.bum", Content: []byte(testutil.BumDocument("Lift0"))},
	})
	cfg := baseConfig(zipPath)
	cfg.Pick = true

	a, out, _ := SetupAppTest(t, cfg, loader, fake)
	var offered []string
	a.WithChooser(func(_ context.Context, leaves []string) (string, error) {
		offered = leaves
		return "Lift1", nil
	})
	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, []string{"Door", "Lift1"}, offered)
	require.Len(t, fake.loads, 1)
	assert.Equal(t, "Lift1", fake.loads[0].Machine)
	assert.True(t, strings.HasPrefix(out.String(), "Machine: Lift1\n"))
	assertNoScratch(t, scratch)
}

func TestRun_LoadFailureStillCleansUp(t *testing.T) {
	t.Parallel()
	loader, scratch := newLoader(t)
	fake := &fakeEngine{loadErr: errors.New("engine refused model")}

	a, _, _ := SetupAppTest(t, baseConfig(chainZip(t)), loader, fake)
	err := a.Run(context.Background())

	assert.EqualError(t, err, "error loading model: engine refused model")
	assert.Zero(t, fake.closed)
	assertNoScratch(t, scratch)
}

func TestRun_ReplayPlainFile(t *testing.T) {
	t.Parallel()
	loader, scratch := newLoader(t)
	fake := &fakeEngine{}
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"Lift.bum": testutil.BumDocument("")})
	cfg := baseConfig(filepath.Join(dir, "Lift.bum"))
	cfg.Command = CommandReplay
	cfg.TracePath = "/traces/run1.json"

	a, out, _ := SetupAppTest(t, cfg, loader, fake)
	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, filepath.Join(dir, "Lift.bum"), fake.loads[0].Path)
	assert.Equal(t, []string{"/traces/run1.json"}, fake.replayed)
	assert.Equal(t, "Machine: Lift\nStarting trace replay. Use --debug to view steps.\nTrace replay status: FULL\n", out.String())
	assertNoScratch(t, scratch)
}

func TestRun_InfoDependencies(t *testing.T) {
	t.Parallel()
	loader, _ := newLoader(t)
	fake := &fakeEngine{}
	cfg := baseConfig(chainZip(t))
	cfg.Command = CommandInfo

	a, out, _ := SetupAppTest(t, cfg, loader, fake)
	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, "Machine: M2\nRefinement chain: M2 -> M1 -> M0\ndigraph deps {}\n", out.String())
	assert.False(t, fake.inited)
}

func TestRun_InfoDumps(t *testing.T) {
	t.Parallel()
	loader, _ := newLoader(t)
	fake := &fakeEngine{initErr: errors.New("no INITIALISATION")}
	cfg := baseConfig(chainZip(t))
	cfg.Command = CommandInfo
	cfg.Info = engine.InfoRequest{MachineGraph: "m.dot", PropertiesGraph: "p.png", EventB: "model.eventb"}

	a, _, logs := SetupAppTest(t, cfg, loader, fake)
	err := a.Run(context.Background())

	require.ErrorIs(t, err, ErrDumpFailed)
	assert.True(t, fake.inited)
	assert.Contains(t, logs.String(), "Warning: Could not fully initialize model: no INITIALISATION")
	assert.Contains(t, logs.String(), "Unknown extension png")
	assert.Equal(t, []engine.Dump{
		{Kind: engine.DumpMachineHierarchy, Format: engine.FormatDot, Path: "m.dot"},
		{Kind: engine.DumpEventB, Format: engine.FormatProlog, Path: "model.eventb"},
	}, fake.dumps)
}

func TestRun_ReportWrittenBeforeCleanup(t *testing.T) {
	t.Parallel()
	loader, scratch := newLoader(t)
	fake := &fakeEngine{}
	cfg := baseConfig(chainZip(t))
	cfg.ReportPath = filepath.Join(t.TempDir(), "resolution.yaml")

	a, _, _ := SetupAppTest(t, cfg, loader, fake)
	require.NoError(t, a.Run(context.Background()))

	rep, err := report.Read(cfg.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, "archive", rep.Kind)
	assert.Equal(t, "M2", rep.Resolved.Machine)
	assert.NotEmpty(t, rep.Resolved.SHA256)
	assert.Equal(t, []string{"M2", "M1", "M0"}, rep.Chain)
	assert.Len(t, rep.Candidates, 3)
	assertNoScratch(t, scratch)
}

func TestNewApp_Errors(t *testing.T) {
	t.Parallel()

	t.Run("loader failure", func(t *testing.T) {
		t.Parallel()
		_, err := NewApp(&testutil.SafeBuffer{}, &testutil.SafeBuffer{}, baseConfig("m.bum"), staticLoader{err: errors.New("bad hcl")}, &fakeEngine{})
		assert.EqualError(t, err, "failed to load configuration: bad hcl")
	})

	t.Run("unknown backend override", func(t *testing.T) {
		t.Parallel()
		loader, _ := newLoader(t)
		cfg := baseConfig("m.bum")
		cfg.Engine = "grpc"
		_, err := NewApp(&testutil.SafeBuffer{}, &testutil.SafeBuffer{}, cfg, loader, &fakeEngine{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "engine backend 'grpc' is not registered")
	})

	t.Run("core modules", func(t *testing.T) {
		t.Parallel()
		loader, _ := newLoader(t)
		cfg := baseConfig("m.bum")
		cfg.Engine = "print"
		a, err := NewApp(&testutil.SafeBuffer{}, &testutil.SafeBuffer{}, cfg, loader)
		require.NoError(t, err)
		assert.Equal(t, []string{"print", "socketio"}, a.Registry().Names())
		assert.Equal(t, "print", a.Model().Engine.Backend)
	})
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "defaults command", cfg: Config{ModelPath: "m.bum", Steps: 1, SetSize: 1}},
		{name: "no model", cfg: Config{Steps: 1, SetSize: 1}, wantErr: "model path is required"},
		{name: "zero steps", cfg: Config{ModelPath: "m", SetSize: 1}, wantErr: "number of steps must be positive, got: 0"},
		{name: "negative size", cfg: Config{ModelPath: "m", Steps: 1, SetSize: -2}, wantErr: "default set size must be positive, got: -2"},
		{name: "replay without trace", cfg: Config{Command: CommandReplay, ModelPath: "m", Steps: 1, SetSize: 1}, wantErr: "replay requires a trace file"},
		{name: "unknown command", cfg: Config{Command: "check", ModelPath: "m", Steps: 1, SetSize: 1}, wantErr: "unknown command 'check'"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NewConfig(tc.cfg)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, CommandAnimate, got.Command)
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	buf := &testutil.SafeBuffer{}
	logger := newLogger("", "text", buf)
	assert.False(t, logger.Enabled(ctx, slog.LevelInfo))
	assert.True(t, logger.Enabled(ctx, slog.LevelWarn))

	logger = newLogger("verbose", "text", buf)
	assert.False(t, logger.Enabled(ctx, slog.LevelInfo), "unknown levels fall back to warn")

	logger = newLogger("debug", "json", buf)
	assert.True(t, logger.Enabled(ctx, slog.LevelDebug))
	logger.Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}
