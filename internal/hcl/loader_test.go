package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/animate/internal/config"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FullFile(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, t.TempDir(), "animate.hcl", `
engine {
  backend              = "print"
  url                  = "https://engine.example:7443/prob"
  namespace            = "/animate"
  timeout              = "45s"
  insecure_skip_verify = true
}

preferences {
  SYMMETRY_MODE   = "off"
  DEFAULT_SETSIZE = 8
  CLPFD           = false
  TIME_OUT        = 2500
}

scratch {
  dir    = "/var/tmp"
  prefix = "model-"
}
`)

	model, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)

	want := &config.Model{
		Engine: config.Engine{
			Backend:            "print",
			URL:                "https://engine.example:7443/prob",
			Namespace:          "/animate",
			Timeout:            45 * time.Second,
			InsecureSkipVerify: true,
		},
		Preferences: map[string]string{
			"SYMMETRY_MODE":   "off",
			"DEFAULT_SETSIZE": "8",
			"CLPFD":           "false",
			"TIME_OUT":        "2500",
		},
		Scratch: config.Scratch{Dir: "/var/tmp", Prefix: "model-"},
	}
	if diff := cmp.Diff(want, model); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_PartialBlocksKeepDefaults(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, t.TempDir(), "animate.hcl", `
engine {
  timeout = "5s"
}
`)

	model, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)

	want := config.Default()
	want.Engine.Timeout = 5 * time.Second
	if diff := cmp.Diff(want, model); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_NoFilesGivesDefaults(t *testing.T) {
	t.Parallel()
	model, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), model)
}

func TestLoad_DirectoryLaterFileWins(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeConfig(t, dir, "a.hcl", `
engine {
  backend = "socketio"
  url     = "http://first:1"
}
preferences {
  CLPFD = true
}
`)
	writeConfig(t, dir, "conf.d/b.hcl", `
engine {
  url = "http://second:2"
}
preferences {
  CLPFD = false
}
`)
	writeConfig(t, dir, "notes.txt", "engine { url = 1 }")

	model, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "socketio", model.Engine.Backend)
	assert.Equal(t, "http://second:2", model.Engine.URL)
	assert.Equal(t, map[string]string{"CLPFD": "false"}, model.Preferences)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "syntax error",
			content: "engine {\n  url = \n",
			wantErr: "failed to parse HCL file",
		},
		{
			name:    "unknown block",
			content: "grid \"x\" {}\n",
			wantErr: "failed to decode HCL file",
		},
		{
			name:    "bad duration",
			content: "engine {\n  timeout = \"soon\"\n}\n",
			wantErr: "attribute 'timeout'",
		},
		{
			name:    "negative duration",
			content: "engine {\n  timeout = \"-1s\"\n}\n",
			wantErr: "must be positive",
		},
		{
			name:    "wrong type",
			content: "engine {\n  insecure_skip_verify = \"maybe\"\n}\n",
			wantErr: "attribute 'insecure_skip_verify'",
		},
		{
			name:    "null preference",
			content: "preferences {\n  CLPFD = null\n}\n",
			wantErr: "attribute 'CLPFD'",
		},
		{
			name:    "nested block in preferences",
			content: "preferences {\n  inner {}\n}\n",
			wantErr: "preferences block",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeConfig(t, t.TempDir(), "animate.hcl", tc.content)
			_, err := NewLoader().Load(context.Background(), path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
