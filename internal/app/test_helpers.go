package app

import (
	"os"
	"testing"

	"github.com/vk/animate/internal/config"
	"github.com/vk/animate/internal/registry"
	"github.com/vk/animate/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing. It returns the
// app, its program output and its log output. Logs are dumped on completion
// when ANIMATE_TEST_LOGS is "true".
func SetupAppTest(t *testing.T, appConfig *Config, loader config.Loader, modules ...registry.Module) (*App, *testutil.SafeBuffer, *testutil.SafeBuffer) {
	t.Helper()

	outBuffer := &testutil.SafeBuffer{}
	logBuffer := &testutil.SafeBuffer{}
	appConfig.LogLevel = "debug"
	testApp, err := NewApp(outBuffer, logBuffer, appConfig, loader, modules...)
	if err != nil {
		t.Fatalf("NewApp() failed: %v", err)
	}

	t.Cleanup(func() {
		if os.Getenv("ANIMATE_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, outBuffer, logBuffer
}
