package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/vk/animate/internal/app"
	"github.com/vk/animate/internal/cli"
	"github.com/vk/animate/internal/hcl"
)

// main is the entrypoint for the animate application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Stdout, os.Stderr, os.Args[1:])
	stop()
	os.Exit(exitCode(os.Stderr, err))
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW, errW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// Instantiate the concrete HCL loader to pass to the app.
	loader := hcl.NewLoader()
	animateApp, err := app.NewApp(outW, errW, appConfig, loader)
	if err != nil {
		return err
	}
	return animateApp.Run(ctx)
}

// exitCode reports err on errW and maps it to the process exit code.
func exitCode(errW io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(errW, exitErr.Message)
		return exitErr.Code
	}
	// These were already reported where they happened.
	if !errors.Is(err, app.ErrInvariantViolated) && !errors.Is(err, app.ErrDumpFailed) {
		fmt.Fprintln(errW, err)
	}
	return 1
}
