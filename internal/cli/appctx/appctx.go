// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logger construction, and output format
// resolution to reduce boilerplate across commands.
package appctx

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/lherron/qbank/internal/config"
	"github.com/lherron/qbank/internal/logging"
	"github.com/lherron/qbank/internal/render"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	// Logger carries the run_id field of this invocation
	Logger *zap.Logger

	// RunID identifies this invocation in log lines
	RunID string

	// Format is the resolved output format for tallies and reports
	Format render.Format
}

// Close flushes the logger.
// Safe to call multiple times.
func (a *App) Close() {
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

// Renderer returns a renderer writing to w in the app's output format.
func (a *App) Renderer(w io.Writer) *render.Renderer {
	return render.NewRenderer(w, render.Options{Format: a.Format})
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// The logger is flushed when the wrapped function returns.
func WithApp(fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App from config and the --log-level and
// --output flags. Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command) (*App, error) {
	app := &App{}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	if v := flagValue(cmd, "log-level"); v != "" {
		app.Config.LogLevel = v
	}
	if v := flagValue(cmd, "output"); v != "" {
		app.Config.Output = v
	}

	app.Format, err = render.ParseFormat(app.Config.Output)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(app.Config.LogLevel)
	if err != nil {
		return nil, err
	}
	app.RunID = uuid.NewString()
	app.Logger = logger.With(
		zap.String("run_id", app.RunID),
		zap.String("command", cmd.Name()),
	)

	return app, nil
}

func flagValue(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}
