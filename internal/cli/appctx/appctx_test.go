package appctx

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/lherron/qbank/internal/render"
	"github.com/spf13/cobra"
)

// isolate points HOME and the working directory at a temp dir so no user
// config or .env.local leaks into the test.
func isolate(t *testing.T) {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	for _, key := range []string{"QBANK_LOG_LEVEL", "QBANK_OUTPUT", "QBANK_IMAGE_DIR", "QBANK_SOURCE_ROOT"} {
		t.Setenv(key, "")
	}
	oldCwd, _ := os.Getwd()
	t.Cleanup(func() { os.Chdir(oldCwd) })
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change to temp directory: %v", err)
	}
}

func newCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("output", "", "Output format")
	cmd.Flags().String("log-level", "", "Log level")
	return cmd
}

func TestBootstrap_Defaults(t *testing.T) {
	isolate(t)

	app, err := Bootstrap(newCmd())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.Config == nil {
		t.Fatal("Config should not be nil")
	}
	if app.Logger == nil {
		t.Error("Logger should not be nil")
	}
	if app.Format != render.FormatTable {
		t.Errorf("Format = %q, want table", app.Format)
	}
	if _, err := uuid.Parse(app.RunID); err != nil {
		t.Errorf("RunID %q is not a uuid: %v", app.RunID, err)
	}
}

func TestBootstrap_FlagOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("QBANK_OUTPUT", "yaml")

	cmd := newCmd()
	if err := cmd.ParseFlags([]string{"--output", "json", "--log-level", "debug"}); err != nil {
		t.Fatal(err)
	}

	app, err := Bootstrap(cmd)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.Format != render.FormatJSON {
		t.Errorf("Format = %q, want json", app.Format)
	}
	if app.Config.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", app.Config.LogLevel)
	}
}

func TestBootstrap_EnvOutput(t *testing.T) {
	isolate(t)
	t.Setenv("QBANK_OUTPUT", "yaml")

	app, err := Bootstrap(newCmd())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.Format != render.FormatYAML {
		t.Errorf("Format = %q, want yaml", app.Format)
	}
}

func TestBootstrap_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad output", []string{"--output", "xml"}},
		{"bad log level", []string{"--log-level", "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			cmd := newCmd()
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatal(err)
			}
			if _, err := Bootstrap(cmd); err == nil {
				t.Error("expected Bootstrap to fail")
			}
		})
	}
}

func TestWithApp(t *testing.T) {
	isolate(t)

	var got *App
	run := WithApp(func(app *App, cmd *cobra.Command, args []string) error {
		got = app
		return nil
	})
	if err := run(newCmd(), nil); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got == nil || got.Config == nil {
		t.Fatal("WithApp did not pass a bootstrapped App")
	}
}
