// Package cmd implements the viewtree CLI commands.
//
// Every command loads a script, replays it through an engine.Host running
// on its own loop and then reports on the resulting native tree.
package cmd

import (
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/go-drift/viewtree/pkg/config"
	"github.com/go-drift/viewtree/pkg/errors"
)

// Version information set at build time.
var (
	Version = "0.1.0-dev"
	Commit  = "dev"
)

// Options are the flags shared by every command.
type Options struct {
	ConfigPath string
	Debug      bool
}

// NewRootCommand returns the viewtree command tree.
func NewRootCommand() *cobra.Command {
	var opts Options

	root := &cobra.Command{
		Use:   "viewtree <command> [flags]",
		Short: "Replay view tree edit scripts",
		Long: `viewtree replays scripted tree edits through the shadow tree, the
flattening optimizer and the frame-synchronized mutation queue, then
reports on the native views that came out.`,
		Example: `  # Print the native tree after a replay
  viewtree replay screen.yaml

  # Replay again every time the script changes
  viewtree replay --watch screen.yaml

  # Render a wireframe of root 1
  viewtree snapshot screen.yaml --out screen.png --root 1

  # Inspect the result over HTTP
  viewtree serve screen.yaml --port 9999`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "",
		"Path to viewtree.yaml (default: looked up next to the script)")
	root.PersistentFlags().BoolVarP(&opts.Debug, "debug", "d", false, "Enable debug logging")

	root.AddCommand(replayCmd(&opts), snapshotCmd(&opts), serveCmd(&opts))
	return root
}

// loadConfig reads the explicit config path, or viewtree.yaml next to
// the script when there is one.
func loadConfig(opts *Options, scriptPath string) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}
	return config.LoadOptional(filepath.Dir(scriptPath))
}

// setupLogging routes engine logs to w and applies the debug settings of
// cfg.
func setupLogging(w io.Writer, opts *Options, cfg *config.Config) {
	level := slog.LevelInfo
	if opts.Debug || cfg.Debug.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	errors.SetLogger(slog.New(handler))
	errors.SetDebugMode(cfg.Debug.Assertions)
}
