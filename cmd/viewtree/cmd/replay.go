package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/go-drift/viewtree/pkg/errors"
)

func replayCmd(opts *Options) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "replay SCRIPT",
		Short: "Replay a script and print the native tree of every root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, args[0])
			if err != nil {
				return err
			}
			setupLogging(cmd.ErrOrStderr(), opts, cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			run := func() error {
				s, err := runScript(ctx, cfg, args[0])
				if err != nil {
					return err
				}
				s.printTrees(cmd.OutOrStdout())
				return s.Close()
			}
			if !watch {
				return run()
			}
			return watchScript(ctx, args[0], cmd.OutOrStdout(), run)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Replay again whenever the script changes")
	return cmd
}

// watchScript runs run once and then after every change to path until ctx
// is done. Failed runs are reported and watching continues.
func watchScript(ctx context.Context, path string, out io.Writer, run func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch the directory.
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	report := func() {
		if err := run(); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	report()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			errors.Logger().Debug("script changed", "path", path, "op", event.Op.String())
			fmt.Fprintf(out, "--- %s changed\n", filepath.Base(path))
			report()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			errors.Logger().Warn("watch error", "err", err)
		}
	}
}
