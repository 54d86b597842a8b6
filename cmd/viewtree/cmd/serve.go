package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const defaultServePort = 9999

func serveCmd(opts *Options) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve SCRIPT",
		Short: "Replay a script and serve the debug endpoints until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, args[0])
			if err != nil {
				return err
			}
			setupLogging(cmd.ErrOrStderr(), opts, cfg)
			if cmd.Flags().Changed("port") || cfg.Debug.ServerPort == 0 {
				cfg.Debug.ServerPort = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := runScript(ctx, cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "serving http://localhost:%d (Ctrl+C to stop)\n", cfg.Debug.ServerPort)
			return s.wait(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", defaultServePort, "Debug server port")
	return cmd
}
