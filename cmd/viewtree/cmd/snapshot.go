package cmd

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/go-drift/viewtree/pkg/engine"
)

func snapshotCmd(opts *Options) *cobra.Command {
	var (
		out  string
		root int
	)
	cmd := &cobra.Command{
		Use:   "snapshot SCRIPT",
		Short: "Replay a script and write a wireframe PNG of one root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, args[0])
			if err != nil {
				return err
			}
			setupLogging(cmd.ErrOrStderr(), opts, cfg)

			s, err := runScript(cmd.Context(), cfg, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			if root == 0 {
				roots := s.host.RootTags()
				if len(roots) == 0 {
					return fmt.Errorf("%s leaves no root view mounted", args[0])
				}
				root = slices.Min(roots)
			}
			snap, err := s.host.NativeSnapshot(root)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := engine.EncodeWireframe(f, snap); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (root %d, %dx%d)\n", out, root, snap.Frame.Width, snap.Frame.Height)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "PNG file to write")
	cmd.Flags().IntVar(&root, "root", 0, "Root tag to draw (default: lowest root)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
