package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFillGapsCommand(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "fill-gaps <image>",
		Short: "Plug virtual-address gaps between sections with filler sections",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			mf, f, err := openImage(opts, args[0])
			if err != nil {
				return err
			}
			defer mf.Close()

			before := len(f.Sections)

			if err := f.FillVirtualLayoutGaps(); err != nil {
				return fmt.Errorf("fill-gaps: %w", err)
			}

			opts.logger.Info("filled virtual layout gaps", "fillers_added", len(f.Sections)-before)

			out := output
			if out == "" {
				out = args[0]
			}

			return writeImage(opts, f, out)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (defaults to overwriting the input image)")

	return cmd
}
