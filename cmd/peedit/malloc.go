package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/corvid-labs/peedit/section"
	"github.com/spf13/cobra"
)

func newMallocCommand(opts *rootOptions) *cobra.Command {
	var (
		tag             string
		virtualSize     uint32
		dataPath        string
		characteristics string
		linearize       bool
		resort          bool
		output          string
	)

	cmd := &cobra.Command{
		Use:   "malloc <image>",
		Short: "Insert a new section into a PE image's layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			mf, f, err := openImage(opts, args[0])
			if err != nil {
				return err
			}
			defer mf.Close()

			var data []byte
			if dataPath != "" {
				data, err = os.ReadFile(dataPath)
				if err != nil {
					return fmt.Errorf("reading section data from %s: %w", dataPath, err)
				}
			}

			flags, err := parseCharacteristics(characteristics)
			if err != nil {
				return err
			}

			s := section.New(tag, 0, virtualSize, data, flags)
			s.Linearize = linearize

			if err := f.Malloc(s, resort); err != nil {
				return fmt.Errorf("malloc: %w", err)
			}

			opts.logger.Debug("allocated section", "tag", s.TrimmedTag(), "va", s.VirtualAddress)

			out := output
			if out == "" {
				out = args[0]
			}

			return writeImage(opts, f, out)
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "8-byte section tag (truncated/padded as needed)")
	cmd.Flags().Uint32Var(&virtualSize, "vs", 0, "Virtual size of the new section")
	cmd.Flags().StringVar(&dataPath, "data", "", "Path to a file supplying the section's raw data (defaults to empty)")
	cmd.Flags().StringVar(&characteristics, "characteristics", "0x40000000", "Section characteristics bitfield, as hex (e.g. 0x40000000)")
	cmd.Flags().BoolVar(&linearize, "linearize", false, "Request file-offset-equals-RVA placement for the new section")
	cmd.Flags().BoolVar(&resort, "resort", true, "Re-sort the section list by virtual address after inserting")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (defaults to overwriting the input image)")
	_ = cmd.MarkFlagRequired("tag")
	_ = cmd.MarkFlagRequired("vs")

	return cmd
}

func parseCharacteristics(s string) (section.Characteristics, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("parsing characteristics %q: %w", s, err)
	}

	return section.Characteristics(v), nil
}
