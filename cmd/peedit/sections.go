package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSectionsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sections <image>",
		Short: "List a PE image's section table",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			mf, f, err := openImage(opts, args[0])
			if err != nil {
				return err
			}
			defer mf.Close()

			for i, s := range f.Sections {
				fmt.Printf("%2d  %-10s VA=0x%08x VS=0x%08x FA=0x%08x size=0x%08x linearize=%-5v %s\n",
					i, s.TrimmedTag(), s.VirtualAddress, s.VirtualSize, s.FileAddress,
					len(s.RawData), s.Linearize, s.Characteristics)
			}

			return nil
		},
	}

	return cmd
}
