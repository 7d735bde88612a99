package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInspectCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <image>",
		Short: "Print a summary of a PE image's header and section table",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			mf, f, err := openImage(opts, args[0])
			if err != nil {
				return err
			}
			defer mf.Close()

			fmt.Printf("sections: %d\n", len(f.Sections))

			if rva, err := f.ResourceTableRVA(); err == nil && rva != 0 {
				fmt.Printf("resource table RVA: 0x%x\n", rva)
			}

			sectionAlignment, err := f.SectionAlignment()
			if err == nil {
				fmt.Printf("section alignment: 0x%x\n", sectionAlignment)
			}

			fileAlignment, err := f.FileAlignment()
			if err == nil {
				fmt.Printf("file alignment: 0x%x\n", fileAlignment)
			}

			return nil
		},
	}

	return cmd
}
