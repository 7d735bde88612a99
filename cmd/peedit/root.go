package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/corvid-labs/peedit/internal/peio"
	"github.com/corvid-labs/peedit/pe"
	"github.com/spf13/cobra"
)

// rootOptions is threaded through every subcommand constructor, mirroring
// pixie's newXCommand(opts *rootOptions) shape.
type rootOptions struct {
	config *config
	logger *slog.Logger

	configPath string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "peedit",
		Short:         "Inspect and edit PE section layouts and resource directories",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}

			opts.config = cfg

			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}

			opts.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a config file (optional)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newInspectCommand(opts),
		newSectionsCommand(opts),
		newRsrcCommand(opts),
		newMallocCommand(opts),
		newFillGapsCommand(opts),
	)

	return cmd
}

// openImage memory-maps path and parses it, returning both the mapped
// file (so the caller can Close it once finished with f.Sections'
// RawData, which Parse copies out of the mapping) and the parsed *File.
func openImage(opts *rootOptions, path string) (*peio.MappedFile, *pe.File, error) {
	mf, err := peio.Open(path)
	if err != nil {
		return nil, nil, err
	}

	f, err := pe.Parse(mf.Bytes(), opts.config.ExpectedHeadersSize)
	if err != nil {
		mf.Close()
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return mf, f, nil
}

func writeImage(opts *rootOptions, f *pe.File, path string) error {
	out, err := f.Write()
	if err != nil {
		return fmt.Errorf("re-emitting image: %w", err)
	}

	if err := peio.WriteFile(path, out); err != nil {
		return err
	}

	opts.logger.Info("wrote image", "path", path, "size", len(out))

	return nil
}
