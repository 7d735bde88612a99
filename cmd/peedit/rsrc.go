package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/corvid-labs/peedit/pe"
	"github.com/corvid-labs/peedit/rsrc"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRsrcCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rsrc",
		Short: "Inspect and extract a PE image's resource directory",
	}

	cmd.AddCommand(
		newRsrcTreeCommand(opts),
		newRsrcExtractCommand(opts),
		newRsrcExtractAllCommand(opts),
	)

	return cmd
}

func openRsrc(opts *rootOptions, path string) (*resourcesHandle, error) {
	mf, f, err := openImage(opts, path)
	if err != nil {
		return nil, err
	}

	r, err := f.Rsrc()
	if err != nil {
		mf.Close()
		return nil, err
	}

	return &resourcesHandle{mf: mf, file: f, rsrc: r}, nil
}

// resourcesHandle bundles the memory-mapped input and its decoded
// resource tree so callers can defer a single Close.
type resourcesHandle struct {
	mf   interface{ Close() error }
	file *pe.File
	rsrc *pe.Resources
}

func (h *resourcesHandle) Close() { h.mf.Close() }

func newRsrcTreeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree <image>",
		Short: "Print the resource directory tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			h, err := openRsrc(opts, args[0])
			if err != nil {
				return err
			}
			defer h.Close()

			return h.rsrc.Root.Walk(func(e *rsrc.Entry) error {
				depth := strings.Count(e.Path(), "/")
				if e.Path() != "" {
					depth++
				}

				indent := strings.Repeat("  ", depth)

				if e.IsDir() {
					fmt.Printf("%s%s/\n", indent, identityLabel(e))
				} else {
					fmt.Printf("%s%s (%d bytes, codepage %d)\n", indent, identityLabel(e), len(e.Data), e.DataCodepage)
				}

				return nil
			})
		},
	}
}

func identityLabel(e *rsrc.Entry) string {
	if e.Parent == nil {
		return "."
	}

	if e.HasName() {
		return e.Name
	}

	return fmt.Sprintf("%d", e.ID)
}

func newRsrcExtractCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <image> <resource-path> <output-file>",
		Short: "Extract a single resource's payload to a file",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			h, err := openRsrc(opts, args[0])
			if err != nil {
				return err
			}
			defer h.Close()

			entry, err := h.rsrc.GetEntryFromPath(args[1])
			if err != nil {
				return fmt.Errorf("resolving resource path %q: %w", args[1], err)
			}

			if entry.IsDir() {
				return fmt.Errorf("rsrc extract: %q is a directory, not a resource", args[1])
			}

			if err := os.WriteFile(args[2], entry.Data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", args[2], err)
			}

			return nil
		},
	}
}

func newRsrcExtractAllCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "extract-all <image> <output-dir>",
		Short: "Extract every resource payload to a directory, named by path",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			h, err := openRsrc(opts, args[0])
			if err != nil {
				return err
			}
			defer h.Close()

			outDir := args[1]
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("creating output directory %s: %w", outDir, err)
			}

			var leaves []*rsrc.Entry

			if err := h.rsrc.Root.Walk(func(e *rsrc.Entry) error {
				if !e.IsDir() {
					leaves = append(leaves, e)
				}

				return nil
			}); err != nil {
				return err
			}

			eg := &errgroup.Group{}
			eg.SetLimit(opts.config.Parallelism)

			for _, entry := range leaves {
				entry := entry

				eg.Go(func() error {
					name, err := extractFilename(opts.config, entry)
					if err != nil {
						return err
					}

					dest := filepath.Join(outDir, name)

					if err := os.WriteFile(dest, entry.Data, 0o644); err != nil {
						return fmt.Errorf("writing %s: %w", dest, err)
					}

					return nil
				})
			}

			if err := eg.Wait(); err != nil {
				return fmt.Errorf("extract-all: %w", err)
			}

			opts.logger.Info("extracted resources", "count", len(leaves), "dir", outDir)

			return nil
		},
	}
}

// extractFilename derives a filesystem-safe name for a resource leaf
// from its tree path, with the extension taken from cfg's per-type
// options (default ".bin") keyed by the entry's top-level type segment.
// An entry whose Path is empty (only an entry with no parent) gets a
// random name instead. Distinct paths can still map to the same file
// name, since both "/" and "_" in a path come out as "_".
func extractFilename(cfg *config, e *rsrc.Entry) (string, error) {
	path := e.Path()
	if path == "" {
		return uuid.NewString() + ".bin", nil
	}

	typeSeg := strings.SplitN(path, "/", 2)[0]

	opts, err := decodeExtractOptions(cfg, typeSeg)
	if err != nil {
		return "", err
	}

	return strings.ReplaceAll(path, "/", "_") + opts.Extension, nil
}
