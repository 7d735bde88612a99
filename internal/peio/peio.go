// Package peio opens a PE image memory-mapped so the CLI can hand
// pe.Parse a []byte view without reading the whole file into a
// separately allocated buffer, and writes a rewritten image back to
// disk.
package peio

import (
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// MappedFile is a memory-mapped view of an on-disk PE image.
type MappedFile struct {
	f    *os.File
	data mmap.MMap
}

// Open memory-maps path read-only.
func Open(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("peio: opening %s: %w", path, err)
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("peio: mapping %s: %w", path, err)
	}

	return &MappedFile{f: f, data: data}, nil
}

// Bytes returns the mapped file contents. The slice is only valid until
// Close.
func (m *MappedFile) Bytes() []byte {
	return m.data
}

// Close unmaps the file and closes the underlying descriptor.
func (m *MappedFile) Close() error {
	if err := m.data.Unmap(); err != nil {
		return fmt.Errorf("peio: unmapping: %w", err)
	}

	return m.f.Close()
}

// WriteFile writes data to path, truncating or creating it as needed.
// Rewritten images aren't mapped back over the input: they can change
// size, and the input mapping may still be open for reads elsewhere.
func WriteFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("peio: writing %s: %w", path, err)
	}

	return nil
}
