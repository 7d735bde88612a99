package pe

import (
	"fmt"

	"github.com/corvid-labs/peedit/rsrc"
	"github.com/corvid-labs/peedit/section"
)

// Resources is a non-owning handle on a File's `.rsrc` section: Root is
// the decoded tree, and Sync writes back any edits made to it, letting
// the container re-place the section and patch its pointers as needed.
type Resources struct {
	file *File
	Root *rsrc.Entry
}

// Rsrc decodes the container's `.rsrc` section, if any (spec §3.2's
// rsrc_handler).
func (f *File) Rsrc() (*Resources, error) {
	idx := f.ResourceIndex()
	if idx < 0 {
		return nil, ErrResourceMissing
	}

	s := f.Sections[idx]

	root, err := rsrc.Decode(s.RawData, s.VirtualAddress)
	if err != nil {
		return nil, fmt.Errorf("pe: decoding .rsrc: %w", err)
	}

	return &Resources{file: f, Root: root}, nil
}

// GetEntryFromPath resolves a "/"-separated resource path starting at
// the tree root (spec §6.1 Rsrc.get_entry_from_path).
func (r *Resources) GetEntryFromPath(path string) (*rsrc.Entry, error) {
	return r.Root.GetEntryFromPath(path)
}

// Sync re-encodes r.Root and replaces the container's `.rsrc` section
// with it, re-placing the section in virtual address space and patching
// its internal pointers for the resulting delta (spec §4.2.5 step 4).
func (r *Resources) Sync(order rsrc.EmitOrder) error {
	encoded, err := rsrc.Encode(r.Root, order)
	if err != nil {
		return fmt.Errorf("pe: encoding .rsrc: %w", err)
	}

	idx := r.file.ResourceIndex()
	if idx < 0 {
		return ErrResourceMissing
	}

	old := r.file.Sections[idx]

	newSection := &section.Section{
		Tag:             old.Tag,
		VirtualSize:     uint32(len(encoded)),
		VirtualAddress:  0, // Encode's output is based at VA 0; relocateResourceSection performs the one absolute shift.
		RawData:         encoded,
		Characteristics: old.Characteristics,
		Linearize:       old.Linearize,
	}

	others := removeSectionAt(r.file.Sections, idx)

	sectionAlignment, err := r.file.sectionAlignment()
	if err != nil {
		return err
	}

	if err := r.file.relocateResourceSection(newSection, others, sectionAlignment); err != nil {
		return err
	}

	r.file.Sections = append(others, newSection)

	return nil
}
