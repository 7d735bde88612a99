package pe

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/corvid-labs/peedit/internal/align"
	"github.com/corvid-labs/peedit/internal/iometa"
	"github.com/corvid-labs/peedit/internal/span"
	"github.com/corvid-labs/peedit/rsrc"
	"github.com/corvid-labs/peedit/section"
)

// alignUp rounds x up to the nearest multiple of alignment, via
// align.Address. An alignment of zero is treated as "no alignment" and
// returns x unchanged, matching how a zero SectionAlignment/FileAlignment
// would otherwise divide by zero on a malformed optional header.
func alignUp(x, alignment uint32) uint32 {
	return align.Address(x, alignment)
}

// imageSize returns the maximum VirtualEnd() over sections, or 0 for an
// empty list.
func imageSize(sections []*section.Section) uint32 {
	var max uint32
	for _, s := range sections {
		if end := s.VirtualEnd(); end > max {
			max = end
		}
	}

	return max
}

func removeSectionAt(sections []*section.Section, idx int) []*section.Section {
	out := make([]*section.Section, 0, len(sections)-1)
	out = append(out, sections[:idx]...)
	out = append(out, sections[idx+1:]...)

	return out
}

// place implements spec §4.2.5's placement helper: the lowest
// alignment-stepped RVA at or after start whose alignment-padded span
// doesn't collide with any existing section's alignment-padded span.
func place(existing []*section.Section, s *section.Section, start, alignment uint32) uint32 {
	step := alignment
	if step == 0 {
		step = 1
	}

	i := alignUp(start, alignment)
	length := alignUp(s.VirtualSize, alignment)

	for collidesWithAny(existing, span.Span{Start: i, Length: length}, alignment) {
		i += step
	}

	return i
}

func collidesWithAny(sections []*section.Section, candidate span.Span, alignment uint32) bool {
	for _, s := range sections {
		existing := span.Span{Start: s.VirtualAddress, Length: alignUp(s.VirtualSize, alignment)}
		if candidate.Overlaps(existing) {
			return true
		}
	}

	return false
}

// allocateFileOffsets implements spec §4.2.2: phase 1 places every
// linearized section at a file offset equal to its RVA where that
// doesn't collide with the headers or another section; everything else
// (including phase-1 fallbacks) is packed by phase 2 starting from file
// offset 0, advancing by FileAlignment.
func (f *File) allocateFileOffsets() (*span.Map, uint32, error) {
	fileAlignment, err := f.fileAlignment()
	if err != nil {
		return nil, 0, err
	}

	m := span.NewMap(span.Span{Start: 0, Length: uint32(f.EarlyHeader.Len())})

	var phase2 []*section.Section

	for _, s := range f.Sections {
		if !s.Linearize {
			phase2 = append(phase2, s)
			continue
		}

		candidate := span.Span{Start: s.VirtualAddress, Length: uint32(len(s.RawData))}
		if m.Collides(candidate) {
			phase2 = append(phase2, s)
			continue
		}

		s.FileAddress = s.VirtualAddress
		m.Reserve(candidate)
	}

	step := fileAlignment
	if step == 0 {
		step = 1
	}

	for _, s := range phase2 {
		position := uint32(0)
		candidate := span.Span{Start: position, Length: uint32(len(s.RawData))}

		for m.Collides(candidate) {
			position += step
			candidate = span.Span{Start: position, Length: uint32(len(s.RawData))}
		}

		s.FileAddress = position
		m.Reserve(candidate)
	}

	return m, fileAlignment, nil
}

// rewriteHeaders implements spec §4.2.3: the section count, every
// section-header record, and SizeOfImage are (re)written into
// EarlyHeader.
func (f *File) rewriteHeaders() error {
	if err := f.EarlyHeader.SetU16(f.ntHeadersOffset+numberOfSectionsOffset, uint16(len(f.Sections))); err != nil {
		return fmt.Errorf("pe: writing NumberOfSections: %w", err)
	}

	sizeOfOptHeader, err := f.EarlyHeader.U16(f.ntHeadersOffset + sizeOfOptionalHeaderOffset)
	if err != nil {
		return err
	}

	tableOffset := f.optionalHeaderStart() + int(sizeOfOptHeader)

	var buf bytes.Buffer
	for _, s := range f.Sections {
		if err := packSectionRecord(&buf, s); err != nil {
			return fmt.Errorf("pe: encoding section %q header: %w", s.TrimmedTag(), err)
		}
	}

	dest, err := f.EarlyHeader.Slice(tableOffset, buf.Len())
	if err != nil {
		return fmt.Errorf("pe: section table does not fit in early header: %w", err)
	}

	copy(dest, buf.Bytes())

	sectionAlignment, err := f.sectionAlignment()
	if err != nil {
		return err
	}

	size := alignUp(imageSize(f.Sections), sectionAlignment)

	return f.SetOptionalHeaderU32(optSizeOfImageOffset, size)
}

// Write re-validates and re-emits the image (spec §4.2): Sections is
// sorted by VirtualAddress in place, then virtual integrity, file
// allocation, header rewrite, and output assembly. Gaps between the
// header, and between sections packed by allocateFileOffsets, are
// zero-filled.
func (f *File) Write() ([]byte, error) {
	f.Sort()

	if err := f.checkVirtualIntegrity(); err != nil {
		return nil, err
	}

	m, fileAlignment, err := f.allocateFileOffsets()
	if err != nil {
		return nil, err
	}

	if err := f.rewriteHeaders(); err != nil {
		return nil, err
	}

	fileSize := alignUp(m.End(), fileAlignment)

	byFileAddress := make([]*section.Section, len(f.Sections))
	copy(byFileAddress, f.Sections)
	sort.Slice(byFileAddress, func(i, j int) bool {
		return byFileAddress[i].FileAddress < byFileAddress[j].FileAddress
	})

	var out bytes.Buffer

	cw := &iometa.CountingWriter{Writer: &out}
	if _, err := cw.Write(f.EarlyHeader.Bytes()); err != nil {
		return nil, fmt.Errorf("pe: writing header: %w", err)
	}

	for _, s := range byFileAddress {
		if gap := int(s.FileAddress) - cw.BytesWritten(); gap > 0 {
			if err := iometa.WriteZeros(cw, gap); err != nil {
				return nil, fmt.Errorf("pe: padding before section %q: %w", s.TrimmedTag(), err)
			}
		}

		if _, err := cw.Write(s.RawData); err != nil {
			return nil, fmt.Errorf("pe: writing section %q: %w", s.TrimmedTag(), err)
		}

		slog.Debug("wrote PE image section",
			"section", s.TrimmedTag(),
			"file_address", fmt.Sprintf("0x%x", s.FileAddress),
			"size", len(s.RawData),
		)
	}

	if tail := int(fileSize) - cw.BytesWritten(); tail > 0 {
		if err := iometa.WriteZeros(cw, tail); err != nil {
			return nil, fmt.Errorf("pe: padding trailing file alignment: %w", err)
		}
	}

	f.FileSize = fileSize

	return out.Bytes(), nil
}

// relocateResourceSection re-places rsrcSection after others (spec
// §4.2.5 step 4), patching its internal pointers by the resulting delta
// and updating the optional header's ResourceTable RVA.
func (f *File) relocateResourceSection(rsrcSection *section.Section, others []*section.Section, sectionAlignment uint32) error {
	oldVA := rsrcSection.VirtualAddress
	newVA := place(others, rsrcSection, imageSize(others), sectionAlignment)
	rsrcSection.VirtualAddress = newVA

	delta := int64(newVA) - int64(oldVA)
	if delta != 0 {
		if err := rsrc.Shift(rsrcSection.RawData, delta); err != nil {
			return fmt.Errorf("pe: shifting .rsrc section by 0x%x: %w", delta, err)
		}

		slog.Debug("relocated .rsrc section",
			"old_va", fmt.Sprintf("0x%x", oldVA),
			"new_va", fmt.Sprintf("0x%x", newVA),
		)
	}

	return f.SetResourceTableRVA(newVA)
}

// Malloc inserts s into the section list (spec §4.2.5): if a `.rsrc`
// section exists, it is temporarily removed so it is always placed
// last, with its internal pointers patched by whatever RVA delta that
// produces. When resort is true, Sections is re-sorted by VirtualAddress
// afterwards.
func (f *File) Malloc(s *section.Section, resort bool) error {
	sectionAlignment, err := f.sectionAlignment()
	if err != nil {
		return err
	}

	others := f.Sections

	var rsrcSection *section.Section
	if idx := f.ResourceIndex(); idx >= 0 {
		rsrcSection = others[idx]
		others = removeSectionAt(others, idx)
	}

	s.VirtualAddress = place(others, s, uint32(f.EarlyHeader.Len()), sectionAlignment)
	others = append(others, s)

	slog.Debug("allocated section",
		"section", s.TrimmedTag(),
		"va", fmt.Sprintf("0x%x", s.VirtualAddress),
		"vs", fmt.Sprintf("0x%x", s.VirtualSize),
	)

	if rsrcSection != nil {
		if err := f.relocateResourceSection(rsrcSection, others, sectionAlignment); err != nil {
			return err
		}

		others = append(others, rsrcSection)
	}

	f.Sections = others

	if resort {
		f.Sort()
	}

	return nil
}

// fillerTagPattern matches a filler section's tag (spec §4.2.6): ".flr"
// followed by four uppercase hex digits.
var fillerTagPattern = regexp.MustCompile(`^\.flr[0-9A-F]{4}$`)

func isFillerSection(s *section.Section) bool {
	return fillerTagPattern.MatchString(s.TrimmedTag()) && s.Characteristics&section.CntUninitializedData != 0
}

// FillVirtualLayoutGaps implements spec §4.2.6: existing filler sections
// are dropped, then every gap between adjacent (SectionAlignment-rounded)
// sections is plugged with a freshly synthesized `.flrNNNN` section,
// inserted via Malloc.
func (f *File) FillVirtualLayoutGaps() error {
	sectionAlignment, err := f.sectionAlignment()
	if err != nil {
		return err
	}

	kept := make([]*section.Section, 0, len(f.Sections))
	for _, s := range f.Sections {
		if isFillerSection(s) {
			slog.Debug("dropping existing filler section", "section", s.TrimmedTag())
		} else {
			kept = append(kept, s)
		}
	}

	f.Sections = kept
	f.Sort()

	var fillers []*section.Section

	var last uint32
	suffix := 0

	for i, s := range f.Sections {
		if i > 0 && s.VirtualAddress != last {
			size := s.VirtualAddress - last

			slog.Warn("virtual layout gap found, synthesizing filler section",
				"after", fmt.Sprintf("0x%x", last),
				"gap_size", fmt.Sprintf("0x%x", size),
			)

			fillers = append(fillers, section.New(
				fmt.Sprintf(".flr%04X", suffix),
				last, size, nil,
				section.CntUninitializedData|section.MemRead|section.MemWrite,
			))
			suffix++
		}

		last = alignUp(s.VirtualEnd(), sectionAlignment)
	}

	for _, filler := range fillers {
		if err := f.Malloc(filler, false); err != nil {
			return fmt.Errorf("pe: inserting filler section: %w", err)
		}
	}

	f.Sort()

	return nil
}
