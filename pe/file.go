// Package pe implements the PE container model (spec §3.2, §4.1, §4.2):
// parsing the fixed-size early header and section table, maintaining the
// invariants tying virtual addresses, virtual sizes, file offsets, and
// the optional header's derived fields together, and re-emitting a
// byte-for-byte valid image.
package pe

import (
	"fmt"
	"sort"

	"github.com/corvid-labs/peedit/internal/iobuf"
	"github.com/corvid-labs/peedit/section"
)

// File is a parsed PE image: the early-header buffer plus an ordered
// list of sections (spec §3.2). The zero value is not usable; construct
// one with Parse.
type File struct {
	// EarlyHeader is the DOS stub, PE signature, file header, optional
	// header, and section table, exactly ExpectedHeadersSize bytes.
	EarlyHeader *iobuf.Buffer

	// Sections is the ordered section list. Parse keeps section-table
	// order; Write, FillVirtualLayoutGaps, and Malloc with resort set
	// leave it sorted ascending by VirtualAddress, while Malloc without
	// resort and Resources.Sync append to the end. Callers that append
	// directly are responsible for calling Sort before relying on the
	// order.
	Sections []*section.Section

	// ExpectedHeadersSize is the size EarlyHeader must be, and the value
	// SizeOfHeaders must match.
	ExpectedHeadersSize int

	// FileSize is set by the last successful Write call; it is not part
	// of persisted state and is zero before the first Write.
	FileSize uint32

	ntHeadersOffset int
}

// Parse parses a PE image from data (spec §4.1). expectedHeadersSize
// defaults to DefaultHeadersSize when zero.
func Parse(data []byte, expectedHeadersSize int) (*File, error) {
	if expectedHeadersSize == 0 {
		expectedHeadersSize = DefaultHeadersSize
	}

	if len(data) < expectedHeadersSize {
		return nil, fmt.Errorf("%w: input is %d bytes, need at least %d", ErrNotAPE, len(data), expectedHeadersSize)
	}

	headerBytes := append([]byte(nil), data[:expectedHeadersSize]...)
	early := iobuf.Wrap(headerBytes)

	ntOffset, err := early.U32(ntHeadersOffsetPtr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAPE, err)
	}

	sig, err := early.Slice(int(ntOffset), 4)
	if err != nil || !sigMatches(sig) {
		return nil, fmt.Errorf("%w: missing \"PE\\0\\0\" signature at 0x%x", ErrNotAPE, ntOffset)
	}

	f := &File{
		EarlyHeader:         early,
		ExpectedHeadersSize: expectedHeadersSize,
		ntHeadersOffset:     int(ntOffset),
	}

	symtabPtr, err := early.U32(f.ntHeadersOffset + pointerToSymbolTableOffset)
	if err != nil {
		return nil, err
	}

	if symtabPtr != 0 {
		return nil, ErrSymbolTablePresent
	}

	sizeOfOptHeader, err := early.U16(f.ntHeadersOffset + sizeOfOptionalHeaderOffset)
	if err != nil {
		return nil, err
	}

	if int(sizeOfOptHeader) < minOptionalHeaderSize {
		return nil, fmt.Errorf("%w: got 0x%x", ErrOptionalHeaderTooSmall, sizeOfOptHeader)
	}

	optStart := f.optionalHeaderStart()

	magic, err := early.U16(optStart + optMagicOffset)
	if err != nil {
		return nil, err
	}

	if magic != pe32Magic {
		return nil, fmt.Errorf("%w: got 0x%04x", ErrUnsupportedOptionalMagic, magic)
	}

	sizeOfHeaders, err := early.U32(optStart + optSizeOfHeadersOffset)
	if err != nil {
		return nil, err
	}

	if int(sizeOfHeaders) != expectedHeadersSize {
		return nil, fmt.Errorf("%w: SizeOfHeaders=0x%x, expected 0x%x", ErrHeadersSizeMismatch, sizeOfHeaders, expectedHeadersSize)
	}

	numSections, err := early.U16(f.ntHeadersOffset + numberOfSectionsOffset)
	if err != nil {
		return nil, err
	}

	sections, err := parseSections(data, early, optStart+int(sizeOfOptHeader), int(numSections))
	if err != nil {
		return nil, err
	}

	f.Sections = sections

	if err := f.checkVirtualIntegrity(); err != nil {
		return nil, err
	}

	return f, nil
}

func sigMatches(sig []byte) bool {
	return len(sig) == 4 && sig[0] == peSignature[0] && sig[1] == peSignature[1] && sig[2] == peSignature[2] && sig[3] == peSignature[3]
}

func parseSections(data []byte, early *iobuf.Buffer, tableOffset, count int) ([]*section.Section, error) {
	sections := make([]*section.Section, 0, count)
	cursor := iobuf.NewCursor(early.Bytes())
	cursor.Seek(tableOffset)

	for i := 0; i < count; i++ {
		recordBytes, err := cursor.ReadBytes(section.HeaderSize)
		if err != nil {
			return nil, fmt.Errorf("pe: reading section header %d: %w", i, err)
		}

		rec, err := unpackSectionRecord(recordBytes)
		if err != nil {
			return nil, fmt.Errorf("pe: decoding section header %d: %w", i, err)
		}

		if rec.NumberOfRelocations != 0 {
			return nil, fmt.Errorf("%w: section %q", ErrRelocationsPresent, tagString(rec.Tag))
		}

		if rec.NumberOfLineNumbers != 0 {
			return nil, fmt.Errorf("%w: section %q", ErrLineNumbersPresent, tagString(rec.Tag))
		}

		start := int(rec.PointerToRawData)
		end := start + int(rec.SizeOfRawData)

		if start < 0 || end > len(data) || end < start {
			return nil, fmt.Errorf("%w: section %q wants [0x%x, 0x%x), input is %d bytes", ErrTruncatedSectionData, tagString(rec.Tag), start, end, len(data))
		}

		raw := append([]byte(nil), data[start:end]...)

		s := &section.Section{
			VirtualAddress:  rec.VirtualAddress,
			VirtualSize:     rec.VirtualSize,
			RawData:         raw,
			FileAddress:     rec.PointerToRawData,
			Characteristics: section.Characteristics(rec.Characteristics),
			Linearize:       rec.PointerToRawData == rec.VirtualAddress,
		}
		copy(s.Tag[:], rec.Tag)

		sections = append(sections, s)
	}

	return sections, nil
}

func tagString(tag []byte) string {
	return string(tag)
}

// optionalHeaderStart returns the absolute offset of the optional
// header within EarlyHeader.
func (f *File) optionalHeaderStart() int {
	return f.ntHeadersOffset + optionalHeaderOffset
}

// GetOptionalHeaderU32 reads a uint32 at offset bytes into the optional
// header (spec §6.1).
func (f *File) GetOptionalHeaderU32(offset int) (uint32, error) {
	return f.EarlyHeader.U32(f.optionalHeaderStart() + offset)
}

// SetOptionalHeaderU32 writes a uint32 at offset bytes into the optional
// header.
func (f *File) SetOptionalHeaderU32(offset int, v uint32) error {
	return f.EarlyHeader.SetU32(f.optionalHeaderStart()+offset, v)
}

func (f *File) sectionAlignment() (uint32, error) {
	return f.GetOptionalHeaderU32(optSectionAlignmentOffset)
}

func (f *File) fileAlignment() (uint32, error) {
	return f.GetOptionalHeaderU32(optFileAlignmentOffset)
}

// SectionAlignment returns the optional header's SectionAlignment field.
func (f *File) SectionAlignment() (uint32, error) {
	return f.sectionAlignment()
}

// FileAlignment returns the optional header's FileAlignment field.
func (f *File) FileAlignment() (uint32, error) {
	return f.fileAlignment()
}

// ResourceTableRVA returns the optional header's ResourceTable RVA
// (offset 0x70).
func (f *File) ResourceTableRVA() (uint32, error) {
	return f.GetOptionalHeaderU32(optResourceTableOffset)
}

// SetResourceTableRVA updates the optional header's ResourceTable RVA.
func (f *File) SetResourceTableRVA(rva uint32) error {
	return f.SetOptionalHeaderU32(optResourceTableOffset, rva)
}

// ResourceIndex returns the 0-based index of the `.rsrc` section (the
// section whose RVA equals the optional header's ResourceTable RVA), or
// -1 if there is none (spec §6.1).
func (f *File) ResourceIndex() int {
	rva, err := f.ResourceTableRVA()
	if err != nil || rva == 0 {
		return -1
	}

	for i, s := range f.Sections {
		if s.VirtualAddress == rva {
			return i
		}
	}

	return -1
}

// SectionIndexByTag returns the index of the first section whose
// trimmed tag equals tag, or -1 if none matches.
func (f *File) SectionIndexByTag(tag string) int {
	for i, s := range f.Sections {
		if s.TrimmedTag() == tag {
			return i
		}
	}

	return -1
}

// SectionByTag returns the first section whose trimmed tag equals tag.
func (f *File) SectionByTag(tag string) (*section.Section, bool) {
	if i := f.SectionIndexByTag(tag); i >= 0 {
		return f.Sections[i], true
	}

	return nil, false
}

// SectionContaining returns the section whose virtual address range
// contains rva, if any.
func (f *File) SectionContaining(rva uint32) (*section.Section, bool) {
	for _, s := range f.Sections {
		if rva >= s.VirtualAddress && rva < s.VirtualEnd() {
			return s, true
		}
	}

	return nil, false
}

// SetupRVACursor resolves an RVA to the section that contains it and
// the byte offset into that section's RawData (spec §6.1). It reports
// ok=false if no section contains rva.
func (f *File) SetupRVACursor(rva uint32) (s *section.Section, offset int, ok bool) {
	sect, found := f.SectionContaining(rva)
	if !found {
		return nil, 0, false
	}

	return sect, int(rva - sect.VirtualAddress), true
}

// Sort orders Sections ascending by VirtualAddress in place.
func (f *File) Sort() {
	sort.SliceStable(f.Sections, func(i, j int) bool {
		return f.Sections[i].VirtualAddress < f.Sections[j].VirtualAddress
	})
}

// checkVirtualIntegrity implements spec §4.2.1's "order-and-overlap
// only" pass used both at parse time and before every emit: sections
// sorted by VA must not overlap.
func (f *File) checkVirtualIntegrity() error {
	sorted := append([]*section.Section(nil), f.Sections...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].VirtualAddress < sorted[j].VirtualAddress
	})

	var floor uint32
	for _, s := range sorted {
		if s.VirtualAddress < floor {
			return fmt.Errorf("%w: section %q at RVA 0x%x overlaps preceding section ending at 0x%x", ErrSectionRVAOverlap, s.TrimmedTag(), s.VirtualAddress, floor)
		}

		floor = s.VirtualEnd()
	}

	return nil
}
