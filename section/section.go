// Package section implements the PE section model (spec §3.1): the
// section header record, its characteristics bitfield, and the
// in-memory Section type the pe package assembles into a container.
package section

import (
	"golang.org/x/text/encoding/charmap"
)

// TagSize is the fixed width of a section's raw 8-byte identifier.
const TagSize = 8

// HeaderSize is the on-disk size of one section-header record
// (spec §6.2): 8-byte tag, four uint32s, two uint32 relocation/linenumber
// pointers, two uint16 counts, one uint32 characteristics field.
const HeaderSize = 40

// Record is the wire layout of a section-table entry, packed/unpacked
// with github.com/lunixbochs/struc.
type Record struct {
	Tag                  []byte `struc:"[8]byte"`
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      uint32
}

// Section is one entry of a PE image's section table (spec §3.1).
type Section struct {
	// Tag is the raw 8-byte section identifier, NULs and all.
	Tag [TagSize]byte

	// VirtualAddress is the section's RVA.
	VirtualAddress uint32

	// VirtualSize is the section's size in the loaded image.
	VirtualSize uint32

	// RawData is the section's on-file bytes; its length is the
	// section's on-file size.
	RawData []byte

	// FileAddress is the file offset the section was placed at by the
	// last emit pass. Callers must not set this directly; it is
	// recomputed by (*pe.File).Write.
	FileAddress uint32

	// Characteristics is the PE section-flag bitfield, stored and
	// emitted verbatim.
	Characteristics Characteristics

	// Linearize, when true, requests that the allocator try to place
	// RawData at a file offset equal to VirtualAddress (spec §4.2.2
	// phase 1). Set automatically on parse when the source file already
	// had FileAddress == VirtualAddress.
	Linearize bool
}

// New creates a Section from raw values, copying tag and data so the
// caller's slices may be reused or mutated afterwards.
func New(tag string, va, vs uint32, data []byte, characteristics Characteristics) *Section {
	s := &Section{
		VirtualAddress:  va,
		VirtualSize:     vs,
		RawData:         append([]byte(nil), data...),
		Characteristics: characteristics,
	}
	copy(s.Tag[:], tag)

	return s
}

// TagString returns the section's tag interpreted as a Windows
// code-page-1252 string (spec §3.1), trailing NULs preserved.
func (s *Section) TagString() string {
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(s.Tag[:])
	if err != nil {
		// charmap's Windows1252 decoder cannot fail on arbitrary single
		// bytes: it's a full 256-entry code page, so every byte value
		// decodes to something. Surfacing a panic here would indicate a
		// bug in this assumption, not malformed input.
		panic(err)
	}

	return string(decoded)
}

// TrimmedTag returns TagString with trailing NUL bytes removed.
func (s *Section) TrimmedTag() string {
	str := s.TagString()
	end := len(str)
	for end > 0 && str[end-1] == 0 {
		end--
	}

	return str[:end]
}

// VirtualEnd returns the end of the section's virtual range [VA, VA+VS).
func (s *Section) VirtualEnd() uint32 {
	return s.VirtualAddress + s.VirtualSize
}

// FileEnd returns the end of the section's on-file span.
func (s *Section) FileEnd() uint32 {
	return s.FileAddress + uint32(len(s.RawData))
}
