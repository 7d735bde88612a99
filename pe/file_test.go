package pe

import (
	"bytes"
	"errors"
	"testing"

	"github.com/corvid-labs/peedit/internal/iobuf"
	"github.com/corvid-labs/peedit/section"
)

const testNtOffset = 0x80

// buildTestImage assembles a minimal but structurally valid PE32 image:
// a DefaultHeadersSize header plus the raw data of each section, already
// placed at its FileAddress. Callers are responsible for choosing
// non-overlapping FileAddress/RawData ranges.
func buildTestImage(t *testing.T, specs []*section.Section, resourceRVA uint32) []byte {
	t.Helper()

	size := uint32(DefaultHeadersSize)
	for _, s := range specs {
		if end := s.FileEnd(); end > size {
			size = end
		}
	}

	data := make([]byte, size)
	header := iobuf.Wrap(data[:DefaultHeadersSize])

	must(t, header.SetU32(ntHeadersOffsetPtr, testNtOffset))
	copy(data[testNtOffset:], peSignature[:])
	must(t, header.SetU32(testNtOffset+pointerToSymbolTableOffset, 0))
	must(t, header.SetU16(testNtOffset+numberOfSectionsOffset, uint16(len(specs))))
	must(t, header.SetU16(testNtOffset+sizeOfOptionalHeaderOffset, uint16(minOptionalHeaderSize)))

	optStart := testNtOffset + optionalHeaderOffset
	must(t, header.SetU16(optStart+optMagicOffset, pe32Magic))
	must(t, header.SetU32(optStart+optSectionAlignmentOffset, 0x1000))
	must(t, header.SetU32(optStart+optFileAlignmentOffset, 0x200))
	must(t, header.SetU32(optStart+optSizeOfHeadersOffset, uint32(DefaultHeadersSize)))
	must(t, header.SetU32(optStart+optResourceTableOffset, resourceRVA))

	tableOffset := optStart + minOptionalHeaderSize

	var buf bytes.Buffer
	for _, s := range specs {
		if err := packSectionRecord(&buf, s); err != nil {
			t.Fatalf("packSectionRecord: %v", err)
		}
	}

	copy(data[tableOffset:], buf.Bytes())

	for _, s := range specs {
		copy(data[s.FileAddress:], s.RawData)
	}

	return data
}

func must(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseMinimal(t *testing.T) {
	text := section.New(".text", 0x1000, 4, []byte("CODE"), section.CntCode|section.MemExecute|section.MemRead)
	text.FileAddress = DefaultHeadersSize
	text.Linearize = true

	rodata := section.New(".data", 0x2000, 4, []byte("DATA"), section.CntInitializedData|section.MemRead|section.MemWrite)
	rodata.FileAddress = DefaultHeadersSize + 4

	input := buildTestImage(t, []*section.Section{text, rodata}, 0)

	f, err := Parse(input, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(f.Sections) != 2 {
		t.Fatalf("len(Sections) = %d, want 2", len(f.Sections))
	}

	if f.Sections[0].TrimmedTag() != ".text" {
		t.Fatalf("Sections[0].TrimmedTag() = %q, want .text", f.Sections[0].TrimmedTag())
	}

	if !f.Sections[0].Linearize {
		t.Fatal("expected .text to be detected as linearized")
	}

	if f.Sections[1].Linearize {
		t.Fatal("expected .data to not be linearized")
	}

	if !bytes.Equal(f.Sections[1].RawData, []byte("DATA")) {
		t.Fatalf(".data raw = %q, want DATA", f.Sections[1].RawData)
	}
}

func TestParseRejectsRelocations(t *testing.T) {
	rec := &section.Record{
		Tag:                  []byte(".reloc\x00\x00"),
		VirtualAddress:       0x1000,
		VirtualSize:          4,
		SizeOfRawData:        4,
		PointerToRawData:     DefaultHeadersSize,
		NumberOfRelocations:  1,
		NumberOfLineNumbers:  0,
		Characteristics:      uint32(section.CntCode),
	}

	var buf bytes.Buffer
	if err := iobuf.Pack(&buf, rec); err != nil {
		t.Fatalf("pack: %v", err)
	}

	size := uint32(DefaultHeadersSize) + 4
	data := make([]byte, size)
	header := iobuf.Wrap(data[:DefaultHeadersSize])

	must(t, header.SetU32(ntHeadersOffsetPtr, testNtOffset))
	copy(data[testNtOffset:], peSignature[:])
	must(t, header.SetU16(testNtOffset+numberOfSectionsOffset, 1))
	must(t, header.SetU16(testNtOffset+sizeOfOptionalHeaderOffset, uint16(minOptionalHeaderSize)))

	optStart := testNtOffset + optionalHeaderOffset
	must(t, header.SetU16(optStart+optMagicOffset, pe32Magic))
	must(t, header.SetU32(optStart+optSizeOfHeadersOffset, uint32(DefaultHeadersSize)))

	copy(data[optStart+minOptionalHeaderSize:], buf.Bytes())

	if _, err := Parse(data, 0); !errors.Is(err, ErrRelocationsPresent) {
		t.Fatalf("Parse error = %v, want ErrRelocationsPresent", err)
	}
}

func TestParseRejectsShortInput(t *testing.T) {
	if _, err := Parse([]byte{1, 2, 3}, 0); !errors.Is(err, ErrNotAPE) {
		t.Fatalf("Parse error = %v, want ErrNotAPE", err)
	}
}

func TestSectionByTagAndContaining(t *testing.T) {
	text := section.New(".text", 0x1000, 0x10, []byte("0123456789ABCDEF"), section.CntCode)
	text.FileAddress = DefaultHeadersSize

	input := buildTestImage(t, []*section.Section{text}, 0)

	f, err := Parse(input, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	s, ok := f.SectionByTag(".text")
	if !ok || s.VirtualAddress != 0x1000 {
		t.Fatalf("SectionByTag(.text) = %+v, %v", s, ok)
	}

	if _, ok := f.SectionByTag(".bogus"); ok {
		t.Fatal("expected SectionByTag(.bogus) to fail")
	}

	contained, ok := f.SectionContaining(0x1008)
	if !ok || contained != s {
		t.Fatal("expected SectionContaining(0x1008) to find .text")
	}

	if _, ok := f.SectionContaining(0x3000); ok {
		t.Fatal("expected SectionContaining(0x3000) to fail")
	}
}
