package pe

import (
	"bytes"
	"testing"

	"github.com/corvid-labs/peedit/section"
)

func TestWriteRoundTrip(t *testing.T) {
	text := section.New(".text", 0x1000, 4, []byte("CODE"), section.CntCode|section.MemExecute|section.MemRead)
	text.FileAddress = DefaultHeadersSize
	text.Linearize = true

	input := buildTestImage(t, []*section.Section{text}, 0)

	f, err := Parse(input, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	out, err := f.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	f2, err := Parse(out, 0)
	if err != nil {
		t.Fatalf("re-Parse of Write output: %v", err)
	}

	if len(f2.Sections) != 1 {
		t.Fatalf("len(Sections) = %d, want 1", len(f2.Sections))
	}

	if f2.Sections[0].TrimmedTag() != ".text" {
		t.Fatalf("tag = %q, want .text", f2.Sections[0].TrimmedTag())
	}

	if !bytes.Equal(f2.Sections[0].RawData, []byte("CODE")) {
		t.Fatalf("raw data = %q, want CODE", f2.Sections[0].RawData)
	}

	if f2.Sections[0].VirtualAddress != 0x1000 {
		t.Fatalf("VA = 0x%x, want 0x1000", f2.Sections[0].VirtualAddress)
	}
}

func TestMallocAvoidsCollision(t *testing.T) {
	text := section.New(".text", 0x1000, 0x1000, make([]byte, 4), section.CntCode)
	text.FileAddress = DefaultHeadersSize

	input := buildTestImage(t, []*section.Section{text}, 0)

	f, err := Parse(input, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	newSec := section.New(".newsec", 0, 0x100, []byte("hello"), section.CntInitializedData|section.MemRead)
	if err := f.Malloc(newSec, true); err != nil {
		t.Fatalf("Malloc: %v", err)
	}

	if newSec.VirtualAddress < text.VirtualEnd() {
		t.Fatalf("new section VA 0x%x collides with .text ending at 0x%x", newSec.VirtualAddress, text.VirtualEnd())
	}

	if err := f.checkVirtualIntegrity(); err != nil {
		t.Fatalf("checkVirtualIntegrity after Malloc: %v", err)
	}

	if _, err := f.Write(); err != nil {
		t.Fatalf("Write after Malloc: %v", err)
	}
}

func TestMallocRelocatesResourceLast(t *testing.T) {
	text := section.New(".text", 0x1000, 0x1000, make([]byte, 4), section.CntCode)
	text.FileAddress = DefaultHeadersSize

	rsrcSec := section.New(".rsrc", 0x2000, 0x100, make([]byte, 16), section.CntInitializedData|section.MemRead)
	rsrcSec.FileAddress = DefaultHeadersSize + 4

	input := buildTestImage(t, []*section.Section{text, rsrcSec}, 0x2000)

	f, err := Parse(input, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	newSec := section.New(".newsec", 0, 0x100, []byte("hi"), section.CntInitializedData|section.MemRead)
	if err := f.Malloc(newSec, true); err != nil {
		t.Fatalf("Malloc: %v", err)
	}

	last := f.Sections[len(f.Sections)-1]
	if last.TrimmedTag() != ".rsrc" {
		t.Fatalf("last section after Malloc = %q, want .rsrc", last.TrimmedTag())
	}

	rva, err := f.ResourceTableRVA()
	if err != nil {
		t.Fatalf("ResourceTableRVA: %v", err)
	}

	if rva != last.VirtualAddress {
		t.Fatalf("ResourceTable RVA = 0x%x, want 0x%x", rva, last.VirtualAddress)
	}
}

func TestFillVirtualLayoutGaps(t *testing.T) {
	first := section.New(".text", 0x1000, 0x1000, make([]byte, 4), section.CntCode)
	first.FileAddress = DefaultHeadersSize

	second := section.New(".data", 0x4000, 0x1000, make([]byte, 4), section.CntInitializedData)
	second.FileAddress = DefaultHeadersSize + 4

	input := buildTestImage(t, []*section.Section{first, second}, 0)

	f, err := Parse(input, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if err := f.FillVirtualLayoutGaps(); err != nil {
		t.Fatalf("FillVirtualLayoutGaps: %v", err)
	}

	if len(f.Sections) != 3 {
		t.Fatalf("len(Sections) = %d, want 3", len(f.Sections))
	}

	filler := f.Sections[1]
	if filler.VirtualAddress != 0x2000 || filler.VirtualSize != 0x2000 {
		t.Fatalf("filler = VA 0x%x VS 0x%x, want VA 0x2000 VS 0x2000", filler.VirtualAddress, filler.VirtualSize)
	}

	if !isFillerSection(filler) {
		t.Fatalf("synthesized section %q not recognized as a filler", filler.TrimmedTag())
	}

	if err := f.FillVirtualLayoutGaps(); err != nil {
		t.Fatalf("second FillVirtualLayoutGaps call: %v", err)
	}

	if len(f.Sections) != 3 {
		t.Fatalf("FillVirtualLayoutGaps is not idempotent: len(Sections) = %d, want 3", len(f.Sections))
	}
}
