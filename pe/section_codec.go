package pe

import (
	"bytes"

	"github.com/corvid-labs/peedit/internal/iobuf"
	"github.com/corvid-labs/peedit/section"
)

// unpackSectionRecord decodes one 40-byte section-header record (spec
// §6.2) via github.com/lunixbochs/struc.
func unpackSectionRecord(raw []byte) (*section.Record, error) {
	rec := &section.Record{}
	if err := iobuf.Unpack(bytes.NewReader(raw), rec); err != nil {
		return nil, err
	}

	return rec, nil
}

// packSectionRecord encodes s as a 40-byte section-header record at its
// current FileAddress.
func packSectionRecord(w *bytes.Buffer, s *section.Section) error {
	rec := &section.Record{
		Tag:                  append([]byte(nil), s.Tag[:]...),
		VirtualSize:          s.VirtualSize,
		VirtualAddress:       s.VirtualAddress,
		SizeOfRawData:        uint32(len(s.RawData)),
		PointerToRawData:     s.FileAddress,
		PointerToRelocations: 0,
		PointerToLineNumbers: 0,
		NumberOfRelocations:  0,
		NumberOfLineNumbers:  0,
		Characteristics:      uint32(s.Characteristics),
	}

	return iobuf.Pack(w, rec)
}
