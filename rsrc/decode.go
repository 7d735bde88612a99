package rsrc

import (
	"fmt"
	"log/slog"
	"unicode/utf16"

	"github.com/corvid-labs/peedit/internal/iobuf"
)

// Decode parses a `.rsrc` section's raw bytes into a tree (spec §4.3.2).
// sectionVA is the section's current virtual address; every data_rva
// field and string reference is an absolute image RVA, so decode first
// rebases a private copy of the bytes by -sectionVA (via Shift) to turn
// them into direct, section-relative buffer offsets before walking the
// tree. Subdirectory and data-entry offsets are section-relative as
// stored. The caller's
// sectionBytes slice is never mutated.
func Decode(sectionBytes []byte, sectionVA uint32) (*Entry, error) {
	working := append([]byte(nil), sectionBytes...)
	if err := Shift(working, -int64(sectionVA)); err != nil {
		return nil, fmt.Errorf("rsrc: rebasing section for decode: %w", err)
	}

	buf := iobuf.Wrap(working)

	root, err := decodeDirectory(buf, 0)
	if err != nil {
		return nil, err
	}

	slog.Debug("decoded .rsrc tree", "section_va", fmt.Sprintf("0x%x", sectionVA), "section_size", len(sectionBytes))

	return root, nil
}

func decodeDirectory(buf *iobuf.Buffer, offset int) (*Entry, error) {
	characteristics, err := buf.U32(offset)
	if err != nil {
		return nil, err
	}

	timestamp, err := buf.U32(offset + 4)
	if err != nil {
		return nil, err
	}

	major, err := buf.U16(offset + 8)
	if err != nil {
		return nil, err
	}

	minor, err := buf.U16(offset + 10)
	if err != nil {
		return nil, err
	}

	numNamed, err := buf.U16(offset + 12)
	if err != nil {
		return nil, err
	}

	numID, err := buf.U16(offset + 14)
	if err != nil {
		return nil, err
	}

	n := int(numNamed) + int(numID)
	if n > maxDirectoryEntries {
		return nil, ErrTooManyEntries
	}

	dir := &Entry{
		isDir:              true,
		DirCharacteristics: characteristics,
		DirTimestamp:       timestamp,
		DirVersionMajor:    major,
		DirVersionMinor:    minor,
	}

	pos := offset + 16

	for i := 0; i < n; i++ {
		nameWord, err := buf.U32(pos)
		if err != nil {
			return nil, err
		}

		dataWord, err := buf.U32(pos + 4)
		if err != nil {
			return nil, err
		}

		pos += 8

		var child *Entry

		if dataWord&highBit != 0 {
			child, err = decodeDirectory(buf, int(dataWord&lowMask))
			if err != nil {
				return nil, fmt.Errorf("rsrc: decoding subdirectory at 0x%x: %w", dataWord&lowMask, err)
			}
		} else {
			child, err = decodeDataEntry(buf, int(dataWord))
			if err != nil {
				return nil, fmt.Errorf("rsrc: decoding data entry at 0x%x: %w", dataWord, err)
			}
		}

		if nameWord&highBit != 0 {
			name, err := decodeString(buf, int(nameWord&lowMask))
			if err != nil {
				return nil, fmt.Errorf("rsrc: decoding name string at 0x%x: %w", nameWord&lowMask, err)
			}

			child.SetName(name)
		} else {
			child.SetID(nameWord)
		}

		child.Parent = dir
		dir.children = append(dir.children, child)
	}

	return dir, nil
}

func decodeDataEntry(buf *iobuf.Buffer, offset int) (*Entry, error) {
	dataRVA, err := buf.U32(offset)
	if err != nil {
		return nil, err
	}

	size, err := buf.U32(offset + 4)
	if err != nil {
		return nil, err
	}

	codepage, err := buf.U32(offset + 8)
	if err != nil {
		return nil, err
	}

	reserved, err := buf.U32(offset + 12)
	if err != nil {
		return nil, err
	}

	payload, err := buf.Slice(int(dataRVA), int(size))
	if err != nil {
		return nil, err
	}

	return &Entry{
		Data:         append([]byte(nil), payload...),
		DataCodepage: codepage,
		DataReserved: reserved,
	}, nil
}

func decodeString(buf *iobuf.Buffer, offset int) (string, error) {
	length, err := buf.U16(offset)
	if err != nil {
		return "", err
	}

	units := make([]uint16, length)

	for i := range units {
		u, err := buf.U16(offset + 2 + 2*i)
		if err != nil {
			return "", err
		}

		units[i] = u
	}

	return string(utf16.Decode(units)), nil
}
