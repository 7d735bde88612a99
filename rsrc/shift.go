package rsrc

import (
	"log/slog"

	"github.com/corvid-labs/peedit/internal/iobuf"
)

const (
	highBit = uint32(0x80000000)
	lowMask = uint32(0x7FFFFFFF)
)

// Shift rebases every absolute pointer inside a `.rsrc` section's raw
// bytes by delta (spec §4.3.1, extended per §9's open question): a
// depth-first walk of the directory tree patches each data entry's
// data_rva field and each named child's string-reference word.
// Subdirectory and data-entry offsets are section-relative already and
// are used, unpatched, to navigate the walk.
func Shift(sectionBytes []byte, delta int64) error {
	if delta == 0 {
		return nil
	}

	slog.Debug("shifting .rsrc section pointers", "delta", delta)

	buf := iobuf.Wrap(sectionBytes)

	return shiftDirectory(buf, 0, delta)
}

func shiftDirectory(buf *iobuf.Buffer, offset int, delta int64) error {
	numNamed, err := buf.U16(offset + 12)
	if err != nil {
		return err
	}

	numID, err := buf.U16(offset + 14)
	if err != nil {
		return err
	}

	n := int(numNamed) + int(numID)
	if n > maxDirectoryEntries {
		return ErrTooManyEntries
	}

	pos := offset + 16

	for i := 0; i < n; i++ {
		nameWord, err := buf.U32(pos)
		if err != nil {
			return err
		}

		dataWord, err := buf.U32(pos + 4)
		if err != nil {
			return err
		}

		if nameWord&highBit != 0 {
			if err := shiftMaskedPointer(buf, pos, delta); err != nil {
				return err
			}
		}

		if dataWord&highBit != 0 {
			if err := shiftDirectory(buf, int(dataWord&lowMask), delta); err != nil {
				return err
			}
		} else if err := buf.AddU32(int(dataWord), delta); err != nil {
			return err
		}

		pos += 8
	}

	return nil
}

// shiftMaskedPointer adds delta to the low 31 bits of the value at off,
// leaving the high bit (the string/subdirectory tag) untouched.
func shiftMaskedPointer(buf *iobuf.Buffer, off int, delta int64) error {
	v, err := buf.U32(off)
	if err != nil {
		return err
	}

	low := v & lowMask
	high := v & highBit
	newLow := uint32(int64(low)+delta) & lowMask

	return buf.SetU32(off, newLow|high)
}
