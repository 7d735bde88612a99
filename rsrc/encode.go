package rsrc

import (
	"fmt"
	"log/slog"
	"sort"
	"unicode/utf16"

	"github.com/corvid-labs/peedit/internal/iobuf"
)

// EmitOrder controls how a directory's children are ordered on encode
// (spec §3.3, §4.3.3 step 3, resolved open question in §9).
type EmitOrder int

const (
	// EmitOrderInsertion emits named children first in insertion order,
	// then id children in insertion order. This is the default: it
	// reproduces the source tool's observed behavior and is required
	// for a bit-exact round trip.
	EmitOrderInsertion EmitOrder = iota

	// EmitOrderSpec emits named children sorted ASCII-ascending, then id
	// children sorted numerically ascending, per the PE specification's
	// documented (but not universally implemented) ordering.
	EmitOrderSpec
)

// Encode serializes root into a self-contained `.rsrc` byte block (spec
// §4.3.3), as if root's section were based at virtual address 0: every
// stored pointer is a direct, section-relative offset into the returned
// bytes. Callers that need the PE-mandated absolute-RVA form once a
// section's VA is known should call Shift(result, va) afterwards.
func Encode(root *Entry, order EmitOrder) ([]byte, error) {
	if err := validate(root, true); err != nil {
		return nil, err
	}

	dirSize, deSize := measure(root)

	names := collectNames(root)

	stringOffsets := make(map[string]uint32, len(names))

	stringRegionStart := dirSize + deSize

	cursor := uint32(stringRegionStart)
	for _, name := range names {
		stringOffsets[name] = cursor
		cursor += 2 + uint32(2*len(utf16.Encode([]rune(name))))
	}

	stringRegionSize := int(cursor) - stringRegionStart
	dataRegionStart := stringRegionStart + stringRegionSize
	dataSize := dataSize(root)
	total := dataRegionStart + dataSize

	out := make([]byte, total)
	buf := iobuf.Wrap(out)

	for name, offset := range stringOffsets {
		if err := writeString(buf, int(offset), name); err != nil {
			return nil, err
		}
	}

	e := &encoder{buf: buf, order: order, stringOffsets: stringOffsets}
	e.dirCursor = 0
	e.deCursor = dirSize
	e.dataCursor = dataRegionStart

	if err := e.run(root); err != nil {
		return nil, err
	}

	slog.Debug("encoded .rsrc tree",
		"directory_size", dirSize,
		"data_entry_size", deSize,
		"string_count", len(names),
		"data_size", dataSize,
		"total_size", total,
	)

	return out, nil
}

func validate(e *Entry, isRoot bool) error {
	if e.isDir {
		if len(e.Data) != 0 {
			return fmt.Errorf("%w: %s", ErrDirectoryHasData, e.identityString())
		}

		if !isRoot && len(e.children) == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyDirectory, e.identityString())
		}

		for _, c := range e.children {
			if err := validate(c, false); err != nil {
				return err
			}
		}
	} else if len(e.children) != 0 {
		return fmt.Errorf("%w: %s", ErrDataHasChildren, e.identityString())
	}

	return nil
}

// measure returns the total directory-region size and data-entry-region
// size for the whole tree rooted at e.
func measure(e *Entry) (dirSize, deSize int) {
	if !e.isDir {
		return 0, 16
	}

	dirSize = 16 + 8*len(e.children)

	for _, c := range e.children {
		cd, cde := measure(c)
		dirSize += cd
		deSize += cde
	}

	return dirSize, deSize
}

func dataSize(e *Entry) int {
	if !e.isDir {
		return len(e.Data)
	}

	var total int
	for _, c := range e.children {
		total += dataSize(c)
	}

	return total
}

// collectNames returns every distinct name used anywhere in the tree,
// in first-encounter order (spec §3.3: "a single string used as a name
// by multiple entries is coalesced to one occurrence").
func collectNames(root *Entry) []string {
	seen := make(map[string]bool)

	var names []string

	var walk func(e *Entry)
	walk = func(e *Entry) {
		if e.named && !seen[e.Name] {
			seen[e.Name] = true
			names = append(names, e.Name)
		}

		for _, c := range e.children {
			walk(c)
		}
	}

	walk(root)

	return names
}

func writeString(buf *iobuf.Buffer, offset int, s string) error {
	units := utf16.Encode([]rune(s))
	if err := buf.SetU16(offset, uint16(len(units))); err != nil {
		return err
	}

	for i, u := range units {
		if err := buf.SetU16(offset+2+2*i, u); err != nil {
			return err
		}
	}

	return nil
}

type queueItem struct {
	entry    *Entry
	patchPos int // -1 for the root, which nothing points to
}

type encoder struct {
	buf           *iobuf.Buffer
	order         EmitOrder
	stringOffsets map[string]uint32
	dirCursor     int
	deCursor      int
	dataCursor    int
}

// run performs the breadth-first directory write described by spec
// §4.3.3 step 3: each directory is written at the next free directory
// slot, its subdirectory children enqueued for later, their parent
// back-reference patched the moment the subdirectory's own offset is
// known.
func (e *encoder) run(root *Entry) error {
	queue := []queueItem{{entry: root, patchPos: -1}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		dirOffset := e.dirCursor

		if item.patchPos >= 0 {
			if err := e.buf.SetU32(item.patchPos, uint32(dirOffset)|highBit); err != nil {
				return err
			}
		}

		children := reorder(item.entry.children, e.order)

		var numNamed, numID uint16

		for _, c := range children {
			if c.named {
				numNamed++
			} else {
				numID++
			}
		}

		if err := e.buf.SetU32(dirOffset, item.entry.DirCharacteristics); err != nil {
			return err
		}

		if err := e.buf.SetU32(dirOffset+4, item.entry.DirTimestamp); err != nil {
			return err
		}

		if err := e.buf.SetU16(dirOffset+8, item.entry.DirVersionMajor); err != nil {
			return err
		}

		if err := e.buf.SetU16(dirOffset+10, item.entry.DirVersionMinor); err != nil {
			return err
		}

		if err := e.buf.SetU16(dirOffset+12, numNamed); err != nil {
			return err
		}

		if err := e.buf.SetU16(dirOffset+14, numID); err != nil {
			return err
		}

		e.dirCursor += 16 + 8*len(children)

		childPos := dirOffset + 16

		for _, c := range children {
			var nameWord uint32
			if c.named {
				nameWord = highBit | e.stringOffsets[c.Name]
			} else {
				nameWord = c.ID
			}

			if err := e.buf.SetU32(childPos, nameWord); err != nil {
				return err
			}

			if c.isDir {
				queue = append(queue, queueItem{entry: c, patchPos: childPos + 4})
			} else {
				deOffset := e.deCursor
				e.deCursor += 16

				if err := e.writeDataEntry(deOffset, c); err != nil {
					return err
				}

				if err := e.buf.SetU32(childPos+4, uint32(deOffset)); err != nil {
					return err
				}
			}

			childPos += 8
		}
	}

	return nil
}

func (e *encoder) writeDataEntry(offset int, c *Entry) error {
	dataOffset := e.dataCursor
	e.dataCursor += len(c.Data)

	if err := e.buf.SetU32(offset, uint32(dataOffset)); err != nil {
		return err
	}

	if err := e.buf.SetU32(offset+4, uint32(len(c.Data))); err != nil {
		return err
	}

	if err := e.buf.SetU32(offset+8, c.DataCodepage); err != nil {
		return err
	}

	if err := e.buf.SetU32(offset+12, c.DataReserved); err != nil {
		return err
	}

	copy(e.buf.Bytes()[dataOffset:], c.Data)

	return nil
}

// reorder returns children ordered per order, without mutating the
// original slice.
func reorder(children []*Entry, order EmitOrder) []*Entry {
	named := make([]*Entry, 0, len(children))
	ids := make([]*Entry, 0, len(children))

	for _, c := range children {
		if c.named {
			named = append(named, c)
		} else {
			ids = append(ids, c)
		}
	}

	if order == EmitOrderSpec {
		sort.SliceStable(named, func(i, j int) bool { return named[i].Name < named[j].Name })
		sort.SliceStable(ids, func(i, j int) bool { return ids[i].ID < ids[j].ID })
	}

	out := make([]*Entry, 0, len(children))
	out = append(out, named...)
	out = append(out, ids...)

	return out
}
