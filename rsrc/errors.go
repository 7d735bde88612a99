package rsrc

import "errors"

var (
	// ErrDirectoryHasData is returned when a directory entry carries a
	// data payload.
	ErrDirectoryHasData = errors.New("rsrc: directory entry has data")

	// ErrDataHasChildren is returned when a data entry carries children.
	ErrDataHasChildren = errors.New("rsrc: data entry has children")

	// ErrEmptyDirectory is returned when a non-root directory has no
	// children and no data.
	ErrEmptyDirectory = errors.New("rsrc: non-root directory has no children")

	// ErrTooManyEntries guards against a directory header claiming an
	// unreasonable number of children, almost always a sign of corrupt
	// or adversarial input.
	ErrTooManyEntries = errors.New("rsrc: directory claims too many entries")

	// ErrPathNotFound is returned by GetEntryFromPath when no entry
	// matches the requested path.
	ErrPathNotFound = errors.New("rsrc: path not found")

	// ErrPathNotADirectory is returned by GetEntryFromPath when a
	// non-final path segment resolves to a data entry rather than a
	// directory.
	ErrPathNotADirectory = errors.New("rsrc: path segment is not a directory")
)

// maxDirectoryEntries bounds decode against a corrupt directory header
// driving an unbounded read.
const maxDirectoryEntries = 0x1000
