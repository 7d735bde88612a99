package pe

import "errors"

// Error kinds returned by Parse, Write, Malloc, FillVirtualLayoutGaps,
// Rsrc, and Resources.Sync (spec §7). Every error is fatal to the
// operation that produced it. Parse builds a new *File and returns none
// on failure. Write, Malloc, and FillVirtualLayoutGaps are not
// transactional: a failure part-way through can leave section addresses,
// `.rsrc` bytes, the section list, or the early header partly updated.
var (
	ErrNotAPE                   = errors.New("pe: not a PE image (bad signature or truncated header)")
	ErrSymbolTablePresent       = errors.New("pe: COFF symbol table is present; refusing to edit")
	ErrOptionalHeaderTooSmall   = errors.New("pe: optional header smaller than 0x78 bytes")
	ErrUnsupportedOptionalMagic = errors.New("pe: optional header magic is not PE32 (0x010B)")
	ErrHeadersSizeMismatch      = errors.New("pe: SizeOfHeaders does not match the expected headers size")
	ErrRelocationsPresent       = errors.New("pe: section carries relocations; refusing to edit")
	ErrLineNumbersPresent       = errors.New("pe: section carries COFF line numbers; refusing to edit")
	ErrSectionRVAOverlap        = errors.New("pe: sections overlap in virtual address space")
	ErrTruncatedSectionData     = errors.New("pe: section raw data extends past end of input")
	ErrResourceMissing          = errors.New("pe: no .rsrc section present")
)
