package pe

// Fixed offsets into the early header (spec §6.2). Offsets with the
// "opt" prefix are relative to the start of the optional header, which
// itself floats at ntHeadersOffset+0x18.
const (
	// DefaultHeadersSize is the conventional size of the early header
	// region (DOS stub + PE signature + file header + optional header +
	// section table) when not overridden by the caller.
	DefaultHeadersSize = 0x1000

	ntHeadersOffsetPtr = 0x3C

	// Offsets relative to NtHeaders (the "PE\0\0" signature). These follow
	// the standard 20-byte IMAGE_FILE_HEADER layout (Machine, NumberOfSections,
	// TimeDateStamp, PointerToSymbolTable, NumberOfSymbols,
	// SizeOfOptionalHeader, Characteristics), not spec.md §3.2/§4.1's literal
	// "+8"/"+0x10" text — see DESIGN.md for why.
	signatureSize              = 4
	fileHeaderOffset           = signatureSize
	numberOfSectionsOffset     = fileHeaderOffset + 2
	pointerToSymbolTableOffset = fileHeaderOffset + 8
	sizeOfOptionalHeaderOffset = fileHeaderOffset + 16
	fileHeaderSize             = 20
	optionalHeaderOffset       = signatureSize + fileHeaderSize // NtHeaders+0x18

	minOptionalHeaderSize = 0x78

	// Offsets relative to the optional header start.
	optMagicOffset            = 0x00
	optSectionAlignmentOffset = 0x20
	optFileAlignmentOffset    = 0x24
	optSizeOfImageOffset      = 0x38
	optSizeOfHeadersOffset    = 0x3C
	optResourceTableOffset    = 0x70

	pe32Magic = 0x010B
)

var peSignature = [4]byte{'P', 'E', 0, 0}
