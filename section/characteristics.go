package section

import "strings"

// Characteristics is the PE section-flag bitfield (spec §6.2). Values
// are stored and emitted verbatim; this module never rejects an unknown
// bit.
type Characteristics uint32

// Section characteristic flags, spec §6.2.
const (
	CntCode              Characteristics = 0x00000020
	CntInitializedData   Characteristics = 0x00000040
	CntUninitializedData Characteristics = 0x00000080
	LnkOther             Characteristics = 0x00000100
	LnkInfo              Characteristics = 0x00000200
	LnkRemove            Characteristics = 0x00000800
	LnkComdat            Characteristics = 0x00001000
	GpRel                Characteristics = 0x00008000
	MemPurgeable         Characteristics = 0x00020000
	MemLocked            Characteristics = 0x00040000
	MemPreload           Characteristics = 0x00080000
	Align1Bytes          Characteristics = 0x00100000
	Align2Bytes          Characteristics = 0x00200000
	Align4Bytes          Characteristics = 0x00300000
	Align8Bytes          Characteristics = 0x00400000
	Align16Bytes         Characteristics = 0x00500000
	Align32Bytes         Characteristics = 0x00600000
	Align64Bytes         Characteristics = 0x00700000
	Align128Bytes        Characteristics = 0x00800000
	Align256Bytes        Characteristics = 0x00900000
	Align512Bytes        Characteristics = 0x00A00000
	Align1024Bytes       Characteristics = 0x00B00000
	Align2048Bytes       Characteristics = 0x00C00000
	Align4096Bytes       Characteristics = 0x00D00000
	Align8192Bytes       Characteristics = 0x00E00000
	LnkNRelocOverflow    Characteristics = 0x01000000
	MemDiscardable       Characteristics = 0x02000000
	MemNotCached         Characteristics = 0x04000000
	MemNotPaged          Characteristics = 0x08000000
	MemShared            Characteristics = 0x10000000
	MemExecute           Characteristics = 0x20000000
	MemRead              Characteristics = 0x40000000
	MemWrite             Characteristics = 0x80000000
)

// characteristicNames covers every independent bit flag. The alignment
// classes (Align1Bytes...Align8192Bytes) are deliberately excluded: they
// share the 4-bit sub-field alignMask rather than occupying independent
// bits, so testing them with c&flag==flag would report several alignment
// classes set at once (e.g. Align4Bytes == 0x300000 also satisfies the
// Align1Bytes and Align2Bytes bit tests). They're handled separately by
// alignNames, keyed on the masked nibble.
var characteristicNames = map[Characteristics]string{
	CntCode:              "CNT_CODE",
	CntInitializedData:   "CNT_INITIALIZED_DATA",
	CntUninitializedData: "CNT_UNINITIALIZED_DATA",
	LnkOther:             "LNK_OTHER",
	LnkInfo:              "LNK_INFO",
	LnkRemove:            "LNK_REMOVE",
	LnkComdat:            "LNK_COMDAT",
	GpRel:                "GPREL",
	MemPurgeable:         "MEM_PURGEABLE",
	MemLocked:            "MEM_LOCKED",
	MemPreload:           "MEM_PRELOAD",
	LnkNRelocOverflow:    "LNK_NRELOC_OVFL",
	MemDiscardable:       "MEM_DISCARDABLE",
	MemNotCached:         "MEM_NOT_CACHED",
	MemNotPaged:          "MEM_NOT_PAGED",
	MemShared:            "MEM_SHARED",
	MemExecute:           "MEM_EXECUTE",
	MemRead:              "MEM_READ",
	MemWrite:             "MEM_WRITE",
}

// alignMask isolates the 4-bit alignment sub-field shared by
// Align1Bytes...Align8192Bytes.
const alignMask Characteristics = 0x00F00000

// alignNames maps a masked alignment value to its display name.
var alignNames = map[Characteristics]string{
	Align1Bytes:    "ALIGN_1BYTES",
	Align2Bytes:    "ALIGN_2BYTES",
	Align4Bytes:    "ALIGN_4BYTES",
	Align8Bytes:    "ALIGN_8BYTES",
	Align16Bytes:   "ALIGN_16BYTES",
	Align32Bytes:   "ALIGN_32BYTES",
	Align64Bytes:   "ALIGN_64BYTES",
	Align128Bytes:  "ALIGN_128BYTES",
	Align256Bytes:  "ALIGN_256BYTES",
	Align512Bytes:  "ALIGN_512BYTES",
	Align1024Bytes: "ALIGN_1024BYTES",
	Align2048Bytes: "ALIGN_2048BYTES",
	Align4096Bytes: "ALIGN_4096BYTES",
	Align8192Bytes: "ALIGN_8192BYTES",
}

// orderedFlags lists the bits above in ascending order, so String()
// output is deterministic.
var orderedFlags = func() []Characteristics {
	flags := make([]Characteristics, 0, len(characteristicNames))
	for flag := range characteristicNames {
		flags = append(flags, flag)
	}

	for i := 1; i < len(flags); i++ {
		for j := i; j > 0 && flags[j] < flags[j-1]; j-- {
			flags[j], flags[j-1] = flags[j-1], flags[j]
		}
	}

	return flags
}()

// String returns the pipe-joined names of every flag set in c, in
// ascending bit order. The alignment sub-field (if any of its 14 classes
// is set) is reported once, via a single alignNames lookup of the masked
// nibble, rather than OR-testing each alignment constant independently.
func (c Characteristics) String() string {
	var names []string

	align := c & alignMask
	alignInserted := align == 0

	for _, flag := range orderedFlags {
		if !alignInserted && flag > align {
			if name, ok := alignNames[align]; ok {
				names = append(names, name)
			}

			alignInserted = true
		}

		if c&flag == flag && flag != 0 {
			names = append(names, characteristicNames[flag])
		}
	}

	if !alignInserted {
		if name, ok := alignNames[align]; ok {
			names = append(names, name)
		}
	}

	if len(names) == 0 {
		return "0"
	}

	return strings.Join(names, "|")
}
