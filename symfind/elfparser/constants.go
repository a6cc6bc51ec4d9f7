package elfparser

// Identification bytes.
const (
	ELFMAG0 = 0x7F
	ELFMAG1 = 'E'
	ELFMAG2 = 'L'
	ELFMAG3 = 'F'

	EI_CLASS = 4
	EI_DATA  = 5
)

type FileClass uint8

const (
	ELFCLASS32 FileClass = 1
	ELFCLASS64 FileClass = 2
)

type FileEndian uint8

const (
	ELFDATA2LSB FileEndian = 1
	ELFDATA2MSB FileEndian = 2
)

type FileType uint16

const (
	ET_NONE FileType = 0
	ET_REL  FileType = 1
	ET_EXEC FileType = 2
	ET_DYN  FileType = 3
	ET_CORE FileType = 4
)

func (t FileType) String() string {
	switch t {
	case ET_NONE:
		return "ET_NONE"
	case ET_REL:
		return "ET_REL"
	case ET_EXEC:
		return "ET_EXEC"
	case ET_DYN:
		return "ET_DYN"
	case ET_CORE:
		return "ET_CORE"
	}
	return "ET_UNKNOWN"
}

// Section header index
const (
	SHN_UNDEF     = 0
	SHN_LORESERVE = 0xFF00
	SHN_ABS       = 0xFFF1
	SHN_COMMON    = 0xFFF2
	SHN_XINDEX    = 0xFFFF
)

type SectionType uint32

const (
	SHT_NULL     SectionType = 0
	SHT_PROGBITS SectionType = 1
	SHT_SYMTAB   SectionType = 2
	SHT_STRTAB   SectionType = 3
	SHT_RELA     SectionType = 4
	SHT_HASH     SectionType = 5
	SHT_DYNAMIC  SectionType = 6
	SHT_NOTE     SectionType = 7
	SHT_NOBITS   SectionType = 8
	SHT_REL      SectionType = 9
	SHT_DYNSYM   SectionType = 11
)

func (s SectionType) HasDataInFile() bool {
	return s != SHT_NOBITS
}

// Symbol table binding
type SymbolBinding uint8

const (
	STB_LOCAL  SymbolBinding = 0
	STB_GLOBAL SymbolBinding = 1
	STB_WEAK   SymbolBinding = 2
)

func (b SymbolBinding) String() string {
	switch b {
	case STB_LOCAL:
		return "LOCAL"
	case STB_GLOBAL:
		return "GLOBAL"
	case STB_WEAK:
		return "WEAK"
	}
	return "UNKNOWN"
}

// Symbol table type
type SymbolType uint8

const (
	STT_NOTYPE  SymbolType = 0
	STT_OBJECT  SymbolType = 1
	STT_FUNC    SymbolType = 2
	STT_SECTION SymbolType = 3
	STT_FILE    SymbolType = 4
	STT_COMMON  SymbolType = 5
)

// On-disk record sizes of the ELF64 layout.
const (
	FileHeaderSize    = 64
	SectionHeaderSize = 64
	SymbolSize        = 24
)

// Well-known section names.
const (
	SymtabSection = ".symtab"
	StrtabSection = ".strtab"
)
