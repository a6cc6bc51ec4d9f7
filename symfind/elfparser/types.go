package elfparser

type FileHeader struct {
	// Identification
	Class  FileClass
	Endian FileEndian

	// Header
	Type                   FileType
	Machine                uint16
	Version                uint32
	Entry                  uint64
	SectionHeaderOffset    uint64
	Flags                  uint32
	SectionHeaderEntrySize uint16
	SectionHeaderCount     uint16
	SectionNameIndex       uint16
}

// IsExecutable reports whether the object is a standalone executable, as
// opposed to a relocatable object, a shared object or a core dump.
func (h FileHeader) IsExecutable() bool {
	return h.Type == ET_EXEC
}

type SectionHeader struct {
	// Index is the position of the header in the section header table.
	Index      int
	NameOffset uint32
	Type       SectionType
	Flags      uint64
	Address    uint64
	Offset     uint64
	Size       uint64
	Link       uint32
	Info       uint32
	AddrAlign  uint64
	EntrySize  uint64
}

// SectionTable is the section header table in file order. Its indices are the
// section indices used by symbols and by the file header.
type SectionTable []SectionHeader

type Symbol struct {
	// Index is the position of the entry in the symbol table.
	Index        int
	NameOffset   uint32
	Info         uint8
	Other        uint8
	SectionIndex uint16
	Value        uint64
	Size         uint64
}

func (s Symbol) Binding() SymbolBinding {
	return SymbolBinding(s.Info >> 4)
}

func (s Symbol) Type() SymbolType {
	return SymbolType(s.Info & 0xF)
}

// Defined reports whether the symbol has a defining section in this file.
func (s Symbol) Defined() bool {
	return s.SectionIndex != SHN_UNDEF
}

// NamedSymbol is a symbol together with its name from the symbol string table.
type NamedSymbol struct {
	Symbol
	Name string
}
