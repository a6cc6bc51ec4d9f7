package elfparser

import (
	"fmt"
)

func decodeSymbol(b []byte, index int) (Symbol, error) {
	r := newFieldReader(fmt.Sprintf("symbol %d", index), b)
	sym := Symbol{
		Index:        index,
		NameOffset:   r.u32(0),
		Info:         r.u8(4),
		Other:        r.u8(5),
		SectionIndex: r.u16(6),
		Value:        r.u64(8),
		Size:         r.u64(16),
	}
	if r.err != nil {
		return Symbol{}, r.err
	}
	return sym, nil
}

// SymbolTable holds the raw contents of a symbol table section.
type SymbolTable struct {
	Section SectionHeader

	data    []byte
	entSize uint64
}

// NewSymbolTable wraps the contents of the symbol table section sh.
func NewSymbolTable(sh SectionHeader, data []byte) (SymbolTable, error) {
	if sh.EntrySize == 0 {
		return SymbolTable{}, fmt.Errorf("%w: symbol table section %d has zero entry size", ErrCorruptFile, sh.Index)
	}
	if sh.EntrySize < SymbolSize {
		return SymbolTable{}, fmt.Errorf("%w: symbol table entry size %d, want at least %d", ErrCorruptFile, sh.EntrySize, SymbolSize)
	}
	return SymbolTable{Section: sh, data: data, entSize: sh.EntrySize}, nil
}

// Len returns the number of entries, section size divided by entry size.
func (t SymbolTable) Len() int {
	if t.entSize == 0 {
		return 0
	}
	return int(uint64(len(t.data)) / t.entSize)
}

// Symbol decodes entry i.
func (t SymbolTable) Symbol(i int) (Symbol, error) {
	if i < 0 || i >= t.Len() {
		return Symbol{}, fmt.Errorf("symbol index %d out of range [0, %d)", i, t.Len())
	}
	start := uint64(i) * t.entSize
	return decodeSymbol(t.data[start:start+t.entSize], i)
}

// SymbolTable reads the symbol table section sh.
func (f *File) SymbolTable(sh SectionHeader) (SymbolTable, error) {
	if sh.EntrySize < SymbolSize {
		return NewSymbolTable(sh, nil)
	}
	data, err := f.ReadSection(sh)
	if err != nil {
		return SymbolTable{}, fmt.Errorf("reading symbol table: %w", err)
	}
	return NewSymbolTable(sh, data)
}

// SymbolNames reads the symbol name string table section sh.
func (f *File) SymbolNames(sh SectionHeader) (SymbolNameTable, error) {
	data, err := f.ReadSection(sh)
	if err != nil {
		return SymbolNameTable{}, fmt.Errorf("reading symbol name table: %w", err)
	}
	return NewSymbolNameTable(data), nil
}

// SymbolTables is the symbol table of a file together with the string table
// holding its names.
type SymbolTables struct {
	Symbols SymbolTable
	Names   SymbolNameTable
}

// LoadSymbolTables locates .symtab and .strtab by name and reads both. It
// returns ErrNoSymbols when either section is missing.
func (f *File) LoadSymbolTables() (SymbolTables, error) {
	sections, err := f.SectionHeaders()
	if err != nil {
		return SymbolTables{}, err
	}
	sectionNames, err := f.SectionNames(sections)
	if err != nil {
		return SymbolTables{}, err
	}
	index := BuildSectionIndex(sections, sectionNames)

	symtabIdx, ok, err := index.Lookup(SymtabSection)
	if err != nil {
		return SymbolTables{}, err
	}
	if !ok {
		return SymbolTables{}, fmt.Errorf("%w: %s", ErrNoSymbols, SymtabSection)
	}
	strtabIdx, ok, err := index.Lookup(StrtabSection)
	if err != nil {
		return SymbolTables{}, err
	}
	if !ok {
		return SymbolTables{}, fmt.Errorf("%w: %s", ErrNoSymbols, StrtabSection)
	}

	symbols, err := f.SymbolTable(sections[symtabIdx])
	if err != nil {
		return SymbolTables{}, err
	}
	names, err := f.SymbolNames(sections[strtabIdx])
	if err != nil {
		return SymbolTables{}, err
	}
	return SymbolTables{Symbols: symbols, Names: names}, nil
}

// Symbols returns every entry of .symtab with its name, in table order.
func (f *File) Symbols() ([]NamedSymbol, error) {
	tables, err := f.LoadSymbolTables()
	if err != nil {
		return nil, err
	}
	symbols := make([]NamedSymbol, 0, tables.Symbols.Len())
	for i := 0; i < tables.Symbols.Len(); i++ {
		sym, err := tables.Symbols.Symbol(i)
		if err != nil {
			return nil, err
		}
		name, err := tables.Names.Lookup(sym.NameOffset)
		if err != nil {
			return nil, fmt.Errorf("name of symbol %d: %w", i, err)
		}
		symbols = append(symbols, NamedSymbol{Symbol: sym, Name: name})
	}
	return symbols, nil
}
