// Package elftest builds small ELF64 images for tests.
package elftest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/chains-project/elfleash/symfind/elfparser"
	"github.com/stretchr/testify/require"
)

// TextIndex is the section index of .text in every built image.
const TextIndex = 1

// TextAddr is the load address of .text in every built image.
const TextAddr = 0x401000

// Byte offsets of section header fields, for patching built images.
const (
	ShName    = 0
	ShType    = 4
	ShOffset  = 24
	ShSize    = 32
	ShLink    = 40
	ShEntSize = 56
)

// Byte offsets of file header fields, for patching built images.
const (
	EhType      = 16
	EhShOff     = 40
	EhShEntSize = 58
	EhShNum     = 60
	EhShStrNdx  = 62
)

type Symbol struct {
	Name    string
	Binding elfparser.SymbolBinding
	Type    elfparser.SymbolType
	Section uint16
	Value   uint64
	Size    uint64
}

type Section struct {
	Name      string
	Type      elfparser.SectionType
	Data      []byte
	EntrySize uint64
	Link      uint32
}

// Builder assembles an image with a null section, .text, .symtab, .strtab,
// any extra sections, and finally .shstrtab.
type Builder struct {
	typ        elfparser.FileType
	class      elfparser.FileClass
	symbols    []Symbol
	sections   []Section
	omitSymtab bool
	omitStrtab bool
}

func NewBuilder() *Builder {
	return &Builder{typ: elfparser.ET_EXEC, class: elfparser.ELFCLASS64}
}

func (b *Builder) WithType(t elfparser.FileType) *Builder {
	b.typ = t
	return b
}

func (b *Builder) WithClass(c elfparser.FileClass) *Builder {
	b.class = c
	return b
}

func (b *Builder) AddSymbol(s Symbol) *Builder {
	b.symbols = append(b.symbols, s)
	return b
}

// Global adds a global function defined in .text.
func (b *Builder) Global(name string, value uint64) *Builder {
	return b.AddSymbol(Symbol{Name: name, Binding: elfparser.STB_GLOBAL, Type: elfparser.STT_FUNC, Section: TextIndex, Value: value, Size: 0x10})
}

// Local adds a file-local function defined in .text.
func (b *Builder) Local(name string, value uint64) *Builder {
	return b.AddSymbol(Symbol{Name: name, Binding: elfparser.STB_LOCAL, Type: elfparser.STT_FUNC, Section: TextIndex, Value: value, Size: 0x10})
}

// Weak adds a weak function defined in .text.
func (b *Builder) Weak(name string, value uint64) *Builder {
	return b.AddSymbol(Symbol{Name: name, Binding: elfparser.STB_WEAK, Type: elfparser.STT_FUNC, Section: TextIndex, Value: value, Size: 0x10})
}

// Undefined adds a global function with no defining section.
func (b *Builder) Undefined(name string) *Builder {
	return b.AddSymbol(Symbol{Name: name, Binding: elfparser.STB_GLOBAL, Type: elfparser.STT_FUNC, Section: elfparser.SHN_UNDEF})
}

// AddSection appends a section after .strtab.
func (b *Builder) AddSection(s Section) *Builder {
	b.sections = append(b.sections, s)
	return b
}

func (b *Builder) WithoutSymtab() *Builder {
	b.omitSymtab = true
	return b
}

func (b *Builder) WithoutStrtab() *Builder {
	b.omitStrtab = true
	return b
}

// Image is a built ELF file.
type Image struct {
	Bytes               []byte
	SectionHeaderOffset uint64
	// SectionIndex maps names to the first section carrying them.
	SectionIndex map[string]int
	// SymbolOffset is the file offset of symbol table entry 0.
	SymbolOffset uint64
}

// EncodeSymbols returns a symbol string table and a symbol table with a null
// entry followed by syms.
func EncodeSymbols(syms []Symbol) (strtab, symtab []byte) {
	var names bytes.Buffer
	names.WriteByte(0)
	symtab = make([]byte, elfparser.SymbolSize, elfparser.SymbolSize*(len(syms)+1))
	for _, s := range syms {
		var entry [elfparser.SymbolSize]byte
		binary.LittleEndian.PutUint32(entry[0:], uint32(names.Len()))
		entry[4] = uint8(s.Binding)<<4 | uint8(s.Type)&0xF
		binary.LittleEndian.PutUint16(entry[6:], s.Section)
		binary.LittleEndian.PutUint64(entry[8:], s.Value)
		binary.LittleEndian.PutUint64(entry[16:], s.Size)
		symtab = append(symtab, entry[:]...)

		names.WriteString(s.Name)
		names.WriteByte(0)
	}
	return names.Bytes(), symtab
}

func (b *Builder) Build() *Image {
	strtab, symtab := EncodeSymbols(b.symbols)

	secs := []Section{
		{},
		{Name: ".text", Type: elfparser.SHT_PROGBITS, Data: make([]byte, 16)},
	}
	if !b.omitSymtab {
		secs = append(secs, Section{Name: elfparser.SymtabSection, Type: elfparser.SHT_SYMTAB, Data: symtab, EntrySize: elfparser.SymbolSize})
	}
	if !b.omitStrtab {
		secs = append(secs, Section{Name: elfparser.StrtabSection, Type: elfparser.SHT_STRTAB, Data: strtab})
	}
	secs = append(secs, b.sections...)
	secs = append(secs, Section{Name: ".shstrtab", Type: elfparser.SHT_STRTAB})

	img := &Image{SectionIndex: make(map[string]int)}

	var shstrtab bytes.Buffer
	shstrtab.WriteByte(0)
	nameOffsets := make([]uint32, len(secs))
	for i := 1; i < len(secs); i++ {
		nameOffsets[i] = uint32(shstrtab.Len())
		shstrtab.WriteString(secs[i].Name)
		shstrtab.WriteByte(0)
		if _, ok := img.SectionIndex[secs[i].Name]; !ok {
			img.SectionIndex[secs[i].Name] = i
		}
	}
	secs[len(secs)-1].Data = shstrtab.Bytes()

	if idx, ok := img.SectionIndex[elfparser.SymtabSection]; ok && !b.omitStrtab {
		if secs[idx].Link == 0 {
			secs[idx].Link = uint32(img.SectionIndex[elfparser.StrtabSection])
		}
	}

	buf := make([]byte, elfparser.FileHeaderSize)
	offsets := make([]uint64, len(secs))
	for i := 1; i < len(secs); i++ {
		buf = pad(buf, 8)
		offsets[i] = uint64(len(buf))
		buf = append(buf, secs[i].Data...)
	}
	if idx, ok := img.SectionIndex[elfparser.SymtabSection]; ok {
		img.SymbolOffset = offsets[idx]
	}

	buf = pad(buf, 8)
	img.SectionHeaderOffset = uint64(len(buf))
	for i, s := range secs {
		var sh [elfparser.SectionHeaderSize]byte
		binary.LittleEndian.PutUint32(sh[ShName:], nameOffsets[i])
		binary.LittleEndian.PutUint32(sh[ShType:], uint32(s.Type))
		if i == TextIndex {
			binary.LittleEndian.PutUint64(sh[8:], 0x6) // SHF_ALLOC|SHF_EXECINSTR
			binary.LittleEndian.PutUint64(sh[16:], TextAddr)
		}
		binary.LittleEndian.PutUint64(sh[ShOffset:], offsets[i])
		binary.LittleEndian.PutUint64(sh[ShSize:], uint64(len(s.Data)))
		binary.LittleEndian.PutUint32(sh[ShLink:], s.Link)
		if i != 0 {
			binary.LittleEndian.PutUint64(sh[48:], 1)
		}
		binary.LittleEndian.PutUint64(sh[ShEntSize:], s.EntrySize)
		buf = append(buf, sh[:]...)
	}

	hdr := buf[:elfparser.FileHeaderSize]
	copy(hdr, []byte{elfparser.ELFMAG0, elfparser.ELFMAG1, elfparser.ELFMAG2, elfparser.ELFMAG3})
	hdr[elfparser.EI_CLASS] = uint8(b.class)
	hdr[elfparser.EI_DATA] = uint8(elfparser.ELFDATA2LSB)
	hdr[6] = 1 // EV_CURRENT
	binary.LittleEndian.PutUint16(hdr[EhType:], uint16(b.typ))
	binary.LittleEndian.PutUint16(hdr[18:], 62) // EM_X86_64
	binary.LittleEndian.PutUint32(hdr[20:], 1)
	binary.LittleEndian.PutUint64(hdr[24:], TextAddr)
	binary.LittleEndian.PutUint64(hdr[EhShOff:], img.SectionHeaderOffset)
	binary.LittleEndian.PutUint16(hdr[52:], elfparser.FileHeaderSize)
	binary.LittleEndian.PutUint16(hdr[EhShEntSize:], elfparser.SectionHeaderSize)
	binary.LittleEndian.PutUint16(hdr[EhShNum:], uint16(len(secs)))
	binary.LittleEndian.PutUint16(hdr[EhShStrNdx:], uint16(len(secs)-1))

	img.Bytes = buf
	return img
}

func pad(b []byte, align int) []byte {
	for len(b)%align != 0 {
		b = append(b, 0)
	}
	return b
}

// SectionHeaderAt returns the file offset of section header i.
func (img *Image) SectionHeaderAt(i int) uint64 {
	return img.SectionHeaderOffset + uint64(i)*elfparser.SectionHeaderSize
}

func (img *Image) PatchUint16(off uint64, v uint16) {
	binary.LittleEndian.PutUint16(img.Bytes[off:], v)
}

func (img *Image) PatchUint32(off uint64, v uint32) {
	binary.LittleEndian.PutUint32(img.Bytes[off:], v)
}

func (img *Image) PatchUint64(off uint64, v uint64) {
	binary.LittleEndian.PutUint64(img.Bytes[off:], v)
}

// WriteFile writes the image into a temporary directory owned by t and
// returns its path.
func (img *Image) WriteFile(t testing.TB, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, img.Bytes, 0755))
	return path
}

// Reader returns the image as an in-memory reader and its size.
func (img *Image) Reader() (*bytes.Reader, int64) {
	return bytes.NewReader(img.Bytes), int64(len(img.Bytes))
}
