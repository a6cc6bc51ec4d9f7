package elfparser_test

import (
	"bytes"
	"debug/elf"
	"testing"

	"github.com/chains-project/elfleash/symfind/elfparser"
	"github.com/chains-project/elfleash/symfind/elfparser/elftest"
	"github.com/stretchr/testify/require"
)

func openImage(t *testing.T, img *elftest.Image) *elfparser.File {
	t.Helper()
	r, size := img.Reader()
	f, err := elfparser.NewFile(r, size)
	require.NoError(t, err)
	return f
}

func TestNewFile_DecodesHeader(t *testing.T) {
	// arrange
	img := elftest.NewBuilder().Global("main", 0x401136).Build()

	// act
	f := openImage(t, img)

	// assert
	require.Equal(t, elfparser.ELFCLASS64, f.Class)
	require.Equal(t, elfparser.ELFDATA2LSB, f.Endian)
	require.Equal(t, elfparser.ET_EXEC, f.Type)
	require.True(t, f.IsExecutable())
	require.Equal(t, img.SectionHeaderOffset, f.SectionHeaderOffset)
	require.Equal(t, uint16(elfparser.SectionHeaderSize), f.SectionHeaderEntrySize)
	require.Equal(t, uint16(5), f.SectionHeaderCount)
	require.Equal(t, uint16(4), f.SectionNameIndex)
	require.Equal(t, int64(len(img.Bytes)), f.Size())
}

func TestNewFile_RejectsFilesThatAreNotCompleteELF64(t *testing.T) {
	valid := elftest.NewBuilder().Build().Bytes
	badMagic := append([]byte{}, valid...)
	badMagic[1] = 'X'

	testcases := []struct {
		name string
		data []byte
		err  error
	}{
		{"empty", nil, elfparser.ErrNotELF},
		{"shorter than magic", valid[:3], elfparser.ErrNotELF},
		{"truncated header", valid[:40], elfparser.ErrCorruptFile},
		{"truncated after identification", valid[:6], elfparser.ErrCorruptFile},
		{"bad magic", badMagic, elfparser.ErrNotELF},
		{"text file", []byte("#!/bin/sh\necho this is a shell script, not a binary at all\n"), elfparser.ErrNotELF},
		{"32-bit", elftest.NewBuilder().WithClass(elfparser.ELFCLASS32).Build().Bytes, elfparser.ErrUnsupported},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := elfparser.NewFile(bytes.NewReader(tc.data), int64(len(tc.data)))
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestIsExecutable_OnlyForExecType(t *testing.T) {
	for _, typ := range []elfparser.FileType{elfparser.ET_NONE, elfparser.ET_REL, elfparser.ET_DYN, elfparser.ET_CORE} {
		t.Run(typ.String(), func(t *testing.T) {
			f := openImage(t, elftest.NewBuilder().WithType(typ).Build())
			require.False(t, f.IsExecutable())
		})
	}
}

func TestSectionHeaders_ReturnsOneEntryPerDeclaredSection(t *testing.T) {
	// arrange
	img := elftest.NewBuilder().Global("main", 0x401136).Build()
	f := openImage(t, img)

	// act
	sections, err := f.SectionHeaders()

	// assert
	require.NoError(t, err)
	require.Len(t, sections, int(f.SectionHeaderCount))
	for i, sh := range sections {
		require.Equal(t, i, sh.Index)
	}
	require.Equal(t, elfparser.SHT_NULL, sections[0].Type)
	require.Equal(t, uint64(elftest.TextAddr), sections[elftest.TextIndex].Address)
	require.Equal(t, elfparser.SHT_SYMTAB, sections[img.SectionIndex[".symtab"]].Type)
	require.Equal(t, uint64(elfparser.SymbolSize), sections[img.SectionIndex[".symtab"]].EntrySize)
}

func TestSectionHeaders_RejectsCorruptTables(t *testing.T) {
	testcases := []struct {
		name  string
		patch func(img *elftest.Image)
	}{
		{"table past end of file", func(img *elftest.Image) {
			img.PatchUint64(elftest.EhShOff, uint64(len(img.Bytes)))
		}},
		{"offset overflows", func(img *elftest.Image) {
			img.PatchUint64(elftest.EhShOff, ^uint64(0)-8)
		}},
		{"entry size too small", func(img *elftest.Image) {
			img.PatchUint16(elftest.EhShEntSize, 16)
		}},
		{"too many entries", func(img *elftest.Image) {
			img.PatchUint16(elftest.EhShNum, 200)
		}},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			img := elftest.NewBuilder().Global("main", 0x401136).Build()
			tc.patch(img)
			f := openImage(t, img)

			_, err := f.SectionHeaders()
			require.ErrorIs(t, err, elfparser.ErrCorruptFile)
		})
	}
}

func TestSectionNames_RejectsIndexPastTable(t *testing.T) {
	img := elftest.NewBuilder().Build()
	img.PatchUint16(elftest.EhShStrNdx, 9)
	f := openImage(t, img)
	sections, err := f.SectionHeaders()
	require.NoError(t, err)

	_, err = f.SectionNames(sections)
	require.ErrorIs(t, err, elfparser.ErrCorruptFile)
}

func TestSectionNames_UndefinedIndexYieldsEmptyTable(t *testing.T) {
	img := elftest.NewBuilder().Build()
	img.PatchUint16(elftest.EhShStrNdx, elfparser.SHN_UNDEF)
	f := openImage(t, img)
	sections, err := f.SectionHeaders()
	require.NoError(t, err)

	names, err := f.SectionNames(sections)
	require.NoError(t, err)
	require.Zero(t, names.Len())

	index := elfparser.BuildSectionIndex(sections, names)
	_, ok, err := index.Lookup(".symtab")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStringTable_LookupReturnsBytesUpToTerminator(t *testing.T) {
	data := []byte("\x00main\x00helper\x00\x00printf\x00")
	table := elfparser.NewSymbolNameTable(data)

	for off := range data {
		end := bytes.IndexByte(data[off:], 0)
		want := string(data[off : off+end])

		got, err := table.Lookup(uint32(off))
		require.NoError(t, err)
		require.Equal(t, want, got, "offset %d", off)

		ok, err := table.Matches(uint32(off), want)
		require.NoError(t, err)
		require.True(t, ok, "offset %d", off)
	}
}

func TestStringTable_RejectsBadOffsets(t *testing.T) {
	table := elfparser.NewSectionNameTable([]byte("\x00.text\x00.dangling"))

	_, err := table.Lookup(100)
	require.ErrorIs(t, err, elfparser.ErrCorruptFile)

	_, err = table.Lookup(uint32(len("\x00.text\x00.dangling")))
	require.ErrorIs(t, err, elfparser.ErrCorruptFile)

	_, err = table.Lookup(7)
	require.ErrorIs(t, err, elfparser.ErrCorruptFile)

	_, err = table.Matches(7, ".dangling")
	require.ErrorIs(t, err, elfparser.ErrCorruptFile)

	name, err := table.Lookup(1)
	require.NoError(t, err)
	require.Equal(t, ".text", name)
}

func TestBuildSectionIndex_FirstMatchWins(t *testing.T) {
	// arrange
	names := elfparser.NewSectionNameTable([]byte("\x00.symtab\x00.strtab\x00"))
	sections := elfparser.SectionTable{
		{Index: 0, NameOffset: 0},
		{Index: 1, NameOffset: 9},
		{Index: 2, NameOffset: 1},
		{Index: 3, NameOffset: 1},
		{Index: 4, NameOffset: 9},
	}

	// act
	index := elfparser.BuildSectionIndex(sections, names)

	// assert
	symtab, ok, err := index.Lookup(".symtab")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, symtab)
	strtab, ok, err := index.Lookup(".strtab")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, strtab)
	_, ok, err = index.Lookup(".dynsym")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSectionIndexLookup_UnreadableNameOnlyFailsLookupsThatReachIt(t *testing.T) {
	// arrange
	names := elfparser.NewSectionNameTable([]byte("\x00.symtab\x00.strtab\x00"))
	sections := elfparser.SectionTable{
		{Index: 0, NameOffset: 0},
		{Index: 1, NameOffset: 1},
		{Index: 2, NameOffset: 64},
		{Index: 3, NameOffset: 9},
	}

	// act
	index := elfparser.BuildSectionIndex(sections, names)

	// assert
	symtab, ok, err := index.Lookup(".symtab")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, symtab)

	_, _, err = index.Lookup(".strtab")
	require.ErrorIs(t, err, elfparser.ErrCorruptFile)
	_, _, err = index.Lookup(".dynsym")
	require.ErrorIs(t, err, elfparser.ErrCorruptFile)
}

func TestLoadSymbolTables_MissingSections(t *testing.T) {
	testcases := []struct {
		name    string
		builder *elftest.Builder
	}{
		{"no symtab", elftest.NewBuilder().Global("main", 0x401136).WithoutSymtab()},
		{"no strtab", elftest.NewBuilder().Global("main", 0x401136).WithoutStrtab()},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			f := openImage(t, tc.builder.Build())

			_, err := f.LoadSymbolTables()
			require.ErrorIs(t, err, elfparser.ErrNoSymbols)
		})
	}
}

func TestLoadSymbolTables_RejectsCorruptSymbolSection(t *testing.T) {
	testcases := []struct {
		name  string
		patch func(img *elftest.Image, symtab uint64)
	}{
		{"zero entry size", func(img *elftest.Image, symtab uint64) {
			img.PatchUint64(symtab+elftest.ShEntSize, 0)
		}},
		{"entry size smaller than a symbol", func(img *elftest.Image, symtab uint64) {
			img.PatchUint64(symtab+elftest.ShEntSize, 8)
		}},
		{"size past end of file", func(img *elftest.Image, symtab uint64) {
			img.PatchUint64(symtab+elftest.ShSize, uint64(len(img.Bytes)))
		}},
		{"offset past end of file", func(img *elftest.Image, symtab uint64) {
			img.PatchUint64(symtab+elftest.ShOffset, uint64(len(img.Bytes))+1)
		}},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			img := elftest.NewBuilder().Global("main", 0x401136).Build()
			tc.patch(img, img.SectionHeaderAt(img.SectionIndex[".symtab"]))
			f := openImage(t, img)

			_, err := f.LoadSymbolTables()
			require.ErrorIs(t, err, elfparser.ErrCorruptFile)
		})
	}
}

func TestSymbolTable_LenTruncatesPartialEntries(t *testing.T) {
	sh := elfparser.SectionHeader{Index: 2, Type: elfparser.SHT_SYMTAB, EntrySize: elfparser.SymbolSize}
	table, err := elfparser.NewSymbolTable(sh, make([]byte, 2*elfparser.SymbolSize+5))
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	_, err = table.Symbol(2)
	require.Error(t, err)
}

func TestSymbols_DecodesEveryEntry(t *testing.T) {
	// arrange
	img := elftest.NewBuilder().
		Local("helper", 0x401100).
		Global("main", 0x401136).
		Undefined("printf").
		Build()
	f := openImage(t, img)

	// act
	symbols, err := f.Symbols()

	// assert
	require.NoError(t, err)
	require.Len(t, symbols, 4)
	require.Equal(t, "", symbols[0].Name)

	require.Equal(t, "helper", symbols[1].Name)
	require.Equal(t, elfparser.STB_LOCAL, symbols[1].Binding())
	require.Equal(t, elfparser.STT_FUNC, symbols[1].Type())

	require.Equal(t, "main", symbols[2].Name)
	require.Equal(t, elfparser.STB_GLOBAL, symbols[2].Binding())
	require.Equal(t, uint64(0x401136), symbols[2].Value)
	require.Equal(t, uint16(elftest.TextIndex), symbols[2].SectionIndex)
	require.True(t, symbols[2].Defined())

	require.Equal(t, "printf", symbols[3].Name)
	require.False(t, symbols[3].Defined())
}

func TestSymbols_AgreesWithDebugElf(t *testing.T) {
	img := elftest.NewBuilder().
		Local("helper", 0x401100).
		Global("main", 0x401136).
		Weak("data_start", 0x404000).
		Undefined("printf").
		Build()

	genuine, err := elf.NewFile(bytes.NewReader(img.Bytes))
	require.NoError(t, err)
	want, err := genuine.Symbols()
	require.NoError(t, err)

	got, err := openImage(t, img).Symbols()
	require.NoError(t, err)

	// debug/elf drops the null entry
	require.Len(t, got, len(want)+1)
	for i, sym := range want {
		require.Equal(t, sym.Name, got[i+1].Name)
		require.Equal(t, sym.Value, got[i+1].Value)
		require.Equal(t, sym.Info, got[i+1].Info)
		require.Equal(t, uint16(sym.Section), got[i+1].SectionIndex)
	}
}
