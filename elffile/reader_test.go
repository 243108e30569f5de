// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elffile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// testSection describes one section of the synthetic image assembled by
// writeImage.
type testSection struct {
	name    string
	typ     SectionType
	data    []byte
	entsize uint64
}

const testImageBase = 0x400000

// Symbol info bytes: kind in the low nibble, binding in the high nibble.
const (
	infoFunc   = BindGlobal<<4 | KindFunc
	infoFile   = KindFile
	infoObject = BindGlobal<<4 | KindObject
)

func symbolBytes(entries []symbolEntry) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, entries)
	return buf.Bytes()
}

func strtabBytes(names []string) ([]byte, map[string]uint32) {
	var buf bytes.Buffer
	offsets := make(map[string]uint32)
	buf.WriteByte(0)
	for _, name := range names {
		offsets[name] = uint32(buf.Len())
		buf.WriteString(name)
		buf.WriteByte(0)
	}
	return buf.Bytes(), offsets
}

// writeImage assembles a minimal but well-formed ELF image into a temp file
// and returns its path.
func writeImage(t *testing.T, fileType uint16) string {
	t.Helper()

	textData := append([]byte{
		0x55,                         // push rbp
		0x48, 0x89, 0xe5,             // mov rbp, rsp
		0xb8, 0x2a, 0x00, 0x00, 0x00, // mov eax, 42
		0x5d, // pop rbp
		0xc3, // ret
		0x90, 0x90, 0x90, 0x90, 0x90,
		// helper at +16
		0x55, 0x48, 0x89, 0xe5, 0x5d, 0xc3, 0x90, 0x90,
	}, make([]byte, 0x40-24)...)

	rodata := []byte("hello\x000123456789abcdef\x00\x01bad\x00   \x00")

	strtab, strOff := strtabBytes([]string{"main.c", "main", "helper", "_fini", "message"})
	dynstr, dynOff := strtabBytes([]string{"puts"})

	// Section layout: offsets assigned sequentially from 0x1000, virtual
	// addresses at a fixed base above the file offset.
	sections := []testSection{
		{},
		{name: ".text", typ: SectionProgramData, data: textData},
		{name: ".init", typ: SectionProgramData, data: make([]byte, 0x20)},
		{name: ".fini", typ: SectionProgramData, data: make([]byte, 0x20)},
		{name: ".rodata", typ: SectionProgramData, data: rodata},
		{name: ".init_array", typ: SectionProgramData, data: make([]byte, 8), entsize: 8},
		{name: ".rela.plt", typ: SectionRelaEntries, data: make([]byte, 24), entsize: 24},
		{name: ".plt", typ: SectionProgramData, data: make([]byte, 0x30), entsize: 16},
		{name: ".dynsym", typ: SectionDynamicSymbolTable, data: nil, entsize: 24},
		{name: ".dynstr", typ: SectionStringTable, data: dynstr},
		{name: ".symtab", typ: SectionSymbolTable, data: nil, entsize: 24},
		{name: ".strtab", typ: SectionStringTable, data: strtab},
		{name: ".shstrtab", typ: SectionStringTable, data: nil},
	}

	offsets := make([]uint64, len(sections))
	next := uint64(0x1000)
	index := func(name string) int {
		for i, s := range sections {
			if s.name == name {
				return i
			}
		}
		t.Fatalf("no test section %s", name)
		return -1
	}
	addrOf := func(name string) uint64 { return testImageBase + offsets[index(name)] }

	// First pass to fix offsets so section contents can reference addresses.
	assignOffsets := func() {
		next = 0x1000
		for i := range sections {
			if i == 0 {
				continue
			}
			offsets[i] = next
			next += uint64(len(sections[i].data))
			next = (next + 0xf) &^ 0xf
		}
	}
	assignOffsets()

	textAddr := addrOf(".text")
	finiAddr := addrOf(".fini")
	rodataAddr := addrOf(".rodata")

	sections[index(".symtab")].data = symbolBytes([]symbolEntry{
		{},
		{NameOffset: strOff["main.c"], Info: infoFile},
		{NameOffset: strOff["main"], Info: infoFunc, SectionIndex: uint16(index(".text")), Value: textAddr, Size: 16},
		{NameOffset: strOff["helper"], Info: infoFunc, SectionIndex: uint16(index(".text")), Value: textAddr + 16, Size: 8},
		{NameOffset: strOff["_fini"], Info: infoFunc, SectionIndex: uint16(index(".fini")), Value: finiAddr, Size: 0},
		{NameOffset: strOff["message"], Info: infoObject, SectionIndex: uint16(index(".rodata")), Value: rodataAddr, Size: 6},
	})
	sections[index(".dynsym")].data = symbolBytes([]symbolEntry{
		{},
		{NameOffset: dynOff["puts"], Info: infoFunc},
	})

	binary.LittleEndian.PutUint64(sections[index(".init_array")].data, textAddr)

	relaData := sections[index(".rela.plt")].data
	binary.LittleEndian.PutUint64(relaData[0:], 0x404018)
	binary.LittleEndian.PutUint64(relaData[8:], 1<<32|7) // symbol 1, type 7
	binary.LittleEndian.PutUint64(relaData[16:], textAddr+16)

	// .shstrtab content and section name offsets.
	var shstr bytes.Buffer
	shstr.WriteByte(0)
	nameOffsets := make([]uint32, len(sections))
	for i, s := range sections {
		if s.name == "" {
			continue
		}
		nameOffsets[i] = uint32(shstr.Len())
		shstr.WriteString(s.name)
		shstr.WriteByte(0)
	}
	sections[index(".shstrtab")].data = shstr.Bytes()
	assignOffsets()

	shoff := next
	image := make([]byte, shoff+uint64(len(sections))*64)
	for i, s := range sections {
		copy(image[offsets[i]:], s.data)
		sh := sectionHeader{
			NameOffset: nameOffsets[i],
			Type:       s.typ,
			Addr:       testImageBase + offsets[i],
			Offset:     offsets[i],
			Size:       uint64(len(s.data)),
			Entsize:    s.entsize,
		}
		if i == 0 {
			sh = sectionHeader{}
		}
		var buf bytes.Buffer
		binary.Write(&buf, binary.LittleEndian, sh)
		copy(image[int(shoff)+i*64:], buf.Bytes())
	}

	header := ImageHeader{
		Magic:             elfMagic,
		Class:             2,
		Data:              1,
		Version:           1,
		Type:              fileType,
		Machine:           0x3e,
		Version2:          1,
		Entry:             textAddr,
		SectionOff:        shoff,
		HeaderSize:        64,
		SectionEntrySize:  64,
		SectionEntryCount: uint16(len(sections)),
		SectionNameIndex:  uint16(index(".shstrtab")),
	}
	var hbuf bytes.Buffer
	binary.Write(&hbuf, binary.LittleEndian, header)
	copy(image, hbuf.Bytes())

	path := filepath.Join(t.TempDir(), "image")
	if err := os.WriteFile(path, image, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func openTestImage(t *testing.T) *Reader {
	t.Helper()
	r, err := Open(writeImage(t, TypeExec))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSectionRoundtrip(t *testing.T) {
	r := openTestImage(t)
	for _, want := range r.Sections() {
		got, err := r.Section(want.Name)
		if err != nil {
			t.Fatalf("Section(%q): %v", want.Name, err)
		}
		if got.Offset != want.Offset {
			t.Errorf("Section(%q).Offset = %#x, want %#x", want.Name, got.Offset, want.Offset)
		}
		data, err := r.SectionData(want.Name)
		if err != nil {
			t.Fatalf("SectionData(%q): %v", want.Name, err)
		}
		if uint64(len(data)) != want.Size {
			t.Errorf("SectionData(%q) length = %d, want %d", want.Name, len(data), want.Size)
		}
	}
}

func TestMissingSection(t *testing.T) {
	r := openTestImage(t)
	if _, err := r.Section(".nonexistent"); !errors.Is(err, ErrMissingSection) {
		t.Errorf("Section(.nonexistent) error = %v, want ErrMissingSection", err)
	}
	if _, err := r.SectionAt(100); !errors.Is(err, ErrBadSectionIndex) {
		t.Errorf("SectionAt(100) error = %v, want ErrBadSectionIndex", err)
	}
}

func TestSymbolLookup(t *testing.T) {
	r := openTestImage(t)
	sym, err := r.Symbol("main")
	if err != nil {
		t.Fatal(err)
	}
	if sym.Size != 16 || !sym.Type.IsFunc() {
		t.Errorf("Symbol(main) = %+v, want size 16 func", sym)
	}
	if _, err := r.Symbol("nope"); !errors.Is(err, ErrMissingSymbol) {
		t.Errorf("Symbol(nope) error = %v, want ErrMissingSymbol", err)
	}
}

func TestFunctionBytes(t *testing.T) {
	r := openTestImage(t)
	sym, err := r.Symbol("main")
	if err != nil {
		t.Fatal(err)
	}
	fn, err := r.Function("main")
	if err != nil {
		t.Fatal(err)
	}
	if fn.Size != sym.Size {
		t.Errorf("Function(main).Size = %d, want %d", fn.Size, sym.Size)
	}
	if uint64(len(fn.Opcodes)) != fn.Size {
		t.Errorf("len(Opcodes) = %d, want %d", len(fn.Opcodes), fn.Size)
	}
	if fn.Opcodes[0] != 0x55 || fn.Opcodes[10] != 0xc3 {
		t.Errorf("Function(main) opcodes = % x", fn.Opcodes)
	}
}

func TestKnownSizeOverride(t *testing.T) {
	r := openTestImage(t)
	fn, err := r.Function("_fini")
	if err != nil {
		t.Fatal(err)
	}
	if fn.Size != 0x0d {
		t.Errorf("Function(_fini).Size = %#x, want 0xd", fn.Size)
	}
	if len(fn.Opcodes) != 0x0d {
		t.Errorf("len(Opcodes) = %d, want 13", len(fn.Opcodes))
	}
}

func TestFunctionsResidency(t *testing.T) {
	r := openTestImage(t)
	functions, err := r.Functions()
	if err != nil {
		t.Fatal(err)
	}
	names := make(map[string]bool)
	for _, fn := range functions {
		names[fn.Name] = true
		if uint64(len(fn.Opcodes)) != fn.Size {
			t.Errorf("%s: len(Opcodes) = %d, want %d", fn.Name, len(fn.Opcodes), fn.Size)
		}
		resident := false
		for _, name := range []string{".text", ".init", ".fini"} {
			sect, err := r.Section(name)
			if err != nil {
				t.Fatal(err)
			}
			if sect.Contains(fn.Address, fn.Size) {
				resident = true
			}
		}
		if !resident {
			t.Errorf("%s at %#x is not resident in any code section", fn.Name, fn.Address)
		}
	}
	for _, want := range []string{"main", "helper"} {
		if !names[want] {
			t.Errorf("Functions() is missing %s", want)
		}
	}
	if names["message"] {
		t.Error("Functions() includes data symbol message")
	}
	if names["main.c"] {
		t.Error("Functions() includes file symbol main.c")
	}
}

func TestNonFileSymbols(t *testing.T) {
	r := openTestImage(t)
	for _, sym := range r.NonFileSymbols() {
		if sym.Type.IsFile() {
			t.Errorf("NonFileSymbols() includes file symbol %q", sym.Name)
		}
	}
}

func TestStringsScan(t *testing.T) {
	r := openTestImage(t)
	rodata, err := r.Section(".rodata")
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[string]uint64)
	for _, s := range r.Strings() {
		got[s.Value] = s.Address
	}
	if addr, ok := got["hello"]; !ok || addr != rodata.Addr {
		t.Errorf(`strings["hello"] = %#x, %v; want %#x`, addr, ok, rodata.Addr)
	}
	if addr, ok := got["0123456789abcdef"]; !ok || addr != rodata.Addr+6 {
		t.Errorf(`strings["0123456789abcdef"] = %#x, %v; want %#x`, addr, ok, rodata.Addr+6)
	}
	if _, ok := got["\x01bad"]; ok {
		t.Error("strings include a non-printable sequence")
	}
	if _, ok := got["   "]; ok {
		t.Error("strings include an all-whitespace sequence")
	}
}

func TestValidString(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"hello", true},
		{"two\nlines", true},
		{"   ", false},
		{"\t\n", false},
		{"\x01bad", false},
		{"ok then", true},
	}
	for _, tt := range tests {
		if got := validString([]byte(tt.in)); got != tt.want {
			t.Errorf("validString(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsPositionIndependent(t *testing.T) {
	fixed, err := Open(writeImage(t, TypeExec))
	if err != nil {
		t.Fatal(err)
	}
	defer fixed.Close()
	if fixed.IsPositionIndependent() {
		t.Error("fixed-load image reported position-independent")
	}
	pie, err := Open(writeImage(t, TypeShared))
	if err != nil {
		t.Fatal(err)
	}
	defer pie.Close()
	if !pie.IsPositionIndependent() {
		t.Error("shared image reported fixed-load")
	}
}

func TestRelaFunctions(t *testing.T) {
	r := openTestImage(t)
	functions, err := r.RelaFunctions()
	if err != nil {
		t.Fatal(err)
	}
	if len(functions) != 1 || functions[0].Name != "helper" {
		t.Fatalf("RelaFunctions() = %+v, want [helper]", functions)
	}
}

func TestFunctionsFromArraySection(t *testing.T) {
	r := openTestImage(t)
	functions, err := r.FunctionsFromArraySection(".init_array")
	if err != nil {
		t.Fatal(err)
	}
	if len(functions) != 1 || functions[0].Name != "main" {
		t.Fatalf("FunctionsFromArraySection(.init_array) = %+v, want [main]", functions)
	}
}

func TestPltAddressResolution(t *testing.T) {
	r := openTestImage(t)
	plt, err := r.Section(".plt")
	if err != nil {
		t.Fatal(err)
	}
	var puts *Symbol
	for _, sym := range r.DynamicSymbols() {
		if sym.Name == "puts" {
			s := sym
			puts = &s
		}
	}
	if puts == nil {
		t.Fatal("dynamic symbol puts not found")
	}
	// Relocation 0 names puts, so puts resolves to the first real PLT stub.
	if want := plt.Addr + 16; puts.Value != want {
		t.Errorf("puts.Value = %#x, want %#x", puts.Value, want)
	}
}

func TestSymbolTypePredicates(t *testing.T) {
	fn := SymbolType(infoFunc)
	if !fn.IsFunc() || fn.IsFile() || !fn.IsGlobal() {
		t.Errorf("infoFunc predicates wrong: %08b", fn)
	}
	file := SymbolType(infoFile)
	if !file.IsFile() || file.IsFunc() {
		t.Errorf("infoFile predicates wrong: %08b", file)
	}
	weak := SymbolType(BindWeak<<4 | KindObject)
	if !weak.IsWeak() || !weak.IsObject() {
		t.Errorf("weak object predicates wrong: %08b", weak)
	}
}

// TestBinLs exercises the reader against a real system binary when one with
// symbols is available.
func TestBinLs(t *testing.T) {
	r, err := Open("/bin/ls")
	if err != nil {
		t.Skipf("cannot parse /bin/ls: %v", err)
	}
	defer r.Close()
	sym, err := r.Symbol("main")
	if err != nil {
		t.Skipf("/bin/ls has no main symbol: %v", err)
	}
	fn, err := r.Function("main")
	if err != nil {
		t.Fatal(err)
	}
	if fn.Size != sym.Size {
		t.Errorf("Function(main).Size = %d, want %d", fn.Size, sym.Size)
	}
	functions, err := r.Functions()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range functions {
		if f.Name == "main" {
			found = true
		}
	}
	if !found {
		t.Error("Functions() does not contain main")
	}
}
