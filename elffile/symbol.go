// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elffile

// symbolEntry is the on-disk symbol table record (Elf64_Sym).
type symbolEntry struct {
	NameOffset   uint32
	Info         uint8
	Other        uint8
	SectionIndex uint16
	Value        uint64
	Size         uint64
}

// SymbolType packs a symbol's kind in its low nibble and its binding in the
// high nibble, exactly as the info byte is encoded on disk.
type SymbolType uint8

// Symbol kinds (low nibble).
const (
	KindNoType  = 0
	KindObject  = 1
	KindFunc    = 2
	KindSection = 3
	KindFile    = 4
)

// Symbol bindings (high nibble).
const (
	BindLocal  = 0
	BindGlobal = 1
	BindWeak   = 2
)

// Kind returns the symbol kind sub-field.
func (t SymbolType) Kind() uint8 { return uint8(t) & 0xf }

// Binding returns the symbol binding sub-field.
func (t SymbolType) Binding() uint8 { return uint8(t) >> 4 }

func (t SymbolType) IsFunc() bool   { return t.Kind() == KindFunc }
func (t SymbolType) IsFile() bool   { return t.Kind() == KindFile }
func (t SymbolType) IsObject() bool { return t.Kind() == KindObject }
func (t SymbolType) IsWeak() bool   { return t.Binding() == BindWeak }
func (t SymbolType) IsGlobal() bool { return t.Binding() == BindGlobal }

// Symbol is a named entry of a symbol table. Value is a virtual address for
// executables and a relative offset otherwise.
type Symbol struct {
	Name         string
	Type         SymbolType
	SectionIndex uint16
	Value        uint64
	Size         uint64
}

// Relocation is one .rela.plt record (Elf64_Rela). FunctionAddress is the
// addend field: the virtual address of the function the entry relocates.
type Relocation struct {
	Offset          uint64
	Type            uint32
	SymbolIndex     uint32
	FunctionAddress uint64
}
