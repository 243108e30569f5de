// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elffile reads the on-disk image of a 64-bit ELF executable and
// serves typed queries over its symbolic structure: sections, symbols,
// embedded strings and functions.
//
// A Reader keeps its file open for its whole lifetime and is not safe for
// concurrent use; confine each instance to one goroutine.
package elffile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"elfscope.dev/elfscope/arch"
)

var (
	ErrMissingSection  = errors.New("missing section")
	ErrMissingSymbol   = errors.New("missing symbol")
	ErrBadSectionIndex = errors.New("section index out of bounds")
)

// Reader parses an ELF image on construction and answers queries about it.
type Reader struct {
	f        *os.File
	path     string
	header   ImageHeader
	sections []Section
	statics  []Symbol
	dynamics []Symbol
	strings  []EmbeddedString
}

// Open opens the named image and parses its header, section table, symbol
// tables and embedded strings.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	r := &Reader{f: f, path: path}
	if err := r.parse(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func (r *Reader) parse() error {
	if err := binary.Read(io.NewSectionReader(r.f, 0, 64), arch.AMD64.ByteOrder, &r.header); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if !r.header.Valid() {
		return errors.New("bad magic, not an ELF image")
	}
	if err := r.readSections(); err != nil {
		return err
	}
	var err error
	r.statics, err = r.readSymbols(symtabSectionName, strtabSectionName)
	if err != nil {
		return err
	}
	if r.SectionExists(dynsymSectionName) {
		r.dynamics, err = r.readSymbols(dynsymSectionName, dynstrSectionName)
		if err != nil {
			return err
		}
		r.resolvePltAddresses()
	}
	r.strings, err = r.scanStrings()
	return err
}

func (r *Reader) readSections() error {
	h := &r.header
	raw := make([]byte, int(h.SectionEntryCount)*int(h.SectionEntrySize))
	if _, err := r.f.ReadAt(raw, int64(h.SectionOff)); err != nil {
		return fmt.Errorf("read section table: %w", err)
	}
	headers := make([]sectionHeader, h.SectionEntryCount)
	for i := range headers {
		entry := raw[i*int(h.SectionEntrySize):]
		if err := binary.Read(bytes.NewReader(entry), arch.AMD64.ByteOrder, &headers[i]); err != nil {
			return fmt.Errorf("read section entry %d: %w", i, err)
		}
	}
	if int(h.SectionNameIndex) >= len(headers) {
		return fmt.Errorf("section name table index %d: %w", h.SectionNameIndex, ErrBadSectionIndex)
	}
	names := headers[h.SectionNameIndex]
	r.sections = make([]Section, len(headers))
	for i, sh := range headers {
		name, err := r.cstring(int64(names.Offset) + int64(sh.NameOffset))
		if err != nil {
			return fmt.Errorf("read section name %d: %w", i, err)
		}
		r.sections[i] = Section{
			Name:      name,
			Type:      sh.Type,
			Flags:     sh.Flags,
			Addr:      sh.Addr,
			Offset:    sh.Offset,
			Size:      sh.Size,
			Link:      sh.Link,
			Info:      sh.Info,
			Addralign: sh.Addralign,
			Entsize:   sh.Entsize,
		}
	}
	return nil
}

// readSymbols walks one symbol table a fixed-size record at a time until the
// section's byte range is exhausted, pairing each record with its name from
// the given string table.
func (r *Reader) readSymbols(tableName, stringsName string) ([]Symbol, error) {
	table, err := r.Section(tableName)
	if err != nil {
		return nil, err
	}
	strtab, err := r.Section(stringsName)
	if err != nil {
		return nil, err
	}
	raw, err := r.sectionBytes(table)
	if err != nil {
		return nil, err
	}
	entsize := int(table.Entsize)
	if entsize == 0 {
		entsize = binary.Size(symbolEntry{})
	}
	var symbols []Symbol
	for off := 0; off+entsize <= len(raw); off += entsize {
		var entry symbolEntry
		if err := binary.Read(bytes.NewReader(raw[off:]), arch.AMD64.ByteOrder, &entry); err != nil {
			return nil, fmt.Errorf("read %s entry at %#x: %w", tableName, off, err)
		}
		name, err := r.cstring(int64(strtab.Offset) + int64(entry.NameOffset))
		if err != nil {
			return nil, fmt.Errorf("read symbol name: %w", err)
		}
		symbols = append(symbols, Symbol{
			Name:         name,
			Type:         SymbolType(entry.Info),
			SectionIndex: entry.SectionIndex,
			Value:        entry.Value,
			Size:         entry.Size,
		})
	}
	return symbols, nil
}

// resolvePltAddresses assigns each PLT-resolved import its stub address, so
// that zero-valued dynamic symbols resolve during disassembly. The i-th
// .rela.plt entry names the dynamic symbol reached through the i-th PLT stub.
func (r *Reader) resolvePltAddresses() {
	relas, err := r.Relocations()
	if err != nil {
		return
	}
	var stub func(i int) uint64
	if sec, err := r.Section(pltSecSectionName); err == nil {
		entsize := sec.Entsize
		if entsize == 0 {
			entsize = 16
		}
		stub = func(i int) uint64 { return sec.Addr + uint64(i)*entsize }
	} else if plt, err := r.Section(pltSectionName); err == nil {
		// The first .plt entry is the resolver trampoline; stubs follow.
		stub = func(i int) uint64 { return plt.Addr + uint64(i+1)*16 }
	} else {
		return
	}
	for i, rel := range relas {
		j := int(rel.SymbolIndex)
		if j < len(r.dynamics) && r.dynamics[j].Value == 0 {
			r.dynamics[j].Value = stub(i)
		}
	}
}

// Relocations returns the records of the PLT relocation section.
func (r *Reader) Relocations() ([]Relocation, error) {
	sect, err := r.Section(relaPltSectionName)
	if err != nil {
		return nil, err
	}
	raw, err := r.sectionBytes(sect)
	if err != nil {
		return nil, err
	}
	const recordSize = 24
	var relas []Relocation
	for off := 0; off+recordSize <= len(raw); off += recordSize {
		bo := arch.AMD64.ByteOrder
		info := bo.Uint64(raw[off+8:])
		relas = append(relas, Relocation{
			Offset:          bo.Uint64(raw[off:]),
			Type:            uint32(info),
			SymbolIndex:     uint32(info >> 32),
			FunctionAddress: bo.Uint64(raw[off+16:]),
		})
	}
	return relas, nil
}

// cstring reads a NUL-terminated byte sequence at the given file offset.
func (r *Reader) cstring(off int64) (string, error) {
	br := bufio.NewReader(io.NewSectionReader(r.f, off, 1<<20))
	s, err := br.ReadString(0)
	if err != nil && err != io.EOF {
		return "", err
	}
	return trimNul(s), nil
}

func trimNul(s string) string {
	if len(s) > 0 && s[len(s)-1] == 0 {
		return s[:len(s)-1]
	}
	return s
}

func (r *Reader) sectionBytes(sect Section) ([]byte, error) {
	buf := make([]byte, sect.Size)
	if _, err := r.f.ReadAt(buf, int64(sect.Offset)); err != nil {
		return nil, fmt.Errorf("read section %s: %w", sect.Name, err)
	}
	return buf, nil
}

// Header returns the parsed image header.
func (r *Reader) Header() ImageHeader { return r.header }

// Sections returns a copy of the parsed section table.
func (r *Reader) Sections() []Section { return append([]Section(nil), r.sections...) }

// StaticSymbols returns a copy of the .symtab symbols.
func (r *Reader) StaticSymbols() []Symbol { return append([]Symbol(nil), r.statics...) }

// DynamicSymbols returns a copy of the .dynsym symbols, nil when the image
// has no dynamic symbol table.
func (r *Reader) DynamicSymbols() []Symbol { return append([]Symbol(nil), r.dynamics...) }

// Strings returns a copy of the embedded strings scanned from .rodata.
func (r *Reader) Strings() []EmbeddedString { return append([]EmbeddedString(nil), r.strings...) }

// IsPositionIndependent reports whether the image must be rebased at load time.
func (r *Reader) IsPositionIndependent() bool { return r.header.Type == TypeShared }

// Path returns the file name the reader was opened with.
func (r *Reader) Path() string { return r.path }

// Section returns the named section.
func (r *Reader) Section(name string) (Section, error) {
	for _, sect := range r.sections {
		if sect.Name == name {
			return sect, nil
		}
	}
	return Section{}, fmt.Errorf("%w: %s", ErrMissingSection, name)
}

// SectionAt returns the section at the given table index.
func (r *Reader) SectionAt(index int) (Section, error) {
	if index < 0 || index >= len(r.sections) {
		return Section{}, fmt.Errorf("%w: %d", ErrBadSectionIndex, index)
	}
	return r.sections[index], nil
}

// SectionIndex returns the table index of the named section.
func (r *Reader) SectionIndex(name string) (int, error) {
	for i, sect := range r.sections {
		if sect.Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrMissingSection, name)
}

// SectionExists reports whether the named section is present.
func (r *Reader) SectionExists(name string) bool {
	_, err := r.Section(name)
	return err == nil
}

// SectionData reads the named section's raw bytes.
func (r *Reader) SectionData(name string) ([]byte, error) {
	sect, err := r.Section(name)
	if err != nil {
		return nil, err
	}
	return r.sectionBytes(sect)
}

// Symbol returns the first static symbol with the given name.
func (r *Reader) Symbol(name string) (Symbol, error) {
	for _, sym := range r.statics {
		if sym.Name == name {
			return sym, nil
		}
	}
	return Symbol{}, fmt.Errorf("%w: %s", ErrMissingSymbol, name)
}

// NonFileSymbols returns all static symbols that are not file symbols.
func (r *Reader) NonFileSymbols() []Symbol {
	var symbols []Symbol
	for _, sym := range r.statics {
		if !sym.Type.IsFile() {
			symbols = append(symbols, sym)
		}
	}
	return symbols
}

// Close releases the underlying file. Queries that read from the image fail
// after Close.
func (r *Reader) Close() error { return r.f.Close() }
