// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elffile

import (
	"fmt"

	"elfscope.dev/elfscope/arch"
)

// Function is a symbol materialised with its raw opcode bytes.
type Function struct {
	Name    string
	Address uint64
	Size    uint64
	Opcodes []byte
}

// knownSizes overrides the recorded size of compiler-emitted helpers whose
// symbols carry size zero.
var knownSizes = map[string]uint64{
	"__do_global_dtors_aux": 0x40,
	"frame_dummy":           0x40,
	"register_tm_clones":    0x40,
	"deregister_tm_clones":  0x40,
	"_fini":                 0x0d,
	"_init":                 0x1b,
	"__restore_rt":          0x09,
}

// Function materialises the named static symbol by reading its bytes from
// the section it resides in.
func (r *Reader) Function(name string) (Function, error) {
	sym, err := r.Symbol(name)
	if err != nil {
		return Function{}, err
	}
	return r.functionFromSymbol(sym)
}

func (r *Reader) functionFromSymbol(sym Symbol) (Function, error) {
	sect, err := r.SectionAt(int(sym.SectionIndex))
	if err != nil {
		return Function{}, err
	}
	size := sym.Size
	if known, ok := knownSizes[sym.Name]; ok {
		size = known
	}
	buf := make([]byte, size)
	off := int64(sect.Offset + sym.Value - sect.Addr)
	if _, err := r.f.ReadAt(buf, off); err != nil {
		return Function{}, fmt.Errorf("read function %s: %w", sym.Name, err)
	}
	return Function{Name: sym.Name, Address: sym.Value, Size: size, Opcodes: buf}, nil
}

// Functions materialises every static symbol resident in the .text, .init or
// .fini section.
func (r *Reader) Functions() ([]Function, error) {
	var code []Section
	for _, name := range []string{textSectionName, initSectionName, finiSectionName} {
		sect, err := r.Section(name)
		if err != nil {
			return nil, err
		}
		code = append(code, sect)
	}
	var functions []Function
	for _, sym := range r.statics {
		for i := range code {
			if !code[i].Contains(sym.Value, sym.Size) {
				continue
			}
			fn, err := r.functionFromSymbol(sym)
			if err != nil {
				return nil, err
			}
			functions = append(functions, fn)
			break
		}
	}
	return functions, nil
}

// RelaFunctions walks the PLT relocation section and returns the functions
// whose addresses the relocation entries record.
func (r *Reader) RelaFunctions() ([]Function, error) {
	functions, err := r.Functions()
	if err != nil {
		return nil, err
	}
	relas, err := r.Relocations()
	if err != nil {
		return nil, err
	}
	var matched []Function
	for _, rel := range relas {
		for _, fn := range functions {
			if fn.Address == rel.FunctionAddress {
				matched = append(matched, fn)
				break
			}
		}
	}
	return matched, nil
}

// FunctionsFromArraySection walks a section of 8-byte addresses, such as
// .init_array or .fini_array, and returns the functions at those addresses.
func (r *Reader) FunctionsFromArraySection(name string) ([]Function, error) {
	raw, err := r.SectionData(name)
	if err != nil {
		return nil, err
	}
	functions, err := r.Functions()
	if err != nil {
		return nil, err
	}
	ptr := arch.AMD64.PointerSize
	var matched []Function
	for off := 0; off+ptr <= len(raw); off += ptr {
		addr := arch.AMD64.ByteOrder.Uint64(raw[off:])
		for _, fn := range functions {
			if fn.Address == addr {
				matched = append(matched, fn)
				break
			}
		}
	}
	return matched, nil
}
