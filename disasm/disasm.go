// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm decodes x86-64 machine code into annotated Intel-syntax
// instruction lines. Call targets and RIP-relative loads are resolved against
// the image's symbol tables and embedded strings.
package disasm

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"elfscope.dev/elfscope/elffile"
)

// ErrParse is wrapped by errors from instruction decoding.
var ErrParse = errors.New("disassemble parse failed")

// Line is one decoded instruction. Operands carries the formatted operand
// string, possibly with a trailing resolved-reference comment.
type Line struct {
	Opcodes  []byte
	Mnemonic string
	Operands string
	Address  uint64
	IsJump   bool
}

// jumpMnemonics is the set of mnemonics classified as jumps.
var jumpMnemonics = map[string]bool{
	"jmp": true,
	"je":  true,
	"jne": true,
	"jg":  true,
	"jl":  true,
	"jge": true,
	"jle": true,
}

var (
	hexLiteral = regexp.MustCompile(`^0x[0-9a-f]+$`)
	ripOperand = regexp.MustCompile(`\[rip ([+-]) 0x([0-9a-f]+)\]`)
)

// Disassembler resolves decoded instructions against build-once
// address-keyed maps of the image's symbols and strings.
type Disassembler struct {
	statics  map[uint64]string
	dynamics map[uint64]string
	strings  map[uint64]string
}

// New returns a Disassembler that resolves references against the given
// tables. For duplicate addresses the first entry wins.
func New(statics, dynamics []elffile.Symbol, strings []elffile.EmbeddedString) *Disassembler {
	d := &Disassembler{
		statics:  make(map[uint64]string, len(statics)),
		dynamics: make(map[uint64]string, len(dynamics)),
		strings:  make(map[uint64]string, len(strings)),
	}
	for _, sym := range statics {
		if _, ok := d.statics[sym.Value]; !ok {
			d.statics[sym.Value] = sym.Name
		}
	}
	for _, sym := range dynamics {
		if _, ok := d.dynamics[sym.Value]; !ok {
			d.dynamics[sym.Value] = sym.Name
		}
	}
	for _, s := range strings {
		if _, ok := d.strings[s.Address]; !ok {
			d.strings[s.Address] = s.Value
		}
	}
	return d
}

// Disassemble decodes buf, whose first byte lives at base, into instruction
// lines. The concatenation of the lines' opcode bytes equals buf.
func (d *Disassembler) Disassemble(buf []byte, base uint64) ([]Line, error) {
	var lines []Line
	for off := 0; off < len(buf); {
		inst, err := x86asm.Decode(buf[off:], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: at %#x: %v", ErrParse, base+uint64(off), err)
		}
		addr := base + uint64(off)
		mnemonic := strings.ToLower(inst.Op.String())
		operands := formatArgs(inst, addr)
		comment := d.comment(mnemonic, operands, addr+uint64(inst.Len))
		opcodes := make([]byte, inst.Len)
		copy(opcodes, buf[off:off+inst.Len])
		lines = append(lines, Line{
			Opcodes:  opcodes,
			Mnemonic: mnemonic,
			Operands: operands + comment,
			Address:  addr,
			IsJump:   jumpMnemonics[mnemonic],
		})
		off += inst.Len
	}
	return lines, nil
}

// comment generates the resolved-reference annotation for one instruction.
// next is the address of the following instruction.
func (d *Disassembler) comment(mnemonic, operands string, next uint64) string {
	switch {
	case strings.HasPrefix(mnemonic, "call") && hexLiteral.MatchString(operands):
		target, err := strconv.ParseUint(operands[2:], 16, 64)
		if err != nil {
			return ""
		}
		return d.resolveSymbol(target)
	case strings.HasPrefix(mnemonic, "lea"):
		return d.resolveAddress(next + uint64(displacement(operands)))
	}
	return ""
}

// resolveSymbol looks the address up in the static table, then the dynamic
// table. Static symbols win over dynamic.
func (d *Disassembler) resolveSymbol(addr uint64) string {
	if name, ok := d.statics[addr]; ok {
		return " <" + name + ">"
	}
	if name, ok := d.dynamics[addr]; ok {
		return " <" + name + "/external>"
	}
	return ""
}

// resolveAddress resolves a load target: symbol tables win over strings,
// strings win over the bare numeric fallback.
func (d *Disassembler) resolveAddress(addr uint64) string {
	if sym := d.resolveSymbol(addr); sym != "" {
		return sym
	}
	if s, ok := d.strings[addr]; ok {
		return ` "` + truncate(s) + `"`
	}
	return fmt.Sprintf(" %d", addr)
}

const maxStringSize = 15

func truncate(s string) string {
	if len(s) > maxStringSize {
		return s[:maxStringSize-3] + "..."
	}
	return s
}

// displacement extracts the signed RIP-relative displacement from an operand
// string, zero when the operand is not RIP-relative.
func displacement(operands string) int64 {
	m := ripOperand.FindStringSubmatch(operands)
	if m == nil {
		return 0
	}
	disp, err := strconv.ParseInt(m[2], 16, 64)
	if err != nil {
		return 0
	}
	if m[1] == "-" {
		disp = -disp
	}
	return disp
}
