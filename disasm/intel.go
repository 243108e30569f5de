// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package disasm

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// formatArgs renders an instruction's operands in Intel syntax: registers
// lowercase, immediates in hex, relative branch targets as absolute hex
// addresses, memory operands bracketed with spaced signs.
func formatArgs(inst x86asm.Inst, addr uint64) string {
	var parts []string
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		parts = append(parts, formatArg(arg, inst, addr))
	}
	return strings.Join(parts, ", ")
}

func formatArg(arg x86asm.Arg, inst x86asm.Inst, addr uint64) string {
	switch a := arg.(type) {
	case x86asm.Reg:
		return strings.ToLower(a.String())
	case x86asm.Imm:
		return formatInt(int64(a))
	case x86asm.Rel:
		return fmt.Sprintf("%#x", addr+uint64(inst.Len)+uint64(int64(a)))
	case x86asm.Mem:
		return formatMem(a)
	}
	return strings.ToLower(arg.String())
}

// formatMem renders a memory operand. A RIP-relative operand always carries
// an explicit displacement, zero included, so resolvers see a uniform shape.
func formatMem(m x86asm.Mem) string {
	var b strings.Builder
	if m.Segment != 0 {
		b.WriteString(strings.ToLower(m.Segment.String()))
		b.WriteByte(':')
	}
	b.WriteByte('[')
	hasBase := false
	if m.Base != 0 {
		b.WriteString(strings.ToLower(m.Base.String()))
		hasBase = true
	}
	if m.Index != 0 {
		if hasBase {
			b.WriteString(" + ")
		}
		fmt.Fprintf(&b, "%s*%d", strings.ToLower(m.Index.String()), m.Scale)
		hasBase = true
	}
	// Displacements relative to a register are at most 32 bits and
	// sign-extended.
	disp := int64(int32(m.Disp))
	switch {
	case m.Base == x86asm.RIP:
		if disp == 0 {
			b.WriteString(" + 0")
		} else {
			b.WriteString(signedDisp(disp))
		}
	case !hasBase:
		fmt.Fprintf(&b, "%#x", uint64(m.Disp))
	case disp != 0:
		b.WriteString(signedDisp(disp))
	}
	b.WriteByte(']')
	return b.String()
}

func signedDisp(disp int64) string {
	if disp < 0 {
		return fmt.Sprintf(" - %#x", -disp)
	}
	return fmt.Sprintf(" + %#x", disp)
}

func formatInt(v int64) string {
	if v < 0 {
		return fmt.Sprintf("-%#x", -v)
	}
	return fmt.Sprintf("%#x", v)
}
