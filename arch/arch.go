// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package arch contains architecture-specific definitions.
package arch

import (
	"encoding/binary"
)

// Architecture defines the architecture-specific details for a given machine.
type Architecture struct {
	// BreakpointSize is the size of a breakpoint instruction, in bytes.
	BreakpointSize int
	// PointerSize is the size of a pointer, in bytes.
	PointerSize int
	// StackWordSize is the size of one recorded stack element, in bytes.
	StackWordSize int
	// ByteOrder is the byte order for ints and pointers.
	ByteOrder binary.ByteOrder
	// BreakpointInstr is the trap opcode. After the CPU executes it, the
	// instruction pointer sits one byte past the patched address.
	BreakpointInstr byte
}

// PatchWord returns word with its least-significant byte replaced by the trap
// opcode. The remaining bytes preserve the original word.
func (a *Architecture) PatchWord(word uint64) uint64 {
	return (word &^ 0xFF) | uint64(a.BreakpointInstr)
}

func (a *Architecture) Uintptr(buf []byte) uint64 {
	if len(buf) != a.PointerSize {
		panic("bad PointerSize")
	}
	return a.ByteOrder.Uint64(buf)
}

var AMD64 = Architecture{
	BreakpointSize:  1,
	PointerSize:     8,
	StackWordSize:   4,
	ByteOrder:       binary.LittleEndian,
	BreakpointInstr: 0xCC, // INT 3
}
