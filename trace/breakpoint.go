// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

import (
	"golang.org/x/sys/unix"

	"elfscope.dev/elfscope/arch"
)

// Breakpoint owns one installed software breakpoint at a tracee address. The
// word originally at the address is captured before the trap is written and
// restored on Clear.
type Breakpoint struct {
	pid  int
	addr uint64
	orig uint64
}

// NewBreakpoint captures the word at addr and installs the breakpoint.
func NewBreakpoint(pid int, addr uint64) (*Breakpoint, error) {
	orig, err := PeekWord(pid, addr)
	if err != nil {
		return nil, err
	}
	b := &Breakpoint{pid: pid, addr: addr, orig: orig}
	if err := b.Install(); err != nil {
		return nil, err
	}
	return b, nil
}

// Install rewrites the target word so its least-significant byte is the trap
// opcode while the remaining bytes preserve the original word.
func (b *Breakpoint) Install() error {
	return PokeWord(b.pid, b.addr, arch.AMD64.PatchWord(b.orig))
}

// Clear restores the original word verbatim.
func (b *Breakpoint) Clear() error {
	return PokeWord(b.pid, b.addr, b.orig)
}

// Installed reads the target word and reports whether it differs from the
// saved original.
func (b *Breakpoint) Installed() (bool, error) {
	word, err := PeekWord(b.pid, b.addr)
	if err != nil {
		return false, err
	}
	return word != b.orig, nil
}

// Hit reports whether the tracee is stopped with its instruction pointer one
// byte past the trap, i.e. this breakpoint fired.
func (b *Breakpoint) Hit(status unix.WaitStatus) bool {
	if !status.Stopped() {
		return false
	}
	regs, err := GetRegs(b.pid)
	if err != nil {
		return false
	}
	return b.hitAt(regs.Rip)
}

func (b *Breakpoint) hitAt(rip uint64) bool {
	return rip == b.addr+uint64(arch.AMD64.BreakpointSize)
}

// Addr returns the tracee address the breakpoint patches.
func (b *Breakpoint) Addr() uint64 { return b.addr }

// Close clears the breakpoint, best-effort, and inerts the receiver so a
// second Close cannot touch the tracee.
func (b *Breakpoint) Close() {
	if b.pid == 0 {
		return
	}
	b.Clear()
	b.pid = 0
}
