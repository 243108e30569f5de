// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package trace attaches to a running process and observes execution of
// selected functions by installing software breakpoints and single-stepping,
// recording registers, stack snapshots and call arguments.
//
// If the tracing program is multi-threaded, every call into one Tracer must
// come from the OS thread that attached to the tracee; lock the goroutine
// with runtime.LockOSThread before attaching.
package trace

import (
	"fmt"

	"golang.org/x/sys/unix"

	"elfscope.dev/elfscope/arch"
)

// GetRegs reads the tracee's full register snapshot.
func GetRegs(pid int) (unix.PtraceRegs, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return regs, fmt.Errorf("ptrace getregs pid %d: %w", pid, err)
	}
	return regs, nil
}

// SetRegs writes the tracee's registers.
func SetRegs(pid int, regs *unix.PtraceRegs) error {
	if err := unix.PtraceSetRegs(pid, regs); err != nil {
		return fmt.Errorf("ptrace setregs pid %d: %w", pid, err)
	}
	return nil
}

// PeekWord reads one 64-bit word of tracee memory.
func PeekWord(pid int, addr uint64) (uint64, error) {
	var buf [8]byte
	n, err := unix.PtracePeekText(pid, uintptr(addr), buf[:])
	if err != nil {
		return 0, fmt.Errorf("ptrace peek pid %d addr %#x: %w", pid, addr, err)
	}
	if n != len(buf) {
		return 0, fmt.Errorf("ptrace peek pid %d addr %#x: got %d bytes, want %d", pid, addr, n, len(buf))
	}
	return arch.AMD64.ByteOrder.Uint64(buf[:]), nil
}

// PokeWord writes one 64-bit word of tracee memory.
func PokeWord(pid int, addr uint64, word uint64) error {
	var buf [8]byte
	arch.AMD64.ByteOrder.PutUint64(buf[:], word)
	n, err := unix.PtracePokeText(pid, uintptr(addr), buf[:])
	if err != nil {
		return fmt.Errorf("ptrace poke pid %d addr %#x: %w", pid, addr, err)
	}
	if n != len(buf) {
		return fmt.Errorf("ptrace poke pid %d addr %#x: wrote %d bytes, want %d", pid, addr, n, len(buf))
	}
	return nil
}

// SingleStep advances the stopped tracee by one instruction.
func SingleStep(pid int) error {
	if err := unix.PtraceSingleStep(pid); err != nil {
		return fmt.Errorf("ptrace singlestep pid %d: %w", pid, err)
	}
	return nil
}

// Cont resumes the stopped tracee.
func Cont(pid int) error {
	if err := unix.PtraceCont(pid, 0); err != nil {
		return fmt.Errorf("ptrace cont pid %d: %w", pid, err)
	}
	return nil
}
