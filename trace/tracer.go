// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"golang.org/x/sys/unix"

	"elfscope.dev/elfscope/arch"
	"elfscope.dev/elfscope/elffile"
)

// ErrTraceeDied is returned when the wait after a single-step observes that
// the tracee exited or was killed by a signal.
var ErrTraceeDied = errors.New("tracee died")

// StackDepth is the number of 32-bit words recorded below the frame pointer
// at each step.
const StackDepth = 10

// StackSnapshot is the frame-pointer value at one step together with the
// words read at rbp, rbp-4, rbp-8, ...
type StackSnapshot struct {
	Rbp   uint64
	Words [StackDepth]uint32
}

// Arguments are the first three integer-argument registers captured when a
// function's entry breakpoint fired.
type Arguments struct {
	Rdi uint64
	Rsi uint64
	Rdx uint64
}

// Tracer drives one tracee step-by-step through observed functions. It is
// single-threaded; a sticky dead flag ends the observation once the tracee
// exits.
type Tracer struct {
	pid         int
	base        uint64
	breakpoints []*Breakpoint
	regs        []unix.PtraceRegs
	stacks      []StackSnapshot
	args        map[string]Arguments
	dead        bool
}

// Attach starts tracing the process and computes its load base: zero for
// fixed-load images, the start of the first mapped region otherwise. The
// pending attach stop is left for the first Step call to consume.
func Attach(pid int, positionIndependent bool) (*Tracer, error) {
	if err := unix.PtraceAttach(pid); err != nil {
		return nil, fmt.Errorf("ptrace attach pid %d: %w", pid, err)
	}
	t := &Tracer{pid: pid, args: make(map[string]Arguments)}
	if positionIndependent {
		base, ok, err := readLoadBase(pid)
		if err != nil {
			return nil, err
		}
		if !ok {
			t.dead = true
		}
		t.base = base
	}
	return t, nil
}

var mapsLine = regexp.MustCompile(`^([0-9a-f]+)-`)

func readLoadBase(pid int) (base uint64, ok bool, err error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return 0, false, fmt.Errorf("read maps: %w", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, false, scanner.Err()
	}
	return parseMapsLine(scanner.Text())
}

func parseMapsLine(line string) (base uint64, ok bool, err error) {
	m := mapsLine.FindStringSubmatch(line)
	if m == nil {
		return 0, false, nil
	}
	base, err = strconv.ParseUint(m[1], 16, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse maps line %q: %w", line, err)
	}
	return base, true, nil
}

// StepFunctions is the non-blocking step pump. The first stopped poll
// installs entry breakpoints for the given functions and resumes the tracee;
// each later poll that observes a hit records the function's arguments,
// steps past the trap and resumes. Callers poll repeatedly to observe many
// hits.
func (t *Tracer) StepFunctions(functions []elffile.Symbol) error {
	status, stopped, err := t.poll()
	if err != nil {
		return err
	}
	if t.dead || !stopped {
		return nil
	}
	if len(t.breakpoints) == 0 {
		for _, fn := range functions {
			bp, err := NewBreakpoint(t.pid, fn.Value)
			if err != nil {
				return err
			}
			t.breakpoints = append(t.breakpoints, bp)
		}
		return Cont(t.pid)
	}
	bp := t.hitBreakpoint(status)
	if bp == nil {
		return nil
	}
	if err := t.recordArguments(functions, bp.Addr()); err != nil {
		return err
	}
	if err := t.stepPast(bp); err != nil {
		return err
	}
	return Cont(t.pid)
}

// StepFunction observes one function per-instruction. Breakpoints go at the
// function entry and at every given call-site address; on a hit the tracer
// records steps for as long as the instruction pointer stays inside the
// function's byte range, then rearms and resumes.
func (t *Tracer) StepFunction(function elffile.Symbol, calls []uint64) error {
	status, stopped, err := t.poll()
	if err != nil {
		return err
	}
	if t.dead || !stopped {
		return nil
	}
	if len(t.breakpoints) == 0 {
		for _, addr := range append([]uint64{function.Value}, calls...) {
			bp, err := NewBreakpoint(t.pid, addr)
			if err != nil {
				return err
			}
			t.breakpoints = append(t.breakpoints, bp)
		}
		return Cont(t.pid)
	}
	bp := t.hitBreakpoint(status)
	if bp == nil {
		return nil
	}
	regs, err := GetRegs(t.pid)
	if err != nil {
		return err
	}
	regs.Rip--
	if err := SetRegs(t.pid, &regs); err != nil {
		return err
	}
	if err := bp.Clear(); err != nil {
		return err
	}
	for regs.Rip >= function.Value && regs.Rip <= function.Value+function.Size {
		if err := t.recordStep(); err != nil {
			return err
		}
		regs, err = GetRegs(t.pid)
		if err != nil {
			return err
		}
	}
	if err := bp.Install(); err != nil {
		return err
	}
	return Cont(t.pid)
}

// poll reaps the tracee's state without blocking. It reports whether the
// tracee is stopped and flips the dead flag when the child exited.
func (t *Tracer) poll() (unix.WaitStatus, bool, error) {
	if t.dead {
		return 0, false, nil
	}
	var status unix.WaitStatus
	n, err := unix.Wait4(t.pid, &status, unix.WNOHANG|unix.WUNTRACED, nil)
	if err != nil {
		return 0, false, fmt.Errorf("wait pid %d: %w", t.pid, err)
	}
	if n == 0 {
		return 0, false, nil
	}
	if status.Exited() {
		t.dead = true
	}
	return status, status.Stopped(), nil
}

func (t *Tracer) hitBreakpoint(status unix.WaitStatus) *Breakpoint {
	for _, bp := range t.breakpoints {
		if bp.Hit(status) {
			return bp
		}
	}
	return nil
}

// stepPast re-points the instruction pointer at the original byte, lifts the
// trap, records one step and rearms. The tracee is left stopped.
func (t *Tracer) stepPast(bp *Breakpoint) error {
	regs, err := GetRegs(t.pid)
	if err != nil {
		return err
	}
	regs.Rip--
	if err := SetRegs(t.pid, &regs); err != nil {
		return err
	}
	if err := bp.Clear(); err != nil {
		return err
	}
	if err := t.recordStep(); err != nil {
		return err
	}
	return bp.Install()
}

// recordStep pushes one register snapshot (instruction pointer rebased by the
// load base) and one stack snapshot, then single-steps and blocks until the
// tracee stops again.
func (t *Tracer) recordStep() error {
	regs, err := GetRegs(t.pid)
	if err != nil {
		return err
	}
	rebased := regs
	rebased.Rip -= t.base
	t.regs = append(t.regs, rebased)

	snap := StackSnapshot{Rbp: regs.Rbp}
	if regs.Rbp != 0 {
		for i := 0; i < StackDepth; i++ {
			word, err := PeekWord(t.pid, regs.Rbp-uint64(i*arch.AMD64.StackWordSize))
			if err != nil {
				return err
			}
			snap.Words[i] = uint32(word)
		}
	}
	t.stacks = append(t.stacks, snap)

	if err := SingleStep(t.pid); err != nil {
		return err
	}
	var status unix.WaitStatus
	if _, err := unix.Wait4(t.pid, &status, 0, nil); err != nil {
		return fmt.Errorf("wait pid %d: %w", t.pid, err)
	}
	if status.Exited() || status.Signaled() {
		t.dead = true
		return ErrTraceeDied
	}
	return nil
}

// recordArguments snapshots rdi, rsi, rdx under the function whose entry
// address was hit. A later hit of the same function overwrites the record.
func (t *Tracer) recordArguments(functions []elffile.Symbol, addr uint64) error {
	for _, fn := range functions {
		if fn.Value == addr {
			regs, err := GetRegs(t.pid)
			if err != nil {
				return err
			}
			t.args[fn.Name] = Arguments{Rdi: regs.Rdi, Rsi: regs.Rsi, Rdx: regs.Rdx}
			return nil
		}
	}
	return fmt.Errorf("no observed function at %#x", addr)
}

// Dead reports whether the tracee was seen to exit. The flag is sticky.
func (t *Tracer) Dead() bool { return t.dead }

// Pid returns the tracee's process id.
func (t *Tracer) Pid() int { return t.pid }

// Base returns the computed load base.
func (t *Tracer) Base() uint64 { return t.base }

// Registers returns the recorded register trace.
func (t *Tracer) Registers() []unix.PtraceRegs {
	return append([]unix.PtraceRegs(nil), t.regs...)
}

// Stacks returns the recorded stack trace.
func (t *Tracer) Stacks() []StackSnapshot {
	return append([]StackSnapshot(nil), t.stacks...)
}

// Arguments returns the recorded function-entry arguments keyed by function
// name.
func (t *Tracer) Arguments() map[string]Arguments {
	args := make(map[string]Arguments, len(t.args))
	for name, a := range t.args {
		args[name] = a
	}
	return args
}

// Close clears all breakpoints, best-effort, and abandons the tracee in
// whatever state it was last left in.
func (t *Tracer) Close() {
	for _, bp := range t.breakpoints {
		bp.Close()
	}
	t.breakpoints = nil
}

// Detach resumes normal execution of the tracee and stops tracing it. Call
// after Close when the target should keep running.
func (t *Tracer) Detach() error {
	if err := unix.PtraceDetach(t.pid); err != nil {
		return fmt.Errorf("ptrace detach pid %d: %w", t.pid, err)
	}
	return nil
}
