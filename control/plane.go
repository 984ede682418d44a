// Package control implements the Go-native control plane a host uses to
// observe and drive a vmcore.Core from outside: a status/control bitfield,
// validated register access, and windowed views into program/data memory
// (SPEC_FULL.md §6A). It is the one place untrusted host-supplied indices
// get bounds-checked before reaching vmcore.Core's panicking Reg/SetReg.
package control

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/oisee/ebpfvm/vmcore"
)

// Status bit positions, per SPEC_FULL.md §6A.
const (
	StatusResetReleased uint8 = 1 << 0
	StatusHalt          uint8 = 1 << 1
	StatusError         uint8 = 1 << 2
	StatusDebugEnabled  uint8 = 1 << 7
)

// Control bit positions accepted by WriteCtl.
const (
	CtlResetRelease uint8 = 1 << 0
)

// Plane wraps a *vmcore.Core with a bounds-checked, host-facing API modeled
// on the control/status register file SPEC_FULL.md §6A spells out: a
// reset-release bit a host toggles to start a run, a status bitfield it
// polls, and paged memory windows. It exists so cmd/ebpfvm (§11) and batch
// (§12) have one stable, testable surface instead of poking at
// vmcore.Core fields directly.
type Plane struct {
	core     *vmcore.Core
	maxTicks uint64

	resetReleased bool
	debugEnabled  bool
	pendingInputs [5]uint64

	ticks atomic.Uint64
}

// New wraps core in a Plane. maxTicks bounds the run a reset-release edge
// starts (0 = unlimited), matching the budget a caller would otherwise pass
// to Core.RunToCompletion directly.
func New(core *vmcore.Core, maxTicks uint64) *Plane {
	return &Plane{core: core, maxTicks: maxTicks}
}

// SetDebugEnabled toggles the debug-enabled status bit (bit 7). In debug
// mode a reset-release edge executes exactly one instruction instead of
// running to completion, and each subsequent WriteCtl(1) while already
// released steps one more instruction — the host-driven single-step mode
// cmd/ebpfvm's step subcommand uses. The bitfield has no write-side bit
// of its own for this (SPEC_FULL.md §6A only documents bit 0 as writable),
// so it is a dedicated setter rather than part of WriteCtl's argument.
func (p *Plane) SetDebugEnabled(enabled bool) {
	p.debugEnabled = enabled
}

// Status reports the bitfield SPEC_FULL.md §6A documents: bit 0 =
// reset-released, bit 1 = halt, bit 2 = error, bit 7 = debug-enabled.
func (p *Plane) Status() uint8 {
	var s uint8
	if p.resetReleased {
		s |= StatusResetReleased
	}
	if p.core.Halted() {
		s |= StatusHalt
	}
	if p.core.Fault() != nil {
		s |= StatusError
	}
	if p.debugEnabled {
		s |= StatusDebugEnabled
	}
	return s
}

// sync refreshes the atomic tick mirror from the underlying core.
func (p *Plane) sync() {
	p.ticks.Store(p.core.Ticks())
}

// Ticks returns the retired-instruction count since the last reset-release.
func (p *Plane) Ticks() uint64 {
	p.sync()
	return p.ticks.Load()
}

// IP returns the current instruction pointer.
func (p *Plane) IP() uint32 {
	return p.core.IP()
}

// WriteCtl feeds one control byte to the core, per SPEC_FULL.md §6A: bit 0
// is reset-release (0 = hold reset, 1 = run). A 0->1 transition is a reset
// edge — the core is reset, then execution starts: to completion in normal
// mode, or one instruction in debug mode (see SetDebugEnabled). While
// already released in debug mode, a further WriteCtl(1) steps one more
// instruction without re-triggering the reset edge. Writing 0 holds the
// core in reset until the next release.
func (p *Plane) WriteCtl(v uint8) error {
	released := v&CtlResetRelease != 0
	if !released {
		p.resetReleased = false
		return nil
	}

	if !p.resetReleased {
		p.core.Reset()
		p.resetReleased = true
		if p.debugEnabled {
			return p.core.Step()
		}
		return p.core.RunToCompletion(context.Background(), p.maxTicks)
	}

	if p.debugEnabled {
		return p.core.Step()
	}
	return nil
}

// ReadReg reads register i (0..10), returning an error instead of
// panicking for an out-of-range index — the validation vmcore.Core itself
// deliberately omits (see Core.Reg's doc comment).
func (p *Plane) ReadReg(i int) (uint64, error) {
	if i < 0 || i >= vmcore.NumRegisters {
		return 0, &InvalidIndexError{Index: i, Limit: vmcore.NumRegisters}
	}
	return p.core.Reg(i), nil
}

// WriteReg writes register i (0..10), returning an error instead of
// panicking for an out-of-range index. Per SPEC_FULL.md §6A, writes to
// R1..R5 are latched as the seed inputs applied on the next reset-release
// rather than taking effect on the live register immediately; writes to
// every other register apply directly.
func (p *Plane) WriteReg(i int, v uint64) error {
	if i < 0 || i >= vmcore.NumRegisters {
		return &InvalidIndexError{Index: i, Limit: vmcore.NumRegisters}
	}
	if i >= 1 && i <= 5 {
		p.pendingInputs[i-1] = v
		p.core.SetInputs(p.pendingInputs)
		return nil
	}
	p.core.SetReg(i, v)
	return nil
}

// ProgramWindow returns a read-only copy of one page of program memory.
// page is clamped to the valid range; a page entirely beyond the end of
// program memory returns an empty slice.
func (p *Plane) ProgramWindow(page, pageSize int) []uint64 {
	pgm := p.core.Program()
	start, end := windowBounds(len(pgm), page, pageSize)
	out := make([]uint64, end-start)
	copy(out, pgm[start:end])
	return out
}

// DataWindow returns a read-only copy of one page of data memory.
func (p *Plane) DataWindow(page, pageSize int) []byte {
	data := p.core.Data()
	start, end := windowBounds(len(data), page, pageSize)
	out := make([]byte, end-start)
	copy(out, data[start:end])
	return out
}

func windowBounds(total, page, pageSize int) (start, end int) {
	if pageSize <= 0 || page < 0 {
		return 0, 0
	}
	start = page * pageSize
	if start >= total {
		return total, total
	}
	end = start + pageSize
	if end > total {
		end = total
	}
	return start, end
}

// InvalidIndexError reports a register index outside 0..vmcore.NumRegisters-1
// supplied by a host through the control plane.
type InvalidIndexError struct {
	Index int
	Limit int
}

func (e *InvalidIndexError) Error() string {
	return fmt.Sprintf("control: register index %d out of range (0-%d)", e.Index, e.Limit-1)
}
