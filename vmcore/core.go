// Package vmcore implements the eBPF interpreter core: register file,
// program and data memory, the fetch-decode-execute loop, and the fault
// taxonomy. It has no knowledge of hosts, CLIs, or control planes; those
// are built on top of it (see the control and cmd/ebpfvm packages).
package vmcore

import (
	"context"

	"github.com/oisee/ebpfvm/helper"
	"github.com/oisee/ebpfvm/isa"
)

const (
	// NumRegisters is the register file width: R0..R10.
	NumRegisters = 11
	// DefaultProgramCapacity is the default program memory size, in
	// instructions (not bytes).
	DefaultProgramCapacity = 4096
	// DefaultDataCapacity is the default data memory size, in bytes.
	DefaultDataCapacity = 2048
)

// Endianness names the two on-disk byte orders of a program image; the core
// always operates on little-endian words internally. Nothing in this module
// consumes it: image.LoadProgram takes the byte order as a binary.ByteOrder.
type Endianness uint8

const (
	LittleEndianOnDisk Endianness = iota
	BigEndianOnDisk
)

// Core is one eBPF virtual machine instance: a register file, a read-only
// program memory, a mutable data memory, and a fixed helper registry. A
// single Core is never safe for concurrent use by more than one goroutine
// at a time; run independent programs on independent Cores (see the batch
// package for a concurrent multi-Core harness).
type Core struct {
	regs [NumRegisters]uint64
	ip   uint32
	pgm  []uint64
	data []byte

	ticks  uint64
	halted bool
	fault  error

	helpers *helper.Registry

	// seed holds the R1..R5 values latched at construction/Reset time.
	seed [5]uint64
}

// Config configures a new Core. ProgramCapacity and DataCapacity default to
// DefaultProgramCapacity/DefaultDataCapacity when zero.
type Config struct {
	Program         []uint64
	Data            []byte
	ProgramCapacity int
	DataCapacity    int
	Helpers         *helper.Registry
	// Inputs seeds R1..R5 before the first Reset (and every subsequent one).
	Inputs [5]uint64
}

// New allocates a Core. Program and data memories are sized once here and
// never grow or shrink for the lifetime of the Core (see SPEC_FULL.md §3
// Lifecycles).
func New(cfg Config) *Core {
	progCap := cfg.ProgramCapacity
	if progCap == 0 {
		progCap = DefaultProgramCapacity
	}
	dataCap := cfg.DataCapacity
	if dataCap == 0 {
		dataCap = DefaultDataCapacity
	}

	pgm := make([]uint64, progCap)
	copy(pgm, cfg.Program)

	data := make([]byte, dataCap)
	copy(data, cfg.Data)

	helpers := cfg.Helpers
	if helpers == nil {
		helpers = helper.NewRegistry(nil)
	}

	c := &Core{
		pgm:     pgm,
		data:    data,
		helpers: helpers,
		seed:    cfg.Inputs,
	}
	c.Reset()
	return c
}

// Reset re-initializes the VM to the state described in SPEC_FULL.md §3:
// IP=0, R0=R6=R7=R8=R9=0, R1..R5 loaded from the seed inputs, tick counter
// cleared, halt and error flags cleared. R10 is a general register and is
// zeroed along with R0 and R6..R9.
func (c *Core) Reset() {
	for i := range c.regs {
		c.regs[i] = 0
	}
	for i, v := range c.seed {
		c.regs[1+i] = v
	}
	c.ip = 0
	c.ticks = 0
	c.halted = false
	c.fault = nil
}

// SetInputs updates the R1..R5 seed values latched on the next Reset.
func (c *Core) SetInputs(inputs [5]uint64) {
	c.seed = inputs
}

// Halted reports whether the core has stopped (via EXIT or a fault).
func (c *Core) Halted() bool { return c.halted }

// Fault reports the terminal fault that stopped the core, or nil if the
// core halted normally (EXIT) or is still running.
func (c *Core) Fault() error { return c.fault }

// Ticks returns the retired-instruction count since the last Reset.
func (c *Core) Ticks() uint64 { return c.ticks }

// IP returns the current instruction pointer.
func (c *Core) IP() uint32 { return c.ip }

// Reg reads register i (0..10). It panics on an out-of-range index; callers
// outside this package should go through control.Plane, which validates
// indices from untrusted host input.
func (c *Core) Reg(i int) uint64 { return c.regs[i] }

// SetReg writes register i (0..10).
func (c *Core) SetReg(i int, v uint64) { c.regs[i] = v }

// ProgramLen returns the program memory capacity in instructions.
func (c *Core) ProgramLen() int { return len(c.pgm) }

// DataLen returns the data memory capacity in bytes.
func (c *Core) DataLen() int { return len(c.data) }

// Program returns the program memory as a read-only-by-convention slice.
func (c *Core) Program() []uint64 { return c.pgm }

// Data returns the data memory itself, not a copy. Callers that mutate it
// outside of ST/STX execution bypass the instruction-level bounds checks;
// control.Plane.DataWindow returns a copy instead.
func (c *Core) Data() []byte { return c.data }

// Step executes exactly one instruction (two, for an LDDW pair) and
// returns. It is a no-op, returning immediately, if the core is already
// halted.
func (c *Core) Step() error {
	if c.halted {
		return c.fault
	}
	return c.step()
}

// RunToCompletion executes instructions until EXIT, a fault, ctx is
// canceled, or maxTicks instructions have retired (0 means unlimited).
// Reaching maxTicks or ctx cancellation returns a *TickLimitError without
// mutating the core further than the instructions already retired; unlike
// a true fault this does not set Halted()/Fault() — the caller may call
// RunToCompletion again (with a larger budget, or after extending ctx) to
// resume from where it left off.
func (c *Core) RunToCompletion(ctx context.Context, maxTicks uint64) error {
	for !c.halted {
		if maxTicks != 0 && c.ticks >= maxTicks {
			return &TickLimitError{Ticks: c.ticks}
		}
		select {
		case <-ctx.Done():
			return &TickLimitError{Ticks: c.ticks}
		default:
		}
		if err := c.step(); err != nil {
			return err
		}
	}
	return c.fault
}

func (c *Core) fail(err error) error {
	c.halted = true
	c.fault = err
	return err
}

func (c *Core) step() error {
	if c.ip >= uint32(len(c.pgm)) {
		return c.fail(&ProgramBoundsError{IP: c.ip})
	}
	word := c.pgm[c.ip]
	d, err := isa.Decode(word, c.ip)
	if err != nil {
		return c.fail(toVMFault(err, word, c.ip))
	}

	var next uint32
	switch d.Kind {
	case isa.KindAlu:
		next, err = c.execAlu(d)
	case isa.KindJmp:
		next, err = c.execJmp(d)
	case isa.KindLdst:
		next, err = c.execLdst(d)
	case isa.KindLddw:
		next, err = c.execLddw(d)
	default:
		err = c.fail(&InvalidInstructionError{Word: word, IP: c.ip})
	}
	if err != nil {
		return err
	}
	c.ip = next
	c.ticks++
	return nil
}

// toVMFault converts an isa-level decode error into the equivalent
// vmcore-level fault, preserving the offending word/ip/index.
func toVMFault(err error, word uint64, ip uint32) error {
	switch e := err.(type) {
	case *isa.InvalidInstructionError:
		return &InvalidInstructionError{Word: e.Word, IP: e.IP}
	case *isa.InvalidRegisterError:
		return &InvalidRegisterError{Index: e.Index}
	default:
		return &InvalidInstructionError{Word: word, IP: ip}
	}
}
