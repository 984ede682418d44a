package vmcore

import (
	"encoding/binary"

	"github.com/oisee/ebpfvm/isa"
)

// execAlu executes one ALU32/ALU64 instruction, mirroring the teacher's
// single-switch Exec dispatch (pkg/cpu/exec.go) but against the eBPF ALU
// semantics ported from the hBPF software emulator's vm_alu.py.
func (c *Core) execAlu(d isa.Decoded) (uint32, error) {
	dst := d.Dst
	is64 := d.Class == isa.ClassALU64
	var operand uint64
	if d.UseReg {
		operand = c.regs[d.Src]
	} else if is64 {
		operand = uint64(int64(d.Imm)) // ALU64 immediates sign-extend to 64 bits
	} else {
		operand = uint64(uint32(d.Imm))
	}

	switch d.AluOp {
	case isa.AluAdd:
		c.writeAlu(dst, c.regs[dst]+operand, is64)
	case isa.AluSub:
		c.writeAlu(dst, c.regs[dst]-operand, is64)
	case isa.AluMul:
		c.writeAlu(dst, c.regs[dst]*operand, is64)
	case isa.AluDiv:
		return c.divmod(dst, operand, is64, false)
	case isa.AluOr:
		c.writeAlu(dst, c.regs[dst]|operand, is64)
	case isa.AluAnd:
		c.writeAlu(dst, c.regs[dst]&operand, is64)
	case isa.AluLsh:
		c.writeAlu(dst, c.regs[dst]<<shiftAmount(operand, is64), is64)
	case isa.AluRsh:
		c.writeAlu(dst, logicalWidth(c.regs[dst], is64)>>shiftAmount(operand, is64), is64)
	case isa.AluNeg:
		c.writeAlu(dst, -c.regs[dst], is64)
	case isa.AluMod:
		return c.divmod(dst, operand, is64, true)
	case isa.AluXor:
		c.writeAlu(dst, c.regs[dst]^operand, is64)
	case isa.AluMov:
		c.writeAlu(dst, operand, is64)
	case isa.AluArsh:
		c.writeAlu(dst, arithShift(c.regs[dst], shiftAmount(operand, is64), is64), is64)
	case isa.AluEndc:
		if err := c.execEndc(d); err != nil {
			return 0, err
		}
	default:
		return 0, c.fail(&InvalidInstructionError{Word: d.Raw.Word, IP: c.ip})
	}
	return c.ip + 1, nil
}

// writeAlu stores v into register dst, applying the class-mandated
// truncation: ALU32 keeps only the low 32 bits (zero-extended to 64),
// ALU64 keeps the full 64 bits.
func (c *Core) writeAlu(dst uint8, v uint64, is64 bool) {
	if is64 {
		c.regs[dst] = v
	} else {
		c.regs[dst] = uint64(uint32(v))
	}
}

// logicalWidth masks a value down to its operating width before an
// unsigned right shift, so ALU32's RSH never leaks the upper 32 bits of a
// register that holds stale 64-bit data.
func logicalWidth(v uint64, is64 bool) uint64 {
	if is64 {
		return v
	}
	return uint64(uint32(v))
}

// shiftAmount masks the shift count to the operand width: 0-63 for 64-bit
// operations, 0-31 for 32-bit, matching the hBPF emulator's unmasked
// Python shift (which relies on Python ints) reinterpreted for Go's
// modular machine-width shifts.
func shiftAmount(v uint64, is64 bool) uint64 {
	if is64 {
		return v & 63
	}
	return v & 31
}

// arithShift performs a sign-preserving right shift, sign-extending from
// bit 31 (ALU32) or bit 63 (ALU64) before shifting, per SPEC_FULL.md §4.2.
func arithShift(v uint64, shift uint64, is64 bool) uint64 {
	if is64 {
		return uint64(int64(v) >> shift)
	}
	return uint64(uint32(int32(uint32(v)) >> shift))
}

// divmod implements ALU DIV/MOD: unsigned division/modulo under the
// operating width, with the zero-divisor contract from SPEC_FULL.md §4.2
// (destination set to all-ones, fault DivideByZero).
func (c *Core) divmod(dst uint8, operand uint64, is64, mod bool) (uint32, error) {
	if is64 {
		if operand == 0 {
			c.regs[dst] = ^uint64(0)
			return 0, c.fail(&DivideByZeroError{})
		}
		if mod {
			c.regs[dst] = c.regs[dst] % operand
		} else {
			c.regs[dst] = c.regs[dst] / operand
		}
		return c.ip + 1, nil
	}
	op32 := uint32(operand)
	if op32 == 0 {
		c.regs[dst] = ^uint64(0)
		return 0, c.fail(&DivideByZeroError{})
	}
	v32 := uint32(c.regs[dst])
	if mod {
		c.regs[dst] = uint64(v32 % op32)
	} else {
		c.regs[dst] = uint64(v32 / op32)
	}
	return c.ip + 1, nil
}

// execEndc implements the explicit endianness-conversion instruction.
// source_bit=0 selects "to little-endian" (masks to width, no byte swap
// on this little-endian-internal model); source_bit=1 selects "to
// big-endian" (byte-swap the selected width). Ported from vm_alu.py's
// _endc, replacing its struct.pack/unpack round-trip with encoding/binary.
func (c *Core) execEndc(d isa.Decoded) error {
	v := c.regs[d.Dst]
	switch d.Imm {
	case 16:
		if d.UseReg {
			var buf [2]byte
			binary.LittleEndian.PutUint16(buf[:], uint16(v))
			c.regs[d.Dst] = uint64(binary.BigEndian.Uint16(buf[:]))
		} else {
			c.regs[d.Dst] = v & 0xffff
		}
	case 32:
		if d.UseReg {
			var buf [4]byte
			binary.LittleEndian.PutUint32(buf[:], uint32(v))
			c.regs[d.Dst] = uint64(binary.BigEndian.Uint32(buf[:]))
		} else {
			c.regs[d.Dst] = v & 0xffffffff
		}
	case 64:
		if d.UseReg {
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], v)
			c.regs[d.Dst] = binary.BigEndian.Uint64(buf[:])
		}
		// to-little-endian, width 64: no-op, nothing to mask.
	default:
		return c.fail(&InvalidInstructionError{Word: d.Raw.Word, IP: c.ip})
	}
	return nil
}
