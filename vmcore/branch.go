package vmcore

import "github.com/oisee/ebpfvm/isa"

// execJmp executes one JMP-class instruction: conditional/unconditional
// branches, CALL, and EXIT. Ported from the hBPF emulator's vm_jump.py,
// generalized into the teacher's single-dispatch-switch idiom.
func (c *Core) execJmp(d isa.Decoded) (uint32, error) {
	switch d.JmpOp {
	case isa.JmpEXIT:
		c.halted = true
		return c.ip, nil
	case isa.JmpCALL:
		return c.execCall(d)
	case isa.JmpJA:
		return uint32(int64(c.ip) + 1 + int64(d.Raw.Offset)), nil
	}

	operand := c.operand(d)
	taken := evalCond(d.JmpOp, c.regs[d.Dst], operand)
	if taken {
		return uint32(int64(c.ip) + 1 + int64(d.Raw.Offset)), nil
	}
	return c.ip + 1, nil
}

// operand resolves the right-hand side of a jump comparison: another
// register, or the sign-extended 32-bit immediate.
func (c *Core) operand(d isa.Decoded) uint64 {
	if d.UseReg {
		return c.regs[d.Src]
	}
	return uint64(int64(d.Imm))
}

// evalCond evaluates the branch condition. JEQ/JNE/JGT/JGE/JLT/JLE compare
// the full 64-bit register value; JSGT/JSGE/JSLT/JSLE sign-extend from bit
// 31 before comparing — a documented deviation from upstream eBPF's
// 64-bit signed compares, preserved from the source realization this core
// is grounded on (see DESIGN.md open question record). JSET is "any bit in
// common", not an equality test.
func evalCond(op isa.JmpOp, dst, src uint64) bool {
	switch op {
	case isa.JmpJEQ:
		return dst == src
	case isa.JmpJGT:
		return dst > src
	case isa.JmpJGE:
		return dst >= src
	case isa.JmpJSET:
		return dst&src != 0
	case isa.JmpJNE:
		return dst != src
	case isa.JmpJSGT:
		return int32(uint32(dst)) > int32(uint32(src))
	case isa.JmpJSGE:
		return int32(uint32(dst)) >= int32(uint32(src))
	case isa.JmpJLT:
		return dst < src
	case isa.JmpJLE:
		return dst <= src
	case isa.JmpJSLT:
		return int32(uint32(dst)) < int32(uint32(src))
	case isa.JmpJSLE:
		return int32(uint32(dst)) <= int32(uint32(src))
	default:
		return false
	}
}

// execCall dispatches CALL imm through the helper registry (SPEC_FULL.md
// §4.6): arguments come from R1..R5, the result lands in R0, an
// unregistered helper id faults UnknownHelperError, and a helper that
// returns an error faults HelperFailedError wrapping it.
func (c *Core) execCall(d isa.Decoded) (uint32, error) {
	id := uint32(d.Imm)
	fn, ok := c.helpers.Lookup(id)
	if !ok {
		return 0, c.fail(&UnknownHelperError{ID: id})
	}
	result, err := fn(c.regs[1], c.regs[2], c.regs[3], c.regs[4], c.regs[5])
	if err != nil {
		return 0, c.fail(&HelperFailedError{ID: id, Err: err})
	}
	c.regs[0] = result
	return c.ip + 1, nil
}
