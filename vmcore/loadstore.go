package vmcore

import "github.com/oisee/ebpfvm/isa"

// execLdst executes one LD/LDX/ST/STX-class instruction (excluding the
// two-word LDDW form, handled by execLddw). Ported from the hBPF
// emulator's vm_load.py/vm_store.py: LDX/ST/STX address data memory as
// little-endian; LD+ABS is the one big-endian exception, matching the
// network-byte-order convention of the classic BPF ABS addressing mode
// it descends from.
func (c *Core) execLdst(d isa.Decoded) (uint32, error) {
	size := d.Size.Bytes()

	switch {
	case d.Class == isa.ClassLDX:
		addr := int64(c.regs[d.Src]) + int64(d.Raw.Offset)
		v, err := c.readData(addr, size, littleEndian)
		if err != nil {
			return 0, err
		}
		c.regs[d.Dst] = v
		return c.ip + 1, nil

	case d.Class == isa.ClassST:
		addr := int64(c.regs[d.Dst]) + int64(d.Raw.Offset)
		if err := c.writeData(addr, size, uint64(d.Imm), littleEndian); err != nil {
			return 0, err
		}
		return c.ip + 1, nil

	case d.Class == isa.ClassSTX:
		addr := int64(c.regs[d.Dst]) + int64(d.Raw.Offset)
		if err := c.writeData(addr, size, c.regs[d.Src], littleEndian); err != nil {
			return 0, err
		}
		return c.ip + 1, nil

	case d.Mode == isa.ModeABS:
		addr := int64(d.Imm)
		v, err := c.readData(addr, size, bigEndian)
		if err != nil {
			return 0, err
		}
		c.regs[0] = v
		return c.ip + 1, nil
	}

	return 0, c.fail(&InvalidInstructionError{Word: d.Raw.Word, IP: c.ip})
}

// execLddw executes the two-word BPF_LD | BPF_DW | BPF_IMM instruction:
// the 64-bit immediate is split across the current word's 32-bit
// immediate (low bits) and the following word's 32-bit immediate (high
// bits). The second word's opcode/dst/src/offset must all be zero; any
// other contents are a malformed encoding and fault InvalidInstruction.
func (c *Core) execLddw(d isa.Decoded) (uint32, error) {
	nextIP := c.ip + 1
	if nextIP >= uint32(len(c.pgm)) {
		return 0, c.fail(&ProgramBoundsError{IP: nextIP})
	}
	second := isa.Split(c.pgm[nextIP])
	if second.Opcode != 0 || second.Dst != 0 || second.Src != 0 || second.Offset != 0 {
		return 0, c.fail(&InvalidInstructionError{Word: d.Raw.Word, IP: c.ip})
	}
	low := uint64(uint32(d.Imm))
	high := uint64(uint32(second.Immediate))
	c.regs[d.Dst] = low | high<<32
	return c.ip + 2, nil
}

type byteOrder uint8

const (
	littleEndian byteOrder = iota
	bigEndian
)

// readData loads size bytes from data memory at addr, bounds-checked
// against the full extent of the access (not just its starting byte).
func (c *Core) readData(addr int64, size int, order byteOrder) (uint64, error) {
	if addr < 0 || addr+int64(size) > int64(len(c.data)) {
		return 0, c.fail(&DataBoundsError{Addr: addr, Size: size})
	}
	buf := c.data[addr : addr+int64(size)]
	var v uint64
	if order == littleEndian {
		for i := size - 1; i >= 0; i-- {
			v = v<<8 | uint64(buf[i])
		}
	} else {
		for i := 0; i < size; i++ {
			v = v<<8 | uint64(buf[i])
		}
	}
	return v, nil
}

// writeData stores the low size bytes of v into data memory at addr,
// bounds-checked against the full extent of the access.
func (c *Core) writeData(addr int64, size int, v uint64, order byteOrder) error {
	if addr < 0 || addr+int64(size) > int64(len(c.data)) {
		return c.fail(&DataBoundsError{Addr: addr, Size: size})
	}
	buf := c.data[addr : addr+int64(size)]
	if order == littleEndian {
		for i := 0; i < size; i++ {
			buf[i] = byte(v)
			v >>= 8
		}
	} else {
		for i := size - 1; i >= 0; i-- {
			buf[i] = byte(v)
			v >>= 8
		}
	}
	return nil
}
