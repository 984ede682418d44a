// Package isa decodes the 64-bit eBPF instruction word into a structured,
// tagged-variant form. It has no notion of registers or memory; it only
// knows how to split a word into its fields and classify the result.
package isa

import "fmt"

// Class is the low 3 bits of the opcode byte; it selects the major
// instruction family.
type Class uint8

const (
	ClassLD     Class = 0
	ClassLDX    Class = 1
	ClassST     Class = 2
	ClassSTX    Class = 3
	ClassALU32  Class = 4
	ClassJMP    Class = 5
	ClassResvd  Class = 6
	ClassALU64  Class = 7
)

func (c Class) String() string {
	switch c {
	case ClassLD:
		return "LD"
	case ClassLDX:
		return "LDX"
	case ClassST:
		return "ST"
	case ClassSTX:
		return "STX"
	case ClassALU32:
		return "ALU32"
	case ClassJMP:
		return "JMP"
	case ClassResvd:
		return "reserved"
	case ClassALU64:
		return "ALU64"
	default:
		return "invalid"
	}
}

// AluOp is the 4-bit ALU/JMP operation nibble when Class is ALU32 or ALU64.
type AluOp uint8

const (
	AluAdd  AluOp = 0x0
	AluSub  AluOp = 0x1
	AluMul  AluOp = 0x2
	AluDiv  AluOp = 0x3
	AluOr   AluOp = 0x4
	AluAnd  AluOp = 0x5
	AluLsh  AluOp = 0x6
	AluRsh  AluOp = 0x7
	AluNeg  AluOp = 0x8
	AluMod  AluOp = 0x9
	AluXor  AluOp = 0xa
	AluMov  AluOp = 0xb
	AluArsh AluOp = 0xc
	AluEndc AluOp = 0xd
)

// JmpOp is the 4-bit operation nibble when Class is JMP.
type JmpOp uint8

const (
	JmpJA   JmpOp = 0x0
	JmpJEQ  JmpOp = 0x1
	JmpJGT  JmpOp = 0x2
	JmpJGE  JmpOp = 0x3
	JmpJSET JmpOp = 0x4
	JmpJNE  JmpOp = 0x5
	JmpJSGT JmpOp = 0x6
	JmpJSGE JmpOp = 0x7
	JmpCALL JmpOp = 0x8
	JmpEXIT JmpOp = 0x9
	JmpJLT  JmpOp = 0xa
	JmpJLE  JmpOp = 0xb
	JmpJSLT JmpOp = 0xc
	JmpJSLE JmpOp = 0xd
)

// LdstMode is the 3-bit addressing mode for LD/LDX/ST/STX instructions.
type LdstMode uint8

const (
	ModeIMM  LdstMode = 0x0
	ModeABS  LdstMode = 0x1
	ModeIND  LdstMode = 0x2
	ModeMEM  LdstMode = 0x3
	ModeXADD LdstMode = 0x6
)

// LdstSize is the 2-bit operand size for LD/LDX/ST/STX instructions.
type LdstSize uint8

const (
	SizeW  LdstSize = 0 // 4 bytes
	SizeH  LdstSize = 1 // 2 bytes
	SizeB  LdstSize = 2 // 1 byte
	SizeDW LdstSize = 3 // 8 bytes
)

// Bytes returns the width in bytes of an LdstSize.
func (s LdstSize) Bytes() int {
	switch s {
	case SizeW:
		return 4
	case SizeH:
		return 2
	case SizeB:
		return 1
	case SizeDW:
		return 8
	default:
		return 0
	}
}

// Raw holds the unclassified field breakdown of a 64-bit instruction word.
// It is always fully populated by Split, regardless of whether the fields
// make sense for the instruction's class.
type Raw struct {
	Word      uint64
	Opcode    uint8
	Dst       uint8
	Src       uint8
	Offset    int16
	Immediate int32
}

// Split decomposes a raw instruction word into its fixed bit-layout fields.
// It performs no validation; Decode layers classification and fault checks
// on top of Split.
func Split(word uint64) Raw {
	return Raw{
		Word:      word,
		Opcode:    uint8(word),
		Dst:       uint8(word>>8) & 0x0f,
		Src:       uint8(word>>12) & 0x0f,
		Offset:    int16(uint16(word >> 16)),
		Immediate: int32(uint32(word >> 32)),
	}
}

// OpcodeClass extracts the instruction class from an opcode byte.
func OpcodeClass(opcode uint8) Class {
	return Class(opcode & 0x7)
}

// SourceBit extracts the immediate-vs-register source flag (bit 3) for
// ALU/JMP opcodes.
func SourceBit(opcode uint8) bool {
	return (opcode>>3)&0x1 == 1
}

// AluJmpOp extracts the operation nibble (bits 4-7) for ALU/JMP opcodes.
func AluJmpOp(opcode uint8) uint8 {
	return (opcode >> 4) & 0x0f
}

// LdstSizeBits extracts the 2-bit size field (bits 3-4) for LD/LDX/ST/STX opcodes.
func LdstSizeBits(opcode uint8) LdstSize {
	return LdstSize((opcode >> 3) & 0x3)
}

// LdstModeBits extracts the 3-bit mode field (bits 5-7) for LD/LDX/ST/STX opcodes.
func LdstModeBits(opcode uint8) LdstMode {
	return LdstMode((opcode >> 5) & 0x7)
}

// Kind tags the variant a Decoded instruction belongs to.
type Kind uint8

const (
	KindAlu Kind = iota
	KindLdst
	KindJmp
	KindLddw
)

// Decoded is a tagged-variant view of one instruction. Only the fields
// relevant to Kind are meaningful; the others are zero. This mirrors the
// fixed-size, cheap-to-copy value-struct idiom used throughout this rewrite
// (see vmcore.Core's register file) rather than a handler-table dispatch.
type Decoded struct {
	Kind Kind
	Raw  Raw

	Class Class
	Dst   uint8
	Src   uint8

	// KindAlu
	AluOp    AluOp
	UseReg   bool // true: operand is R[Src]; false: operand is Immediate
	Imm      int32

	// KindJmp
	JmpOp JmpOp

	// KindLdst
	Mode LdstMode
	Size LdstSize

	// KindLddw: Decode recognizes only the first word of an LDDW pair and
	// Imm holds its low 32 bits; vmcore fetches the following word and
	// composes the 64-bit value into the destination register itself.
}

// InvalidInstructionError reports an unknown class/op/mode/size combination
// or a malformed LDDW continuation word.
type InvalidInstructionError struct {
	Word uint64
	IP   uint32
}

func (e *InvalidInstructionError) Error() string {
	return fmt.Sprintf("invalid instruction 0x%016x at ip=%d", e.Word, e.IP)
}

// InvalidRegisterError reports a decoded dst or src register index outside
// 0..10.
type InvalidRegisterError struct {
	Index uint8
}

func (e *InvalidRegisterError) Error() string {
	return fmt.Sprintf("invalid register index %d", e.Index)
}

const maxRegIndex = 10

// Decode classifies a single instruction word. It does not resolve LDDW's
// second word; callers that encounter Kind==KindLddw with Raw.Opcode
// matching OpcodeLDDW must fetch the next word and validate/compose it
// themselves (vmcore.Core does this, since only it knows the program's
// bounds and current IP).
func Decode(word uint64, ip uint32) (Decoded, error) {
	r := Split(word)
	class := OpcodeClass(r.Opcode)

	switch class {
	case ClassALU32, ClassALU64:
		return decodeAlu(r, class, ip)
	case ClassJMP:
		return decodeJmp(r, ip)
	case ClassLD, ClassLDX, ClassST, ClassSTX:
		return decodeLdst(r, class, ip)
	default:
		return Decoded{}, &InvalidInstructionError{Word: word, IP: ip}
	}
}

func checkReg(idx uint8) error {
	if idx > maxRegIndex {
		return &InvalidRegisterError{Index: idx}
	}
	return nil
}

func decodeAlu(r Raw, class Class, ip uint32) (Decoded, error) {
	if err := checkReg(r.Dst); err != nil {
		return Decoded{}, err
	}
	op := AluOp(AluJmpOp(r.Opcode))
	useReg := SourceBit(r.Opcode)

	switch op {
	case AluAdd, AluSub, AluMul, AluDiv, AluOr, AluAnd, AluLsh, AluRsh,
		AluMod, AluXor, AluMov, AluArsh:
		if useReg {
			if err := checkReg(r.Src); err != nil {
				return Decoded{}, err
			}
		}
	case AluNeg:
		if useReg {
			// NEG is immediate-only; the register-source encoding is invalid.
			return Decoded{}, &InvalidInstructionError{Word: r.Word, IP: ip}
		}
	case AluEndc:
		// ENDC uses the immediate to select width regardless of useReg;
		// useReg itself selects target byte order (see vmcore).
	default:
		return Decoded{}, &InvalidInstructionError{Word: r.Word, IP: ip}
	}

	// LD class 0 with opcode byte OpcodeLDDW (0x18) is the one exception:
	// class bits alone collide with ALU dispatch only for class ALU32/64,
	// so LDDW never reaches this function (handled via ClassLD in decodeLdst).
	return Decoded{
		Kind:   KindAlu,
		Raw:    r,
		Class:  class,
		Dst:    r.Dst,
		Src:    r.Src,
		AluOp:  op,
		UseReg: useReg,
		Imm:    r.Immediate,
	}, nil
}

func decodeJmp(r Raw, ip uint32) (Decoded, error) {
	if err := checkReg(r.Dst); err != nil {
		return Decoded{}, err
	}
	op := JmpOp(AluJmpOp(r.Opcode))
	useReg := SourceBit(r.Opcode)

	switch op {
	case JmpJA, JmpCALL, JmpEXIT:
		// JA/CALL/EXIT ignore the source bit's register operand.
	case JmpJEQ, JmpJGT, JmpJGE, JmpJSET, JmpJNE, JmpJSGT, JmpJSGE,
		JmpJLT, JmpJLE, JmpJSLT, JmpJSLE:
		if useReg {
			if err := checkReg(r.Src); err != nil {
				return Decoded{}, err
			}
		}
	default:
		return Decoded{}, &InvalidInstructionError{Word: r.Word, IP: ip}
	}

	return Decoded{
		Kind:   KindJmp,
		Raw:    r,
		Class:  ClassJMP,
		Dst:    r.Dst,
		Src:    r.Src,
		JmpOp:  op,
		UseReg: useReg,
		Imm:    r.Immediate,
	}, nil
}

// OpcodeLDDW is the full opcode byte for the "load 64-bit immediate" form;
// it is the only supported LD-class encoding.
const OpcodeLDDW uint8 = 0x18

func decodeLdst(r Raw, class Class, ip uint32) (Decoded, error) {
	if err := checkReg(r.Dst); err != nil {
		return Decoded{}, err
	}

	if class == ClassLD {
		if r.Opcode == OpcodeLDDW {
			return Decoded{
				Kind:  KindLddw,
				Raw:   r,
				Class: class,
				Dst:   r.Dst,
				Imm:   r.Immediate,
			}, nil
		}
		mode := LdstModeBits(r.Opcode)
		size := LdstSizeBits(r.Opcode)
		if mode == ModeABS {
			return Decoded{
				Kind:  KindLdst,
				Raw:   r,
				Class: class,
				Dst:   r.Dst,
				Mode:  mode,
				Size:  size,
				Imm:   r.Immediate,
			}, nil
		}
		// LD+IND, LD+XADD and any other LD-class encoding are unimplemented
		// per the frozen open question: fault rather than guess semantics.
		return Decoded{}, &InvalidInstructionError{Word: r.Word, IP: ip}
	}

	mode := LdstModeBits(r.Opcode)
	size := LdstSizeBits(r.Opcode)
	if mode != ModeMEM {
		return Decoded{}, &InvalidInstructionError{Word: r.Word, IP: ip}
	}
	if class == ClassLDX || class == ClassSTX {
		if err := checkReg(r.Src); err != nil {
			return Decoded{}, err
		}
	}

	return Decoded{
		Kind:  KindLdst,
		Raw:   r,
		Class: class,
		Dst:   r.Dst,
		Src:   r.Src,
		Mode:  mode,
		Size:  size,
		Imm:   r.Immediate,
	}, nil
}
