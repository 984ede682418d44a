package isa

import "fmt"

var aluMnemonic = [...]string{
	AluAdd: "add", AluSub: "sub", AluMul: "mul", AluDiv: "div",
	AluOr: "or", AluAnd: "and", AluLsh: "lsh", AluRsh: "rsh",
	AluNeg: "neg", AluMod: "mod", AluXor: "xor", AluMov: "mov",
	AluArsh: "arsh", AluEndc: "endc",
}

var jmpMnemonic = [...]string{
	JmpJA: "ja", JmpJEQ: "jeq", JmpJGT: "jgt", JmpJGE: "jge",
	JmpJSET: "jset", JmpJNE: "jne", JmpJSGT: "jsgt", JmpJSGE: "jsge",
	JmpCALL: "call", JmpEXIT: "exit", JmpJLT: "jlt", JmpJLE: "jle",
	JmpJSLT: "jslt", JmpJSLE: "jsle",
}

var sizeSuffix = [...]string{SizeW: "w", SizeH: "h", SizeB: "b", SizeDW: "dw"}

// Disassemble renders a decoded instruction as one line of assembly text.
// It is not a general disassembler — unknown or unreachable tag/field
// combinations render literally rather than panicking, so a caller walking
// an untrusted program image never crashes on cosmetic output.
func Disassemble(d Decoded) string {
	switch d.Kind {
	case KindAlu:
		suffix := ""
		if d.Class == ClassALU32 {
			suffix = "32"
		}
		name := mnemonicOrHex(aluMnemonic[:], uint8(d.AluOp))
		if d.AluOp == AluNeg {
			return fmt.Sprintf("%s%s r%d", name, suffix, d.Dst)
		}
		if d.AluOp == AluEndc {
			dir := "le"
			if d.UseReg {
				dir = "be"
			}
			return fmt.Sprintf("%s%d r%d", dir, d.Imm, d.Dst)
		}
		if d.UseReg {
			return fmt.Sprintf("%s%s r%d, r%d", name, suffix, d.Dst, d.Src)
		}
		return fmt.Sprintf("%s%s r%d, %d", name, suffix, d.Dst, d.Imm)
	case KindJmp:
		name := mnemonicOrHex(jmpMnemonic[:], uint8(d.JmpOp))
		switch d.JmpOp {
		case JmpJA:
			return fmt.Sprintf("ja %+d", d.Raw.Offset)
		case JmpCALL:
			return fmt.Sprintf("call %d", d.Imm)
		case JmpEXIT:
			return "exit"
		}
		if d.UseReg {
			return fmt.Sprintf("%s r%d, r%d, %+d", name, d.Dst, d.Src, d.Raw.Offset)
		}
		return fmt.Sprintf("%s r%d, %d, %+d", name, d.Dst, d.Imm, d.Raw.Offset)
	case KindLdst:
		return disasmLdst(d)
	case KindLddw:
		return fmt.Sprintf("lddw r%d, <imm64>", d.Dst)
	default:
		return fmt.Sprintf("?? (0x%02x)", d.Raw.Opcode)
	}
}

func disasmLdst(d Decoded) string {
	suf := sizeSuffix[d.Size]
	switch d.Class {
	case ClassLDX:
		return fmt.Sprintf("ldx%s r%d, [r%d%+d]", suf, d.Dst, d.Src, d.Raw.Offset)
	case ClassST:
		return fmt.Sprintf("st%s [r%d%+d], %d", suf, d.Dst, d.Raw.Offset, d.Imm)
	case ClassSTX:
		return fmt.Sprintf("stx%s [r%d%+d], r%d", suf, d.Dst, d.Raw.Offset, d.Src)
	case ClassLD:
		if d.Mode == ModeABS {
			return fmt.Sprintf("ldabs%s r0, %d", suf, d.Imm)
		}
	}
	return fmt.Sprintf("?? (0x%02x)", d.Raw.Opcode)
}

func mnemonicOrHex(table []string, idx uint8) string {
	if int(idx) < len(table) && table[idx] != "" {
		return table[idx]
	}
	return fmt.Sprintf("op%#x", idx)
}
