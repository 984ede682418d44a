package isa

import (
	"fmt"
	"strconv"
	"strings"
)

// Assemble parses a small line-oriented mnemonic convenience format into a
// sequence of instruction words, in the style of the teacher's hand-rolled
// parseAssembly/parseSingleInstruction (cmd/z80opt/main.go): strings.Fields
// and strconv over a fixed mnemonic table, not a grammar or parser-combinator
// library. This is intentionally not a general assembler — it exists so the
// CLI and tests can express programs without hand-encoding instruction words
// (SPEC_FULL.md §11.2).
//
// One instruction per line. Blank lines and lines starting with "#" are
// ignored. Registers are written r0..r10. Supported forms:
//
//	mov[32]  rD, rS | imm
//	add[32] sub[32] mul[32] div[32] or[32] and[32] lsh[32] rsh[32]
//	mod[32] xor[32] arsh[32]  rD, rS | imm
//	neg[32]  rD
//	le16/32/64 rD   (to little-endian)    be16/32/64 rD   (to big-endian)
//	lddw     rD, imm64
//	ldxw/h/b/dw   rD, [rS+off]
//	stw/h/b/dw    [rD+off], imm
//	stxw/h/b/dw   [rD+off], rS
//	ldabsw/h/b/dw imm
//	ja off
//	jeq/jgt/jge/jset/jne/jsgt/jsge/jlt/jle/jslt/jsle rD, rS|imm, off
//	call imm
//	exit
func Assemble(src string) ([]uint64, error) {
	var words []uint64
	for lineNo, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		word, extra, err := assembleLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
		}
		words = append(words, word)
		if extra != nil {
			words = append(words, *extra)
		}
	}
	return words, nil
}

func assembleLine(line string) (word uint64, extra *uint64, err error) {
	mnemonic, rest := splitMnemonic(line)
	fields := splitOperands(rest)

	switch {
	case mnemonic == "exit":
		return encodeWord(uint8(ClassJMP)|uint8(JmpEXIT)<<4, 0, 0, 0, 0), nil, nil

	case mnemonic == "ja":
		off, err := parseOffset(fields, 0)
		if err != nil {
			return 0, nil, err
		}
		return encodeWord(uint8(ClassJMP)|uint8(JmpJA)<<4, 0, 0, int16(off), 0), nil, nil

	case mnemonic == "call":
		imm, err := parseImmField(fields, 0)
		if err != nil {
			return 0, nil, err
		}
		return encodeWord(uint8(ClassJMP)|uint8(JmpCALL)<<4, 0, 0, 0, imm), nil, nil

	case mnemonic == "lddw":
		return assembleLddw(fields)

	case strings.HasPrefix(mnemonic, "le") || strings.HasPrefix(mnemonic, "be"):
		return assembleEndc(mnemonic, fields)

	case isAluMnemonic(mnemonic):
		return assembleAlu(mnemonic, fields)

	case isJmpMnemonic(mnemonic):
		return assembleJmp(mnemonic, fields)

	case strings.HasPrefix(mnemonic, "ldx"):
		return assembleLdx(mnemonic, fields)

	case strings.HasPrefix(mnemonic, "stx"):
		return assembleStx(mnemonic, fields)

	case strings.HasPrefix(mnemonic, "ldabs"):
		return assembleLdabs(mnemonic, fields)

	case strings.HasPrefix(mnemonic, "st"):
		return assembleSt(mnemonic, fields)
	}

	return 0, nil, fmt.Errorf("unknown mnemonic %q", mnemonic)
}

func splitMnemonic(line string) (mnemonic, rest string) {
	line = strings.TrimSpace(line)
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return strings.ToLower(line), ""
	}
	return strings.ToLower(line[:idx]), strings.TrimSpace(line[idx+1:])
}

func splitOperands(rest string) []string {
	if rest == "" {
		return nil
	}
	parts := strings.Split(rest, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func encodeWord(opcode uint8, dst, src uint8, offset int16, imm int32) uint64 {
	return uint64(opcode) |
		uint64(dst&0x0f)<<8 |
		uint64(src&0x0f)<<12 |
		uint64(uint16(offset))<<16 |
		uint64(uint32(imm))<<32
}

func parseReg(s string) (uint8, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "r") {
		return 0, fmt.Errorf("not a register: %q", s)
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 0 || n > 10 {
		return 0, fmt.Errorf("invalid register: %q", s)
	}
	return uint8(n), nil
}

func parseNumber(s string) (int64, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	var v uint64
	var err error
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid number: %q", s)
	}
	if neg {
		return -int64(v), nil
	}
	return int64(v), nil
}

// operand parses either a register or an immediate, reporting which.
func operand(s string) (reg uint8, imm int64, isReg bool, err error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "r") {
		if r, rErr := parseReg(s); rErr == nil {
			return r, 0, true, nil
		}
	}
	n, err := parseNumber(s)
	if err != nil {
		return 0, 0, false, err
	}
	return 0, n, false, nil
}

func field(fields []string, i int) (string, error) {
	if i >= len(fields) {
		return "", fmt.Errorf("missing operand %d", i+1)
	}
	return fields[i], nil
}

func parseOffset(fields []string, i int) (int64, error) {
	f, err := field(fields, i)
	if err != nil {
		return 0, err
	}
	return parseNumber(f)
}

func parseImmField(fields []string, i int) (int32, error) {
	f, err := field(fields, i)
	if err != nil {
		return 0, err
	}
	n, err := parseNumber(f)
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

func isAluMnemonic(m string) bool {
	base := strings.TrimSuffix(m, "32")
	for _, name := range aluMnemonic {
		if name != "" && strings.EqualFold(name, base) {
			return true
		}
	}
	return false
}

func isJmpMnemonic(m string) bool {
	for _, name := range jmpMnemonic {
		if name != "" && strings.EqualFold(name, m) {
			return true
		}
	}
	return false
}

func lookupAluOp(base string) (AluOp, bool) {
	for i, name := range aluMnemonic {
		if strings.EqualFold(name, base) {
			return AluOp(i), true
		}
	}
	return 0, false
}

func lookupJmpOp(m string) (JmpOp, bool) {
	for i, name := range jmpMnemonic {
		if strings.EqualFold(name, m) {
			return JmpOp(i), true
		}
	}
	return 0, false
}

func assembleAlu(mnemonic string, fields []string) (uint64, *uint64, error) {
	is64 := true
	base := mnemonic
	if strings.HasSuffix(mnemonic, "32") {
		is64 = false
		base = strings.TrimSuffix(mnemonic, "32")
	}
	op, ok := lookupAluOp(base)
	if !ok {
		return 0, nil, fmt.Errorf("unknown alu mnemonic %q", mnemonic)
	}
	class := ClassALU64
	if !is64 {
		class = ClassALU32
	}

	dstField, err := field(fields, 0)
	if err != nil {
		return 0, nil, err
	}
	dst, err := parseReg(dstField)
	if err != nil {
		return 0, nil, err
	}

	if op == AluNeg {
		return encodeWord(uint8(class)|uint8(op)<<4, dst, 0, 0, 0), nil, nil
	}

	opField, err := field(fields, 1)
	if err != nil {
		return 0, nil, err
	}
	src, imm, isReg, err := operand(opField)
	if err != nil {
		return 0, nil, err
	}
	opcode := uint8(class) | uint8(op)<<4
	if isReg {
		opcode |= 1 << 3
		return encodeWord(opcode, dst, src, 0, 0), nil, nil
	}
	return encodeWord(opcode, dst, 0, 0, int32(imm)), nil, nil
}

func assembleJmp(mnemonic string, fields []string) (uint64, *uint64, error) {
	op, ok := lookupJmpOp(mnemonic)
	if !ok {
		return 0, nil, fmt.Errorf("unknown jmp mnemonic %q", mnemonic)
	}
	dstField, err := field(fields, 0)
	if err != nil {
		return 0, nil, err
	}
	dst, err := parseReg(dstField)
	if err != nil {
		return 0, nil, err
	}
	opField, err := field(fields, 1)
	if err != nil {
		return 0, nil, err
	}
	src, imm, isReg, err := operand(opField)
	if err != nil {
		return 0, nil, err
	}
	off, err := parseOffset(fields, 2)
	if err != nil {
		return 0, nil, err
	}
	opcode := uint8(ClassJMP) | uint8(op)<<4
	if isReg {
		opcode |= 1 << 3
		return encodeWord(opcode, dst, src, int16(off), 0), nil, nil
	}
	return encodeWord(opcode, dst, 0, int16(off), int32(imm)), nil, nil
}

func assembleEndc(mnemonic string, fields []string) (uint64, *uint64, error) {
	var useReg bool
	var width int
	switch mnemonic {
	case "le16":
		useReg, width = false, 16
	case "le32":
		useReg, width = false, 32
	case "le64":
		useReg, width = false, 64
	case "be16":
		useReg, width = true, 16
	case "be32":
		useReg, width = true, 32
	case "be64":
		useReg, width = true, 64
	default:
		return 0, nil, fmt.Errorf("unknown endc mnemonic %q", mnemonic)
	}
	dstField, err := field(fields, 0)
	if err != nil {
		return 0, nil, err
	}
	dst, err := parseReg(dstField)
	if err != nil {
		return 0, nil, err
	}
	opcode := uint8(ClassALU64) | uint8(AluEndc)<<4
	if useReg {
		opcode |= 1 << 3
	}
	return encodeWord(opcode, dst, 0, 0, int32(width)), nil, nil
}

func assembleLddw(fields []string) (uint64, *uint64, error) {
	dstField, err := field(fields, 0)
	if err != nil {
		return 0, nil, err
	}
	dst, err := parseReg(dstField)
	if err != nil {
		return 0, nil, err
	}
	immField, err := field(fields, 1)
	if err != nil {
		return 0, nil, err
	}
	n, err := parseNumber(immField)
	if err != nil {
		return 0, nil, err
	}
	v := uint64(n)
	low := int32(uint32(v))
	high := int32(uint32(v >> 32))
	word := encodeWord(OpcodeLDDW, dst, 0, 0, low)
	extra := encodeWord(0, 0, 0, 0, high)
	return word, &extra, nil
}

// parseMem parses "[rN+off]" or "[rN-off]" or "[rN]".
func parseMem(s string) (reg uint8, off int64, err error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	plus := strings.IndexAny(s, "+-")
	if plus < 0 {
		reg, err = parseReg(s)
		return reg, 0, err
	}
	reg, err = parseReg(s[:plus])
	if err != nil {
		return 0, 0, err
	}
	off, err = parseNumber(s[plus:])
	return reg, off, err
}

// sizeSuffixOrder lists suffixes longest-first so "dw" is tried before "w".
var sizeSuffixOrder = []struct {
	suffix string
	size   LdstSize
}{
	{"dw", SizeDW}, {"w", SizeW}, {"h", SizeH}, {"b", SizeB},
}

func sizeFromSuffix(mnemonic string) (LdstSize, string, bool) {
	for _, s := range sizeSuffixOrder {
		if strings.HasSuffix(mnemonic, s.suffix) {
			return s.size, strings.TrimSuffix(mnemonic, s.suffix), true
		}
	}
	return 0, mnemonic, false
}

func assembleLdx(mnemonic string, fields []string) (uint64, *uint64, error) {
	size, base, ok := sizeFromSuffix(mnemonic)
	if !ok || base != "ldx" {
		return 0, nil, fmt.Errorf("unknown ldx mnemonic %q", mnemonic)
	}
	dstField, err := field(fields, 0)
	if err != nil {
		return 0, nil, err
	}
	dst, err := parseReg(dstField)
	if err != nil {
		return 0, nil, err
	}
	memField, err := field(fields, 1)
	if err != nil {
		return 0, nil, err
	}
	src, off, err := parseMem(memField)
	if err != nil {
		return 0, nil, err
	}
	opcode := uint8(ClassLDX) | uint8(size)<<3 | uint8(ModeMEM)<<5
	return encodeWord(opcode, dst, src, int16(off), 0), nil, nil
}

func assembleStx(mnemonic string, fields []string) (uint64, *uint64, error) {
	size, base, ok := sizeFromSuffix(mnemonic)
	if !ok || base != "stx" {
		return 0, nil, fmt.Errorf("unknown stx mnemonic %q", mnemonic)
	}
	memField, err := field(fields, 0)
	if err != nil {
		return 0, nil, err
	}
	dst, off, err := parseMem(memField)
	if err != nil {
		return 0, nil, err
	}
	srcField, err := field(fields, 1)
	if err != nil {
		return 0, nil, err
	}
	src, err := parseReg(srcField)
	if err != nil {
		return 0, nil, err
	}
	opcode := uint8(ClassSTX) | uint8(size)<<3 | uint8(ModeMEM)<<5
	return encodeWord(opcode, dst, src, int16(off), 0), nil, nil
}

func assembleSt(mnemonic string, fields []string) (uint64, *uint64, error) {
	size, base, ok := sizeFromSuffix(mnemonic)
	if !ok || base != "st" {
		return 0, nil, fmt.Errorf("unknown st mnemonic %q", mnemonic)
	}
	memField, err := field(fields, 0)
	if err != nil {
		return 0, nil, err
	}
	dst, off, err := parseMem(memField)
	if err != nil {
		return 0, nil, err
	}
	imm, err := parseImmField(fields, 1)
	if err != nil {
		return 0, nil, err
	}
	opcode := uint8(ClassST) | uint8(size)<<3 | uint8(ModeMEM)<<5
	return encodeWord(opcode, dst, 0, int16(off), imm), nil, nil
}

func assembleLdabs(mnemonic string, fields []string) (uint64, *uint64, error) {
	size, base, ok := sizeFromSuffix(mnemonic)
	if !ok || base != "ldabs" {
		return 0, nil, fmt.Errorf("unknown ldabs mnemonic %q", mnemonic)
	}
	imm, err := parseImmField(fields, 0)
	if err != nil {
		return 0, nil, err
	}
	opcode := uint8(ClassLD) | uint8(size)<<3 | uint8(ModeABS)<<5
	return encodeWord(opcode, 0, 0, 0, imm), nil, nil
}
