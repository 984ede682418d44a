package isa

import (
	"errors"
	"testing"
)

func encode(opcode uint8, dst, src uint8, offset int16, imm int32) uint64 {
	return uint64(opcode) |
		uint64(dst&0x0f)<<8 |
		uint64(src&0x0f)<<12 |
		uint64(uint16(offset))<<16 |
		uint64(uint32(imm))<<32
}

func TestSplitFields(t *testing.T) {
	word := encode(0xb7, 3, 5, -7, 1234)
	r := Split(word)
	if r.Opcode != 0xb7 {
		t.Fatalf("opcode = 0x%x, want 0xb7", r.Opcode)
	}
	if r.Dst != 3 {
		t.Fatalf("dst = %d, want 3", r.Dst)
	}
	if r.Src != 5 {
		t.Fatalf("src = %d, want 5", r.Src)
	}
	if r.Offset != -7 {
		t.Fatalf("offset = %d, want -7", r.Offset)
	}
	if r.Immediate != 1234 {
		t.Fatalf("immediate = %d, want 1234", r.Immediate)
	}
}

func TestDecodeAluMovImm(t *testing.T) {
	// mov64 r0, 0xFFFFFFFF  (class ALU64, op MOV, source_bit=0)
	word := encode(uint8(ClassALU64)|uint8(AluMov)<<4, 0, 0, 0, -1)
	d, err := Decode(word, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Kind != KindAlu || d.AluOp != AluMov || d.UseReg {
		t.Fatalf("unexpected decode: %+v", d)
	}
	if d.Class != ClassALU64 {
		t.Fatalf("class = %v, want ALU64", d.Class)
	}
}

func TestDecodeInvalidRegister(t *testing.T) {
	// dst index 12 is out of range (>10)
	word := encode(uint8(ClassALU64)|uint8(AluMov)<<4, 12, 0, 0, 0)
	_, err := Decode(word, 5)
	var regErr *InvalidRegisterError
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.As(err, &regErr) {
		t.Fatalf("expected InvalidRegisterError, got %v (%T)", err, err)
	}
	if regErr.Index != 12 {
		t.Fatalf("index = %d, want 12", regErr.Index)
	}
}

func TestDecodeLDDW(t *testing.T) {
	word := encode(OpcodeLDDW, 1, 0, 0, 0x11223344)
	d, err := Decode(word, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Kind != KindLddw || d.Dst != 1 {
		t.Fatalf("unexpected decode: %+v", d)
	}
}

func TestDecodeLdabs(t *testing.T) {
	// ldabsh: class LD, mode ABS, size H -> opcode = 0 | (H<<3) | (ABS<<5)
	opcode := uint8(ClassLD) | uint8(SizeH)<<3 | uint8(ModeABS)<<5
	word := encode(opcode, 0, 0, 0, 2)
	d, err := Decode(word, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Kind != KindLdst || d.Mode != ModeABS || d.Size != SizeH {
		t.Fatalf("unexpected decode: %+v", d)
	}
}

func TestDecodeLdIndFaults(t *testing.T) {
	opcode := uint8(ClassLD) | uint8(SizeW)<<3 | uint8(ModeIND)<<5
	word := encode(opcode, 0, 1, 0, 0)
	_, err := Decode(word, 0)
	var invErr *InvalidInstructionError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected InvalidInstructionError, got %v", err)
	}
}

func TestDecodeUnknownClassFaults(t *testing.T) {
	word := encode(uint8(ClassResvd), 0, 0, 0, 0)
	_, err := Decode(word, 9)
	var invErr *InvalidInstructionError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected InvalidInstructionError, got %v", err)
	}
	if invErr.IP != 9 {
		t.Fatalf("ip = %d, want 9", invErr.IP)
	}
}

func TestDisassembleBasics(t *testing.T) {
	d, _ := Decode(encode(uint8(ClassALU64)|uint8(AluMov)<<4, 0, 0, 0, 7), 0)
	if got, want := Disassemble(d), "mov r0, 7"; got != want {
		t.Fatalf("Disassemble = %q, want %q", got, want)
	}

	jd, _ := Decode(encode(uint8(ClassJMP)|uint8(JmpEXIT)<<4, 0, 0, 0, 0), 0)
	if got, want := Disassemble(jd), "exit"; got != want {
		t.Fatalf("Disassemble(exit) = %q, want %q", got, want)
	}
}
