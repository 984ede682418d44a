package image

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestLoadProgramLittleEndian(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint64(0x1122334455667788))
	binary.Write(&buf, binary.LittleEndian, uint64(42))

	words, err := LoadProgram(&buf, binary.LittleEndian)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(words) != 2 || words[0] != 0x1122334455667788 || words[1] != 42 {
		t.Fatalf("got %#v", words)
	}
}

func TestLoadProgramRejectsPartialWord(t *testing.T) {
	buf := bytes.NewReader([]byte{1, 2, 3})
	if _, err := LoadProgram(buf, binary.LittleEndian); err == nil {
		t.Fatalf("expected error for truncated image")
	}
}

func TestLoadDataZeroPads(t *testing.T) {
	data, err := LoadData(bytes.NewReader([]byte{1, 2, 3}), 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{1, 2, 3, 0, 0, 0, 0, 0}
	if !bytes.Equal(data, want) {
		t.Fatalf("got %v, want %v", data, want)
	}
}

func TestLoadDataTruncatesOversized(t *testing.T) {
	data, err := LoadData(bytes.NewReader([]byte{1, 2, 3, 4, 5}), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Fatalf("got %v", data)
	}
}
