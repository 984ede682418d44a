// Package image loads program and data images for a vmcore.Core from flat
// binary streams. It mirrors the byte-order handling in the other_examples
// eBPF reference's Fetch() (which stores an Endianness binary.ByteOrder
// field on the VM and reads one instruction at a time via encoding/binary)
// but reads the whole image eagerly, matching SPEC_FULL.md §6's "accepts a
// pre-loaded program image" contract.
package image

import (
	"encoding/binary"
	"fmt"
	"io"
)

// LoadProgram reads r as a sequence of 8-byte words in the given byte
// order and returns them as instruction words. An input whose length is
// not a multiple of 8 is an error.
func LoadProgram(r io.Reader, order binary.ByteOrder) ([]uint64, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read program image: %w", err)
	}
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("program image length %d is not a multiple of 8", len(raw))
	}
	words := make([]uint64, len(raw)/8)
	for i := range words {
		words[i] = order.Uint64(raw[i*8 : i*8+8])
	}
	return words, nil
}

// LoadData reads up to size bytes from r and returns them verbatim,
// followed by zero bytes up to size if r is shorter than size (§6: "loaded verbatim
// starting at offset 0").
func LoadData(r io.Reader, size int) ([]byte, error) {
	buf := make([]byte, size)
	_, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("read data image: %w", err)
	}
	return buf, nil
}
