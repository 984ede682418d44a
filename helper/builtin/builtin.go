// Package builtin provides a small set of concrete helper.Func
// implementations a host can register with a helper.Registry: byte
// gathering from a caller-supplied buffer, a seeded PRNG, a pin/output
// sink, and scratch-slot storage (SPEC_FULL.md §6B).
package builtin

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/oisee/ebpfvm/helper"
)

// GatherBytes returns a helper.Func that reads up to 8 bytes starting at
// offset r1 from src and packs them little-endian into the returned value,
// truncating if fewer than 8 bytes remain. r2 selects how many bytes (1-8)
// to gather; out-of-range r2 is clamped to [1,8].
func GatherBytes(src []byte) helper.Func {
	return func(r1, r2, _, _, _ uint64) (uint64, error) {
		offset := int(r1)
		n := int(r2)
		if n < 1 {
			n = 1
		}
		if n > 8 {
			n = 8
		}
		if offset < 0 || offset >= len(src) {
			return 0, fmt.Errorf("gather: offset %d out of range (len %d)", offset, len(src))
		}
		end := offset + n
		if end > len(src) {
			end = len(src)
		}
		var v uint64
		for i := end - 1; i >= offset; i-- {
			v = v<<8 | uint64(src[i])
		}
		return v, nil
	}
}

// Random returns a helper.Func seeded deterministically from seed, using
// math/rand/v2's rand.NewPCG — the same PRNG source construction the
// teacher's MCMC chain uses for its simulated-annealing search. r1, if
// nonzero, bounds the result to [0, r1); a zero r1 returns the raw 64-bit
// draw.
func Random(seed uint64) helper.Func {
	rng := rand.New(rand.NewPCG(seed, seed^0xdeadbeef))
	var mu sync.Mutex
	return func(r1, _, _, _, _ uint64) (uint64, error) {
		mu.Lock()
		defer mu.Unlock()
		if r1 == 0 {
			return rng.Uint64(), nil
		}
		return rng.Uint64() % r1, nil
	}
}

// PinSink receives values written via PinWrite. A host supplies its own
// implementation (e.g. collecting into a slice, forwarding to a channel).
type PinSink interface {
	Pin(value uint64)
}

// SliceSink is the default PinSink: it appends every written value to an
// in-memory, mutex-guarded slice a host can inspect after a run.
type SliceSink struct {
	mu     sync.Mutex
	values []uint64
}

// Pin records value.
func (s *SliceSink) Pin(value uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, value)
}

// Values returns a copy of all values recorded so far.
func (s *SliceSink) Values() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint64, len(s.values))
	copy(out, s.values)
	return out
}

// PinWrite returns a helper.Func that forwards r1 to sink.Pin and echoes
// it back in R0, letting a program observe its own pinned values without
// a round trip through data memory.
func PinWrite(sink PinSink) helper.Func {
	return func(r1, _, _, _, _ uint64) (uint64, error) {
		sink.Pin(r1)
		return r1, nil
	}
}

// scratchSlots is the fixed width of the scratch store (SPEC_FULL.md §6B).
const scratchSlots = 5

// ScratchStore returns a helper.Func backed by a fixed set of 5 scratch
// registers, independent of the core's data memory and register file: r1
// selects the slot (0-4), r2 is the operation (0=read, 1=write), and for
// writes r3 is the value stored. Reads return the slot's current value in
// R0; an out-of-range slot faults via a returned error (wrapped by the
// core into HelperFailedError).
func ScratchStore() helper.Func {
	var mu sync.Mutex
	var slots [scratchSlots]uint64
	return func(r1, r2, r3, _, _ uint64) (uint64, error) {
		if r1 >= scratchSlots {
			return 0, fmt.Errorf("scratch: slot %d out of range (0-%d)", r1, scratchSlots-1)
		}
		mu.Lock()
		defer mu.Unlock()
		if r2 == 1 {
			slots[r1] = r3
			return r3, nil
		}
		return slots[r1], nil
	}
}
