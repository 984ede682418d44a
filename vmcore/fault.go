package vmcore

import "fmt"

// Fault is implemented by every error the core can raise. Every Fault
// except *TickLimitError leaves the core halted and in the error state; a
// TickLimitError leaves it resumable (see Core.RunToCompletion). Callers
// recover fault-specific fields with errors.As rather than string-matching.
type Fault interface {
	error
	isFault()
}

// InvalidInstructionError reports an unknown class/op/mode/size combination,
// or a malformed LDDW second word.
type InvalidInstructionError struct {
	Word uint64
	IP   uint32
}

func (e *InvalidInstructionError) Error() string {
	return fmt.Sprintf("invalid instruction 0x%016x at ip=%d", e.Word, e.IP)
}
func (*InvalidInstructionError) isFault() {}

// InvalidRegisterError reports a decoded dst or src register index >= 11.
type InvalidRegisterError struct {
	Index uint8
}

func (e *InvalidRegisterError) Error() string {
	return fmt.Sprintf("invalid register index %d", e.Index)
}
func (*InvalidRegisterError) isFault() {}

// DivideByZeroError reports a DIV/MOD with a zero divisor.
type DivideByZeroError struct{}

func (e *DivideByZeroError) Error() string { return "divide by zero" }
func (*DivideByZeroError) isFault()        {}

// DataBoundsError reports a load or store outside data memory.
type DataBoundsError struct {
	Addr int64
	Size int
}

func (e *DataBoundsError) Error() string {
	return fmt.Sprintf("data access out of bounds: addr=%d size=%d", e.Addr, e.Size)
}
func (*DataBoundsError) isFault() {}

// ProgramBoundsError reports an instruction pointer outside program memory.
type ProgramBoundsError struct {
	IP uint32
}

func (e *ProgramBoundsError) Error() string {
	return fmt.Sprintf("program counter out of bounds: ip=%d", e.IP)
}
func (*ProgramBoundsError) isFault() {}

// UnknownHelperError reports a CALL imm with no registered handler.
type UnknownHelperError struct {
	ID uint32
}

func (e *UnknownHelperError) Error() string {
	return fmt.Sprintf("unknown helper %d", e.ID)
}
func (*UnknownHelperError) isFault() {}

// HelperFailedError wraps an error a helper handler returned.
type HelperFailedError struct {
	ID  uint32
	Err error
}

func (e *HelperFailedError) Error() string {
	return fmt.Sprintf("helper %d failed: %v", e.ID, e.Err)
}
func (e *HelperFailedError) Unwrap() error { return e.Err }
func (*HelperFailedError) isFault()        {}

// TickLimitError reports that the caller-supplied instruction budget was
// exhausted before the program halted.
type TickLimitError struct {
	Ticks uint64
}

func (e *TickLimitError) Error() string {
	return fmt.Sprintf("tick limit exceeded after %d ticks", e.Ticks)
}
func (*TickLimitError) isFault() {}
