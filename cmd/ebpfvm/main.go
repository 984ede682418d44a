// Command ebpfvm runs, disassembles, and single-steps eBPF programs. Its
// command tree follows the teacher's cmd/z80opt/main.go: one
// *cobra.Command per subcommand, Flags().*Var for options, RunE closures
// returning %w-wrapped errors (SPEC_FULL.md §11). Every subcommand that
// drives a core does so through control.Plane, never vmcore.Core directly
// (SPEC_FULL.md §6A).
package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oisee/ebpfvm/control"
	"github.com/oisee/ebpfvm/helper"
	"github.com/oisee/ebpfvm/helper/builtin"
	"github.com/oisee/ebpfvm/image"
	"github.com/oisee/ebpfvm/isa"
	"github.com/oisee/ebpfvm/vmcore"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ebpfvm",
		Short: "ebpfvm — a software eBPF virtual machine core",
	}

	rootCmd.AddCommand(newRunCmd(), newDisasmCmd(), newStepCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a terminal run error to the exit codes SPEC_FULL.md §6
// reserves: 0 normal EXIT, 1 a core fault (and any other CLI error), 3 the
// instruction budget was exhausted without the program halting. Code 2
// (external interrupt) is never returned.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var tickErr *vmcore.TickLimitError
	if errors.As(err, &tickErr) {
		return 3
	}
	var fault vmcore.Fault
	if errors.As(err, &fault) {
		return 1
	}
	return 1
}

func newRunCmd() *cobra.Command {
	var asmPath string
	var dataPath string
	var maxTicks uint64
	var bigEndian bool
	var enablePin bool
	var enableGather bool
	var seed uint64

	cmd := &cobra.Command{
		Use:   "run [program]",
		Short: "Load and run a program image or assembly file to completion",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			words, err := loadProgram(args, asmPath, bigEndian)
			if err != nil {
				return fmt.Errorf("load program: %w", err)
			}
			data, err := loadData(dataPath)
			if err != nil {
				return fmt.Errorf("load data: %w", err)
			}

			funcs := map[uint32]helper.Func{
				1: builtin.Random(seed),
				2: builtin.ScratchStore(),
			}
			sink := &builtin.SliceSink{}
			if enablePin {
				funcs[3] = builtin.PinWrite(sink)
			}
			if enableGather {
				funcs[4] = builtin.GatherBytes(data)
			}

			core := vmcore.New(vmcore.Config{
				Program: words,
				Data:    data,
				Helpers: helper.NewRegistry(funcs),
			})
			plane := control.New(core, maxTicks)

			runErr := plane.WriteCtl(control.CtlResetRelease)
			status := plane.Status()
			fmt.Printf("ticks=%d ip=%d status=0x%02x (released=%v halt=%v error=%v)\n",
				plane.Ticks(), plane.IP(), status,
				status&control.StatusResetReleased != 0,
				status&control.StatusHalt != 0,
				status&control.StatusError != 0)
			for i := 0; i < vmcore.NumRegisters; i++ {
				v, _ := plane.ReadReg(i)
				fmt.Printf("  r%d = 0x%x\n", i, v)
			}
			if enablePin {
				fmt.Printf("pinned: %v\n", sink.Values())
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&asmPath, "asm", "", "Assemble this mnemonic source file instead of reading a binary image")
	cmd.Flags().StringVar(&dataPath, "data", "", "Data memory image file")
	cmd.Flags().Uint64Var(&maxTicks, "max-ticks", 1_000_000, "Instruction budget (0 = unlimited)")
	cmd.Flags().BoolVar(&bigEndian, "big-endian", false, "Program image is big-endian on disk")
	cmd.Flags().BoolVar(&enablePin, "enable-pin", false, "Register the pin-write helper (id 3) and print pinned values")
	cmd.Flags().BoolVar(&enableGather, "enable-gather", false, "Register the gather-bytes helper (id 4) over the data image")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Seed for the random helper (id 1)")
	return cmd
}

func newDisasmCmd() *cobra.Command {
	var asmPath string
	var bigEndian bool

	cmd := &cobra.Command{
		Use:   "disasm [program]",
		Short: "Disassemble a program image or assembly file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			words, err := loadProgram(args, asmPath, bigEndian)
			if err != nil {
				return fmt.Errorf("load program: %w", err)
			}
			for ip := 0; ip < len(words); ip++ {
				d, err := isa.Decode(words[ip], uint32(ip))
				if err != nil {
					fmt.Printf("%4d: <invalid: %v>\n", ip, err)
					continue
				}
				fmt.Printf("%4d: %s\n", ip, isa.Disassemble(d))
				if d.Kind == isa.KindLddw {
					ip++ // the second word of an LDDW pair is not independently printed
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&asmPath, "asm", "", "Assemble this mnemonic source file instead of reading a binary image")
	cmd.Flags().BoolVar(&bigEndian, "big-endian", false, "Program image is big-endian on disk")
	return cmd
}

func newStepCmd() *cobra.Command {
	var asmPath string
	var dataPath string
	var count int
	var bigEndian bool

	cmd := &cobra.Command{
		Use:   "step [program]",
		Short: "Single-step a program, printing register state after each instruction",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			words, err := loadProgram(args, asmPath, bigEndian)
			if err != nil {
				return fmt.Errorf("load program: %w", err)
			}
			data, err := loadData(dataPath)
			if err != nil {
				return fmt.Errorf("load data: %w", err)
			}
			core := vmcore.New(vmcore.Config{Program: words, Data: data})
			plane := control.New(core, 0)
			plane.SetDebugEnabled(true)

			for i := 0; i < count && plane.Status()&control.StatusHalt == 0; i++ {
				ip := plane.IP()
				if err := plane.WriteCtl(control.CtlResetRelease); err != nil {
					fmt.Printf("step %d (ip=%d): fault: %v\n", i, ip, err)
					return err
				}
				r0, _ := plane.ReadReg(0)
				fmt.Printf("step %d (ip=%d): r0=0x%x ticks=%d\n", i, ip, r0, plane.Ticks())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&asmPath, "asm", "", "Assemble this mnemonic source file instead of reading a binary image")
	cmd.Flags().StringVar(&dataPath, "data", "", "Data memory image file")
	cmd.Flags().IntVar(&count, "count", 1, "Number of instructions to step")
	cmd.Flags().BoolVar(&bigEndian, "big-endian", false, "Program image is big-endian on disk")
	return cmd
}

func loadProgram(args []string, asmPath string, bigEndian bool) ([]uint64, error) {
	if asmPath != "" {
		src, err := os.ReadFile(asmPath)
		if err != nil {
			return nil, err
		}
		return isa.Assemble(string(src))
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("either a program image argument or --asm is required")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, err
	}
	defer f.Close()
	order := byteOrder(bigEndian)
	return image.LoadProgram(f, order)
}

func loadData(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return image.LoadData(f, int(info.Size()))
}

func byteOrder(bigEndian bool) binary.ByteOrder {
	if bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
