// Package batch runs many independent eBPF programs concurrently across a
// fixed worker pool, with progress reporting, a results table, and a
// resumable checkpoint — a direct structural port of the teacher's
// pkg/search.WorkerPool/pkg/result.Table/pkg/result.Checkpoint, substituting
// "execute one (program, data) pair on a fresh vmcore.Core" for
// "search for a shorter Z80 instruction sequence" as the unit of work
// (SPEC_FULL.md §12).
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oisee/ebpfvm/control"
	"github.com/oisee/ebpfvm/helper"
	"github.com/oisee/ebpfvm/helper/builtin"
	"github.com/oisee/ebpfvm/vmcore"
)

// defaultHelperSeed seeds the Random helper DefaultHelpers wires in when a
// Task doesn't supply its own registry.
const defaultHelperSeed = 1

// DefaultHelpers builds the helper registry a Task gets when it does not
// supply its own: Random (id 1), ScratchStore (id 2), and GatherBytes
// (id 3) bound to the task's own data image, so a batch run exercises the
// same concrete helper bridge cmd/ebpfvm wires in (SPEC_FULL.md §6B)
// instead of running with no helpers at all.
func DefaultHelpers(data []byte, seed uint64) *helper.Registry {
	return helper.NewRegistry(map[uint32]helper.Func{
		1: builtin.Random(seed),
		2: builtin.ScratchStore(),
		3: builtin.GatherBytes(data),
	})
}

// Task is one unit of work: a program and data image to execute, plus the
// tick budget to give it.
type Task struct {
	Name     string
	Program  []uint64
	Data     []byte
	Helpers  *helper.Registry
	Inputs   [5]uint64
	MaxTicks uint64
}

// Outcome records what happened when a Task ran.
type Outcome struct {
	Name   string
	Ticks  uint64
	Fault  string
	Result [vmcore.NumRegisters]uint64
}

// Pool runs Tasks across a fixed number of worker goroutines, mirroring
// the teacher's WorkerPool: a buffered channel of work, N drain
// goroutines, a sync.WaitGroup, and a ticker-driven progress reporter
// computing a rate and ETA.
type Pool struct {
	NumWorkers int
	Results    *Table

	completed atomic.Int64
	faulted   atomic.Int64
}

// NewPool creates a Pool with the given worker count (0 = runtime.NumCPU()).
func NewPool(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &Pool{NumWorkers: numWorkers, Results: NewTable()}
}

// Stats returns the completed and faulted task counts observed so far.
func (p *Pool) Stats() (completed, faulted int64) {
	return p.completed.Load(), p.faulted.Load()
}

// Run distributes tasks across the pool's workers and blocks until every
// task has been executed (or ctx is canceled). Progress is printed every
// 10 seconds, exactly as the teacher's RunTasks does for search progress.
func (p *Pool) Run(ctx context.Context, tasks []Task, verbose bool) []Outcome {
	total := int64(len(tasks))

	ch := make(chan Task, len(tasks))
	for _, task := range tasks {
		ch <- task
	}
	close(ch)

	done := make(chan struct{})
	start := time.Now()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		var lastCompleted int64
		lastTime := start
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				now := time.Now()
				comp := p.completed.Load()
				dt := now.Sub(lastTime).Seconds()
				rate := float64(comp-lastCompleted) / dt
				lastCompleted = comp
				lastTime = now

				var eta string
				if comp > 0 {
					elapsed := now.Sub(start)
					remaining := time.Duration(float64(elapsed) * float64(total-comp) / float64(comp))
					eta = remaining.Round(time.Second).String()
				} else {
					eta = "..."
				}
				pct := float64(comp) / float64(total) * 100
				fmt.Printf("  [%s] %d/%d tasks (%.1f%%) | %d faulted | %.1f tasks/s | ETA %s\n",
					now.Sub(start).Round(time.Second), comp, total, pct, p.faulted.Load(), rate, eta)
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < p.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range ch {
				select {
				case <-ctx.Done():
					return
				default:
				}
				outcome := execute(task)
				p.Results.Add(outcome)
				p.completed.Add(1)
				if outcome.Fault != "" {
					p.faulted.Add(1)
				}
				if verbose {
					fmt.Printf("  %s: ticks=%d fault=%q\n", outcome.Name, outcome.Ticks, outcome.Fault)
				}
			}
		}()
	}
	wg.Wait()
	close(done)

	elapsed := time.Since(start)
	comp := p.completed.Load()
	fmt.Printf("  [%s] %d/%d tasks (100.0%%) | %d faulted | DONE\n",
		elapsed.Round(time.Second), comp, total, p.faulted.Load())

	return p.Results.Outcomes()
}

// execute runs one task to completion on a fresh Core, driven through a
// control.Plane rather than touching the Core directly (SPEC_FULL.md §6A).
func execute(task Task) Outcome {
	helpers := task.Helpers
	if helpers == nil {
		helpers = DefaultHelpers(task.Data, defaultHelperSeed)
	}

	core := vmcore.New(vmcore.Config{
		Program: task.Program,
		Data:    task.Data,
		Helpers: helpers,
		Inputs:  task.Inputs,
	})
	plane := control.New(core, task.MaxTicks)
	err := plane.WriteCtl(control.CtlResetRelease)

	var regs [vmcore.NumRegisters]uint64
	for i := range regs {
		regs[i], _ = plane.ReadReg(i)
	}

	faultMsg := ""
	if err != nil {
		faultMsg = err.Error()
	}

	return Outcome{
		Name:   task.Name,
		Ticks:  plane.Ticks(),
		Fault:  faultMsg,
		Result: regs,
	}
}
