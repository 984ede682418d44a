package batch

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/oisee/ebpfvm/isa"
)

func mustAssemble(t *testing.T, src string) []uint64 {
	t.Helper()
	words, err := isa.Assemble(src)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return words
}

func TestPoolRunExecutesAllTasks(t *testing.T) {
	pool := NewPool(2)
	tasks := []Task{
		{Name: "a", Program: mustAssemble(t, "mov r0, 1\nexit\n"), MaxTicks: 100},
		{Name: "b", Program: mustAssemble(t, "mov r0, 2\nexit\n"), MaxTicks: 100},
		{Name: "c", Program: mustAssemble(t, "mov r1, 0\ndiv r0, r1\nexit\n"), MaxTicks: 100},
	}
	outcomes := pool.Run(context.Background(), tasks, false)
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	byName := map[string]Outcome{}
	for _, o := range outcomes {
		byName[o.Name] = o
	}
	if byName["a"].Result[0] != 1 {
		t.Fatalf("task a r0 = %d, want 1", byName["a"].Result[0])
	}
	if byName["b"].Result[0] != 2 {
		t.Fatalf("task b r0 = %d, want 2", byName["b"].Result[0])
	}
	if byName["c"].Fault == "" {
		t.Fatalf("task c should have faulted on divide by zero")
	}
	completed, faulted := pool.Stats()
	if completed != 3 || faulted != 1 {
		t.Fatalf("stats = (%d, %d), want (3, 1)", completed, faulted)
	}
}

func TestPoolRunWiresDefaultGatherBytesHelper(t *testing.T) {
	pool := NewPool(1)
	tasks := []Task{
		{
			Name: "gather",
			Program: mustAssemble(t, `
				mov r1, 0
				mov r2, 2
				call 3
				exit
			`),
			Data:     []byte{0x34, 0x12},
			MaxTicks: 100,
		},
	}
	outcomes := pool.Run(context.Background(), tasks, false)
	if len(outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(outcomes))
	}
	if outcomes[0].Fault != "" {
		t.Fatalf("unexpected fault: %s", outcomes[0].Fault)
	}
	if outcomes[0].Result[0] != 0x1234 {
		t.Fatalf("r0 = 0x%x, want 0x1234 (gather-bytes little-endian)", outcomes[0].Result[0])
	}
}

func TestTableJSONRoundTrip(t *testing.T) {
	table := NewTable()
	table.Add(Outcome{Name: "x", Ticks: 5})
	table.Add(Outcome{Name: "y", Ticks: 9, Fault: "boom"})

	var buf bytes.Buffer
	if err := WriteJSON(&buf, table.Outcomes()); err != nil {
		t.Fatalf("write: %v", err)
	}
	read, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(read) != 2 || read[0].Name != "x" || read[1].Fault != "boom" {
		t.Fatalf("unexpected round trip: %+v", read)
	}
}

func TestCheckpointSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ckpt.gob")

	ckpt := &Checkpoint{
		Outcomes:       []Outcome{{Name: "x", Ticks: 3}},
		CompletedTasks: 1,
		TotalTasks:     4,
	}
	if err := SaveCheckpoint(path, ckpt); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.CompletedTasks != 1 || loaded.TotalTasks != 4 || len(loaded.Outcomes) != 1 {
		t.Fatalf("unexpected checkpoint: %+v", loaded)
	}
}

func TestLoadCheckpointMissingFile(t *testing.T) {
	if _, err := LoadCheckpoint(filepath.Join(t.TempDir(), "missing.gob")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
