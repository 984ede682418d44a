package batch

import (
	"encoding/gob"
	"os"
)

// Checkpoint holds state for resuming a batch run, a direct port of the
// teacher's result.Checkpoint.
type Checkpoint struct {
	Outcomes       []Outcome
	CompletedTasks int
	TotalTasks     int
}

func init() {
	gob.Register(Outcome{})
}

// SaveCheckpoint writes batch progress to a file.
func SaveCheckpoint(path string, ckpt *Checkpoint) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(ckpt)
}

// LoadCheckpoint loads batch progress from a file.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var ckpt Checkpoint
	if err := gob.NewDecoder(f).Decode(&ckpt); err != nil {
		return nil, err
	}
	return &ckpt, nil
}
