package batch

import (
	"encoding/json"
	"io"
	"sort"
	"sync"
)

// Table stores Outcomes produced by a Pool, guarded by a mutex exactly as
// the teacher's result.Table guards its rule slice.
type Table struct {
	mu       sync.Mutex
	outcomes []Outcome
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{}
}

// Add inserts an outcome into the table.
func (t *Table) Add(o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outcomes = append(t.outcomes, o)
}

// Outcomes returns a copy of all outcomes, sorted by name for stable
// output (the teacher's Rules() sorts by bytes/cycles saved instead, since
// there the ordering is the point of the result; here name gives
// deterministic, diffable output).
func (t *Table) Outcomes() []Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Outcome, len(t.outcomes))
	copy(out, t.outcomes)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of outcomes recorded.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.outcomes)
}

// WriteJSON writes outcomes as a human-diffable JSON array, mirroring the
// teacher's result.WriteJSON.
func WriteJSON(w io.Writer, outcomes []Outcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(outcomes)
}

// ReadJSON reads outcomes written by WriteJSON.
func ReadJSON(r io.Reader) ([]Outcome, error) {
	var outcomes []Outcome
	if err := json.NewDecoder(r).Decode(&outcomes); err != nil {
		return nil, err
	}
	return outcomes, nil
}
