package sweep

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Entry captures the outcome of one grid point.
type Entry struct {
	Point
	RunID         string  `json:"run_id,omitempty"`
	Status        string  `json:"status"`
	RorMean       float64 `json:"ror_mean"`
	RorVolatility float64 `json:"ror_volatility"`
	Error         string  `json:"error,omitempty"`
}

// Failed reports whether the run ended on a market failure or did not run.
func (e Entry) Failed() bool { return e.Error != "" || e.Status != "0" }

// Journal records finished grid points so an interrupted sweep can resume.
// An empty Path keeps the journal in memory only.
type Journal struct {
	Path    string  `json:"-"`
	Entries []Entry `json:"entries"`
}

// LoadJournal reads the journal file. Returns an empty journal if the file
// does not exist; a corrupt file starts fresh.
func LoadJournal(path string) *Journal {
	j := &Journal{Path: path}
	if path == "" {
		return j
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("sweep journal unreadable, starting fresh", "path", path, "error", err)
		}
		return j
	}
	if err := json.Unmarshal(data, j); err != nil {
		slog.Warn("sweep journal corrupted, starting fresh", "path", path, "error", err)
		return &Journal{Path: path}
	}
	return j
}

// Save writes the journal to disk.
func (j *Journal) Save() error {
	if j.Path == "" {
		return nil
	}
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal journal: %w", err)
	}
	if err := os.WriteFile(j.Path, data, 0o644); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// Record adds an entry, replacing any earlier entry for the same point.
func (j *Journal) Record(e Entry) {
	for i := range j.Entries {
		if j.Entries[i].Point == e.Point {
			j.Entries[i] = e
			return
		}
	}
	j.Entries = append(j.Entries, e)
}

// Done reports whether p already completed without an execution error.
func (j *Journal) Done(p Point) bool {
	for _, e := range j.Entries {
		if e.Point == p && e.Error == "" {
			return true
		}
	}
	return false
}
