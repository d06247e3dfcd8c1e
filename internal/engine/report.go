package engine

// report.go - Outcome of a run

import (
	"time"
)

// Issue is a recoverable problem met during a run.
type Issue struct {
	Stage   Stage  `json:"stage" yaml:"stage"`
	Table   string `json:"table,omitempty" yaml:"table,omitempty"`
	File    string `json:"file,omitempty" yaml:"file,omitempty"`
	Message string `json:"message" yaml:"message"`
}

// FileLoad records one import file and what became of it.
type FileLoad struct {
	Table    string `json:"table" yaml:"table"`
	File     string `json:"file" yaml:"file"`
	Path     string `json:"path" yaml:"path"`
	Encoding string `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	Rows     int64  `json:"rows" yaml:"rows"`
	// Dropped counts blank rows and rows lacking a required value.
	Dropped int64  `json:"dropped,omitempty" yaml:"dropped,omitempty"`
	Skipped bool   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// ExportedFile is a CSV file written by the export pipeline.
type ExportedFile struct {
	Table    string `json:"table" yaml:"table"`
	Name     string `json:"name" yaml:"name"`
	Path     string `json:"path" yaml:"path"`
	Encoding string `json:"encoding" yaml:"encoding"`
	Rows     int64  `json:"rows" yaml:"rows"`
}

// ImportReport summarises the import pipeline.
type ImportReport struct {
	RowCounts map[string]int64
	Files     []FileLoad
}

// Report is returned by every run, whatever its outcome.
type Report struct {
	RunID     string            `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Timestamp string            `json:"timestamp" yaml:"timestamp"`
	Status    Stage             `json:"status" yaml:"status"`
	Started   time.Time         `json:"started" yaml:"started"`
	Finished  time.Time         `json:"finished" yaml:"finished"`
	Variables map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
	RowCounts map[string]int64  `json:"row_counts" yaml:"row_counts"`
	Files     []FileLoad        `json:"files,omitempty" yaml:"files,omitempty"`
	Exports   []ExportedFile    `json:"exports,omitempty" yaml:"exports,omitempty"`
	// Retained lists the files copied to the destination.
	Retained []string `json:"retained,omitempty" yaml:"retained,omitempty"`
	Issues   []Issue  `json:"issues,omitempty" yaml:"issues,omitempty"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Skipped returns the import files that were not loaded.
func (r *Report) Skipped() []FileLoad {
	var out []FileLoad
	for _, f := range r.Files {
		if f.Skipped {
			out = append(out, f)
		}
	}
	return out
}

// TotalRows returns the number of rows imported across all tables.
func (r *Report) TotalRows() int64 {
	var n int64
	for _, c := range r.RowCounts {
		n += c
	}
	return n
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}
