// Package state keeps the history of merge runs in a SQLite ledger.
// The ledger is optional and lives outside the working area of a run.
package state

import (
	"time"
)

// RunStatus is the final state of a recorded run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one recorded merge.
type Run struct {
	ID          string
	Timestamp   string
	ConfigPath  string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Summary
	Error string
}

// Summary holds the counters of a finished run.
type Summary struct {
	Rows    int64
	Files   int
	Skipped int
	Exports int
}

// FileRecord is the provenance of one import file.
type FileRecord struct {
	Table   string
	File    string
	Rows    int64
	Skipped bool
	Reason  string
}
