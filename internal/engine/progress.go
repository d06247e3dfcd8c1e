package engine

// progress.go - Run stages and progress events

// Stage is a state of the run controller.
type Stage int

// Run stages, in execution order. Done, Cancelled and Failed are terminal.
const (
	StageIdle Stage = iota
	StagePreparing
	StageImporting
	StageTransforming
	StageExporting
	StageFinalizing
	StageDone
	StageCancelled
	StageFailed
)

var stageNames = [...]string{
	StageIdle:         "idle",
	StagePreparing:    "preparing",
	StageImporting:    "importing",
	StageTransforming: "transforming",
	StageExporting:    "exporting",
	StageFinalizing:   "finalizing",
	StageDone:         "done",
	StageCancelled:    "cancelled",
	StageFailed:       "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Terminal reports whether the run has ended.
func (s Stage) Terminal() bool {
	return s >= StageDone
}

// MarshalText renders the stage name in reports.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event is a progress notification. Fraction is the completed share of
// the current stage, from 0 to 1.
type Event struct {
	Stage    Stage
	Fraction float64
	Message  string
}

// ProgressFunc receives progress events. It is called from the goroutine
// running the pipeline and must not block for long.
type ProgressFunc func(Event)
