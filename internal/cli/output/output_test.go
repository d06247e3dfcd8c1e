package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/sqlmerger/internal/engine"
	"github.com/leapstack-labs/sqlmerger/internal/state"
	"github.com/stretchr/testify/assert"
)

func TestLineProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, false)

	p.Update(engine.Event{Stage: engine.StageImporting, Fraction: 0.5, Message: "FACT_Ledger: gl.csv (2 rows)"})
	p.Update(engine.Event{Stage: engine.StageImporting, Fraction: 0.6})
	p.Done()

	assert.Equal(t, "[importing   ]  50% FACT_Ledger: gl.csv (2 rows)\n", buf.String())
}

func TestBarProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, true)

	p.Update(engine.Event{Stage: engine.StagePreparing, Fraction: 1, Message: "preparing complete"})
	p.Update(engine.Event{Stage: engine.StageImporting, Fraction: 0.25, Message: strings.Repeat("x", 80)})
	p.Done()

	out := buf.String()
	assert.Contains(t, out, "preparing complete")
	assert.Contains(t, out, "\n\rimporting")
	assert.Contains(t, out, strings.Repeat("x", maxMessage-3)+"...")
	assert.NotContains(t, out, strings.Repeat("x", maxMessage+1))
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestClamp(t *testing.T) {
	assert.InDelta(t, 0.0, clamp(-1), 1e-9)
	assert.InDelta(t, 0.4, clamp(0.4), 1e-9)
	assert.InDelta(t, 1.0, clamp(3), 1e-9)
}

func TestRenderReport(t *testing.T) {
	start := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	r := &engine.Report{
		Timestamp: "20240115_093000",
		Status:    engine.StageFailed,
		Started:   start,
		Finished:  start.Add(1500 * time.Millisecond),
		RowCounts: map[string]int64{"T": 2},
		Files: []engine.FileLoad{
			{Table: "T", File: "a.csv", Rows: 2, Encoding: "utf-8-sig"},
			{Table: "T", File: "b.csv", Skipped: true, Reason: "missing required columns: id"},
		},
		Exports:  []engine.ExportedFile{{Table: "OUT", Path: "/dest/out.csv", Encoding: "cp1252", Rows: 1}},
		Retained: []string{"/dest/Database_20240115_093000.sqlite"},
		Issues:   []engine.Issue{{Stage: engine.StageImporting, Table: "T", File: "b.csv", Message: "file skipped"}},
		Error:    "boom",
	}

	var buf bytes.Buffer
	RenderReport(&buf, NewStyles(false), r)
	out := buf.String()

	for _, want := range []string{
		"Run 20240115_093000 failed in 1.5s, 2 rows imported",
		"Error: boom",
		"a.csv",
		"skipped: missing required columns: id",
		"/dest/out.csv",
		"kept /dest/Database_20240115_093000.sqlite",
		"warning: file skipped (T b.csv)",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRenderVariables(t *testing.T) {
	var buf bytes.Buffer
	RenderVariables(&buf, NewStyles(false), []VariableRow{
		{Name: "periode", Label: "Period", Level: "user", Value: "202401"},
		{Name: "site", Level: "advanced", Err: errors.New("variable site is required")},
	})
	out := buf.String()
	assert.Contains(t, out, "202401")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "variable site is required")

	buf.Reset()
	RenderVariables(&buf, NewStyles(false), nil)
	assert.Equal(t, "(no variables)\n", buf.String())
}

func TestRenderRuns(t *testing.T) {
	start := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	done := start.Add(2 * time.Second)

	var buf bytes.Buffer
	RenderRuns(&buf, NewStyles(false), []*state.Run{
		{ID: "r1", Timestamp: "20240115_093000", Status: state.RunStatusCompleted, StartedAt: start, CompletedAt: &done,
			Summary: state.Summary{Rows: 42, Files: 3}},
		{ID: "r2", Timestamp: "20240115_100000", Status: state.RunStatusRunning, StartedAt: start},
	})
	out := buf.String()
	assert.Contains(t, out, "r1")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "2s")
	assert.Contains(t, out, "running")

	buf.Reset()
	RenderRunFiles(&buf, &state.Run{ID: "r1", Timestamp: "ts", Status: state.RunStatusFailed, Error: "boom"},
		[]state.FileRecord{{Table: "T", File: "a.csv", Rows: 2}, {Table: "T", File: "b.csv", Skipped: true, Reason: "bad"}})
	out = buf.String()
	assert.Contains(t, out, "Run r1 (ts) failed")
	assert.Contains(t, out, "Error: boom")
	assert.Contains(t, out, "skipped: bad")
}

func TestStatusStyles(t *testing.T) {
	s := NewStyles(false)
	assert.Equal(t, "done", s.Status(engine.StageDone))
	assert.Equal(t, "cancelled", s.Status(engine.StageCancelled))
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}
