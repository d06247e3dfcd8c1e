package output

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/sqlmerger/internal/engine"
	"github.com/leapstack-labs/sqlmerger/internal/state"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// RenderReport prints the outcome of a run.
func RenderReport(w io.Writer, s *Styles, r *engine.Report) {
	_, _ = fmt.Fprintf(w, "%s %s in %s, %d rows imported\n",
		s.Header.Render("Run "+r.Timestamp), s.Status(r.Status),
		r.Duration().Round(time.Millisecond), r.TotalRows())
	if r.Error != "" {
		_, _ = fmt.Fprintf(w, "%s %s\n", s.Error.Render("Error:"), r.Error)
	}

	if len(r.Files) > 0 {
		t := newTable(w)
		t.AppendHeader(table.Row{"Table", "File", "Encoding", "Rows", "Dropped", "Status"})
		for _, f := range r.Files {
			status := "loaded"
			if f.Skipped {
				status = "skipped: " + f.Reason
			}
			t.AppendRow(table.Row{f.Table, f.File, f.Encoding, f.Rows, f.Dropped, status})
		}
		t.Render()
	}

	if len(r.RowCounts) > 0 {
		names := make([]string, 0, len(r.RowCounts))
		for name := range r.RowCounts {
			names = append(names, name)
		}
		slices.Sort(names)

		t := newTable(w)
		t.AppendHeader(table.Row{"Table", "Rows"})
		for _, name := range names {
			t.AppendRow(table.Row{name, r.RowCounts[name]})
		}
		t.AppendFooter(table.Row{"Total", r.TotalRows()})
		t.Render()
	}

	if len(r.Exports) > 0 {
		t := newTable(w)
		t.AppendHeader(table.Row{"Export", "File", "Encoding", "Rows"})
		for _, e := range r.Exports {
			t.AppendRow(table.Row{e.Table, e.Path, e.Encoding, e.Rows})
		}
		t.Render()
	}

	for _, path := range r.Retained {
		_, _ = fmt.Fprintf(w, "%s %s\n", s.Muted.Render("kept"), path)
	}
	for _, is := range r.Issues {
		where := is.Table
		if is.File != "" {
			where += " " + is.File
		}
		if where != "" {
			where = " (" + where + ")"
		}
		_, _ = fmt.Fprintf(w, "%s %s%s\n", s.Warning.Render("warning:"), is.Message, where)
	}
}

// VariableRow is one line of the variable listing.
type VariableRow struct {
	Name  string
	Label string
	Level string
	Value string
	Err   error
}

// RenderVariables prints variables with their resolved value and validity.
func RenderVariables(w io.Writer, s *Styles, rows []VariableRow) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(no variables)")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Name", "Label", "Level", "Value", "Status"})
	for _, r := range rows {
		status := s.Success.Render("ok")
		if r.Err != nil {
			status = s.Error.Render(r.Err.Error())
		}
		t.AppendRow(table.Row{r.Name, r.Label, r.Level, r.Value, status})
	}
	t.Render()
}

// RenderRuns prints recorded runs, most recent first.
func RenderRuns(w io.Writer, s *Styles, runs []*state.Run) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "(no runs recorded)")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Timestamp", "Status", "Rows", "Files", "Skipped", "Exports", "Duration"})
	for _, r := range runs {
		duration := ""
		if r.CompletedAt != nil {
			duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		t.AppendRow(table.Row{r.ID, r.Timestamp, runStatus(s, r.Status), r.Rows, r.Files, r.Skipped, r.Exports, duration})
	}
	t.Render()
}

// RenderRunFiles prints the import provenance of a run.
func RenderRunFiles(w io.Writer, run *state.Run, files []state.FileRecord) {
	_, _ = fmt.Fprintf(w, "Run %s (%s) %s\n", run.ID, run.Timestamp, run.Status)
	if run.Error != "" {
		_, _ = fmt.Fprintf(w, "Error: %s\n", run.Error)
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Table", "File", "Rows", "Status"})
	for i, f := range files {
		status := "loaded"
		if f.Skipped {
			status = "skipped: " + f.Reason
		}
		t.AppendRow(table.Row{strconv.Itoa(i + 1), f.Table, f.File, f.Rows, status})
	}
	t.Render()
}

func runStatus(s *Styles, status state.RunStatus) string {
	switch status {
	case state.RunStatusCompleted:
		return s.Success.Render(string(status))
	case state.RunStatusFailed:
		return s.Error.Render(string(status))
	case state.RunStatusCancelled:
		return s.Warning.Render(string(status))
	default:
		return s.Muted.Render(string(status))
	}
}
