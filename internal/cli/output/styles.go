// Package output renders run progress, reports and listings for the CLI.
package output

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/leapstack-labs/sqlmerger/internal/engine"
	"golang.org/x/term"
)

// Styles holds the lipgloss styles used by the CLI.
type Styles struct {
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
	Header  lipgloss.Style
}

// NewStyles returns colored styles, or plain ones when color is false.
func NewStyles(color bool) *Styles {
	if !color {
		plain := lipgloss.NewStyle()
		return &Styles{Success: plain, Error: plain, Warning: plain, Muted: plain, Header: plain}
	}
	return &Styles{
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Header:  lipgloss.NewStyle().Bold(true),
	}
}

// Status styles a terminal stage.
func (s *Styles) Status(stage engine.Stage) string {
	label := stage.String()
	switch stage {
	case engine.StageDone:
		return s.Success.Render(label)
	case engine.StageFailed:
		return s.Error.Render(label)
	case engine.StageCancelled:
		return s.Warning.Render(label)
	default:
		return s.Muted.Render(label)
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}
