package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/leapstack-labs/sqlmerger/internal/engine"
)

// Progress renders the progress events of a run.
type Progress interface {
	Update(ev engine.Event)
	Done()
}

// NewProgress returns a bar renderer when interactive, a line renderer
// otherwise.
func NewProgress(w io.Writer, interactive bool) Progress {
	if interactive {
		return &barProgress{
			w:   w,
			bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		}
	}
	return &lineProgress{w: w}
}

// lineProgress prints one line per event that carries a message.
type lineProgress struct {
	w io.Writer
}

func (p *lineProgress) Update(ev engine.Event) {
	if ev.Message == "" {
		return
	}
	_, _ = fmt.Fprintf(p.w, "[%-12s] %3.0f%% %s\n", ev.Stage, ev.Fraction*100, ev.Message)
}

func (p *lineProgress) Done() {}

// barProgress redraws a single line holding the stage, a bar and the last
// message. A new line starts whenever the stage changes.
type barProgress struct {
	w     io.Writer
	bar   progress.Model
	stage engine.Stage
	drawn bool
	width int
}

const maxMessage = 48

func (p *barProgress) Update(ev engine.Event) {
	if p.drawn && ev.Stage != p.stage {
		_, _ = fmt.Fprintln(p.w)
		p.width = 0
	}
	p.stage = ev.Stage
	p.drawn = true

	msg := ev.Message
	if len(msg) > maxMessage {
		msg = msg[:maxMessage-3] + "..."
	}
	line := fmt.Sprintf("%-12s %s %s", ev.Stage, p.bar.ViewAs(clamp(ev.Fraction)), msg)

	// Pad over the remains of a longer previous line.
	pad := 0
	if n := len(line); n < p.width {
		pad = p.width - n
	} else {
		p.width = n
	}
	_, _ = fmt.Fprintf(p.w, "\r%s%s", line, strings.Repeat(" ", pad))
}

func (p *barProgress) Done() {
	if p.drawn {
		_, _ = fmt.Fprintln(p.w)
	}
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
