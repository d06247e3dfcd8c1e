package engine

// process.go - Run-scoped state shared by the pipeline steps

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/sqlmerger/internal/config"
	"github.com/leapstack-labs/sqlmerger/internal/variables"
)

// Process is the state of one run. It is created by Run and handed to the
// pipeline steps; the configuration and resolved values never change once
// Preparing is over.
type Process struct {
	Config    *config.RunConfig
	Timestamp string
	Values    variables.Values
	WorkDir   string
	StorePath string
	Store     Store
	Tabs      TabReader
	Logger    *slog.Logger
	Report    *Report

	plans    []ImportPlan
	stage    Stage
	progress ProgressFunc
}

// Expand replaces {placeholders} with resolved values and the timestamp.
func (p *Process) Expand(template string) (string, error) {
	return variables.Expand(template, p.Values, p.Timestamp)
}

// Checkpoint returns ErrCancelled once ctx is done. The pipeline calls it
// between files, commands, export tables and stages only.
func (p *Process) Checkpoint(ctx context.Context) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}
	return nil
}

// Warn records a recoverable issue.
func (p *Process) Warn(table, file, msg string) {
	p.Logger.Warn(msg, "stage", p.stage.String(), "table", table, "file", file)
	p.Report.Issues = append(p.Report.Issues, Issue{Stage: p.stage, Table: table, File: file, Message: msg})
}

func (p *Process) enter(stage Stage) {
	p.stage = stage
	p.Report.Status = stage
	p.Logger.Info("entering stage", "stage", stage.String())
	p.emit(0, stage.String())
}

func (p *Process) emit(fraction float64, msg string) {
	if p.progress == nil {
		return
	}
	p.progress(Event{Stage: p.stage, Fraction: fraction, Message: msg})
}

// fraction returns done/total, or 1 when there is nothing to do.
func fraction(done, total int) float64 {
	if total <= 0 {
		return 1
	}
	return float64(done) / float64(total)
}
