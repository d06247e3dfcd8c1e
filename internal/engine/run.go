package engine

// run.go - Run controller state machine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/sqlmerger/internal/config"
	"github.com/leapstack-labs/sqlmerger/internal/variables"
)

type step struct {
	stage Stage
	run   func(context.Context, *Process) error
}

// Run executes one merge with the given variable overrides.
//
// The report is returned whatever the outcome. The error is nil when the
// run reached StageDone, ErrCancelled when the context was cancelled, and
// the failure otherwise. Cancellation is observed between stages, files,
// commands and export tables; a statement in flight always completes.
func (e *Engine) Run(ctx context.Context, overrides map[string]string) (*Report, error) {
	wall := time.Now()
	start := e.now()
	ts := start.Format(TimestampLayout)

	p := &Process{
		Config:    e.cfg,
		Timestamp: ts,
		Tabs:      e.tabs,
		Logger:    e.logger.With("run", ts),
		Report: &Report{
			Timestamp: ts,
			Status:    StageIdle,
			Started:   start,
			RowCounts: make(map[string]int64),
		},
		progress: e.progress,
	}
	for _, w := range e.cfg.Warnings {
		p.Warn("", "", w)
	}

	p.Logger.Info("starting run", "config", e.cfg.Path)
	err := e.execute(ctx, p, overrides)
	p.Report.Finished = start.Add(time.Since(wall))
	e.finish(p, err)
	return p.Report, err
}

func (e *Engine) execute(ctx context.Context, p *Process, overrides map[string]string) (err error) {
	defer func() {
		if err != nil {
			p.abort()
		}
		p.cleanup()
	}()

	steps := []step{
		{StagePreparing, func(ctx context.Context, p *Process) error { return e.prepare(ctx, p, overrides) }},
		{StageImporting, e.importing},
		{StageTransforming, e.transforming},
		{StageExporting, e.exporting},
		{StageFinalizing, e.finalizing},
	}

	for _, s := range steps {
		if err := p.Checkpoint(ctx); err != nil {
			return err
		}
		p.enter(s.stage)
		if err := s.run(ctx, p); err != nil {
			return err
		}
		p.emit(1, s.stage.String()+" complete")
	}
	return nil
}

func (e *Engine) prepare(ctx context.Context, p *Process, overrides map[string]string) error {
	var eval Evaluator
	if e.newEvaluator != nil {
		eval = e.newEvaluator(p.Report.Started)
	}
	vals, err := variables.Resolve(e.cfg.Variables, overrides, eval)
	if err != nil {
		return err
	}
	if err := checkTemplates(e.cfg, vals); err != nil {
		return err
	}
	p.Values = vals
	p.Report.Variables = vals.Map()

	if err := e.prepareWorkspace(ctx, p); err != nil {
		return err
	}

	plans, err := PlanImports(p)
	if err != nil {
		return err
	}
	if e.cfg.Base.CopyCSVToTemp {
		if err := stageSources(ctx, p, plans); err != nil {
			return err
		}
	}
	p.plans = plans
	return nil
}

// checkTemplates fails on the first {placeholder} of the configuration that
// vals cannot expand.
func checkTemplates(cfg *config.RunConfig, vals variables.Values) error {
	if err := variables.Check(cfg.Base.KeptDBName, vals); err != nil {
		return fmt.Errorf("kept_db_name: %w", err)
	}
	for _, t := range cfg.Tables {
		var tmpl string
		switch src := t.Source.(type) {
		case config.CSVSource:
			tmpl = src.Path
		case config.OutputSource:
			tmpl = src.FileName
		default:
			continue
		}
		if err := variables.Check(tmpl, vals); err != nil {
			return fmt.Errorf("%s: %w", t.Label(), err)
		}
	}
	for _, phase := range []config.Phase{config.PhaseInit, config.PhasePostImports} {
		for i, cmd := range cfg.CommandsFor(phase) {
			if err := variables.Check(cmd.SQL, vals); err != nil {
				return fmt.Errorf("%s command %d: %w", phase, i+1, err)
			}
		}
	}
	return nil
}

func (e *Engine) importing(ctx context.Context, p *Process) error {
	if err := RunCommands(ctx, config.PhaseInit, p); err != nil {
		return err
	}
	rep, err := ImportAll(ctx, p.plans, p)
	if err != nil {
		return err
	}
	p.Logger.Info("imports complete", "files", len(rep.Files), "tables", len(rep.RowCounts))
	return nil
}

func (e *Engine) transforming(ctx context.Context, p *Process) error {
	if err := ApplyBindings(ctx, p); err != nil {
		return err
	}
	if err := RunCommands(ctx, config.PhasePostImports, p); err != nil {
		return err
	}
	if err := p.Store.Commit(); err != nil {
		return &SQLExecutionError{Phase: "transform", Statement: "COMMIT", Err: err}
	}
	return nil
}

func (e *Engine) exporting(ctx context.Context, p *Process) error {
	if e.cfg.Base.DisableOutput {
		p.Logger.Info("output disabled, skipping exports")
		return nil
	}
	_, err := ExportAll(ctx, e.cfg.Tables, p)
	return err
}

// finalizing releases the store and copies the retained files. It is not
// interrupted by cancellation.
func (e *Engine) finalizing(_ context.Context, p *Process) error {
	if err := p.Store.Commit(); err != nil {
		return &SQLExecutionError{Phase: "finalize", Statement: "COMMIT", Err: err}
	}
	err := p.Store.Close()
	p.Store = nil
	if err != nil {
		return fmt.Errorf("failed to close working store: %w", err)
	}
	return e.retain(p)
}

// abort discards uncommitted work and closes the store.
func (p *Process) abort() {
	if p.Store == nil {
		return
	}
	if err := p.Store.Rollback(); err != nil {
		p.Logger.Warn("rollback failed", "error", err)
	}
	if err := p.Store.Close(); err != nil {
		p.Logger.Warn("failed to close working store", "error", err)
	}
	p.Store = nil
}

func (e *Engine) finish(p *Process, err error) {
	status := StageDone
	switch {
	case err == nil:
		p.Logger.Info("run completed", "rows", p.Report.TotalRows(), "exports", len(p.Report.Exports))
	case errors.Is(err, ErrCancelled):
		status = StageCancelled
		p.Logger.Info("run cancelled", "stage", p.stage.String())
	default:
		status = StageFailed
		p.Report.Error = err.Error()
		p.Logger.Error("run failed", "stage", p.stage.String(), "error", err)
	}

	p.stage = status
	p.Report.Status = status
	p.emit(1, status.String())
}
