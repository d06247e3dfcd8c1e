package engine

// commands.go - Phased SQL commands and variable bindings

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/sqlmerger/internal/config"
	"github.com/leapstack-labs/sqlmerger/internal/variables"
)

// RunCommands executes the commands of phase in declared order. Statements
// share the ambient transaction unless a command asks for a commit. The
// first failure stops the phase.
func RunCommands(ctx context.Context, phase config.Phase, p *Process) error {
	selected := p.Config.CommandsFor(phase)

	sqlCtx := context.WithoutCancel(ctx)
	for i, cmd := range selected {
		if err := p.Checkpoint(ctx); err != nil {
			return err
		}

		stmt, err := p.Expand(cmd.SQL)
		if err != nil {
			return fmt.Errorf("%s command %d: %w", phase, i+1, err)
		}

		p.Logger.Debug("executing command", "phase", string(phase), "index", i+1, "commit", cmd.Commit)
		if err := p.Store.Exec(sqlCtx, stmt); err != nil {
			return &SQLExecutionError{Phase: string(phase), Statement: stmt, Err: err}
		}
		if cmd.Commit {
			if err := p.Store.Commit(); err != nil {
				return &SQLExecutionError{Phase: string(phase), Statement: "COMMIT", Err: err}
			}
		}
		p.emit(fraction(i+1, len(selected)), fmt.Sprintf("%s command %d/%d", phase, i+1, len(selected)))
	}
	return nil
}

// ApplyBindings writes the SQL-bound variables to their tables.
func ApplyBindings(ctx context.Context, p *Process) error {
	sqlCtx := context.WithoutCancel(ctx)
	for _, b := range variables.Bindings(p.Config.Variables, p.Values) {
		stmt, args := b.Statement()
		p.Logger.Debug("binding variable", "name", b.Name, "table", b.Table)
		if err := p.Store.Exec(sqlCtx, stmt, args...); err != nil {
			return &SQLExecutionError{Phase: "bindings", Statement: stmt, Err: err}
		}
	}
	return nil
}
