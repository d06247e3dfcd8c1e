// Package starlark evaluates the "=" expressions used as computed variable
// defaults. Expressions are Starlark with a small set of date builtins and
// run against a clock frozen at the start of the run.
package starlark

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	startime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
)

// Evaluator evaluates expressions against a frozen clock.
type Evaluator struct {
	// Now is the instant every call to now() returns.
	Now    time.Time
	Logger *slog.Logger

	globals starlark.StringDict
}

// NewEvaluator creates an evaluator whose clock is frozen at now.
func NewEvaluator(now time.Time, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Evaluator{Now: now, Logger: logger}
	e.globals = Predeclared(e.clock)
	return e
}

func (e *Evaluator) clock() time.Time {
	return e.Now
}

// Evaluate evaluates expr and renders the result the way the expression
// language prints it. A leading "=" is ignored and blank input yields "".
func (e *Evaluator) Evaluate(expr string) (string, error) {
	expr = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(expr), "="))
	if expr == "" {
		return "", nil
	}

	thread := e.newThread()
	result, err := starlark.Eval(thread, "<default>", expr, e.globals) //nolint:staticcheck // SA1019: will migrate to EvalOptions later
	if err != nil {
		e.Logger.Debug("expression failed", "expr", expr, "error", err)
		return "", &EvalError{Expr: expr, Message: evalMessage(err)}
	}
	return ToString(result), nil
}

func (e *Evaluator) newThread() *starlark.Thread {
	thread := &starlark.Thread{
		Name: "default",
		Print: func(_ *starlark.Thread, _ string) {
		},
	}
	startime.SetNow(thread, func() (time.Time, error) { return e.Now, nil })
	return thread
}

// EvalError represents an error during expression evaluation.
type EvalError struct {
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("error evaluating %q: %s", e.Expr, e.Message)
}

func evalMessage(err error) string {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Msg
	}
	return err.Error()
}
