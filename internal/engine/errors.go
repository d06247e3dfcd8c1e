package engine

// errors.go - Error taxonomy of a run

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCancelled is returned when the run context was cancelled. A cancelled
// run ends in StageCancelled, not StageFailed.
var ErrCancelled = errors.New("run cancelled")

// SQLExecutionError reports a statement that failed. It is fatal.
type SQLExecutionError struct {
	Phase     string
	Statement string
	Err       error
}

func (e *SQLExecutionError) Error() string {
	return fmt.Sprintf("%s: executing %q: %v", e.Phase, e.Statement, e.Err)
}

func (e *SQLExecutionError) Unwrap() error { return e.Err }

// MissingRequiredColumnsError reports an import file whose header lacks
// required columns. The file is skipped and the run continues.
type MissingRequiredColumnsError struct {
	Table   string
	File    string
	Missing []string
}

func (e *MissingRequiredColumnsError) Error() string {
	return fmt.Sprintf("%s: file %s is missing required columns %s", e.Table, e.File, strings.Join(e.Missing, ", "))
}

// SourceNotFoundError reports a CSV source that does not exist or holds no
// matching file while missing files are not allowed.
type SourceNotFoundError struct {
	Table string
	Err   error
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("%s: %v", e.Table, e.Err)
}

func (e *SourceNotFoundError) Unwrap() error { return e.Err }

// IOError reports a file system or file format failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
