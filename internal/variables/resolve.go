// Package variables resolves run variables and expands {placeholder}
// templates with their values.
package variables

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/sqlmerger/internal/config"
)

// TimestampKey is the reserved placeholder holding the run timestamp.
const TimestampKey = "timestamp"

// Evaluator computes the value of an expression default ("=..." prefix
// removed).
type Evaluator interface {
	Evaluate(expr string) (string, error)
}

// Values is the immutable name -> value mapping of a run.
// Lookups ignore case.
type Values struct {
	byKey map[string]string
	names []string
}

// NewValues builds a Values from a plain map.
func NewValues(m map[string]string) Values {
	v := Values{byKey: make(map[string]string, len(m))}
	for name, value := range m {
		v.byKey[strings.ToLower(name)] = value
		v.names = append(v.names, name)
	}
	sort.Strings(v.names)
	return v
}

// Get returns the value of name.
func (v Values) Get(name string) (string, bool) {
	val, ok := v.byKey[strings.ToLower(name)]
	return val, ok
}

// Names returns the resolved variable names, sorted.
func (v Values) Names() []string {
	return append([]string(nil), v.names...)
}

// Map returns a copy of the mapping keyed by declared names.
func (v Values) Map() map[string]string {
	out := make(map[string]string, len(v.names))
	for _, n := range v.names {
		out[n] = v.byKey[strings.ToLower(n)]
	}
	return out
}

// Len returns the number of resolved variables.
func (v Values) Len() int {
	return len(v.names)
}

// InvalidValueError reports a value rejected by the variable's control pattern.
type InvalidValueError struct {
	Name    string
	Value   string
	Pattern string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("variable %s: value %q does not match %q", e.Name, e.Value, e.Pattern)
}

// MissingRequiredError reports an empty value for a non-optional variable.
type MissingRequiredError struct {
	Name string
}

func (e *MissingRequiredError) Error() string {
	return fmt.Sprintf("variable %s: a value is required", e.Name)
}

// EvaluationError reports a computed default that could not be evaluated.
type EvaluationError struct {
	Name string
	Expr string
	Err  error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("variable %s: evaluating %q: %v", e.Name, e.Expr, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Default computes the default value of a variable without validating it.
func Default(v config.Variable, eval Evaluator) (string, error) {
	if !v.Computed() {
		return v.Default, nil
	}
	if eval == nil {
		return "", &EvaluationError{Name: v.Name, Expr: v.Default, Err: fmt.Errorf("no evaluator configured")}
	}
	val, err := eval.Evaluate(strings.TrimPrefix(v.Default, "="))
	if err != nil {
		return "", &EvaluationError{Name: v.Name, Expr: v.Default, Err: err}
	}
	return val, nil
}

// Validate checks a candidate value against the variable's rules.
func Validate(v config.Variable, value string) error {
	if value == "" {
		if v.Optional {
			return nil
		}
		return &MissingRequiredError{Name: v.Name}
	}
	if v.Pattern != nil && !v.Pattern.MatchString(value) {
		return &InvalidValueError{Name: v.Name, Value: value, Pattern: v.PatternText}
	}
	return nil
}

// Resolve computes the value of every variable. An override wins over the
// default; override keys ignore case. The first invalid variable aborts
// resolution.
func Resolve(vars []config.Variable, overrides map[string]string, eval Evaluator) (Values, error) {
	lowered := make(map[string]string, len(overrides))
	for k, val := range overrides {
		lowered[strings.ToLower(k)] = val
	}

	out := make(map[string]string, len(vars))
	for _, v := range vars {
		value, ok := lowered[strings.ToLower(v.Name)]
		if !ok {
			var err error
			if value, err = Default(v, eval); err != nil {
				return Values{}, err
			}
		}
		value = strings.TrimSpace(value)
		if err := Validate(v, value); err != nil {
			return Values{}, err
		}
		out[v.Name] = value
	}
	return NewValues(out), nil
}
