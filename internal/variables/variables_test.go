package variables

import (
	"errors"
	"regexp"
	"testing"

	"github.com/leapstack-labs/sqlmerger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvaluator map[string]string

func (f fakeEvaluator) Evaluate(expr string) (string, error) {
	if v, ok := f[expr]; ok {
		return v, nil
	}
	return "", errors.New("unknown expression")
}

func isType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

func periodVar() config.Variable {
	return config.Variable{
		Name:        "periode",
		Level:       config.LevelUser,
		Default:     "=format_date(now(), '%Y%m')",
		Pattern:     regexp.MustCompile(`^(?:\d{6})$`),
		PatternText: `\d{6}`,
	}
}

func TestResolve(t *testing.T) {
	eval := fakeEvaluator{"format_date(now(), '%Y%m')": "202401"}

	tests := []struct {
		name      string
		vars      []config.Variable
		overrides map[string]string
		want      map[string]string
		wantErr   func(error) bool
	}{
		{
			name: "computed default",
			vars: []config.Variable{periodVar()},
			want: map[string]string{"periode": "202401"},
		},
		{
			name:      "override wins and ignores case",
			vars:      []config.Variable{periodVar()},
			overrides: map[string]string{"PERIODE": "202312"},
			want:      map[string]string{"periode": "202312"},
		},
		{
			name:      "override rejected by pattern",
			vars:      []config.Variable{periodVar()},
			overrides: map[string]string{"periode": "2023-12"},
			wantErr:   isType[*InvalidValueError],
		},
		{
			name:    "empty required",
			vars:    []config.Variable{{Name: "entity"}},
			wantErr: isType[*MissingRequiredError],
		},
		{
			name: "empty optional skips pattern",
			vars: []config.Variable{{Name: "entity", Optional: true, Pattern: regexp.MustCompile(`^(?:X)$`)}},
			want: map[string]string{"entity": ""},
		},
		{
			name: "literal default",
			vars: []config.Variable{{Name: "entity", Default: "ACME"}},
			want: map[string]string{"entity": "ACME"},
		},
		{
			name:    "evaluation failure",
			vars:    []config.Variable{{Name: "d", Default: "=nope()"}},
			wantErr: isType[*EvaluationError],
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vals, err := Resolve(tt.vars, tt.overrides, eval)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err), "unexpected error type %T", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, vals.Map())
		})
	}
}

func TestResolve_Deterministic(t *testing.T) {
	eval := fakeEvaluator{"format_date(now(), '%Y%m')": "202401"}
	vars := []config.Variable{periodVar(), {Name: "entity", Default: "ACME"}}

	a, err := Resolve(vars, nil, eval)
	require.NoError(t, err)
	b, err := Resolve(vars, nil, eval)
	require.NoError(t, err)
	assert.Equal(t, a.Map(), b.Map())
}

func TestExpand(t *testing.T) {
	vals := NewValues(map[string]string{"periode": "202401", "Entity": "ACME"})

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"export name", "Export_{periode}_{timestamp}.csv", "Export_202401_20240115_093000.csv"},
		{"no placeholder", "plain/path.csv", "plain/path.csv"},
		{"case insensitive", "{ENTITY}-{Periode}", "ACME-202401"},
		{"repeated", "{periode}{periode}", "202401202401"},
		{"non identifier braces kept", `SELECT json('{"a": 1}') WHERE p = '{periode}'`, `SELECT json('{"a": 1}') WHERE p = '202401'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.template, vals, "20240115_093000")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpand_Unresolved(t *testing.T) {
	vals := NewValues(map[string]string{"periode": "202401"})

	_, err := Expand("{periode}/{missing}.csv", vals, "ts")
	var upe *UnresolvedPlaceholderError
	require.ErrorAs(t, err, &upe)
	assert.Equal(t, "missing", upe.Identifier)
}

func TestCheck(t *testing.T) {
	vals := NewValues(map[string]string{"periode": "202401"})

	assert.NoError(t, Check("Export_{PERIODE}_{Timestamp}.csv", vals))
	assert.NoError(t, Check("no placeholders {} or {1x}", vals))

	err := Check("DELETE FROM T WHERE id = '{nope}'", vals)
	var upe *UnresolvedPlaceholderError
	require.ErrorAs(t, err, &upe)
	assert.Equal(t, "nope", upe.Identifier)
	assert.Equal(t, "DELETE FROM T WHERE id = '{nope}'", upe.Template)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"a", "timestamp"}, Placeholders("{a}_{timestamp}_{A}"))
	assert.Empty(t, Placeholders("none"))
}

func TestBindings(t *testing.T) {
	vars := []config.Variable{
		{Name: "periode", SQLTable: "Variables", SQLSetCol: "value", SQLWhereCol: "name"},
		{Name: "unbound"},
	}
	vals := NewValues(map[string]string{"periode": "202401", "unbound": "x"})

	bindings := Bindings(vars, vals)
	require.Len(t, bindings, 1)

	query, args := bindings[0].Statement()
	assert.Equal(t, "UPDATE Variables SET value = ? WHERE name = ?", query)
	assert.Equal(t, []any{"202401", "periode"}, args)
}
