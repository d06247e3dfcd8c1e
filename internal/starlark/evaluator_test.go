package starlark

import (
	"testing"
	"time"

	"github.com/leapstack-labs/sqlmerger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var frozen = time.Date(2024, time.January, 31, 9, 30, 0, 0, time.UTC)

func TestEvaluator_Evaluate(t *testing.T) {
	e := NewEvaluator(frozen, testutil.NewTestLogger(t))

	tests := []struct {
		name string
		expr string
		want string
	}{
		{"blank", "  ", ""},
		{"equals prefix ignored", "=1 + 2", "3"},
		{"string literal", `"abc"`, "abc"},
		{"bool", "1 < 2", "True"},
		{"none", "None", "None"},
		{"float", "3 / 2", "1.5"},
		{"now", "now()", "2024-01-31 09:30:00"},
		{"format_date", `format_date(now(), "%Y%m")`, "202401"},
		{"format_date keyword", `format_date(date=now(), fmt="%d/%m/%Y")`, "31/01/2024"},
		{"previous period", `format_date(offset_day(now(), -28), "%Y.%m")`, "2024.01"},
		{"day default", "day()", "31"},
		{"month of date", "month(offset_month(now(), 1))", "2"},
		{"year", "year(offset_month(now(), -1))", "2023"},
		{"offset_day", "offset_day(now(), 1)", "2024-02-01 09:30:00"},
		{"offset_day defaults", "offset_day()", "2024-01-31 09:30:00"},
		{"offset_month clamps", "offset_month(now(), 1)", "2024-02-29 09:30:00"},
		{"offset_month keyword", "offset_month(offset=-2)", "2023-11-30 09:30:00"},
		{"start_of_month", "start_of_month(now())", "2024-01-01 09:30:00"},
		{"start_of_month offset", "start_of_month(now(), -1)", "2023-12-01 09:30:00"},
		{"end_of_month", "end_of_month(now())", "2024-01-31 09:30:00"},
		{"end_of_month offset", "end_of_month(now(), 1)", "2024-02-29 09:30:00"},
		{"string date", `format_date("2024-03-15", "%d")`, "15"},
		{"string concat", `"P" + str(year())`, "P2024"},
		{"list", "[1, 2]", "[1, 2]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluator_Errors(t *testing.T) {
	e := NewEvaluator(frozen, testutil.NewTestLogger(t))

	tests := []struct {
		name string
		expr string
	}{
		{"undefined name", "unknown_name"},
		{"undefined function", "sqrt(4)"},
		{"syntax error", "1 +"},
		{"bad date argument", "day(42)"},
		{"unparseable date", `day("yesterday")`},
		{"too many arguments", "now(1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.expr)
			require.Error(t, err)
			assert.Empty(t, got)
			var evalErr *EvalError
			assert.ErrorAs(t, err, &evalErr)
		})
	}
}

func TestEvaluator_FrozenClock(t *testing.T) {
	e := NewEvaluator(frozen, nil)

	first, err := e.Evaluate("now()")
	require.NoError(t, err)
	second, err := e.Evaluate("time.now()")
	require.NoError(t, err)

	assert.Equal(t, "2024-01-31 09:30:00", first)
	assert.Equal(t, first, second)
}
