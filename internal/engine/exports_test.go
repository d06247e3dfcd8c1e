package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"null", nil, ""},
		{"text", "abc", "abc"},
		{"bytes", []byte("xy"), "xy"},
		{"integer", int64(-42), "-42"},
		{"real", 1234.5, "1234.5"},
		{"whole real", 2.0, "2.0"},
		{"small real", 0.00001, "1e-05"},
		{"large real", 1e20, "1e+20"},
		{"date", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), "2024-01-31"},
		{"datetime", time.Date(2024, 1, 31, 8, 5, 0, 0, time.UTC), "2024-01-31 08:05:00"},
		{"bool", true, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.in))
		})
	}
}

func TestKeep(t *testing.T) {
	tests := []struct {
		name     string
		record   []string
		n        int
		required []int
		want     bool
	}{
		{"data", []string{"a", "1"}, 2, nil, true},
		{"blank", []string{"", ""}, 2, nil, false},
		{"blank within inserted columns", []string{"", "", "extra"}, 2, nil, false},
		{"short record", []string{"a"}, 2, []int{0}, true},
		{"required missing", []string{"a", " "}, 2, []int{1}, false},
		{"required beyond record", []string{"a"}, 2, []int{1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keep(tt.record, tt.n, tt.required))
		})
	}
}

func TestStage(t *testing.T) {
	assert.Equal(t, "transforming", StageTransforming.String())
	assert.Equal(t, "unknown", Stage(99).String())
	assert.False(t, StageFinalizing.Terminal())
	for _, s := range []Stage{StageDone, StageCancelled, StageFailed} {
		assert.True(t, s.Terminal(), s.String())
	}
	text, err := StageCancelled.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "cancelled", string(text))
}
