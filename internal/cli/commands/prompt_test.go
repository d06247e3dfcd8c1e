package commands

import (
	"bytes"
	"io"
	"regexp"
	"testing"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/sqlmerger/internal/config"
	"github.com/leapstack-labs/sqlmerger/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedReader answers prompts from a fixed script, then ends with err.
type scriptedReader struct {
	answers []string
	err     error
	prompts []string
}

func (r *scriptedReader) Readline() (string, error) {
	if len(r.answers) == 0 {
		if r.err != nil {
			return "", r.err
		}
		return "", io.EOF
	}
	a := r.answers[0]
	r.answers = r.answers[1:]
	return a, nil
}

func (r *scriptedReader) SetPrompt(p string) {
	r.prompts = append(r.prompts, p)
}

func promptConfig() *config.RunConfig {
	return &config.RunConfig{Variables: []config.Variable{
		{Name: "periode", Label: "Period", Level: config.LevelUser, Default: "202401",
			Pattern: regexp.MustCompile(`^\d{6}$`), PatternText: `^\d{6}$`},
		{Name: "site", Level: config.LevelAdvanced, Default: "LYON"},
		{Name: "secret", Level: config.LevelInternal, Default: "x"},
	}}
}

func TestPromptVariables(t *testing.T) {
	tests := []struct {
		name    string
		answers []string
		err     error
		want    map[string]string
		wantErr error
	}{
		{
			name:    "keep defaults",
			answers: []string{"", "n"},
			want:    map[string]string{"periode": "202401"},
		},
		{
			name:    "invalid then valid",
			answers: []string{"2024", "202402", ""},
			want:    map[string]string{"periode": "202402"},
		},
		{
			name:    "edit advanced",
			answers: []string{"", "y", "PARIS"},
			want:    map[string]string{"periode": "202401", "site": "PARIS"},
		},
		{
			name:    "end of input",
			answers: nil,
			want:    map[string]string{},
		},
		{
			name:    "interrupt",
			err:     readline.ErrInterrupt,
			want:    map[string]string{},
			wantErr: engine.ErrCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := &scriptedReader{answers: tt.answers, err: tt.err}
			overrides := map[string]string{}
			var out bytes.Buffer

			err := promptVariables(rl, &out, promptConfig(), overrides, nil)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, overrides)
			for _, p := range rl.prompts {
				assert.NotContains(t, p, "secret")
			}
		})
	}
}

func TestPromptVariables_ReportsInvalidAnswer(t *testing.T) {
	rl := &scriptedReader{answers: []string{"abc", "202405"}}
	var out bytes.Buffer

	require.NoError(t, promptVariables(rl, &out, promptConfig(), map[string]string{}, nil))
	assert.Contains(t, out.String(), `variable periode: value "abc" does not match`)
	assert.Equal(t, "Period [202401]: ", rl.prompts[0])
}

func TestParseOverrides(t *testing.T) {
	got, err := parseOverrides(promptConfig(), []string{"PERIODE=202402", "site = LYON=2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"periode": "202402", "site": " LYON=2"}, got)
}
