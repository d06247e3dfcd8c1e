package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/leapstack-labs/sqlmerger/internal/cli/commands"
	"github.com/leapstack-labs/sqlmerger/internal/engine"
	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    int
		wantOut string
	}{
		{"success", nil, 0, ""},
		{"failed run", &commands.ExitError{Code: commands.ExitFailed, Err: errors.New("boom")}, 1, "Error: boom\n"},
		{"cancelled run", &commands.ExitError{Code: commands.ExitCancelled, Err: engine.ErrCancelled}, 130, "Cancelled\n"},
		{"cancelled prompt", engine.ErrCancelled, 130, "Cancelled\n"},
		{"usage error", errors.New("unknown flag: --nope"), 1, "Error: unknown flag: --nope\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.Equal(t, tt.want, exitCode(tt.err, &buf))
			assert.Equal(t, tt.wantOut, buf.String())
		})
	}
}

func TestRun_Version(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)

	var stderr bytes.Buffer
	assert.Equal(t, 0, run(root, []string{"version"}, &stderr))
	assert.Contains(t, out.String(), "sqlmerger v"+Version)
	assert.Empty(t, stderr.String())
}

func TestRun_MissingConfig(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	var stderr bytes.Buffer
	assert.Equal(t, 1, run(root, []string{"run"}, &stderr))
	assert.Contains(t, stderr.String(), `required flag(s) "config" not set`)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, false).Info("hidden")
	assert.Empty(t, buf.String())

	NewLogger(&buf, true).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}
