package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/sqlmerger/internal/config"
	"github.com/leapstack-labs/sqlmerger/internal/engine"
	"github.com/leapstack-labs/sqlmerger/internal/variables"
)

// lineReader is the part of readline the prompts use.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

func newLineReader(in io.Reader, out io.Writer) (*readline.Instance, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		Stdin:           io.NopCloser(in),
		Stdout:          out,
		InterruptPrompt: "^C",
		EOFPrompt:       "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prompt: %w", err)
	}
	return rl, nil
}

// promptVariables asks for the value of every user variable, then offers
// to edit the advanced ones. An empty answer keeps the proposed value.
// Answers are stored in overrides. End of input keeps the remaining
// values; an interrupt cancels the run.
func promptVariables(rl lineReader, out io.Writer, cfg *config.RunConfig, overrides map[string]string, eval variables.Evaluator) error {
	done, err := promptLevel(rl, out, cfg.VariablesAt(config.LevelUser), overrides, eval)
	if err != nil || done {
		return err
	}

	advanced := cfg.VariablesAt(config.LevelAdvanced)
	if len(advanced) == 0 {
		return nil
	}
	rl.SetPrompt("Edit advanced variables? [y/N] ")
	answer, err := rl.Readline()
	if err != nil {
		return promptEnd(err)
	}
	if !strings.EqualFold(strings.TrimSpace(answer), "y") {
		return nil
	}
	_, err = promptLevel(rl, out, advanced, overrides, eval)
	return err
}

func promptLevel(rl lineReader, out io.Writer, vars []config.Variable, overrides map[string]string, eval variables.Evaluator) (bool, error) {
	for _, v := range vars {
		current, ok := overrides[v.Name]
		if !ok {
			var err error
			if current, err = variables.Default(v, eval); err != nil {
				_, _ = fmt.Fprintf(out, "%v\n", err)
			}
		}

		label := v.Label
		if label == "" {
			label = v.Name
		}
		for {
			rl.SetPrompt(fmt.Sprintf("%s [%s]: ", label, current))
			line, err := rl.Readline()
			if err != nil {
				return true, promptEnd(err)
			}
			value := strings.TrimSpace(line)
			if value == "" {
				value = strings.TrimSpace(current)
			}
			if err := variables.Validate(v, value); err != nil {
				_, _ = fmt.Fprintf(out, "%v\n", err)
				continue
			}
			overrides[v.Name] = value
			break
		}
	}
	return false, nil
}

func promptEnd(err error) error {
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case errors.Is(err, readline.ErrInterrupt):
		return engine.ErrCancelled
	default:
		return fmt.Errorf("failed to read answer: %w", err)
	}
}
