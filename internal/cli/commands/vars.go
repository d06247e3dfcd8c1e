package commands

import (
	"time"

	"github.com/leapstack-labs/sqlmerger/internal/cli/output"
	"github.com/leapstack-labs/sqlmerger/internal/config"
	starctx "github.com/leapstack-labs/sqlmerger/internal/starlark"
	"github.com/leapstack-labs/sqlmerger/internal/variables"
	"github.com/spf13/cobra"
)

// VarsOptions holds options for the vars command.
type VarsOptions struct {
	ConfigPath string
	Sets       []string
	All        bool
}

// NewVarsCommand creates the vars command.
func NewVarsCommand() *cobra.Command {
	opts := &VarsOptions{}

	cmd := &cobra.Command{
		Use:   "vars",
		Short: "List variables with their resolved values",
		Long: `List the variables of a configuration with the value a run would use
and whether that value is valid. Internal variables are listed with --all.`,
		Example: `  sqlmerger vars --config merge.json
  sqlmerger vars --config merge.json --set periode=2024 --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVars(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "configuration file")
	cmd.Flags().StringArrayVar(&opts.Sets, "set", nil, "set a variable (name=value, repeatable)")
	cmd.Flags().BoolVarP(&opts.All, "all", "a", false, "include internal variables")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runVars(cmd *cobra.Command, opts *VarsOptions) error {
	cfg, err := config.Load(opts.ConfigPath, nil)
	if err != nil {
		return err
	}
	overrides, err := parseOverrides(cfg, opts.Sets)
	if err != nil {
		return err
	}

	levels := []config.Level{config.LevelUser, config.LevelAdvanced}
	if opts.All {
		levels = append(levels, config.LevelInternal)
	}

	eval := starctx.NewEvaluator(time.Now(), Logger(cmd.Context()))
	rows := describeVariables(cfg.VariablesAt(levels...), overrides, eval)

	out := cmd.OutOrStdout()
	output.RenderVariables(out, output.NewStyles(output.IsTerminal(out)), rows)
	return nil
}

// describeVariables resolves each variable on its own, so that one invalid
// value does not hide the others.
func describeVariables(vars []config.Variable, overrides map[string]string, eval variables.Evaluator) []output.VariableRow {
	rows := make([]output.VariableRow, 0, len(vars))
	for _, v := range vars {
		row := output.VariableRow{Name: v.Name, Label: v.Label, Level: string(v.Level)}
		vals, err := variables.Resolve([]config.Variable{v}, overrides, eval)
		if err != nil {
			row.Err = err
			if value, ok := overrides[v.Name]; ok {
				row.Value = value
			} else if value, derr := variables.Default(v, eval); derr == nil {
				row.Value = value
			}
		} else {
			row.Value, _ = vals.Get(v.Name)
		}
		rows = append(rows, row)
	}
	return rows
}
