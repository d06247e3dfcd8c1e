package commands

import (
	"fmt"

	"github.com/leapstack-labs/sqlmerger/internal/cli/output"
	"github.com/leapstack-labs/sqlmerger/internal/config"
	"github.com/leapstack-labs/sqlmerger/internal/state"
	"github.com/spf13/cobra"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	ConfigPath string
	DBPath     string
	Limit      int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `List the runs recorded in the history database, most recent first.
With a run id, show the files that run imported.

The database is taken from --db, or from base.history_db of --config.`,
		Example: `  sqlmerger history --config merge.json
  sqlmerger history --db runs.db --limit 5
  sqlmerger history --db runs.db 6f1c2a9e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "configuration file naming the history database")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "history database")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of runs to show")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions, args []string) error {
	path := opts.DBPath
	if path == "" && opts.ConfigPath != "" {
		cfg, err := config.Load(opts.ConfigPath, nil)
		if err != nil {
			return err
		}
		path = cfg.Base.HistoryDB
	}
	if path == "" {
		return fmt.Errorf("no history database: use --db or set base.history_db")
	}

	ctx := cmd.Context()
	s := state.NewSQLiteStore(Logger(ctx))
	if err := s.Open(ctx, path); err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		run, err := s.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		files, err := s.RunFiles(ctx, run.ID)
		if err != nil {
			return err
		}
		output.RenderRunFiles(out, run, files)
		return nil
	}

	runs, err := s.ListRuns(ctx, opts.Limit)
	if err != nil {
		return err
	}
	output.RenderRuns(out, output.NewStyles(output.IsTerminal(out)), runs)
	return nil
}
