package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/leapstack-labs/sqlmerger/internal/cli/output"
	"github.com/leapstack-labs/sqlmerger/internal/config"
	"github.com/leapstack-labs/sqlmerger/internal/engine"
	"github.com/leapstack-labs/sqlmerger/internal/spreadsheet"
	starctx "github.com/leapstack-labs/sqlmerger/internal/starlark"
	"github.com/leapstack-labs/sqlmerger/internal/state"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	ConfigPath  string
	Infos       string
	Destination string
	Sets        []string
	Interactive bool
	ReportPath  string
	NoProgress  bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a merge",
		Long: `Run the merge described by a configuration file.

The template store is copied into a fresh working directory, the DIM and
then the FACT sources are imported, the configured SQL commands run and the
OUTPUT tables are exported as CSV files. Exports and the working store are
kept in the destination directory.

Exit status is 0 when the run completes, 1 when it fails and 130 when it
is interrupted.`,
		Example: `  # Run a merge
  sqlmerger run --config merge.json --infos SQLite_Merger_Tables_Infos.xlsx

  # Override variables
  sqlmerger run --config merge.json --set periode=202401 --set site=LYON

  # Prompt for user variables and write a report
  sqlmerger run --config merge.json --interactive --report run.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.ConfigPath, "config", "c", "", "configuration file (.json, .cfg, .yaml)")
	f.StringVar(&opts.Infos, "infos", "", "workbook holding the spreadsheet sources")
	f.StringVarP(&opts.Destination, "dest", "d", "", "directory receiving exports and the kept store (default: current directory)")
	f.StringArrayVar(&opts.Sets, "set", nil, "set a variable (name=value, repeatable)")
	f.BoolVarP(&opts.Interactive, "interactive", "i", false, "prompt for user variables")
	f.StringVar(&opts.ReportPath, "report", "", "write the run report (.json, .yaml)")
	f.BoolVar(&opts.NoProgress, "no-progress", false, "do not render progress")
	addBaseFlags(f)
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	logger := Logger(cmd.Context())

	cfg, err := config.Load(opts.ConfigPath, cmd.Flags())
	if err != nil {
		return err
	}
	for _, w := range cfg.Warnings {
		logger.Warn("configuration", "warning", w)
	}

	overrides, err := parseOverrides(cfg, opts.Sets)
	if err != nil {
		return err
	}

	start := time.Now()
	newEvaluator := func(now time.Time) engine.Evaluator {
		return starctx.NewEvaluator(now, logger)
	}

	if opts.Interactive {
		rl, err := newLineReader(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		err = promptVariables(rl, cmd.OutOrStdout(), cfg, overrides, newEvaluator(start))
		_ = rl.Close()
		if errors.Is(err, engine.ErrCancelled) {
			return &ExitError{Code: ExitCancelled, Err: err}
		}
		if err != nil {
			return err
		}
	}

	var tabs engine.TabReader
	if opts.Infos != "" {
		wb, err := spreadsheet.Open(opts.Infos, logger)
		if err != nil {
			return err
		}
		defer func() { _ = wb.Close() }()
		tabs = wb
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stderr := cmd.ErrOrStderr()
	var progress output.Progress
	events := make(chan engine.Event, 64)

	eng, err := engine.New(cfg, engine.Config{
		Logger:       logger,
		Tabs:         tabs,
		NewEvaluator: newEvaluator,
		Destination:  opts.Destination,
		Now:          func() time.Time { return start },
		Progress:     func(ev engine.Event) { events <- ev },
	})
	if err != nil {
		return err
	}

	hist := openHistory(ctx, cfg, logger)
	if hist != nil {
		defer func() { _ = hist.Close() }()
	}
	runID := hist.begin(ctx, start, cfg.Path)

	if !opts.NoProgress {
		progress = output.NewProgress(stderr, output.IsTerminal(stderr))
	}

	var (
		report *engine.Report
		runErr error
		g      errgroup.Group
	)
	g.Go(func() error {
		defer close(events)
		report, runErr = eng.Run(ctx, overrides)
		return nil
	})
	g.Go(func() error {
		for ev := range events {
			if progress != nil {
				progress.Update(ev)
			}
		}
		if progress != nil {
			progress.Done()
		}
		return nil
	})
	_ = g.Wait()

	report.RunID = runID
	hist.finish(context.WithoutCancel(ctx), runID, report)

	if opts.ReportPath != "" {
		if err := writeReport(opts.ReportPath, report); err != nil {
			logger.Error("failed to write report", "path", opts.ReportPath, "error", err)
		}
	}

	out := cmd.OutOrStdout()
	output.RenderReport(out, output.NewStyles(output.IsTerminal(out)), report)

	switch report.Status {
	case engine.StageDone:
		return nil
	case engine.StageCancelled:
		return &ExitError{Code: ExitCancelled, Err: runErr}
	default:
		return &ExitError{Code: ExitFailed, Err: runErr}
	}
}

// writeReport writes the report as YAML or JSON depending on the extension.
func writeReport(path string, r *engine.Report) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(r, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(r)
	default:
		return fmt.Errorf("unsupported report format: %s", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// history records runs in the ledger. A nil history records nothing.
// Ledger failures are logged and never fail the run.
type history struct {
	store  *state.SQLiteStore
	logger *slog.Logger
}

func openHistory(ctx context.Context, cfg *config.RunConfig, logger *slog.Logger) *history {
	path := cfg.Base.HistoryDB
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			logger.Warn("failed to create history directory", "path", dir, "error", err)
			return nil
		}
	}
	s := state.NewSQLiteStore(logger)
	if err := s.Open(ctx, path); err != nil {
		logger.Warn("run history disabled", "path", path, "error", err)
		return nil
	}
	return &history{store: s, logger: logger}
}

func (h *history) Close() error {
	if h == nil {
		return nil
	}
	return h.store.Close()
}

func (h *history) begin(ctx context.Context, start time.Time, configPath string) string {
	if h == nil {
		return ""
	}
	run, err := h.store.CreateRun(ctx, start.Format(engine.TimestampLayout), configPath, start)
	if err != nil {
		h.logger.Warn("failed to record run", "error", err)
		return ""
	}
	return run.ID
}

func (h *history) finish(ctx context.Context, id string, r *engine.Report) {
	if h == nil || id == "" {
		return
	}

	files := make([]state.FileRecord, len(r.Files))
	for i, f := range r.Files {
		files[i] = state.FileRecord{Table: f.Table, File: f.File, Rows: f.Rows, Skipped: f.Skipped, Reason: f.Reason}
	}
	if err := h.store.RecordFiles(ctx, id, files); err != nil {
		h.logger.Warn("failed to record run files", "run_id", id, "error", err)
	}

	sum := state.Summary{
		Rows:    r.TotalRows(),
		Files:   len(r.Files),
		Skipped: len(r.Skipped()),
		Exports: len(r.Exports),
	}
	if err := h.store.CompleteRun(ctx, id, runStatus(r.Status), sum, r.Error); err != nil {
		h.logger.Warn("failed to complete run record", "run_id", id, "error", err)
	}
}

func runStatus(s engine.Stage) state.RunStatus {
	switch s {
	case engine.StageDone:
		return state.RunStatusCompleted
	case engine.StageCancelled:
		return state.RunStatusCancelled
	case engine.StageFailed:
		return state.RunStatusFailed
	default:
		return state.RunStatusRunning
	}
}
