// Package cli provides the command-line interface for SQL Merger.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/leapstack-labs/sqlmerger/internal/cli/commands"
	"github.com/leapstack-labs/sqlmerger/internal/engine"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "sqlmerger",
		Short: "SQL Merger - SQLite merge orchestration",
		Long: `SQL Merger loads spreadsheet tabs and CSV files into a working copy of a
SQLite template, runs configured SQL commands and exports the results as
CSV files.`,
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger := NewLogger(cmd.ErrOrStderr(), verbose)
			cmd.SetContext(commands.WithLogger(cmd.Context(), logger))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewVarsCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())

	return rootCmd
}

// NewLogger builds the text logger of the CLI. Verbose enables debug logs.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return run(NewRootCmd(), os.Args[1:], os.Stderr)
}

func run(rootCmd *cobra.Command, args []string, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return exitCode(err, stderr)
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var exit *commands.ExitError
	if errors.As(err, &exit) {
		switch {
		case exit.Code == commands.ExitCancelled:
			_, _ = fmt.Fprintln(stderr, "Cancelled")
		case exit.Err != nil:
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", exit.Err)
		}
		return exit.Code
	}
	if errors.Is(err, engine.ErrCancelled) {
		_, _ = fmt.Fprintln(stderr, "Cancelled")
		return commands.ExitCancelled
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return commands.ExitFailed
}
