// Package engine runs a merge: it prepares a working copy of the template
// store, imports spreadsheet tabs and CSV files, runs the configured SQL
// commands and exports the results, reporting progress along the way.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/leapstack-labs/sqlmerger/internal/config"
	"github.com/leapstack-labs/sqlmerger/internal/store"
	"github.com/leapstack-labs/sqlmerger/internal/variables"
)

// TimestampLayout formats the run timestamp, e.g. 20240115_093000.
const TimestampLayout = "20060102_150405"

// TabReader reads a named tab of the infos workbook, header row first.
type TabReader interface {
	ReadTab(ctx context.Context, name string) ([][]string, error)
}

// Store is the session on the working store.
type Store interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BulkInsert(ctx context.Context, table string, cols []string, next store.RowFunc) (int64, error)
	Columns(ctx context.Context, table string) ([]store.Column, error)
	Commit() error
	Rollback() error
	Close() error
}

// Evaluator computes "=" expression defaults.
type Evaluator = variables.Evaluator

// Config holds engine configuration.
type Config struct {
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// Tabs reads spreadsheet sources. Required only when a table uses one.
	Tabs TabReader
	// NewEvaluator builds the expression evaluator with the clock frozen at
	// the run start.
	NewEvaluator func(now time.Time) Evaluator
	// Destination receives the retained files. Defaults to the working
	// directory of the process.
	Destination string
	// TempDir hosts the working directory. Defaults to os.TempDir().
	TempDir string
	// Now returns the run start time. Defaults to time.Now.
	Now func() time.Time
	// Progress receives progress events (optional).
	Progress ProgressFunc
	// OpenStore opens the working store. Defaults to a SQLite session.
	OpenStore func(path string, logger *slog.Logger) (Store, error)
}

// Engine runs merges described by one configuration.
type Engine struct {
	cfg          *config.RunConfig
	logger       *slog.Logger
	tabs         TabReader
	newEvaluator func(time.Time) Evaluator
	destination  string
	tempDir      string
	now          func() time.Time
	progress     ProgressFunc
	openStore    func(string, *slog.Logger) (Store, error)
}

// New creates an engine for cfg.
func New(cfg *config.RunConfig, opts Config) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine: nil configuration")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dest := opts.Destination
	if dest == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine destination: %w", err)
		}
		dest = wd
	}

	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	openStore := opts.OpenStore
	if openStore == nil {
		openStore = func(path string, logger *slog.Logger) (Store, error) {
			return store.Open(path, logger)
		}
	}

	logger.Debug("initializing engine", "config", cfg.Path, "destination", dest, "temp_dir", tempDir)

	return &Engine{
		cfg:          cfg,
		logger:       logger,
		tabs:         opts.Tabs,
		newEvaluator: opts.NewEvaluator,
		destination:  dest,
		tempDir:      tempDir,
		now:          now,
		progress:     opts.Progress,
		openStore:    openStore,
	}, nil
}
