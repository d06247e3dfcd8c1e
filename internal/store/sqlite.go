// Package store provides the SQLite session a run works in.
//
// A session owns a single connection and an ambient transaction: statements
// join the open transaction, which is begun on first use and ended by an
// explicit Commit or Rollback.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// pragmas tune the working copy for bulk loading. Durability is not needed,
// the file is discarded or copied once the run ends.
var pragmas = []string{
	"synchronous(OFF)",
	"journal_mode(MEMORY)",
	"temp_store(MEMORY)",
	"cache_size(-64000)",
}

// Session is a connection to the working store.
type Session struct {
	DB     *sql.DB
	Logger *slog.Logger

	tx      *sql.Tx
	columns map[string][]Column
}

// Open opens the SQLite file at path.
func Open(path string, logger *slog.Logger) (*Session, error) {
	registerFunctions()

	params := make([]string, len(pragmas))
	for i, p := range pragmas {
		params[i] = "_pragma=" + p
	}
	db, err := sql.Open("sqlite", path+"?"+strings.Join(params, "&"))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One writer; the ambient transaction holds the only connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return NewSession(db, logger), nil
}

// NewSession wraps an open database.
func NewSession(db *sql.DB, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{DB: db, Logger: logger, columns: make(map[string][]Column)}
}

// begin returns the ambient transaction, starting one if needed.
func (s *Session) begin(ctx context.Context) (*sql.Tx, error) {
	if s.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	return tx, nil
}

// Exec executes a statement in the ambient transaction.
func (s *Session) Exec(ctx context.Context, query string, args ...any) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	// DDL may have changed a cached table layout.
	clear(s.columns)
	return nil
}

// Query runs a statement returning rows in the ambient transaction.
// The caller must close the rows before issuing another statement.
func (s *Session) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// Commit commits the ambient transaction. It is a no-op when none is open.
func (s *Session) Commit() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.Logger.Debug("transaction committed")
	return nil
}

// Rollback discards the work done since the last commit.
func (s *Session) Rollback() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back: %w", err)
	}
	s.Logger.Debug("transaction rolled back")
	return nil
}

// Close rolls back uncommitted work and closes the connection.
func (s *Session) Close() error {
	if s.DB == nil {
		return nil
	}
	rbErr := s.Rollback()
	s.Logger.Debug("closing database connection")
	closeErr := s.DB.Close()
	s.DB = nil
	return errors.Join(rbErr, closeErr)
}

// RowFunc yields the next row to insert, or io.EOF when done.
type RowFunc func() ([]any, error)

// BulkInsert inserts rows into table through one prepared statement of the
// ambient transaction. It returns the number of rows inserted.
func (s *Session) BulkInsert(ctx context.Context, table string, cols []string, next RowFunc) (int64, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	//nolint:gosec // table and column names come from the configuration and the store schema
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(quoted, ", "), placeholders)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer func() { _ = stmt.Close() }()

	var count int64
	for {
		row, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, err
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return count, fmt.Errorf("failed to insert row %d into %s: %w", count+1, table, err)
		}
		count++
	}
	return count, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
