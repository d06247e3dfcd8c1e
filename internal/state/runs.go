package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// CreateRun records the start of a run.
func (s *SQLiteStore) CreateRun(ctx context.Context, timestamp, configPath string, startedAt time.Time) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:         generateID(),
		Timestamp:  timestamp,
		ConfigPath: configPath,
		Status:     RunStatusRunning,
		StartedAt:  startedAt.UTC(),
	}

	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("timestamp", timestamp))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, timestamp, config_path, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Timestamp, run.ConfigPath, string(run.Status), formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// CompleteRun records the outcome of a run.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, sum Summary, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	var errVal sql.NullString
	if errMsg != "" {
		errVal = sql.NullString{String: errMsg, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, rows_loaded = ?, files = ?, skipped = ?, exports = ?, error = ?
		 WHERE id = ?`,
		string(status), formatTime(time.Now()), sum.Rows, sum.Files, sum.Skipped, sum.Exports, errVal, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// RecordFiles stores the import provenance of a run.
func (s *SQLiteStore) RecordFiles(ctx context.Context, runID string, files []FileRecord) (err error) {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if len(files) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_files (run_id, seq, table_name, file, row_count, skipped, reason) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, f := range files {
		if _, err := stmt.ExecContext(ctx, runID, i+1, f.Table, f.File, f.Rows, f.Skipped, f.Reason); err != nil {
			return fmt.Errorf("failed to record file %s: %w", f.File, err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, timestamp, config_path, status, started_at, completed_at, rows_loaded, files, skipped, exports, error`

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs up to the given limit.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunFiles returns the import provenance of a run in load order.
func (s *SQLiteStore) RunFiles(ctx context.Context, runID string) ([]FileRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name, file, row_count, skipped, reason FROM run_files WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []FileRecord
	for rows.Next() {
		var f FileRecord
		if err := rows.Scan(&f.Table, &f.File, &f.Rows, &f.Skipped, &f.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan run file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run       Run
		status    string
		started   string
		completed sql.NullString
		errMsg    sql.NullString
	)
	err := sc.Scan(&run.ID, &run.Timestamp, &run.ConfigPath, &status, &started, &completed,
		&run.Rows, &run.Files, &run.Skipped, &run.Exports, &errMsg)
	if err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	if run.StartedAt, err = parseTime(started); err != nil {
		return nil, fmt.Errorf("invalid started_at %q: %w", started, err)
	}
	if completed.Valid {
		t, err := parseTime(completed.String)
		if err != nil {
			return nil, fmt.Errorf("invalid completed_at %q: %w", completed.String, err)
		}
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	return &run, nil
}
