package store

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/sqlmerger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "work.sqlite"), testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func countRows(ctx context.Context, s *Session, table string) (int64, error) {
	rows, err := s.Query(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table))
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

func rowsOf(rows ...[]any) RowFunc {
	i := 0
	return func() ([]any, error) {
		if i >= len(rows) {
			return nil, io.EOF
		}
		i++
		return rows[i-1], nil
	}
}

func TestSession_AmbientTransaction(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		run       func(t *testing.T, s *Session)
	}{
		{
			name: "statements share one transaction until commit",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("DELETE FROM a").WillReturnResult(sqlmock.NewResult(0, 3))
				mock.ExpectExec("DELETE FROM b").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
				mock.ExpectBegin()
				mock.ExpectExec("DELETE FROM c").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectRollback()
			},
			run: func(t *testing.T, s *Session) {
				ctx := context.Background()
				require.NoError(t, s.Exec(ctx, "DELETE FROM a"))
				require.NoError(t, s.Exec(ctx, "DELETE FROM b"))
				require.NoError(t, s.Commit())
				require.NoError(t, s.Exec(ctx, "DELETE FROM c"))
				require.NoError(t, s.Rollback())
			},
		},
		{
			name: "commit without work is a no-op",
			setupMock: func(mock sqlmock.Sqlmock) {
			},
			run: func(t *testing.T, s *Session) {
				require.NoError(t, s.Commit())
				require.NoError(t, s.Rollback())
			},
		},
		{
			name: "failed statement leaves the transaction open",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INVALID").WillReturnError(assert.AnError)
				mock.ExpectRollback()
			},
			run: func(t *testing.T, s *Session) {
				err := s.Exec(context.Background(), "INVALID")
				require.Error(t, err)
				assert.Contains(t, err.Error(), "failed to execute SQL")
				require.NoError(t, s.Rollback())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.setupMock(mock)
			tt.run(t, NewSession(db, testutil.NewTestLogger(t)))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSession_NotConnected(t *testing.T) {
	s := &Session{}
	err := s.Exec(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database connection not established")
}

func TestSession_BulkInsertAndColumns(t *testing.T) {
	s := openTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.Exec(ctx, `CREATE TABLE T (id INTEGER, name TEXT, amount REAL, SOURCE TEXT)`))

	cols, err := s.Columns(ctx, "T")
	require.NoError(t, err)
	require.Len(t, cols, 4)
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, AffinityInteger, cols[0].Affinity())
	assert.Equal(t, AffinityReal, cols[2].Affinity())

	n, err := s.BulkInsert(ctx, "T", []string{"id", "name", "amount", "SOURCE"}, rowsOf(
		[]any{int64(1), "A", 1.5, "a.csv"},
		[]any{int64(2), "B", 2.5, "a.csv"},
	))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, s.Commit())

	count, err := countRows(ctx, s, "T")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = s.Columns(ctx, "Missing")
	var nf *TableNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestSession_RollbackDiscardsUncommitted(t *testing.T) {
	s := openTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.Exec(ctx, `CREATE TABLE T (id INTEGER)`))
	require.NoError(t, s.Exec(ctx, `INSERT INTO T VALUES (1)`))
	require.NoError(t, s.Commit())

	require.NoError(t, s.Exec(ctx, `INSERT INTO T VALUES (2)`))
	require.NoError(t, s.Rollback())

	count, err := countRows(ctx, s, "T")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSession_Regexp(t *testing.T) {
	s := openTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.Exec(ctx, `CREATE TABLE T (code TEXT)`))
	require.NoError(t, s.Exec(ctx, `INSERT INTO T VALUES ('GL_001'), ('AP_002'), (NULL)`))

	count := func(where string) int64 {
		rows, err := s.Query(ctx, "SELECT COUNT(*) FROM T WHERE "+where)
		require.NoError(t, err)
		defer rows.Close()
		var n int64
		require.True(t, rows.Next())
		require.NoError(t, rows.Scan(&n))
		return n
	}

	assert.Equal(t, int64(1), count(`code REGEXP '^GL_\d+$'`))
	assert.Equal(t, int64(2), count(`code REGEXP '_00'`))
	assert.Equal(t, int64(0), count(`code REGEXP '([a-'`))
}

func TestAffinity_Clean(t *testing.T) {
	tests := []struct {
		name     string
		declType string
		value    string
		want     any
	}{
		{"integer", "INTEGER", "42", int64(42)},
		{"integer with spaces", "INT", "1 234", int64(1234)},
		{"integer from decimal", "BIGINT", "12,0", int64(12)},
		{"integer garbage", "INTEGER", "n/a", "n/a"},
		{"real with comma", "REAL", "1 234,5", 1234.5},
		{"numeric scientific", "DECIMAL(10,2)", "1E3", 1000.0},
		{"text untouched", "VARCHAR(20)", "007", "007"},
		{"blob untouched", "BLOB", "12", "12"},
		{"blank kept", "INTEGER", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AffinityOf(tt.declType).Clean(tt.value))
		})
	}
}
