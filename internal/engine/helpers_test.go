package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/sqlmerger/internal/config"
	"github.com/leapstack-labs/sqlmerger/internal/starlark"
	"github.com/leapstack-labs/sqlmerger/internal/store"
	"github.com/leapstack-labs/sqlmerger/internal/testutil"
	"github.com/stretchr/testify/require"
)

var runStart = time.Date(2024, time.January, 15, 9, 30, 0, 0, time.Local)

const runTimestamp = "20240115_093000"

// fixture is a temporary layout with a template store, an input area, a
// temp root for working directories and a destination.
type fixture struct {
	t       *testing.T
	root    string
	input   string
	tempDir string
	dest    string
	cfg     *config.RunConfig
}

func newFixture(t *testing.T, schema ...string) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		t:       t,
		root:    root,
		input:   filepath.Join(root, "input"),
		tempDir: filepath.Join(root, "tmp"),
		dest:    filepath.Join(root, "out"),
	}
	for _, dir := range []string{f.input, f.tempDir} {
		require.NoError(t, os.MkdirAll(dir, 0o750))
	}

	template := filepath.Join(root, "template.sqlite")
	s, err := store.Open(template, testutil.NewTestLogger(t))
	require.NoError(t, err)
	ctx := context.Background()
	for _, stmt := range schema {
		require.NoError(t, s.Exec(ctx, stmt))
	}
	require.NoError(t, s.Commit())
	require.NoError(t, s.Close())

	base := config.Base{TemplateName: template, KeepDB: true}
	base.ApplyDefaults()
	f.cfg = &config.RunConfig{Base: base, Path: filepath.Join(root, "SQLite_Merger.cfg")}
	return f
}

// write creates a file below the input directory and returns its path.
func (f *fixture) write(rel, content string) string {
	f.t.Helper()
	path := filepath.Join(f.input, rel)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (f *fixture) engine(opts Config) *Engine {
	f.t.Helper()
	if opts.Logger == nil {
		opts.Logger = testutil.NewTestLogger(f.t)
	}
	opts.TempDir = f.tempDir
	opts.Destination = f.dest
	opts.Now = func() time.Time { return runStart }
	if opts.NewEvaluator == nil {
		opts.NewEvaluator = func(now time.Time) Evaluator {
			return starlark.NewEvaluator(now, opts.Logger)
		}
	}
	e, err := New(f.cfg, opts)
	require.NoError(f.t, err)
	return e
}

// kept opens the store retained in the destination.
func (f *fixture) kept() *store.Session {
	f.t.Helper()
	s, err := store.Open(filepath.Join(f.dest, "Database_"+runTimestamp+".sqlite"), testutil.NewTestLogger(f.t))
	require.NoError(f.t, err)
	f.t.Cleanup(func() { _ = s.Close() })
	return s
}

// workDirs lists what is left in the temp root.
func (f *fixture) workDirs() []string {
	f.t.Helper()
	entries, err := os.ReadDir(f.tempDir)
	require.NoError(f.t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func csvTable(kind config.TableKind, sqlName, path string) config.TableSpec {
	return config.TableSpec{
		Kind:    kind,
		SQLName: sqlName,
		Source: config.CSVSource{
			Path:        path,
			Pattern:     regexp.MustCompile(`(?i)` + config.DefaultCSVPattern),
			PatternText: config.DefaultCSVPattern,
		},
	}
}

func outputTable(sqlName, file string) config.TableSpec {
	return config.TableSpec{
		Kind:    config.KindOutput,
		SQLName: sqlName,
		Source:  config.OutputSource{FileName: file},
	}
}

func queryInt(t *testing.T, s *store.Session, query string) int64 {
	t.Helper()
	rows, err := s.Query(context.Background(), query)
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var n int64
	require.NoError(t, rows.Scan(&n))
	return n
}

// recordingStore wraps a session and records the order of bulk inserts.
type recordingStore struct {
	*store.Session
	mu      sync.Mutex
	inserts []string
}

func (r *recordingStore) BulkInsert(ctx context.Context, table string, cols []string, next store.RowFunc) (int64, error) {
	r.mu.Lock()
	r.inserts = append(r.inserts, table)
	r.mu.Unlock()
	return r.Session.BulkInsert(ctx, table, cols, next)
}

func (r *recordingStore) open(path string, logger *slog.Logger) (Store, error) {
	s, err := store.Open(path, logger)
	if err != nil {
		return nil, err
	}
	r.Session = s
	return r, nil
}

// fakeTabs serves tabs from memory.
type fakeTabs map[string][][]string

func (f fakeTabs) ReadTab(_ context.Context, name string) ([][]string, error) {
	rows, ok := f[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return rows, nil
}
