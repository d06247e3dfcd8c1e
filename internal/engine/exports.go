package engine

// exports.go - Query results written to CSV

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"time"

	"github.com/leapstack-labs/sqlmerger/internal/codec"
	"github.com/leapstack-labs/sqlmerger/internal/config"
)

// ExportAll writes SELECT * of every OUTPUT table to its CSV file in the
// working directory. Copying to the destination happens when the run is
// finalized.
func ExportAll(ctx context.Context, tables []config.TableSpec, p *Process) ([]ExportedFile, error) {
	var outputs []config.TableSpec
	for _, t := range tables {
		if t.Kind == config.KindOutput {
			outputs = append(outputs, t)
		}
	}

	sqlCtx := context.WithoutCancel(ctx)
	var exported []ExportedFile
	for i, t := range outputs {
		if err := p.Checkpoint(ctx); err != nil {
			return exported, err
		}

		out, ok := t.Source.(config.OutputSource)
		if !ok {
			return exported, fmt.Errorf("%s: OUTPUT table without output file", t.Label())
		}
		name, err := p.Expand(out.FileName)
		if err != nil {
			return exported, fmt.Errorf("%s: %w", t.Label(), err)
		}
		name = filepath.Base(name)

		res := p.resolveCodec(codec.RoleCSVExport, t.SQLName, out.Encoding)
		path := filepath.Join(p.WorkDir, name)

		n, err := exportTable(sqlCtx, p, t.SQLName, path, res)
		if err != nil {
			return exported, err
		}

		file := ExportedFile{Table: t.SQLName, Name: name, Path: path, Encoding: res.Name, Rows: n}
		exported = append(exported, file)
		p.Report.Exports = append(p.Report.Exports, file)
		p.Logger.Debug("table exported", "table", t.SQLName, "file", name, "rows", n, "encoding", res.Name)
		p.emit(fraction(i+1, len(outputs)), fmt.Sprintf("%s: %s (%d rows)", t.SQLName, name, n))
	}
	return exported, nil
}

func exportTable(ctx context.Context, p *Process, table, path string, res codec.Resolution) (int64, error) {
	query := "SELECT * FROM " + table
	rows, err := p.Store.Query(ctx, query)
	if err != nil {
		return 0, &SQLExecutionError{Phase: "export", Statement: query, Err: err}
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return 0, &SQLExecutionError{Phase: "export", Statement: query, Err: err}
	}

	var scanErr error
	n, err := writeCSV(path, res, p.Config.Base.Delimiter(), func(w *csv.Writer) (int64, error) {
		if err := w.Write(cols); err != nil {
			return 0, err
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		record := make([]string, len(cols))

		var n int64
		for rows.Next() {
			if err := rows.Scan(ptrs...); err != nil {
				scanErr = err
				return n, err
			}
			for i, v := range values {
				record[i] = formatValue(v)
			}
			if err := w.Write(record); err != nil {
				return n, err
			}
			n++
		}
		if err := rows.Err(); err != nil {
			scanErr = err
			return n, err
		}
		return n, nil
	})
	if scanErr != nil {
		return n, &SQLExecutionError{Phase: "export", Statement: query, Err: scanErr}
	}
	if err != nil {
		return n, &IOError{Op: "write", Path: path, Err: err}
	}
	return n, nil
}

// formatValue renders a column value as text. NULL is empty, reals keep a
// decimal part and dates drop a zero clock.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.DateTime)
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if f == math.Trunc(f) {
		s += ".0"
	}
	return s
}
