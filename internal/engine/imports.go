package engine

// imports.go - Spreadsheet conversion and CSV loading

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/sqlmerger/internal/codec"
	"github.com/leapstack-labs/sqlmerger/internal/config"
	"github.com/leapstack-labs/sqlmerger/internal/source"
	"github.com/leapstack-labs/sqlmerger/internal/store"
)

// ImportPlan lists the files to load into one table.
type ImportPlan struct {
	Table config.TableSpec
	Files []source.File
	// Encoding is the csv_encoding override of the table.
	Encoding string
	// Spreadsheet is set when the single file is converted from a tab.
	Spreadsheet *config.SpreadsheetSource
}

// PlanImports locates the input files of every DIM table, then every FACT
// table, in declared order. Sources marked missing-ok that yield nothing
// are recorded as skipped.
func PlanImports(p *Process) ([]ImportPlan, error) {
	var plans []ImportPlan
	for _, kind := range []config.TableKind{config.KindDim, config.KindFact} {
		for _, t := range p.Config.TablesOf(kind) {
			switch src := t.Source.(type) {
			case config.SpreadsheetSource:
				name := filepath.Base(src.CSVName)
				plans = append(plans, ImportPlan{
					Table:       t,
					Files:       []source.File{{Path: filepath.Join(p.WorkDir, name), Name: name}},
					Encoding:    src.Encoding,
					Spreadsheet: &src,
				})

			case config.CSVSource:
				files, err := source.Locate(src, p.Expand)
				if err != nil {
					var nf *source.NotFoundError
					if errors.As(err, &nf) {
						return nil, &SourceNotFoundError{Table: t.Label(), Err: err}
					}
					return nil, fmt.Errorf("%s: %w", t.Label(), err)
				}
				if len(files) == 0 {
					p.Warn(t.Label(), src.Path, "source not found, skipped")
					p.Report.Files = append(p.Report.Files, FileLoad{
						Table: t.SQLName, File: filepath.Base(src.Path), Path: src.Path,
						Skipped: true, Reason: "source not found",
					})
					continue
				}
				plans = append(plans, ImportPlan{Table: t, Files: files, Encoding: src.Encoding})

			default:
				return nil, fmt.Errorf("%s: %s table cannot import from %T", t.Label(), t.Kind, t.Source)
			}
		}
	}
	return plans, nil
}

// ImportAll converts every spreadsheet tab to CSV, then loads the files of
// the plans in order. Plans are expected DIM first, as PlanImports returns
// them. Files missing required columns are skipped; any other failure
// stops the import. On cancellation the partial report is returned with
// ErrCancelled.
func ImportAll(ctx context.Context, plans []ImportPlan, p *Process) (*ImportReport, error) {
	rep := &ImportReport{RowCounts: make(map[string]int64)}

	if err := convertSpreadsheets(ctx, plans, p); err != nil {
		return rep, err
	}

	var total, done int
	for _, plan := range plans {
		total += len(plan.Files)
	}

	sqlCtx := context.WithoutCancel(ctx)
	for _, plan := range plans {
		for _, f := range plan.Files {
			if err := p.Checkpoint(ctx); err != nil {
				return rep, err
			}

			load, err := loadFile(sqlCtx, p, plan, f)
			var missing *MissingRequiredColumnsError
			switch {
			case errors.As(err, &missing):
				load.Skipped = true
				load.Reason = err.Error()
				p.Warn(plan.Table.SQLName, f.Name, err.Error())
			case err != nil:
				return rep, err
			}

			rep.Files = append(rep.Files, load)
			rep.RowCounts[plan.Table.SQLName] += load.Rows
			p.Report.Files = append(p.Report.Files, load)
			p.Report.RowCounts[plan.Table.SQLName] += load.Rows

			done++
			p.emit(fraction(done, total), fmt.Sprintf("%s: %s (%d rows)", plan.Table.SQLName, f.Name, load.Rows))
		}
	}
	return rep, nil
}

// convertSpreadsheets writes the tab of every spreadsheet plan to its
// intermediate CSV file in the working directory.
func convertSpreadsheets(ctx context.Context, plans []ImportPlan, p *Process) error {
	sqlCtx := context.WithoutCancel(ctx)
	for _, plan := range plans {
		src := plan.Spreadsheet
		if src == nil {
			continue
		}
		if err := p.Checkpoint(ctx); err != nil {
			return err
		}
		if p.Tabs == nil {
			return fmt.Errorf("%s: tab %q requires an infos workbook", plan.Table.Label(), src.TabName)
		}

		rows, err := p.Tabs.ReadTab(sqlCtx, src.TabName)
		if err != nil {
			return &IOError{Op: "read tab", Path: src.TabName, Err: err}
		}

		res := p.resolveCodec(codec.RoleExcel, plan.Table.SQLName, src.Encoding)
		path := plan.Files[0].Path
		_, err = writeCSV(path, res, p.Config.Base.Delimiter(), func(w *csv.Writer) (int64, error) {
			return int64(len(rows)), w.WriteAll(rows)
		})
		if err != nil {
			return &IOError{Op: "convert tab", Path: path, Err: err}
		}
		p.Logger.Debug("tab converted", "tab", src.TabName, "file", path, "rows", len(rows), "encoding", res.Name)
	}
	return nil
}

// loadFile loads one CSV file into the plan's table.
//
// CSV columns map by position onto the table columns. When the table has a
// source column it must be the last one; it is then filled with the file
// name. Blank rows and rows without a value in a required column are
// dropped, and values are cleaned by the column type affinity.
func loadFile(ctx context.Context, p *Process, plan ImportPlan, f source.File) (FileLoad, error) {
	table := plan.Table.SQLName
	load := FileLoad{Table: table, File: f.Name, Path: f.Path}

	cols, err := p.Store.Columns(ctx, table)
	if err != nil {
		return load, fmt.Errorf("%s: %w", plan.Table.Label(), err)
	}

	role := codec.RoleCSVImport
	if plan.Spreadsheet != nil {
		role = codec.RoleExcel
	}
	df, err := codec.Open(f.Path, p.resolveCodec(role, table, plan.Encoding))
	if err != nil {
		return load, &IOError{Op: "open", Path: f.Path, Err: err}
	}
	defer func() { _ = df.Close() }()
	load.Encoding = df.Encoding.Name
	if df.Warning != "" {
		p.Warn(table, f.Name, df.Warning)
	}

	r := csv.NewReader(df)
	r.Comma = p.Config.Base.Delimiter()
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		p.Warn(table, f.Name, "empty file")
		return load, nil
	}
	if err != nil {
		return load, &IOError{Op: "read header", Path: f.Path, Err: err}
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	required, err := requiredIndexes(plan.Table, f.Name, header)
	if err != nil {
		return load, err
	}

	stamp := sourceColumn(p, plan.Table, f.Name, cols)
	csvCols := len(header)
	if limit := len(cols) - btoi(stamp); csvCols > limit {
		csvCols = limit
	}

	names := make([]string, 0, csvCols+1)
	for _, c := range cols[:csvCols] {
		names = append(names, c.Name)
	}
	if stamp {
		names = append(names, cols[len(cols)-1].Name)
	}

	next := func() ([]any, error) {
		for {
			record, err := r.Read()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil, io.EOF
				}
				return nil, &IOError{Op: "read", Path: f.Path, Err: err}
			}
			if keep(record, csvCols, required) {
				return cleanRow(record, cols[:csvCols], stamp, f.Name), nil
			}
			load.Dropped++
		}
	}

	n, err := p.Store.BulkInsert(ctx, table, names, next)
	load.Rows = n
	if err != nil {
		var ioErr *IOError
		if errors.As(err, &ioErr) {
			return load, err
		}
		return load, &SQLExecutionError{Phase: "import", Statement: "INSERT INTO " + table, Err: err}
	}
	p.Logger.Debug("file loaded", "table", table, "file", f.Name, "rows", n, "dropped", load.Dropped, "encoding", load.Encoding)
	return load, nil
}

// requiredIndexes returns the header positions of the required columns.
func requiredIndexes(t config.TableSpec, file string, header []string) ([]int, error) {
	var idx []int
	var missing []string
	for _, col := range t.RequiredCols {
		i := indexFold(header, col)
		if i < 0 {
			missing = append(missing, col)
			continue
		}
		idx = append(idx, i)
	}
	if len(missing) > 0 {
		return nil, &MissingRequiredColumnsError{Table: t.SQLName, File: file, Missing: missing}
	}
	return idx, nil
}

// sourceColumn reports whether the file name can be stamped into the
// table's source column.
func sourceColumn(p *Process, t config.TableSpec, file string, cols []store.Column) bool {
	if t.ColSource == "" {
		return false
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	switch i := indexFold(names, t.ColSource); {
	case i < 0:
		p.Warn(t.SQLName, file, fmt.Sprintf("source column %q does not exist, file name not recorded", t.ColSource))
		return false
	case i != len(cols)-1:
		p.Warn(t.SQLName, file, fmt.Sprintf("source column %q must be the last column, file name not recorded", t.ColSource))
		return false
	}
	return true
}

// keep reports whether a record holds data in its first n fields and a
// value in every required field.
func keep(record []string, n int, required []int) bool {
	blank := true
	for i := 0; i < n && i < len(record); i++ {
		if record[i] != "" {
			blank = false
			break
		}
	}
	if blank {
		return false
	}
	for _, i := range required {
		if i >= len(record) || strings.TrimSpace(record[i]) == "" {
			return false
		}
	}
	return true
}

func cleanRow(record []string, cols []store.Column, stamp bool, file string) []any {
	row := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		v := ""
		if i < len(record) {
			v = record[i]
		}
		row = append(row, c.Affinity().Clean(v))
	}
	if stamp {
		row = append(row, file)
	}
	return row
}

// resolveCodec resolves the encoding for role and records rejected names.
func (p *Process) resolveCodec(role codec.Role, table, override string) codec.Resolution {
	res := codec.Resolve(role, override, p.Config.Base.InputCodec, p.Config.Base.OutputCodec)
	for _, w := range res.Warnings {
		p.Warn(table, "", w)
	}
	return res
}

// writeCSV creates path and writes CSV through the encoding of res.
func writeCSV(path string, res codec.Resolution, delim rune, write func(*csv.Writer) (int64, error)) (n int64, err error) {
	f, err := os.Create(path) //nolint:gosec // path inside the working directory
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc := codec.NewWriter(f, res)
	w := csv.NewWriter(enc)
	w.Comma = delim
	w.UseCRLF = true

	if n, err = write(w); err != nil {
		return n, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return n, err
	}
	return n, enc.Close()
}

func indexFold(names []string, name string) int {
	for i, n := range names {
		if strings.EqualFold(strings.TrimSpace(n), name) {
			return i
		}
	}
	return -1
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
