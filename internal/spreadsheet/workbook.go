// Package spreadsheet reads named tables out of an .xlsx workbook.
package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrTabNotFound is returned when no table or sheet carries the name.
var ErrTabNotFound = errors.New("tab not found")

// Workbook is an open workbook.
type Workbook struct {
	Path   string
	file   *excelize.File
	logger *slog.Logger
}

// Open opens the workbook at path.
func Open(path string, logger *slog.Logger) (*Workbook, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return &Workbook{Path: path, file: f, logger: logger}, nil
}

// Close releases the workbook.
func (w *Workbook) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// ReadTab returns the cells of the named Excel table, header row included.
// When no table has that name, a worksheet of that name is read instead.
func (w *Workbook) ReadTab(_ context.Context, name string) ([][]string, error) {
	if w.file == nil {
		return nil, fmt.Errorf("workbook is closed")
	}

	for _, sheet := range w.file.GetSheetList() {
		tables, err := w.file.GetTables(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to list tables of sheet %s: %w", sheet, err)
		}
		for _, tbl := range tables {
			if tbl.Name == name {
				w.logger.Debug("reading table", "table", name, "sheet", sheet, "range", tbl.Range)
				return w.readRange(sheet, tbl.Range)
			}
		}
	}

	if idx, err := w.file.GetSheetIndex(name); err == nil && idx >= 0 {
		w.logger.Debug("reading sheet", "sheet", name)
		rows, err := w.file.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
		}
		return rows, nil
	}

	return nil, fmt.Errorf("%w: %q in %s", ErrTabNotFound, name, w.Path)
}

// readRange reads a rectangular reference such as "A1:D20".
func (w *Workbook) readRange(sheet, ref string) ([][]string, error) {
	from, to, ok := strings.Cut(strings.ReplaceAll(ref, "$", ""), ":")
	if !ok {
		to = from
	}
	x1, y1, err := excelize.CellNameToCoordinates(from)
	if err != nil {
		return nil, fmt.Errorf("invalid range %q: %w", ref, err)
	}
	x2, y2, err := excelize.CellNameToCoordinates(to)
	if err != nil {
		return nil, fmt.Errorf("invalid range %q: %w", ref, err)
	}
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}

	rows := make([][]string, 0, y2-y1+1)
	for y := y1; y <= y2; y++ {
		row := make([]string, 0, x2-x1+1)
		for x := x1; x <= x2; x++ {
			cell, err := excelize.CoordinatesToCellName(x, y)
			if err != nil {
				return nil, err
			}
			v, err := w.file.GetCellValue(sheet, cell)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s!%s: %w", sheet, cell, err)
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
