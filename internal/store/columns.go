package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Column describes a table column as reported by PRAGMA table_info.
type Column struct {
	CID     int
	Name    string
	Type    string
	NotNull bool
	Default sql.NullString
	PK      int
}

// Affinity returns the SQLite type affinity of the column.
func (c Column) Affinity() Affinity {
	return AffinityOf(c.Type)
}

// TableNotFoundError reports a table missing from the store.
type TableNotFoundError struct {
	Table string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %s not found", e.Table)
}

// Columns returns the columns of table in declaration order. Results are
// cached until the next Exec.
func (s *Session) Columns(ctx context.Context, table string) ([]Column, error) {
	if cols, ok := s.columns[strings.ToLower(table)]; ok {
		return cols, nil
	}

	rows, err := s.Query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.CID, &c.Name, &c.Type, &c.NotNull, &c.Default, &c.PK); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(cols) == 0 {
		return nil, &TableNotFoundError{Table: table}
	}

	s.columns[strings.ToLower(table)] = cols
	return cols, nil
}

// Affinity is a SQLite column type affinity.
type Affinity int

// Affinities, see https://sqlite.org/datatype3.html.
const (
	AffinityNumeric Affinity = iota
	AffinityInteger
	AffinityText
	AffinityBlob
	AffinityReal
)

// AffinityOf applies the SQLite affinity rules to a declared type.
func AffinityOf(declType string) Affinity {
	t := strings.ToUpper(declType)
	switch {
	case strings.Contains(t, "INT"):
		return AffinityInteger
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return AffinityText
	case strings.Contains(t, "BLOB"), t == "":
		return AffinityBlob
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return AffinityReal
	default:
		return AffinityNumeric
	}
}

// Clean converts a CSV field for insertion into a column of this affinity.
// Numeric columns accept "1 234,5" style numbers; values that do not parse
// are passed through unchanged, as are blanks.
func (a Affinity) Clean(value string) any {
	if strings.TrimSpace(value) == "" {
		return value
	}
	switch a {
	case AffinityText, AffinityBlob:
		return value
	case AffinityInteger:
		n := normalizeNumber(value)
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(n, 64); err == nil && f == float64(int64(f)) {
			return int64(f)
		}
		return value
	default:
		if f, err := strconv.ParseFloat(normalizeNumber(value), 64); err == nil {
			return f
		}
		return value
	}
}

func normalizeNumber(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		case ',':
			return '.'
		}
		return r
	}, s)
	return s
}
