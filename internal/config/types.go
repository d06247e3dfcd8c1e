// Package config provides the run configuration types for SQL Merger.
// A RunConfig is loaded once per run and treated as immutable afterwards.
package config

import (
	"regexp"
	"strings"
)

// TableKind classifies a table entry.
type TableKind string

// Table kinds.
const (
	KindDim    TableKind = "DIM"
	KindFact   TableKind = "FACT"
	KindOutput TableKind = "OUTPUT"
)

// Level controls where a variable is editable.
type Level string

// Variable levels.
const (
	LevelUser     Level = "user"
	LevelAdvanced Level = "advanced"
	LevelInternal Level = "internal"
)

// Editable reports whether variables of this level accept user input.
func (l Level) Editable() bool {
	return l == LevelUser || l == LevelAdvanced
}

// Phase selects when a command runs.
type Phase string

// Command phases.
const (
	PhaseInit        Phase = "init"
	PhasePostImports Phase = "post_imports"
)

// Base holds the global options of a run.
type Base struct {
	TemplateName  string `koanf:"sqlite_template_name"`
	InputCodec    string `koanf:"input_codec"`
	OutputCodec   string `koanf:"output_codec"`
	DisableOutput bool   `koanf:"disable_output"`
	KeepDB        bool   `koanf:"keep_db"`
	KeptDBName    string `koanf:"kept_db_name"`
	CopyCSVToTemp bool   `koanf:"copy_csv_to_temp"`
	CSVDelimiter  string `koanf:"csv_delimiter"`
	HistoryDB     string `koanf:"history_db"`
}

// Delimiter returns the CSV field separator as a rune.
func (b Base) Delimiter() rune {
	for _, r := range b.CSVDelimiter {
		return r
	}
	return ';'
}

// Variable is a named value usable as a {placeholder} and optionally
// written to the store after imports.
type Variable struct {
	Name        string
	Label       string
	Level       Level
	Default     string
	Pattern     *regexp.Regexp
	PatternText string
	Optional    bool
	SQLTable    string
	SQLSetCol   string
	SQLWhereCol string
}

// Computed reports whether the default is an expression.
func (v Variable) Computed() bool {
	return strings.HasPrefix(v.Default, "=")
}

// Bound reports whether the variable is written to a store table.
func (v Variable) Bound() bool {
	return v.SQLTable != ""
}

// Source describes where a table's data comes from or goes to.
// It is implemented by SpreadsheetSource, CSVSource and OutputSource.
type Source interface {
	source()
}

// SpreadsheetSource reads a named tab of the infos workbook through an
// intermediate CSV file.
type SpreadsheetSource struct {
	TabName  string
	CSVName  string
	Encoding string
}

// CSVSource reads a CSV file, or every matching file of a directory.
type CSVSource struct {
	Path        string
	Pattern     *regexp.Regexp
	PatternText string
	Encoding    string
	MissingOK   bool
}

// OutputSource writes the result of the table query to a CSV file.
type OutputSource struct {
	FileName string
	Encoding string
}

func (SpreadsheetSource) source() {}
func (CSVSource) source()         {}
func (OutputSource) source()      {}

// TableSpec binds a store table to its source or export target.
type TableSpec struct {
	ID           string
	Kind         TableKind
	SQLName      string
	Source       Source
	ColSource    string
	RequiredCols []string
}

// Label returns the identifier used in logs and reports.
func (t TableSpec) Label() string {
	if t.ID != "" {
		return t.ID
	}
	return t.SQLName
}

// Command is a SQL statement executed in a phase.
type Command struct {
	Phase  Phase
	SQL    string
	Commit bool
}

// RunConfig is the immutable description of a run.
type RunConfig struct {
	Base      Base
	Variables []Variable
	Tables    []TableSpec
	Commands  []Command

	// Path is the file the configuration was loaded from.
	Path string
	// Warnings holds recoverable problems found while loading.
	Warnings []string
}

// TablesOf returns the tables of the given kind in declared order.
func (c *RunConfig) TablesOf(kind TableKind) []TableSpec {
	var out []TableSpec
	for _, t := range c.Tables {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// CommandsFor returns the commands of a phase in declared order.
func (c *RunConfig) CommandsFor(phase Phase) []Command {
	var out []Command
	for _, cmd := range c.Commands {
		if cmd.Phase == phase {
			out = append(out, cmd)
		}
	}
	return out
}

// Variable looks up a variable by name, ignoring case.
func (c *RunConfig) Variable(name string) (Variable, bool) {
	for _, v := range c.Variables {
		if strings.EqualFold(v.Name, name) {
			return v, true
		}
	}
	return Variable{}, false
}

// VariablesAt returns the variables of the given levels in declared order.
func (c *RunConfig) VariablesAt(levels ...Level) []Variable {
	var out []Variable
	for _, v := range c.Variables {
		for _, l := range levels {
			if v.Level == l {
				out = append(out, v)
				break
			}
		}
	}
	return out
}
