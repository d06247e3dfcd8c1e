package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Error reports an invalid configuration entry.
type Error struct {
	Section string // base, sql_tables, sql_variables, sql_commands or file
	Index   int    // entry index, -1 when not applicable
	Msg     string
}

func (e *Error) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("config %s: %s", e.Section, e.Msg)
	}
	return fmt.Sprintf("config %s[%d]: %s", e.Section, e.Index, e.Msg)
}

// IsConfigError reports whether err contains a configuration error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// build validates the decoded file and converts it into a RunConfig.
// All invalid entries are reported together.
func build(raw rawConfig) (*RunConfig, error) {
	cfg := &RunConfig{Base: raw.Base}
	cfg.Base.ApplyDefaults()

	var errs []error
	if len([]rune(cfg.Base.CSVDelimiter)) != 1 {
		errs = append(errs, &Error{Section: "base", Index: -1,
			Msg: fmt.Sprintf("csv_delimiter must be a single character, got %q", cfg.Base.CSVDelimiter)})
	}

	seen := make(map[string]int)
	for i, rv := range raw.Variables {
		v, warn, err := buildVariable(rv)
		if err != nil {
			errs = append(errs, &Error{Section: "sql_variables", Index: i, Msg: err.Error()})
			continue
		}
		if warn != "" {
			cfg.Warnings = append(cfg.Warnings, warn)
		}
		key := strings.ToLower(v.Name)
		if j, dup := seen[key]; dup {
			errs = append(errs, &Error{Section: "sql_variables", Index: i,
				Msg: fmt.Sprintf("variable %q already declared at index %d", v.Name, j)})
			continue
		}
		seen[key] = i
		cfg.Variables = append(cfg.Variables, v)
	}

	for i, rt := range raw.Tables {
		t, warn, err := buildTable(rt)
		if err != nil {
			errs = append(errs, &Error{Section: "sql_tables", Index: i, Msg: err.Error()})
			continue
		}
		if warn != "" {
			cfg.Warnings = append(cfg.Warnings, warn)
		}
		cfg.Tables = append(cfg.Tables, t)
	}

	for i, rc := range raw.Commands {
		c, err := buildCommand(rc)
		if err != nil {
			errs = append(errs, &Error{Section: "sql_commands", Index: i, Msg: err.Error()})
			continue
		}
		cfg.Commands = append(cfg.Commands, c)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func buildVariable(rv rawVariable) (Variable, string, error) {
	name := strings.TrimSpace(rv.SQLName)
	if name == "" {
		return Variable{}, "", fmt.Errorf("sql_name is required")
	}
	if strings.EqualFold(name, "timestamp") {
		return Variable{}, "", fmt.Errorf("variable name %q is reserved", name)
	}

	v := Variable{
		Name:        name,
		Label:       rv.UILabel,
		Default:     rv.Default,
		Optional:    rv.Optional,
		SQLTable:    rv.SQLTable,
		SQLSetCol:   rv.SQLSetCol,
		SQLWhereCol: rv.SQLWhereCol,
		PatternText: rv.RegexCtrl,
	}
	if v.Label == "" {
		v.Label = name
	}

	var warn string
	switch Level(strings.ToLower(strings.TrimSpace(rv.Level))) {
	case LevelUser:
		v.Level = LevelUser
	case LevelInternal:
		v.Level = LevelInternal
	case LevelAdvanced, "":
		v.Level = LevelAdvanced
	default:
		v.Level = LevelAdvanced
		warn = fmt.Sprintf("variable %q: invalid level %q, using %q", name, rv.Level, LevelAdvanced)
	}

	if v.SQLTable != "" {
		if v.SQLSetCol == "" {
			return Variable{}, "", fmt.Errorf("variable %q: sql_set_col is required with sql_table", name)
		}
		if v.SQLWhereCol == "" {
			return Variable{}, "", fmt.Errorf("variable %q: sql_where_col is required with sql_table", name)
		}
	}

	if rv.RegexCtrl != "" {
		re, err := regexp.Compile(`^(?:` + rv.RegexCtrl + `)$`)
		if err != nil {
			return Variable{}, "", fmt.Errorf("variable %q: invalid regex_ctrl: %w", name, err)
		}
		v.Pattern = re
	}
	return v, warn, nil
}

func buildTable(rt rawTable) (TableSpec, string, error) {
	t := TableSpec{
		ID:           rt.ID,
		Kind:         TableKind(strings.ToUpper(strings.TrimSpace(rt.Type))),
		SQLName:      strings.TrimSpace(rt.SQLName),
		ColSource:    rt.ColSource,
		RequiredCols: trimAll(rt.RequiredCols),
	}
	label := t.Label()
	if t.SQLName == "" {
		return TableSpec{}, "", fmt.Errorf("table %q: sql_name is required", rt.ID)
	}

	var warn string
	switch t.Kind {
	case KindOutput:
		if rt.CSVName == "" {
			return TableSpec{}, "", fmt.Errorf("table %q: output tables require csv_name", label)
		}
		if rt.CSVSource != "" || rt.ExcelName != "" {
			return TableSpec{}, "", fmt.Errorf("table %q: output tables cannot declare excel_name or csv_source", label)
		}
		t.Source = OutputSource{FileName: rt.CSVName, Encoding: rt.CSVEncoding}

	case KindDim, KindFact:
		hasExcel := rt.ExcelName != "" || rt.CSVName != ""
		hasCSV := rt.CSVSource != ""
		switch {
		case hasExcel && hasCSV:
			return TableSpec{}, "", fmt.Errorf("table %q: excel_name and csv_source are mutually exclusive", label)
		case hasExcel:
			if rt.ExcelName == "" || rt.CSVName == "" {
				return TableSpec{}, "", fmt.Errorf("table %q: excel_name and csv_name must be declared together", label)
			}
			t.Source = SpreadsheetSource{TabName: rt.ExcelName, CSVName: rt.CSVName, Encoding: rt.CSVEncoding}
		case hasCSV:
			src := CSVSource{Path: rt.CSVSource, Encoding: rt.CSVEncoding, MissingOK: rt.CSVMissingOK}
			src.Pattern, src.PatternText, warn = compilePattern(label, rt.CSVPatternRegex)
			t.Source = src
		default:
			return TableSpec{}, "", fmt.Errorf("table %q: excel_name or csv_source is required", label)
		}

	default:
		return TableSpec{}, "", fmt.Errorf("table %q: invalid type %q", label, rt.Type)
	}
	return t, warn, nil
}

// compilePattern compiles a case-insensitive file name filter. Invalid
// patterns fall back to the default with a warning.
func compilePattern(label, pattern string) (*regexp.Regexp, string, string) {
	if pattern == "" {
		return regexp.MustCompile(`(?i)` + DefaultCSVPattern), DefaultCSVPattern, ""
	}
	re, err := regexp.Compile(`(?i)` + pattern)
	if err != nil {
		warn := fmt.Sprintf("table %q: invalid csv_pattern_regex %q (%v), using %q", label, pattern, err, DefaultCSVPattern)
		return regexp.MustCompile(`(?i)` + DefaultCSVPattern), DefaultCSVPattern, warn
	}
	return re, pattern, ""
}

func buildCommand(rc rawCommand) (Command, error) {
	c := Command{SQL: rc.SQL, Commit: rc.Commit}
	switch Phase(strings.ToLower(strings.TrimSpace(rc.Phase))) {
	case PhaseInit:
		c.Phase = PhaseInit
	case PhasePostImports:
		c.Phase = PhasePostImports
	default:
		return Command{}, fmt.Errorf("invalid phase %q", rc.Phase)
	}
	if strings.TrimSpace(c.SQL) == "" {
		return Command{}, fmt.Errorf("sql is required")
	}
	return c, nil
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
