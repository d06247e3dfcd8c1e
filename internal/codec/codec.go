// Package codec resolves text encodings by name and role.
//
// Names follow the conventions of the configuration files: Python codec
// names (utf-8-sig, cp1252, latin-1), WHATWG labels and IANA names are all
// accepted.
package codec

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// Role is the purpose a file is opened for.
type Role int

// Roles.
const (
	RoleExcel Role = iota
	RoleCSVImport
	RoleCSVExport
)

func (r Role) String() string {
	switch r {
	case RoleExcel:
		return "excel"
	case RoleCSVImport:
		return "csv-import"
	case RoleCSVExport:
		return "csv-export"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Well known encoding names.
const (
	UTF8BOM = "utf-8-sig"
	UTF8    = "utf-8"
	CP1252  = "cp1252"
	Latin1  = "iso-8859-1"

	// ExcelDefault is the encoding of CSV files generated from spreadsheet tabs.
	ExcelDefault = UTF8BOM
	// ImportFallback is used by import roles when nothing else is valid.
	ImportFallback = UTF8BOM
	// ExportFallback is used by the export role when nothing else is valid.
	ExportFallback = CP1252
)

// Resolution is the outcome of resolving an encoding for a file.
type Resolution struct {
	Name     string
	Encoding encoding.Encoding
	// Warnings lists names that were rejected on the way.
	Warnings []string
}

// aliases maps names unknown to, or interpreted differently by, the WHATWG
// index onto the intended encoding.
var aliases = map[string]encoding.Encoding{
	"utf-8-sig":  unicode.UTF8BOM,
	"utf8-sig":   unicode.UTF8BOM,
	"utf-8":      unicode.UTF8,
	"utf8":       unicode.UTF8,
	"iso-8859-1": charmap.ISO8859_1,
	"iso8859-1":  charmap.ISO8859_1,
	"latin-1":    charmap.ISO8859_1,
	"latin1":     charmap.ISO8859_1,
	"l1":         charmap.ISO8859_1,
	"cp850":      charmap.CodePage850,
	"cp437":      charmap.CodePage437,
	"cp1252":     charmap.Windows1252,
}

// normalize lowercases name and uses '-' as the word separator.
func normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

// Lookup returns the encoding registered under name.
func Lookup(name string) (encoding.Encoding, error) {
	n := normalize(name)
	if n == "" {
		return nil, fmt.Errorf("empty encoding name")
	}
	if enc, ok := aliases[n]; ok {
		return enc, nil
	}
	if enc, err := htmlindex.Get(n); err == nil {
		return enc, nil
	}
	// Python spells Windows code pages cpNNNN.
	if strings.HasPrefix(n, "cp") {
		if enc, err := htmlindex.Get("windows-" + strings.TrimPrefix(n, "cp")); err == nil {
			return enc, nil
		}
	}
	enc, err := ianaindex.IANA.Encoding(n)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unknown encoding %q", name)
	}
	return enc, nil
}

// Valid reports whether name designates a supported encoding.
func Valid(name string) bool {
	_, err := Lookup(name)
	return err == nil
}

// Resolve picks the encoding for a file of the given role.
//
// A per-file override wins when valid. An invalid override goes straight to
// the role fallback. Without an override the role default is used (baseInput
// for CSV imports, baseOutput for CSV exports, utf-8-sig for spreadsheet
// conversions), falling back when it is invalid. Rejected names are reported
// as warnings.
func Resolve(role Role, override, baseInput, baseOutput string) Resolution {
	var roleDefault, fallback string
	switch role {
	case RoleExcel:
		roleDefault, fallback = ExcelDefault, ImportFallback
	case RoleCSVImport:
		roleDefault, fallback = baseInput, ImportFallback
	default:
		roleDefault, fallback = baseOutput, ExportFallback
	}

	name := override
	if strings.TrimSpace(name) == "" {
		name = roleDefault
	}

	var res Resolution
	if strings.TrimSpace(name) != "" {
		enc, err := Lookup(name)
		if err == nil {
			res.Name, res.Encoding = normalize(name), enc
			return res
		}
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%s encoding %q is not valid, using %q", role, name, fallback))
	}

	enc, _ := Lookup(fallback)
	res.Name, res.Encoding = fallback, enc
	return res
}
