package variables

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// UnresolvedPlaceholderError reports a {name} with no matching variable.
type UnresolvedPlaceholderError struct {
	Identifier string
	Template   string
}

func (e *UnresolvedPlaceholderError) Error() string {
	return fmt.Sprintf("unresolved placeholder {%s} in %q", e.Identifier, e.Template)
}

// Placeholders returns the identifiers referenced by template, in order of
// first appearance.
func Placeholders(template string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		key := strings.ToLower(m[1])
		if !seen[key] {
			seen[key] = true
			out = append(out, m[1])
		}
	}
	return out
}

// Check returns an UnresolvedPlaceholderError for the first identifier of
// template that is neither a resolved variable nor "timestamp".
func Check(template string, vals Values) error {
	for _, id := range Placeholders(template) {
		if strings.EqualFold(id, TimestampKey) {
			continue
		}
		if _, ok := vals.Get(id); !ok {
			return &UnresolvedPlaceholderError{Identifier: id, Template: template}
		}
	}
	return nil
}

// Expand replaces every {identifier} of template with its value. The
// reserved identifier "timestamp" expands to the run timestamp. Braces that
// do not enclose an identifier are kept as is. Nothing is substituted when
// one identifier is unknown.
func Expand(template string, vals Values, timestamp string) (string, error) {
	if !strings.Contains(template, "{") {
		return template, nil
	}
	if err := Check(template, vals); err != nil {
		return "", err
	}
	return placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		id := m[1 : len(m)-1]
		if strings.EqualFold(id, TimestampKey) {
			return timestamp
		}
		v, _ := vals.Get(id)
		return v
	}), nil
}
