package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlmerger/internal/config"
)

// parseOverrides turns repeated name=value flags into variable overrides.
// Only user and advanced variables can be set.
func parseOverrides(cfg *config.RunConfig, sets []string) (map[string]string, error) {
	out := make(map[string]string, len(sets))
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q: expected name=value", s)
		}
		v, found := cfg.Variable(name)
		if !found {
			return nil, fmt.Errorf("unknown variable %q", name)
		}
		if !v.Level.Editable() {
			return nil, fmt.Errorf("variable %s is %s and cannot be set", v.Name, v.Level)
		}
		out[v.Name] = value
	}
	return out, nil
}
