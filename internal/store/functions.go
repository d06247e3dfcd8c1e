package store

import (
	"database/sql/driver"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"modernc.org/sqlite"
)

var (
	registerOnce sync.Once
	regexCache   sync.Map // pattern -> *regexp.Regexp, or nil when invalid
)

// registerFunctions adds REGEXP to every connection of the driver, so that
// "value REGEXP pattern" works in configured statements. The function
// outlives any session, so it logs through the default logger.
func registerFunctions() {
	registerOnce.Do(func() {
		err := sqlite.RegisterDeterministicScalarFunction("regexp", 2,
			func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				return regexpMatch(args[0], args[1], slog.Default()), nil
			})
		if err != nil {
			slog.Default().Warn("failed to register REGEXP function", "error", err)
		}
	})
}

// regexpMatch reports whether value contains a match of pattern. NULL
// values never match; invalid patterns never match and are logged once.
func regexpMatch(pattern, value driver.Value, logger *slog.Logger) int64 {
	if pattern == nil || value == nil {
		return 0
	}
	p := asString(pattern)

	cached, ok := regexCache.Load(p)
	if !ok {
		re, err := regexp.Compile(p)
		if err != nil {
			logger.Warn("invalid REGEXP pattern", "pattern", p, "error", err)
			re = nil
		}
		cached, _ = regexCache.LoadOrStore(p, re)
	}
	re, _ := cached.(*regexp.Regexp)
	if re == nil || !re.MatchString(asString(value)) {
		return 0
	}
	return 1
}

func asString(v driver.Value) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
