package starlark

import (
	"fmt"
	"time"

	startime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
)

// ToString renders an expression result as text. Strings are returned
// unquoted and times as "2006-01-02 15:04:05", with microseconds appended
// only when present. Other values use their Starlark representation.
func ToString(v starlark.Value) string {
	switch val := v.(type) {
	case nil:
		return ""
	case starlark.String:
		return string(val)
	case startime.Time:
		return formatTime(time.Time(val))
	default:
		return v.String()
	}
}

func formatTime(t time.Time) string {
	s := t.Format(time.DateTime)
	if us := t.Nanosecond() / int(time.Microsecond); us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return s
}
