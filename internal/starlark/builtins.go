package starlark

import (
	"fmt"
	"time"

	"github.com/ncruces/go-strftime"
	startime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
)

// dateLayouts are accepted when a date argument is given as a string.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Predeclared returns the globals available to expressions. clock supplies
// the value of now().
func Predeclared(clock func() time.Time) starlark.StringDict {
	b := builtins{clock: clock}
	return starlark.StringDict{
		"now":            starlark.NewBuiltin("now", b.now),
		"format_date":    starlark.NewBuiltin("format_date", b.formatDate),
		"day":            starlark.NewBuiltin("day", b.part(time.Time.Day)),
		"month":          starlark.NewBuiltin("month", b.part(func(t time.Time) int { return int(t.Month()) })),
		"year":           starlark.NewBuiltin("year", b.part(time.Time.Year)),
		"offset_day":     starlark.NewBuiltin("offset_day", b.shift(offsetDay)),
		"offset_month":   starlark.NewBuiltin("offset_month", b.shift(addMonths)),
		"start_of_month": starlark.NewBuiltin("start_of_month", b.shift(startOfMonth)),
		"end_of_month":   starlark.NewBuiltin("end_of_month", b.shift(endOfMonth)),
		"time":           startime.Module,
	}
}

type builtins struct {
	clock func() time.Time
}

func (b builtins) now(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return startime.Time(b.clock()), nil
}

func (b builtins) formatDate(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var date starlark.Value
	var layout string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "date", &date, "fmt", &layout); err != nil {
		return nil, err
	}
	t, err := b.toTime(fn.Name(), date)
	if err != nil {
		return nil, err
	}
	return starlark.String(strftime.Format(layout, t)), nil
}

// part builds day(), month() and year(): one optional date, defaulting to now.
func (b builtins) part(get func(time.Time) int) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var date starlark.Value = starlark.None
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "date?", &date); err != nil {
			return nil, err
		}
		t, err := b.toTime(fn.Name(), date)
		if err != nil {
			return nil, err
		}
		return starlark.MakeInt(get(t)), nil
	}
}

// shift builds the date(date=None, offset=0) functions.
func (b builtins) shift(apply func(time.Time, int) time.Time) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var date starlark.Value = starlark.None
		var offset int
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "date?", &date, "offset?", &offset); err != nil {
			return nil, err
		}
		t, err := b.toTime(fn.Name(), date)
		if err != nil {
			return nil, err
		}
		return startime.Time(apply(t, offset)), nil
	}
}

// toTime converts a date argument. None means now; strings are parsed with
// dateLayouts.
func (b builtins) toTime(fnName string, v starlark.Value) (time.Time, error) {
	switch x := v.(type) {
	case nil, starlark.NoneType:
		return b.clock(), nil
	case startime.Time:
		return time.Time(x), nil
	case starlark.String:
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, string(x), b.clock().Location()); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%s: cannot parse %q as a date", fnName, string(x))
	default:
		return time.Time{}, fmt.Errorf("%s: got %s, want time.time", fnName, v.Type())
	}
}

func offsetDay(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

// addMonths moves t by n months, clamping the day to the length of the
// target month (Jan 31 + 1 month is Feb 28 or 29).
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location()).AddDate(0, n, 0)
	if last := daysIn(first); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func startOfMonth(t time.Time, n int) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location()).AddDate(0, n, 0)
}

func endOfMonth(t time.Time, n int) time.Time {
	return startOfMonth(t, n+1).AddDate(0, 0, -1)
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
