// Package dates turns CLI date inputs, including relative keywords, into
// inclusive calendar windows.
package dates

import (
	"fmt"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// ParseError indicates a date input that could not be interpreted.
type ParseError struct {
	msg string
}

func (e *ParseError) Error() string { return e.msg }

func parseError(format string, args ...any) error {
	return &ParseError{msg: fmt.Sprintf(format, args...)}
}

// Window is an inclusive calendar date range. Day boundaries are evaluated
// in the window's location: the window covers [From 00:00:00, To 23:59:59]
// in that location, and message timestamps are compared as instants against
// those bounds. Graph reports timestamps in UTC and no per-chat zone, so
// the location defaults to UTC unless the user overrides it.
type Window struct {
	from time.Time
	to   time.Time
	loc  *time.Location
}

// NewWindow builds a window from two instants, truncated to their calendar
// dates in loc. A nil loc means UTC.
func NewWindow(from, to time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := midnight(from, loc)
	t := midnight(to, loc)
	if t.Before(f) {
		return Window{}, parseError("end date %s precedes start date %s", t.Format(dayLayout), f.Format(dayLayout))
	}
	return Window{from: f, to: t, loc: loc}, nil
}

// Start is the inclusive lower bound, From at 00:00:00.
func (w Window) Start() time.Time { return w.from }

// End is the inclusive upper bound, To at 23:59:59.
func (w Window) End() time.Time {
	return w.to.AddDate(0, 0, 1).Add(-time.Second)
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start()) && !t.After(w.End())
}

// SingleDay reports whether the window covers exactly one calendar day.
func (w Window) SingleDay() bool { return w.from.Equal(w.to) }

// Fragment returns the window formatted for file names: "2025-10-01" or
// "2025-10-01_2025-10-03".
func (w Window) Fragment() string {
	if w.SingleDay() {
		return w.from.Format(dayLayout)
	}
	return w.from.Format(dayLayout) + "_" + w.to.Format(dayLayout)
}

func (w Window) String() string {
	return w.from.Format(dayLayout) + " to " + w.to.Format(dayLayout)
}

// Resolve converts CLI inputs into a window. Either value may be a keyword
// ("today", "yesterday", "last week", "last month") or a date. Span
// keywords used as the start extend to today when no end is given; a bare
// start date exports that single day; neither given means today.
func Resolve(startValue, endValue string, loc *time.Location, clock func() time.Time) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	today := midnight(clock(), loc)

	start := today
	spanToToday := false
	if startValue != "" {
		var err error
		start, spanToToday, err = parseOne(startValue, today, loc)
		if err != nil {
			return Window{}, err
		}
	}

	end := start
	switch {
	case endValue != "":
		var err error
		end, _, err = parseOne(endValue, today, loc)
		if err != nil {
			return Window{}, err
		}
	case spanToToday:
		end = today
	}

	return NewWindow(start, end, loc)
}

// parseOne interprets a single date input. The bool is true for span
// keywords that imply a range ending today.
func parseOne(value string, today time.Time, loc *time.Location) (time.Time, bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "today":
		return today, false, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), false, nil
	case "last week":
		return today.AddDate(0, 0, -7), true, nil
	case "last month":
		return today.AddDate(0, 0, -30), true, nil
	}
	if t, err := time.ParseInLocation(dayLayout, value, loc); err == nil {
		return t, false, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return midnight(t, loc), false, nil
	}
	return time.Time{}, false, parseError("could not parse date value: %q", value)
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
