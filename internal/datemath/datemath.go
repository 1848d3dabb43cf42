// Package datemath resolves relative time expressions such as "now-15d",
// "now/d" or "2024-01-01T00:00:00Z||+1M" against a reference time.
package datemath

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Parse resolves expr relative to now. When roundUp is set, rounding
// operations ("/d") resolve to the last millisecond of the unit instead of
// the first, which is what an inclusive range end needs.
func Parse(expr string, now time.Time, roundUp bool) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return time.Time{}, fmt.Errorf("empty date expression")
	}

	var anchor time.Time
	var ops string
	switch {
	case strings.HasPrefix(expr, "now"):
		anchor = now
		ops = expr[len("now"):]
	default:
		base := expr
		if idx := strings.Index(expr, "||"); idx >= 0 {
			base, ops = expr[:idx], expr[idx+2:]
		}
		t, err := parseAbsolute(base)
		if err != nil {
			return time.Time{}, err
		}
		anchor = t
	}

	return apply(anchor, ops, roundUp)
}

var absoluteLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseAbsolute(value string) (time.Time, error) {
	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid date expression %q", value)
}

func apply(t time.Time, ops string, roundUp bool) (time.Time, error) {
	for i := 0; i < len(ops); {
		op := ops[i]
		i++
		switch op {
		case '/':
			if i >= len(ops) {
				return time.Time{}, fmt.Errorf("missing unit after '/'")
			}
			unit := ops[i]
			i++
			rounded, err := round(t, unit, roundUp)
			if err != nil {
				return time.Time{}, err
			}
			t = rounded
		case '+', '-':
			start := i
			for i < len(ops) && ops[i] >= '0' && ops[i] <= '9' {
				i++
			}
			n := 1
			if i > start {
				v, err := strconv.Atoi(ops[start:i])
				if err != nil {
					return time.Time{}, fmt.Errorf("invalid amount %q", ops[start:i])
				}
				n = v
			}
			if i >= len(ops) {
				return time.Time{}, fmt.Errorf("missing unit after %q", ops[start-1:i])
			}
			if op == '-' {
				n = -n
			}
			shifted, err := shift(t, n, ops[i])
			if err != nil {
				return time.Time{}, err
			}
			t = shifted
			i++
		default:
			return time.Time{}, fmt.Errorf("unexpected character %q in date expression", op)
		}
	}
	return t, nil
}

func shift(t time.Time, n int, unit byte) (time.Time, error) {
	switch unit {
	case 'y':
		return t.AddDate(n, 0, 0), nil
	case 'M':
		return t.AddDate(0, n, 0), nil
	case 'w':
		return t.AddDate(0, 0, 7*n), nil
	case 'd':
		return t.AddDate(0, 0, n), nil
	case 'h', 'H':
		return addDuration(t, n, time.Hour), nil
	case 'm':
		return addDuration(t, n, time.Minute), nil
	case 's':
		return addDuration(t, n, time.Second), nil
	}
	return time.Time{}, fmt.Errorf("unknown time unit %q", unit)
}

// addDuration adds n units to t. Offsets too large for a Duration are
// applied as whole days followed by the remainder.
func addDuration(t time.Time, n int, unit time.Duration) time.Time {
	limit := int64(math.MaxInt64 / unit)
	if int64(n) <= limit && int64(n) >= -limit {
		return t.Add(time.Duration(n) * unit)
	}
	perDay := int(24 * time.Hour / unit)
	days, rem := n/perDay, n%perDay
	return t.UTC().AddDate(0, 0, days).In(t.Location()).Add(time.Duration(rem) * unit)
}

func round(t time.Time, unit byte, roundUp bool) (time.Time, error) {
	var start time.Time
	y, mo, d := t.Date()
	loc := t.Location()
	switch unit {
	case 'y':
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	case 'M':
		start = time.Date(y, mo, 1, 0, 0, 0, 0, loc)
	case 'w':
		offset := (int(t.Weekday()) + 6) % 7 // weeks start on Monday
		start = time.Date(y, mo, d-offset, 0, 0, 0, 0, loc)
	case 'd':
		start = time.Date(y, mo, d, 0, 0, 0, 0, loc)
	case 'h', 'H':
		start = t.Truncate(time.Hour)
	case 'm':
		start = t.Truncate(time.Minute)
	case 's':
		start = t.Truncate(time.Second)
	default:
		return time.Time{}, fmt.Errorf("unknown time unit %q", unit)
	}
	if !roundUp {
		return start, nil
	}
	next, err := shift(start, 1, unit)
	if err != nil {
		return time.Time{}, err
	}
	return next.Add(-time.Millisecond), nil
}
