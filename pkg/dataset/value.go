package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// DateLayout is the canonical text form of date values.
const DateLayout = "2006-01-02"

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// normalize maps driver and decoder values onto the small scalar set the
// rest of the module understands: nil, bool, int64, float64, string, time.Time.
func normalize(v any) any {
	switch val := v.(type) {
	case nil, bool, int64, float64, string, time.Time:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint:
		if uint64(val) > math.MaxInt64 {
			return float64(val)
		}
		return int64(val)
	case uint64:
		if val > math.MaxInt64 {
			return float64(val)
		}
		return int64(val)
	case float32:
		return float64(val)
	case []byte:
		return string(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case *time.Time:
		if val == nil {
			return nil
		}
		return *val
	case interface{ Float64() float64 }:
		// DuckDB decimals and similar numeric wrappers.
		return val.Float64()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// inferColumn settles the type of column c, converting date strings to
// time.Time in place when every non-null value parses.
func inferColumn(rows [][]any, c int) Type {
	var (
		nonNull                                int
		bools, ints, floats, strs, times, mids int
	)
	for _, row := range rows {
		switch v := row[c].(type) {
		case nil:
			continue
		case bool:
			bools++
		case int64:
			ints++
		case float64:
			floats++
		case string:
			strs++
		case time.Time:
			times++
			if isMidnight(v) {
				mids++
			}
		}
		nonNull++
	}

	switch {
	case nonNull == 0:
		return TypeNull
	case bools == nonNull:
		return TypeBool
	case ints == nonNull:
		return TypeInt
	case ints+floats == nonNull:
		return TypeFloat
	case times == nonNull:
		if mids == nonNull {
			return TypeDate
		}
		return TypeDateTime
	case strs == nonNull:
		return coerceDates(rows, c)
	default:
		return TypeAny
	}
}

// coerceDates converts a string column to dates when every value parses.
func coerceDates(rows [][]any, c int) Type {
	parsed := make([]time.Time, len(rows))
	dateOnly := true
	for r, row := range rows {
		s, ok := row[c].(string)
		if !ok {
			continue
		}
		if t, err := time.Parse(DateLayout, s); err == nil {
			parsed[r] = t
			continue
		}
		t, ok := parseDateTime(s)
		if !ok {
			return TypeString
		}
		parsed[r] = t
		dateOnly = false
	}
	for r, row := range rows {
		if row[c] != nil {
			row[c] = parsed[r]
		}
	}
	if dateOnly {
		return TypeDate
	}
	return TypeDateTime
}

func parseDateTime(s string) (time.Time, bool) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isMidnight(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// AsFloat converts numeric scalars to float64.
func AsFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// AsTime returns the time held by v, parsing text when needed.
func AsTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		if t, err := time.Parse(DateLayout, val); err == nil {
			return t, true
		}
		return parseDateTime(val)
	default:
		return time.Time{}, false
	}
}

var weekdayNames = [...]string{
	time.Sunday:    "domingo",
	time.Monday:    "lunes",
	time.Tuesday:   "martes",
	time.Wednesday: "miércoles",
	time.Thursday:  "jueves",
	time.Friday:    "viernes",
	time.Saturday:  "sábado",
}

// WeekdayName returns the Spanish name of a weekday.
func WeekdayName(d time.Weekday) string { return weekdayNames[d] }
