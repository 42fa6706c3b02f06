package dashboard

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Row is one positional result row; field values are opaque until a role reads them.
type Row []any

// RawResult wraps the rows returned for one report run. A nil Data is the valid
// "no data" state, not an error.
type RawResult struct {
	Data []Row `json:"data"`
}

// IsEmpty reports whether the result is structurally empty.
func (r *RawResult) IsEmpty() bool {
	return r == nil || len(r.Data) == 0
}

func (r Row) field(idx int) (any, bool) {
	if idx < 0 || idx >= len(r) {
		return nil, false
	}
	return r[idx], true
}

// fieldString renders a field as text for string comparisons.
func fieldString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// fieldInt parses the leading integer of a field, the way report consumers have always
// read loosely typed numeric columns ("3", " 3", "3.9", 3.0 all read as 3).
func fieldInt(v any) (int, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case int:
		return val, true
	case int32:
		return int(val), true
	case int64:
		return int(val), true
	case float32:
		return truncFloat(float64(val))
	case float64:
		return truncFloat(val)
	default:
		return leadingInt(fieldString(val))
	}
}

func truncFloat(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.Trunc(f)), true
}

func leadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// fieldFloat reads a numeric field; used by pair reports that carry amounts.
func fieldFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		f, err := strconv.ParseFloat(strings.TrimSpace(fieldString(val)), 64)
		return f, err == nil
	}
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// fieldDate parses a temporal key. Backends emit dates either as strings or as
// [year, month, day] arrays.
func fieldDate(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, !val.IsZero()
	case []any:
		if len(val) < 3 {
			return time.Time{}, false
		}
		y, okY := fieldInt(val[0])
		m, okM := fieldInt(val[1])
		d, okD := fieldInt(val[2])
		if !okY || !okM || !okD {
			return time.Time{}, false
		}
		return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), true
	default:
		s := strings.TrimSpace(fieldString(val))
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}
}
