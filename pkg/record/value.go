package record

import "time"

// IsNull reports whether a record attribute value counts as "no value".
// Absent keys yield nil, so both spellings are covered.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

// AsString coerces v to a string. Only genuine strings coerce; numbers do
// not, so filters on text fields never accidentally match numeric columns.
func AsString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// AsFloat coerces any numeric attribute value to float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

// AsTime coerces an attribute value to a time.Time. Strings are parsed with
// the accepted date layouts; integral values are interpreted as a Unix
// timestamp, in milliseconds when the magnitude is too large for seconds.
func AsTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		return parseDate(t)
	case int64:
		return fromEpoch(t), true
	case float64:
		return fromEpoch(int64(t)), true
	default:
		return time.Time{}, false
	}
}

// Timestamps past this magnitude cannot be seconds for any sane date, so
// they are read as milliseconds (common for datasets produced by JS tooling).
const epochMillisThreshold = int64(1e12)

func fromEpoch(n int64) time.Time {
	if n >= epochMillisThreshold || n <= -epochMillisThreshold {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// Date layouts accepted for string-valued date attributes, most specific
// first. Mirrors what the upstream membership exports actually contain.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
