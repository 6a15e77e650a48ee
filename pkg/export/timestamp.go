package export

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// FormatTime renders t as an ISO-8601 timestamp in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp accepts Unix seconds (any numeric type or json.Number), an
// ISO-8601 string, a time.Time or a *time.Time.
func ParseTimestamp(v any) (time.Time, bool) {
	switch ts := v.(type) {
	case time.Time:
		return ts, !ts.IsZero()
	case *time.Time:
		if ts == nil {
			return time.Time{}, false
		}
		return *ts, !ts.IsZero()
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, ts); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case json.Number:
		f, err := ts.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromUnixSeconds(f)
	case float64:
		return fromUnixSeconds(ts)
	case float32:
		return fromUnixSeconds(float64(ts))
	case int:
		return fromUnixSeconds(float64(ts))
	case int64:
		return fromUnixSeconds(float64(ts))
	case int32:
		return fromUnixSeconds(float64(ts))
	case uint64:
		return fromUnixSeconds(float64(ts))
	}
	return time.Time{}, false
}

func fromUnixSeconds(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))), true
}

// NormalizeTimestamp converts a timestamp in any accepted input form to an
// ISO-8601 string. Strings are returned verbatim. Values of other types are
// rendered with fmt and reported as not normalized.
func NormalizeTimestamp(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	if t, ok := ParseTimestamp(v); ok {
		return FormatTime(t), true
	}
	return fmt.Sprint(v), false
}

// UnixSeconds converts t to fractional Unix seconds.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FormatDuration renders whole seconds as "<m>m <s>s".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}
