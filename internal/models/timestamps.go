package models

import (
	"database/sql"
	"math"
	"strings"
	"time"
)

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
// 1e11 seconds is in the year 5138, so anything above is milliseconds.
const epochMillisThreshold = 1e11

// NormalizeTimestamp converts the loosely typed timestamp values found in stored
// rows and import files into a UTC time. It accepts time.Time, *time.Time,
// sql.NullTime, epoch seconds or milliseconds as any integer or float, and
// RFC3339 or YYYY-MM-DD strings. ok is false for nil, zero or unparseable input.
func NormalizeTimestamp(v interface{}) (t time.Time, ok bool) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return nonZero(val)
	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return nonZero(*val)
	case sql.NullTime:
		if !val.Valid {
			return time.Time{}, false
		}
		return nonZero(val.Time)
	case int:
		return fromEpoch(float64(val))
	case int32:
		return fromEpoch(float64(val))
	case int64:
		return fromEpoch(float64(val))
	case uint64:
		return fromEpoch(float64(val))
	case float32:
		return fromEpoch(float64(val))
	case float64:
		return fromEpoch(val)
	case []byte:
		return parseTimestampString(string(val))
	case string:
		return parseTimestampString(val)
	default:
		return time.Time{}, false
	}
}

func nonZero(t time.Time) (time.Time, bool) {
	if t.IsZero() {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func fromEpoch(f float64) (time.Time, bool) {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	if f >= epochMillisThreshold {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestampString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
