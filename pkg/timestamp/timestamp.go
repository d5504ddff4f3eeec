// Package timestamp converts between the timestamp shapes seen on the wire and
// time.Time.
//
// Outbound frames carry ISO-8601 UTC strings with millisecond precision
// ("2026-01-02T15:04:05.000Z"). Inbound frames may carry the same strings,
// RFC3339 without fractions, or Unix seconds/milliseconds as numbers or
// numeric strings.
package timestamp

import (
	"strconv"
	"time"
)

// isoLayout matches the millisecond UTC form emitted by browser clients
const isoLayout = "2006-01-02T15:04:05.000Z"

// ISO formats t as a millisecond-precision UTC ISO-8601 string
func ISO(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// ToUnixMs converts a time.Time to Unix milliseconds.
// Returns 0 for the zero time.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromUnixMs converts Unix milliseconds to time.Time.
// Returns zero time if ms is 0.
func FromUnixMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// Parse converts the supported wire formats to Unix milliseconds.
// Numbers above 1e12 are taken as milliseconds, smaller ones as seconds.
// Returns 0 for nil, unsupported or unparseable input.
func Parse(input any) int64 {
	switch v := input.(type) {
	case nil:
		return 0
	case int64:
		if v <= 0 {
			return 0
		}
		if v > 1e12 {
			return v
		}
		return v * 1000
	case int:
		return Parse(int64(v))
	case float64:
		if v <= 0 {
			return 0
		}
		if v > 1e12 {
			return int64(v)
		}
		return int64(v * 1000)
	case string:
		if v == "" {
			return 0
		}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return ToUnixMs(t)
		}
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			return Parse(ts)
		}
		if ts, err := strconv.ParseFloat(v, 64); err == nil {
			return Parse(ts)
		}
		return 0
	case time.Time:
		return ToUnixMs(v)
	default:
		return 0
	}
}

// ParseTime is Parse returning a UTC time.Time; zero time when unparseable
func ParseTime(input any) time.Time {
	return FromUnixMs(Parse(input))
}
