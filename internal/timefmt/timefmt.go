// Package timefmt converts epoch millis to the wire and display formats used by the map.
package timefmt

import (
	"fmt"
	"strconv"
	"time"
)

// layout produced by the browser's Date.prototype.toISOString
const isoLayout = "2006-01-02T15:04:05.000Z"

// ISO formats epoch millis as a UTC timestamp with millisecond precision.
func ISO(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(isoLayout)
}

// ParseMillis accepts RFC 3339 timestamps with or without fractional seconds.
func ParseMillis(s string) (int64, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UnixMilli(), nil
}

func offsetHours(t time.Time) (string, float64) {
	_, secs := t.Zone()
	sign := "+"
	if secs < 0 {
		sign = "-"
		secs = -secs
	}
	return sign, float64(secs) / 3600
}

// FormatUTCOffset renders the zone offset of t as "UTC" or "+2h UTC".
func FormatUTCOffset(t time.Time) string {
	sign, h := offsetHours(t)
	if h == 0 {
		return "UTC"
	}
	return sign + strconv.FormatFloat(h, 'f', -1, 64) + "h UTC"
}

// FormatLocalOffset renders the zone offset for local-time contexts.
func FormatLocalOffset(t time.Time) string {
	sign, h := offsetHours(t)
	if h == 0 {
		return "(local time)"
	}
	return "(" + sign + strconv.FormatFloat(h, 'f', -1, 64) + "h local)"
}

// FormatTimeDisplay renders epoch millis in loc, e.g. "Jan 2, 15:04 +2h UTC".
func FormatTimeDisplay(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	t := time.UnixMilli(ms).In(loc)
	return t.Format("Jan 2, 15:04") + " " + FormatUTCOffset(t)
}

// FormatLastUpdated renders the age of a data refresh relative to now.
func FormatLastUpdated(updated, now time.Time) string {
	diff := now.Sub(updated)
	hours := int(diff / time.Hour)
	days := hours / 24

	switch {
	case days > 0:
		return plural(days, "day") + " ago"
	case hours > 0:
		return plural(hours, "hour") + " ago"
	default:
		return "Less than 1 hour ago"
	}
}

func plural(n int, unit string) string {
	if n > 1 {
		return strconv.Itoa(n) + " " + unit + "s"
	}
	return strconv.Itoa(n) + " " + unit
}
