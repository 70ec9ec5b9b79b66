package data

import (
	"strconv"
	"time"
)

const (
	// Unknown renders a value that could not be resolved.
	Unknown = "Unknown"
	// NotApplicable renders a value that does not exist for the unit's kind.
	NotApplicable = "N/A"

	TimeLayout = "2006-01-02 15:04:05 UTC"
)

// KB renders bytes as whole kilobytes, rounded up.
func KB(bytes *int64) string {
	if bytes == nil {
		return Unknown
	}
	b := *bytes
	if b <= 0 {
		return "0"
	}
	return strconv.FormatInt((b+1023)/1024, 10)
}

// MB renders bytes as megabytes with two decimals.
func MB(bytes *int64) string {
	if bytes == nil {
		return Unknown
	}
	return strconv.FormatFloat(float64(*bytes)/(1024*1024), 'f', 2, 64)
}

// GB renders bytes as gigabytes with three decimals.
func GB(bytes *int64) string {
	if bytes == nil {
		return Unknown
	}
	return strconv.FormatFloat(float64(*bytes)/(1024*1024*1024), 'f', 3, 64)
}

func Count(n *int) string {
	if n == nil {
		return Unknown
	}
	return strconv.Itoa(*n)
}

// Timestamp renders t in UTC as "2006-01-02 15:04:05 UTC".
func Timestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return Unknown
	}
	return t.UTC().Format(TimeLayout)
}

func Text(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}

// DaysSince renders the whole days between t and now.
func DaysSince(t *time.Time, now time.Time) string {
	if t == nil || t.IsZero() {
		return Unknown
	}
	d := now.Sub(*t)
	if d < 0 {
		d = 0
	}
	return strconv.Itoa(int(d.Hours() / 24))
}

func Bool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
