package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts RFC3339 variants, naive ISO timestamps (read as UTC) and unix seconds.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		whole := int64(secs)
		return time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("parse time: unsupported format %q", value)
}

// SinceText renders a coarse relative age: "just now", "5m ago", "2h ago".
// Unparsable input is returned unchanged and empty input yields "unknown".
func SinceText(value string, now time.Time) string {
	if strings.TrimSpace(value) == "" {
		return "unknown"
	}
	t, err := ParseTimestamp(value)
	if err != nil {
		return value
	}
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff/time.Minute))
	default:
		return fmt.Sprintf("%dh ago", int(diff/time.Hour))
	}
}
