// Package sqlite provides SQLite implementations of repository interfaces.
package sqlite

import (
	"fmt"
	"time"
)

// timeFormat is the canonical timestamp layout used for all writes.
const timeFormat = time.RFC3339Nano

// parseTime parses a stored timestamp, accepting the canonical layout plus
// the formats SQLite's CURRENT_TIMESTAMP default produces.
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp: %q", s)
}

// formatTime renders a timestamp in the canonical layout, always UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// boolToInt converts a boolean to an integer (0 or 1) for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
