package domain

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are the ISO-8601 variants accepted by ParseTimestamp.
// Fractional seconds are accepted by every layout.
var timestampLayouts = []string{
	time.RFC3339,                // 2024-05-01T10:00:00Z, 2024-05-01T10:00:00+02:00
	"2006-01-02T15:04:05Z0700",  // 2024-05-01T10:00:00+0000 (Graph API)
	"2006-01-02T15:04:05Z07",    // 2024-05-01T10:00:00+00
	"2006-01-02 15:04:05Z07:00", // Postgres text output
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05Z07",
}

// naiveLayouts carry no offset and are read as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp formats seen in API payloads and in
// stored rows. A "Z" suffix and explicit offsets are honoured; a timestamp
// without offset information is assumed to be UTC. The result is in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrInvalidInput)
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: unrecognised timestamp %q", ErrInvalidInput, s)
}

// ParseOptionalTimestamp parses s and returns nil when s is empty or
// cannot be parsed. Used for optional values such as the watermark.
func ParseOptionalTimestamp(s string) *time.Time {
	t, err := ParseTimestamp(s)
	if err != nil {
		return nil
	}
	return &t
}
