package database

import (
	"database/sql"
	"fmt"
	"time"
)

// TimeLayout is the SQLite text encoding for timestamps. It is fixed width
// and always UTC so that lexical comparison in SQL matches time order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime encodes t for a SQLite TEXT column.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// FormatNullTime encodes an optional time, returning nil for SQL NULL.
func FormatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return FormatTime(*t)
}

// ParseTime decodes a SQLite TEXT timestamp written by FormatTime.
// RFC 3339 values inserted by hand are accepted too.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// ParseNullTime decodes an optional SQLite TEXT timestamp.
func ParseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := ParseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
