// Package repositories implements typed CRUD over the storage engine for
// each aggregate in the data model (spec §4.3).
package repositories

import "time"

// timeLayout is the ISO-like UTC layout used for every persisted timestamp
// (spec §4.3 "Time serialization"). Microsecond precision is preserved only
// in latency/responseTime integer columns, never in wall-clock timestamps.
const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
