package utils

import (
	"fmt"
	"time"
)

var fallbackLayouts = []string{"2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02"}

// ParseDateTime accepts RFC3339 or a few form-friendly layouts, the latter read in loc.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format %q, use RFC3339 or YYYY-MM-DD HH:MM", s)
}
