package core

import (
	"strings"
	"time"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// NowFunc returns the current time. Tests may replace it to freeze the clock.
var NowFunc = func() time.Time { return time.Now().UTC() }

func StringPtr(s string) *string { return &s }
