// Package clockid holds the small clock and identity helpers shared by the
// quota gate and the conversation layer: quota days are calendar dates in one
// fixed zone, and handles/symbols are compared in normalized form only.
package clockid

import (
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// DayKey formats t as a calendar date in loc. Two instants share a quota day
// iff their DayKeys are equal.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dayLayout)
}

// MonthKey formats t as "2006-01" in loc, the monthly counter boundary.
func MonthKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01")
}

// NormalizeID canonicalizes a user id or handle for allow-list comparison:
// trimmed, leading "@" stripped, lowercased.
func NormalizeID(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "@")
	return strings.ToLower(s)
}

// NormalizeSymbol uppercases a ticker and strips the separators users type
// ("btc/usdt", "eur-usd").
func NormalizeSymbol(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(s, " ", "")
}
