// Package dateutil normalizes the date strings municipal portals emit.
// Formats vary site to site ("August 5th, 2025", "2025-08-05", "Aug 5
// 2025 2:00 PM") so parsing goes through a permissive parser after a
// cleanup pass.
package dateutil

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Pacific is the timezone every recency decision is made in. The
// portals are all British Columbia municipalities.
var Pacific = mustLoadLocation("America/Vancouver")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

var ordinalRe = regexp.MustCompile(`(\d+)(?:st|nd|rd|th)\b`)

// StripOrdinals rewrites "5th" to "5" so ordinal day suffixes do not
// confuse the parser.
func StripOrdinals(s string) string {
	return ordinalRe.ReplaceAllString(s, "$1")
}

// Parse interprets a portal date string in any of the formats the
// sites are known to emit. Whitespace is collapsed and ordinal
// suffixes stripped before parsing.
func Parse(s string) (time.Time, error) {
	cleaned := StripOrdinals(strings.Join(strings.Fields(s), " "))
	return dateparse.ParseIn(cleaned, Pacific)
}

// Midnight truncates t to the start of its day in Pacific time.
func Midnight(t time.Time) time.Time {
	y, m, d := t.In(Pacific).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, Pacific)
}

// Today returns the start of the current day in Pacific time.
func Today(now time.Time) time.Time {
	return Midnight(now)
}
