package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/ys-23412/sbcontest2/models"
)

var (
	streetReplacements = map[string]string{
		"street":    "st",
		"avenue":    "ave",
		"drive":     "dr",
		"road":      "rd",
		"boulevard": "blvd",
		"lane":      "ln",
		"court":     "ct",
		"place":     "pl",
		"circle":    "cir",
		"crescent":  "cres",
		"terrace":   "ter",
		"highway":   "hwy",
		"parkway":   "pkwy",
		"square":    "sq",
		"north":     "n",
		"south":     "s",
		"east":      "e",
		"west":      "w",
	}
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)
)

// Fingerprint identifies one scraped record. Postback grids can
// re-serve a row on a later page when the underlying result set shifts
// mid-walk, so the pipeline dedupes on this before filtering.
func Fingerprint(rec *models.RawRecord) string {
	input := fmt.Sprintf("%s|%s|%s|%s",
		rec.SiteID,
		strings.ToLower(strings.TrimSpace(rec.FolderNo)),
		NormalizeAddress(rec.Address),
		strings.ToLower(strings.TrimSpace(rec.Type)),
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeAddress lowercases, strips punctuation and collapses the
// common street-suffix spellings so "Richmond Road" and "Richmond Rd"
// fingerprint identically.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")
	fields := strings.Fields(addr)
	for i, f := range fields {
		if abbrev, ok := streetReplacements[f]; ok {
			fields[i] = abbrev
		}
	}
	addr = strings.Join(fields, " ")
	return strings.TrimSpace(multiSpaceRegex.ReplaceAllString(addr, " "))
}
