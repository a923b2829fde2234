// Package mapper turns raw scraped records into the canonical entries
// the publication API accepts. All rules are deterministic; the only
// external input is the project-type id supplied by the classifier.
package mapper

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ys-23412/sbcontest2/dateutil"
	"github.com/ys-23412/sbcontest2/models"
)

// Description length caps. The downstream schema column is short and
// tender descriptions leave room for a reference suffix.
const (
	permitDescriptionMax = 100
	tenderDescriptionMax = 95
)

// AddressFallback is used when nothing address-like can be resolved
// from the record.
const AddressFallback = "Various Locations"

// Params carries the per-run constants every mapped entry shares.
type Params struct {
	IssueID         int
	CityName        string
	RegionName      string
	AgentID         string
	UserID          string
	ComponentID     int
	TenderAuthority string
	HideTinyURL     bool
	Now             time.Time
}

var tenderStages = []struct {
	key   string
	stage string
}{
	{"INVITATION TO TENDER", "Tender Call"},
	{"REQUEST FOR STANDING OFFER", "Request for Proposals"},
	{"REQUEST FOR PROPOSAL", "Request for Proposals"},
	{"REQUEST FOR QUOTATION", "Request for Quotations"},
	{"NOTICE OF INTENT", "Notice of Intent"},
	{"ITT", "Tender Call"},
	{"NRFP", "Request for Proposals"},
	{"RFSO", "Request for Proposals"},
	{"RFP", "Request for Proposals"},
	{"RFQ", "Request for Quotations"},
	{"RFT", "Tender Call"},
	{"NOI", "Notice of Intent"},
}

// TenderStage maps a raw tender-type string to the standard stage
// vocabulary. Portals spell types as abbreviations or as full phrases,
// so both forms are keyed. Unrecognized input passes through
// unchanged. Full phrases are tried first, then longer abbreviations,
// so "NRFP" never matches as "RFP".
func TenderStage(raw string) string {
	upper := strings.ToUpper(raw)
	for _, m := range tenderStages {
		if strings.Contains(upper, m.key) {
			return m.stage
		}
	}
	return raw
}

// FormatClosing reformats a free-text closing date as
// "M/D/YYYY - H AM/PM" without zero padding. Unparseable input passes
// through unchanged.
func FormatClosing(raw string) (string, bool) {
	t, err := dateutil.Parse(raw)
	if err != nil {
		return raw, false
	}
	return t.Format("1/2/2006 - 3 PM"), true
}

// ReviewDate is one calendar month after the closing date, or one
// month from now when the closing date is unknown.
func ReviewDate(closing time.Time, ok bool, now time.Time) string {
	base := now
	if ok {
		base = closing
	}
	return base.AddDate(0, 1, 0).Format("2006-01-02")
}

// Portals sometimes concatenate street addresses with no separator,
// e.g. "2612 Richmond Rd2616 Richmond Rd". A letter immediately
// followed by a digit marks each boundary.
var addressBoundaryRe = regexp.MustCompile(`([A-Za-z])(\d)`)

// SplitAddresses resolves a possibly-concatenated address field into a
// primary address and, when more than one address was present, a
// joined location-detail string.
func SplitAddresses(raw string) (primary, locationDetail string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return AddressFallback, ""
	}
	split := addressBoundaryRe.ReplaceAllString(trimmed, "$1\n$2")
	parts := strings.Split(split, "\n")
	if len(parts) == 1 {
		return trimmed, ""
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts[len(parts)-1], strings.Join(parts, ", ")
}

var companySuffixRe = regexp.MustCompile(`(?i)\b(?:LTD|INC|LLC|CORPORATION|CORP|PLC|GMBH|CO)\b`)

// DetectCompany returns the leading portion of text up to and
// including a company-entity suffix, or "" when the text does not look
// like a company name.
func DetectCompany(text string) string {
	loc := companySuffixRe.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	return text[:loc[1]]
}

// FormatEnquiries reformats a raw contact blob for the enquiries
// field.
func FormatEnquiries(text string) string {
	out := strings.ReplaceAll(text, "Telephone", "Ph")
	out = strings.ReplaceAll(out, "Email:", "")
	return strings.TrimSpace(out)
}

// Truncate caps s at max characters and doubles single quotes so the
// value survives downstream SQL-literal handling. The cap counts
// runes, never splitting a multi-byte character.
func Truncate(s string, max int) string {
	if runes := []rune(s); len(runes) > max {
		s = string(runes[:max])
	}
	return strings.ReplaceAll(s, "'", "''")
}

// InternalNote stamps an entry with the run date and the agent that
// produced it.
func InternalNote(agentID string, now time.Time) string {
	return fmt.Sprintf("Added %s by %s", now.Format("2006-01-02"), agentID)
}

// CoerceBool accepts either a native bool or a "true"/"false" string,
// matching the loose typing of the run parameters file. Anything else
// is false.
func CoerceBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(strings.TrimSpace(b), "true")
	default:
		return false
	}
}

// entryDate normalizes a raw record date to YYYY-MM-DD, passing the
// original text through when it cannot be parsed.
func entryDate(raw string) string {
	t, err := dateutil.Parse(raw)
	if err != nil {
		return raw
	}
	return t.Format("2006-01-02")
}

// MapPermit maps one building-permit record.
func MapPermit(rec *models.RawRecord, projectType int, p Params) (models.MappedEntry, error) {
	if rec.FolderNo == "" {
		return models.MappedEntry{}, fmt.Errorf("mapper: permit record has no folder number")
	}

	city := rec.CityName
	if city == "" {
		city = p.CityName
	}
	primary, detail := SplitAddresses(rec.Address)

	body := models.EntryBody{
		DocumentsLink:  rec.DetailsLink,
		Stage:          rec.Type,
		LocationDetail: detail,
		InternalNote:   InternalNote(p.AgentID, p.Now),
		HideTinyURL:    p.HideTinyURL,
	}
	if contact := rec.Details.Get(models.DetailContact); contact != "" {
		if company := DetectCompany(contact); company != "" {
			body.Contractor = company
		} else {
			body.Enquiries = FormatEnquiries(contact)
		}
	}

	return models.MappedEntry{
		IssueID:          p.IssueID,
		CityName:         city,
		Date:             entryDate(rec.GoverningDate()),
		Address:          primary,
		Description:      Truncate(rec.Purpose, permitDescriptionMax),
		Permit:           rec.FolderNo,
		Component:        p.ComponentID,
		Type:             projectType,
		ProjectType:      projectType,
		Region:           city,
		Body:             body,
		IsBuildingPermit: false,
		UserID:           p.UserID,
	}, nil
}

// MapTender maps one tender record. The record's Purpose field carries
// the tender title and FolderNo its reference number.
func MapTender(rec *models.RawRecord, projectType int, p Params) (models.MappedEntry, error) {
	if rec.FolderNo == "" {
		return models.MappedEntry{}, fmt.Errorf("mapper: tender record has no reference number")
	}

	city := rec.CityName
	if city == "" {
		city = p.CityName
	}

	body := models.EntryBody{
		Project:       strings.Replace(rec.Purpose, " - ", " &ndash; ", 1),
		DocumentsLink: rec.DetailsLink,
		Sector:        "Public",
		Reference:     rec.FolderNo,
		Authority:     p.TenderAuthority,
		Stage:         TenderStage(rec.Details.Get(models.DetailType)),
		InternalNote:  InternalNote(p.AgentID, p.Now),
		HideTinyURL:   p.HideTinyURL,
	}
	if body.Stage == "" {
		body.Stage = TenderStage(rec.Type)
	}
	if contact := rec.Details.Get(models.DetailContact); contact != "" {
		if company := DetectCompany(contact); company != "" {
			body.Contractor = company
		} else {
			body.Enquiries = FormatEnquiries(contact)
		}
	}

	// The detail-page description is already word-capped by the
	// enricher, so only quote escaping applies to it. The listing
	// title fallback gets the character cap.
	description := Truncate(rec.Purpose, tenderDescriptionMax)
	if d := rec.Details.Get(models.DetailProjectDescription); d != "" {
		description = strings.ReplaceAll(d, "'", "''")
	}

	entry := models.MappedEntry{
		IssueID:          p.IssueID,
		CityName:         city,
		Date:             entryDate(rec.GoverningDate()),
		Address:          AddressFallback,
		Description:      description,
		Permit:           rec.FolderNo,
		Component:        p.ComponentID,
		Type:             projectType,
		ProjectType:      projectType,
		Region:           city,
		Body:             body,
		IsBuildingPermit: false,
		UserID:           p.UserID,
	}
	if rec.Address != "" {
		entry.Address, entry.Body.LocationDetail = SplitAddresses(rec.Address)
	}

	if rawClosing := rec.Details.Get(models.DetailClosingDate); rawClosing != "" {
		formatted, ok := FormatClosing(rawClosing)
		entry.Body.Closing = formatted
		if ok {
			closing, _ := dateutil.Parse(rawClosing)
			entry.ReviewDate = ReviewDate(closing, true, p.Now)
			entry.ProjectStepID = 1001
		} else {
			entry.ReviewDate = ReviewDate(time.Time{}, false, p.Now)
		}
	} else {
		entry.ReviewDate = ReviewDate(time.Time{}, false, p.Now)
	}

	return entry, nil
}
