package models

// Detail field keys shared across portal families. Keys are normalized
// label text with the trailing colon stripped.
const (
	DetailPublishedDate      = "Published Date"
	DetailClosingDate        = "Close Date"
	DetailOpenDate           = "Open Date"
	DetailType               = "Type"
	DetailDaysLeft           = "Days Left"
	DetailContact            = "Contact Information"
	DetailProjectDescription = "Project Description"

	// Marker recorded when a detail page has no recognizable published
	// date anywhere, instead of failing the page.
	DetailPublishedDateError = "published_date_parsing_error"
)

// DetailFields holds the key/value data scraped from a detail page.
// Values are always strings; a missing field is an empty string.
type DetailFields map[string]string

// Merge copies fields from other into d without overwriting keys that
// are already set. The receiver is returned for chaining on a nil map.
func (d DetailFields) Merge(other DetailFields) DetailFields {
	if d == nil {
		d = make(DetailFields, len(other))
	}
	for k, v := range other {
		if _, ok := d[k]; !ok {
			d[k] = v
		}
	}
	return d
}

// Get returns the value for key, or "" when absent.
func (d DetailFields) Get(key string) string {
	if d == nil {
		return ""
	}
	return d[key]
}

// RawRecord is one entry scraped from a portal's search-results page,
// optionally enriched from its detail page. Field values are free text
// exactly as the site rendered them; date parsing happens downstream.
type RawRecord struct {
	SiteID          string       `json:"site_id"`
	CityName        string       `json:"city_name"`
	Address         string       `json:"address"`
	FolderNo        string       `json:"folder_no"`
	Type            string       `json:"type"`
	ApplicationDate string       `json:"application_date"`
	Status          string       `json:"status"`
	Purpose         string       `json:"purpose"`
	DetailsLink     string       `json:"details_link,omitempty"`
	Details         DetailFields `json:"details,omitempty"`
}

// GoverningDate returns the free-text date that recency decisions are
// made against: the detail page's published date when present, then the
// detail open date, then the listing's application date.
func (r *RawRecord) GoverningDate() string {
	if v := r.Details.Get(DetailPublishedDate); v != "" {
		return v
	}
	if v := r.Details.Get(DetailOpenDate); v != "" {
		return v
	}
	return r.ApplicationDate
}

// Issue is one entry of the publication calendar returned by the
// ingestion API's latest-issue query.
type Issue struct {
	ID   int    `json:"id"`
	Date string `json:"date"` // YYYY-MM-DD
}
