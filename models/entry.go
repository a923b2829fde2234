package models

// EntryBody carries the secondary fields of a mapped entry, nested
// under ys_body in the upload payload.
type EntryBody struct {
	Project        string `json:"ys_project,omitempty"`
	DocumentsLink  string `json:"ys_documents_drawings_link,omitempty"`
	Sector         string `json:"ys_sector,omitempty"`
	Reference      string `json:"ys_reference,omitempty"`
	Authority      string `json:"ys_tender_authority,omitempty"`
	Stage          string `json:"ys_stage,omitempty"`
	Enquiries      string `json:"ys_enquiries,omitempty"`
	Contractor     string `json:"ys_contractor,omitempty"`
	Closing        string `json:"ys_closing,omitempty"`
	LocationDetail string `json:"ys_location_detail,omitempty"`
	InternalNote   string `json:"ys_internal_note,omitempty"`
	HideTinyURL    bool   `json:"hide_tiny_url"`
}

// MappedEntry is the canonical outbound record handed to the ingestion
// API. It carries no back-reference to the RawRecord it came from.
type MappedEntry struct {
	IssueID          int       `json:"issue_id,omitempty"`
	CityName         string    `json:"city_name"`
	Date             string    `json:"ys_date"`
	Address          string    `json:"ys_address"`
	Description      string    `json:"ys_description"`
	Permit           string    `json:"ys_permit"`
	Component        int       `json:"ys_component"`
	Type             int       `json:"ys_type"`
	ProjectType      int       `json:"project_type"`
	Region           string    `json:"region"`
	Body             EntryBody `json:"ys_body"`
	ReviewDate       string    `json:"review_date,omitempty"`
	ProjectStepID    int       `json:"project_step_id,omitempty"`
	IsBuildingPermit bool      `json:"isBuildingPermit"`
	UserID           string    `json:"user_id"`
}
