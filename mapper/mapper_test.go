package mapper

import (
	"strings"
	"testing"
	"time"

	"github.com/ys-23412/sbcontest2/models"
)

func TestTenderStage(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"ITT 25-041", "Tender Call"},
		{"NRFP-2025-01", "Request for Proposals"},
		{"RFP", "Request for Proposals"},
		{"rfso 2025", "Request for Proposals"},
		{"Request RFQ 12", "Request for Quotations"},
		{"RFT 7", "Tender Call"},
		{"NOI-3", "Notice of Intent"},
		{"Request for Proposal", "Request for Proposals"},
		{"Negotiated Request for Proposal", "Request for Proposals"},
		{"Request for Quotation", "Request for Quotations"},
		{"Invitation to Tender", "Tender Call"},
		{"Request for Standing Offer", "Request for Proposals"},
		{"Notice of Intent to Award", "Notice of Intent"},
		{"Expression of Interest", "Expression of Interest"},
	}
	for _, tc := range cases {
		if got := TenderStage(tc.raw); got != tc.want {
			t.Fatalf("TenderStage(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestFormatClosing(t *testing.T) {
	got, ok := FormatClosing("June 19, 2025 2:00 PM")
	if !ok {
		t.Fatalf("expected parseable closing date")
	}
	if got != "6/19/2025 - 2 PM" {
		t.Fatalf("unexpected formatted closing %q", got)
	}

	raw := "until further notice"
	got, ok = FormatClosing(raw)
	if ok {
		t.Fatalf("expected passthrough for unparseable input")
	}
	if got != raw {
		t.Fatalf("passthrough should return the input, got %q", got)
	}
}

func TestReviewDate(t *testing.T) {
	now := time.Date(2025, 6, 18, 10, 0, 0, 0, time.UTC)
	closing := time.Date(2025, 7, 3, 14, 0, 0, 0, time.UTC)

	if got := ReviewDate(closing, true, now); got != "2025-08-03" {
		t.Fatalf("expected one month past closing, got %s", got)
	}
	if got := ReviewDate(time.Time{}, false, now); got != "2025-07-18" {
		t.Fatalf("expected one month from now, got %s", got)
	}
}

func TestSplitAddresses(t *testing.T) {
	primary, detail := SplitAddresses("2612 Richmond Rd2616 Richmond Rd")
	if primary != "2616 Richmond Rd" {
		t.Fatalf("expected last address as primary, got %q", primary)
	}
	if detail != "2612 Richmond Rd, 2616 Richmond Rd" {
		t.Fatalf("unexpected location detail %q", detail)
	}

	primary, detail = SplitAddresses("1175 Douglas St")
	if primary != "1175 Douglas St" || detail != "" {
		t.Fatalf("single address should pass through, got %q / %q", primary, detail)
	}

	primary, detail = SplitAddresses("  ")
	if primary != AddressFallback || detail != "" {
		t.Fatalf("blank address should fall back, got %q / %q", primary, detail)
	}
}

func TestDetectCompany(t *testing.T) {
	if got := DetectCompany("Westurban Developments Ltd. per attached drawings"); got != "Westurban Developments Ltd" {
		t.Fatalf("unexpected company %q", got)
	}
	if got := DetectCompany("Acme Paving CORP"); got != "Acme Paving CORP" {
		t.Fatalf("unexpected company %q", got)
	}
	if got := DetectCompany("John Smith, Purchasing"); got != "" {
		t.Fatalf("expected no company match, got %q", got)
	}
}

func TestFormatEnquiries(t *testing.T) {
	got := FormatEnquiries("Jane Doe Telephone: 250-555-0101 Email: jane@example.ca")
	if strings.Contains(got, "Telephone") {
		t.Fatalf("Telephone should be shortened, got %q", got)
	}
	if !strings.Contains(got, "Ph: 250-555-0101") {
		t.Fatalf("expected Ph prefix, got %q", got)
	}
	if strings.Contains(got, "Email:") {
		t.Fatalf("Email label should be stripped, got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", 120)
	if got := Truncate(long, 100); len(got) != 100 {
		t.Fatalf("expected 100 chars, got %d", len(got))
	}
	if got := Truncate("it's a 6' fence", 100); got != "it''s a 6'' fence" {
		t.Fatalf("quotes should double, got %q", got)
	}

	accented := strings.Repeat("é", 10)
	if got := Truncate(accented, 5); got != strings.Repeat("é", 5) {
		t.Fatalf("cap should count runes, got %q", got)
	}
}

func TestCoerceBool(t *testing.T) {
	cases := []struct {
		in   any
		want bool
	}{
		{true, true},
		{false, false},
		{"true", true},
		{" TRUE ", true},
		{"false", false},
		{"yes", false},
		{nil, false},
		{1, false},
	}
	for _, tc := range cases {
		if got := CoerceBool(tc.in); got != tc.want {
			t.Fatalf("CoerceBool(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func testParams() Params {
	return Params{
		IssueID:         412,
		CityName:        "Victoria",
		RegionName:      "Victoria",
		AgentID:         "agent-7",
		UserID:          "42",
		ComponentID:     1291,
		TenderAuthority: "City of Victoria",
		Now:             time.Date(2025, 6, 18, 9, 0, 0, 0, time.UTC),
	}
}

func TestMapPermit(t *testing.T) {
	rec := models.RawRecord{
		SiteID:          "victoria",
		CityName:        "Victoria",
		Address:         "2612 Richmond Rd2616 Richmond Rd",
		FolderNo:        "REZ00123",
		Type:            "Rezoning",
		ApplicationDate: "2025-06-17",
		Purpose:         "Rezone to allow a 6 storey mixed-use building",
		DetailsLink:     "https://tender.victoria.ca/webapps/ourcity/Prospero/Details.aspx?folderNumber=REZ00123",
	}

	entry, err := MapPermit(&rec, 25, testParams())
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	if entry.Permit != "REZ00123" {
		t.Fatalf("unexpected permit %q", entry.Permit)
	}
	if entry.Date != "2025-06-17" {
		t.Fatalf("unexpected date %q", entry.Date)
	}
	if entry.Address != "2616 Richmond Rd" {
		t.Fatalf("unexpected address %q", entry.Address)
	}
	if entry.Body.LocationDetail != "2612 Richmond Rd, 2616 Richmond Rd" {
		t.Fatalf("unexpected location detail %q", entry.Body.LocationDetail)
	}
	if entry.Body.Stage != "Rezoning" {
		t.Fatalf("unexpected stage %q", entry.Body.Stage)
	}
	if entry.ProjectType != 25 || entry.Type != 25 {
		t.Fatalf("project type not propagated, got %d / %d", entry.ProjectType, entry.Type)
	}
	if entry.IssueID != 412 || entry.Component != 1291 {
		t.Fatalf("run params not applied: issue %d component %d", entry.IssueID, entry.Component)
	}
	if entry.Body.InternalNote != "Added 2025-06-18 by agent-7" {
		t.Fatalf("unexpected internal note %q", entry.Body.InternalNote)
	}
}

func TestMapPermit_NoFolderNo(t *testing.T) {
	rec := models.RawRecord{Address: "500 Fort St"}
	if _, err := MapPermit(&rec, 0, testParams()); err == nil {
		t.Fatalf("expected error for record without folder number")
	}
}

func TestMapPermit_ContactRouting(t *testing.T) {
	p := testParams()

	company := models.RawRecord{
		FolderNo: "BP001",
		Details:  models.DetailFields{models.DetailContact: "Knappett Projects Inc"},
	}
	entry, err := MapPermit(&company, 0, p)
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	if entry.Body.Contractor != "Knappett Projects Inc" {
		t.Fatalf("company contact should map to contractor, got %q", entry.Body.Contractor)
	}
	if entry.Body.Enquiries != "" {
		t.Fatalf("contractor record should not set enquiries")
	}

	person := models.RawRecord{
		FolderNo: "BP002",
		Details:  models.DetailFields{models.DetailContact: "Jane Doe Telephone: 250-555-0101"},
	}
	entry, err = MapPermit(&person, 0, p)
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	if entry.Body.Contractor != "" {
		t.Fatalf("personal contact should not set contractor")
	}
	if entry.Body.Enquiries != "Jane Doe Ph: 250-555-0101" {
		t.Fatalf("unexpected enquiries %q", entry.Body.Enquiries)
	}
}

func TestMapTender(t *testing.T) {
	rec := models.RawRecord{
		SiteID:      "bonfire_victoria",
		CityName:    "Victoria",
		FolderNo:    "2025-041",
		Purpose:     "Crystal Pool - Mechanical Upgrades",
		DetailsLink: "https://victoria.bonfirehub.ca/opportunities/12345",
		Details: models.DetailFields{
			models.DetailType:        "ITT",
			models.DetailClosingDate: "July 3, 2025 2:00 PM",
			models.DetailOpenDate:    "2025-06-17",
		},
	}

	entry, err := MapTender(&rec, 67, testParams())
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	if entry.Body.Project != "Crystal Pool &ndash; Mechanical Upgrades" {
		t.Fatalf("unexpected project %q", entry.Body.Project)
	}
	if entry.Body.Sector != "Public" {
		t.Fatalf("unexpected sector %q", entry.Body.Sector)
	}
	if entry.Body.Reference != "2025-041" {
		t.Fatalf("unexpected reference %q", entry.Body.Reference)
	}
	if entry.Body.Authority != "City of Victoria" {
		t.Fatalf("unexpected authority %q", entry.Body.Authority)
	}
	if entry.Body.Stage != "Tender Call" {
		t.Fatalf("unexpected stage %q", entry.Body.Stage)
	}
	if entry.Body.Closing != "7/3/2025 - 2 PM" {
		t.Fatalf("unexpected closing %q", entry.Body.Closing)
	}
	if entry.ProjectStepID != 1001 {
		t.Fatalf("parsed closing should set project step 1001, got %d", entry.ProjectStepID)
	}
	if entry.ReviewDate != "2025-08-03" {
		t.Fatalf("unexpected review date %q", entry.ReviewDate)
	}
	if entry.Address != AddressFallback {
		t.Fatalf("tender without address should fall back, got %q", entry.Address)
	}
	if entry.Date != "2025-06-17" {
		t.Fatalf("open date should govern the entry date, got %q", entry.Date)
	}
}

func TestMapTender_DetailDescriptionPreferred(t *testing.T) {
	rec := models.RawRecord{
		FolderNo: "RFP-2025-07",
		Purpose:  "Consulting Services",
		Details: models.DetailFields{
			models.DetailProjectDescription: "Supply and delivery of water treatment chemicals...",
		},
	}

	entry, err := MapTender(&rec, 0, testParams())
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	if entry.Description != "Supply and delivery of water treatment chemicals..." {
		t.Fatalf("detail description should win over the listing title, got %q", entry.Description)
	}
}

func TestMapTender_UnparseableClosing(t *testing.T) {
	rec := models.RawRecord{
		FolderNo: "RFP-9",
		Purpose:  "Janitorial Services",
		Details:  models.DetailFields{models.DetailClosingDate: "see addendum"},
	}

	entry, err := MapTender(&rec, 0, testParams())
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	if entry.Body.Closing != "see addendum" {
		t.Fatalf("unparseable closing should pass through, got %q", entry.Body.Closing)
	}
	if entry.ProjectStepID != 0 {
		t.Fatalf("unparseable closing must not set a project step, got %d", entry.ProjectStepID)
	}
	if entry.ReviewDate != "2025-07-18" {
		t.Fatalf("expected review one month from now, got %q", entry.ReviewDate)
	}
}

func TestMapTender_NoReference(t *testing.T) {
	rec := models.RawRecord{Purpose: "Unreferenced"}
	if _, err := MapTender(&rec, 0, testParams()); err == nil {
		t.Fatalf("expected error for record without reference number")
	}
}
