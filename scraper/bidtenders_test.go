package scraper

import (
	"testing"

	"github.com/ys-23412/sbcontest2/config"
	"github.com/ys-23412/sbcontest2/models"
)

func bidsTendersTestHandler() *BidsTendersHandler {
	return &BidsTendersHandler{cfg: &config.SiteConfig{
		ID:       "bids_campbellriver",
		CityName: "Campbell River",
		BaseURL:  "https://campbellriver.bidsandtenders.ca",
	}}
}

func TestBidsTendersParsePairedRows(t *testing.T) {
	h := bidsTendersTestHandler()
	doc := docFixture(t, "bidtenders_list.html")

	records := h.parsePairedRows(doc.Find("table").First())
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.FolderNo != "2025-12" {
		t.Fatalf("unexpected bid number %q", first.FolderNo)
	}
	if first.Purpose != "Water Main Replacement - Phase 2" {
		t.Fatalf("unexpected bid name %q", first.Purpose)
	}
	if first.Type != "Tender" {
		t.Fatalf("unexpected bid type %q", first.Type)
	}
	if first.Status != "Open" {
		t.Fatalf("unexpected status %q", first.Status)
	}
	if got := first.Details.Get(models.DetailClosingDate); got != "Thu Jun 26, 2025 2:00:59 PM (PDT)" {
		t.Fatalf("unexpected closing date %q", got)
	}
	if first.DetailsLink != "https://campbellriver.bidsandtenders.ca/Module/Tenders/en/Tender/Detail/abc123" {
		t.Fatalf("unexpected details link %q", first.DetailsLink)
	}
	if got := first.Details.Get("Documents URL"); got != "https://campbellriver.bidsandtenders.ca/Module/Tenders/en/Documents/abc123" {
		t.Fatalf("unexpected documents link %q", got)
	}
	if got := first.Details.Get("Plan Takers URL"); got != "https://campbellriver.bidsandtenders.ca/Module/Tenders/en/PlanTakers/abc123" {
		t.Fatalf("unexpected plan takers link %q", got)
	}

	second := records[1]
	if second.FolderNo != "RFP-2025-07" {
		t.Fatalf("mismatched filler rows should be skipped, got record %q", second.FolderNo)
	}
	if second.DetailsLink != "https://nanaimo.bidsandtenders.ca/Module/Tenders/en/Tender/Detail/def456" {
		t.Fatalf("absolute href should pass through, got %q", second.DetailsLink)
	}
	if got := second.Details.Get("Documents URL"); got != "" {
		t.Fatalf("record without a documents anchor should have none, got %q", got)
	}
}

func TestBidsTendersParseHeaderCells(t *testing.T) {
	doc := docFixture(t, "bidtenders_list.html")
	headers := parseHeaderCells(doc.Find("table").First())

	want := []string{"Bid Number", "Bid Name", "Bid Type", "Bid Status", "Bid Closing Date"}
	if len(headers) != len(want) {
		t.Fatalf("expected %d headers, got %d: %v", len(want), len(headers), headers)
	}
	for i := range want {
		if headers[i] != want[i] {
			t.Fatalf("header %d: got %q, want %q", i, headers[i], want[i])
		}
	}
}

func TestBidsTendersParsePairedRows_NoHeader(t *testing.T) {
	h := bidsTendersTestHandler()
	doc := docString(t, `<table><tbody><tr><td>2025-12</td></tr></tbody></table>`)

	if records := h.parsePairedRows(doc.Find("table").First()); records != nil {
		t.Fatalf("table without headers should yield no records, got %d", len(records))
	}
}

func TestBidsTendersResolveURL(t *testing.T) {
	h := bidsTendersTestHandler()

	if got := h.resolveURL("/Module/Tenders/en/Tender/Detail/abc123"); got != "https://campbellriver.bidsandtenders.ca/Module/Tenders/en/Tender/Detail/abc123" {
		t.Fatalf("unexpected resolved url %q", got)
	}
	if got := h.resolveURL("https://other.example.ca/x"); got != "https://other.example.ca/x" {
		t.Fatalf("absolute url should pass through, got %q", got)
	}
}

func TestBidsTendersParseDetail(t *testing.T) {
	h := bidsTendersTestHandler()
	doc := docFixture(t, "bidtenders_detail.html")

	fields := h.parseDetail(doc)
	if got := fields.Get("Bid Number"); got != "2025-12" {
		t.Fatalf("unexpected bid number %q", got)
	}
	if got := fields.Get(models.DetailPublishedDate); got != "Thursday June 19, 2025 10:15 AM" {
		t.Fatalf("missing published date fallback, got %q", got)
	}
}
