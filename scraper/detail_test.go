package scraper

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/ys-23412/sbcontest2/models"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func docFixture(t *testing.T, name string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(loadFixture(t, name)))
	if err != nil {
		t.Fatalf("failed to parse fixture %s: %v", name, err)
	}
	return doc
}

func docString(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("failed to parse html: %v", err)
	}
	return doc
}

func TestLabelValue_SiblingDiv(t *testing.T) {
	doc := docFixture(t, "bonfire_detail.html")
	if got := LabelValue(doc, "Type:"); got != "ITT - Invitation to Tender" {
		t.Fatalf("unexpected type %q", got)
	}
}

func TestLabelValue_ParentText(t *testing.T) {
	doc := docFixture(t, "bonfire_detail.html")
	if got := LabelValue(doc, "Open Date:"); got != "Jun 17, 2025 9:00 AM PDT" {
		t.Fatalf("unexpected open date %q", got)
	}
	if got := LabelValue(doc, "Days Left:"); got != "15" {
		t.Fatalf("unexpected days left %q", got)
	}
}

func TestLabelValue_NextSibling(t *testing.T) {
	doc := docFixture(t, "bonfire_detail.html")
	if got := LabelValue(doc, "Contact Information:"); got != "Knappett Projects Inc" {
		t.Fatalf("unexpected contact %q", got)
	}
}

func TestLabelValue_Missing(t *testing.T) {
	doc := docFixture(t, "bonfire_detail.html")
	if got := LabelValue(doc, "Budget:"); got != "" {
		t.Fatalf("missing label should yield empty, got %q", got)
	}
}

func TestParseKeyValueTable_HeaderValueRows(t *testing.T) {
	doc := docFixture(t, "bidtenders_detail.html")
	fields := ParseKeyValueTable(doc.Find("table").First())

	if got := fields.Get("Bid Number"); got != "2025-12" {
		t.Fatalf("unexpected bid number %q", got)
	}
	if got := fields.Get("Bid Closing Date"); got != "Thu Jun 26, 2025 2:00:59 PM (PDT)" {
		t.Fatalf("unexpected closing date %q", got)
	}
	if got := fields.Get("Duration in months"); got != "4" {
		t.Fatalf("unexpected duration %q", got)
	}
}

func TestParseKeyValueTable_ColonCells(t *testing.T) {
	doc := docString(t, `<table>
		<tr><td>Status: Open</td><td>Ref: 2025-041</td></tr>
		<tr><td>Unlabeled</td></tr>
	</table>`)
	fields := ParseKeyValueTable(doc.Find("table").First())

	if got := fields.Get("Status"); got != "Open" {
		t.Fatalf("unexpected status %q", got)
	}
	if got := fields.Get("Ref"); got != "2025-041" {
		t.Fatalf("unexpected ref %q", got)
	}
	if _, ok := fields["Unlabeled"]; !ok {
		t.Fatalf("cell without a colon should keep an empty entry")
	}
}

func TestParseTableByHeaders(t *testing.T) {
	doc := docString(t, `<table>
		<thead><tr><th>Name</th><th>Date</th></tr></thead>
		<tbody>
			<tr><td>Addendum 1</td><td>Jun 19, 2025</td><td>extra</td></tr>
		</tbody>
	</table>`)
	rows := ParseTableByHeaders(doc.Find("table").First())

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Get("Name") != "Addendum 1" {
		t.Fatalf("unexpected name %q", rows[0].Get("Name"))
	}
	if rows[0].Get("col_2") != "extra" {
		t.Fatalf("cell past the headers should key as col_2, got %q", rows[0].Get("col_2"))
	}
}

func TestTruncateWords(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("word ", 45))
	got := TruncateWords(long, 30)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncated text should end with ellipsis, got %q", got)
	}
	if n := len(strings.Fields(got)); n != 30 {
		t.Fatalf("expected 30 words, got %d", n)
	}

	short := "replace hot  water\ttank"
	if got := TruncateWords(short, 30); got != short {
		t.Fatalf("short text should pass through unmodified, got %q", got)
	}
}

func TestProjectDescriptionFollowUp(t *testing.T) {
	doc := docFixture(t, "bonfire_detail.html")
	got := ProjectDescriptionFollowUp(doc)
	if !strings.HasPrefix(got, "The City of Victoria invites tenders") {
		t.Fatalf("unexpected description %q", got)
	}
	if !strings.Contains(got, "air handling units") {
		t.Fatalf("follow-up paragraphs should be joined, got %q", got)
	}
}

func TestParseDocumentDate(t *testing.T) {
	doc := docFixture(t, "bidtenders_detail.html")
	fields := ParseDocumentDate(doc)
	if got := fields.Get(models.DetailPublishedDate); got != "Thursday June 19, 2025 10:15 AM" {
		t.Fatalf("unexpected published date %q", got)
	}
}

func TestParseDocumentDate_NoPanel(t *testing.T) {
	doc := docString(t, `<html><body><p>nothing here</p></body></html>`)
	fields := ParseDocumentDate(doc)
	if got := fields.Get(models.DetailPublishedDateError); got != "Documents panel not found" {
		t.Fatalf("unexpected marker %q", got)
	}
}

func TestParseDocumentDate_NoDate(t *testing.T) {
	doc := docString(t, `<html><body>
		<div class="x-panel"><span>Documents</span><div>Drawings Package</div></div>
	</body></html>`)
	fields := ParseDocumentDate(doc)
	if got := fields.Get(models.DetailPublishedDateError); got != "Date not found in Documents panel" {
		t.Fatalf("unexpected marker %q", got)
	}
}
