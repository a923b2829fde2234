package models

import "testing"

func TestDetailFieldsMerge(t *testing.T) {
	base := DetailFields{"Type": "ITT", "Close Date": "Jul 3, 2025"}
	merged := base.Merge(DetailFields{"Type": "RFP", "Days Left": "15"})

	if merged.Get("Type") != "ITT" {
		t.Fatalf("existing keys must not be overwritten, got %q", merged.Get("Type"))
	}
	if merged.Get("Days Left") != "15" {
		t.Fatalf("new keys should be merged in, got %q", merged.Get("Days Left"))
	}
}

func TestDetailFieldsMerge_NilReceiver(t *testing.T) {
	var fields DetailFields
	fields = fields.Merge(DetailFields{"Status": "Open"})
	if fields.Get("Status") != "Open" {
		t.Fatalf("merge into nil map failed, got %q", fields.Get("Status"))
	}

	var empty DetailFields
	if empty.Get("anything") != "" {
		t.Fatalf("nil map lookup should yield empty string")
	}
}

func TestGoverningDate(t *testing.T) {
	rec := RawRecord{
		ApplicationDate: "Jun 10, 2025",
		Details: DetailFields{
			DetailPublishedDate: "Jun 17, 2025",
			DetailOpenDate:      "Jun 16, 2025",
		},
	}
	if got := rec.GoverningDate(); got != "Jun 17, 2025" {
		t.Fatalf("published date should govern, got %q", got)
	}

	delete(rec.Details, DetailPublishedDate)
	if got := rec.GoverningDate(); got != "Jun 16, 2025" {
		t.Fatalf("open date should govern next, got %q", got)
	}

	rec.Details = nil
	if got := rec.GoverningDate(); got != "Jun 10, 2025" {
		t.Fatalf("application date is the fallback, got %q", got)
	}
}
