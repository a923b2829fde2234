package webforms

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func parseHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("failed to parse html: %v", err)
	}
	return doc
}

func TestExtractState_Basic(t *testing.T) {
	doc := parseHTML(t, `
		<form id="form1">
			<input type="hidden" name="__VIEWSTATE" value="dDwtMTA3NzI1" />
			<input type="hidden" name="__VIEWSTATEGENERATOR" value="CA0B0334" />
			<input type="hidden" name="__EVENTVALIDATION" value="/wEWAgL" />
			<input type="hidden" name="__EVENTTARGET" value="" />
			<input type="text" name="ctl00$txtSearch" value="ignored" />
		</form>`)

	state, err := ExtractState(doc)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if state[FieldViewState] != "dDwtMTA3NzI1" {
		t.Fatalf("unexpected view state %q", state[FieldViewState])
	}
	if state[FieldViewStateGenerator] != "CA0B0334" {
		t.Fatalf("unexpected generator %q", state[FieldViewStateGenerator])
	}
	if state[FieldEventValidation] != "/wEWAgL" {
		t.Fatalf("unexpected event validation %q", state[FieldEventValidation])
	}
	if _, ok := state["ctl00$txtSearch"]; ok {
		t.Fatalf("non-hidden input should not be collected")
	}
	if _, ok := state[FieldEventTarget]; !ok {
		t.Fatalf("empty optional hidden field should still be collected")
	}
}

func TestExtractState_MissingViewState(t *testing.T) {
	doc := parseHTML(t, `
		<form>
			<input type="hidden" name="__EVENTVALIDATION" value="/wEWAgL" />
		</form>`)

	_, err := ExtractState(doc)
	if err == nil {
		t.Fatalf("expected error for missing view state")
	}
	var missing *MissingStateError
	if !errors.As(err, &missing) {
		t.Fatalf("expected *MissingStateError, got %T", err)
	}
	if missing.Field != FieldViewState {
		t.Fatalf("expected missing field %s, got %s", FieldViewState, missing.Field)
	}
}

func TestExtractState_EmptyEventValidation(t *testing.T) {
	doc := parseHTML(t, `
		<form>
			<input type="hidden" name="__VIEWSTATE" value="dDwt" />
			<input type="hidden" name="__EVENTVALIDATION" value="" />
		</form>`)

	_, err := ExtractState(doc)
	var missing *MissingStateError
	if !errors.As(err, &missing) {
		t.Fatalf("expected *MissingStateError, got %v", err)
	}
	if missing.Field != FieldEventValidation {
		t.Fatalf("expected missing field %s, got %s", FieldEventValidation, missing.Field)
	}
}

func TestExtractInputs_AllTypes(t *testing.T) {
	doc := parseHTML(t, `
		<form id="form1">
			<input type="hidden" name="__VIEWSTATE" value="abc" />
			<input type="text" name="ctl00$txtFrom" value="2024-01-01" />
			<input type="submit" name="ctl00$btn_ViewReport" value="View Report" />
			<input type="checkbox" value="orphan" />
		</form>`)

	inputs := ExtractInputs(doc.Find("#form1"))
	if len(inputs) != 3 {
		t.Fatalf("expected 3 inputs, got %d: %v", len(inputs), inputs)
	}
	if inputs["ctl00$txtFrom"] != "2024-01-01" {
		t.Fatalf("unexpected text input value %q", inputs["ctl00$txtFrom"])
	}
	if inputs["ctl00$btn_ViewReport"] != "View Report" {
		t.Fatalf("submit button should keep its value, got %q", inputs["ctl00$btn_ViewReport"])
	}
}

func TestState_Values(t *testing.T) {
	state := State{FieldViewState: "abc", "ctl00$field": "x y"}
	v := state.Values()
	if v.Get(FieldViewState) != "abc" {
		t.Fatalf("unexpected value %q", v.Get(FieldViewState))
	}
	if got := v.Encode(); !strings.Contains(got, "ctl00%24field=x+y") {
		t.Fatalf("unexpected encoding %q", got)
	}
}

func TestState_CloneIsIndependent(t *testing.T) {
	state := State{FieldViewState: "abc"}
	clone := state.Clone()
	clone[FieldViewState] = "changed"
	clone["extra"] = "1"
	if state[FieldViewState] != "abc" {
		t.Fatalf("clone mutated original view state")
	}
	if _, ok := state["extra"]; ok {
		t.Fatalf("clone mutated original map")
	}
}
