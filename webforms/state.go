// Package webforms extracts the hidden state fields an ASP.NET WebForms
// page requires on every postback. The extractor is a pure parse: it
// never fetches and never mutates the document.
package webforms

import (
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

const (
	FieldViewState          = "__VIEWSTATE"
	FieldViewStateGenerator = "__VIEWSTATEGENERATOR"
	FieldEventValidation    = "__EVENTVALIDATION"
	FieldEventTarget        = "__EVENTTARGET"
	FieldEventArgument      = "__EVENTARGUMENT"
	FieldViewStateEncrypted = "__VIEWSTATEENCRYPTED"
)

// MissingStateError reports a page that lacks a hidden field the next
// postback cannot be replayed without. It usually means the portal
// changed markup or served an error page.
type MissingStateError struct {
	Field string
}

func (e *MissingStateError) Error() string {
	return fmt.Sprintf("webforms: required state field %s not found", e.Field)
}

// State maps hidden input names to their values for one page.
type State map[string]string

// ExtractState collects every named hidden input on the page. It fails
// with *MissingStateError when the view-state or event-validation blob
// is absent; all other fields are optional.
func ExtractState(doc *goquery.Document) (State, error) {
	state := make(State)
	doc.Find("input[type='hidden']").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		state[name], _ = s.Attr("value")
	})

	for _, required := range []string{FieldViewState, FieldEventValidation} {
		if state[required] == "" {
			return nil, &MissingStateError{Field: required}
		}
	}
	return state, nil
}

// ExtractInputs collects every named input inside sel regardless of
// type, the way a browser would serialize the form. Submit buttons keep
// their value attribute; the caller overrides the one it "clicks".
func ExtractInputs(sel *goquery.Selection) map[string]string {
	inputs := make(map[string]string)
	sel.Find("input").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		inputs[name], _ = s.Attr("value")
	})
	return inputs
}

// Values converts the state to url.Values for a POST body.
func (s State) Values() url.Values {
	v := make(url.Values, len(s))
	for k, val := range s {
		v.Set(k, val)
	}
	return v
}

// Clone returns a copy the caller may overlay payload fields onto.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
