package scraper

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ys-23412/sbcontest2/models"
)

// LabelValue finds a bold label such as "Type:" on a detail page and
// returns the value text that follows it. Portals place the value in a
// sibling container, in the label's parent text, or in the next
// sibling node; all three are tried in order. A missing label yields
// "".
func LabelValue(doc *goquery.Document, label string) string {
	label = strings.TrimSpace(label)

	var found *goquery.Selection
	doc.Find("b").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.HasPrefix(strings.TrimSpace(s.Text()), label) {
			found = s
			return false
		}
		return true
	})
	if found == nil {
		return ""
	}

	if div := found.NextFiltered("div"); div.Length() > 0 {
		if text := strings.TrimSpace(div.Text()); text != "" {
			return text
		}
	}

	if parent := found.Parent(); parent.Length() > 0 {
		parentText := strings.TrimSpace(parent.Text())
		labelText := strings.TrimSpace(found.Text())
		if rest := strings.TrimSpace(strings.TrimPrefix(parentText, labelText)); rest != "" && rest != parentText {
			return rest
		}
		if rest := strings.TrimSpace(strings.TrimPrefix(parentText, label)); rest != "" && rest != parentText {
			return rest
		}
	}

	if next := found.Next(); next.Length() > 0 {
		if text := strings.TrimSpace(next.Text()); text != "" {
			return text
		}
	}
	return ""
}

// ParseKeyValueTable reads a two-column detail table where each cell
// holds "Key: Value" text, or a th/td header/value pair per row.
func ParseKeyValueTable(table *goquery.Selection) models.DetailFields {
	fields := make(models.DetailFields)

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		header := row.Find("th").First()
		value := row.Find("td").First()
		if header.Length() > 0 && value.Length() > 0 {
			key := strings.TrimSuffix(strings.TrimSpace(header.Text()), ":")
			if key != "" {
				fields[key] = squashSpace(value.Text())
			}
			return
		}

		row.Find("td").Each(func(_ int, cell *goquery.Selection) {
			text := squashSpace(cell.Text())
			if text == "" {
				return
			}
			key, val, ok := strings.Cut(text, ":")
			if !ok {
				fields[strings.TrimSpace(text)] = ""
				return
			}
			key = strings.TrimSpace(key)
			if key != "" {
				fields[key] = strings.TrimSpace(val)
			}
		})
	})
	return fields
}

// ParseTableByHeaders zips tbody rows against thead labels
// positionally, falling back to col_N keys for cells past the header
// count.
func ParseTableByHeaders(table *goquery.Selection) []models.DetailFields {
	var headers []string
	table.Find("thead th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(th.Text()))
	})
	if len(headers) == 0 {
		return nil
	}

	var rows []models.DetailFields
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		row := make(models.DetailFields)
		tr.Find("td, th").Each(func(i int, cell *goquery.Selection) {
			key := fmt.Sprintf("col_%d", i)
			if i < len(headers) {
				key = headers[i]
			}
			row[key] = strings.TrimSpace(cell.Text())
		})
		rows = append(rows, row)
	})
	return rows
}

const descriptionWordLimit = 30

// ProjectDescriptionFollowUp collects the text of up to three sibling
// elements after a "Project Description:" label, skipping line breaks,
// and truncates the result to a 30-word summary.
func ProjectDescriptionFollowUp(doc *goquery.Document) string {
	var label *goquery.Selection
	doc.Find("div.sfitemFieldLbl, b").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.EqualFold(strings.TrimSpace(s.Text()), "project description:") {
			label = s
			return false
		}
		return true
	})
	if label == nil {
		return ""
	}

	var parts []string
	count := 0
	for sib := label.Next(); sib.Length() > 0 && count < 3; sib = sib.Next() {
		if goquery.NodeName(sib) == "br" {
			continue
		}
		if text := squashSpace(sib.Text()); text != "" {
			parts = append(parts, text)
		}
		count++
	}
	return TruncateWords(strings.Join(parts, " "), descriptionWordLimit)
}

// TruncateWords caps text at limit words, appending an ellipsis when
// anything was cut. Text within the limit is returned unmodified.
func TruncateWords(text string, limit int) string {
	words := strings.Fields(text)
	if len(words) <= limit {
		return text
	}
	return strings.Join(words[:limit], " ") + "..."
}

var longDateRe = regexp.MustCompile(`[A-Za-z]+ [A-Za-z]+ \d{1,2}, \d{4} \d{1,2}:\d{2} (?:AM|PM)`)

// ParseDocumentDate recovers a published date from the documents panel
// when the detail table carries none. It records an error marker
// instead of failing the page.
func ParseDocumentDate(doc *goquery.Document) models.DetailFields {
	panel := doc.Find("#dgDocuments").First()
	if panel.Length() == 0 {
		doc.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if strings.Contains(s.Text(), "Documents") {
				panel = s.Closest(".x-panel")
				return false
			}
			return true
		})
	}
	if panel == nil || panel.Length() == 0 {
		return models.DetailFields{models.DetailPublishedDateError: "Documents panel not found"}
	}

	text := squashSpace(panel.Text())
	if match := longDateRe.FindString(text); match != "" {
		return models.DetailFields{models.DetailPublishedDate: match}
	}
	return models.DetailFields{models.DetailPublishedDateError: "Date not found in Documents panel"}
}

var spaceRe = regexp.MustCompile(`\s+`)

func squashSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
