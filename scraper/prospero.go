package scraper

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/ys-23412/sbcontest2/config"
	"github.com/ys-23412/sbcontest2/models"
	"github.com/ys-23412/sbcontest2/webforms"
)

// Prospero portal form field names. These are stable across the known
// Tempest deployments; the filter checkboxes are not and live in the
// site config.
const (
	prosViewReportField = "ctl00$FeaturedContent$btn_ViewReport"
	prosSearchField     = "ctl00$FeaturedContent$SearchButton"
	prosPageNumHidden   = "ctl00$FeaturedContent$PageNumberHidden"
	prosPageNumField    = "ctl00$FeaturedContent$PageNumber"
)

const defaultMaxPages = 6

// ProsperoHandler drives a Tempest "Prospero" development-tracker
// search: load the form, apply the status filter, then walk numbered
// result pages by bumping a hidden page-number field.
type ProsperoHandler struct {
	cfg     *config.SiteConfig
	fetcher Fetcher
	delay   time.Duration
}

func NewProsperoHandler(cfg *config.SiteConfig, fetcher Fetcher, delay time.Duration) *ProsperoHandler {
	return &ProsperoHandler{cfg: cfg, fetcher: fetcher, delay: delay}
}

func (h *ProsperoHandler) ID() string {
	return h.cfg.ID
}

func (h *ProsperoHandler) Scrape(ctx context.Context) ([]models.RawRecord, error) {
	searchURL := h.cfg.BaseURL + "/" + strings.TrimPrefix(h.cfg.StartPath, "/")

	doc, err := h.fetcher.Get(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	state, err := webforms.ExtractState(doc)
	if err != nil {
		return nil, err
	}

	// First postback renders the search form proper.
	payload := basePayload(state)
	payload[prosViewReportField] = "View Report"
	doc, err = h.fetcher.PostForm(ctx, searchURL, webforms.State(payload).Values())
	if err != nil {
		return nil, err
	}

	maxPages := h.cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	var records []models.RawRecord
	currentPage := 0
	for iteration := 0; iteration < maxPages; iteration++ {
		state, err = webforms.ExtractState(doc)
		if err != nil {
			// Partial-result tolerance: keep what was collected.
			log.Printf("%s: state extraction failed on page %d: %v", h.cfg.ID, currentPage+1, err)
			break
		}

		payload = basePayload(state)
		for field, value := range h.cfg.FilterPayload {
			payload[field] = value
		}
		payload[prosSearchField] = "Search"
		payload["__ASYNCPOST"] = "true"
		if currentPage > 0 {
			payload[prosPageNumHidden] = strconv.Itoa(currentPage)
			payload[prosPageNumField] = prosPageNumField
		}
		currentPage++

		doc, err = h.fetcher.PostForm(ctx, searchURL, webforms.State(payload).Values())
		if err != nil {
			log.Printf("%s: page %d fetch failed, returning %d records: %v", h.cfg.ID, currentPage, len(records), err)
			break
		}

		results := doc.Find("#searchResultsDiv")
		if results.Length() == 0 {
			break
		}
		containers := results.Find(".content-container")
		if containers.Length() == 0 {
			break
		}

		containers.Each(func(_ int, container *goquery.Selection) {
			records = append(records, h.extractRecord(container))
		})

		if err := sleep(ctx, h.delay); err != nil {
			return records, err
		}
	}

	if err := h.enrichContacts(ctx, records); err != nil {
		return records, err
	}
	return records, nil
}

func (h *ProsperoHandler) extractRecord(container *goquery.Selection) models.RawRecord {
	rec := models.RawRecord{
		SiteID:   h.cfg.ID,
		CityName: h.cfg.CityName,
		Address:  strings.TrimSpace(container.Find(".search_address").First().Text()),
		FolderNo: strings.TrimSpace(container.Find(".search_folderNo").First().Text()),
		Type:     strings.TrimSpace(container.Find(".search_type").First().Text()),
		Purpose:  strings.TrimSpace(container.Find(".search_purpose").First().Text()),
	}

	container.Find(".content-container-body div").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		text := div.Text()
		if strings.Contains(text, "Application Date:") {
			rec.ApplicationDate = strings.TrimSpace(strings.ReplaceAll(text, "Application Date:", ""))
			return false
		}
		return true
	})

	rec.Status = extractStatus(container.Find("span.heavy-font").First())

	container.Find("div[onclick]").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		if div.Find("button.details-btn").Length() == 0 {
			return true
		}
		onclick, _ := div.Attr("onclick")
		if link := parseNavigationSnippet(onclick); link != "" {
			rec.DetailsLink = h.resolveDetailLink(link)
			return false
		}
		return true
	})

	return rec
}

// extractStatus reads the status span's own text first. Portals nest
// an empty child span inside it, so the full text is only trusted when
// the direct text nodes are empty.
func extractStatus(span *goquery.Selection) string {
	if span.Length() == 0 {
		return ""
	}
	var direct strings.Builder
	for node := span.Nodes[0].FirstChild; node != nil; node = node.NextSibling {
		if node.Type == html.TextNode {
			direct.WriteString(node.Data)
		}
	}
	if text := strings.TrimSpace(direct.String()); text != "" {
		return text
	}
	return strings.TrimSpace(span.Text())
}

// parseNavigationSnippet pulls the relative path out of an inline
// "window.location = '<path>'" handler. Anything unrecognizable yields
// "".
func parseNavigationSnippet(onclick string) string {
	const marker = "window.location = '"
	start := strings.Index(onclick, marker)
	if start == -1 {
		return ""
	}
	rest := onclick[start+len(marker):]
	end := strings.LastIndex(rest, "'")
	if end <= 0 {
		return ""
	}
	return rest[:end]
}

func (h *ProsperoHandler) resolveDetailLink(link string) string {
	base := h.cfg.DetailBasePath
	if base == "" {
		base = h.cfg.BaseURL
	}
	link = strings.TrimPrefix(link, "../Prospero")
	link = strings.TrimPrefix(link, "..")
	return base + link
}

// enrichContacts visits each record's detail page and pulls the
// contact block. Fetches are strictly sequential with the configured
// delay; a failed page is logged and skipped.
func (h *ProsperoHandler) enrichContacts(ctx context.Context, records []models.RawRecord) error {
	for i := range records {
		if records[i].DetailsLink == "" {
			continue
		}
		if err := sleep(ctx, h.delay); err != nil {
			return err
		}

		doc, err := h.fetcher.Get(ctx, records[i].DetailsLink)
		if err != nil {
			log.Printf("%s: detail page for %s failed: %v", h.cfg.ID, records[i].FolderNo, err)
			continue
		}

		fields := make(models.DetailFields)
		if contact := LabelValue(doc, "Contact Information:"); contact != "" {
			fields[models.DetailContact] = contact
		}
		if len(fields) > 0 {
			records[i].Details = records[i].Details.Merge(fields)
		}
	}
	return nil
}

// basePayload seeds a postback payload with the page's fresh state
// fields. Stale tokens are rejected by the server, so the caller must
// re-extract state from every response before building the next
// payload.
func basePayload(state webforms.State) map[string]string {
	payload := state.Clone()
	if _, ok := payload[webforms.FieldEventTarget]; !ok {
		payload[webforms.FieldEventTarget] = ""
	}
	if _, ok := payload[webforms.FieldEventArgument]; !ok {
		payload[webforms.FieldEventArgument] = ""
	}
	return payload
}
