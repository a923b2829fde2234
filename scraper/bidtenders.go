package scraper

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ys-23412/sbcontest2/config"
	"github.com/ys-23412/sbcontest2/models"
)

// BidsTendersHandler scrapes a bidsandtenders.ca listing. The grid
// renders two table rows per logical record: a fields row zipped
// against the header, then a links row carrying the Bid Details,
// Download Documents and Plan Takers anchors.
type BidsTendersHandler struct {
	cfg     *config.SiteConfig
	fetcher Fetcher
	delay   time.Duration
}

func NewBidsTendersHandler(cfg *config.SiteConfig, fetcher Fetcher, delay time.Duration) *BidsTendersHandler {
	return &BidsTendersHandler{cfg: cfg, fetcher: fetcher, delay: delay}
}

func (h *BidsTendersHandler) ID() string {
	return h.cfg.ID
}

func (h *BidsTendersHandler) Scrape(ctx context.Context) ([]models.RawRecord, error) {
	listURL := h.cfg.BaseURL + "/" + strings.TrimPrefix(h.cfg.StartPath, "/")

	doc, err := h.fetcher.Get(ctx, listURL)
	if err != nil {
		return nil, err
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		log.Printf("%s: tender table not found", h.cfg.ID)
		return nil, nil
	}

	records := h.parsePairedRows(table)

	for i := range records {
		if records[i].DetailsLink == "" {
			continue
		}
		if err := sleep(ctx, h.delay); err != nil {
			return records, err
		}

		detail, err := h.fetcher.Get(ctx, records[i].DetailsLink)
		if err != nil {
			log.Printf("%s: detail page for %s failed: %v", h.cfg.ID, records[i].FolderNo, err)
			continue
		}
		records[i].Details = records[i].Details.Merge(h.parseDetail(detail))
	}

	return records, nil
}

// parseHeaderCells prefers a th's inner div text; some deployments
// duplicate the label in the th itself for the fixed-header clone.
func parseHeaderCells(table *goquery.Selection) []string {
	var headers []string
	table.Find("thead tr").First().Find("th").Each(func(_ int, th *goquery.Selection) {
		if div := th.Find("div").First(); div.Length() > 0 {
			headers = append(headers, strings.TrimSpace(div.Text()))
			return
		}
		headers = append(headers, strings.TrimSpace(th.Text()))
	})
	return headers
}

func (h *BidsTendersHandler) parsePairedRows(table *goquery.Selection) []models.RawRecord {
	headers := parseHeaderCells(table)
	if len(headers) == 0 {
		log.Printf("%s: tender table has no header row", h.cfg.ID)
		return nil
	}

	rows := table.Find("tr")
	var records []models.RawRecord
	for i := 1; i+1 < rows.Length(); i += 2 {
		fieldsRow := rows.Eq(i)
		linksRow := rows.Eq(i + 1)

		cells := fieldsRow.Find("td")
		if cells.Length() != len(headers) {
			log.Printf("%s: skipping row pair, %d cells against %d headers", h.cfg.ID, cells.Length(), len(headers))
			continue
		}

		fields := make(models.DetailFields, len(headers))
		cells.Each(func(j int, cell *goquery.Selection) {
			fields[headers[j]] = squashSpace(cell.Text())
		})

		rec := models.RawRecord{
			SiteID:   h.cfg.ID,
			CityName: h.cfg.CityName,
			FolderNo: firstField(fields, "Bid Number", "Ref. #", "Reference", "Number"),
			Purpose:  firstField(fields, "Bid Name", "Project", "Title", "Name"),
			Type:     firstField(fields, "Bid Type", "Type"),
			Status:   firstField(fields, "Bid Status", "Status"),
			Details:  fields,
		}
		if closing := firstField(fields, "Bid Closing Date", "Close Date", "Closing Date"); closing != "" {
			rec.Details[models.DetailClosingDate] = closing
		}

		linksRow.Find("a").Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok || href == "" {
				return
			}
			absolute := h.resolveURL(href)
			text := strings.TrimSpace(a.Text())
			switch {
			case strings.Contains(text, "Bid Details"):
				rec.DetailsLink = absolute
			case strings.Contains(text, "Download Documents"):
				rec.Details["Documents URL"] = absolute
			case strings.Contains(text, "Plan Takers"):
				rec.Details["Plan Takers URL"] = absolute
			}
		})

		records = append(records, rec)
	}
	return records
}

func (h *BidsTendersHandler) resolveURL(href string) string {
	base, err := url.Parse(h.cfg.BaseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// parseDetail reads the th/td bid details table. When it carries no
// published date the documents panel is searched for a long-form date
// before recording a parse-error marker.
func (h *BidsTendersHandler) parseDetail(doc *goquery.Document) models.DetailFields {
	fields := make(models.DetailFields)
	if table := doc.Find("table").First(); table.Length() > 0 {
		fields = ParseKeyValueTable(table)
	}

	if fields.Get(models.DetailPublishedDate) == "" {
		fields = fields.Merge(ParseDocumentDate(doc))
	}
	return fields
}
