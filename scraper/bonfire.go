package scraper

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ys-23412/sbcontest2/config"
	"github.com/ys-23412/sbcontest2/models"
)

// BonfireHandler scrapes a Bonfire procurement portal: a dataTables
// grid of open opportunities plus one labeled detail page per row.
// These portals sit behind Cloudflare, so the handler is normally
// paired with the browser fetcher.
type BonfireHandler struct {
	cfg     *config.SiteConfig
	fetcher Fetcher
	delay   time.Duration
}

func NewBonfireHandler(cfg *config.SiteConfig, fetcher Fetcher, delay time.Duration) *BonfireHandler {
	return &BonfireHandler{cfg: cfg, fetcher: fetcher, delay: delay}
}

func (h *BonfireHandler) ID() string {
	return h.cfg.ID
}

// Default column order when the grid header cannot be read.
var bonfireDefaultHeaders = []string{"Status", "Ref. #", "Project", "Close Date", "Days Left", "Action Link"}

func (h *BonfireHandler) Scrape(ctx context.Context) ([]models.RawRecord, error) {
	listURL := h.cfg.BaseURL + "/" + strings.TrimPrefix(h.cfg.StartPath, "/")

	doc, err := h.fetcher.Get(ctx, listURL)
	if err != nil {
		return nil, err
	}

	grid := doc.Find("div.dataTables_scroll").First()
	if grid.Length() == 0 {
		log.Printf("%s: opportunities grid not found", h.cfg.ID)
		return nil, nil
	}

	headers := h.parseHeaders(grid)
	records := h.parseRows(grid, headers)

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

func (h *BonfireHandler) parseHeaders(grid *goquery.Selection) []string {
	var headers []string
	grid.Find("div.dataTables_scrollHead th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(th.Text()))
	})
	if len(headers) == 0 {
		return bonfireDefaultHeaders
	}
	if strings.EqualFold(headers[len(headers)-1], "action") {
		headers[len(headers)-1] = "Action Link"
	}
	return headers
}

func (h *BonfireHandler) parseRows(grid *goquery.Selection, headers []string) []models.RawRecord {
	var records []models.RawRecord
	grid.Find("div.dataTables_scrollBody tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() != len(headers) {
			log.Printf("%s: skipping row with %d cells against %d headers", h.cfg.ID, cells.Length(), len(headers))
			return
		}

		fields := make(models.DetailFields, len(headers))
		cells.Each(func(i int, cell *goquery.Selection) {
			fields[headers[i]] = squashSpace(cell.Text())
		})

		rec := models.RawRecord{
			SiteID:   h.cfg.ID,
			CityName: h.cfg.CityName,
			FolderNo: firstField(fields, "Ref. #", "Ref"),
			Purpose:  fields.Get("Project"),
			Status:   fields.Get("Status"),
			Details:  models.DetailFields{models.DetailClosingDate: fields.Get("Close Date"), models.DetailDaysLeft: fields.Get("Days Left")},
		}
		if href, ok := cells.Last().Find("a").First().Attr("href"); ok {
			rec.DetailsLink = h.cfg.BaseURL + href
		}
		records = append(records, rec)
	})
	return records
}

func (h *BonfireHandler) parseDetail(doc *goquery.Document) models.DetailFields {
	fields := make(models.DetailFields)
	for key, label := range map[string]string{
		models.DetailType:        "Type:",
		models.DetailOpenDate:    "Open Date:",
		models.DetailClosingDate: "Close Date:",
		models.DetailDaysLeft:    "Days Left:",
		models.DetailContact:     "Contact Information:",
	} {
		if value := LabelValue(doc, label); value != "" {
			fields[key] = value
		}
	}
	if description := ProjectDescriptionFollowUp(doc); description != "" {
		fields[models.DetailProjectDescription] = description
	} else if value := LabelValue(doc, "Project Description:"); value != "" {
		fields[models.DetailProjectDescription] = TruncateWords(value, descriptionWordLimit)
	}
	return fields
}
