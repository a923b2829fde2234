package scraper

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ys-23412/sbcontest2/config"
	"github.com/ys-23412/sbcontest2/dateutil"
	"github.com/ys-23412/sbcontest2/models"
	"github.com/ys-23412/sbcontest2/recency"
	"github.com/ys-23412/sbcontest2/webforms"
)

// PIP portal form field names, shared by the Tempest "Property
// Information Portal" deployments.
const (
	pipFromDateField   = "ctl00$FeaturedContent$txt_FromDate"
	pipToDateField     = "ctl00$FeaturedContent$txt_ToDate"
	pipViewReportField = "ctl00$FeaturedContent$btn_ViewReport"
)

// PIPHandler drives a Tempest PIP date-range permit report. Two
// deployment shapes exist: the single-stage form where the date search
// renders selectable report forms (variant pip), and the two-stage
// shape where the search response redirects through an intermediate
// form of hidden fields (variant pip_report).
type PIPHandler struct {
	cfg     *config.SiteConfig
	fetcher Fetcher
	delay   time.Duration

	// now is swapped in tests.
	now func() time.Time
}

func NewPIPHandler(cfg *config.SiteConfig, fetcher Fetcher, delay time.Duration) *PIPHandler {
	return &PIPHandler{cfg: cfg, fetcher: fetcher, delay: delay, now: time.Now}
}

func (h *PIPHandler) ID() string {
	return h.cfg.ID
}

func (h *PIPHandler) Scrape(ctx context.Context) ([]models.RawRecord, error) {
	searchURL := h.cfg.BaseURL + "/" + strings.TrimPrefix(h.cfg.StartPath, "/")

	doc, err := h.fetcher.Get(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	var resultDoc *goquery.Document
	if h.cfg.Variant == config.VariantPIPReport {
		resultDoc, err = h.runTwoStage(ctx, searchURL, doc)
	} else {
		resultDoc, err = h.runSingleStage(ctx, searchURL, doc)
	}
	if err != nil {
		return nil, err
	}

	return h.parsePermitSections(resultDoc), nil
}

// dateRange spans the recency window so the report never misses a
// publishable permit.
func (h *PIPHandler) dateRange() (string, string) {
	now := h.now()
	window, err := recency.ForPolicy(h.cfg.Recency, now)
	if err != nil {
		window = recency.WeekdaySnap(now)
	}
	return window.Start.Format("01/02/2006"), dateutil.Midnight(now).Format("01/02/2006")
}

func (h *PIPHandler) runSingleStage(ctx context.Context, searchURL string, doc *goquery.Document) (*goquery.Document, error) {
	state, err := webforms.ExtractState(doc)
	if err != nil {
		return nil, err
	}

	from, to := h.dateRange()
	payload := basePayload(state)
	payload[pipFromDateField] = from
	payload[pipToDateField] = to
	payload[pipViewReportField] = "View Report"
	for field, value := range h.cfg.FilterPayload {
		payload[field] = value
	}

	selection, err := h.fetcher.PostForm(ctx, searchURL, webforms.State(payload).Values())
	if err != nil {
		return nil, err
	}

	// The date search renders one form per report; submit the
	// configured one with every input it carries.
	formID := h.cfg.ReportFormID
	if formID == "" {
		formID = "form0"
	}
	form := selection.Find("form#" + formID).First()
	if form.Length() == 0 {
		return nil, fmt.Errorf("%s: report form %s not found", h.cfg.ID, formID)
	}

	action, _ := form.Attr("action")
	if action == "" {
		return nil, fmt.Errorf("%s: report form %s has no action", h.cfg.ID, formID)
	}

	inputs := webforms.ExtractInputs(form)
	form.Find("input[type='submit']").Each(func(_ int, s *goquery.Selection) {
		if name, ok := s.Attr("name"); ok && name != "" {
			inputs[name] = "Submit"
		}
	})

	if err := sleep(ctx, h.delay); err != nil {
		return nil, err
	}
	return h.fetcher.PostForm(ctx, h.cfg.BaseURL+action, webforms.State(inputs).Values())
}

func (h *PIPHandler) runTwoStage(ctx context.Context, searchURL string, doc *goquery.Document) (*goquery.Document, error) {
	// Stage one replays every input on the page, dates and search
	// button overlaid.
	inputs := webforms.ExtractInputs(doc.Selection)
	if inputs[webforms.FieldViewState] == "" {
		return nil, &webforms.MissingStateError{Field: webforms.FieldViewState}
	}

	from, to := h.dateRange()
	inputs[pipFromDateField] = from
	inputs[pipToDateField] = to
	inputs[pipViewReportField] = "Search"

	intermediate, err := h.fetcher.PostForm(ctx, searchURL, webforms.State(inputs).Values())
	if err != nil {
		return nil, err
	}

	// Stage two follows the redirect form, carrying only its hidden
	// fields.
	form := intermediate.Find("form[name='form']").First()
	if form.Length() == 0 {
		return nil, fmt.Errorf("%s: redirect form not found", h.cfg.ID)
	}
	action, _ := form.Attr("action")
	if action == "" {
		return nil, fmt.Errorf("%s: redirect form has no action", h.cfg.ID)
	}

	hidden := make(map[string]string)
	form.Find("input[type='hidden']").Each(func(_ int, s *goquery.Selection) {
		if name, ok := s.Attr("name"); ok && name != "" {
			hidden[name], _ = s.Attr("value")
		}
	})

	if err := sleep(ctx, h.delay); err != nil {
		return nil, err
	}
	return h.fetcher.PostForm(ctx, h.cfg.BaseURL+action, webforms.State(hidden).Values())
}

// parsePermitSections reads the issued or applied permits report: the
// section holds pairs of direct-child divs, a header block and a data
// block, each made of report-label/report-value rows.
func (h *PIPHandler) parsePermitSections(doc *goquery.Document) []models.RawRecord {
	section := doc.Find("#PermitsIssuedSection, #PermitsAppliedSection").First()
	if section.Length() == 0 {
		log.Printf("%s: no permits section in report", h.cfg.ID)
		return nil
	}

	blocks := section.ChildrenFiltered("div")
	var records []models.RawRecord
	for i := 0; i+1 < blocks.Length(); i += 2 {
		fields := parseReportRows(blocks.Eq(i), true)
		for k, v := range parseReportRows(blocks.Eq(i+1), false) {
			fields[k] = v
		}
		records = append(records, h.recordFromReport(fields))
	}
	return records
}

// parseReportRows turns report-label/report-value rows into fields. A
// header block carries "Key: Value" text in both columns; a data block
// keys the value column by the label column's text.
func parseReportRows(block *goquery.Selection, isHeader bool) models.DetailFields {
	fields := make(models.DetailFields)
	block.Find("div.row").Each(func(_ int, row *goquery.Selection) {
		label := squashSpace(row.Find(".report-label").First().Text())
		value := squashSpace(row.Find(".report-value").First().Text())

		if isHeader {
			if k, v, ok := strings.Cut(label, ":"); ok {
				fields[strings.TrimSpace(k)] = strings.TrimSpace(v)
			}
			if k, v, ok := strings.Cut(value, ":"); ok {
				fields[strings.TrimSpace(k)] = strings.TrimSpace(v)
			}
			return
		}

		key, _, _ := strings.Cut(label, ":")
		if key = strings.TrimSpace(key); key != "" {
			fields[key] = value
		}
	})
	return fields
}

func (h *PIPHandler) recordFromReport(fields models.DetailFields) models.RawRecord {
	rec := models.RawRecord{
		SiteID:          h.cfg.ID,
		CityName:        h.cfg.CityName,
		FolderNo:        firstField(fields, "Folder Number", "Folder No", "Permit Number", "Permit No"),
		Address:         firstField(fields, "Address", "Civic Address", "Location"),
		Type:            firstField(fields, "Folder Type", "Permit Type", "Type"),
		ApplicationDate: firstField(fields, "Application Date", "Applied Date", "Issued Date", "Issue Date", "Date"),
		Status:          firstField(fields, "Status", "Folder Status"),
		Purpose:         firstField(fields, "Purpose", "Description", "Work Description", "Project"),
		Details:         fields,
	}
	if contact := firstField(fields, "Contact", "Contact Information", "Applicant"); contact != "" {
		rec.Details[models.DetailContact] = contact
	}
	return rec
}

func firstField(fields models.DetailFields, keys ...string) string {
	for _, key := range keys {
		if v := fields.Get(key); v != "" {
			return v
		}
	}
	return ""
}
