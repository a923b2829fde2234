package scraper

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ys-23412/sbcontest2/classify"
	"github.com/ys-23412/sbcontest2/config"
	"github.com/ys-23412/sbcontest2/dateutil"
	"github.com/ys-23412/sbcontest2/identity"
	"github.com/ys-23412/sbcontest2/ingest"
	"github.com/ys-23412/sbcontest2/mapper"
	"github.com/ys-23412/sbcontest2/models"
	"github.com/ys-23412/sbcontest2/recency"
	"github.com/ys-23412/sbcontest2/storage"
)

// maxSitePasses bounds the retry loop over failed sites.
const maxSitePasses = 3

// Orchestrator drives the full pipeline for every configured site:
// scrape, filter, classify, map, archive, upload, notify. Sites run
// sequentially; one site's failure never blocks the next.
type Orchestrator struct {
	cfg        *config.Config
	store      *storage.SQLiteStore
	pgStore    *storage.PostgresStore
	artifacts  *storage.ArtifactWriter
	api        *ingest.Client
	notifier   *ingest.Notifier
	classifier classify.Classifier
	lastRun    func(context.Context) (time.Time, error)
}

func NewOrchestrator(cfg *config.Config, store *storage.SQLiteStore, artifacts *storage.ArtifactWriter, api *ingest.Client, notifier *ingest.Notifier) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		artifacts: artifacts,
		api:       api,
		notifier:  notifier,
	}
}

// SetPostgres enables the optional entry archive.
func (o *Orchestrator) SetPostgres(pgStore *storage.PostgresStore) {
	o.pgStore = pgStore
}

// SetClassifier injects the project-type classifier. Without one every
// entry gets project type 0.
func (o *Orchestrator) SetClassifier(c classify.Classifier) {
	o.classifier = c
}

// SetLastRunLookup supplies the external last-successful-run timestamp,
// normally the CI workflow history. When that run predates a policy
// cutoff, the recency window is widened back to it so records published
// while runs were skipped still pass the filter.
func (o *Orchestrator) SetLastRunLookup(fn func(context.Context) (time.Time, error)) {
	o.lastRun = fn
}

// RunAll processes every site, retrying failed sites in further passes
// up to the pass limit.
func (o *Orchestrator) RunAll(ctx context.Context) error {
	var pending []string
	for siteID := range o.cfg.Sites {
		pending = append(pending, siteID)
	}

	for pass := 1; len(pending) > 0 && pass <= maxSitePasses; pass++ {
		log.Printf("Starting pass %d/%d over %d sites", pass, maxSitePasses, len(pending))

		var failed []string
		for _, siteID := range pending {
			if err := o.RunSite(ctx, siteID); err != nil {
				log.Printf("Error running site %s: %v", siteID, err)
				failed = append(failed, siteID)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		pending = failed
	}

	if len(pending) > 0 {
		msg := fmt.Sprintf("Sites failed after %d passes: %s", maxSitePasses, strings.Join(pending, ", "))
		log.Print(msg)
		if err := o.notifier.Send(ctx, msg); err != nil {
			log.Printf("Notification failed: %v", err)
		}
		return fmt.Errorf("scraper: %d sites failed", len(pending))
	}
	return nil
}

// RunSite executes the pipeline for one site and records the run in
// the ledger.
func (o *Orchestrator) RunSite(ctx context.Context, siteID string) error {
	siteCfg, ok := o.cfg.Sites[siteID]
	if !ok {
		return fmt.Errorf("unknown site: %s", siteID)
	}

	run := &models.ScrapeRun{
		SiteID:    siteID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	runID, err := o.store.CreateRun(run)
	if err != nil {
		return err
	}
	run.ID = runID

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		if err := o.store.UpdateRun(run); err != nil {
			log.Printf("Failed to update run %d: %v", run.ID, err)
		}
	}()

	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Starting scrape for %s", siteCfg.Name), siteID)

	err = o.runPipeline(ctx, siteCfg, run)
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("Run failed: %v", err), siteID)
		return err
	}

	run.Status = models.RunStatusCompleted
	o.log(run.ID, models.LogLevelInfo,
		fmt.Sprintf("Completed: %d found, %d kept, %d mapped, %d inserted, %d failed",
			run.RecordsFound, run.RecordsFiltered, run.RecordsMapped, run.EntriesInserted, run.EntriesFailed), siteID)
	return nil
}

func (o *Orchestrator) runPipeline(ctx context.Context, siteCfg *config.SiteConfig, run *models.ScrapeRun) error {
	fetcher := o.newFetcher(siteCfg)
	defer fetcher.Close()

	delay := time.Duration(siteCfg.DelayMS) * time.Millisecond
	if siteCfg.DelayMS == 0 {
		delay = time.Duration(o.cfg.Scraper.DelayMS) * time.Millisecond
	}

	handler, err := NewHandler(siteCfg, fetcher, delay)
	if err != nil {
		return err
	}

	records, err := handler.Scrape(ctx)
	if err != nil {
		return err
	}
	run.RecordsFound = len(records)

	if _, err := o.artifacts.WriteJSON("raw", siteCfg.ID, records); err != nil {
		log.Printf("Artifact write failed: %v", err)
	}
	if _, err := o.artifacts.WriteRecordsCSV("raw", siteCfg.ID, records); err != nil {
		log.Printf("Artifact write failed: %v", err)
	}

	now := time.Now()
	issueID, window, err := o.resolveWindow(ctx, siteCfg, run, now)
	if err != nil {
		return err
	}
	window = o.widenWindow(ctx, siteCfg, run, window)

	kept := o.filterRecords(siteCfg, run, records, window)
	run.RecordsFiltered = len(kept)

	if len(kept) == 0 {
		o.log(run.ID, models.LogLevelInfo, "No records within the recency window", siteCfg.ID)
		o.notify(ctx, fmt.Sprintf("%s: no new data (%d records scraped, none recent)", siteCfg.Name, run.RecordsFound))
		return nil
	}

	entries := o.mapRecords(ctx, siteCfg, run, kept, issueID, window, now)
	run.RecordsMapped = len(entries)

	if _, err := o.artifacts.WriteJSON("mapped", siteCfg.ID, entries); err != nil {
		log.Printf("Artifact write failed: %v", err)
	}

	if len(entries) == 0 {
		o.notify(ctx, fmt.Sprintf("%s: no mappable entries from %d recent records", siteCfg.Name, len(kept)))
		return nil
	}

	return o.upload(ctx, siteCfg, run, entries)
}

func (o *Orchestrator) newFetcher(siteCfg *config.SiteConfig) Fetcher {
	if siteCfg.Fetcher == "browser" {
		return NewBrowserFetcher()
	}
	return NewHTTPFetcher(o.cfg.Scraper.ProxyURL)
}

// resolveWindow computes the recency window and, when the publication
// calendar is reachable, the active issue id. Tender sites cannot run
// without an issue; permit sites degrade to issue 0.
func (o *Orchestrator) resolveWindow(ctx context.Context, siteCfg *config.SiteConfig, run *models.ScrapeRun, now time.Time) (int, recency.Window, error) {
	if siteCfg.Recency == recency.PolicyPublicationCycle {
		issues, err := o.api.LatestIssues(ctx)
		if err != nil {
			return 0, recency.Window{}, fmt.Errorf("issue calendar: %w", err)
		}
		issue, issueDate, err := recency.SelectIssue(issues, now)
		if err != nil {
			return 0, recency.Window{}, err
		}
		window := recency.PublicationCycle(issueDate, now)
		if window.NewTenderPeriod {
			o.log(run.ID, models.LogLevelInfo, "Run falls in the new-tender posting period", siteCfg.ID)
		}
		return issue.ID, window, nil
	}

	window, err := recency.ForPolicy(siteCfg.Recency, now)
	if err != nil {
		return 0, recency.Window{}, err
	}

	issueID := 0
	if issues, err := o.api.LatestIssues(ctx); err != nil {
		o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Issue calendar unavailable: %v", err), siteCfg.ID)
	} else if issue, _, err := recency.SelectIssue(issues, now); err != nil {
		o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("No current issue: %v", err), siteCfg.ID)
	} else {
		issueID = issue.ID
	}
	return issueID, window, nil
}

// widenWindow pulls the window start back to the last successful
// external run when that run is older than the policy cutoff. A failed
// lookup or a missing run leaves the window untouched.
func (o *Orchestrator) widenWindow(ctx context.Context, siteCfg *config.SiteConfig, run *models.ScrapeRun, window recency.Window) recency.Window {
	if o.lastRun == nil {
		return window
	}
	last, err := o.lastRun(ctx)
	if err != nil {
		o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Last-run lookup failed: %v", err), siteCfg.ID)
		return window
	}
	if last.IsZero() {
		return window
	}
	if start := dateutil.Midnight(last); start.Before(window.Start) {
		o.log(run.ID, models.LogLevelInfo,
			fmt.Sprintf("Widening recency window to last successful run %s", start.Format("2006-01-02")), siteCfg.ID)
		window.Start = start
	}
	return window
}

// filterRecords dedupes rows repeated across pages, applies the type
// include/exclude list and the recency window. Records with
// unparseable dates are excluded with a warning.
func (o *Orchestrator) filterRecords(siteCfg *config.SiteConfig, run *models.ScrapeRun, records []models.RawRecord, window recency.Window) []models.RawRecord {
	seen := make(map[string]bool, len(records))

	var kept []models.RawRecord
	for _, rec := range records {
		fp := identity.Fingerprint(&rec)
		if seen[fp] {
			continue
		}
		seen[fp] = true

		if !typeAllowed(siteCfg, rec.Type) {
			continue
		}

		raw := rec.GoverningDate()
		date, err := dateutil.Parse(raw)
		if err != nil {
			o.log(run.ID, models.LogLevelWarn,
				fmt.Sprintf("Excluding %s: unparseable date %q", rec.FolderNo, raw), siteCfg.ID)
			continue
		}
		if !window.Contains(date) {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

func typeAllowed(siteCfg *config.SiteConfig, recordType string) bool {
	if len(siteCfg.IncludeTypes) > 0 {
		for _, t := range siteCfg.IncludeTypes {
			if strings.EqualFold(t, recordType) {
				return true
			}
		}
		return false
	}
	for _, t := range siteCfg.ExcludeTypes {
		if strings.EqualFold(t, recordType) {
			return false
		}
	}
	return true
}

// mapRecords classifies and maps each record. A record that fails to
// map is logged with its reference and dropped, never aborting the
// batch.
func (o *Orchestrator) mapRecords(ctx context.Context, siteCfg *config.SiteConfig, run *models.ScrapeRun, records []models.RawRecord, issueID int, window recency.Window, now time.Time) []models.MappedEntry {
	componentID := siteCfg.ComponentID
	if componentID == 0 {
		componentID = o.cfg.API.ComponentID
	}
	params := mapper.Params{
		IssueID:         issueID,
		CityName:        siteCfg.CityName,
		RegionName:      siteCfg.RegionName,
		AgentID:         o.cfg.API.AgentID,
		UserID:          o.cfg.API.UserID,
		ComponentID:     componentID,
		TenderAuthority: siteCfg.TenderAuthority,
		HideTinyURL:     o.cfg.API.HideTinyURL,
		Now:             now,
	}

	var entries []models.MappedEntry
	for i := range records {
		rec := &records[i]
		projectType := o.classifyRecord(ctx, rec)

		var entry models.MappedEntry
		var err error
		if siteCfg.IsTenderVariant() {
			entry, err = mapper.MapTender(rec, projectType, params)
		} else {
			entry, err = mapper.MapPermit(rec, projectType, params)
		}
		if err != nil {
			run.ErrorsCount++
			o.log(run.ID, models.LogLevelWarn,
				fmt.Sprintf("Skipping record %s: %v", rec.FolderNo, err), siteCfg.ID)
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func (o *Orchestrator) classifyRecord(ctx context.Context, rec *models.RawRecord) int {
	if o.classifier == nil {
		return 0
	}
	payload := map[string]string{
		"address":          rec.Address,
		"folder_no":        rec.FolderNo,
		"type":             rec.Type,
		"application_date": rec.ApplicationDate,
		"status":           rec.Status,
		"purpose":          rec.Purpose,
	}
	for k, v := range rec.Details {
		payload[k] = v
	}
	return o.classifier.Classify(ctx, payload)
}

func (o *Orchestrator) upload(ctx context.Context, siteCfg *config.SiteConfig, run *models.ScrapeRun, entries []models.MappedEntry) error {
	prefix := siteCfg.FilePrefix
	if prefix == "" {
		prefix = siteCfg.ID
	}
	filename := fmt.Sprintf("%s_%s_%s.json", prefix, time.Now().Format("2006-01-02 15_04_05"), siteCfg.RegionName)

	batchID := o.artifacts.NewBatchID()
	if err := o.pgStore.ArchiveBatch(ctx, batchID, siteCfg.ID, entries); err != nil {
		log.Printf("Archive failed for batch %s: %v", batchID, err)
	}

	result, err := o.api.Upload(ctx, filename, siteCfg.CityName, entries)
	if err != nil {
		o.notify(ctx, fmt.Sprintf("%s: ingestion failed for %d entries: %v", siteCfg.Name, len(entries), err))
		return err
	}

	run.EntriesInserted = result.InsertedEntries
	run.EntriesFailed = result.FailedEntries

	if err := o.pgStore.MarkBatchUploaded(ctx, batchID); err != nil {
		log.Printf("Archive update failed for batch %s: %v", batchID, err)
	}

	o.notify(ctx, fmt.Sprintf("%s: %d found, %d kept, %d mapped, %d inserted, %d failed",
		siteCfg.Name, run.RecordsFound, run.RecordsFiltered, run.RecordsMapped,
		result.InsertedEntries, result.FailedEntries))
	return nil
}

func (o *Orchestrator) notify(ctx context.Context, message string) {
	if err := o.notifier.Send(ctx, message); err != nil {
		log.Printf("Notification failed: %v", err)
	}
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, message, siteID string) {
	log.Printf("[%s] %s: %s", level, siteID, message)
	if err := o.store.Log(&runID, level, message, siteID); err != nil {
		log.Printf("Ledger write failed: %v", err)
	}
}

// GetSiteIDs lists the configured site ids.
func (o *Orchestrator) GetSiteIDs() []string {
	var ids []string
	for id := range o.cfg.Sites {
		ids = append(ids, id)
	}
	return ids
}
