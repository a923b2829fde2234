package workers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ys-23412/sbcontest2/config"
	"github.com/ys-23412/sbcontest2/httputil"
	"github.com/ys-23412/sbcontest2/ingest"
	"github.com/ys-23412/sbcontest2/models"
)

// HealthcheckWorker probes each portal's search page between scrape
// runs so a relocated or retired portal is noticed before the next
// scheduled run fails.
type HealthcheckWorker struct {
	cfg        *config.Config
	httpClient *http.Client
	direct     *http.Client
	notifier   *ingest.Notifier
	triggerCh  chan struct{}
	logFunc    LogFunc

	// lastLive tracks the previous probe outcome per site so only
	// transitions are reported.
	lastLive map[string]bool
}

func NewHealthcheckWorker(cfg *config.Config, notifier *ingest.Notifier) *HealthcheckWorker {
	clients := httputil.NewClients(cfg.Scraper.ProxyURL, 30*time.Second)

	return &HealthcheckWorker{
		cfg:        cfg,
		httpClient: clients.Scraping,
		direct:     clients.Direct,
		notifier:   notifier,
		triggerCh:  make(chan struct{}, 1),
		logFunc:    NoOpLogger,
		lastLive:   make(map[string]bool),
	}
}

func (w *HealthcheckWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run immediately
func (w *HealthcheckWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// CheckResult contains the outcome of probing one portal
type CheckResult struct {
	IsLive     bool
	StatusCode int
	Error      error
}

// Check probes a portal URL. Any HTTP response counts as live except
// server errors and the gone statuses; challenge pages respond 403 but
// the portal behind them is still up.
func (w *HealthcheckWorker) Check(ctx context.Context, portalURL string) CheckResult {
	result := w.checkWith(ctx, w.httpClient, "HEAD", portalURL)
	if result.Error == nil && result.StatusCode != http.StatusMethodNotAllowed {
		return result
	}

	// WebForms endpoints commonly reject HEAD
	result = w.checkWith(ctx, w.httpClient, "GET", portalURL)
	if result.Error == nil || w.direct == nil {
		return result
	}

	log.Printf("Healthcheck: proxied probe failed for %s: %v, retrying directly", portalURL, result.Error)
	return w.checkWith(ctx, w.direct, "GET", portalURL)
}

func (w *HealthcheckWorker) checkWith(ctx context.Context, client *http.Client, method, portalURL string) CheckResult {
	req, err := http.NewRequestWithContext(ctx, method, portalURL, nil)
	if err != nil {
		return CheckResult{Error: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := client.Do(req)
	if err != nil {
		return CheckResult{Error: err}
	}
	resp.Body.Close()

	result := CheckResult{StatusCode: resp.StatusCode}
	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		result.IsLive = false
	case resp.StatusCode >= 500:
		result.IsLive = false
	default:
		result.IsLive = true
	}
	return result
}

// Run starts the healthcheck worker loop
func (w *HealthcheckWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Healthcheck worker stopping")
			return
		case <-ticker.C:
			w.probeAll(ctx)
		case <-w.triggerCh:
			log.Println("Healthcheck worker triggered manually")
			w.probeAll(ctx)
		}
	}
}

func (w *HealthcheckWorker) probeAll(ctx context.Context) {
	ids := make([]string, 0, len(w.cfg.Sites))
	for id := range w.cfg.Sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var down []string
	for _, id := range ids {
		site := w.cfg.Sites[id]
		portalURL := site.BaseURL + "/" + strings.TrimPrefix(site.StartPath, "/")

		result := w.Check(ctx, portalURL)
		live := result.Error == nil && result.IsLive

		if !live {
			down = append(down, id)
			msg := fmt.Sprintf("Portal %s unreachable (status %d)", id, result.StatusCode)
			if result.Error != nil {
				msg = fmt.Sprintf("Portal %s unreachable: %v", id, result.Error)
			}
			w.logFunc(models.LogLevelWarn, id, msg)
		}

		if prev, seen := w.lastLive[id]; seen && prev != live {
			w.notifyTransition(ctx, site, live)
		}
		w.lastLive[id] = live

		if ctx.Err() != nil {
			return
		}
	}

	if len(down) > 0 {
		log.Printf("Healthcheck: %d/%d portals unreachable: %s", len(down), len(ids), strings.Join(down, ", "))
	}
}

func (w *HealthcheckWorker) notifyTransition(ctx context.Context, site *config.SiteConfig, live bool) {
	state := "back up"
	if !live {
		state = "down"
	}
	if err := w.notifier.Send(ctx, fmt.Sprintf("Healthcheck: %s is %s", site.Name, state)); err != nil {
		log.Printf("Healthcheck notification failed: %v", err)
	}
}
