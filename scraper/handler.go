package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/ys-23412/sbcontest2/config"
	"github.com/ys-23412/sbcontest2/models"
)

// Handler scrapes one portal into raw records, detail pages included.
type Handler interface {
	ID() string
	Scrape(ctx context.Context) ([]models.RawRecord, error)
}

// NewHandler builds the handler for a site's variant. Unknown variants
// are rejected at config load, so this only fails on a programming
// error.
func NewHandler(siteCfg *config.SiteConfig, fetcher Fetcher, delay time.Duration) (Handler, error) {
	switch siteCfg.Variant {
	case config.VariantProspero:
		return NewProsperoHandler(siteCfg, fetcher, delay), nil
	case config.VariantPIP, config.VariantPIPReport:
		return NewPIPHandler(siteCfg, fetcher, delay), nil
	case config.VariantBonfire:
		return NewBonfireHandler(siteCfg, fetcher, delay), nil
	case config.VariantBidsTenders:
		return NewBidsTendersHandler(siteCfg, fetcher, delay), nil
	default:
		return nil, fmt.Errorf("scraper: unsupported site variant %q", siteCfg.Variant)
	}
}

// sleep pauses between sequential portal requests, honoring
// cancellation. The delay is a per-site rate limit, not an
// optimization knob.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
