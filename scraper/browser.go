package scraper

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"
)

// BrowserFetcher satisfies Fetcher with a driven Chromium instance.
// The tender portals sit behind Cloudflare challenges a plain HTTP
// client cannot pass; a real browser resolves them during the
// navigation wait.
type BrowserFetcher struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	context     playwright.BrowserContext
	page        playwright.Page
	initialized bool

	// settleDelay gives interstitial challenges time to clear before
	// the page content is read.
	settleDelay time.Duration
}

func NewBrowserFetcher() *BrowserFetcher {
	return &BrowserFetcher{settleDelay: 5 * time.Second}
}

func (b *BrowserFetcher) ensureBrowser() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}

	var err error
	b.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	cwd, _ := os.Getwd()
	userDataDir := filepath.Join(cwd, "browser_data")
	b.context, err = b.pw.Chromium.LaunchPersistentContext(userDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	b.page, err = b.context.NewPage()
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}

	b.initialized = true
	return nil
}

func (b *BrowserFetcher) Get(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := b.ensureBrowser(); err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}

	_, err := b.page.Goto(pageURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}

	select {
	case <-ctx.Done():
		return nil, &FetchError{URL: pageURL, Err: ctx.Err()}
	case <-time.After(b.settleDelay):
	}

	content, err := b.page.Content()
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: fmt.Errorf("parse body: %w", err)}
	}
	return doc, nil
}

// PostForm is not supported; the portals that need a browser are
// navigated by link, never by form replay.
func (b *BrowserFetcher) PostForm(ctx context.Context, pageURL string, form url.Values) (*goquery.Document, error) {
	return nil, &FetchError{URL: pageURL, Err: fmt.Errorf("browser fetcher does not support form posts")}
}

func (b *BrowserFetcher) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.page != nil {
		b.page.Close()
		b.page = nil
	}
	if b.context != nil {
		b.context.Close()
	}
	if b.pw != nil {
		b.pw.Stop()
	}
	b.initialized = false
}
