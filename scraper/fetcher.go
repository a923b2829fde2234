package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ys-23412/sbcontest2/httputil"
)

// FetchError is a network or HTTP-level failure reaching a portal.
// The driver retries the initial page once without the proxy before
// giving up; mid-pagination failures are not retried.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher loads portal pages. The pipeline does not care whether the
// implementation is a plain HTTP client or a driven browser, as long
// as anti-bot challenges are resolved before the document comes back.
type Fetcher interface {
	Get(ctx context.Context, pageURL string) (*goquery.Document, error)
	PostForm(ctx context.Context, pageURL string, form url.Values) (*goquery.Document, error)
	Close()
}

const fetchTimeout = 30 * time.Second

// Portals serve different markup to clients without a desktop UA.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// HTTPFetcher drives a portal with a cookie-jar session. Each site run
// owns its own fetcher; WebForms tokens live in the session cookies.
type HTTPFetcher struct {
	client *http.Client
	// direct is the fallback client when the proxied attempt fails.
	direct *http.Client
}

// NewHTTPFetcher builds a session-backed fetcher. proxyURL may be
// empty; when set, failed requests are retried once directly.
func NewHTTPFetcher(proxyURL string) *HTTPFetcher {
	clients := httputil.NewClients(proxyURL, fetchTimeout)
	return &HTTPFetcher{
		client: clients.Scraping,
		direct: clients.Direct,
	}
}

func (f *HTTPFetcher) Get(ctx context.Context, pageURL string) (*goquery.Document, error) {
	return f.do(ctx, http.MethodGet, pageURL, "")
}

func (f *HTTPFetcher) PostForm(ctx context.Context, pageURL string, form url.Values) (*goquery.Document, error) {
	return f.do(ctx, http.MethodPost, pageURL, form.Encode())
}

func (f *HTTPFetcher) Close() {}

func (f *HTTPFetcher) do(ctx context.Context, method, pageURL, body string) (*goquery.Document, error) {
	doc, err := f.doWith(ctx, f.client, method, pageURL, body)
	if err == nil || f.direct == nil {
		return doc, err
	}

	log.Printf("fetch: proxied request failed (%v), retrying %s directly", err, pageURL)
	return f.doWith(ctx, f.direct, method, pageURL, body)
}

func (f *HTTPFetcher) doWith(ctx context.Context, client *http.Client, method, pageURL, body string) (*goquery.Document, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, pageURL, reader)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: pageURL, Status: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: fmt.Errorf("parse body: %w", err)}
	}
	return doc, nil
}
