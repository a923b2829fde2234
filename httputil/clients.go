package httputil

import (
	"crypto/tls"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

// Clients carries the HTTP client pair for one scraping session.
// Scraping goes through the proxy when one is configured; Direct shares
// the same cookie jar so a fallback request continues the WebForms
// session. Direct is nil when no proxy is configured.
type Clients struct {
	Scraping *http.Client
	Direct   *http.Client
}

// NewClients builds a session-backed client pair. Some municipal
// gateways reject Go's default HTTP/2 negotiation, so the transport
// pins HTTP/1.1.
func NewClients(proxyURL string, timeout time.Duration) *Clients {
	jar, _ := cookiejar.New(nil)

	transport := newTransport()
	c := &Clients{
		Scraping: &http.Client{
			Timeout:   timeout,
			Jar:       jar,
			Transport: transport,
		},
	}

	if proxyURL == "" {
		return c
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return c
	}
	transport.Proxy = http.ProxyURL(u)
	c.Direct = &http.Client{
		Timeout:   timeout,
		Jar:       jar,
		Transport: newTransport(),
	}
	return c
}

// NewAPIClient builds a plain client for first-party APIs. These never
// go through the scraping proxy.
func NewAPIClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func newTransport() *http.Transport {
	return &http.Transport{
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}
}
