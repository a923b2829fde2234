// Package ingest talks to the publication API: it looks up the
// upcoming issue calendar and uploads mapped entries through the
// two-step fill/insert flow.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/titanous/json5"

	"github.com/ys-23412/sbcontest2/models"
)

const defaultTimeout = 60 * time.Second

// IngestionFailure means the sink rejected a batch or returned data
// that could not be interpreted even after lenient reparsing. The raw
// body is preserved for diagnosis.
type IngestionFailure struct {
	Endpoint string
	Status   int
	Body     string
	Err      error
}

func (e *IngestionFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingest: %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("ingest: %s returned status %d", e.Endpoint, e.Status)
}

func (e *IngestionFailure) Unwrap() error { return e.Err }

// FilledBatch is the envelope posted to the fill-entries endpoint. The
// API expects an array of these with exactly one element.
type FilledBatch struct {
	Filename string               `json:"filename"`
	PDFType  string               `json:"pdf_type"`
	Region   string               `json:"region"`
	FileType string               `json:"file_type"`
	Data     []models.MappedEntry `json:"data"`
	UserID   string               `json:"user_id"`
}

// UploadResult is the insertion report from the insert-into-data
// endpoint.
type UploadResult struct {
	InsertedEntries int `json:"inserted_entries"`
	FailedEntries   int `json:"failed_entries"`
}

// Client wraps the publication API.
type Client struct {
	http    *resty.Client
	baseURL string
	agentID string
	userID  string
}

// NewClient builds a client for the API rooted at baseURL.
func NewClient(baseURL, agentID, userID string) *Client {
	http := resty.New().
		SetTimeout(defaultTimeout).
		SetHeader("Content-Type", "application/json")
	return &Client{http: http, baseURL: baseURL, agentID: agentID, userID: userID}
}

// LatestIssues fetches the upcoming publication calendar for the
// configured agent, ordered ascending by date.
func (c *Client) LatestIssues(ctx context.Context) ([]models.Issue, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("agent", c.agentID).
		Get(c.baseURL + "/api_get_latest_issue.php")
	if err != nil {
		return nil, fmt.Errorf("ingest: get latest issue: %w", err)
	}
	if resp.IsError() {
		return nil, &IngestionFailure{
			Endpoint: "api_get_latest_issue.php",
			Status:   resp.StatusCode(),
			Body:     resp.String(),
		}
	}
	var issues []models.Issue
	if err := decodeLenient(resp.Body(), &issues); err != nil {
		return nil, &IngestionFailure{
			Endpoint: "api_get_latest_issue.php",
			Status:   resp.StatusCode(),
			Body:     resp.String(),
			Err:      err,
		}
	}
	return issues, nil
}

// Upload pushes a mapped batch through the two-step flow: fill the
// entries, then insert the filled payload. The filled payload is
// forwarded verbatim.
func (c *Client) Upload(ctx context.Context, filename, region string, entries []models.MappedEntry) (*UploadResult, error) {
	batch := []FilledBatch{{
		Filename: filename,
		PDFType:  "api",
		Region:   region,
		FileType: "json",
		Data:     entries,
		UserID:   c.userID,
	}}

	filled, err := c.post(ctx, "api_fill_entries.php", batch)
	if err != nil {
		return nil, err
	}

	inserted, err := c.post(ctx, "api_insert_into_data.php", json.RawMessage(filled))
	if err != nil {
		return nil, err
	}

	var result UploadResult
	if err := decodeLenient(inserted, &result); err != nil {
		return nil, &IngestionFailure{
			Endpoint: "api_insert_into_data.php",
			Body:     string(inserted),
			Err:      err,
		}
	}
	return &result, nil
}

// post sends the payload and returns the raw response body, verifying
// only the status and that the body is structurally valid JSON.
func (c *Client) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(c.baseURL + "/" + endpoint)
	if err != nil {
		return nil, &IngestionFailure{Endpoint: endpoint, Err: err}
	}
	if resp.IsError() {
		log.Printf("ingest: %s status %d body: %s", endpoint, resp.StatusCode(), resp.String())
		return nil, &IngestionFailure{Endpoint: endpoint, Status: resp.StatusCode(), Body: resp.String()}
	}
	var probe any
	if err := decodeLenient(resp.Body(), &probe); err != nil {
		log.Printf("ingest: %s unparseable body: %s", endpoint, resp.String())
		return nil, &IngestionFailure{Endpoint: endpoint, Status: resp.StatusCode(), Body: resp.String(), Err: err}
	}
	return resp.Body(), nil
}

// decodeLenient tries strict JSON first, then a permissive json5 parse
// once. Some API responses carry trailing commas or unquoted keys from
// hand-built PHP serialization.
func decodeLenient(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err == nil {
		return nil
	}
	if err := json5.Unmarshal(body, out); err != nil {
		return fmt.Errorf("lenient decode: %w", err)
	}
	return nil
}
