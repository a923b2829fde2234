package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ys-23412/sbcontest2/models"
)

func TestLatestIssues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api_get_latest_issue.php" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("agent"); got != "agent-7" {
			t.Fatalf("unexpected agent %q", got)
		}
		io.WriteString(w, `[{"id": 411, "date": "2025-06-12"}, {"id": 412, "date": "2025-06-19"}]`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "agent-7", "42")
	issues, err := client.LatestIssues(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(issues))
	}
	if issues[1].ID != 412 || issues[1].Date != "2025-06-19" {
		t.Fatalf("unexpected issue %+v", issues[1])
	}
}

func TestLatestIssues_LenientJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Trailing comma, the way the PHP side sometimes serializes.
		io.WriteString(w, `[{"id": 411, "date": "2025-06-12"},]`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "agent-7", "42")
	issues, err := client.LatestIssues(context.Background())
	if err != nil {
		t.Fatalf("lenient parse failed: %v", err)
	}
	if len(issues) != 1 || issues[0].ID != 411 {
		t.Fatalf("unexpected issues %+v", issues)
	}
}

func TestLatestIssues_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone away", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "agent-7", "42")
	_, err := client.LatestIssues(context.Background())
	if err == nil {
		t.Fatalf("expected error for 502 response")
	}
	var failure *IngestionFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *IngestionFailure, got %T", err)
	}
	if failure.Status != http.StatusBadGateway {
		t.Fatalf("unexpected status %d", failure.Status)
	}
}

func TestUpload_ForwardsFilledBody(t *testing.T) {
	const filledBody = `[{"filename":"victoria_20250618","data":[{"ys_permit":"REZ00781","extra":"filled"}]}]`

	var insertedPayload []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/api_fill_entries.php":
			var batches []FilledBatch
			if err := json.Unmarshal(body, &batches); err != nil {
				t.Fatalf("fill payload not valid JSON: %v", err)
			}
			if len(batches) != 1 {
				t.Fatalf("expected a single batch, got %d", len(batches))
			}
			if batches[0].Filename != "victoria_20250618" || batches[0].Region != "Victoria" {
				t.Fatalf("unexpected batch envelope %+v", batches[0])
			}
			if batches[0].PDFType != "api" || batches[0].FileType != "json" {
				t.Fatalf("unexpected envelope constants %+v", batches[0])
			}
			if len(batches[0].Data) != 1 || batches[0].Data[0].Permit != "REZ00781" {
				t.Fatalf("entries not carried into the fill payload")
			}
			io.WriteString(w, filledBody)
		case "/api_insert_into_data.php":
			insertedPayload = body
			io.WriteString(w, `{"inserted_entries": 1, "failed_entries": 0}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "agent-7", "42")
	entries := []models.MappedEntry{{Permit: "REZ00781", CityName: "Victoria"}}

	result, err := client.Upload(context.Background(), "victoria_20250618", "Victoria", entries)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if result.InsertedEntries != 1 || result.FailedEntries != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if string(insertedPayload) != filledBody {
		t.Fatalf("filled body should be forwarded verbatim, got %s", insertedPayload)
	}
}

func TestUpload_FillRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad batch", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient(server.URL, "agent-7", "42")
	_, err := client.Upload(context.Background(), "f", "r", nil)

	var failure *IngestionFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *IngestionFailure, got %v", err)
	}
	if failure.Endpoint != "api_fill_entries.php" {
		t.Fatalf("unexpected endpoint %q", failure.Endpoint)
	}
}

func TestUpload_GarbageFillBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>Fatal error on line 12</html>`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "agent-7", "42")
	_, err := client.Upload(context.Background(), "f", "r", nil)

	var failure *IngestionFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *IngestionFailure for unparseable body, got %v", err)
	}
	if failure.Err == nil {
		t.Fatalf("decode error should be preserved")
	}
}

func TestDecodeLenient(t *testing.T) {
	var out map[string]any
	if err := decodeLenient([]byte(`{"a": 1}`), &out); err != nil {
		t.Fatalf("strict parse failed: %v", err)
	}
	if err := decodeLenient([]byte(`{a: 1,}`), &out); err != nil {
		t.Fatalf("json5 parse failed: %v", err)
	}
	if err := decodeLenient([]byte(`not json at all {{{`), &out); err == nil {
		t.Fatalf("expected error for unparseable body")
	}
}
