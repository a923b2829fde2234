package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ys-23412/sbcontest2/models"
)

// ArtifactWriter dumps each pipeline stage's output to disk for audit.
// Files are namespaced by stage, site and timestamp and are never read
// back by the pipeline.
type ArtifactWriter struct {
	dir string
}

func NewArtifactWriter(dir string) (*ArtifactWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &ArtifactWriter{dir: dir}, nil
}

// NewBatchID returns a fresh identifier tying artifacts of one upload
// attempt together.
func (w *ArtifactWriter) NewBatchID() string {
	return uuid.NewString()
}

func (w *ArtifactWriter) path(stage, siteID, ext string, t time.Time) string {
	name := fmt.Sprintf("%s_%s_%s.%s", stage, siteID, t.Format("2006-01-02_15-04-05"), ext)
	return filepath.Join(w.dir, name)
}

// WriteJSON dumps v as a JSON artifact and returns its path.
func (w *ArtifactWriter) WriteJSON(stage, siteID string, v any) (string, error) {
	path := w.path(stage, siteID, "json", time.Now())
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s artifact: %w", stage, err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write %s artifact: %w", stage, err)
	}
	return path, nil
}

// WriteRecordsCSV dumps raw records as a CSV artifact for spreadsheet
// review.
func (w *ArtifactWriter) WriteRecordsCSV(stage, siteID string, records []models.RawRecord) (string, error) {
	path := w.path(stage, siteID, "csv", time.Now())
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s artifact: %w", stage, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	header := []string{"site_id", "city_name", "folder_no", "type", "application_date", "status", "address", "purpose", "details_link"}
	if err := cw.Write(header); err != nil {
		return "", err
	}
	for _, rec := range records {
		row := []string{rec.SiteID, rec.CityName, rec.FolderNo, rec.Type, rec.ApplicationDate, rec.Status, rec.Address, rec.Purpose, rec.DetailsLink}
		if err := cw.Write(row); err != nil {
			return "", err
		}
	}
	cw.Flush()
	return path, cw.Error()
}
