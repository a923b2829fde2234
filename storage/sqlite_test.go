package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ys-23412/sbcontest2/models"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := testStore(t)

	run := &models.ScrapeRun{
		SiteID:    "victoria",
		StartedAt: time.Now().Add(-time.Minute),
		Status:    models.RunStatusRunning,
	}
	id, err := store.CreateRun(run)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected a run id")
	}
	run.ID = id

	finished := time.Now()
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.RecordsFound = 12
	run.RecordsFiltered = 4
	run.RecordsMapped = 4
	run.EntriesInserted = 3
	run.EntriesFailed = 1
	if err := store.UpdateRun(run); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	runs, err := store.RecentRuns(5)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.SiteID != "victoria" || got.Status != models.RunStatusCompleted {
		t.Fatalf("unexpected run %+v", got)
	}
	if got.RecordsFound != 12 || got.EntriesInserted != 3 || got.EntriesFailed != 1 {
		t.Fatalf("counters not persisted: %+v", got)
	}
	if got.FinishedAt == nil {
		t.Fatalf("finished time not persisted")
	}
}

func TestGetLastRunTime(t *testing.T) {
	store := testStore(t)

	last, err := store.GetLastRunTime("victoria")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !last.IsZero() {
		t.Fatalf("expected zero time for site with no runs, got %v", last)
	}

	started := time.Now().Truncate(time.Second)
	id, err := store.CreateRun(&models.ScrapeRun{SiteID: "victoria", StartedAt: started, Status: models.RunStatusRunning})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	finished := time.Now()
	if err := store.UpdateRun(&models.ScrapeRun{ID: id, SiteID: "victoria", StartedAt: started, FinishedAt: &finished, Status: models.RunStatusCompleted}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	// A running run on another site must not shadow the completed one.
	if _, err := store.CreateRun(&models.ScrapeRun{SiteID: "saanich", StartedAt: time.Now(), Status: models.RunStatusRunning}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	last, err = store.GetLastRunTime("victoria")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if last.IsZero() {
		t.Fatalf("expected the completed run's start time")
	}
}

func TestLog(t *testing.T) {
	store := testStore(t)

	runID := int64(7)
	if err := store.Log(&runID, models.LogLevelWarn, "Excluding BP1: unparseable date", "sidney"); err != nil {
		t.Fatalf("log with run failed: %v", err)
	}
	if err := store.Log(nil, models.LogLevelInfo, "healthcheck pass", "healthcheck"); err != nil {
		t.Fatalf("log without run failed: %v", err)
	}
}
