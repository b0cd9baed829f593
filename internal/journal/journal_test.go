package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stenmark/docbridge/internal/engine"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleReport() *engine.Report {
	now := time.Now().UTC().Truncate(time.Second)
	return &engine.Report{
		StartedAt:  now.Add(-2 * time.Second),
		FinishedAt: now,
		Mode:       "auto",
		Strategy:   "prompt",
		Outcomes: []engine.Outcome{
			{Path: "a.md", Status: engine.StatusCreated, PageID: "1"},
			{Path: "b.md", Status: engine.StatusSkipped, Reason: engine.SkipUnchanged},
			{Path: "c.md", Status: engine.StatusConflict, PageID: "3", RemoteVersion: 7},
			{Path: "d.md", Status: engine.StatusFailed, ErrorKind: engine.FailRemoteAPI, Message: "boom"},
		},
	}
}

func TestRecordAndReadBack(t *testing.T) {
	db := openTestDB(t)

	runID, err := db.RecordRun(sampleReport())
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	runs, err := db.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	r := runs[0]
	if r.ID != runID || r.Mode != "auto" || r.Strategy != "prompt" {
		t.Errorf("run = %+v", r)
	}
	if r.Created != 1 || r.Skipped != 1 || r.Conflicts != 1 || r.Failed != 1 {
		t.Errorf("tallies = %+v", r)
	}

	outcomes, err := db.RunOutcomes(runID)
	if err != nil {
		t.Fatalf("RunOutcomes: %v", err)
	}
	if len(outcomes) != 4 {
		t.Fatalf("outcomes = %d, want 4", len(outcomes))
	}
	if outcomes[0].Path != "a.md" || outcomes[0].Status != engine.StatusCreated {
		t.Errorf("first outcome = %+v", outcomes[0])
	}
	if outcomes[3].ErrorKind != engine.FailRemoteAPI || outcomes[3].Message != "boom" {
		t.Errorf("failed outcome = %+v", outcomes[3])
	}
}

func TestRecentRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	first, _ := db.RecordRun(sampleReport())
	second, _ := db.RecordRun(sampleReport())

	runs, err := db.RecentRuns(1)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != second {
		t.Errorf("runs = %+v, want only run %d (not %d)", runs, second, first)
	}
}

func TestRunOutcomesUnknownRunIsEmpty(t *testing.T) {
	db := openTestDB(t)
	outcomes, err := db.RunOutcomes(999)
	if err != nil {
		t.Fatalf("RunOutcomes: %v", err)
	}
	if len(outcomes) != 0 {
		t.Errorf("outcomes = %+v, want none", outcomes)
	}
}
