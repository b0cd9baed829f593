package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stenmark/docbridge/internal/engine"
	"github.com/stenmark/docbridge/internal/journal"
	"github.com/stenmark/docbridge/internal/mapping"
	"github.com/stenmark/docbridge/internal/testutil"
)

func testService(t *testing.T, run SyncRunner) *Service {
	t.Helper()
	db := testutil.TestJournal(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mappings, err := mapping.Load(filepath.Join(t.TempDir(), "mappings.json"), logger)
	if err != nil {
		t.Fatal(err)
	}
	return NewService(run, engine.Options{Mode: engine.ModeBidirectional, Strategy: engine.StrategyPrompt}, db, mappings)
}

func okRunner(report *engine.Report) SyncRunner {
	return func(_ context.Context, _ engine.Options) (*engine.Report, error) {
		return report, nil
	}
}

func TestSyncEndpoint(t *testing.T) {
	report := &engine.Report{
		Mode:     "auto",
		Strategy: "prompt",
		Outcomes: []engine.Outcome{{Path: "a.md", Status: engine.StatusCreated, PageID: "1"}},
	}
	svc := testService(t, okRunner(report))
	srv := httptest.NewServer(NewRouter(svc, false, "", nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/sync", "application/json", strings.NewReader(`{"dry_run": false}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got engine.Report
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.Outcomes) != 1 || got.Outcomes[0].Path != "a.md" {
		t.Errorf("report = %+v", &got)
	}
}

func TestSyncRejectsUnknownMode(t *testing.T) {
	svc := testService(t, okRunner(&engine.Report{}))
	srv := httptest.NewServer(NewRouter(svc, false, "", nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/sync", "application/json", strings.NewReader(`{"mode": "sideways"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	svc := testService(t, okRunner(&engine.Report{}))
	srv := httptest.NewServer(NewRouter(svc, true, "secret", nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/history")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/history", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", resp2.StatusCode)
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	svc := testService(t, okRunner(&engine.Report{}))
	if _, err := svc.journal.RecordRun(&engine.Report{
		Mode: "push", Strategy: "abort",
		Outcomes: []engine.Outcome{{Path: "x.md", Status: engine.StatusUpdated}},
	}); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(NewRouter(svc, false, "", nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/history?limit=5")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Runs []journal.RunRow `json:"runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Runs) != 1 || body.Runs[0].Mode != "push" {
		t.Errorf("runs = %+v", body.Runs)
	}

	detail, err := http.Get(srv.URL + "/history/1")
	if err != nil {
		t.Fatal(err)
	}
	defer detail.Body.Close()
	var det struct {
		Outcomes []engine.Outcome `json:"outcomes"`
	}
	if err := json.NewDecoder(detail.Body).Decode(&det); err != nil {
		t.Fatal(err)
	}
	if len(det.Outcomes) != 1 || det.Outcomes[0].Path != "x.md" {
		t.Errorf("outcomes = %+v", det.Outcomes)
	}
}
