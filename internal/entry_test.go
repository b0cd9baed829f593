package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stenmark/docbridge/internal/apperr"
	"github.com/stenmark/docbridge/internal/engine"
	"github.com/stenmark/docbridge/internal/models"
	"github.com/stenmark/docbridge/internal/testutil"
)

// stubWiki is a minimal in-memory wiki client for wiring tests.
type stubWiki struct {
	mu     sync.Mutex
	pages  map[string]*models.RemotePage
	nextID int
}

func newStubWiki() *stubWiki {
	return &stubWiki{pages: map[string]*models.RemotePage{}, nextID: 1}
}

func (s *stubWiki) GetPage(_ context.Context, pageID string) (*models.RemotePage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("%w: page %s not found", apperr.ErrRemoteAPI, pageID)
	}
	cp := *p
	return &cp, nil
}

func (s *stubWiki) GetSpacePages(_ context.Context, _ string) ([]models.PageSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PageSummary
	for _, p := range s.pages {
		out = append(out, models.PageSummary{ID: p.ID, Title: p.Title, Version: p.Version})
	}
	return out, nil
}

func (s *stubWiki) CreatePage(_ context.Context, spaceKey, title, storageBody, parentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := strconv.Itoa(s.nextID)
	s.nextID++
	s.pages[id] = &models.RemotePage{ID: id, Title: title, SpaceKey: spaceKey, ParentID: parentID, Version: 1, Body: storageBody}
	return id, nil
}

func (s *stubWiki) UpdatePage(_ context.Context, pageID, title, storageBody string, expectedVersion int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[pageID]
	if !ok {
		return 0, fmt.Errorf("%w: page %s not found", apperr.ErrRemoteAPI, pageID)
	}
	if p.Version != expectedVersion {
		return 0, fmt.Errorf("%w: have %d, got %d", apperr.ErrVersionConflict, p.Version, expectedVersion)
	}
	p.Title = title
	p.Body = storageBody
	p.Version++
	return p.Version, nil
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	docsDir, _ := testutil.TestDocs(t)
	state := t.TempDir()

	cfg := NewDefaultConfig()
	cfg.Sync.SyncDirectory = docsDir
	cfg.Sync.MappingFile = filepath.Join(state, "mappings.json")
	cfg.Journal.Path = filepath.Join(state, "journal.db")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	return cfg
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunSyncEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(filepath.Join(cfg.Sync.SyncDirectory, "guide.md"),
		[]byte("# Guide\n\nbody\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	wikiStub := newStubWiki()

	report, err := RunSync(context.Background(),
		WithConfig(cfg), WithWikiClient(wikiStub), WithLogger(quiet()))
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	if got := report.Count(engine.StatusCreated); got != 1 {
		t.Fatalf("created = %d, want 1; report %+v", got, report.Outcomes)
	}

	// The run is journaled and the mapping persisted.
	info, err := Status(WithConfig(cfg), WithWikiClient(wikiStub), WithLogger(quiet()))
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if info.MappedFiles != 1 {
		t.Errorf("mapped files = %d, want 1", info.MappedFiles)
	}
	if info.LastRun == nil || info.LastRun.Created != 1 {
		t.Errorf("last run = %+v", info.LastRun)
	}

	runs, err := History(10, WithConfig(cfg), WithWikiClient(wikiStub), WithLogger(quiet()))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("runs = %d, want 1", len(runs))
	}
}

func TestRunSyncDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sync.Enabled = false

	_, err := RunSync(context.Background(),
		WithConfig(cfg), WithWikiClient(newStubWiki()), WithLogger(quiet()))
	if err == nil {
		t.Fatal("disabled sync must refuse to run")
	}
}

func TestRunSyncRejectsUnknownMode(t *testing.T) {
	cfg := testConfig(t)
	_, err := RunSync(context.Background(),
		WithConfig(cfg), WithWikiClient(newStubWiki()), WithLogger(quiet()), WithMode("sideways"))
	if err == nil {
		t.Fatal("unknown mode must fail")
	}
}

func TestRunPullEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	wikiStub := newStubWiki()
	id, err := wikiStub.CreatePage(context.Background(), "DOCS", "Runbook", "<h1>Runbook</h1><p>steps</p>", "")
	if err != nil {
		t.Fatal(err)
	}

	outcome, err := RunPull(context.Background(), id, "ops/runbook.md",
		WithConfig(cfg), WithWikiClient(wikiStub), WithLogger(quiet()))
	if err != nil {
		t.Fatalf("RunPull: %v", err)
	}
	if outcome.Status != engine.StatusCreated {
		t.Errorf("outcome = %+v", outcome)
	}
	if _, err := os.Stat(filepath.Join(cfg.Sync.SyncDirectory, "ops", "runbook.md")); err != nil {
		t.Errorf("pulled file missing: %v", err)
	}
}

func TestRunPullUnknownPage(t *testing.T) {
	cfg := testConfig(t)
	_, err := RunPull(context.Background(), "999", "x.md",
		WithConfig(cfg), WithWikiClient(newStubWiki()), WithLogger(quiet()))
	if err == nil {
		t.Fatal("pulling an unknown page must fail")
	}
}
