package mapping

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "mappings.json"), discard())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Len() != 0 || s.Corrupt() {
		t.Errorf("len = %d corrupt = %v, want empty clean store", s.Len(), s.Corrupt())
	}
}

func TestLoad_CorruptFileIsEmptyWithWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path, discard())
	if err != nil {
		t.Fatalf("Load must not fail on corrupt input: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("len = %d, want 0", s.Len())
	}
	if !s.Corrupt() {
		t.Error("corrupt flag not set")
	}
}

func TestPut_PersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	s, _ := Load(path, discard())

	e := Entry{
		PageID:                  "100",
		SpaceKey:                "DOCS",
		LastSyncedHash:          "abc",
		LastSyncedRemoteVersion: 3,
		LastSyncedAt:            time.Now().UTC(),
	}
	if err := s.Put("guides/setup.md", e); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reloaded, _ := Load(path, discard())
	got, ok := reloaded.Get("guides/setup.md")
	if !ok {
		t.Fatal("entry not persisted")
	}
	if got.PageID != "100" || got.LastSyncedRemoteVersion != 3 {
		t.Errorf("entry = %+v", got)
	}
}

func TestLoad_IgnoresUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	doc := `{"a.md": {"page_id": "1", "space_key": "D", "last_synced_hash": "h", "last_synced_remote_version": 2, "future_field": {"x": 1}}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	s, _ := Load(path, discard())
	e, ok := s.Get("a.md")
	if !ok || e.PageID != "1" || e.LastSyncedRemoteVersion != 2 {
		t.Errorf("entry = %+v ok = %v", e, ok)
	}
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	s, _ := Load(path, discard())
	_ = s.Put("a.md", Entry{PageID: "1"})

	if err := s.Remove("a.md"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := s.Get("a.md"); ok {
		t.Error("entry still present")
	}

	reloaded, _ := Load(path, discard())
	if reloaded.Len() != 0 {
		t.Error("removal not persisted")
	}
}

func TestReconcile_RemovesVanishedFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	s, _ := Load(path, discard())
	_ = s.Put("kept.md", Entry{PageID: "1"})
	_ = s.Put("gone.md", Entry{PageID: "2"})

	removed, err := s.Reconcile(func(p string) bool { return p == "kept.md" })
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(removed) != 1 || removed[0] != "gone.md" {
		t.Errorf("removed = %v", removed)
	}
	if _, ok := s.Get("kept.md"); !ok {
		t.Error("kept entry removed")
	}
}

func TestPut_RollsBackOnSaveFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mappings.json")
	s, _ := Load(path, discard())
	_ = s.Put("a.md", Entry{PageID: "1", LastSyncedHash: "h0"})

	// Make the directory unwritable so the atomic save fails.
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	if err := s.Put("a.md", Entry{PageID: "1", LastSyncedHash: "h1"}); err == nil {
		t.Skip("filesystem permits writes despite chmod; cannot exercise failure path")
	}
	got, _ := s.Get("a.md")
	if got.LastSyncedHash != "h0" {
		t.Errorf("entry mutated despite failed save: %+v", got)
	}
}
