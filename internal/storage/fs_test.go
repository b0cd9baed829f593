package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func testFS(t *testing.T) (*FS, string) {
	t.Helper()
	dir := t.TempDir()
	f, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return f, dir
}

func TestWriteAndRead(t *testing.T) {
	f, _ := testFS(t)
	if err := f.Write("guides/setup.md", []byte("# Setup\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := f.Read("guides/setup.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "# Setup\n" {
		t.Errorf("content = %q", data)
	}
}

func TestList_OnlyMarkdown(t *testing.T) {
	f, dir := testFS(t)
	_ = f.Write("a.md", []byte("a"))
	_ = f.Write("sub/b.md", []byte("b"))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	infos, err := f.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("len = %d, want 2", len(infos))
	}
	for _, info := range infos {
		if info.Checksum == "" {
			t.Errorf("missing checksum for %s", info.Path)
		}
	}
}

func TestSafePath_RejectsTraversal(t *testing.T) {
	f, _ := testFS(t)
	if _, err := f.Read("../escape.md"); err == nil {
		t.Error("expected traversal rejection")
	}
	if err := f.Write("/abs.md", []byte("x")); err == nil {
		t.Error("expected absolute path rejection")
	}
}

func TestWrite_Overwrite(t *testing.T) {
	f, _ := testFS(t)
	_ = f.Write("doc.md", []byte("old"))
	if err := f.Write("doc.md", []byte("new")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, _ := f.Read("doc.md")
	if string(data) != "new" {
		t.Errorf("content = %q", data)
	}
}
