package frontmatter

import (
	"strings"
	"testing"
	"time"

	"github.com/stenmark/docbridge/internal/models"
)

func TestParse_HeaderAndBody(t *testing.T) {
	input := "---\ntitle: Release Notes\nlabels:\n  - docs\n  - release\n---\n# Release Notes\nBody text.\n"
	fm, body := Parse(input)
	if got := fm.ScalarOf("title"); got != "Release Notes" {
		t.Errorf("title = %q, want %q", got, "Release Notes")
	}
	labels := fm.StringsOf("labels")
	if len(labels) != 2 || labels[0] != "docs" || labels[1] != "release" {
		t.Errorf("labels = %v, want [docs release]", labels)
	}
	if body != "# Release Notes\nBody text.\n" {
		t.Errorf("body = %q", body)
	}
}

func TestParse_NoHeader(t *testing.T) {
	input := "# Just a heading\nSome text.\n"
	fm, body := Parse(input)
	if fm != nil {
		t.Errorf("expected nil frontmatter, got %v", fm)
	}
	if body != input {
		t.Errorf("body = %q, want original content", body)
	}
}

func TestParse_UnterminatedHeaderFailSoft(t *testing.T) {
	input := "---\ntitle: Broken\nno closing delimiter\n"
	fm, body := Parse(input)
	if len(fm) != 0 {
		t.Errorf("expected empty frontmatter, got %v", fm)
	}
	if body != input {
		t.Errorf("body = %q, want original content untouched", body)
	}
}

func TestParse_InvalidYAMLFailSoft(t *testing.T) {
	input := "---\n: invalid: yaml: {{{\n---\nBody\n"
	fm, body := Parse(input)
	if len(fm) != 0 {
		t.Errorf("expected empty frontmatter, got %v", fm)
	}
	if body != input {
		t.Errorf("body = %q, want original content untouched", body)
	}
}

func TestParse_NonMappingHeaderFailSoft(t *testing.T) {
	input := "---\njust a scalar\n---\nBody\n"
	fm, body := Parse(input)
	if len(fm) != 0 || body != input {
		t.Errorf("fm = %v, body = %q, want fail-soft", fm, body)
	}
}

func TestParse_PreservesKeyOrder(t *testing.T) {
	input := "---\nzeta: 1\nalpha: 2\nmid: 3\n---\nbody\n"
	fm, _ := Parse(input)
	want := []string{"zeta", "alpha", "mid"}
	if len(fm) != len(want) {
		t.Fatalf("len(fm) = %d, want %d", len(fm), len(want))
	}
	for i, k := range want {
		if fm[i].Key != k {
			t.Errorf("fm[%d].Key = %q, want %q", i, fm[i].Key, k)
		}
	}
}

func TestParse_NestedValues(t *testing.T) {
	input := "---\nmeta:\n  owner: docs-team\n  reviewers:\n    - ada\n    - linus\n---\nbody\n"
	fm, _ := Parse(input)
	v, ok := fm.Get("meta")
	if !ok || v.Kind != KindMap {
		t.Fatalf("meta = %+v, want nested map", v)
	}
	if got := v.Map.ScalarOf("owner"); got != "docs-team" {
		t.Errorf("owner = %q", got)
	}
	reviewers, _ := v.Map.Get("reviewers")
	if reviewers.Kind != KindList || len(reviewers.List) != 2 {
		t.Errorf("reviewers = %+v, want 2-element list", reviewers)
	}
}

func TestParse_EmptyHeader(t *testing.T) {
	fm, body := Parse("---\n---\nbody\n")
	if fm == nil || len(fm) != 0 {
		t.Errorf("fm = %v, want empty non-nil", fm)
	}
	if body != "body\n" {
		t.Errorf("body = %q", body)
	}
}

func TestSerialize_RoundTrips(t *testing.T) {
	meta := models.PageMetadata{
		PageID:     "12345",
		SpaceKey:   "DOCS",
		Title:      "Runbook",
		Version:    7,
		ModifiedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Author:     "j.smith",
		Labels:     []string{"ops", "runbook"},
	}
	block := Serialize(meta)
	if !strings.HasPrefix(block, "---\n") || !strings.HasSuffix(block, "---\n\n") {
		t.Fatalf("block not delimited: %q", block)
	}

	fm, body := Parse(block + "content")
	if body != "content" {
		t.Errorf("body = %q", body)
	}
	if got := fm.ScalarOf(KeyPageID); got != "12345" {
		t.Errorf("page id = %q", got)
	}
	if got := fm.ScalarOf(KeyVersion); got != "7" {
		t.Errorf("version = %q", got)
	}
	labels := fm.StringsOf(KeyLabels)
	if len(labels) != 2 || labels[0] != "ops" {
		t.Errorf("labels = %v", labels)
	}
}

func TestSerialize_OmitsEmptyFields(t *testing.T) {
	block := Serialize(models.PageMetadata{PageID: "1", Title: "T"})
	for _, absent := range []string{KeyParentID, KeyModifiedBy, KeyLabels, KeyModified} {
		if strings.Contains(block, absent) {
			t.Errorf("block contains %q: %s", absent, block)
		}
	}
}

func TestSerialize_Deterministic(t *testing.T) {
	meta := models.PageMetadata{PageID: "9", SpaceKey: "A", Title: "T", Version: 2}
	if Serialize(meta) != Serialize(meta) {
		t.Error("serialization is not deterministic")
	}
}
