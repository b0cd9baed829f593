package checksum

import "testing"

func TestContent_StableAcrossCosmeticEdits(t *testing.T) {
	base := Content("# Title\n\nSome text.\n")

	variants := []string{
		"# Title\r\n\r\nSome text.\r\n",
		"# Title  \n\nSome text.\t\n",
		"# Title\n\nSome text.",
		"# Title\n\nSome text.\n\n\n",
	}
	for _, v := range variants {
		if got := Content(v); got != base {
			t.Errorf("Content(%q) = %s, want %s", v, got, base)
		}
	}
}

func TestContent_ChangesWithText(t *testing.T) {
	a := Content("# Title\n\nSome text.\n")
	b := Content("# Title\n\nOther text.\n")
	if a == b {
		t.Error("different text hashed identically")
	}
}

func TestNormalize_InteriorWhitespacePreserved(t *testing.T) {
	got := Normalize("a  b\n\n  indented\n")
	want := "a  b\n\n  indented"
	if got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}
