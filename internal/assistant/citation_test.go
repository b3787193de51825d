package assistant

import (
	"strings"
	"testing"
)

func TestCleanCitationsOutOfRange(t *testing.T) {
	t.Parallel()

	text := "Paris is the capital of France [cite:1]. It has been since 987 [cite:7], per (cite:2) and cite:9."
	got := CleanCitations(text, 2)

	if strings.Contains(got, "cite:7") || strings.Contains(got, "cite:9") {
		t.Fatalf("out-of-range markers survived: %q", got)
	}
	if !strings.Contains(got, "[cite:1]") || !strings.Contains(got, "(cite:2)") {
		t.Fatalf("in-range markers must be preserved: %q", got)
	}
}

func TestCleanCitationsNoSources(t *testing.T) {
	t.Parallel()

	text := "The answer [cite:1] relies on cite:2 and [cite: 3]."
	got := CleanCitations(text, 0)
	if strings.Contains(got, "cite:") {
		t.Fatalf("all markers must be removed with zero sources: %q", got)
	}
	if !strings.Contains(got, "The answer") || !strings.Contains(got, "relies on") {
		t.Fatalf("surrounding prose must survive: %q", got)
	}
}

// Cleanup must be idempotent: running it twice yields the first output.
func TestCleanCitationsIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []struct {
		text  string
		count int
	}{
		{"Mixed [cite:1] and [cite:5] with (cite:3) plus bare cite:12.", 3},
		{"No markers at all.", 4},
		{"[cite:1][cite:2][cite:3]", 0},
		{"Zero index [cite:0] is out of range too.", 5},
	}
	for _, in := range inputs {
		once := CleanCitations(in.text, in.count)
		twice := CleanCitations(once, in.count)
		if once != twice {
			t.Fatalf("not idempotent for %q: first %q, second %q", in.text, once, twice)
		}
	}
}

func TestCleanCitationsZeroIndex(t *testing.T) {
	t.Parallel()
	got := CleanCitations("Indices are one-based [cite:0].", 3)
	if strings.Contains(got, "cite:0") {
		t.Fatalf("[cite:0] must always be stripped: %q", got)
	}
}
