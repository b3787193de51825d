package assistant

import "testing"

func TestNormalizeURLKey(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want string
	}{
		{"https://Example.com/Guide/", "https://example.com/guide"},
		{"https://example.com/guide#section-2", "https://example.com/guide"},
		{"  https://example.com/guide  ", "https://example.com/guide"},
		{"https://example.com", "https://example.com"},
		{"", ""},
		{"   ", ""},
		// Not a URL at all; still usable as a case-folded key.
		{"Some Title", "some title"},
	}
	for _, tc := range cases {
		if got := NormalizeURLKey(tc.in); got != tc.want {
			t.Errorf("NormalizeURLKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDedupeSourcesKeepsFirstTitle(t *testing.T) {
	t.Parallel()
	in := []Source{
		{Title: "Khan Academy", URL: "https://example.com/mitosis"},
		{Title: "Duplicate", URL: "https://EXAMPLE.com/mitosis/"},
		{Title: "Other", URL: "https://example.com/meiosis"},
		{Title: "No URL"},
	}
	out := DedupeSources(in)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(out), out)
	}
	if out[0].Title != "Khan Academy" || out[1].Title != "Other" {
		t.Fatalf("wrong survivors: %+v", out)
	}
}

func TestDedupeMedia(t *testing.T) {
	t.Parallel()
	in := []MediaItem{
		{Title: "Diagram", URL: "https://img.example.com/cell.png"},
		{Title: "Same diagram", URL: "https://img.example.com/cell.png#zoom"},
		{Title: "Animation", URL: "https://img.example.com/cell.gif"},
	}
	out := DedupeMedia(in)
	if len(out) != 2 {
		t.Fatalf("len = %d: %+v", len(out), out)
	}
	if out[0].Title != "Diagram" || out[1].Title != "Animation" {
		t.Fatalf("wrong survivors: %+v", out)
	}
}
