package search

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/studysage/sage/internal/assistant"
)

type stubWeb struct {
	name  string
	res   []assistant.Source
	err   error
	calls int32
}

func (s *stubWeb) Name() string { return s.name }

func (s *stubWeb) Search(ctx context.Context, query string, count int) ([]assistant.Source, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

type stubMedia struct {
	name  string
	res   []assistant.MediaItem
	err   error
	calls int32
}

func (s *stubMedia) Name() string { return s.name }

func (s *stubMedia) SearchMedia(ctx context.Context, query string, count int) ([]assistant.MediaItem, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

func TestToolsetCachesWebResults(t *testing.T) {
	t.Parallel()

	provider := &stubWeb{name: "serper", res: []assistant.Source{
		{Title: "Photosynthesis", URL: "https://example.com/photo"},
	}}
	current := time.Unix(1700000000, 0)
	ts := NewToolset([]WebSearcher{provider}, nil, nil, Options{
		CacheTTL: time.Minute,
		Clock:    func() time.Time { return current },
	})

	first := ts.SearchWeb(context.Background(), "photosynthesis", 3)
	second := ts.SearchWeb(context.Background(), "photosynthesis", 3)
	if got := atomic.LoadInt32(&provider.calls); got != 1 {
		t.Fatalf("expected one upstream call within TTL, got %d", got)
	}
	if len(first) != 1 || len(second) != 1 || second[0].URL != first[0].URL {
		t.Fatalf("cached result mismatch: first=%v second=%v", first, second)
	}

	// A different count is a different cache entry.
	ts.SearchWeb(context.Background(), "photosynthesis", 5)
	if got := atomic.LoadInt32(&provider.calls); got != 2 {
		t.Fatalf("expected count to participate in the cache key, got %d calls", got)
	}

	current = current.Add(61 * time.Second)
	ts.SearchWeb(context.Background(), "photosynthesis", 3)
	if got := atomic.LoadInt32(&provider.calls); got != 3 {
		t.Fatalf("expected a fresh upstream call after TTL expiry, got %d", got)
	}
}

func TestToolsetMergesAndDedupes(t *testing.T) {
	t.Parallel()

	a := &stubWeb{name: "serper", res: []assistant.Source{
		{Title: "Guide to Momentum", URL: "https://example.com/Guide#intro"},
		{Title: "Momentum FAQ", URL: "https://example.com/faq"},
	}}
	b := &stubWeb{name: "tavily", res: []assistant.Source{
		{Title: "Duplicate Guide", URL: "https://EXAMPLE.com/guide/"},
		{Title: "Momentum Lab", URL: "https://example.org/lab"},
		{Title: "Momentum Extra", URL: "https://example.org/extra"},
	}}
	ts := NewToolset([]WebSearcher{a, b}, nil, nil, Options{})

	got := ts.SearchWeb(context.Background(), "momentum", 3)
	if len(got) != 3 {
		t.Fatalf("expected merged results capped at 3, got %d: %v", len(got), got)
	}
	// Provider order decides which title survives the URL dedupe.
	if got[0].Title != "Guide to Momentum" {
		t.Fatalf("expected first provider's title to win, got %q", got[0].Title)
	}
	for _, s := range got {
		if s.Title == "Duplicate Guide" {
			t.Fatalf("duplicate URL survived the merge: %v", got)
		}
	}
}

func TestToolsetNegativeCachesFailures(t *testing.T) {
	t.Parallel()

	provider := &stubWeb{name: "serper", err: errors.New("upstream 500")}
	ts := NewToolset([]WebSearcher{provider}, nil, nil, Options{CacheTTL: time.Minute})

	if got := ts.SearchWeb(context.Background(), "broken", 3); len(got) != 0 {
		t.Fatalf("expected no results from a failing provider, got %v", got)
	}
	ts.SearchWeb(context.Background(), "broken", 3)
	if got := atomic.LoadInt32(&provider.calls); got != 1 {
		t.Fatalf("expected the failure to be cached, got %d upstream calls", got)
	}
}

func TestToolsetMediaDedupeAndCap(t *testing.T) {
	t.Parallel()

	images := &stubMedia{name: "serper_images", res: []assistant.MediaItem{
		{Title: "Cell diagram", URL: "https://img.example.com/cell.png"},
		{Title: "Cell diagram again", URL: "https://img.example.com/cell.png"},
		{Title: "Leaf closeup", URL: "https://img.example.com/leaf.png"},
		{Title: "Chloroplast", URL: "https://img.example.com/chloroplast.png"},
	}}
	ts := NewToolset(nil, images, nil, Options{})

	got := ts.SearchImages(context.Background(), "photosynthesis diagram", 2)
	if len(got) != 2 {
		t.Fatalf("expected media capped at 2, got %d", len(got))
	}
	if got[0].URL == got[1].URL {
		t.Fatalf("duplicate media URL survived: %v", got)
	}
}

func TestToolsetShortCircuits(t *testing.T) {
	t.Parallel()

	provider := &stubWeb{name: "serper", res: []assistant.Source{{Title: "x", URL: "https://x"}}}
	ts := NewToolset([]WebSearcher{provider}, nil, nil, Options{})

	if got := ts.SearchWeb(context.Background(), "   ", 3); got != nil {
		t.Fatalf("expected nil for blank query, got %v", got)
	}
	if got := ts.SearchWeb(context.Background(), "ok", 0); got != nil {
		t.Fatalf("expected nil for zero count, got %v", got)
	}
	if got := ts.SearchImages(context.Background(), "ok", 2); got != nil {
		t.Fatalf("expected nil without an image provider, got %v", got)
	}
	if got := atomic.LoadInt32(&provider.calls); got != 0 {
		t.Fatalf("provider should not have been called, got %d", got)
	}
}

func TestToolsetCapabilities(t *testing.T) {
	t.Parallel()

	empty := NewToolset(nil, nil, nil, Options{})
	if empty.HasWeb() || empty.HasImages() || empty.HasVideos() {
		t.Fatalf("empty toolset should report no capabilities")
	}

	full := NewToolset(
		[]WebSearcher{&stubWeb{name: "serper"}},
		&stubMedia{name: "serper_images"},
		&stubMedia{name: "serper_videos"},
		Options{},
	)
	if !full.HasWeb() || !full.HasImages() || !full.HasVideos() {
		t.Fatalf("configured toolset should report all capabilities")
	}
}
