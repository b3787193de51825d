package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/studysage/sage/internal/httpx"
)

func TestTavilySearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if body["api_key"] != "tv-key" || body["query"] != "capital of France" {
			t.Errorf("unexpected request body: %v", body)
		}
		if body["max_results"] != float64(2) || body["search_depth"] != "basic" {
			t.Errorf("unexpected search knobs: %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "Paris", "url": "https://en.wikipedia.org/wiki/Paris", "content": "Paris is the capital of France.", "score": 0.98},
				{"title": "France", "url": "https://en.wikipedia.org/wiki/France", "content": "France, officially the French Republic.", "score": 0.91},
				{"title": "Too many", "url": "https://example.com/over", "content": "dropped", "score": 0.5},
			},
		})
	}))
	defer srv.Close()

	tv := NewTavily("tv-key")
	tv.Endpoint = srv.URL

	got, err := tv.Search(context.Background(), "capital of France", 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected results capped at 2, got %d", len(got))
	}
	if got[0].Title != "Paris" || got[0].Snippet != "Paris is the capital of France." {
		t.Fatalf("unexpected first result: %+v", got[0])
	}
}

func TestTavilySearchUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tv := &Tavily{APIKey: "bad", Endpoint: srv.URL, client: httpx.New(time.Second, 0, 0)}
	if _, err := tv.Search(context.Background(), "anything", 3); err == nil {
		t.Fatalf("expected an error on upstream failure")
	}
}
