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

func TestSerperSearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("expected path /search, got %s", r.URL.Path)
		}
		if got := r.Header.Get("X-API-KEY"); got != "test-key" {
			t.Errorf("expected api key header, got %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if body["q"] != "photosynthesis" || body["num"] != float64(2) {
			t.Errorf("unexpected request body: %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"organic": []map[string]string{
				{"title": "Photosynthesis - Wikipedia", "link": "https://en.wikipedia.org/wiki/Photosynthesis", "snippet": "Process used by plants"},
				{"title": "Khan Academy", "link": "https://khanacademy.org/photosynthesis", "snippet": "Intro lesson"},
				{"title": "Beyond the cap", "link": "https://example.com/extra", "snippet": "should be dropped"},
			},
		})
	}))
	defer srv.Close()

	s := NewSerper("test-key")
	s.Endpoint = srv.URL

	got, err := s.Search(context.Background(), "photosynthesis", 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected results capped at 2, got %d", len(got))
	}
	if got[0].URL != "https://en.wikipedia.org/wiki/Photosynthesis" || got[0].Snippet != "Process used by plants" {
		t.Fatalf("unexpected first result: %+v", got[0])
	}
}

func TestSerperImagesThumbnailFallback(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images" {
			t.Errorf("expected path /images, got %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"images": []map[string]string{
				{"title": "Leaf cross-section", "imageUrl": "https://img.example.com/leaf.png", "thumbnailUrl": "https://img.example.com/leaf_t.png"},
				{"title": "Chloroplast", "imageUrl": "https://img.example.com/chloro.png"},
			},
		})
	}))
	defer srv.Close()

	s := NewSerper("k")
	s.Endpoint = srv.URL

	got, err := SerperImages{s}.SearchMedia(context.Background(), "leaf diagram", 3)
	if err != nil {
		t.Fatalf("images failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0].Thumbnail != "https://img.example.com/leaf_t.png" {
		t.Fatalf("expected explicit thumbnail, got %q", got[0].Thumbnail)
	}
	if got[1].Thumbnail != "https://img.example.com/chloro.png" {
		t.Fatalf("expected thumbnail to fall back to the image URL, got %q", got[1].Thumbnail)
	}
}

func TestSerperVideos(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos" {
			t.Errorf("expected path /videos, got %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"videos": []map[string]string{
				{"title": "Photosynthesis explained", "link": "https://video.example.com/watch?v=1", "imageUrl": "https://video.example.com/1.jpg"},
			},
		})
	}))
	defer srv.Close()

	s := NewSerper("k")
	s.Endpoint = srv.URL

	got, err := SerperVideos{s}.SearchMedia(context.Background(), "photosynthesis video", 2)
	if err != nil {
		t.Fatalf("videos failed: %v", err)
	}
	if len(got) != 1 || got[0].URL != "https://video.example.com/watch?v=1" || got[0].Thumbnail != "https://video.example.com/1.jpg" {
		t.Fatalf("unexpected video mapping: %+v", got)
	}
}

func TestSerperSearchUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := &Serper{APIKey: "k", Endpoint: srv.URL, client: httpx.New(time.Second, 0, 0)}
	if _, err := s.Search(context.Background(), "anything", 2); err == nil {
		t.Fatalf("expected an error on upstream failure")
	}
}
