package search

import (
	"context"
	"fmt"
	"time"

	"github.com/studysage/sage/internal/assistant"
	"github.com/studysage/sage/internal/httpx"
)

const serperEndpoint = "https://google.serper.dev"

// Serper is the general-purpose provider behind web, image and video
// lookups (https://serper.dev docs). One client serves all three endpoints.
type Serper struct {
	APIKey   string
	Endpoint string

	client *httpx.Client
}

func NewSerper(apiKey string) *Serper {
	return &Serper{
		APIKey:   apiKey,
		Endpoint: serperEndpoint,
		client:   httpx.New(15*time.Second, 2, 300*time.Millisecond),
	}
}

func (s *Serper) Name() string { return "serper" }

func (s *Serper) headers() map[string]string {
	return map[string]string{"X-API-KEY": s.APIKey}
}

type serperOrganic struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type serperImage struct {
	Title        string `json:"title"`
	ImageURL     string `json:"imageUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Link         string `json:"link"`
}

type serperVideo struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	ImageURL string `json:"imageUrl"`
}

// Search queries the organic web results.
func (s *Serper) Search(ctx context.Context, query string, count int) ([]assistant.Source, error) {
	var resp struct {
		Organic []serperOrganic `json:"organic"`
	}
	payload := map[string]any{"q": query, "num": count}
	if err := s.client.DoJSON(ctx, "POST", s.Endpoint+"/search", s.headers(), payload, &resp); err != nil {
		return nil, fmt.Errorf("serper search: %w", err)
	}
	out := make([]assistant.Source, 0, len(resp.Organic))
	for i, r := range resp.Organic {
		if i >= count {
			break
		}
		out = append(out, assistant.Source{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}

// SerperImages exposes the image endpoint as a MediaSearcher.
type SerperImages struct{ *Serper }

func (s SerperImages) Name() string { return "serper_images" }

func (s SerperImages) SearchMedia(ctx context.Context, query string, count int) ([]assistant.MediaItem, error) {
	var resp struct {
		Images []serperImage `json:"images"`
	}
	payload := map[string]any{"q": query, "num": count}
	if err := s.client.DoJSON(ctx, "POST", s.Endpoint+"/images", s.headers(), payload, &resp); err != nil {
		return nil, fmt.Errorf("serper images: %w", err)
	}
	out := make([]assistant.MediaItem, 0, len(resp.Images))
	for i, r := range resp.Images {
		if i >= count {
			break
		}
		thumb := r.ThumbnailURL
		if thumb == "" {
			thumb = r.ImageURL
		}
		out = append(out, assistant.MediaItem{Title: r.Title, URL: r.ImageURL, Thumbnail: thumb})
	}
	return out, nil
}

// SerperVideos exposes the video endpoint as a MediaSearcher.
type SerperVideos struct{ *Serper }

func (s SerperVideos) Name() string { return "serper_videos" }

func (s SerperVideos) SearchMedia(ctx context.Context, query string, count int) ([]assistant.MediaItem, error) {
	var resp struct {
		Videos []serperVideo `json:"videos"`
	}
	payload := map[string]any{"q": query, "num": count}
	if err := s.client.DoJSON(ctx, "POST", s.Endpoint+"/videos", s.headers(), payload, &resp); err != nil {
		return nil, fmt.Errorf("serper videos: %w", err)
	}
	out := make([]assistant.MediaItem, 0, len(resp.Videos))
	for i, r := range resp.Videos {
		if i >= count {
			break
		}
		out = append(out, assistant.MediaItem{Title: r.Title, URL: r.Link, Thumbnail: r.ImageURL})
	}
	return out, nil
}
