// Package search holds the raw search-provider clients and the Toolset that
// fronts them for the pipeline: caching, per-call timeouts, fan-out, and the
// no-throw contract at the orchestration boundary.
package search

import (
	"context"

	"github.com/studysage/sage/internal/assistant"
)

// WebSearcher is one raw web-search provider. Name qualifies cache keys and
// metrics labels.
type WebSearcher interface {
	Name() string
	Search(ctx context.Context, query string, count int) ([]assistant.Source, error)
}

// MediaSearcher is one raw image or video provider.
type MediaSearcher interface {
	Name() string
	SearchMedia(ctx context.Context, query string, count int) ([]assistant.MediaItem, error)
}
