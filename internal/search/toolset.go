package search

import (
	"context"
	"io"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/studysage/sage/internal/assistant"
	"github.com/studysage/sage/internal/cache"
	"github.com/studysage/sage/internal/telemetry"
)

// Defaults chosen so one slow provider cannot eat the whole answer budget.
const (
	DefaultCallTimeout = 4 * time.Second
	DefaultCacheTTL    = 5 * time.Minute
)

// Options tunes a Toolset. The zero value is usable.
type Options struct {
	CacheTTL    time.Duration
	CallTimeout time.Duration
	Telemetry   *telemetry.Telemetry
	Logger      *log.Logger
	Clock       func() time.Time
}

// Toolset bundles the configured search providers behind the no-throw tool
// contract: provider and transport failures degrade to empty result sets,
// never to errors the pipeline has to handle. Results are cached per
// provider and query, so repeated lookups within the TTL cost one upstream
// call.
type Toolset struct {
	web    []WebSearcher
	images MediaSearcher
	videos MediaSearcher

	webCache   *cache.Cache[[]assistant.Source]
	mediaCache *cache.Cache[[]assistant.MediaItem]

	timeout time.Duration
	tele    *telemetry.Telemetry
	logger  *log.Logger
}

func NewToolset(web []WebSearcher, images, videos MediaSearcher, opts Options) *Toolset {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	var copts []cache.Option
	if opts.Clock != nil {
		copts = append(copts, cache.WithClock(opts.Clock))
	}
	return &Toolset{
		web:        web,
		images:     images,
		videos:     videos,
		webCache:   cache.New[[]assistant.Source](ttl, copts...),
		mediaCache: cache.New[[]assistant.MediaItem](ttl, copts...),
		timeout:    timeout,
		tele:       opts.Telemetry,
		logger:     logger,
	}
}

func (t *Toolset) HasWeb() bool    { return len(t.web) > 0 }
func (t *Toolset) HasImages() bool { return t.images != nil }
func (t *Toolset) HasVideos() bool { return t.videos != nil }

// SearchWeb fans the query out to every configured provider, merges the
// results in provider order and dedupes them by URL, keeping the first
// title seen for each page.
func (t *Toolset) SearchWeb(ctx context.Context, query string, count int) []assistant.Source {
	query = strings.TrimSpace(query)
	if query == "" || count <= 0 || !t.HasWeb() {
		return nil
	}
	results := make([][]assistant.Source, len(t.web))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range t.web {
		i, p := i, p
		g.Go(func() error {
			results[i] = t.webOnce(gctx, p, query, count)
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]assistant.Source, 0, count*len(t.web))
	for _, r := range results {
		merged = append(merged, r...)
	}
	merged = assistant.DedupeSources(merged)
	if len(merged) > count {
		merged = merged[:count]
	}
	return merged
}

func (t *Toolset) SearchImages(ctx context.Context, query string, count int) []assistant.MediaItem {
	query = strings.TrimSpace(query)
	if query == "" || count <= 0 || t.images == nil {
		return nil
	}
	items := assistant.DedupeMedia(t.mediaOnce(ctx, t.images, query, count))
	if len(items) > count {
		items = items[:count]
	}
	return items
}

func (t *Toolset) SearchVideos(ctx context.Context, query string, count int) []assistant.MediaItem {
	query = strings.TrimSpace(query)
	if query == "" || count <= 0 || t.videos == nil {
		return nil
	}
	items := assistant.DedupeMedia(t.mediaOnce(ctx, t.videos, query, count))
	if len(items) > count {
		items = items[:count]
	}
	return items
}

func (t *Toolset) webOnce(ctx context.Context, p WebSearcher, query string, count int) []assistant.Source {
	key := cache.Key(p.Name(), query, count)
	if hit, ok := t.webCache.Get(key); ok {
		t.tele.CountToolCall(p.Name(), true)
		return hit
	}
	t.tele.CountToolCall(p.Name(), false)

	cctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	res, err := p.Search(cctx, query, count)
	if err != nil {
		t.logger.Printf("web provider %s failed: %v", p.Name(), err)
		res = nil
	}
	// Failures are cached too. An empty entry keeps a flapping provider
	// from being retried on every message for the length of the TTL.
	t.webCache.Put(key, res)
	return res
}

func (t *Toolset) mediaOnce(ctx context.Context, p MediaSearcher, query string, count int) []assistant.MediaItem {
	key := cache.Key(p.Name(), query, count)
	if hit, ok := t.mediaCache.Get(key); ok {
		t.tele.CountToolCall(p.Name(), true)
		return hit
	}
	t.tele.CountToolCall(p.Name(), false)

	cctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	res, err := p.SearchMedia(cctx, query, count)
	if err != nil {
		t.logger.Printf("media provider %s failed: %v", p.Name(), err)
		res = nil
	}
	t.mediaCache.Put(key, res)
	return res
}
