// Package articles caches extracted study-material content in redis and
// refreshes stale entries with a readability pass over the live page.
package articles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/redis/go-redis/v9"

	"github.com/studysage/sage/internal/assistant"
)

const (
	keyPrefix    = "article:"
	maxBodyBytes = 2 << 20

	DefaultTTL          = 24 * time.Hour
	DefaultFetchTimeout = 5 * time.Second
)

// record is the cached form of one extracted article.
type record struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Cache resolves article references against redis, falling back to a live
// fetch plus readability extraction when the cache misses. It implements
// assistant.ArticleProvider; a nil redis client degrades to fetch-only.
type Cache struct {
	rdb     *redis.Client
	ttl     time.Duration
	timeout time.Duration
	client  *http.Client
	logger  *log.Logger
	now     func() time.Time
}

type Options struct {
	TTL          time.Duration
	FetchTimeout time.Duration
	Logger       *log.Logger
	Clock        func() time.Time
}

func New(rdb *redis.Client, opts Options) *Cache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Cache{
		rdb:     rdb,
		ttl:     ttl,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		now:     now,
	}
}

// Lookup returns the freshest content known for ref. Cache hits keep their
// stored FetchedAt so the caller's staleness rules still apply.
func (c *Cache) Lookup(ctx context.Context, ref assistant.ArticleRef) (assistant.ArticleRef, bool) {
	if strings.TrimSpace(ref.URL) == "" {
		return ref, false
	}
	key := keyPrefix + assistant.NormalizeURLKey(ref.URL)

	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, key).Result()
		switch {
		case err == nil:
			var rec record
			if json.Unmarshal([]byte(raw), &rec) == nil && rec.Content != "" {
				return merge(ref, rec), true
			}
		case err != redis.Nil:
			c.logger.Printf("redis get %s: %v", key, err)
		}
	}

	rec, err := c.fetch(ctx, ref.URL)
	if err != nil {
		c.logger.Printf("refresh %s: %v", ref.URL, err)
		return ref, false
	}
	if c.rdb != nil {
		if data, err := json.Marshal(rec); err == nil {
			if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
				c.logger.Printf("redis set %s: %v", key, err)
			}
		}
	}
	return merge(ref, rec), true
}

func merge(ref assistant.ArticleRef, rec record) assistant.ArticleRef {
	ref.Content = rec.Content
	ref.FetchedAt = rec.FetchedAt
	if ref.Title == "" {
		ref.Title = rec.Title
	}
	return ref
}

func (c *Cache) fetch(ctx context.Context, rawURL string) (record, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return record{}, fmt.Errorf("bad article url %q", rawURL)
	}
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return record{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return record{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return record{}, fmt.Errorf("fetch returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return record{}, err
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), u)
	if err != nil {
		return record{}, fmt.Errorf("extract article: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return record{}, fmt.Errorf("no extractable text at %s", u.Host)
	}
	return record{
		Title:     strings.TrimSpace(article.Title),
		Content:   text,
		FetchedAt: c.now(),
	}, nil
}

var _ assistant.ArticleProvider = (*Cache)(nil)
