// Package retrieval keeps a small in-memory full-text index per chat
// session so the draft prompt can carry related earlier answers. Sessions
// age out of an LRU; nothing is persisted.
package retrieval

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultMaxSessions = 256
	DefaultSessionTTL  = 30 * time.Minute

	snippetLen = 300
)

// Doc is one indexed turn.
type Doc struct {
	ID   string
	Text string
}

// corpus pairs a bleve index with the original docs; bleve only scores,
// the meta map serves the text back.
type corpus struct {
	mu   sync.RWMutex
	idx  bleve.Index
	meta map[string]Doc
}

// Store holds one index per active session. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, *corpus]
	logger   *log.Logger
}

func New(maxSessions int, ttl time.Duration, logger *log.Logger) *Store {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{
		sessions: expirable.NewLRU[string, *corpus](maxSessions, nil, ttl),
		logger:   logger,
	}
}

// Index adds one turn's text to the session corpus.
func (s *Store) Index(sessionID, text string) error {
	text = strings.TrimSpace(text)
	if sessionID == "" || text == "" {
		return nil
	}
	c, err := s.corpusFor(sessionID)
	if err != nil {
		return err
	}
	doc := Doc{ID: uuid.NewString(), Text: text}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meta[doc.ID] = doc
	return c.idx.Index(doc.ID, doc)
}

// Context implements assistant.Retriever: the top k snippets from earlier
// turns that match the query. Failures return nil; prompt enrichment is
// never worth failing a request over.
func (s *Store) Context(ctx context.Context, sessionID, query string, k int) []string {
	if sessionID == "" || strings.TrimSpace(query) == "" || k <= 0 {
		return nil
	}
	s.mu.Lock()
	c, ok := s.sessions.Get(sessionID)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	// MatchQuery analyzes the raw message; query-string syntax would choke
	// on ordinary punctuation in chat text.
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequestOptions(q, k*3, 0, false)
	res, err := c.idx.SearchInContext(ctx, req)
	if err != nil {
		s.logger.Printf("search session %s: %v", sessionID, err)
		return nil
	}
	out := make([]string, 0, k)
	for _, hit := range res.Hits {
		doc, ok := c.meta[hit.ID]
		if !ok {
			continue
		}
		out = append(out, snippet(doc.Text))
		if len(out) >= k {
			break
		}
	}
	return out
}

func (s *Store) corpusFor(sessionID string) (*corpus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.sessions.Get(sessionID); ok {
		return c, nil
	}
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create session index: %w", err)
	}
	c := &corpus{idx: idx, meta: make(map[string]Doc)}
	s.sessions.Add(sessionID, c)
	return c, nil
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= snippetLen {
		return s
	}
	return string(r[:snippetLen]) + "…"
}
