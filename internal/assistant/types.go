package assistant

import (
	"context"
	"time"
)

// Message roles as they appear in chat history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn, most recent last in a history slice.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ArticleRef points at study material the user is asking about. Content may
// arrive inline from the extraction service or be resolved from the article
// cache; FetchedAt records when that content was extracted.
type ArticleRef struct {
	Title     string    `json:"title,omitempty"`
	URL       string    `json:"url,omitempty"`
	Content   string    `json:"content,omitempty"`
	FetchedAt time.Time `json:"fetched_at,omitempty"`
}

// Request is one inbound chat call. It is owned by a single pipeline
// invocation and never shared.
type Request struct {
	Message    string      `json:"message"`
	History    []Message   `json:"history,omitempty"`
	SessionID  string      `json:"session_id,omitempty"`
	UserID     string      `json:"user_id,omitempty"`
	Article    *ArticleRef `json:"article,omitempty"`
	Preference string      `json:"preference,omitempty"`
}

// Plan is the structured draft the generator produces on the first pass.
// The same value is mutated in place as later passes refine the answer.
// Parsed records whether the generator output parsed as JSON or had to be
// taken as raw text (in which case every need flag stays false).
type Plan struct {
	Answer     string `json:"answer"`
	NeedWeb    bool   `json:"needWeb"`
	NeedImages bool   `json:"needImages"`
	NeedVideo  bool   `json:"needVideo"`
	WebQuery   string `json:"webQuery,omitempty"`
	ImageQuery string `json:"imageQuery,omitempty"`
	VideoQuery string `json:"videoQuery,omitempty"`

	Parsed bool `json:"-"`
}

// Source is one web reference backing the answer.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// MediaItem is one image or video attachment.
type MediaItem struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Payload is the externally visible result of a pipeline run. It is
// immutable once returned. Trace carries run metadata for persistence and
// telemetry and stays off the wire.
type Payload struct {
	Answer  string      `json:"answer"`
	Sources []Source    `json:"sources"`
	Images  []MediaItem `json:"images"`
	Videos  []MediaItem `json:"videos"`

	Trace Trace `json:"-"`
}

// Trace records what the pipeline decided and how long it ran.
type Trace struct {
	UsedWeb        bool
	DecisionReason Reason
	WebQuery       string
	PlanParsed     bool
	Revised        bool
	Elapsed        time.Duration
}

// Generator produces model text for a prompt. Implementations live in
// internal/llm; callers never depend on whether the call is direct or goes
// through the async job endpoint.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Tools is the search surface the pipeline escalates to. Implementations
// never return errors: a failing provider yields an empty slice, and the
// Has* probes report which capabilities are configured at all.
type Tools interface {
	HasWeb() bool
	HasImages() bool
	HasVideos() bool
	SearchWeb(ctx context.Context, query string, count int) []Source
	SearchImages(ctx context.Context, query string, count int) []MediaItem
	SearchVideos(ctx context.Context, query string, count int) []MediaItem
}

// ArticleProvider resolves an ArticleRef to previously extracted content.
// Lookup fills Content and FetchedAt when the cache holds the article.
type ArticleProvider interface {
	Lookup(ctx context.Context, ref ArticleRef) (ArticleRef, bool)
}

// Retriever surfaces snippets from earlier turns for the draft prompt.
type Retriever interface {
	Context(ctx context.Context, sessionID, query string, k int) []string
}
