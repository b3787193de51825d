package search

import (
	"context"
	"fmt"
	"time"

	"github.com/studysage/sage/internal/assistant"
	"github.com/studysage/sage/internal/httpx"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily is the evidence-oriented web provider: its results carry fuller
// content than organic snippets, which is what feeds the excerpt section of
// the evidence block.
type Tavily struct {
	APIKey   string
	Endpoint string

	client *httpx.Client
}

func NewTavily(apiKey string) *Tavily {
	return &Tavily{
		APIKey:   apiKey,
		Endpoint: tavilyEndpoint,
		client:   httpx.New(15*time.Second, 2, 300*time.Millisecond),
	}
}

func (t *Tavily) Name() string { return "tavily" }

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

func (t *Tavily) Search(ctx context.Context, query string, count int) ([]assistant.Source, error) {
	payload := map[string]any{
		"api_key":      t.APIKey,
		"query":        query,
		"search_depth": "basic",
		"max_results":  count,
	}
	var resp struct {
		Results []tavilyResult `json:"results"`
	}
	if err := t.client.DoJSON(ctx, "POST", t.Endpoint, nil, payload, &resp); err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	out := make([]assistant.Source, 0, len(resp.Results))
	for i, r := range resp.Results {
		if i >= count {
			break
		}
		out = append(out, assistant.Source{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return out, nil
}
