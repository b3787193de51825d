package articles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/studysage/sage/internal/assistant"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>The Krebs Cycle, Step by Step</title></head>
<body>
<article>
<h1>The Krebs Cycle, Step by Step</h1>
<p>The Krebs cycle, also called the citric acid cycle, is the central hub of
cellular respiration. Acetyl-CoA enters the cycle and is oxidized across
eight enzymatic steps, releasing stored energy in a controlled cascade.</p>
<p>Each turn of the cycle produces three molecules of NADH, one FADH2 and
one GTP, while regenerating oxaloacetate so the cycle can accept the next
acetyl group. The reduced carriers feed the electron transport chain.</p>
<p>Students often memorize the intermediates with a mnemonic, but the more
durable approach is tracing where each carbon atom goes: two leave as
carbon dioxide every turn, which is the exhaled end of the glucose you ate.</p>
</article>
</body>
</html>`

func TestLookupFetchesAndExtracts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	fixed := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	c := New(nil, Options{Clock: func() time.Time { return fixed }})

	got, ok := c.Lookup(context.Background(), assistant.ArticleRef{URL: srv.URL + "/krebs"})
	if !ok {
		t.Fatalf("expected a successful lookup")
	}
	if !strings.Contains(got.Content, "citric acid cycle") {
		t.Fatalf("expected extracted body text, got %q", got.Content)
	}
	if got.Title != "The Krebs Cycle, Step by Step" {
		t.Fatalf("expected extracted title, got %q", got.Title)
	}
	if !got.FetchedAt.Equal(fixed) {
		t.Fatalf("expected FetchedAt %v, got %v", fixed, got.FetchedAt)
	}
}

func TestLookupKeepsCallerTitle(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	c := New(nil, Options{})
	got, ok := c.Lookup(context.Background(), assistant.ArticleRef{
		URL:   srv.URL + "/krebs",
		Title: "My saved title",
	})
	if !ok || got.Title != "My saved title" {
		t.Fatalf("expected the caller's title to win, got ok=%v title=%q", ok, got.Title)
	}
}

func TestLookupFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(nil, Options{})

	if _, ok := c.Lookup(context.Background(), assistant.ArticleRef{}); ok {
		t.Fatalf("expected failure for an empty URL")
	}
	ref := assistant.ArticleRef{URL: srv.URL + "/gone"}
	got, ok := c.Lookup(context.Background(), ref)
	if ok {
		t.Fatalf("expected failure on upstream 404")
	}
	if got.Content != "" {
		t.Fatalf("failed lookup should not fill content, got %q", got.Content)
	}
}
