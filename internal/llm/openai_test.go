package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIClientGenerate(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("authorization = %q", auth)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "Explain osmosis." {
			t.Errorf("messages = %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  Osmosis is diffusion of water.  "}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", OpenAIOptions{BaseURL: srv.URL + "/v1"})
	out, err := c.Generate(context.Background(), "Explain osmosis.")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "Osmosis is diffusion of water." {
		t.Fatalf("out = %q", out)
	}
}

func TestOpenAIClientEmptyChoices(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", OpenAIOptions{BaseURL: srv.URL + "/v1"})
	if _, err := c.Generate(context.Background(), "anything"); err == nil {
		t.Fatalf("expected error on empty choices")
	}
}

func TestOpenAIClientUpstreamError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid api key", "type": "invalid_request_error"},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-bad", OpenAIOptions{BaseURL: srv.URL + "/v1"})
	if _, err := c.Generate(context.Background(), "anything"); err == nil {
		t.Fatalf("expected error on 401")
	}
}
