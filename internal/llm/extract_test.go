package llm

import "testing"

func TestExtractText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		doc  any
		want string
		ok   bool
	}{
		{
			name: "output string",
			doc:  map[string]any{"output": "plain text"},
			want: "plain text",
			ok:   true,
		},
		{
			name: "output response field",
			doc:  map[string]any{"output": map[string]any{"response": "nested answer"}},
			want: "nested answer",
			ok:   true,
		},
		{
			name: "output field order beats deep scan",
			doc:  map[string]any{"output": map[string]any{"reply": "the reply", "aaa": "would sort first"}},
			want: "the reply",
			ok:   true,
		},
		{
			name: "openai choice",
			doc: map[string]any{
				"choices": []any{map[string]any{"message": map[string]any{"content": "from chat"}}},
			},
			want: "from chat",
			ok:   true,
		},
		{
			name: "deep scan skips metadata",
			doc: map[string]any{
				"id":     "abc123",
				"status": "COMPLETED",
				"model":  "gpt-x",
				"result": map[string]any{"text": "found me"},
			},
			want: "found me",
			ok:   true,
		},
		{
			name: "deep scan walks sorted keys",
			doc:  map[string]any{"beta": "second", "alpha": "first"},
			want: "first",
			ok:   true,
		},
		{
			name: "deep scan enters arrays",
			doc:  map[string]any{"results": []any{map[string]any{"content": "array hit"}}},
			want: "array hit",
			ok:   true,
		},
		{
			name: "only metadata",
			doc:  map[string]any{"id": "x", "status": "FAILED", "error": "boom"},
			want: "",
			ok:   false,
		},
		{
			name: "whitespace output",
			doc:  map[string]any{"output": "   "},
			want: "",
			ok:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractText(tc.doc)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("ExtractText(%v) = (%q, %v), want (%q, %v)", tc.doc, got, ok, tc.want, tc.ok)
			}
		})
	}
}
