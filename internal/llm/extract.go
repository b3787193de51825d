package llm

import (
	"sort"
	"strings"
)

// ExtractText pulls answer text out of a decoded generation response.
// Shapes are tried from most to least specific: a plain output string, the
// usual output object fields, an OpenAI-style choice, and as a last resort
// a deep scan for the first string in the tree. The scan walks keys in
// sorted order so the result never depends on map iteration.
func ExtractText(doc any) (string, bool) {
	if m, ok := doc.(map[string]any); ok {
		if out, exists := m["output"]; exists {
			if s, ok := stringValue(out); ok {
				return s, true
			}
			if om, ok := out.(map[string]any); ok {
				for _, k := range []string{"response", "answer", "reply", "text"} {
					if s, ok := stringValue(om[k]); ok {
						return s, true
					}
				}
			}
		}
		if s, ok := choiceContent(m); ok {
			return s, true
		}
	}
	return deepScan(doc)
}

func stringValue(v any) (string, bool) {
	s, ok := v.(string)
	s = strings.TrimSpace(s)
	return s, ok && s != ""
}

func choiceContent(m map[string]any) (string, bool) {
	choices, ok := m["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", false
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return "", false
	}
	msg, ok := first["message"].(map[string]any)
	if !ok {
		return "", false
	}
	return stringValue(msg["content"])
}

// metaKeys never hold answer text. The deep scan skips them so job ids,
// status strings and model names cannot masquerade as output.
var metaKeys = map[string]bool{
	"id": true, "job_id": true, "uuid": true, "request_id": true,
	"status": true, "state": true, "model": true, "object": true,
	"role": true, "finish_reason": true, "error": true, "type": true,
	"created": true, "created_at": true, "updated_at": true,
	"completed_at": true, "started_at": true,
}

func deepScan(v any) (string, bool) {
	switch node := v.(type) {
	case string:
		s := strings.TrimSpace(node)
		return s, s != ""
	case []any:
		for _, item := range node {
			if s, ok := deepScan(item); ok {
				return s, true
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(node))
		for k := range node {
			if metaKeys[strings.ToLower(k)] {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s, ok := deepScan(node[k]); ok {
				return s, true
			}
		}
	}
	return "", false
}
