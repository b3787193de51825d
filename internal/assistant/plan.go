package assistant

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ParsePlan extracts a structured Plan from raw generator output. The
// ladder: code-fence stripping and balanced-brace extraction, strict
// unmarshal, mechanical JSON repair, then a lenient key-alias pass. The
// second return is false when nothing plan-shaped could be recovered; the
// caller decides whether to spend a generator round-trip on repair or fall
// back to a raw-text Plan.
func ParsePlan(raw string) (Plan, bool) {
	candidate := extractJSONObject(raw)
	if candidate == "" {
		return Plan{}, false
	}
	if p, ok := unmarshalPlan(candidate); ok {
		return p, true
	}
	if repaired, err := jsonrepair.JSONRepair(candidate); err == nil {
		if p, ok := unmarshalPlan(repaired); ok {
			return p, true
		}
		if p, ok := lenientPlan(repaired); ok {
			return p, true
		}
	}
	if p, ok := lenientPlan(candidate); ok {
		return p, true
	}
	return Plan{}, false
}

// RawTextPlan wraps unparseable generator output as a degenerate Plan: the
// text becomes the answer and every need flag stays false.
func RawTextPlan(raw string) Plan {
	return Plan{Answer: strings.TrimSpace(stripCodeFences(raw))}
}

// extractJSONObject returns the most plausible JSON object embedded in s:
// the whole (fence-stripped) string when it already is one, otherwise the
// first balanced brace group. An unbalanced tail is returned as-is so the
// repair step can try to close it.
func extractJSONObject(s string) string {
	t := strings.TrimSpace(stripCodeFences(s))
	if strings.HasPrefix(t, "{") && json.Valid([]byte(t)) {
		return t
	}
	start := strings.IndexByte(t, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(t); i++ {
		c := t[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return t[start : i+1]
			}
		}
	}
	return t[start:]
}

func stripCodeFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```JSON")
	t = strings.TrimPrefix(t, "```")
	if i := strings.LastIndex(t, "```"); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

// unmarshalPlan is the strict path. The probe guards against valid JSON
// that has nothing to do with a plan: at least one recognized key must be
// present.
func unmarshalPlan(s string) (Plan, bool) {
	var p Plan
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return Plan{}, false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &probe); err != nil {
		return Plan{}, false
	}
	for k := range probe {
		switch strings.ToLower(k) {
		case "answer", "needweb", "needimages", "needvideo", "webquery", "imagequery", "videoquery":
			p.Parsed = true
			return p, true
		}
	}
	return Plan{}, false
}

// lenientPlan tolerates alias keys and loosely typed values, the way models
// drift from a schema under pressure.
func lenientPlan(s string) (Plan, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return Plan{}, false
	}
	var p Plan
	found := false
	for k, v := range m {
		switch normalizeKey(k) {
		case "answer", "response", "reply", "text", "draft":
			if str, ok := v.(string); ok && strings.TrimSpace(str) != "" {
				p.Answer = str
				found = true
			}
		case "needweb", "websearch", "searchweb", "useweb", "needsearch":
			p.NeedWeb = asBool(v)
			found = true
		case "needimages", "needimage", "wantimages":
			p.NeedImages = asBool(v)
			found = true
		case "needvideo", "needvideos", "wantvideo":
			p.NeedVideo = asBool(v)
			found = true
		case "webquery", "searchquery", "query":
			if str, ok := v.(string); ok {
				p.WebQuery = str
				found = true
			}
		case "imagequery":
			if str, ok := v.(string); ok {
				p.ImageQuery = str
				found = true
			}
		case "videoquery":
			if str, ok := v.(string); ok {
				p.VideoQuery = str
				found = true
			}
		}
	}
	if !found {
		return Plan{}, false
	}
	p.Parsed = true
	return p, true
}

func normalizeKey(k string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(k)), "_", "")
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1":
			return true
		}
	case float64:
		return t != 0
	}
	return false
}
