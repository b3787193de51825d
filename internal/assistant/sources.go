package assistant

import (
	"net/url"
	"strings"
)

// NormalizeURLKey reduces a URL to its deduplication key: lower-cased,
// fragment dropped, trailing slash trimmed. Sources and media that differ
// only in these respects are the same thing fetched twice.
func NormalizeURLKey(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		u.Fragment = ""
		s = u.String()
	}
	return strings.ToLower(strings.TrimRight(s, "/"))
}

// DedupeSources removes URL duplicates, keeping the first occurrence and
// therefore its title. Order is otherwise preserved.
func DedupeSources(in []Source) []Source {
	seen := make(map[string]bool, len(in))
	out := make([]Source, 0, len(in))
	for _, s := range in {
		key := NormalizeURLKey(s.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// DedupeMedia is DedupeSources for media items.
func DedupeMedia(in []MediaItem) []MediaItem {
	seen := make(map[string]bool, len(in))
	out := make([]MediaItem, 0, len(in))
	for _, m := range in {
		key := NormalizeURLKey(m.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}
