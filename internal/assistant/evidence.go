package assistant

import (
	"fmt"
	"net/url"
	"strings"
)

// Evidence block defaults. The char cap bounds prompt growth no matter how
// verbose the providers get.
const (
	DefaultEvidenceMaxSources  = 6
	DefaultEvidenceMaxExcerpts = 4
	DefaultEvidenceMaxChars    = 2400

	snippetChunkLen = 240
	excerptChunkLen = 600
	excerptMinLen   = 300
)

// EvidenceLimits bounds the rendered evidence block. Zero fields fall back
// to the defaults.
type EvidenceLimits struct {
	MaxSources  int
	MaxExcerpts int
	MaxChars    int
}

func (l EvidenceLimits) withDefaults() EvidenceLimits {
	if l.MaxSources <= 0 {
		l.MaxSources = DefaultEvidenceMaxSources
	}
	if l.MaxExcerpts <= 0 {
		l.MaxExcerpts = DefaultEvidenceMaxExcerpts
	}
	if l.MaxChars <= 0 {
		l.MaxChars = DefaultEvidenceMaxChars
	}
	return l
}

// BuildEvidenceBlock renders fetched sources as a numbered block for the
// revise prompt: a capped source list first, then up to MaxExcerpts longer
// chunks from the sources that carried real content. Indices are one-based
// and shared between the two sections so citations line up. The result is
// deterministic for a given input and never exceeds MaxChars.
func BuildEvidenceBlock(sources []Source, lim EvidenceLimits) string {
	if len(sources) == 0 {
		return ""
	}
	lim = lim.withDefaults()

	n := len(sources)
	if n > lim.MaxSources {
		n = lim.MaxSources
	}

	var b strings.Builder
	b.WriteString("Sources:\n")
	for i, s := range sources[:n] {
		title := strings.TrimSpace(s.Title)
		if title == "" {
			title = sourceDomain(s.URL)
		}
		fmt.Fprintf(&b, "[%d] %s — %s\n", i+1, title, s.URL)
		if snip := trimChunk(s.Snippet, snippetChunkLen); snip != "" {
			fmt.Fprintf(&b, "    %s\n", snip)
		}
	}

	excerpts := 0
	for i, s := range sources[:n] {
		if excerpts >= lim.MaxExcerpts {
			break
		}
		if len(s.Snippet) < excerptMinLen {
			continue
		}
		if excerpts == 0 {
			b.WriteString("\nExcerpts:\n")
		}
		fmt.Fprintf(&b, "[%d] %s\n", i+1, trimChunk(s.Snippet, excerptChunkLen))
		excerpts++
	}

	out := b.String()
	if runes := []rune(out); len(runes) > lim.MaxChars {
		out = string(runes[:lim.MaxChars-1]) + "…"
	}
	return out
}

// trimChunk whitespace-trims s and caps it at max runes with an ellipsis.
func trimChunk(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func sourceDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
