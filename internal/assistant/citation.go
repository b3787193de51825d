package assistant

import (
	"regexp"
	"strconv"
)

// citeMarkerRe matches the canonical [cite:N] marker plus the two tolerated
// variants the model occasionally emits: (cite:N) and a bare cite:N.
var citeMarkerRe = regexp.MustCompile(`\[\s*cite:\s*(\d+)\s*\]|\(\s*cite:\s*(\d+)\s*\)|\bcite:\s*(\d+)`)

// CleanCitations removes citation markers whose index does not fall within
// [1, sourceCount]. With no sources every marker is removed. In-range
// markers pass through untouched, so the operation is idempotent.
func CleanCitations(text string, sourceCount int) string {
	if text == "" {
		return text
	}
	return citeMarkerRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := citeMarkerRe.FindStringSubmatch(m)
		var digits string
		for _, g := range sub[1:] {
			if g != "" {
				digits = g
				break
			}
		}
		n, err := strconv.Atoi(digits)
		if err != nil || n < 1 || n > sourceCount {
			return ""
		}
		return m
	})
}
