package assistant

import (
	"regexp"
	"strings"
)

// BuildWebQuery picks the search query for the Fetch stage. Preference
// order: the plan's query, then the raw message. A vague follow-up is
// replaced wholesale by the carried topic so "what about that?" does not hit
// the search provider verbatim. Any year token in the user message must
// survive into the final query; models love to drop them.
func BuildWebQuery(planQuery, message, carriedTopic string) string {
	q := strings.TrimSpace(planQuery)
	if q == "" {
		q = strings.TrimSpace(message)
	}
	if carriedTopic != "" && isVagueFollowUp(message) {
		q = carriedTopic
	}
	for _, y := range yearRe.FindAllString(message, -1) {
		if !strings.Contains(q, y) {
			q += " " + y
		}
	}
	return q
}

var (
	followUpLeadRe = regexp.MustCompile(`(?i)^(what about|how about|and |also |why\b|what else|more\b|tell me more|go on|really\?|but )`)
	pronounRe      = regexp.MustCompile(`(?i)\b(it|that|this|them|those|these|he|she|they|him|her)\b`)
)

// isVagueFollowUp recognizes short messages that lean entirely on prior
// context: no concrete subject of their own, plus a pronoun or a follow-up
// lead-in.
func isVagueFollowUp(msg string) bool {
	t := strings.TrimSpace(msg)
	if t == "" || len(t) > 60 {
		return false
	}
	if hasConcreteSubject(t) {
		return false
	}
	return followUpLeadRe.MatchString(t) || pronounRe.MatchString(t)
}

// topicFromHistory walks the history backwards for something worth carrying:
// a title the assistant surfaced, or the last user message that named a
// concrete subject.
func topicFromHistory(history []Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		switch m.Role {
		case RoleAssistant:
			if titles := ExtractTitles(m.Content, 1); len(titles) > 0 {
				return titles[0]
			}
		case RoleUser:
			if hasConcreteSubject(m.Content) && !isVagueFollowUp(m.Content) {
				return compactTopic(m.Content)
			}
		}
	}
	return ""
}

// compactTopic squeezes a message into a query-sized phrase.
func compactTopic(msg string) string {
	fields := strings.Fields(strings.TrimRight(strings.TrimSpace(msg), "?!."))
	if len(fields) > 10 {
		fields = fields[:10]
	}
	return strings.Join(fields, " ")
}

var (
	boldTitleRe     = regexp.MustCompile(`\*\*([^*\n]{3,80})\*\*`)
	quotedTitleRe   = regexp.MustCompile(`"([^"\n]{3,80})"|“([^”\n]{3,80})”`)
	numberedTitleRe = regexp.MustCompile(`(?m)^\s*\d{1,2}[.)]\s+(.{3,120})$`)
)

// ExtractTitles pulls resource titles out of answer text, in the order
// bolded, quoted, numbered-list lines, deduplicated case-insensitively and
// capped at max. Media fallback queries are derived from these.
func ExtractTitles(text string, max int) []string {
	if max <= 0 {
		return nil
	}
	var titles []string
	seen := make(map[string]bool)
	add := func(raw string) {
		t := cleanTitle(raw)
		if len(t) < 3 || len(t) > 80 {
			return
		}
		key := strings.ToLower(t)
		if seen[key] {
			return
		}
		seen[key] = true
		titles = append(titles, t)
	}

	for _, m := range boldTitleRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range quotedTitleRe.FindAllStringSubmatch(text, -1) {
		if m[1] != "" {
			add(m[1])
		} else {
			add(m[2])
		}
	}
	for _, m := range numberedTitleRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}

	if len(titles) > max {
		titles = titles[:max]
	}
	return titles
}

// cleanTitle strips list markup and trailing descriptions from a candidate
// title line ("**Khan Academy** - free video lessons" becomes "Khan
// Academy"). An embedded bold or quoted span wins over the rest of the line
// so list items and standalone spans agree on the same title.
func cleanTitle(raw string) string {
	t := strings.TrimSpace(raw)
	if m := boldTitleRe.FindStringSubmatch(t); m != nil {
		t = m[1]
	} else if m := quotedTitleRe.FindStringSubmatch(t); m != nil {
		if m[1] != "" {
			t = m[1]
		} else {
			t = m[2]
		}
	}
	for _, sep := range []string{" - ", " – ", " — ", ": "} {
		if i := strings.Index(t, sep); i > 0 {
			t = t[:i]
		}
	}
	t = strings.ReplaceAll(t, "**", "")
	return strings.Trim(t, ` "'“”*_.,;:`)
}
