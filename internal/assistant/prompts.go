package assistant

import (
	"fmt"
	"strings"
)

// FallbackAnswer is returned whenever the pipeline ends a run with nothing
// usable. The user never sees a raw error for a generation failure.
const FallbackAnswer = "I couldn't put together a complete answer just now. Give it another try in a moment, or rephrase the question."

// History rendering caps for the draft prompt.
const (
	defaultHistoryTurns = 8
	historyCharCap      = 4000
)

const planSchema = `{"answer": "<your answer in markdown>", "needWeb": <bool>, "webQuery": "<search query if needWeb>", "needImages": <bool>, "imageQuery": "<image query if needImages>", "needVideo": <bool>, "videoQuery": "<video query if needVideo>"}`

func draftPrompt(req Request, article, retrieval, history string) string {
	var b strings.Builder
	b.WriteString("You are a patient study assistant helping a learner one-on-one. Answer clearly, in markdown, at a level that matches the question.\n")
	if req.Preference != "" {
		fmt.Fprintf(&b, "The learner prefers a %s style of explanation.\n", req.Preference)
	}
	if article != "" {
		fmt.Fprintf(&b, "\nThe learner is studying this material:\n---\n%s\n---\n", article)
	}
	if retrieval != "" {
		fmt.Fprintf(&b, "\nEarlier in this course of study:\n%s\n", retrieval)
	}
	if history != "" {
		fmt.Fprintf(&b, "\nConversation so far:\n%s\n", history)
	}
	fmt.Fprintf(&b, "\nLearner's message:\n%s\n", req.Message)
	fmt.Fprintf(&b, "\nRespond with a single JSON object, no code fences, exactly this shape:\n%s\n", planSchema)
	b.WriteString("Set needWeb only if the answer depends on current or verifiable facts you may not have. Set needImages/needVideo only if visuals would genuinely help.")
	return b.String()
}

func revisePrompt(message, draft, evidence string, timeSensitive bool) string {
	var b strings.Builder
	b.WriteString("You drafted an answer for a learner and then fetched sources. Improve the answer using them.\n")
	fmt.Fprintf(&b, "\nLearner's message:\n%s\n", message)
	fmt.Fprintf(&b, "\nYour draft:\n%s\n", draft)
	fmt.Fprintf(&b, "\n%s\n", evidence)
	b.WriteString("\nRewrite the answer in markdown. Cite sources inline as [cite:N] using the numbers above, only where a source actually backs the statement. Do not invent sources or numbers.\n")
	if timeSensitive {
		b.WriteString("The question is time-sensitive: prefer what the sources say over your prior knowledge, and say when a figure was last reported.\n")
	}
	b.WriteString("Reply with the improved answer only, no preamble.")
	return b.String()
}

func distillPrompt(answer string) string {
	return fmt.Sprintf(
		"Extract the single main subject of this answer as a short noun phrase suitable for an image search. Reply with the phrase only, no quotes, at most six words.\n\nAnswer:\n%s",
		answer,
	)
}

func repairPrompt(raw string) string {
	return fmt.Sprintf(
		"The following was supposed to be a single valid JSON object of the shape %s but is malformed. Reply with the corrected JSON object only.\n\n%s",
		planSchema, raw,
	)
}

// renderHistory flattens the last maxTurns messages into labelled lines,
// oldest first, trimming from the front if the block would blow the char
// cap.
func renderHistory(history []Message, maxTurns int) string {
	if maxTurns <= 0 {
		maxTurns = defaultHistoryTurns
	}
	if len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}
	var lines []string
	for _, m := range history {
		label := "Learner"
		if m.Role == RoleAssistant {
			label = "Assistant"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, strings.TrimSpace(m.Content)))
	}
	out := strings.Join(lines, "\n")
	if runes := []rune(out); len(runes) > historyCharCap {
		out = string(runes[len(runes)-historyCharCap:])
		if i := strings.IndexByte(out, '\n'); i >= 0 {
			out = out[i+1:]
		}
	}
	return out
}

// sanitizeDistilledPhrase normalizes the DistillMedia output into something
// safe to hand a search provider: first line only, quotes and fences
// stripped, at most eight words.
func sanitizeDistilledPhrase(s string) string {
	s = stripCodeFences(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(strings.TrimSpace(s), `"'“”.`)
	fields := strings.Fields(s)
	if len(fields) > 8 {
		fields = fields[:8]
	}
	return strings.Join(fields, " ")
}
