package assistant

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Reason explains a web-escalation decision. Values are stable: they are
// logged, counted in metrics, and persisted with each turn.
type Reason string

const (
	ReasonNoProviders       Reason = "no_providers"
	ReasonExplicitMediaOnly Reason = "explicit_media_no_web"
	ReasonSmalltalk         Reason = "smalltalk"
	ReasonExplicitIntent    Reason = "explicit_intent"
	ReasonForced            Reason = "forced"
	ReasonBudgetExhausted   Reason = "budget_exhausted"
	ReasonLearningResources Reason = "learning_resources"
	ReasonModelSuggested    Reason = "model_suggested"
	ReasonModelUncertain    Reason = "model_uncertain"
	ReasonNonAnswer         Reason = "draft_nonanswer_fact_seeking"
	ReasonFactual           Reason = "factual_or_time_sensitive"
	ReasonNotNeeded         Reason = "not_needed"
)

// DefaultMinWebBudget is the remaining-budget floor below which optional web
// escalation is skipped.
const DefaultMinWebBudget = 2 * time.Second

// DecisionInput carries everything DecideWeb may consult. Plan may be nil
// when drafting failed outright.
type DecisionInput struct {
	Message   string
	Intent    Intent
	Plan      *Plan
	Remaining time.Duration
	MinBudget time.Duration
	HasWeb    bool
	ForceWeb  bool
	Now       time.Time
}

// DecideWeb applies the escalation rules in strict order; the first rule
// that matches wins and its reason is returned unchanged. Reordering the
// rules changes user-visible behaviour, so any edit here needs a matching
// test.
func DecideWeb(in DecisionInput) (bool, Reason) {
	msg := strings.TrimSpace(in.Message)
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	minBudget := in.MinBudget
	if minBudget <= 0 {
		minBudget = DefaultMinWebBudget
	}

	// 1. Nothing to escalate to.
	if !in.HasWeb {
		return false, ReasonNoProviders
	}
	// 2. A pure "show me pictures/videos of it" follow-up wants media, not
	// sources.
	if isMediaOnlyFollowUp(msg, in.Intent) {
		return false, ReasonExplicitMediaOnly
	}
	// 3. Greetings and thanks never need sources, regardless of how hedged
	// the draft below may look.
	if isSmalltalk(msg) {
		return false, ReasonSmalltalk
	}
	// 4. The user explicitly asked for fresh information.
	if in.Intent.WantsWeb {
		return true, ReasonExplicitIntent
	}
	// 5. Operator override.
	if in.ForceWeb {
		return true, ReasonForced
	}
	// 6. Out of budget, unless the question is the kind that is wrong
	// without the web.
	if in.Remaining < minBudget && !isFactSeeking(msg) && !isFutureDated(msg, now) {
		return false, ReasonBudgetExhausted
	}
	// 7. Requests for learning material benefit from real links.
	if asksLearningResources(msg) {
		return true, ReasonLearningResources
	}
	// 8. The model asked for the web in its structured draft.
	if in.Plan != nil && in.Plan.Parsed && in.Plan.NeedWeb {
		return true, ReasonModelSuggested
	}
	// 9. The draft hedges about its own knowledge.
	if in.Plan != nil && looksUncertain(in.Plan.Answer) {
		return true, ReasonModelUncertain
	}
	// 10. The draft refused or fizzled on a question that has an answer.
	if in.Plan != nil && looksLikeNonAnswer(in.Plan.Answer) && isFactSeeking(msg) {
		return true, ReasonNonAnswer
	}
	// 11. Factual or time-sensitive questions default to sources, general
	// advice does not.
	if (isFactSeeking(msg) || isTimeSensitive(msg, now)) && !isGeneralAdvice(msg) {
		return true, ReasonFactual
	}
	// 12. Default: answer from the model alone.
	return false, ReasonNotNeeded
}

var (
	smalltalkRe = regexp.MustCompile(`(?i)^(hi|hiya|hello|hey|yo|sup|good (morning|afternoon|evening)|thanks?( you| a lot)?|thank you|thx|ty|ok(ay)?|cool|great|nice|awesome|perfect|got it|bye|goodbye|see you|good night)[\s!,.?]*$`)

	smalltalkPhrases = []string{
		"who are you",
		"what can you do",
		"what are you",
		"how are you",
		"what is your name",
		"what's your name",
	}

	mediaOnlyRe = regexp.MustCompile(`(?i)^(please |pls )?((can|could|would) you )?`)

	mediaOnlyBodyRe = regexp.MustCompile(`(?i)^(show|send|give|get|find) (me |us )?(some |a few |more |a couple of )?(pictures?|images?|photos?|pics?|diagrams?|videos?|clips?)( of (it|that|this|them|him|her|those))?[\s!.?]*$`)

	learningRe = regexp.MustCompile(`(?i)\b(teach me|tutorials?|courses?|study materials?|practice (problems|questions|exercises)|where (can|do|should) i learn|how (do|can|should) i (learn|study|get started)|best way to learn|resources (for|to|on)|recommend (some |any )?(books?|videos?|courses?|sites?|websites?|resources?))\b`)

	uncertainPhrases = []string{
		"not sure",
		"i'm unsure",
		"i am unsure",
		"as of my",
		"knowledge cutoff",
		"training data",
		"i don't have access",
		"i do not have access",
		"i cannot browse",
		"i can't browse",
		"don't have real-time",
		"do not have real-time",
		"may have changed",
		"might have changed",
		"might be outdated",
		"may be outdated",
		"check online",
		"check the latest",
		"recommend checking",
		"verify with",
	}

	nonAnswerPhrases = []string{
		"i can't",
		"i cannot",
		"unable to",
		"i don't know",
		"i do not know",
		"no information",
		"cannot help with that",
		"can't help with that",
	}

	factLeadRe  = regexp.MustCompile(`(?i)^(who|what|when|where|which)('?s)?\b|^how (many|much|old|tall|far|long|fast|big)\b`)
	factWordsRe = regexp.MustCompile(`(?i)\b(capital of|population|price|cost|net worth|founded|invented|born|died|height|distance|speed of|release date|statistics?|gdp|exchange rate|how many)\b`)

	timeWordsRe = regexp.MustCompile(`(?i)\b(latest|news|today|tonight|current(ly)?|right now|recent(ly)?|this (week|month|year)|upcoming|price|stock|score|schedule|forecast|release)\b`)

	adviceRe = regexp.MustCompile(`(?i)^should i\b|\b(tips?|advice|motivat(e|ed|ion)|study (plan|routine|habits?)|stay focused|feel (about|like)|your opinion|in your opinion|best way to (organize|structure|plan))\b`)

	futureWordsRe = regexp.MustCompile(`(?i)\b(next (year|month|week)|upcoming|will .{1,40}(be |get )?(released?|announced|out)|when is .{1,40}coming)\b`)

	yearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

func isSmalltalk(msg string) bool {
	if smalltalkRe.MatchString(msg) {
		return true
	}
	lower := strings.ToLower(msg)
	if len(lower) > 60 {
		return false
	}
	for _, p := range smalltalkPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// isMediaOnlyFollowUp recognizes short messages that ask for media about the
// topic already under discussion and nothing else. Anchored to the whole
// message so mixed requests still escalate.
func isMediaOnlyFollowUp(msg string, in Intent) bool {
	if !in.WantsImages && !in.WantsVideo {
		return false
	}
	if in.WantsWeb {
		return false
	}
	body := mediaOnlyRe.ReplaceAllString(msg, "")
	return mediaOnlyBodyRe.MatchString(strings.TrimSpace(body))
}

func asksLearningResources(msg string) bool {
	return learningRe.MatchString(msg)
}

func looksUncertain(answer string) bool {
	lower := strings.ToLower(answer)
	for _, p := range uncertainPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// looksLikeNonAnswer flags drafts that are empty, tiny, or deflect outright.
func looksLikeNonAnswer(answer string) bool {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return true
	}
	if len(trimmed) > 200 {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, p := range nonAnswerPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return len(trimmed) < 40
}

// isFactSeeking wants a question with a checkable answer: an interrogative
// lead plus a concrete subject, or an explicitly factual phrase. Plain
// conceptual questions ("what is photosynthesis") stay out.
func isFactSeeking(msg string) bool {
	if factWordsRe.MatchString(msg) {
		return true
	}
	if !factLeadRe.MatchString(msg) {
		return false
	}
	return hasConcreteSubject(msg)
}

// hasConcreteSubject looks for a capitalized token past the first word or
// any digit, a cheap stand-in for named entities.
func hasConcreteSubject(msg string) bool {
	if strings.ContainsAny(msg, "0123456789") {
		return true
	}
	fields := strings.Fields(msg)
	for i, f := range fields {
		if i == 0 {
			continue
		}
		r := []rune(strings.Trim(f, `"'(),.?!`))
		if len(r) > 1 && r[0] >= 'A' && r[0] <= 'Z' {
			return true
		}
	}
	return false
}

func isTimeSensitive(msg string, now time.Time) bool {
	if timeWordsRe.MatchString(msg) {
		return true
	}
	for _, m := range yearRe.FindAllString(msg, -1) {
		if y, err := strconv.Atoi(m); err == nil && y >= now.Year()-1 {
			return true
		}
	}
	return false
}

func isFutureDated(msg string, now time.Time) bool {
	if futureWordsRe.MatchString(msg) {
		return true
	}
	for _, m := range yearRe.FindAllString(msg, -1) {
		if y, err := strconv.Atoi(m); err == nil && y > now.Year() {
			return true
		}
	}
	return false
}

func isGeneralAdvice(msg string) bool {
	return adviceRe.MatchString(msg)
}
