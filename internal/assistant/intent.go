package assistant

import "regexp"

// Intent captures what the user explicitly asked for, before any model
// involvement. Flags are independent: a message can want all three.
type Intent struct {
	WantsWeb    bool
	WantsImages bool
	WantsVideo  bool
}

// Pattern tables for the router. Each test is evaluated on its own; none is
// mutually exclusive with the others.
var (
	videoWordsRe = regexp.MustCompile(`(?i)\b(videos?|watch|trailers?|episodes?|clips?|youtube|animations?|screencasts?)\b`)

	imageWordsRe = regexp.MustCompile(`(?i)\b(images?|pictures?|photos?|pics?|diagrams?|screenshots?|posters?|illustrations?|infographics?)\b`)

	looksLikeRe = regexp.MustCompile(`(?i)\bwhat (do|does|did) .{1,60}look like\b`)

	webWordsRe = regexp.MustCompile(`(?i)\b(latest|news|today|current(ly)?|right now|this (week|month|year)|price|cost|stock|score|schedule|release date|search (for|the web)|look (it )?up|google it)\b`)

	showMeImagesRe = regexp.MustCompile(`(?i)\bshow (me|us)\b.{0,40}\b(images?|pictures?|photos?|pics?|diagrams?)\b`)
	showMeVideoRe  = regexp.MustCompile(`(?i)\bshow (me|us)\b.{0,40}\b(videos?|clips?|trailers?)\b`)

	releaseYearRe = regexp.MustCompile(`(?i)\b(released?|releasing|airing|aired|premiere[ds]?|coming out|out now)\b.{0,40}\b(19|20)\d{2}\b|\b(19|20)\d{2}\b.{0,40}\b(released?|releasing|airing|aired|premiere[ds]?|coming out)\b`)
)

// DetectIntent runs the pattern tests over the raw user message. It is pure
// and carries no state between calls.
func DetectIntent(message string) Intent {
	var in Intent
	if videoWordsRe.MatchString(message) || showMeVideoRe.MatchString(message) {
		in.WantsVideo = true
	}
	if imageWordsRe.MatchString(message) || showMeImagesRe.MatchString(message) || looksLikeRe.MatchString(message) {
		in.WantsImages = true
	}
	if webWordsRe.MatchString(message) || releaseYearRe.MatchString(message) {
		in.WantsWeb = true
	}
	return in
}
