package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/studysage/sage/internal/telemetry"
)

var pipelineTracer trace.Tracer = otel.Tracer("sage/internal/assistant")

// ErrEmptyMessage is the only hard client error the pipeline produces.
var ErrEmptyMessage = errors.New("assistant: message is empty")

// Article context freshness rules.
const (
	articleMaxAge   = 24 * time.Hour
	articleMinChars = 200
	articleCharCap  = 3000
)

// Config tunes one pipeline instance. Zero fields take the documented
// defaults via withDefaults.
type Config struct {
	Budget            time.Duration
	MinWebBudget      time.Duration
	ForceWeb          bool
	ForceImages       bool
	ForceVideos       bool
	WebResultCount    int
	ImageCount        int
	VideoCount        int
	ReviseRatio       float64
	ReviseMinChars    int
	HistoryTurns      int
	Evidence          EvidenceLimits
	CasualTones       []string
	MaxTitleQueries   int
	RetrievalSnippets int
}

func (c Config) withDefaults() Config {
	if c.Budget <= 0 {
		c.Budget = DefaultBudget
	}
	if c.MinWebBudget <= 0 {
		c.MinWebBudget = DefaultMinWebBudget
	}
	if c.WebResultCount <= 0 {
		c.WebResultCount = 5
	}
	if c.ImageCount <= 0 {
		c.ImageCount = 4
	}
	if c.VideoCount <= 0 {
		c.VideoCount = 3
	}
	if c.ReviseRatio <= 0 || c.ReviseRatio >= 1 {
		c.ReviseRatio = 0.7
	}
	if c.ReviseMinChars <= 0 {
		c.ReviseMinChars = 600
	}
	if c.HistoryTurns <= 0 {
		c.HistoryTurns = defaultHistoryTurns
	}
	if len(c.CasualTones) == 0 {
		c.CasualTones = []string{"casual", "eli5", "simple"}
	}
	if c.MaxTitleQueries <= 0 {
		c.MaxTitleQueries = 4
	}
	if c.RetrievalSnippets <= 0 {
		c.RetrievalSnippets = 3
	}
	return c
}

// Deps carries the pipeline's collaborators. Generator is required; the
// rest degrade gracefully when nil.
type Deps struct {
	Generator Generator
	Tools     Tools
	Articles  ArticleProvider
	Retriever Retriever
	Topics    *TopicMemory
	Telemetry *telemetry.Telemetry
	Logger    *log.Logger
	Clock     func() time.Time
}

// Pipeline runs the multi-pass answer synthesis for one request at a time.
// Instances are safe for concurrent use; all per-request state lives on the
// stack of Answer.
type Pipeline struct {
	gen      Generator
	tools    Tools
	articles ArticleProvider
	retr     Retriever
	topics   *TopicMemory
	tele     *telemetry.Telemetry
	cfg      Config
	logger   *log.Logger
	now      func() time.Time
}

func New(cfg Config, d Deps) (*Pipeline, error) {
	if d.Generator == nil {
		return nil, fmt.Errorf("assistant: generator is required")
	}
	if d.Logger == nil {
		d.Logger = log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Topics == nil {
		d.Topics = NewTopicMemory(0, 0)
	}
	return &Pipeline{
		gen:      d.Generator,
		tools:    d.Tools,
		articles: d.Articles,
		retr:     d.Retriever,
		topics:   d.Topics,
		tele:     d.Telemetry,
		cfg:      cfg.withDefaults(),
		logger:   d.Logger,
		now:      d.Clock,
	}, nil
}

// Answer runs Draft, Decide, Fetch, Revise, DistillMedia and Finalize for
// one request. Generation failures never surface as errors: the worst case
// is the canned fallback text. The only error is ErrEmptyMessage.
func (p *Pipeline) Answer(ctx context.Context, req Request) (Payload, error) {
	if strings.TrimSpace(req.Message) == "" {
		return Payload{}, ErrEmptyMessage
	}
	start := p.now()
	ctx, span := pipelineTracer.Start(ctx, "assistant.answer",
		trace.WithAttributes(
			attribute.String("session.id", req.SessionID),
			attribute.Int("history.len", len(req.History)),
		))
	defer span.End()

	budget := NewBudgetWithClock(p.now, p.cfg.Budget)
	intent := DetectIntent(req.Message)

	// Draft.
	plan, err := p.draft(ctx, req)
	if err != nil {
		p.logger.Printf("draft failed, serving fallback: %v", err)
		p.tele.CountGeneratorFailure("draft")
		payload := emptyPayload(FallbackAnswer)
		payload.Trace = Trace{Elapsed: p.now().Sub(start)}
		p.tele.CountRun(telemetry.OutcomeFallback, payload.Trace.Elapsed)
		return payload, nil
	}

	// Decide. Router and force flags always win over the plan for media.
	needImages := p.hasImages() && (p.cfg.ForceImages || intent.WantsImages || (plan.Parsed && plan.NeedImages))
	needVideo := p.hasVideos() && (p.cfg.ForceVideos || intent.WantsVideo || (plan.Parsed && plan.NeedVideo))
	needWeb, reason := DecideWeb(DecisionInput{
		Message:   req.Message,
		Intent:    intent,
		Plan:      &plan,
		Remaining: budget.Remaining(),
		MinBudget: p.cfg.MinWebBudget,
		HasWeb:    p.hasWeb(),
		ForceWeb:  p.cfg.ForceWeb,
		Now:       p.now(),
	})
	p.tele.CountDecision(string(reason))
	span.SetAttributes(
		attribute.Bool("decide.web", needWeb),
		attribute.String("decide.reason", string(reason)),
	)

	// Fetch.
	var sources []Source
	webQuery := ""
	if needWeb {
		webQuery = BuildWebQuery(plan.WebQuery, req.Message, p.carriedTopic(req))
		sources = p.fetch(ctx, webQuery)
		if len(sources) == 0 {
			// Nothing came back; the run continues as a no-web answer.
			needWeb = false
		}
	}
	p.rememberTopic(req, plan, sources)

	answer := plan.Answer
	revised := false
	timeSensitive := isTimeSensitive(req.Message, p.now())

	// Revise.
	if len(sources) > 0 {
		switch newText, err := p.revise(ctx, req.Message, answer, sources, timeSensitive); {
		case err != nil:
			p.logger.Printf("revise failed, keeping draft: %v", err)
			p.tele.CountGeneratorFailure("revise")
		case strings.TrimSpace(newText) != "":
			replace := timeSensitive || isFactSeeking(req.Message)
			answer = MergeRevision(answer, newText, replace, p.cfg.ReviseRatio, p.cfg.ReviseMinChars)
			revised = true
		}
	}

	// DistillMedia.
	distilled := ""
	if (needImages || needVideo) && len(req.History) == 0 && p.isCasualTone(req.Preference) {
		switch phrase, err := p.distill(ctx, answer); {
		case err != nil:
			p.logger.Printf("distill failed, using title queries: %v", err)
			p.tele.CountGeneratorFailure("distill")
		default:
			distilled = phrase
		}
	}

	// Finalize.
	payload := p.finalize(ctx, req, plan, answer, sources, needImages, needVideo, distilled)
	payload.Trace = Trace{
		UsedWeb:        len(payload.Sources) > 0 && needWeb,
		DecisionReason: reason,
		WebQuery:       webQuery,
		PlanParsed:     plan.Parsed,
		Revised:        revised,
		Elapsed:        p.now().Sub(start),
	}
	outcome := telemetry.OutcomeAnswered
	if payload.Answer == FallbackAnswer {
		outcome = telemetry.OutcomeFallback
	}
	p.tele.CountRun(outcome, payload.Trace.Elapsed)
	if rem := budget.Remaining(); rem < 0 {
		p.logger.Printf("run exceeded soft budget by %v (reason=%s, web=%v)", -rem, reason, needWeb)
	}
	return payload, nil
}

func (p *Pipeline) draft(ctx context.Context, req Request) (Plan, error) {
	ctx, span := pipelineTracer.Start(ctx, "assistant.draft")
	defer span.End()
	t0 := p.now()
	defer func() { p.tele.ObserveStage("draft", p.now().Sub(t0)) }()

	prompt := draftPrompt(req,
		p.articleContext(ctx, req),
		p.retrievalContext(ctx, req),
		renderHistory(req.History, p.cfg.HistoryTurns),
	)
	raw, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		return Plan{}, fmt.Errorf("draft: %w", err)
	}
	return p.parsePlan(ctx, raw), nil
}

// parsePlan runs the mechanical parse ladder and, when that fails, spends
// one generator round-trip asking the model to fix its own JSON before
// settling for a raw-text plan.
func (p *Pipeline) parsePlan(ctx context.Context, raw string) Plan {
	if plan, ok := ParsePlan(raw); ok {
		return plan
	}
	p.logger.Printf("plan parse failed, attempting model repair")
	fixed, err := p.gen.Generate(ctx, repairPrompt(raw))
	if err != nil {
		p.tele.CountGeneratorFailure("repair")
	} else if plan, ok := ParsePlan(fixed); ok {
		return plan
	}
	return RawTextPlan(raw)
}

func (p *Pipeline) fetch(ctx context.Context, query string) []Source {
	ctx, span := pipelineTracer.Start(ctx, "assistant.fetch",
		trace.WithAttributes(attribute.String("web.query", query)))
	defer span.End()
	t0 := p.now()
	defer func() { p.tele.ObserveStage("fetch", p.now().Sub(t0)) }()

	sources := p.tools.SearchWeb(ctx, query, p.cfg.WebResultCount)
	span.SetAttributes(attribute.Int("web.sources", len(sources)))
	p.logger.Printf("fetched %d sources for %q", len(sources), query)
	return sources
}

func (p *Pipeline) revise(ctx context.Context, message, draft string, sources []Source, timeSensitive bool) (string, error) {
	ctx, span := pipelineTracer.Start(ctx, "assistant.revise")
	defer span.End()
	t0 := p.now()
	defer func() { p.tele.ObserveStage("revise", p.now().Sub(t0)) }()

	evidence := BuildEvidenceBlock(sources, p.cfg.Evidence)
	raw, err := p.gen.Generate(ctx, revisePrompt(message, draft, evidence, timeSensitive))
	if err != nil {
		return "", fmt.Errorf("revise: %w", err)
	}
	return strings.TrimSpace(stripCodeFences(raw)), nil
}

func (p *Pipeline) distill(ctx context.Context, answer string) (string, error) {
	ctx, span := pipelineTracer.Start(ctx, "assistant.distill_media")
	defer span.End()
	t0 := p.now()
	defer func() { p.tele.ObserveStage("distill", p.now().Sub(t0)) }()

	raw, err := p.gen.Generate(ctx, distillPrompt(answer))
	if err != nil {
		return "", fmt.Errorf("distill: %w", err)
	}
	return sanitizeDistilledPhrase(raw), nil
}

func (p *Pipeline) finalize(ctx context.Context, req Request, plan Plan, answer string, sources []Source, needImages, needVideo bool, distilled string) Payload {
	ctx, span := pipelineTracer.Start(ctx, "assistant.finalize")
	defer span.End()
	t0 := p.now()
	defer func() { p.tele.ObserveStage("finalize", p.now().Sub(t0)) }()

	var images, videos []MediaItem
	if needImages || needVideo {
		imgQueries, vidQueries := p.mediaQueries(plan, req, answer, distilled)
		g, gctx := errgroup.WithContext(ctx)
		if needImages {
			g.Go(func() error {
				images = p.collectMedia(gctx, imgQueries, p.cfg.ImageCount, p.tools.SearchImages)
				return nil
			})
		}
		if needVideo {
			g.Go(func() error {
				videos = p.collectMedia(gctx, vidQueries, p.cfg.VideoCount, p.tools.SearchVideos)
				return nil
			})
		}
		_ = g.Wait()
	}

	answer = CleanCitations(answer, len(sources))
	answer = scrubPlanEcho(answer)
	if strings.TrimSpace(answer) == "" {
		answer = FallbackAnswer
	}

	payload := emptyPayload(answer)
	payload.Sources = foldMediaSources(sources, images, videos)
	if len(images) > 0 {
		payload.Images = images
	}
	if len(videos) > 0 {
		payload.Videos = videos
	}
	span.SetAttributes(
		attribute.Int("final.sources", len(payload.Sources)),
		attribute.Int("final.images", len(images)),
		attribute.Int("final.videos", len(videos)),
	)
	return payload
}

// mediaQueries picks the lookup queries for images and videos: the
// distilled phrase when one exists, else titles surfaced in the answer,
// else the plan's own query or the raw message.
func (p *Pipeline) mediaQueries(plan Plan, req Request, answer, distilled string) (imgQueries, vidQueries []string) {
	if distilled != "" {
		return []string{distilled}, []string{distilled}
	}
	if titles := ExtractTitles(answer, p.cfg.MaxTitleQueries); len(titles) > 0 {
		return titles, titles
	}
	img := plan.ImageQuery
	if strings.TrimSpace(img) == "" {
		img = req.Message
	}
	vid := plan.VideoQuery
	if strings.TrimSpace(vid) == "" {
		vid = req.Message
	}
	return []string{img}, []string{vid}
}

// collectMedia gathers up to total items across the fallback queries. With
// several per-title queries each gets a small slice of the total so one
// title cannot crowd out the rest.
func (p *Pipeline) collectMedia(ctx context.Context, queries []string, total int, search func(context.Context, string, int) []MediaItem) []MediaItem {
	if len(queries) == 0 || total <= 0 {
		return nil
	}
	per := total
	if len(queries) > 1 {
		per = 2
	}
	var all []MediaItem
	for _, q := range queries {
		if strings.TrimSpace(q) == "" {
			continue
		}
		all = append(all, search(ctx, q, per)...)
	}
	all = DedupeMedia(all)
	if len(all) > total {
		all = all[:total]
	}
	return all
}

// carriedTopic resolves the substitution topic for vague follow-ups: the
// session memory first, then a backwards scan of the supplied history.
func (p *Pipeline) carriedTopic(req Request) string {
	if topic := p.topics.Recall(req.SessionID); topic != "" {
		return topic
	}
	return topicFromHistory(req.History)
}

// rememberTopic stores the most salient handle on this turn for the next
// vague follow-up: the first fetched title, else the plan's query, else the
// message itself when it names something concrete.
func (p *Pipeline) rememberTopic(req Request, plan Plan, sources []Source) {
	topic := ""
	switch {
	case len(sources) > 0 && strings.TrimSpace(sources[0].Title) != "":
		topic = compactTopic(sources[0].Title)
	case plan.Parsed && strings.TrimSpace(plan.WebQuery) != "":
		topic = plan.WebQuery
	case hasConcreteSubject(req.Message) && !isVagueFollowUp(req.Message):
		topic = compactTopic(req.Message)
	}
	p.topics.Remember(req.SessionID, topic)
}

func (p *Pipeline) articleContext(ctx context.Context, req Request) string {
	if req.Article == nil {
		return ""
	}
	ref := *req.Article
	if !articleFresh(ref, p.now()) && p.articles != nil {
		if resolved, ok := p.articles.Lookup(ctx, ref); ok {
			ref = resolved
		}
	}
	if !articleFresh(ref, p.now()) {
		return ""
	}
	body := capRunes(ref.Content, articleCharCap)
	if strings.TrimSpace(ref.Title) != "" {
		return fmt.Sprintf("%s\n\n%s", strings.TrimSpace(ref.Title), body)
	}
	return body
}

// articleFresh applies the staleness rules: recent enough and long enough
// to be worth prompting with.
func articleFresh(ref ArticleRef, now time.Time) bool {
	if len(strings.TrimSpace(ref.Content)) < articleMinChars {
		return false
	}
	if ref.FetchedAt.IsZero() {
		return false
	}
	return now.Sub(ref.FetchedAt) < articleMaxAge
}

func (p *Pipeline) retrievalContext(ctx context.Context, req Request) string {
	if p.retr == nil || req.SessionID == "" {
		return ""
	}
	snippets := p.retr.Context(ctx, req.SessionID, req.Message, p.cfg.RetrievalSnippets)
	if len(snippets) == 0 {
		return ""
	}
	var b strings.Builder
	for _, s := range snippets {
		fmt.Fprintf(&b, "- %s\n", trimChunk(s, snippetChunkLen))
	}
	return b.String()
}

func (p *Pipeline) isCasualTone(pref string) bool {
	pref = strings.ToLower(strings.TrimSpace(pref))
	if pref == "" {
		return false
	}
	for _, t := range p.cfg.CasualTones {
		if pref == strings.ToLower(t) {
			return true
		}
	}
	return false
}

func (p *Pipeline) hasWeb() bool    { return p.tools != nil && p.tools.HasWeb() }
func (p *Pipeline) hasImages() bool { return p.tools != nil && p.tools.HasImages() }
func (p *Pipeline) hasVideos() bool { return p.tools != nil && p.tools.HasVideos() }

// MergeRevision applies the revision merge policy. When replace is set the
// revision wins outright. Otherwise a revision much shorter than the draft
// (below ratio of its length or below minChars) reads as an addendum and is
// appended; a comprehensive one replaces the draft.
func MergeRevision(draft, revised string, replace bool, ratio float64, minChars int) string {
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.7
	}
	if minChars <= 0 {
		minChars = 600
	}
	d := strings.TrimSpace(draft)
	r := strings.TrimSpace(revised)
	if d == "" {
		return r
	}
	if r == "" {
		return d
	}
	if replace {
		return r
	}
	rLen := utf8.RuneCountInString(r)
	if rLen < int(ratio*float64(utf8.RuneCountInString(d))) || rLen < minChars {
		return d + "\n\n---\n\n" + r
	}
	return r
}

// planEchoFenceRe matches fenced blocks; scrubPlanEcho drops the ones that
// echo the structured plan.
var (
	planEchoFenceRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\{.*?\\}\\s*```")
	planEchoLineRe  = regexp.MustCompile(`(?m)^\s*"(answer|needWeb|needImages|needVideo|webQuery|imageQuery|videoQuery)"\s*:.*$`)
	blankRunsRe     = regexp.MustCompile(`\n{3,}`)
)

// scrubPlanEcho removes structured-output fragments the model leaked into
// prose: fenced JSON blocks carrying plan keys and stray quoted key lines.
func scrubPlanEcho(text string) string {
	out := planEchoFenceRe.ReplaceAllStringFunc(text, func(block string) string {
		if strings.Contains(block, "needWeb") || strings.Contains(block, `"answer"`) {
			return ""
		}
		return block
	})
	out = planEchoLineRe.ReplaceAllString(out, "")
	out = blankRunsRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func emptyPayload(answer string) Payload {
	return Payload{
		Answer:  answer,
		Sources: []Source{},
		Images:  []MediaItem{},
		Videos:  []MediaItem{},
	}
}

// foldMediaSources appends media attributions to the source list so every
// shown item has a reference, deduplicated against the existing sources.
func foldMediaSources(sources []Source, images, videos []MediaItem) []Source {
	out := make([]Source, 0, len(sources)+len(images)+len(videos))
	out = append(out, sources...)
	for _, m := range images {
		out = append(out, Source{Title: m.Title, URL: m.URL})
	}
	for _, m := range videos {
		out = append(out, Source{Title: m.Title, URL: m.URL})
	}
	return DedupeSources(out)
}

func capRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
