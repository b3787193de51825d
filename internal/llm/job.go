package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/studysage/sage/internal/httpx"
)

// Terminal statuses reported by the job backend.
const (
	statusCompleted = "COMPLETED"
	statusFailed    = "FAILED"
	statusCancelled = "CANCELLED"
	statusError     = "ERROR"
)

// Polling defaults. The interval grows linearly by PollStep per attempt up
// to PollCap, and the whole call is bounded by MaxWait.
const (
	DefaultMaxWait      = 60 * time.Second
	DefaultPollInterval = time.Second
	DefaultPollStep     = 500 * time.Millisecond
	DefaultPollCap      = 5 * time.Second
)

// JobClient drives generation backends that queue work: submit the prompt,
// then poll the status endpoint until the job reaches a terminal state. A
// terminal output already present in the submit response skips polling.
type JobClient struct {
	SubmitURL string
	StatusURL string
	APIKey    string

	MaxWait      time.Duration
	PollInterval time.Duration
	PollStep     time.Duration
	PollCap      time.Duration

	client *httpx.Client
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

type JobOptions struct {
	APIKey       string
	MaxWait      time.Duration
	PollInterval time.Duration
	PollStep     time.Duration
	PollCap      time.Duration
}

func NewJobClient(submitURL, statusURL string, opts JobOptions) *JobClient {
	c := &JobClient{
		SubmitURL:    submitURL,
		StatusURL:    statusURL,
		APIKey:       opts.APIKey,
		MaxWait:      opts.MaxWait,
		PollInterval: opts.PollInterval,
		PollStep:     opts.PollStep,
		PollCap:      opts.PollCap,
		client:       httpx.New(30*time.Second, 1, 300*time.Millisecond),
		now:          time.Now,
		sleep:        sleepCtx,
	}
	if c.MaxWait <= 0 {
		c.MaxWait = DefaultMaxWait
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollStep < 0 {
		c.PollStep = DefaultPollStep
	}
	if c.PollCap <= 0 {
		c.PollCap = DefaultPollCap
	}
	return c
}

func (c *JobClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{"input": map[string]any{"prompt": prompt}}
	var submitted map[string]any
	if err := c.client.DoJSON(ctx, "POST", c.SubmitURL, c.headers(), payload, &submitted); err != nil {
		return "", fmt.Errorf("submit generation job: %w", err)
	}
	if done, text, err := terminal(submitted); done {
		return text, err
	}

	id := jobID(submitted)
	if id == "" {
		return "", fmt.Errorf("submit response carries no job id: keys=%v", keysOf(submitted))
	}

	start := c.now()
	for attempt := 0; ; attempt++ {
		delay := c.PollInterval + time.Duration(attempt)*c.PollStep
		if delay > c.PollCap {
			delay = c.PollCap
		}
		if c.now().Sub(start)+delay > c.MaxWait {
			return "", ErrJobTimedOut{Waited: c.now().Sub(start)}
		}
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}

		var status map[string]any
		if err := c.client.DoJSON(ctx, "GET", c.statusEndpoint(id), c.headers(), nil, &status); err != nil {
			return "", fmt.Errorf("poll generation job %s: %w", id, err)
		}
		if done, text, err := terminal(status); done {
			return text, err
		}
	}
}

// terminal reports whether the document describes a finished job and, if
// so, resolves it to output text or a typed error.
func terminal(doc map[string]any) (bool, string, error) {
	status, _ := doc["status"].(string)
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case statusCompleted:
		text, ok := ExtractText(doc)
		if !ok {
			return true, "", fmt.Errorf("job completed but no output text found")
		}
		return true, text, nil
	case statusFailed, statusCancelled, statusError:
		return true, "", ErrJobFailed{Status: strings.ToUpper(strings.TrimSpace(status))}
	}
	// Synchronous backends answer without a status field at all.
	if _, has := doc["status"]; !has {
		if text, ok := ExtractText(doc); ok {
			return true, text, nil
		}
	}
	return false, "", nil
}

func jobID(doc map[string]any) string {
	for _, k := range []string{"id", "job_id", "uuid"} {
		if s, ok := doc[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func (c *JobClient) statusEndpoint(id string) string {
	return strings.TrimRight(c.StatusURL, "/") + "/" + id
}

func (c *JobClient) headers() map[string]string {
	if c.APIKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.APIKey}
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ Generator = (*JobClient)(nil)
