// Package llm provides the text-generation clients behind the answer
// pipeline: a direct chat-completion client and a submit/poll job client
// for backends that queue generation work. Both satisfy Generator, and
// callers never depend on which one is wired.
package llm

import (
	"fmt"
	"time"

	"github.com/studysage/sage/internal/assistant"
)

// Generator aliases the capability the pipeline consumes, so wiring code
// only needs this package.
type Generator = assistant.Generator

// ErrJobFailed is returned when the job backend lands in a rejected
// terminal state. The upstream made a decision; the same prompt may
// succeed on retry.
type ErrJobFailed struct {
	Status string
}

func (e ErrJobFailed) Error() string {
	return fmt.Sprintf("generation job failed: status=%s", e.Status)
}

// ErrJobTimedOut is returned when a job stays non-terminal past the
// configured max wait. Kept distinct from ErrJobFailed so callers can
// retry only the too-slow case.
type ErrJobTimedOut struct {
	Waited time.Duration
}

func (e ErrJobTimedOut) Error() string {
	return fmt.Sprintf("generation job timed out after %s", e.Waited.Round(time.Millisecond))
}
