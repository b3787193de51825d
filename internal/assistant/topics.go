package assistant

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// TopicMemory remembers the most recent concrete topic per session so a
// vague follow-up ("what about that one?") can inherit it. Entries age out
// after the TTL and the LRU bound keeps memory flat no matter how many
// sessions churn through.
type TopicMemory struct {
	lru *expirable.LRU[string, string]
}

// NewTopicMemory builds a memory of at most size sessions with the given
// entry TTL. Non-positive arguments fall back to 1024 entries and 30
// minutes.
func NewTopicMemory(size int, ttl time.Duration) *TopicMemory {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &TopicMemory{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

// Remember stores topic for the session. Empty session ids (anonymous
// one-shot calls) and empty topics are ignored.
func (t *TopicMemory) Remember(sessionID, topic string) {
	if t == nil || sessionID == "" || topic == "" {
		return
	}
	t.lru.Add(sessionID, topic)
}

// Recall returns the carried topic for the session, or "".
func (t *TopicMemory) Recall(sessionID string) string {
	if t == nil || sessionID == "" {
		return ""
	}
	v, _ := t.lru.Get(sessionID)
	return v
}
