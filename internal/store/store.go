// Package store persists chat turns to Postgres. The pipeline never waits
// on it; the server calls SaveTurn from a fire-and-forget goroutine.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq"

	"github.com/studysage/sage/internal/assistant"
)

type Store struct {
	DB *sql.DB
}

// Turn is one persisted exchange: the user message plus everything the
// pipeline produced for it.
type Turn struct {
	ID        string                `json:"id"`
	SessionID string                `json:"session_id"`
	UserID    string                `json:"user_id,omitempty"`
	Message   string                `json:"message"`
	Answer    string                `json:"answer"`
	Sources   []assistant.Source    `json:"sources"`
	Images    []assistant.MediaItem `json:"images"`
	Videos    []assistant.MediaItem `json:"videos"`
	WebUsed   bool                  `json:"web_used"`
	Reason    string                `json:"reason,omitempty"`
	Elapsed   time.Duration         `json:"-"`
	CreatedAt time.Time             `json:"created_at"`
}

func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// SaveTurn inserts one turn and returns its id.
func (s *Store) SaveTurn(ctx context.Context, t Turn) (string, error) {
	sources, _ := json.Marshal(t.Sources)
	images, _ := json.Marshal(t.Images)
	videos, _ := json.Marshal(t.Videos)
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO chat_turns (session_id, user_id, message, answer, sources, images, videos, web_used, web_reason, elapsed_ms)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id`,
		t.SessionID, t.UserID, t.Message, t.Answer, sources, images, videos,
		t.WebUsed, t.Reason, t.Elapsed.Milliseconds()).Scan(&id)
	return id, err
}

// RecentTurns returns the latest turns for a session, oldest first, ready
// to replay as chat history.
func (s *Store) RecentTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, session_id, user_id, message, answer, sources, images, videos, web_used, web_reason, elapsed_ms, created_at
FROM chat_turns
WHERE session_id=$1
ORDER BY created_at DESC
LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Turn
	for rows.Next() {
		var (
			t         Turn
			sources   []byte
			images    []byte
			videos    []byte
			elapsedMS int64
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.UserID, &t.Message, &t.Answer,
			&sources, &images, &videos, &t.WebUsed, &t.Reason, &elapsedMS, &t.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(sources, &t.Sources)
		_ = json.Unmarshal(images, &t.Images)
		_ = json.Unmarshal(videos, &t.Videos)
		t.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// History converts stored turns into pipeline messages, most recent last.
func History(turns []Turn) []assistant.Message {
	out := make([]assistant.Message, 0, len(turns)*2)
	for _, t := range turns {
		out = append(out, assistant.Message{Role: assistant.RoleUser, Content: t.Message})
		out = append(out, assistant.Message{Role: assistant.RoleAssistant, Content: t.Answer})
	}
	return out
}
