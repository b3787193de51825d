package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// testJobClient swaps the clock and the sleeper so polling tests run
// instantly and deterministically.
func testJobClient(t *testing.T, srv *httptest.Server, opts JobOptions) *JobClient {
	t.Helper()
	c := NewJobClient(srv.URL+"/run", srv.URL+"/status", opts)
	clock := time.Unix(1700000000, 0)
	c.now = func() time.Time { return clock }
	c.sleep = func(ctx context.Context, d time.Duration) error {
		clock = clock.Add(d)
		return nil
	}
	return c
}

func TestJobClientPollsToCompletion(t *testing.T) {
	t.Parallel()

	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/run", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST submit, got %s", r.Method)
		}
		var body struct {
			Input struct {
				Prompt string `json:"prompt"`
			} `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Input.Prompt != "explain photosynthesis" {
			t.Errorf("unexpected submit body (err=%v): %+v", err, body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "job-1", "status": "SUBMITTED"})
	})
	mux.HandleFunc("/status/job-1", func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&polls, 1) {
		case 1, 2:
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "job-1", "status": "RUNNING"})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id": "job-1", "status": "COMPLETED",
				"output": map[string]any{"response": "The answer is 42."},
			})
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testJobClient(t, srv, JobOptions{})
	got, err := c.Generate(context.Background(), "explain photosynthesis")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if got != "The answer is 42." {
		t.Fatalf("unexpected output: %q", got)
	}
	if n := atomic.LoadInt32(&polls); n != 3 {
		t.Fatalf("expected exactly 3 polls, got %d", n)
	}
}

func TestJobClientImmediateOutput(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/run", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "COMPLETED", "output": "done instantly"})
	})
	mux.HandleFunc("/status/", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("status endpoint should not be hit when submit is terminal")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testJobClient(t, srv, JobOptions{})
	got, err := c.Generate(context.Background(), "quick one")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if got != "done instantly" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestJobClientFailedStatus(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/run", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "job-2", "status": "IN_QUEUE"})
	})
	mux.HandleFunc("/status/job-2", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "job-2", "status": "failed"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testJobClient(t, srv, JobOptions{})
	_, err := c.Generate(context.Background(), "doomed")
	var jf ErrJobFailed
	if !errors.As(err, &jf) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}
	if jf.Status != "FAILED" {
		t.Fatalf("expected normalized FAILED status, got %q", jf.Status)
	}
}

func TestJobClientTimesOut(t *testing.T) {
	t.Parallel()

	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/run", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "job-3", "status": "SUBMITTED"})
	})
	mux.HandleFunc("/status/job-3", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&polls, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "job-3", "status": "RUNNING"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testJobClient(t, srv, JobOptions{
		MaxWait:      10 * time.Second,
		PollInterval: time.Second,
		PollStep:     time.Second,
		PollCap:      3 * time.Second,
	})
	_, err := c.Generate(context.Background(), "slow job")
	var jt ErrJobTimedOut
	if !errors.As(err, &jt) {
		t.Fatalf("expected ErrJobTimedOut, got %v", err)
	}
	// Delays run 1s, 2s, 3s, 3s; the next 3s hop would pass 10s.
	if jt.Waited != 9*time.Second {
		t.Fatalf("expected 9s waited, got %s", jt.Waited)
	}
	if n := atomic.LoadInt32(&polls); n != 4 {
		t.Fatalf("expected 4 polls before giving up, got %d", n)
	}
}

func TestJobClientMissingJobID(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/run", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "SUBMITTED"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testJobClient(t, srv, JobOptions{})
	if _, err := c.Generate(context.Background(), "lost"); err == nil {
		t.Fatalf("expected an error when the submit response has no job id")
	}
}
