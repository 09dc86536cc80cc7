package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"IssueTriage/internal/config"
	"IssueTriage/internal/ratelimit"
)

func newTestClient(endpoint string) *ChatGPTClient {
	return NewChatGPTClient(config.LLMConfig{Endpoint: endpoint, Model: "gpt-test", APIKey: "key"})
}

func TestCompleteSendsMessages(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("authorization = %q", got)
		}
		var body struct {
			Model    string        `json:"model"`
			Messages []chatMessage `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Model != "gpt-test" || len(body.Messages) != 2 {
			t.Errorf("unexpected body %+v", body)
		}
		if body.Messages[0].Role != "system" || body.Messages[0].Content != "classify" {
			t.Errorf("unexpected system message %+v", body.Messages[0])
		}
		if body.Messages[1].Role != "user" || body.Messages[1].Content != "Title: t" {
			t.Errorf("unexpected user message %+v", body.Messages[1])
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"{\"type\":\"alias\"}"}}]}`)
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Complete(context.Background(), "classify", "Title: t")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got != `{"type":"alias"}` {
		t.Fatalf("unexpected answer %q", got)
	}
}

func TestCompleteMapsTooManyRequests(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), "s", "u")
	if !errors.Is(err, ratelimit.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestCompleteErrors(t *testing.T) {
	t.Parallel()

	if _, err := NewChatGPTClient(config.LLMConfig{}).Complete(context.Background(), "s", "u"); err == nil {
		t.Fatalf("expected misconfiguration error")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/empty":
			fmt.Fprint(w, `{"choices":[]}`)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL+"/fail").Complete(context.Background(), "s", "u")
	if err == nil || errors.Is(err, ratelimit.ErrRateLimited) {
		t.Fatalf("expected plain server error, got %v", err)
	}
	if _, err := newTestClient(srv.URL+"/empty").Complete(context.Background(), "s", "u"); err == nil {
		t.Fatalf("expected no-choices error")
	}
}

func TestLimitedCompleterRetriesRateLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "rate limit", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer srv.Close()

	var retries atomic.Int32
	limiter := ratelimit.New(ratelimit.Options{
		MaxCalls: 10,
		Per:      time.Minute,
		Backoff:  10 * time.Millisecond,
		OnRetry:  func(error) { retries.Add(1) },
	})

	got, err := NewLimitedCompleter(newTestClient(srv.URL), limiter).Complete(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got != "ok" || calls.Load() != 2 || retries.Load() != 1 {
		t.Fatalf("got %q after %d calls and %d retries", got, calls.Load(), retries.Load())
	}
}

func TestLimitedCompleterPassThrough(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limit", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewLimitedCompleter(newTestClient(srv.URL), nil).Complete(context.Background(), "s", "u")
	if !errors.Is(err, ratelimit.ErrRateLimited) {
		t.Fatalf("expected rate-limit error to surface without a limiter, got %v", err)
	}
}
