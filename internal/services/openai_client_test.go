package services

import (
  "context"
  "net/http"
  "net/http/httptest"
  "sync/atomic"
  "testing"

  "github.com/studyforge/studyforge-backend/internal/logger"
)

func newTestOpenAIClient(t *testing.T, baseURL, maxRetries string) OpenAIClient {
  t.Helper()
  t.Setenv("OPENAI_API_KEY", "test-key")
  t.Setenv("OPENAI_BASE_URL", baseURL)
  t.Setenv("OPENAI_MAX_RETRIES", maxRetries)
  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("logger init failed: %v", err)
  }
  client, err := NewOpenAIClient(log)
  if err != nil {
    t.Fatalf("client init failed: %v", err)
  }
  return client
}

func TestGenerateText_MaxRetriesCountsTotalAttempts(t *testing.T) {
  var calls int64
  srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
    atomic.AddInt64(&calls, 1)
    w.WriteHeader(http.StatusInternalServerError)
  }))
  defer srv.Close()

  client := newTestOpenAIClient(t, srv.URL, "1")
  if _, err := client.GenerateText(context.Background(), "hello", GenerateOptions{}); err == nil {
    t.Fatalf("expected error from failing upstream")
  }
  if got := atomic.LoadInt64(&calls); got != 1 {
    t.Fatalf("expected exactly 1 attempt, got %d", got)
  }
}

func TestGenerateText_RetriesThenSucceeds(t *testing.T) {
  var calls int64
  srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
    if atomic.AddInt64(&calls, 1) == 1 {
      w.WriteHeader(http.StatusServiceUnavailable)
      return
    }
    w.Header().Set("Content-Type", "application/json")
    _, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
  }))
  defer srv.Close()

  client := newTestOpenAIClient(t, srv.URL, "3")
  text, err := client.GenerateText(context.Background(), "hello", GenerateOptions{})
  if err != nil {
    t.Fatalf("expected success after retry: %v", err)
  }
  if text != "ok" {
    t.Fatalf("wrong content %q", text)
  }
  if got := atomic.LoadInt64(&calls); got != 2 {
    t.Fatalf("expected 2 attempts, got %d", got)
  }
}

func TestGenerateText_ClientErrorNotRetried(t *testing.T) {
  var calls int64
  srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
    atomic.AddInt64(&calls, 1)
    w.WriteHeader(http.StatusBadRequest)
  }))
  defer srv.Close()

  client := newTestOpenAIClient(t, srv.URL, "3")
  if _, err := client.GenerateText(context.Background(), "hello", GenerateOptions{}); err == nil {
    t.Fatalf("expected error from 400 response")
  }
  if got := atomic.LoadInt64(&calls); got != 1 {
    t.Fatalf("4xx should not retry, got %d attempts", got)
  }
}
