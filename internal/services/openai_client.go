package services

import (
  "bytes"
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "io"
  "math/rand"
  "net"
  "net/http"
  "strconv"
  "strings"
  "time"

  "github.com/studyforge/studyforge-backend/internal/apierr"
  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/utils"
)

// GenerateOptions are the per-call knobs the enricher varies between the
// title field and the longer analytical fields.
type GenerateOptions struct {
  MaxTokens   int
  Temperature float64
}

type OpenAIClient interface {
  GenerateText(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

type openAIClient struct {
  log        *logger.Logger
  baseURL    string
  apiKey     string
  model      string
  httpClient *http.Client

  maxRetries int
}

func NewOpenAIClient(log *logger.Logger) (OpenAIClient, error) {
  apiKey := utils.GetEnv("OPENAI_API_KEY", "", log)
  if apiKey == "" {
    return nil, fmt.Errorf("missing OPENAI_API_KEY")
  }
  baseURL := utils.GetEnv("OPENAI_BASE_URL", "https://api.openai.com", log)
  model := utils.GetEnv("OPENAI_MODEL", "gpt-4o-mini", log)
  timeoutSec := utils.GetEnvAsInt("OPENAI_TIMEOUT_SECONDS", 60, log)
  maxRetries := utils.GetEnvAsInt("OPENAI_MAX_RETRIES", 3, log)

  return &openAIClient{
    log:        log.With("service", "OpenAIClient"),
    baseURL:    strings.TrimRight(baseURL, "/"),
    apiKey:     apiKey,
    model:      model,
    httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
    maxRetries: maxRetries,
  }, nil
}

type openAIHTTPError struct {
  StatusCode int
  Body       string
}

func (e *openAIHTTPError) Error() string {
  return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
  if code == 408 || code == 429 {
    return true
  }
  return code >= 500 && code <= 599
}

func isRetryableErr(err error) bool {
  if err == nil {
    return false
  }
  if errors.Is(err, context.DeadlineExceeded) {
    return true
  }
  var netErr net.Error
  if errors.As(err, &netErr) && netErr.Timeout() {
    return true
  }
  var httpErr *openAIHTTPError
  if errors.As(err, &httpErr) {
    return isRetryableHTTP(httpErr.StatusCode)
  }
  return false
}

// jitterSleep spreads a backoff by +/- 20% so retry storms desynchronize.
func jitterSleep(base time.Duration) time.Duration {
  if base <= 0 {
    return 0
  }
  delta := base.Seconds() * 0.2
  low := base.Seconds() - delta
  v := low + rand.Float64()*2*delta
  return time.Duration(v * float64(time.Second))
}

func (c *openAIClient) doOnce(ctx context.Context, path string, body any) (*http.Response, []byte, error) {
  var buf bytes.Buffer
  if err := json.NewEncoder(&buf).Encode(body); err != nil {
    return nil, nil, err
  }
  req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
  if err != nil {
    return nil, nil, err
  }
  req.Header.Set("Authorization", "Bearer "+c.apiKey)
  req.Header.Set("Content-Type", "application/json")

  resp, err := c.httpClient.Do(req)
  if err != nil {
    return nil, nil, err
  }
  raw, readErr := io.ReadAll(resp.Body)
  _ = resp.Body.Close()
  if readErr != nil {
    return resp, nil, readErr
  }
  if resp.StatusCode < 200 || resp.StatusCode >= 300 {
    return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 2000)}
  }
  return resp, raw, nil
}

func (c *openAIClient) do(ctx context.Context, path string, body any, out any) error {
  backoff := 1 * time.Second

  // maxRetries counts total attempts, same accounting as the Data API
  // client.
  for attempt := 1; attempt <= c.maxRetries; attempt++ {
    if ctx.Err() != nil {
      return ctx.Err()
    }
    resp, raw, err := c.doOnce(ctx, path, body)
    if err == nil {
      if uErr := json.Unmarshal(raw, out); uErr != nil {
        return apierr.Upstream(fmt.Errorf("openai decode error: %w", uErr))
      }
      return nil
    }
    // A canceled caller context is never worth retrying.
    if ctx.Err() != nil {
      return ctx.Err()
    }
    if !isRetryableErr(err) {
      var httpErr *openAIHTTPError
      if errors.As(err, &httpErr) && httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
        return apierr.InvalidInput(err)
      }
      return apierr.Upstream(err)
    }
    if attempt == c.maxRetries {
      return apierr.Upstream(err)
    }

    sleepFor := backoff
    if resp != nil {
      if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
        if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 {
          sleepFor = time.Duration(secs) * time.Second
        }
      }
    }
    if sleepFor > 10*time.Second {
      sleepFor = 10 * time.Second
    }
    sleepFor = jitterSleep(sleepFor)

    c.log.Warn("OpenAI request retrying",
      "path", path,
      "attempt", attempt,
      "max_retries", c.maxRetries,
      "sleep", sleepFor.String(),
      "error", err.Error(),
    )
    select {
    case <-ctx.Done():
      return ctx.Err()
    case <-time.After(sleepFor):
    }
    backoff *= 2
  }
  return fmt.Errorf("unreachable retry loop")
}

type chatCompletionRequest struct {
  Model    string `json:"model"`
  Messages []struct {
    Role    string `json:"role"`
    Content string `json:"content"`
  } `json:"messages"`
  Temperature float64 `json:"temperature"`
  MaxTokens   int     `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
  Choices []struct {
    Message struct {
      Content string `json:"content"`
    } `json:"message"`
    FinishReason string `json:"finish_reason"`
  } `json:"choices"`
}

func (c *openAIClient) GenerateText(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
  req := chatCompletionRequest{
    Model:       c.model,
    Temperature: opts.Temperature,
    MaxTokens:   opts.MaxTokens,
  }
  req.Messages = []struct {
    Role    string `json:"role"`
    Content string `json:"content"`
  }{
    {Role: "user", Content: prompt},
  }

  var resp chatCompletionResponse
  if err := c.do(ctx, "/v1/chat/completions", req, &resp); err != nil {
    return "", err
  }
  if len(resp.Choices) == 0 {
    return "", apierr.Upstream(errors.New("openai returned no choices"))
  }
  return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
