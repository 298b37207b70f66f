package services

import (
  "context"
  "fmt"

  "golang.org/x/sync/errgroup"

  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/types"
  "github.com/studyforge/studyforge-backend/internal/utils"
)

// EnrichInput is one chunk handed to the enricher: the body text plus the
// resource kind that selects the prompt set.
type EnrichInput struct {
  ChunkID int
  Kind    string
  Text    string
}

// EnrichResult carries whatever fields succeeded. Err is non-nil only when
// every field failed; partial results come back with Err nil and the failed
// fields empty.
type EnrichResult struct {
  ChunkID int
  Fields  types.ChunkAIFields
  Err     error
}

type EnricherService interface {
  EnrichChunk(ctx context.Context, in EnrichInput) EnrichResult
  EnrichAll(ctx context.Context, inputs []EnrichInput) []EnrichResult
}

type enricherService struct {
  log        *logger.Logger
  client     OpenAIClient
  prompts    PromptService
  maxWorkers int
  titleOpts  GenerateOptions
  fieldOpts  GenerateOptions
}

func NewEnricherService(log *logger.Logger, client OpenAIClient, prompts PromptService) EnricherService {
  temperature := utils.GetEnvAsFloat("OPENAI_TEMPERATURE", 0.5, log)
  return &enricherService{
    log:        log.With("service", "EnricherService"),
    client:     client,
    prompts:    prompts,
    maxWorkers: utils.GetEnvAsInt("OPENAI_MAX_WORKERS", 5, log),
    titleOpts: GenerateOptions{
      MaxTokens:   utils.GetEnvAsInt("OPENAI_MAX_TOKENS_TITLE", 50, log),
      Temperature: temperature,
    },
    fieldOpts: GenerateOptions{
      MaxTokens:   utils.GetEnvAsInt("OPENAI_MAX_TOKENS_OTHER", 200, log),
      Temperature: temperature,
    },
  }
}

// EnrichChunk runs the four field generations independently. One field
// failing never blocks the others; the failed field stays empty.
func (e *enricherService) EnrichChunk(ctx context.Context, in EnrichInput) EnrichResult {
  set, err := e.prompts.ForKind(in.Kind)
  if err != nil {
    return EnrichResult{ChunkID: in.ChunkID, Err: err}
  }

  type fieldJob struct {
    name     string
    template string
    opts     GenerateOptions
    dst      *string
  }
  result := EnrichResult{ChunkID: in.ChunkID}
  jobs := []fieldJob{
    {"short_title", set.ShortTitle, e.titleOpts, &result.Fields.ShortTitle},
    {"summary", set.Summary, e.fieldOpts, &result.Fields.Summary},
    {"key_points", set.KeyPoints, e.fieldOpts, &result.Fields.KeyPoints},
    {"takeaways", set.Takeaways, e.fieldOpts, &result.Fields.Takeaways},
  }

  failures := 0
  var lastErr error
  for _, job := range jobs {
    prompt := e.prompts.Render(job.template, in.Text)
    text, genErr := e.client.GenerateText(ctx, prompt, job.opts)
    if genErr != nil {
      failures++
      lastErr = genErr
      e.log.Warn("Chunk field enrichment failed",
        "chunk_id", in.ChunkID,
        "field", job.name,
        "error", genErr.Error(),
      )
      continue
    }
    *job.dst = text
  }
  if failures == len(jobs) {
    result.Err = fmt.Errorf("all enrichment fields failed for chunk %d: %w", in.ChunkID, lastErr)
  }
  return result
}

// EnrichAll fans chunks out across a bounded worker pool and returns
// results in input order, one per input, failures included in place.
func (e *enricherService) EnrichAll(ctx context.Context, inputs []EnrichInput) []EnrichResult {
  results := make([]EnrichResult, len(inputs))
  if len(inputs) == 0 {
    return results
  }

  g, gctx := errgroup.WithContext(ctx)
  g.SetLimit(e.maxWorkers)
  for i, in := range inputs {
    i, in := i, in
    g.Go(func() error {
      if gctx.Err() != nil {
        results[i] = EnrichResult{ChunkID: in.ChunkID, Err: gctx.Err()}
        return nil
      }
      results[i] = e.EnrichChunk(gctx, in)
      return nil
    })
  }
  // Workers never return errors; failures are absorbed into their slot.
  _ = g.Wait()
  return results
}
