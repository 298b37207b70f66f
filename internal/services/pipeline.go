package services

import (
  "context"
  "errors"
  "fmt"
  "time"

  "github.com/google/uuid"

  "github.com/studyforge/studyforge-backend/internal/apierr"
  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/repos"
  "github.com/studyforge/studyforge-backend/internal/types"
  "github.com/studyforge/studyforge-backend/internal/utils"
)

// PipelineService drives the video ingestion flow: metadata, transcript
// chunking, AI enrichment. Every stage is independently re-runnable and
// all per-resource mutation is serialized behind a keyed lock.
type PipelineService interface {
  ProcessMetadata(ctx context.Context, videoRef string) (*types.Resource, error)
  ProcessChunks(ctx context.Context, resourceID string) (int, error)
  ProcessEnrichment(ctx context.Context, resourceID string) (int, error)
  ProcessFull(ctx context.Context, videoRef string) (*types.Resource, int, error)
  StartEnrichmentJob(resourceID string) (string, error)

  GetVideo(ctx context.Context, resourceID string) (*types.Resource, []types.ChunkIndexEntry, error)
  ListVideos(ctx context.Context, channelID string, limit int) ([]*types.Resource, error)
  GetChunk(ctx context.Context, resourceID string, chunkID int) (*types.Chunk, string, error)
  GetAIStatus(ctx context.Context, resourceID string, chunkID *int) ([]types.ChunkAIStatus, error)
  DeleteVideo(ctx context.Context, resourceID string) error
}

type pipelineService struct {
  log          *logger.Logger
  resourceRepo repos.ResourceRepo
  chunkRepo    repos.ChunkRepo
  youtube      YouTubeService
  subtitles    SubtitleService
  bucket       BucketService
  enricher     EnricherService
  cache        AIStatusCache
  locks        *KeyedLock
  chunkCfg     ChunkConfig

  jobTimeout time.Duration
}

func NewPipelineService(
  log *logger.Logger,
  resourceRepo repos.ResourceRepo,
  chunkRepo repos.ChunkRepo,
  youtube YouTubeService,
  subtitles SubtitleService,
  bucket BucketService,
  enricher EnricherService,
  cache AIStatusCache,
  locks *KeyedLock,
  chunkCfg ChunkConfig,
) PipelineService {
  return &pipelineService{
    log:          log.With("service", "PipelineService"),
    resourceRepo: resourceRepo,
    chunkRepo:    chunkRepo,
    youtube:      youtube,
    subtitles:    subtitles,
    bucket:       bucket,
    enricher:     enricher,
    cache:        cache,
    locks:        locks,
    chunkCfg:     chunkCfg,
    jobTimeout:   time.Duration(utils.GetEnvAsInt("ENRICH_JOB_TIMEOUT_SECONDS", 1800, log)) * time.Second,
  }
}

func videoLockKey(id string) string { return "video:" + id }

// ProcessMetadata resolves the URL or bare ID, fetches metadata from the
// Data API and upserts the resource row. Re-running refreshes metadata
// without touching chunks.
func (p *pipelineService) ProcessMetadata(ctx context.Context, videoRef string) (*types.Resource, error) {
  videoID, err := ExtractVideoID(videoRef)
  if err != nil {
    return nil, err
  }
  res, err := p.youtube.FetchOne(ctx, videoID)
  if err != nil {
    return nil, err
  }

  p.locks.Lock(videoLockKey(videoID))
  defer p.locks.Unlock(videoLockKey(videoID))

  if err := p.resourceRepo.Upsert(ctx, nil, res); err != nil {
    return nil, apierr.Internal(fmt.Errorf("Failed to upsert resource %s: %w", videoID, err))
  }
  p.log.Info("Video metadata stored", "resource_id", videoID, "channel_id", res.ChannelID)
  return res, nil
}

// ProcessChunks extracts the transcript, chunks it, and replaces whatever
// chunk state existed: payloads are deleted before rows, then new payloads
// are written before rows are inserted in ascending chunk order. A video
// without captions ends up with zero chunks, which is a success.
func (p *pipelineService) ProcessChunks(ctx context.Context, resourceID string) (int, error) {
  res, err := p.resourceRepo.GetByID(ctx, nil, resourceID)
  if err != nil {
    return 0, apierr.Internal(fmt.Errorf("Failed to load resource %s: %w", resourceID, err))
  }
  if res == nil {
    return 0, apierr.NotFound(fmt.Errorf("resource %s not found, run metadata first", resourceID))
  }
  if res.Kind != types.KindVideo {
    return 0, apierr.InvalidInput(fmt.Errorf("resource %s is not a video", resourceID))
  }

  transcript, err := p.subtitles.ExtractTranscript(ctx, resourceID)
  if err != nil && !errors.Is(err, ErrNoCaptions) {
    return 0, err
  }

  pieces := []ChunkPiece{}
  if transcript != "" {
    pieces = ChunkText(transcript, p.chunkCfg)
  }

  p.locks.Lock(videoLockKey(resourceID))
  defer p.locks.Unlock(videoLockKey(resourceID))

  if err := p.bucket.DeleteAllForResource(ctx, resourceID); err != nil {
    return 0, err
  }
  if err := p.chunkRepo.DeleteForResource(ctx, nil, resourceID); err != nil {
    return 0, apierr.Internal(fmt.Errorf("Failed to clear chunk rows for %s: %w", resourceID, err))
  }
  if len(pieces) == 0 {
    p.log.Info("Video has no transcript, chunk state cleared", "resource_id", resourceID)
    p.cache.Invalidate(ctx, resourceID)
    return 0, nil
  }

  rows := make([]*types.Chunk, 0, len(pieces))
  for _, piece := range pieces {
    ref, err := p.bucket.PutChunkText(ctx, resourceID, piece.ChunkID, piece.Text)
    if err != nil {
      return 0, err
    }
    rows = append(rows, &types.Chunk{
      ResourceID:    resourceID,
      ChunkID:       piece.ChunkID,
      TextRef:       ref,
      WordCount:     piece.WordCount,
      SentenceCount: piece.SentenceCount,
    })
  }
  if err := p.chunkRepo.UpsertBatch(ctx, nil, rows); err != nil {
    return 0, apierr.Internal(fmt.Errorf("Failed to insert chunk rows for %s: %w", resourceID, err))
  }
  p.cache.Invalidate(ctx, resourceID)
  p.log.Info("Video chunked", "resource_id", resourceID, "chunks", len(rows))
  return len(rows), nil
}

// ProcessEnrichment runs AI enrichment over every chunk of the resource.
// Per-chunk failures are logged and skipped; the count of successfully
// updated chunks comes back. AI fields only ever move from empty to
// populated here, never back.
func (p *pipelineService) ProcessEnrichment(ctx context.Context, resourceID string) (int, error) {
  res, err := p.resourceRepo.GetByID(ctx, nil, resourceID)
  if err != nil {
    return 0, apierr.Internal(fmt.Errorf("Failed to load resource %s: %w", resourceID, err))
  }
  if res == nil {
    return 0, apierr.NotFound(fmt.Errorf("resource %s not found", resourceID))
  }

  // Same lock as the chunk mutators, so a concurrent rechunk or chapter
  // reorder cannot renumber rows while enrichment results are landing.
  lockKey := videoLockKey(resourceID)
  if res.Kind == types.KindBook {
    lockKey = bookLockKey(resourceID)
  }
  p.locks.Lock(lockKey)
  defer p.locks.Unlock(lockKey)

  chunks, err := p.chunkRepo.GetByResource(ctx, nil, resourceID)
  if err != nil {
    return 0, apierr.Internal(fmt.Errorf("Failed to load chunks for %s: %w", resourceID, err))
  }
  if len(chunks) == 0 {
    return 0, nil
  }

  inputs := make([]EnrichInput, 0, len(chunks))
  for _, c := range chunks {
    text, err := p.bucket.GetChunkText(ctx, c.TextRef)
    if err != nil {
      return 0, err
    }
    inputs = append(inputs, EnrichInput{ChunkID: c.ChunkID, Kind: res.Kind, Text: text})
  }

  results := p.enricher.EnrichAll(ctx, inputs)
  updated := 0
  for _, r := range results {
    if r.Err != nil {
      p.log.Warn("Chunk enrichment failed entirely",
        "resource_id", resourceID,
        "chunk_id", r.ChunkID,
        "error", r.Err.Error(),
      )
      continue
    }
    if r.Fields.Empty() {
      continue
    }
    if err := p.chunkRepo.UpdateAIFields(ctx, nil, resourceID, r.ChunkID, r.Fields); err != nil {
      p.log.Error("Failed to store enrichment result",
        "resource_id", resourceID,
        "chunk_id", r.ChunkID,
        "error", err.Error(),
      )
      continue
    }
    updated++
  }
  p.cache.Invalidate(ctx, resourceID)
  p.log.Info("Enrichment pass finished",
    "resource_id", resourceID,
    "chunks", len(chunks),
    "updated", updated,
  )
  return updated, nil
}

// ProcessFull is metadata, chunking and enrichment in one call.
func (p *pipelineService) ProcessFull(ctx context.Context, videoRef string) (*types.Resource, int, error) {
  res, err := p.ProcessMetadata(ctx, videoRef)
  if err != nil {
    return nil, 0, err
  }
  if _, err := p.ProcessChunks(ctx, res.ID); err != nil {
    return nil, 0, err
  }
  updated, err := p.ProcessEnrichment(ctx, res.ID)
  if err != nil {
    return nil, 0, err
  }
  return res, updated, nil
}

// StartEnrichmentJob launches enrichment in the background and returns a
// job id immediately. Progress is observable through the ai-status
// endpoint, which is how clients poll anyway.
func (p *pipelineService) StartEnrichmentJob(resourceID string) (string, error) {
  jobID := uuid.NewString()
  jobLog := p.log.With("job_id", jobID, "resource_id", resourceID)
  go func() {
    ctx, cancel := context.WithTimeout(context.Background(), p.jobTimeout)
    defer cancel()
    updated, err := p.ProcessEnrichment(ctx, resourceID)
    if err != nil {
      jobLog.Error("Background enrichment job failed", "error", err.Error())
      return
    }
    jobLog.Info("Background enrichment job finished", "updated", updated)
  }()
  return jobID, nil
}

func (p *pipelineService) GetVideo(ctx context.Context, resourceID string) (*types.Resource, []types.ChunkIndexEntry, error) {
  res, err := p.resourceRepo.GetByID(ctx, nil, resourceID)
  if err != nil {
    return nil, nil, apierr.Internal(fmt.Errorf("Failed to load resource %s: %w", resourceID, err))
  }
  if res == nil || res.Kind != types.KindVideo {
    return nil, nil, apierr.NotFound(fmt.Errorf("video %s not found", resourceID))
  }
  index, err := p.chunkRepo.GetIndex(ctx, nil, resourceID)
  if err != nil {
    return nil, nil, apierr.Internal(fmt.Errorf("Failed to load chunk index for %s: %w", resourceID, err))
  }
  return res, index, nil
}

func (p *pipelineService) ListVideos(ctx context.Context, channelID string, limit int) ([]*types.Resource, error) {
  var (
    out []*types.Resource
    err error
  )
  if channelID != "" {
    out, err = p.resourceRepo.ListByChannel(ctx, nil, channelID)
    if err == nil && limit > 0 && len(out) > limit {
      out = out[:limit]
    }
  } else {
    out, err = p.resourceRepo.List(ctx, nil, types.KindVideo, limit)
  }
  if err != nil {
    return nil, apierr.Internal(fmt.Errorf("Failed to list videos: %w", err))
  }
  return out, nil
}

// GetChunk returns the chunk row plus the payload text from the bucket.
func (p *pipelineService) GetChunk(ctx context.Context, resourceID string, chunkID int) (*types.Chunk, string, error) {
  chunk, err := p.chunkRepo.GetOne(ctx, nil, resourceID, chunkID)
  if err != nil {
    return nil, "", apierr.Internal(fmt.Errorf("Failed to load chunk %s/%d: %w", resourceID, chunkID, err))
  }
  if chunk == nil {
    return nil, "", apierr.NotFound(fmt.Errorf("chunk %s/%d not found", resourceID, chunkID))
  }
  text, err := p.bucket.GetChunkText(ctx, chunk.TextRef)
  if err != nil {
    return nil, "", err
  }
  return chunk, text, nil
}

func (p *pipelineService) GetAIStatus(ctx context.Context, resourceID string, chunkID *int) ([]types.ChunkAIStatus, error) {
  if cached, ok := p.cache.Get(ctx, resourceID, chunkID); ok {
    return cached, nil
  }
  res, err := p.resourceRepo.GetByID(ctx, nil, resourceID)
  if err != nil {
    return nil, apierr.Internal(fmt.Errorf("Failed to load resource %s: %w", resourceID, err))
  }
  if res == nil {
    return nil, apierr.NotFound(fmt.Errorf("resource %s not found", resourceID))
  }
  statuses, err := p.chunkRepo.GetAIStatus(ctx, nil, resourceID, chunkID)
  if err != nil {
    return nil, apierr.Internal(fmt.Errorf("Failed to load ai status for %s: %w", resourceID, err))
  }
  p.cache.Set(ctx, resourceID, chunkID, statuses)
  return statuses, nil
}

// DeleteVideo removes payloads first, then rows. The resource-level note
// is left alone; re-ingesting the video reunites it with its note.
func (p *pipelineService) DeleteVideo(ctx context.Context, resourceID string) error {
  p.locks.Lock(videoLockKey(resourceID))
  defer p.locks.Unlock(videoLockKey(resourceID))

  res, err := p.resourceRepo.GetByID(ctx, nil, resourceID)
  if err != nil {
    return apierr.Internal(fmt.Errorf("Failed to load resource %s: %w", resourceID, err))
  }
  if res == nil || res.Kind != types.KindVideo {
    return apierr.NotFound(fmt.Errorf("video %s not found", resourceID))
  }
  if err := p.bucket.DeleteAllForResource(ctx, resourceID); err != nil {
    return err
  }
  if err := p.resourceRepo.Delete(ctx, nil, resourceID); err != nil {
    return apierr.Internal(fmt.Errorf("Failed to delete video %s: %w", resourceID, err))
  }
  p.cache.Invalidate(ctx, resourceID)
  p.log.Info("Video deleted", "resource_id", resourceID)
  return nil
}
