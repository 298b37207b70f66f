package handlers

import (
  "errors"
  "strconv"

  "github.com/gin-gonic/gin"

  "github.com/studyforge/studyforge-backend/internal/apierr"
  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/repos"
  "github.com/studyforge/studyforge-backend/internal/services"
)

type ChunksHandler struct {
  log       *logger.Logger
  pipeline  services.PipelineService
  chunkRepo repos.ChunkRepo
}

func NewChunksHandler(log *logger.Logger, pipeline services.PipelineService, chunkRepo repos.ChunkRepo) *ChunksHandler {
  handlerLogger := log.With("handler", "ChunksHandler")
  return &ChunksHandler{log: handlerLogger, pipeline: pipeline, chunkRepo: chunkRepo}
}

// List returns every chunk row for a video: metadata and AI fields, no
// payload text.
func (h *ChunksHandler) List(c *gin.Context) {
  videoID := c.Param("video_id")
  chunks, err := h.chunkRepo.GetByResource(c.Request.Context(), nil, videoID)
  if err != nil {
    RespondAPIError(c, apierr.Internal(err))
    return
  }
  RespondOK(c, gin.H{"video_id": videoID, "chunks": chunks})
}

func (h *ChunksHandler) Index(c *gin.Context) {
  videoID := c.Param("video_id")
  index, err := h.chunkRepo.GetIndex(c.Request.Context(), nil, videoID)
  if err != nil {
    RespondAPIError(c, apierr.Internal(err))
    return
  }
  RespondOK(c, gin.H{"video_id": videoID, "chunks": index})
}

// AIStatus is the polling endpoint clients hammer during enrichment; it
// goes through the pipeline so the short-TTL cache applies.
func (h *ChunksHandler) AIStatus(c *gin.Context) {
  videoID := c.Param("video_id")
  var chunkID *int
  if raw := c.Query("chunk_id"); raw != "" {
    n, err := strconv.Atoi(raw)
    if err != nil || n < 1 {
      RespondAPIError(c, apierr.InvalidInput(errors.New("chunk_id must be a positive integer")))
      return
    }
    chunkID = &n
  }
  statuses, err := h.pipeline.GetAIStatus(c.Request.Context(), videoID, chunkID)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"video_id": videoID, "chunks": statuses})
}

// GetText returns one chunk with its payload text.
func (h *ChunksHandler) GetText(c *gin.Context) {
  videoID := c.Param("video_id")
  chunkID, err := strconv.Atoi(c.Param("chunk_id"))
  if err != nil || chunkID < 1 {
    RespondAPIError(c, apierr.InvalidInput(errors.New("chunk_id must be a positive integer")))
    return
  }
  chunk, text, err := h.pipeline.GetChunk(c.Request.Context(), videoID, chunkID)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"chunk": chunk, "text": text})
}
