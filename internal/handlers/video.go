package handlers

import (
  "errors"
  "strconv"

  "github.com/gin-gonic/gin"

  "github.com/studyforge/studyforge-backend/internal/apierr"
  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/services"
)

type VideoHandler struct {
  log      *logger.Logger
  pipeline services.PipelineService
}

func NewVideoHandler(log *logger.Logger, pipeline services.PipelineService) *VideoHandler {
  handlerLogger := log.With("handler", "VideoHandler")
  return &VideoHandler{log: handlerLogger, pipeline: pipeline}
}

// Create ingests video metadata from a URL or bare ID and returns the
// stored resource.
func (h *VideoHandler) Create(c *gin.Context) {
  var body struct {
    VideoURL string `json:"video_url"`
  }
  if err := c.ShouldBindJSON(&body); err != nil || body.VideoURL == "" {
    RespondAPIError(c, apierr.InvalidInput(errors.New("video_url is required")))
    return
  }
  res, err := h.pipeline.ProcessMetadata(c.Request.Context(), body.VideoURL)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondCreated(c, res)
}

func (h *VideoHandler) ProcessSubtitles(c *gin.Context) {
  var body struct {
    VideoID string `json:"video_id"`
  }
  if err := c.ShouldBindJSON(&body); err != nil || body.VideoID == "" {
    RespondAPIError(c, apierr.InvalidInput(errors.New("video_id is required")))
    return
  }
  count, err := h.pipeline.ProcessChunks(c.Request.Context(), body.VideoID)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"video_id": body.VideoID, "chunk_count": count})
}

// ProcessAI kicks off enrichment in the background and returns
// immediately. Progress is observed through the ai-status endpoint.
func (h *VideoHandler) ProcessAI(c *gin.Context) {
  var body struct {
    VideoID string `json:"video_id"`
  }
  if err := c.ShouldBindJSON(&body); err != nil || body.VideoID == "" {
    RespondAPIError(c, apierr.InvalidInput(errors.New("video_id is required")))
    return
  }
  // Existence check up front so a typo'd id fails loudly instead of
  // spinning a doomed background job.
  if _, _, err := h.pipeline.GetVideo(c.Request.Context(), body.VideoID); err != nil {
    RespondAPIError(c, err)
    return
  }
  jobID, err := h.pipeline.StartEnrichmentJob(body.VideoID)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"started": true, "job_id": jobID})
}

func (h *VideoHandler) Get(c *gin.Context) {
  res, index, err := h.pipeline.GetVideo(c.Request.Context(), c.Param("video_id"))
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"video": res, "chunks": index})
}

func (h *VideoHandler) List(c *gin.Context) {
  limit := 0
  if raw := c.Query("limit"); raw != "" {
    n, err := strconv.Atoi(raw)
    if err != nil || n < 0 {
      RespondAPIError(c, apierr.InvalidInput(errors.New("limit must be a non-negative integer")))
      return
    }
    limit = n
  }
  videos, err := h.pipeline.ListVideos(c.Request.Context(), c.Query("channel"), limit)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"videos": videos})
}

func (h *VideoHandler) Delete(c *gin.Context) {
  videoID := c.Param("video_id")
  if err := h.pipeline.DeleteVideo(c.Request.Context(), videoID); err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"deleted": videoID})
}
