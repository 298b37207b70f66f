package handlers

import (
  "github.com/gin-gonic/gin"

  "github.com/studyforge/studyforge-backend/internal/apierr"
  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/services"
  "github.com/studyforge/studyforge-backend/internal/types"
)

type PromptsHandler struct {
  log     *logger.Logger
  prompts services.PromptService
}

func NewPromptsHandler(log *logger.Logger, prompts services.PromptService) *PromptsHandler {
  handlerLogger := log.With("handler", "PromptsHandler")
  return &PromptsHandler{log: handlerLogger, prompts: prompts}
}

// Get returns the active prompt templates for one content type.
func (h *PromptsHandler) Get(c *gin.Context) {
  kind := c.DefaultQuery("content_type", types.KindVideo)
  set, err := h.prompts.ForKind(kind)
  if err != nil {
    RespondAPIError(c, apierr.InvalidInput(err))
    return
  }
  RespondOK(c, gin.H{
    "content_type": kind,
    "prompts": gin.H{
      "short_title": set.ShortTitle,
      "summary":     set.Summary,
      "key_points":  set.KeyPoints,
      "takeaways":   set.Takeaways,
    },
  })
}
