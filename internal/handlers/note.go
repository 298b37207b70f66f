package handlers

import (
  "errors"
  "strconv"

  "github.com/gin-gonic/gin"

  "github.com/studyforge/studyforge-backend/internal/apierr"
  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/services"
)

type NoteHandler struct {
  log         *logger.Logger
  noteService services.NoteService
}

func NewNoteHandler(log *logger.Logger, noteService services.NoteService) *NoteHandler {
  handlerLogger := log.With("handler", "NoteHandler")
  return &NoteHandler{log: handlerLogger, noteService: noteService}
}

func (h *NoteHandler) Get(c *gin.Context) {
  note, err := h.noteService.GetResourceNote(c.Request.Context(), c.Param("video_id"))
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, note)
}

func (h *NoteHandler) Upsert(c *gin.Context) {
  var body struct {
    VideoID     string   `json:"video_id"`
    NoteContent string   `json:"note_content"`
    CustomTags  []string `json:"custom_tags"`
  }
  if err := c.ShouldBindJSON(&body); err != nil || body.VideoID == "" {
    RespondAPIError(c, apierr.InvalidInput(errors.New("video_id is required")))
    return
  }
  note, err := h.noteService.SaveResourceNote(c.Request.Context(), body.VideoID, body.NoteContent, body.CustomTags)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, note)
}

func (h *NoteHandler) List(c *gin.Context) {
  limit := 0
  if raw := c.Query("limit"); raw != "" {
    n, err := strconv.Atoi(raw)
    if err != nil || n < 0 {
      RespondAPIError(c, apierr.InvalidInput(errors.New("limit must be a non-negative integer")))
      return
    }
    limit = n
  }
  notes, err := h.noteService.ListNotes(c.Request.Context(), c.Query("channel"), limit)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"notes": notes})
}
