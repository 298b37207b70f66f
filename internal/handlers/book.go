package handlers

import (
  "errors"
  "strconv"

  "github.com/gin-gonic/gin"

  "github.com/studyforge/studyforge-backend/internal/apierr"
  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/services"
)

type BookHandler struct {
  log         *logger.Logger
  bookService services.BookService
  noteService services.NoteService
  pipeline    services.PipelineService
}

func NewBookHandler(
  log *logger.Logger,
  bookService services.BookService,
  noteService services.NoteService,
  pipeline services.PipelineService,
) *BookHandler {
  handlerLogger := log.With("handler", "BookHandler")
  return &BookHandler{
    log:         handlerLogger,
    bookService: bookService,
    noteService: noteService,
    pipeline:    pipeline,
  }
}

type chapterBody struct {
  ChapterTitle string `json:"chapter_title"`
  ChapterText  string `json:"chapter_text"`
}

// Create stores a book and its chapters in one shot. The request's chapter
// list is the authoritative order: chapter i becomes chunk i+1.
func (h *BookHandler) Create(c *gin.Context) {
  var body struct {
    BookID      string        `json:"book_id"`
    Title       string        `json:"title"`
    Author      string        `json:"author"`
    Publisher   string        `json:"publisher"`
    Year        int           `json:"year"`
    ISBN        string        `json:"isbn"`
    Description string        `json:"description"`
    Chapters    []chapterBody `json:"chapters"`
  }
  if err := c.ShouldBindJSON(&body); err != nil {
    RespondAPIError(c, apierr.InvalidInput(errors.New("malformed book payload")))
    return
  }
  in := services.BookInput{
    ID:          body.BookID,
    Title:       body.Title,
    Author:      body.Author,
    Publisher:   body.Publisher,
    Year:        body.Year,
    ISBN:        body.ISBN,
    Description: body.Description,
  }
  for _, ch := range body.Chapters {
    in.Chapters = append(in.Chapters, services.ChapterInput{Title: ch.ChapterTitle, Text: ch.ChapterText})
  }
  res, err := h.bookService.CreateBook(c.Request.Context(), in)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondCreated(c, res)
}

func (h *BookHandler) Get(c *gin.Context) {
  res, index, err := h.bookService.GetBook(c.Request.Context(), c.Param("book_id"))
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"book": res, "chapters": index})
}

func (h *BookHandler) List(c *gin.Context) {
  limit := 0
  if raw := c.Query("limit"); raw != "" {
    n, err := strconv.Atoi(raw)
    if err != nil || n < 0 {
      RespondAPIError(c, apierr.InvalidInput(errors.New("limit must be a non-negative integer")))
      return
    }
    limit = n
  }
  books, err := h.bookService.ListBooks(c.Request.Context(), limit)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"books": books})
}

func (h *BookHandler) Chapters(c *gin.Context) {
  chapters, err := h.bookService.GetChapters(c.Request.Context(), c.Param("book_id"), true)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"chapters": chaptersToJSON(chapters)})
}

func (h *BookHandler) ChaptersIndex(c *gin.Context) {
  _, index, err := h.bookService.GetBook(c.Request.Context(), c.Param("book_id"))
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"chapters": index})
}

func (h *BookHandler) Chapter(c *gin.Context) {
  chapterID, ok := h.chapterID(c)
  if !ok {
    return
  }
  includeText := c.DefaultQuery("include_text", "true") == "true"
  chapter, err := h.bookService.GetChapter(c.Request.Context(), c.Param("book_id"), chapterID, includeText)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  out := gin.H{"chapter": chapter.Chunk}
  if includeText {
    out["text"] = chapter.Text
  }
  RespondOK(c, out)
}

func (h *BookHandler) RenameChapter(c *gin.Context) {
  chapterID, ok := h.chapterID(c)
  if !ok {
    return
  }
  var body struct {
    ChapterTitle string `json:"chapter_title"`
  }
  if err := c.ShouldBindJSON(&body); err != nil || body.ChapterTitle == "" {
    RespondAPIError(c, apierr.InvalidInput(errors.New("chapter_title is required")))
    return
  }
  if err := h.bookService.RenameChapter(c.Request.Context(), c.Param("book_id"), chapterID, body.ChapterTitle); err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"updated": true})
}

func (h *BookHandler) ReplaceChapterText(c *gin.Context) {
  chapterID, ok := h.chapterID(c)
  if !ok {
    return
  }
  var body struct {
    ChapterText string `json:"chapter_text"`
  }
  if err := c.ShouldBindJSON(&body); err != nil || body.ChapterText == "" {
    RespondAPIError(c, apierr.InvalidInput(errors.New("chapter_text is required")))
    return
  }
  if err := h.bookService.ReplaceChapterText(c.Request.Context(), c.Param("book_id"), chapterID, body.ChapterText); err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"updated": true})
}

func (h *BookHandler) ReorderChapters(c *gin.Context) {
  var body struct {
    ChapterOrder []int `json:"chapter_order"`
  }
  if err := c.ShouldBindJSON(&body); err != nil || len(body.ChapterOrder) == 0 {
    RespondAPIError(c, apierr.InvalidInput(errors.New("chapter_order is required")))
    return
  }
  if err := h.bookService.ReorderChapters(c.Request.Context(), c.Param("book_id"), body.ChapterOrder); err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"updated": true})
}

func (h *BookHandler) DeleteChapter(c *gin.Context) {
  chapterID, ok := h.chapterID(c)
  if !ok {
    return
  }
  if err := h.bookService.DeleteChapter(c.Request.Context(), c.Param("book_id"), chapterID); err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"deleted": true})
}

func (h *BookHandler) ChapterNote(c *gin.Context) {
  chapterID, ok := h.chapterID(c)
  if !ok {
    return
  }
  var body struct {
    NoteContent string `json:"note_content"`
  }
  if err := c.ShouldBindJSON(&body); err != nil {
    RespondAPIError(c, apierr.InvalidInput(errors.New("malformed note payload")))
    return
  }
  if err := h.noteService.SaveChunkNote(c.Request.Context(), c.Param("book_id"), chapterID, body.NoteContent); err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"updated": true})
}

func (h *BookHandler) Delete(c *gin.Context) {
  bookID := c.Param("book_id")
  if err := h.bookService.DeleteBook(c.Request.Context(), bookID); err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"deleted": bookID})
}

// ProcessAI starts background enrichment for a book's chapters.
func (h *BookHandler) ProcessAI(c *gin.Context) {
  var body struct {
    BookID string `json:"book_id"`
  }
  if err := c.ShouldBindJSON(&body); err != nil || body.BookID == "" {
    RespondAPIError(c, apierr.InvalidInput(errors.New("book_id is required")))
    return
  }
  if _, _, err := h.bookService.GetBook(c.Request.Context(), body.BookID); err != nil {
    RespondAPIError(c, err)
    return
  }
  jobID, err := h.pipeline.StartEnrichmentJob(body.BookID)
  if err != nil {
    RespondAPIError(c, err)
    return
  }
  RespondOK(c, gin.H{"started": true, "job_id": jobID})
}

func (h *BookHandler) chapterID(c *gin.Context) (int, bool) {
  id, err := strconv.Atoi(c.Param("chapter_id"))
  if err != nil || id < 1 {
    RespondAPIError(c, apierr.InvalidInput(errors.New("chapter_id must be a positive integer")))
    return 0, false
  }
  return id, true
}

func chaptersToJSON(chapters []services.Chapter) []gin.H {
  out := make([]gin.H, 0, len(chapters))
  for _, ch := range chapters {
    out = append(out, gin.H{"chapter": ch.Chunk, "text": ch.Text})
  }
  return out
}
