package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"
  "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

  "github.com/studyforge/studyforge-backend/internal/handlers"
  "github.com/studyforge/studyforge-backend/internal/middleware"
)

type RouterConfig struct {
  ServiceName    string
  CORSOrigins    []string
  AuthMiddleware *middleware.AuthMiddleware
  AuthHandler    *handlers.AuthHandler
  VideoHandler   *handlers.VideoHandler
  ChunksHandler  *handlers.ChunksHandler
  NoteHandler    *handlers.NoteHandler
  BookHandler    *handlers.BookHandler
  PromptsHandler *handlers.PromptsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()
  router.Use(otelgin.Middleware(cfg.ServiceName))

  // Cors
  origins := cfg.CORSOrigins
  if len(origins) == 0 {
    origins = []string{"http://localhost:3000"}
  }
  router.Use(cors.New(cors.Config{
    AllowOrigins:     origins,
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  // ===============
  // || Public    ||
  // ===============
  router.GET("/healthcheck", handlers.HealthCheck)
  router.POST("/api/auth/verify-email", cfg.AuthHandler.VerifyEmail)

  // ===============
  // || Protected ||
  // ===============
  api := router.Group("/api")
  api.Use(cfg.AuthMiddleware.RequireAuth())
  // Video
  api.POST("/video", cfg.VideoHandler.Create)
  api.POST("/video/process-subtitles", cfg.VideoHandler.ProcessSubtitles)
  api.POST("/video/process-ai", cfg.VideoHandler.ProcessAI)
  api.GET("/video/:video_id", cfg.VideoHandler.Get)
  api.DELETE("/video/:video_id", cfg.VideoHandler.Delete)
  api.GET("/videos", cfg.VideoHandler.List)
  // Chunks
  api.GET("/chunks/:video_id", cfg.ChunksHandler.List)
  api.GET("/chunks/:video_id/index", cfg.ChunksHandler.Index)
  api.GET("/chunks/:video_id/ai-status", cfg.ChunksHandler.AIStatus)
  api.GET("/chunks/:video_id/text/:chunk_id", cfg.ChunksHandler.GetText)
  // Notes
  api.GET("/note/:video_id", cfg.NoteHandler.Get)
  api.POST("/note", cfg.NoteHandler.Upsert)
  api.GET("/notes", cfg.NoteHandler.List)
  // Books
  api.POST("/book", cfg.BookHandler.Create)
  api.POST("/book/process-ai", cfg.BookHandler.ProcessAI)
  api.GET("/books", cfg.BookHandler.List)
  api.GET("/book/:book_id", cfg.BookHandler.Get)
  api.DELETE("/book/:book_id", cfg.BookHandler.Delete)
  api.GET("/book/:book_id/chapters", cfg.BookHandler.Chapters)
  api.GET("/book/:book_id/chapters/index", cfg.BookHandler.ChaptersIndex)
  api.POST("/book/:book_id/chapters/reorder", cfg.BookHandler.ReorderChapters)
  api.GET("/book/:book_id/chapter/:chapter_id", cfg.BookHandler.Chapter)
  api.PUT("/book/:book_id/chapter/:chapter_id/title", cfg.BookHandler.RenameChapter)
  api.PUT("/book/:book_id/chapter/:chapter_id/text", cfg.BookHandler.ReplaceChapterText)
  api.DELETE("/book/:book_id/chapter/:chapter_id", cfg.BookHandler.DeleteChapter)
  api.POST("/book/:book_id/chapter/:chapter_id/note", cfg.BookHandler.ChapterNote)
  // Prompts
  api.GET("/prompts", cfg.PromptsHandler.Get)

  return router
}
