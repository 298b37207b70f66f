package main

import (
  "context"
  "fmt"
  "os"
  "time"

  "github.com/studyforge/studyforge-backend/internal/db"
  "github.com/studyforge/studyforge-backend/internal/handlers"
  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/middleware"
  "github.com/studyforge/studyforge-backend/internal/observability"
  "github.com/studyforge/studyforge-backend/internal/repos"
  "github.com/studyforge/studyforge-backend/internal/server"
  "github.com/studyforge/studyforge-backend/internal/services"
  "github.com/studyforge/studyforge-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Tracing
  shutdownOTel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
    ServiceName: "studyforge-backend",
    Environment: utils.GetEnv("APP_ENV", "development", log),
    Version:     utils.GetEnv("APP_VERSION", "dev", log),
  })
  if shutdownOTel != nil {
    defer func() {
      ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
      defer cancel()
      _ = shutdownOTel(ctx)
    }()
  }

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Error("Postgres auto migration failed", "error", err)
    os.Exit(1)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  resourceRepo := repos.NewResourceRepo(thePG, log)
  chunkRepo := repos.NewChunkRepo(thePG, log)
  noteRepo := repos.NewNoteRepo(thePG, log)

  // Services
  log.Info("Setting up Services from main...")
  bucketService, err := services.NewBucketService(log)
  if err != nil {
    log.Error("Could not init BucketService", "error", err)
    os.Exit(1)
  }
  youtubeService, err := services.NewYouTubeService(log)
  if err != nil {
    log.Error("Could not init YouTubeService", "error", err)
    os.Exit(1)
  }
  subtitleService := services.NewSubtitleService(log)
  if err := subtitleService.AssertReady(context.Background()); err != nil {
    log.Warn("Subtitle extraction unavailable", "error", err)
  }
  openaiClient, err := services.NewOpenAIClient(log)
  if err != nil {
    log.Error("Could not init OpenAIClient", "error", err)
    os.Exit(1)
  }
  promptService, err := services.NewPromptService(log)
  if err != nil {
    log.Error("Could not init PromptService", "error", err)
    os.Exit(1)
  }
  authService, err := services.NewAuthService(log)
  if err != nil {
    log.Error("Could not init AuthService", "error", err)
    os.Exit(1)
  }
  enricherService := services.NewEnricherService(log, openaiClient, promptService)
  statusCache := services.NewAIStatusCache(log)
  locks := services.NewKeyedLock()
  pipelineService := services.NewPipelineService(
    log,
    resourceRepo,
    chunkRepo,
    youtubeService,
    subtitleService,
    bucketService,
    enricherService,
    statusCache,
    locks,
    services.ChunkConfigFromEnv(log),
  )
  noteService := services.NewNoteService(log, noteRepo, chunkRepo)
  bookService := services.NewBookService(log, resourceRepo, chunkRepo, bucketService, statusCache, locks)

  // Handlers
  log.Info("Setting up handlers from main...")
  authHandler := handlers.NewAuthHandler(log, authService)
  videoHandler := handlers.NewVideoHandler(log, pipelineService)
  chunksHandler := handlers.NewChunksHandler(log, pipelineService, chunkRepo)
  noteHandler := handlers.NewNoteHandler(log, noteService)
  bookHandler := handlers.NewBookHandler(log, bookService, noteService, pipelineService)
  promptsHandler := handlers.NewPromptsHandler(log, promptService)

  // Middleware
  log.Info("Setting up middleware from main...")
  authMiddleware := middleware.NewAuthMiddleware(log, authService)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    ServiceName:    "studyforge-backend",
    CORSOrigins:    utils.GetEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}, log),
    AuthMiddleware: authMiddleware,
    AuthHandler:    authHandler,
    VideoHandler:   videoHandler,
    ChunksHandler:  chunksHandler,
    NoteHandler:    noteHandler,
    BookHandler:    bookHandler,
    PromptsHandler: promptsHandler,
  })

  host := utils.GetEnv("API_HOST", "0.0.0.0", log)
  port := utils.GetEnv("API_PORT", "8080", log)
  addr := fmt.Sprintf("%s:%s", host, port)
  log.Info("Starting server", "addr", addr)
  if err := router.Run(addr); err != nil {
    log.Error("Server exited", "error", err)
    os.Exit(1)
  }
}
