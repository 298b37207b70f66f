package repos

import (
  "context"
  "strings"
  "testing"

  "gorm.io/driver/sqlite"
  "gorm.io/gorm"
  gormlogger "gorm.io/gorm/logger"

  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/types"
)

func newTestDB(t *testing.T) (*gorm.DB, *logger.Logger) {
  t.Helper()
  db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
    Logger: gormlogger.Default.LogMode(gormlogger.Silent),
  })
  if err != nil {
    t.Fatalf("sqlite open failed: %v", err)
  }
  if err := db.AutoMigrate(&types.Resource{}, &types.Chunk{}, &types.Note{}); err != nil {
    t.Fatalf("automigrate failed: %v", err)
  }
  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("logger init failed: %v", err)
  }
  return db, log
}

func seedResource(t *testing.T, repo ResourceRepo, id, kind, channelID string) {
  t.Helper()
  err := repo.Upsert(context.Background(), nil, &types.Resource{
    ID:        id,
    Kind:      kind,
    Title:     "Title " + id,
    ChannelID: channelID,
  })
  if err != nil {
    t.Fatalf("seed resource %s: %v", id, err)
  }
}

func TestResourceRepo_UpsertRefreshesRow(t *testing.T) {
  db, log := newTestDB(t)
  repo := NewResourceRepo(db, log)
  ctx := context.Background()

  seedResource(t, repo, "vid00000001", types.KindVideo, "chan-1")
  if err := repo.Upsert(ctx, nil, &types.Resource{
    ID:        "vid00000001",
    Kind:      types.KindVideo,
    Title:     "Updated title",
    ChannelID: "chan-1",
  }); err != nil {
    t.Fatalf("second upsert failed: %v", err)
  }

  got, err := repo.GetByID(ctx, nil, "vid00000001")
  if err != nil {
    t.Fatalf("get failed: %v", err)
  }
  if got.Title != "Updated title" {
    t.Fatalf("upsert did not refresh title: %q", got.Title)
  }
}

func TestResourceRepo_GetMissingReturnsNilNil(t *testing.T) {
  db, log := newTestDB(t)
  repo := NewResourceRepo(db, log)
  got, err := repo.GetByID(context.Background(), nil, "missing")
  if err != nil {
    t.Fatalf("missing row should not error: %v", err)
  }
  if got != nil {
    t.Fatalf("expected nil for missing row, got %+v", got)
  }
}

func TestResourceRepo_DeleteCascadesChunksKeepsNote(t *testing.T) {
  db, log := newTestDB(t)
  resources := NewResourceRepo(db, log)
  chunks := NewChunkRepo(db, log)
  notes := NewNoteRepo(db, log)
  ctx := context.Background()

  seedResource(t, resources, "vid00000001", types.KindVideo, "chan-1")
  err := chunks.UpsertBatch(ctx, nil, []*types.Chunk{
    {ResourceID: "vid00000001", ChunkID: 1, TextRef: "vid00000001/1.txt", WordCount: 10},
    {ResourceID: "vid00000001", ChunkID: 2, TextRef: "vid00000001/2.txt", WordCount: 12},
  })
  if err != nil {
    t.Fatalf("chunk seed failed: %v", err)
  }
  if err := notes.Upsert(ctx, nil, &types.Note{ResourceID: "vid00000001", NoteContent: "my note"}); err != nil {
    t.Fatalf("note seed failed: %v", err)
  }

  if err := resources.Delete(ctx, nil, "vid00000001"); err != nil {
    t.Fatalf("delete failed: %v", err)
  }
  remaining, err := chunks.GetByResource(ctx, nil, "vid00000001")
  if err != nil {
    t.Fatalf("chunk query failed: %v", err)
  }
  if len(remaining) != 0 {
    t.Fatalf("chunk rows survived resource delete: %d", len(remaining))
  }
  orphan, err := notes.GetByResource(ctx, nil, "vid00000001")
  if err != nil {
    t.Fatalf("note query failed: %v", err)
  }
  if orphan == nil || orphan.NoteContent != "my note" {
    t.Fatalf("note should survive resource delete, got %+v", orphan)
  }
}

func TestChunkRepo_UpsertBatchIsIdempotent(t *testing.T) {
  db, log := newTestDB(t)
  resources := NewResourceRepo(db, log)
  chunks := NewChunkRepo(db, log)
  ctx := context.Background()

  seedResource(t, resources, "vid00000001", types.KindVideo, "")
  batch := []*types.Chunk{
    {ResourceID: "vid00000001", ChunkID: 2, TextRef: "vid00000001/2.txt"},
    {ResourceID: "vid00000001", ChunkID: 1, TextRef: "vid00000001/1.txt"},
  }
  if err := chunks.UpsertBatch(ctx, nil, batch); err != nil {
    t.Fatalf("first batch failed: %v", err)
  }
  batch[0].TextRef = "vid00000001/2-v2.txt"
  if err := chunks.UpsertBatch(ctx, nil, batch); err != nil {
    t.Fatalf("second batch failed: %v", err)
  }

  rows, err := chunks.GetByResource(ctx, nil, "vid00000001")
  if err != nil {
    t.Fatalf("query failed: %v", err)
  }
  if len(rows) != 2 {
    t.Fatalf("expected 2 rows, got %d", len(rows))
  }
  if rows[0].ChunkID != 1 || rows[1].ChunkID != 2 {
    t.Fatalf("rows not ordered by chunk_id: %+v", rows)
  }
  if rows[1].TextRef != "vid00000001/2-v2.txt" {
    t.Fatalf("conflict update did not apply: %q", rows[1].TextRef)
  }
}

func TestChunkRepo_UpdateAIFieldsIsMonotonic(t *testing.T) {
  db, log := newTestDB(t)
  resources := NewResourceRepo(db, log)
  chunks := NewChunkRepo(db, log)
  ctx := context.Background()

  seedResource(t, resources, "vid00000001", types.KindVideo, "")
  if err := chunks.UpsertBatch(ctx, nil, []*types.Chunk{
    {ResourceID: "vid00000001", ChunkID: 1, TextRef: "vid00000001/1.txt"},
  }); err != nil {
    t.Fatalf("seed failed: %v", err)
  }

  full := types.ChunkAIFields{ShortTitle: "Title", Summary: "A summary", KeyPoints: "- k", Takeaways: "- t"}
  if err := chunks.UpdateAIFields(ctx, nil, "vid00000001", 1, full); err != nil {
    t.Fatalf("first update failed: %v", err)
  }
  // A later partial pass must not blank populated fields.
  partial := types.ChunkAIFields{ShortTitle: "Newer title"}
  if err := chunks.UpdateAIFields(ctx, nil, "vid00000001", 1, partial); err != nil {
    t.Fatalf("partial update failed: %v", err)
  }

  got, err := chunks.GetOne(ctx, nil, "vid00000001", 1)
  if err != nil {
    t.Fatalf("get failed: %v", err)
  }
  if got.ShortTitle != "Newer title" {
    t.Fatalf("title not replaced: %q", got.ShortTitle)
  }
  if got.Summary != "A summary" || got.KeyPoints != "- k" || got.Takeaways != "- t" {
    t.Fatalf("populated fields were blanked: %+v", got)
  }

  // An all-empty update is a no-op.
  if err := chunks.UpdateAIFields(ctx, nil, "vid00000001", 1, types.ChunkAIFields{}); err != nil {
    t.Fatalf("empty update failed: %v", err)
  }
  again, _ := chunks.GetOne(ctx, nil, "vid00000001", 1)
  if again.Summary != "A summary" {
    t.Fatalf("empty update modified fields: %+v", again)
  }
}

func TestChunkRepo_GetAIStatusPrefix(t *testing.T) {
  db, log := newTestDB(t)
  resources := NewResourceRepo(db, log)
  chunks := NewChunkRepo(db, log)
  ctx := context.Background()

  seedResource(t, resources, "vid00000001", types.KindVideo, "")
  longSummary := strings.Repeat("s", 200)
  if err := chunks.UpsertBatch(ctx, nil, []*types.Chunk{
    {ResourceID: "vid00000001", ChunkID: 1, Summary: longSummary, ShortTitle: "One"},
    {ResourceID: "vid00000001", ChunkID: 2},
  }); err != nil {
    t.Fatalf("seed failed: %v", err)
  }

  statuses, err := chunks.GetAIStatus(ctx, nil, "vid00000001", nil)
  if err != nil {
    t.Fatalf("status query failed: %v", err)
  }
  if len(statuses) != 2 {
    t.Fatalf("expected 2 statuses, got %d", len(statuses))
  }
  if !statuses[0].SummaryPresent || len(statuses[0].SummaryPrefix) != 80 {
    t.Fatalf("prefix not capped at 80: %d", len(statuses[0].SummaryPrefix))
  }
  if statuses[1].SummaryPresent || statuses[1].SummaryPrefix != "" {
    t.Fatalf("empty summary reported present: %+v", statuses[1])
  }

  only := 2
  one, err := chunks.GetAIStatus(ctx, nil, "vid00000001", &only)
  if err != nil {
    t.Fatalf("filtered status query failed: %v", err)
  }
  if len(one) != 1 || one[0].ChunkID != 2 {
    t.Fatalf("chunk filter broken: %+v", one)
  }
}

func TestNoteRepo_UpsertAndChannelFilter(t *testing.T) {
  db, log := newTestDB(t)
  resources := NewResourceRepo(db, log)
  notes := NewNoteRepo(db, log)
  ctx := context.Background()

  seedResource(t, resources, "vid00000001", types.KindVideo, "chan-1")
  seedResource(t, resources, "vid00000002", types.KindVideo, "chan-2")

  if err := notes.Upsert(ctx, nil, &types.Note{ResourceID: "vid00000001", NoteContent: "first"}); err != nil {
    t.Fatalf("note upsert failed: %v", err)
  }
  if err := notes.Upsert(ctx, nil, &types.Note{ResourceID: "vid00000001", NoteContent: "rewritten"}); err != nil {
    t.Fatalf("note re-upsert failed: %v", err)
  }
  if err := notes.Upsert(ctx, nil, &types.Note{ResourceID: "vid00000002", NoteContent: "second"}); err != nil {
    t.Fatalf("note upsert failed: %v", err)
  }
  // Orphan: note whose resource never existed.
  if err := notes.Upsert(ctx, nil, &types.Note{ResourceID: "ghost0000001", NoteContent: "orphan"}); err != nil {
    t.Fatalf("orphan note upsert failed: %v", err)
  }

  got, err := notes.GetByResource(ctx, nil, "vid00000001")
  if err != nil {
    t.Fatalf("get failed: %v", err)
  }
  if got.NoteContent != "rewritten" {
    t.Fatalf("upsert did not rewrite content: %q", got.NoteContent)
  }

  all, err := notes.List(ctx, nil, 0, "")
  if err != nil {
    t.Fatalf("list failed: %v", err)
  }
  if len(all) != 3 {
    t.Fatalf("expected 3 notes, got %d", len(all))
  }

  filtered, err := notes.List(ctx, nil, 0, "chan-1")
  if err != nil {
    t.Fatalf("filtered list failed: %v", err)
  }
  if len(filtered) != 1 || filtered[0].ResourceID != "vid00000001" {
    t.Fatalf("channel filter broken: %+v", filtered)
  }
}
