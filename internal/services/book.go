package services

import (
  "context"
  "fmt"
  "regexp"
  "strings"

  "github.com/google/uuid"

  "github.com/studyforge/studyforge-backend/internal/apierr"
  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/repos"
  "github.com/studyforge/studyforge-backend/internal/types"
)

var bookIDPattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// BookInput is the client-supplied book: an ID slug, metadata, and the
// ordered chapter list. The chapter list is authoritative: chapter i of
// the request becomes chunk i+1. Each chapter's text goes to the bucket;
// the row keeps the reference and counts.
type BookInput struct {
  ID          string
  Title       string
  Author      string
  Publisher   string
  Year        int
  ISBN        string
  Description string
  Chapters    []ChapterInput
}

type ChapterInput struct {
  Title string
  Text  string
}

// Chapter is a chunk row with its payload text attached for responses
// that include the body.
type Chapter struct {
  Chunk *types.Chunk
  Text  string
}

type BookService interface {
  CreateBook(ctx context.Context, in BookInput) (*types.Resource, error)
  GetBook(ctx context.Context, id string) (*types.Resource, []types.ChunkIndexEntry, error)
  ListBooks(ctx context.Context, limit int) ([]*types.Resource, error)
  GetChapters(ctx context.Context, id string, includeText bool) ([]Chapter, error)
  GetChapter(ctx context.Context, id string, chunkID int, includeText bool) (*Chapter, error)
  RenameChapter(ctx context.Context, id string, chunkID int, title string) error
  ReplaceChapterText(ctx context.Context, id string, chunkID int, text string) error
  ReorderChapters(ctx context.Context, id string, order []int) error
  DeleteChapter(ctx context.Context, id string, chunkID int) error
  DeleteBook(ctx context.Context, id string) error
}

type bookService struct {
  log          *logger.Logger
  resourceRepo repos.ResourceRepo
  chunkRepo    repos.ChunkRepo
  bucket       BucketService
  cache        AIStatusCache
  locks        *KeyedLock
}

func NewBookService(
  log *logger.Logger,
  resourceRepo repos.ResourceRepo,
  chunkRepo repos.ChunkRepo,
  bucket BucketService,
  cache AIStatusCache,
  locks *KeyedLock,
) BookService {
  return &bookService{
    log:          log.With("service", "BookService"),
    resourceRepo: resourceRepo,
    chunkRepo:    chunkRepo,
    bucket:       bucket,
    cache:        cache,
    locks:        locks,
  }
}

func bookLockKey(id string) string { return "book:" + id }

func (b *bookService) CreateBook(ctx context.Context, in BookInput) (*types.Resource, error) {
  if strings.TrimSpace(in.Title) == "" {
    return nil, apierr.InvalidInput(fmt.Errorf("book title is required"))
  }
  if len(in.Chapters) == 0 {
    return nil, apierr.InvalidInput(fmt.Errorf("a book needs at least one chapter"))
  }
  for i, ch := range in.Chapters {
    if strings.TrimSpace(ch.Text) == "" {
      return nil, apierr.InvalidInput(fmt.Errorf("chapter %d has no text", i+1))
    }
  }
  if in.ID == "" {
    // Generated ids follow the same slug alphabet as client-supplied ones.
    in.ID = strings.ReplaceAll(uuid.NewString(), "-", "")
  } else if !bookIDPattern.MatchString(in.ID) {
    return nil, apierr.InvalidInput(fmt.Errorf("book id must match %s", bookIDPattern.String()))
  }

  b.locks.Lock(bookLockKey(in.ID))
  defer b.locks.Unlock(bookLockKey(in.ID))

  existing, err := b.resourceRepo.GetByID(ctx, nil, in.ID)
  if err != nil {
    return nil, apierr.Internal(fmt.Errorf("Failed to check book id %s: %w", in.ID, err))
  }
  if existing != nil {
    return nil, apierr.Conflict(fmt.Errorf("resource %s already exists", in.ID))
  }

  res := &types.Resource{
    ID:          in.ID,
    Kind:        types.KindBook,
    Title:       in.Title,
    Author:      in.Author,
    Publisher:   in.Publisher,
    Year:        in.Year,
    ISBN:        in.ISBN,
    Description: in.Description,
  }
  if err := b.resourceRepo.Upsert(ctx, nil, res); err != nil {
    return nil, apierr.Internal(fmt.Errorf("Failed to create book resource: %w", err))
  }

  chunks := make([]*types.Chunk, 0, len(in.Chapters))
  for i, ch := range in.Chapters {
    chunkID := i + 1
    ref, err := b.bucket.PutChunkText(ctx, res.ID, chunkID, ch.Text)
    if err != nil {
      return nil, err
    }
    chunks = append(chunks, &types.Chunk{
      ResourceID:    res.ID,
      ChunkID:       chunkID,
      TextRef:       ref,
      ShortTitle:    ch.Title,
      WordCount:     CountWords(ch.Text),
      SentenceCount: CountSentences(ch.Text),
    })
  }
  if err := b.chunkRepo.UpsertBatch(ctx, nil, chunks); err != nil {
    return nil, apierr.Internal(fmt.Errorf("Failed to insert book chapters: %w", err))
  }
  b.log.Info("Book created", "resource_id", res.ID, "chapters", len(chunks))
  return res, nil
}

func (b *bookService) GetBook(ctx context.Context, id string) (*types.Resource, []types.ChunkIndexEntry, error) {
  res, err := b.mustGetBook(ctx, id)
  if err != nil {
    return nil, nil, err
  }
  index, err := b.chunkRepo.GetIndex(ctx, nil, id)
  if err != nil {
    return nil, nil, apierr.Internal(fmt.Errorf("Failed to load chapter index for %s: %w", id, err))
  }
  return res, index, nil
}

func (b *bookService) ListBooks(ctx context.Context, limit int) ([]*types.Resource, error) {
  books, err := b.resourceRepo.List(ctx, nil, types.KindBook, limit)
  if err != nil {
    return nil, apierr.Internal(fmt.Errorf("Failed to list books: %w", err))
  }
  return books, nil
}

func (b *bookService) GetChapters(ctx context.Context, id string, includeText bool) ([]Chapter, error) {
  if _, err := b.mustGetBook(ctx, id); err != nil {
    return nil, err
  }
  chunks, err := b.chunkRepo.GetByResource(ctx, nil, id)
  if err != nil {
    return nil, apierr.Internal(fmt.Errorf("Failed to load chapters for %s: %w", id, err))
  }
  chapters := make([]Chapter, 0, len(chunks))
  for _, c := range chunks {
    ch := Chapter{Chunk: c}
    if includeText {
      text, err := b.bucket.GetChunkText(ctx, c.TextRef)
      if err != nil {
        return nil, err
      }
      ch.Text = text
    }
    chapters = append(chapters, ch)
  }
  return chapters, nil
}

func (b *bookService) GetChapter(ctx context.Context, id string, chunkID int, includeText bool) (*Chapter, error) {
  if _, err := b.mustGetBook(ctx, id); err != nil {
    return nil, err
  }
  chunk, err := b.chunkRepo.GetOne(ctx, nil, id, chunkID)
  if err != nil {
    return nil, apierr.Internal(fmt.Errorf("Failed to load chapter %s/%d: %w", id, chunkID, err))
  }
  if chunk == nil {
    return nil, apierr.NotFound(fmt.Errorf("chapter %s/%d not found", id, chunkID))
  }
  ch := &Chapter{Chunk: chunk}
  if includeText {
    text, err := b.bucket.GetChunkText(ctx, chunk.TextRef)
    if err != nil {
      return nil, err
    }
    ch.Text = text
  }
  return ch, nil
}

func (b *bookService) mustGetBook(ctx context.Context, id string) (*types.Resource, error) {
  res, err := b.resourceRepo.GetByID(ctx, nil, id)
  if err != nil {
    return nil, apierr.Internal(fmt.Errorf("Failed to load book %s: %w", id, err))
  }
  if res == nil || res.Kind != types.KindBook {
    return nil, apierr.NotFound(fmt.Errorf("book %s not found", id))
  }
  return res, nil
}

func (b *bookService) RenameChapter(ctx context.Context, id string, chunkID int, title string) error {
  if _, err := b.mustGetBook(ctx, id); err != nil {
    return err
  }
  chunk, err := b.chunkRepo.GetOne(ctx, nil, id, chunkID)
  if err != nil {
    return apierr.Internal(fmt.Errorf("Failed to load chapter %s/%d: %w", id, chunkID, err))
  }
  if chunk == nil {
    return apierr.NotFound(fmt.Errorf("chapter %s/%d not found", id, chunkID))
  }
  if err := b.chunkRepo.UpdateTitle(ctx, nil, id, chunkID, title); err != nil {
    return apierr.Internal(fmt.Errorf("Failed to rename chapter %s/%d: %w", id, chunkID, err))
  }
  b.cache.Invalidate(ctx, id)
  return nil
}

// ReplaceChapterText rewrites the chapter payload in place. Existing AI
// fields stay until the next enrichment pass regenerates them.
func (b *bookService) ReplaceChapterText(ctx context.Context, id string, chunkID int, text string) error {
  if strings.TrimSpace(text) == "" {
    return apierr.InvalidInput(fmt.Errorf("chapter text cannot be empty"))
  }
  b.locks.Lock(bookLockKey(id))
  defer b.locks.Unlock(bookLockKey(id))

  if _, err := b.mustGetBook(ctx, id); err != nil {
    return err
  }
  chunk, err := b.chunkRepo.GetOne(ctx, nil, id, chunkID)
  if err != nil {
    return apierr.Internal(fmt.Errorf("Failed to load chapter %s/%d: %w", id, chunkID, err))
  }
  if chunk == nil {
    return apierr.NotFound(fmt.Errorf("chapter %s/%d not found", id, chunkID))
  }
  if err := b.bucket.DeleteChunkText(ctx, chunk.TextRef); err != nil {
    return err
  }
  ref, err := b.bucket.PutChunkText(ctx, id, chunkID, text)
  if err != nil {
    return err
  }
  if err := b.chunkRepo.UpdateTextMetrics(ctx, nil, id, chunkID, ref, CountWords(text), CountSentences(text)); err != nil {
    return apierr.Internal(fmt.Errorf("Failed to update chapter metrics %s/%d: %w", id, chunkID, err))
  }
  b.cache.Invalidate(ctx, id)
  return nil
}

// ReorderChapters applies a permutation of the current dense chapter ids:
// order[i] is the old id of the chapter that becomes chapter i+1. Payloads
// are rewritten under their new keys before rows are replaced, so a crash
// mid-way leaves readable payloads for every surviving row.
func (b *bookService) ReorderChapters(ctx context.Context, id string, order []int) error {
  b.locks.Lock(bookLockKey(id))
  defer b.locks.Unlock(bookLockKey(id))

  if _, err := b.mustGetBook(ctx, id); err != nil {
    return err
  }
  chunks, err := b.chunkRepo.GetByResource(ctx, nil, id)
  if err != nil {
    return apierr.Internal(fmt.Errorf("Failed to load chapters for %s: %w", id, err))
  }
  if len(order) != len(chunks) {
    return apierr.InvalidInput(fmt.Errorf("order has %d entries, book has %d chapters", len(order), len(chunks)))
  }
  seen := make(map[int]bool, len(order))
  for _, old := range order {
    if old < 1 || old > len(chunks) || seen[old] {
      return apierr.InvalidInput(fmt.Errorf("order is not a permutation of 1..%d", len(chunks)))
    }
    seen[old] = true
  }

  byID := make(map[int]*types.Chunk, len(chunks))
  texts := make(map[int]string, len(chunks))
  for _, c := range chunks {
    byID[c.ChunkID] = c
    text, err := b.bucket.GetChunkText(ctx, c.TextRef)
    if err != nil {
      return err
    }
    texts[c.ChunkID] = text
  }

  if err := b.bucket.DeleteAllForResource(ctx, id); err != nil {
    return err
  }
  next := make([]*types.Chunk, 0, len(chunks))
  for newIdx, oldID := range order {
    newID := newIdx + 1
    ref, err := b.bucket.PutChunkText(ctx, id, newID, texts[oldID])
    if err != nil {
      return err
    }
    moved := *byID[oldID]
    moved.ChunkID = newID
    moved.TextRef = ref
    next = append(next, &moved)
  }
  if err := b.chunkRepo.DeleteForResource(ctx, nil, id); err != nil {
    return apierr.Internal(fmt.Errorf("Failed to clear chapter rows for %s: %w", id, err))
  }
  if err := b.chunkRepo.UpsertBatch(ctx, nil, next); err != nil {
    return apierr.Internal(fmt.Errorf("Failed to rewrite chapter rows for %s: %w", id, err))
  }
  b.cache.Invalidate(ctx, id)
  b.log.Info("Book chapters reordered", "resource_id", id, "chapters", len(next))
  return nil
}

// DeleteChapter removes one chapter and renumbers the rest so chapter ids
// stay dense and 1-based.
func (b *bookService) DeleteChapter(ctx context.Context, id string, chunkID int) error {
  b.locks.Lock(bookLockKey(id))
  defer b.locks.Unlock(bookLockKey(id))

  if _, err := b.mustGetBook(ctx, id); err != nil {
    return err
  }
  chunks, err := b.chunkRepo.GetByResource(ctx, nil, id)
  if err != nil {
    return apierr.Internal(fmt.Errorf("Failed to load chapters for %s: %w", id, err))
  }
  found := false
  for _, c := range chunks {
    if c.ChunkID == chunkID {
      found = true
      break
    }
  }
  if !found {
    return apierr.NotFound(fmt.Errorf("chapter %s/%d not found", id, chunkID))
  }

  // Drop the target payload first: the shift below reuses its key.
  if err := b.bucket.DeleteChunkText(ctx, ChunkTextKey(id, chunkID)); err != nil {
    return err
  }
  // Chapters past the deleted one shift down by one; their payloads move
  // to the new keys.
  var shifted []*types.Chunk
  for _, c := range chunks {
    if c.ChunkID <= chunkID {
      continue
    }
    text, err := b.bucket.GetChunkText(ctx, c.TextRef)
    if err != nil {
      return err
    }
    newID := c.ChunkID - 1
    ref, err := b.bucket.PutChunkText(ctx, id, newID, text)
    if err != nil {
      return err
    }
    moved := *c
    moved.ChunkID = newID
    moved.TextRef = ref
    shifted = append(shifted, &moved)
  }

  lastOld := chunks[len(chunks)-1].ChunkID
  // The old highest key is orphaned once its payload moved down a slot.
  if len(shifted) > 0 {
    if err := b.bucket.DeleteChunkText(ctx, ChunkTextKey(id, lastOld)); err != nil {
      return err
    }
  }
  for drop := chunkID; drop <= lastOld; drop++ {
    if err := b.chunkRepo.DeleteOne(ctx, nil, id, drop); err != nil {
      return apierr.Internal(fmt.Errorf("Failed to delete chapter row %s/%d: %w", id, drop, err))
    }
  }
  if len(shifted) > 0 {
    if err := b.chunkRepo.UpsertBatch(ctx, nil, shifted); err != nil {
      return apierr.Internal(fmt.Errorf("Failed to renumber chapters for %s: %w", id, err))
    }
  }
  b.cache.Invalidate(ctx, id)
  return nil
}

func (b *bookService) DeleteBook(ctx context.Context, id string) error {
  b.locks.Lock(bookLockKey(id))
  defer b.locks.Unlock(bookLockKey(id))

  if _, err := b.mustGetBook(ctx, id); err != nil {
    return err
  }
  if err := b.bucket.DeleteAllForResource(ctx, id); err != nil {
    return err
  }
  if err := b.resourceRepo.Delete(ctx, nil, id); err != nil {
    return apierr.Internal(fmt.Errorf("Failed to delete book %s: %w", id, err))
  }
  b.cache.Invalidate(ctx, id)
  b.log.Info("Book deleted", "resource_id", id)
  return nil
}
