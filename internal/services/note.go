package services

import (
  "context"
  "encoding/json"
  "fmt"

  "gorm.io/datatypes"

  "github.com/studyforge/studyforge-backend/internal/apierr"
  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/repos"
  "github.com/studyforge/studyforge-backend/internal/types"
)

// NoteService manages the user's own notes: one free-form note per
// resource, plus a per-chunk note column. Resource notes survive resource
// deletion on purpose, so a re-ingested video gets its old note back.
type NoteService interface {
  SaveResourceNote(ctx context.Context, resourceID, content string, customTags []string) (*types.Note, error)
  GetResourceNote(ctx context.Context, resourceID string) (*types.Note, error)
  ListNotes(ctx context.Context, channelID string, limit int) ([]*types.Note, error)
  SaveChunkNote(ctx context.Context, resourceID string, chunkID int, content string) error
}

type noteService struct {
  log       *logger.Logger
  noteRepo  repos.NoteRepo
  chunkRepo repos.ChunkRepo
}

func NewNoteService(log *logger.Logger, noteRepo repos.NoteRepo, chunkRepo repos.ChunkRepo) NoteService {
  return &noteService{
    log:       log.With("service", "NoteService"),
    noteRepo:  noteRepo,
    chunkRepo: chunkRepo,
  }
}

func (n *noteService) SaveResourceNote(ctx context.Context, resourceID, content string, customTags []string) (*types.Note, error) {
  if resourceID == "" {
    return nil, apierr.InvalidInput(fmt.Errorf("empty resource id"))
  }
  note := &types.Note{
    ResourceID:  resourceID,
    NoteContent: content,
  }
  if len(customTags) > 0 {
    raw, err := json.Marshal(customTags)
    if err != nil {
      return nil, apierr.Internal(fmt.Errorf("Failed to encode custom tags: %w", err))
    }
    note.CustomTags = datatypes.JSON(raw)
  }
  if err := n.noteRepo.Upsert(ctx, nil, note); err != nil {
    return nil, apierr.Internal(fmt.Errorf("Failed to save note for %s: %w", resourceID, err))
  }
  return note, nil
}

func (n *noteService) GetResourceNote(ctx context.Context, resourceID string) (*types.Note, error) {
  note, err := n.noteRepo.GetByResource(ctx, nil, resourceID)
  if err != nil {
    return nil, apierr.Internal(fmt.Errorf("Failed to load note for %s: %w", resourceID, err))
  }
  if note == nil {
    return nil, apierr.NotFound(fmt.Errorf("no note for resource %s", resourceID))
  }
  return note, nil
}

func (n *noteService) ListNotes(ctx context.Context, channelID string, limit int) ([]*types.Note, error) {
  notes, err := n.noteRepo.List(ctx, nil, limit, channelID)
  if err != nil {
    return nil, apierr.Internal(fmt.Errorf("Failed to list notes: %w", err))
  }
  return notes, nil
}

func (n *noteService) SaveChunkNote(ctx context.Context, resourceID string, chunkID int, content string) error {
  chunk, err := n.chunkRepo.GetOne(ctx, nil, resourceID, chunkID)
  if err != nil {
    return apierr.Internal(fmt.Errorf("Failed to load chunk %s/%d: %w", resourceID, chunkID, err))
  }
  if chunk == nil {
    return apierr.NotFound(fmt.Errorf("chunk %s/%d not found", resourceID, chunkID))
  }
  if err := n.chunkRepo.UpdateNote(ctx, nil, resourceID, chunkID, content); err != nil {
    return apierr.Internal(fmt.Errorf("Failed to save chunk note %s/%d: %w", resourceID, chunkID, err))
  }
  return nil
}
