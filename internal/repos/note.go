package repos

import (
  "context"
  "errors"
  "time"

  "gorm.io/gorm"
  "gorm.io/gorm/clause"

  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/types"
)

type NoteRepo interface {
  Upsert(ctx context.Context, tx *gorm.DB, note *types.Note) error
  GetByResource(ctx context.Context, tx *gorm.DB, resourceID string) (*types.Note, error)
  List(ctx context.Context, tx *gorm.DB, limit int, channelID string) ([]*types.Note, error)
}

type noteRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewNoteRepo(db *gorm.DB, baseLog *logger.Logger) NoteRepo {
  repoLog := baseLog.With("repo", "NoteRepo")
  return &noteRepo{db: db, log: repoLog}
}

func (r *noteRepo) Upsert(ctx context.Context, tx *gorm.DB, note *types.Note) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if note == nil {
    return nil
  }
  now := time.Now()
  if note.CreatedAt.IsZero() {
    note.CreatedAt = now
  }
  note.UpdatedAt = now
  return transaction.WithContext(ctx).Clauses(clause.OnConflict{
    Columns:   []clause.Column{{Name: "resource_id"}},
    DoUpdates: clause.AssignmentColumns([]string{"note_content", "custom_tags", "updated_at"}),
  }).Create(note).Error
}

func (r *noteRepo) GetByResource(ctx context.Context, tx *gorm.DB, resourceID string) (*types.Note, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var result types.Note
  if err := transaction.WithContext(ctx).Where("resource_id = ?", resourceID).First(&result).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

// List returns notes newest-first. With a channel filter it joins through
// resource, which silently excludes orphaned notes (their resource row is
// gone, so they have no channel anymore).
func (r *noteRepo) List(ctx context.Context, tx *gorm.DB, limit int, channelID string) ([]*types.Note, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Note
  q := transaction.WithContext(ctx).Model(&types.Note{}).Order("note.updated_at DESC")
  if channelID != "" {
    q = q.Joins(`JOIN resource ON resource.id = note.resource_id`).
      Where("resource.channel_id = ?", channelID)
  }
  if limit > 0 {
    q = q.Limit(limit)
  }
  if err := q.Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
