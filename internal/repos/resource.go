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

type ResourceRepo interface {
  Upsert(ctx context.Context, tx *gorm.DB, resource *types.Resource) error
  GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.Resource, error)
  List(ctx context.Context, tx *gorm.DB, kind string, limit int) ([]*types.Resource, error)
  ListByChannel(ctx context.Context, tx *gorm.DB, channelID string) ([]*types.Resource, error)
  Delete(ctx context.Context, tx *gorm.DB, id string) error
}

type resourceRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewResourceRepo(db *gorm.DB, baseLog *logger.Logger) ResourceRepo {
  repoLog := baseLog.With("repo", "ResourceRepo")
  return &resourceRepo{db: db, log: repoLog}
}

func (r *resourceRepo) Upsert(ctx context.Context, tx *gorm.DB, resource *types.Resource) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if resource == nil {
    return nil
  }
  now := time.Now()
  if resource.CreatedAt.IsZero() {
    resource.CreatedAt = now
  }
  resource.UpdatedAt = now
  return transaction.WithContext(ctx).Clauses(clause.OnConflict{
    Columns: []clause.Column{{Name: "id"}},
    DoUpdates: clause.AssignmentColumns([]string{
      "kind", "title", "channel_id", "channel_title", "author", "publisher", "year",
      "isbn", "description", "duration", "tags", "published_at",
      "thumbnails", "localized", "view_count", "like_count",
      "comment_count", "updated_at",
    }),
  }).Create(resource).Error
}

func (r *resourceRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.Resource, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var result types.Resource
  if err := transaction.WithContext(ctx).Where("id = ?", id).First(&result).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

func (r *resourceRepo) List(ctx context.Context, tx *gorm.DB, kind string, limit int) ([]*types.Resource, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Resource
  q := transaction.WithContext(ctx).Order("updated_at DESC")
  if kind != "" {
    q = q.Where("kind = ?", kind)
  }
  if limit > 0 {
    q = q.Limit(limit)
  }
  if err := q.Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *resourceRepo) ListByChannel(ctx context.Context, tx *gorm.DB, channelID string) ([]*types.Resource, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Resource
  if err := transaction.WithContext(ctx).
    Where("channel_id = ?", channelID).
    Order("published_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

// Delete removes the resource and its chunk rows. Chunk rows are deleted
// explicitly first so behavior does not depend on database-side cascade.
// The note row is left untouched on purpose.
func (r *resourceRepo) Delete(ctx context.Context, tx *gorm.DB, id string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
    if err := inner.Where("resource_id = ?", id).Delete(&types.Chunk{}).Error; err != nil {
      return err
    }
    return inner.Where("id = ?", id).Delete(&types.Resource{}).Error
  })
}
