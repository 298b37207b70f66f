package repos

import (
  "context"
  "errors"
  "sort"
  "time"

  "gorm.io/gorm"
  "gorm.io/gorm/clause"

  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/types"
)

// aiStatusPrefixLen bounds how much of the summary the polling projection
// may leak. Polling clients only need to see that text has arrived.
const aiStatusPrefixLen = 80

type ChunkRepo interface {
  UpsertBatch(ctx context.Context, tx *gorm.DB, chunks []*types.Chunk) error
  DeleteForResource(ctx context.Context, tx *gorm.DB, resourceID string) error
  DeleteOne(ctx context.Context, tx *gorm.DB, resourceID string, chunkID int) error
  GetByResource(ctx context.Context, tx *gorm.DB, resourceID string) ([]*types.Chunk, error)
  GetOne(ctx context.Context, tx *gorm.DB, resourceID string, chunkID int) (*types.Chunk, error)
  UpdateAIFields(ctx context.Context, tx *gorm.DB, resourceID string, chunkID int, fields types.ChunkAIFields) error
  UpdateNote(ctx context.Context, tx *gorm.DB, resourceID string, chunkID int, noteContent string) error
  UpdateTitle(ctx context.Context, tx *gorm.DB, resourceID string, chunkID int, title string) error
  UpdateTextMetrics(ctx context.Context, tx *gorm.DB, resourceID string, chunkID int, textRef string, wordCount, sentenceCount int) error
  GetIndex(ctx context.Context, tx *gorm.DB, resourceID string) ([]types.ChunkIndexEntry, error)
  GetAIStatus(ctx context.Context, tx *gorm.DB, resourceID string, chunkID *int) ([]types.ChunkAIStatus, error)
}

type chunkRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewChunkRepo(db *gorm.DB, baseLog *logger.Logger) ChunkRepo {
  repoLog := baseLog.With("repo", "ChunkRepo")
  return &chunkRepo{db: db, log: repoLog}
}

// UpsertBatch writes chunk rows in ascending chunk_id order so that a crash
// mid-write leaves a dense prefix 1..k rather than a gap.
func (r *chunkRepo) UpsertBatch(ctx context.Context, tx *gorm.DB, chunks []*types.Chunk) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(chunks) == 0 {
    return nil
  }
  ordered := make([]*types.Chunk, len(chunks))
  copy(ordered, chunks)
  sort.Slice(ordered, func(i, j int) bool { return ordered[i].ChunkID < ordered[j].ChunkID })

  now := time.Now()
  for _, ch := range ordered {
    ch.UpdatedAt = now
  }

  // Keep batches small because rows carry note/AI text
  const batchSize = 100
  return transaction.WithContext(ctx).Clauses(clause.OnConflict{
    Columns: []clause.Column{{Name: "resource_id"}, {Name: "chunk_id"}},
    DoUpdates: clause.AssignmentColumns([]string{
      "text_ref", "short_title", "summary", "key_points", "takeaways",
      "word_count", "sentence_count", "note_content", "updated_at",
    }),
  }).CreateInBatches(ordered, batchSize).Error
}

func (r *chunkRepo) DeleteForResource(ctx context.Context, tx *gorm.DB, resourceID string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).
    Where("resource_id = ?", resourceID).
    Delete(&types.Chunk{}).Error
}

func (r *chunkRepo) DeleteOne(ctx context.Context, tx *gorm.DB, resourceID string, chunkID int) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).
    Where("resource_id = ? AND chunk_id = ?", resourceID, chunkID).
    Delete(&types.Chunk{}).Error
}

func (r *chunkRepo) GetByResource(ctx context.Context, tx *gorm.DB, resourceID string) ([]*types.Chunk, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Chunk
  if err := transaction.WithContext(ctx).
    Where("resource_id = ?", resourceID).
    Order("chunk_id ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *chunkRepo) GetOne(ctx context.Context, tx *gorm.DB, resourceID string, chunkID int) (*types.Chunk, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var result types.Chunk
  if err := transaction.WithContext(ctx).
    Where("resource_id = ? AND chunk_id = ?", resourceID, chunkID).
    First(&result).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

// UpdateAIFields writes only the non-empty fields. Once a field holds text a
// later pass may replace it but can never blank it out.
func (r *chunkRepo) UpdateAIFields(ctx context.Context, tx *gorm.DB, resourceID string, chunkID int, fields types.ChunkAIFields) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  updates := map[string]any{}
  if fields.ShortTitle != "" {
    updates["short_title"] = fields.ShortTitle
  }
  if fields.Summary != "" {
    updates["summary"] = fields.Summary
  }
  if fields.KeyPoints != "" {
    updates["key_points"] = fields.KeyPoints
  }
  if fields.Takeaways != "" {
    updates["takeaways"] = fields.Takeaways
  }
  if len(updates) == 0 {
    return nil
  }
  updates["updated_at"] = time.Now()
  return transaction.WithContext(ctx).Model(&types.Chunk{}).
    Where("resource_id = ? AND chunk_id = ?", resourceID, chunkID).
    Updates(updates).Error
}

func (r *chunkRepo) UpdateNote(ctx context.Context, tx *gorm.DB, resourceID string, chunkID int, noteContent string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).Model(&types.Chunk{}).
    Where("resource_id = ? AND chunk_id = ?", resourceID, chunkID).
    Updates(map[string]any{
      "note_content": noteContent,
      "updated_at":   time.Now(),
    }).Error
}

func (r *chunkRepo) UpdateTitle(ctx context.Context, tx *gorm.DB, resourceID string, chunkID int, title string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).Model(&types.Chunk{}).
    Where("resource_id = ? AND chunk_id = ?", resourceID, chunkID).
    Updates(map[string]any{
      "short_title": title,
      "updated_at":  time.Now(),
    }).Error
}

func (r *chunkRepo) UpdateTextMetrics(ctx context.Context, tx *gorm.DB, resourceID string, chunkID int, textRef string, wordCount, sentenceCount int) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).Model(&types.Chunk{}).
    Where("resource_id = ? AND chunk_id = ?", resourceID, chunkID).
    Updates(map[string]any{
      "text_ref":       textRef,
      "word_count":     wordCount,
      "sentence_count": sentenceCount,
      "updated_at":     time.Now(),
    }).Error
}

func (r *chunkRepo) GetIndex(ctx context.Context, tx *gorm.DB, resourceID string) ([]types.ChunkIndexEntry, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []types.ChunkIndexEntry
  if err := transaction.WithContext(ctx).Model(&types.Chunk{}).
    Select("chunk_id", "short_title", "updated_at").
    Where("resource_id = ?", resourceID).
    Order("chunk_id ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *chunkRepo) GetAIStatus(ctx context.Context, tx *gorm.DB, resourceID string, chunkID *int) ([]types.ChunkAIStatus, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var rows []struct {
    ChunkID    int
    ShortTitle string
    Summary    string
  }
  q := transaction.WithContext(ctx).Model(&types.Chunk{}).
    Select("chunk_id", "short_title", "summary").
    Where("resource_id = ?", resourceID).
    Order("chunk_id ASC")
  if chunkID != nil {
    q = q.Where("chunk_id = ?", *chunkID)
  }
  if err := q.Find(&rows).Error; err != nil {
    return nil, err
  }
  out := make([]types.ChunkAIStatus, 0, len(rows))
  for _, row := range rows {
    status := types.ChunkAIStatus{
      ChunkID:        row.ChunkID,
      ShortTitle:     row.ShortTitle,
      SummaryPresent: row.Summary != "",
    }
    if status.SummaryPresent {
      prefix := row.Summary
      if len(prefix) > aiStatusPrefixLen {
        prefix = prefix[:aiStatusPrefixLen]
      }
      status.SummaryPrefix = prefix
    }
    out = append(out, status)
  }
  return out, nil
}
