package types

import (
  "time"

  "gorm.io/datatypes"
)

const (
  KindVideo = "video"
  KindBook  = "book"
)

// Resource is the top level ingestion unit: a YouTube video or a book.
// ID is the natural key (11-char YouTube ID, or a [a-z0-9_]+ book slug);
// there is no surrogate key.
type Resource struct {
  ID           string          `gorm:"primaryKey;size:64" json:"id"`
  Kind         string          `gorm:"size:16;not null;index" json:"kind"`
  Title        string          `gorm:"not null" json:"title"`
  ChannelID    string          `gorm:"size:64;index" json:"channel_id,omitempty"`
  ChannelTitle string          `json:"channel_title,omitempty"`
  Author       string          `json:"author,omitempty"`
  Publisher    string          `json:"publisher,omitempty"`
  Year         int             `json:"year,omitempty"`
  ISBN         string          `gorm:"size:32" json:"isbn,omitempty"`
  Description  string          `json:"description,omitempty"`
  Duration     string          `gorm:"size:32" json:"duration,omitempty"`
  Tags         datatypes.JSON  `gorm:"type:jsonb" json:"tags,omitempty"`
  PublishedAt  *time.Time      `json:"published_at,omitempty"`
  Thumbnails   datatypes.JSON  `gorm:"type:jsonb" json:"thumbnails,omitempty"`
  // Localized stays empty when the source default language is English.
  Localized    datatypes.JSON  `gorm:"type:jsonb" json:"localized,omitempty"`
  ViewCount    int64           `json:"view_count,omitempty"`
  LikeCount    int64           `json:"like_count,omitempty"`
  CommentCount int64           `json:"comment_count,omitempty"`
  CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
  UpdatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Resource) TableName() string {
  return "resource"
}
