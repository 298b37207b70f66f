package types

import (
  "time"

  "gorm.io/datatypes"
)

// Note is resource level user markdown. Notes deliberately carry no foreign
// key constraint: deleting a Resource leaves its note behind (orphan notes
// are legal and wanted).
type Note struct {
  ResourceID  string         `gorm:"primaryKey;size:64" json:"resource_id"`
  NoteContent string         `json:"note_content"`
  CustomTags  datatypes.JSON `gorm:"type:jsonb" json:"custom_tags,omitempty"`
  CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
  UpdatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Note) TableName() string {
  return "note"
}
