package types

import (
  "time"
)

// Chunk is one ordered slice of a resource's transcript or chapter text.
// ChunkID is dense and 1-based per resource; (ResourceID, ChunkID) is the
// composite primary key. The text itself lives in the object store behind
// TextRef; only metadata and the AI fields live here.
type Chunk struct {
  ResourceID    string    `gorm:"primaryKey;size:64" json:"resource_id"`
  ChunkID       int       `gorm:"primaryKey;column:chunk_id;autoIncrement:false" json:"chunk_id"`
  Resource      *Resource `gorm:"constraint:OnDelete:CASCADE;foreignKey:ResourceID;references:ID" json:"-"`
  TextRef       string    `gorm:"not null" json:"text_ref"`
  ShortTitle    string    `json:"short_title,omitempty"`
  Summary       string    `json:"summary,omitempty"`
  KeyPoints     string    `json:"key_points,omitempty"`
  Takeaways     string    `json:"takeaways,omitempty"`
  WordCount     int       `gorm:"not null" json:"word_count"`
  SentenceCount int       `gorm:"not null" json:"sentence_count"`
  NoteContent   string    `json:"note_content,omitempty"`
  UpdatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Chunk) TableName() string {
  return "chunk"
}

// ChunkAIFields carries the four LLM-produced fields for one chunk. Empty
// strings mean "leave the stored value alone".
type ChunkAIFields struct {
  ShortTitle string `json:"short_title"`
  Summary    string `json:"summary"`
  KeyPoints  string `json:"key_points"`
  Takeaways  string `json:"takeaways"`
}

// Empty reports whether no field carries text.
func (f ChunkAIFields) Empty() bool {
  return f.ShortTitle == "" && f.Summary == "" && f.KeyPoints == "" && f.Takeaways == ""
}

// ChunkIndexEntry is the lightweight listing used for client dropdowns.
type ChunkIndexEntry struct {
  ChunkID    int       `json:"chunk_id"`
  ShortTitle string    `json:"short_title"`
  UpdatedAt  time.Time `json:"updated_at"`
}

// ChunkAIStatus is the minimal polling projection. SummaryPrefix carries at
// most a short prefix of the summary field, never the full text.
type ChunkAIStatus struct {
  ChunkID        int    `json:"chunk_id"`
  ShortTitle     string `json:"short_title"`
  SummaryPresent bool   `json:"summary_present"`
  SummaryPrefix  string `json:"summary_prefix,omitempty"`
}
