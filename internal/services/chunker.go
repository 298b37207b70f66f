package services

import (
  "regexp"
  "strings"

  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/utils"
)

// ChunkConfig drives the word-count chunker. TargetWords is the preferred
// size, MaxWords the hard bound for a single sentence, OverlapWords the
// number of trailing words replayed at the head of the next chunk, and
// MinFinalWords the floor below which the last chunk is merged backwards.
type ChunkConfig struct {
  TargetWords   int
  MaxWords      int
  OverlapWords  int
  MinFinalWords int
}

func DefaultChunkConfig() ChunkConfig {
  return ChunkConfig{
    TargetWords:   1000,
    MaxWords:      1500,
    OverlapWords:  100,
    MinFinalWords: 500,
  }
}

func ChunkConfigFromEnv(log *logger.Logger) ChunkConfig {
  def := DefaultChunkConfig()
  return ChunkConfig{
    TargetWords:   utils.GetEnvAsInt("CHUNK_TARGET_WORDS", def.TargetWords, log),
    MaxWords:      utils.GetEnvAsInt("CHUNK_MAX_WORDS", def.MaxWords, log),
    OverlapWords:  utils.GetEnvAsInt("CHUNK_OVERLAP_WORDS", def.OverlapWords, log),
    MinFinalWords: utils.GetEnvAsInt("CHUNK_MIN_FINAL_WORDS", def.MinFinalWords, log),
  }
}

// ChunkPiece is one emitted chunk before persistence. ChunkID is 1-based
// and dense in emission order.
type ChunkPiece struct {
  ChunkID       int
  Text          string
  WordCount     int
  SentenceCount int
}

// Sentences end at '.', '!' or '?' followed by whitespace or end of input.
// Abbreviations are deliberately not special-cased.
var sentenceEnd = regexp.MustCompile(`[.!?]+(\s+|$)`)

var sentenceTerminators = regexp.MustCompile(`[.!?]+`)

// ChunkText splits text into sentence-aligned, word-bounded chunks.
//
// Sentences accumulate greedily up to TargetWords; a sentence that would
// push a non-empty chunk past the target seals the chunk first. A single
// sentence longer than MaxWords is emitted on its own, never split
// mid-sentence. The last OverlapWords words of each sealed chunk are
// replayed verbatim (word boundary, not sentence boundary) at the head of
// the next chunk. A final chunk under MinFinalWords is merged into its
// predecessor by plain concatenation, even past MaxWords.
func ChunkText(text string, cfg ChunkConfig) []ChunkPiece {
  sentences := splitSentences(text)
  if len(sentences) == 0 {
    return []ChunkPiece{}
  }

  var chunks []ChunkPiece
  var overlap []string
  var parts []string
  bodyWords := 0

  seal := func() {
    if len(parts) == 0 {
      return
    }
    var all []string
    all = append(all, overlap...)
    for _, p := range parts {
      all = append(all, strings.Fields(p)...)
    }
    chunkText := strings.Join(all, " ")
    chunks = append(chunks, ChunkPiece{
      ChunkID:       len(chunks) + 1,
      Text:          chunkText,
      WordCount:     len(all),
      SentenceCount: len(sentenceTerminators.FindAllString(chunkText, -1)),
    })
    if cfg.OverlapWords > 0 {
      n := cfg.OverlapWords
      if n > len(all) {
        n = len(all)
      }
      overlap = append([]string(nil), all[len(all)-n:]...)
    } else {
      overlap = nil
    }
    parts = parts[:0]
    bodyWords = 0
  }

  for _, sentence := range sentences {
    sw := len(strings.Fields(sentence))
    if sw == 0 {
      continue
    }
    if bodyWords > 0 && bodyWords+sw > cfg.TargetWords {
      seal()
    }
    parts = append(parts, sentence)
    bodyWords += sw
    // An oversized sentence becomes its own chunk rather than being split.
    if bodyWords > cfg.TargetWords {
      seal()
    }
  }
  seal()

  // Merge a too-small trailing chunk into its predecessor. The merged text
  // is the plain concatenation of the two emitted texts with one space;
  // the overlap replay at the head of the old final chunk stays in place.
  if len(chunks) > 1 && chunks[len(chunks)-1].WordCount < cfg.MinFinalWords {
    last := chunks[len(chunks)-1]
    prev := &chunks[len(chunks)-2]
    prev.Text = prev.Text + " " + last.Text
    prev.WordCount += last.WordCount
    prev.SentenceCount = len(sentenceTerminators.FindAllString(prev.Text, -1))
    chunks = chunks[:len(chunks)-1]
  }
  return chunks
}

// splitSentences cuts text at sentence terminators, keeping the terminator
// with its sentence. A trailing fragment without a terminator still counts
// as a sentence.
func splitSentences(text string) []string {
  text = strings.TrimSpace(text)
  if text == "" {
    return nil
  }
  var sentences []string
  start := 0
  for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
    s := strings.TrimSpace(text[start:loc[1]])
    if s != "" {
      sentences = append(sentences, s)
    }
    start = loc[1]
  }
  if rest := strings.TrimSpace(text[start:]); rest != "" {
    sentences = append(sentences, rest)
  }
  return sentences
}

// CountWords is the whitespace-split word count used for chunk metrics.
func CountWords(text string) int {
  return len(strings.Fields(text))
}

// CountSentences counts sentence-terminator runs.
func CountSentences(text string) int {
  return len(sentenceTerminators.FindAllString(text, -1))
}
