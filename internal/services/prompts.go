package services

import (
  "fmt"
  "os"
  "strings"

  "gopkg.in/yaml.v3"

  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/types"
  "github.com/studyforge/studyforge-backend/internal/utils"
)

// PromptSet holds the four enrichment templates for one resource kind.
// Each template carries exactly one {text} site where the chunk body is
// substituted.
type PromptSet struct {
  ShortTitle string `yaml:"short_title"`
  Summary    string `yaml:"summary"`
  KeyPoints  string `yaml:"key_points"`
  Takeaways  string `yaml:"takeaways"`
}

type PromptService interface {
  ForKind(kind string) (PromptSet, error)
  Render(template string, text string) string
}

type promptService struct {
  log   *logger.Logger
  video PromptSet
  book  PromptSet
}

var defaultVideoPrompts = PromptSet{
  ShortTitle: "Write a short descriptive title, at most eight words, for this video transcript segment. Respond with the title only.\n\n{text}",
  Summary:    "Summarize this video transcript segment in two to four paragraphs. Keep the speaker's terminology. Respond with the summary only.\n\n{text}",
  KeyPoints:  "List the key points made in this video transcript segment as a bullet list, one point per line starting with '- '. Respond with the list only.\n\n{text}",
  Takeaways:  "List the practical takeaways a viewer should remember from this video transcript segment as a bullet list, one per line starting with '- '. Respond with the list only.\n\n{text}",
}

var defaultBookPrompts = PromptSet{
  ShortTitle: "Write a short descriptive title, at most eight words, for this book chapter excerpt. Respond with the title only.\n\n{text}",
  Summary:    "Summarize this book chapter excerpt in two to four paragraphs. Keep the author's terminology. Respond with the summary only.\n\n{text}",
  KeyPoints:  "List the key points made in this book chapter excerpt as a bullet list, one point per line starting with '- '. Respond with the list only.\n\n{text}",
  Takeaways:  "List the practical takeaways a reader should remember from this book chapter excerpt as a bullet list, one per line starting with '- '. Respond with the list only.\n\n{text}",
}

// NewPromptService loads the built-in templates, optionally overridden per
// kind and field from the YAML file named by PROMPTS_FILE.
func NewPromptService(log *logger.Logger) (PromptService, error) {
  serviceLog := log.With("service", "PromptService")
  ps := &promptService{
    log:   serviceLog,
    video: defaultVideoPrompts,
    book:  defaultBookPrompts,
  }
  path := utils.GetEnv("PROMPTS_FILE", "", log)
  if path == "" {
    return ps, nil
  }
  raw, err := os.ReadFile(path)
  if err != nil {
    return nil, fmt.Errorf("Failed to read prompts file %q: %w", path, err)
  }
  var override struct {
    Video PromptSet `yaml:"video"`
    Book  PromptSet `yaml:"book"`
  }
  if err := yaml.Unmarshal(raw, &override); err != nil {
    return nil, fmt.Errorf("Failed to parse prompts file %q: %w", path, err)
  }
  applyOverride(&ps.video, override.Video)
  applyOverride(&ps.book, override.Book)
  serviceLog.Info("Loaded prompt overrides", "path", path)
  return ps, nil
}

func applyOverride(dst *PromptSet, src PromptSet) {
  if src.ShortTitle != "" {
    dst.ShortTitle = src.ShortTitle
  }
  if src.Summary != "" {
    dst.Summary = src.Summary
  }
  if src.KeyPoints != "" {
    dst.KeyPoints = src.KeyPoints
  }
  if src.Takeaways != "" {
    dst.Takeaways = src.Takeaways
  }
}

func (p *promptService) ForKind(kind string) (PromptSet, error) {
  switch kind {
  case types.KindVideo:
    return p.video, nil
  case types.KindBook:
    return p.book, nil
  default:
    return PromptSet{}, fmt.Errorf("unknown resource kind %q", kind)
  }
}

func (p *promptService) Render(template string, text string) string {
  return strings.ReplaceAll(template, "{text}", text)
}
