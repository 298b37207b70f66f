package services

import (
  "os"
  "path/filepath"
  "strings"
  "testing"

  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/types"
)

func newTestPromptService(t *testing.T) PromptService {
  t.Helper()
  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("logger init failed: %v", err)
  }
  svc, err := NewPromptService(log)
  if err != nil {
    t.Fatalf("prompt service init failed: %v", err)
  }
  return svc
}

func TestPromptService_DefaultsCarryTextSite(t *testing.T) {
  svc := newTestPromptService(t)
  for _, kind := range []string{types.KindVideo, types.KindBook} {
    set, err := svc.ForKind(kind)
    if err != nil {
      t.Fatalf("ForKind(%q) failed: %v", kind, err)
    }
    for name, tpl := range map[string]string{
      "short_title": set.ShortTitle,
      "summary":     set.Summary,
      "key_points":  set.KeyPoints,
      "takeaways":   set.Takeaways,
    } {
      if strings.Count(tpl, "{text}") != 1 {
        t.Fatalf("%s/%s template must carry exactly one {text} site: %q", kind, name, tpl)
      }
    }
  }
}

func TestPromptService_UnknownKind(t *testing.T) {
  svc := newTestPromptService(t)
  if _, err := svc.ForKind("podcast"); err == nil {
    t.Fatalf("unknown kind accepted")
  }
}

func TestPromptService_Render(t *testing.T) {
  svc := newTestPromptService(t)
  got := svc.Render("Before {text} after.", "CHUNK BODY")
  if got != "Before CHUNK BODY after." {
    t.Fatalf("Render = %q", got)
  }
}

func TestPromptService_FileOverride(t *testing.T) {
  dir := t.TempDir()
  path := filepath.Join(dir, "prompts.yaml")
  yaml := "video:\n  summary: \"Custom video summary: {text}\"\nbook:\n  takeaways: \"Custom book takeaways: {text}\"\n"
  if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
    t.Fatalf("write prompts file: %v", err)
  }
  t.Setenv("PROMPTS_FILE", path)

  svc := newTestPromptService(t)
  video, _ := svc.ForKind(types.KindVideo)
  if video.Summary != "Custom video summary: {text}" {
    t.Fatalf("video summary not overridden: %q", video.Summary)
  }
  if video.ShortTitle != defaultVideoPrompts.ShortTitle {
    t.Fatalf("untouched field should keep default")
  }
  book, _ := svc.ForKind(types.KindBook)
  if book.Takeaways != "Custom book takeaways: {text}" {
    t.Fatalf("book takeaways not overridden: %q", book.Takeaways)
  }
}

func TestPromptService_BadFileRejected(t *testing.T) {
  dir := t.TempDir()
  path := filepath.Join(dir, "prompts.yaml")
  if err := os.WriteFile(path, []byte("video: [not a map"), 0o644); err != nil {
    t.Fatalf("write prompts file: %v", err)
  }
  t.Setenv("PROMPTS_FILE", path)

  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("logger init failed: %v", err)
  }
  if _, err := NewPromptService(log); err == nil {
    t.Fatalf("malformed prompts file accepted")
  }
}
