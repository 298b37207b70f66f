package services

import (
  "context"
  "errors"
  "fmt"
  "os"
  "os/exec"
  "path/filepath"
  "regexp"
  "sort"
  "strings"
  "time"

  "github.com/studyforge/studyforge-backend/internal/apierr"
  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/utils"
)

// ErrNoCaptions means the video exists but carries no English captions at
// all, manual or auto. Callers treat this as an empty transcript, not a
// failure.
var ErrNoCaptions = errors.New("no English captions available")

const subtitleTimeout = 120 * time.Second

var (
  srtTimeLine = regexp.MustCompile(`-->`)
  srtSeqLine  = regexp.MustCompile(`^\d+$`)
)

// SubtitleService shells out to yt-dlp to download English subtitles,
// preferring manual captions over auto-generated ones, and normalizes the
// SRT output to a single plain-text transcript.
type SubtitleService interface {
  AssertReady(ctx context.Context) error
  ExtractTranscript(ctx context.Context, videoID string) (string, error)
}

type subtitleService struct {
  log *logger.Logger

  ytdlpPath string
  workRoot  string
  fillers   []string
}

func NewSubtitleService(log *logger.Logger) SubtitleService {
  serviceLog := log.With("service", "SubtitleService")
  fillers := utils.GetEnvAsList("SUBTITLE_FILLERS", []string{
    "[Music]", "[Applause]", "[Laughter]", "[music]", "[applause]", "[laughter]",
  }, log)
  return &subtitleService{
    log:       serviceLog,
    ytdlpPath: utils.GetEnv("YTDLP_PATH", "yt-dlp", log),
    workRoot:  utils.GetEnv("SUBTITLE_WORK_DIR", "/tmp/studyforge-subs", log),
    fillers:   fillers,
  }
}

func (s *subtitleService) AssertReady(ctx context.Context) error {
  if _, err := exec.LookPath(s.ytdlpPath); err != nil {
    return apierr.Internal(fmt.Errorf("missing required binary %q in PATH: %w", s.ytdlpPath, err))
  }
  if err := os.MkdirAll(s.workRoot, 0o755); err != nil {
    return apierr.Internal(fmt.Errorf("create subtitle workRoot: %w", err))
  }
  return nil
}

func (s *subtitleService) ExtractTranscript(ctx context.Context, videoID string) (string, error) {
  if err := s.AssertReady(ctx); err != nil {
    return "", err
  }
  if !videoIDPattern.MatchString(videoID) {
    return "", apierr.InvalidInput(fmt.Errorf("invalid video id %q", videoID))
  }

  outDir, err := os.MkdirTemp(s.workRoot, videoID+"-")
  if err != nil {
    return "", apierr.Internal(fmt.Errorf("create subtitle temp dir: %w", err))
  }
  defer os.RemoveAll(outDir)

  ctx, cancel := context.WithTimeout(ctx, subtitleTimeout)
  defer cancel()

  // --write-subs wins over --write-auto-subs when both exist, which gives
  // us the manual-over-auto preference for free.
  cmd := exec.CommandContext(ctx, s.ytdlpPath,
    "--skip-download",
    "--write-subs",
    "--write-auto-subs",
    "--sub-langs", "en.*,en",
    "--convert-subs", "srt",
    "-o", filepath.Join(outDir, "%(id)s"),
    "https://www.youtube.com/watch?v="+videoID,
  )
  out, err := cmd.CombinedOutput()
  if err != nil {
    if ctx.Err() != nil {
      return "", apierr.Upstream(fmt.Errorf("yt-dlp timed out for %s: %w", videoID, ctx.Err()))
    }
    return "", apierr.Upstream(fmt.Errorf("yt-dlp failed for %s: %w; out=%s", videoID, err, truncate(string(out), 2000)))
  }

  srtPath, err := newestSRT(outDir)
  if err != nil {
    s.log.Debug("No subtitle file produced", "video_id", videoID)
    return "", ErrNoCaptions
  }

  raw, err := os.ReadFile(srtPath)
  if err != nil {
    return "", apierr.Internal(fmt.Errorf("read subtitle file: %w", err))
  }
  return s.normalizeSRT(string(raw)), nil
}

// normalizeSRT strips sequence numbers, time ranges and blank lines,
// collapses consecutive duplicate lines (auto captions roll the same line
// across cues), removes filler markers and whitespace-normalizes. Case and
// punctuation are preserved.
func (s *subtitleService) normalizeSRT(raw string) string {
  lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
  kept := make([]string, 0, len(lines))
  prev := ""
  for _, line := range lines {
    line = strings.TrimSpace(line)
    if line == "" {
      continue
    }
    if srtSeqLine.MatchString(line) {
      continue
    }
    if srtTimeLine.MatchString(line) {
      continue
    }
    line = s.stripFillers(line)
    if line == "" {
      continue
    }
    if line == prev {
      continue
    }
    kept = append(kept, line)
    prev = line
  }
  return strings.Join(strings.Fields(strings.Join(kept, " ")), " ")
}

func (s *subtitleService) stripFillers(line string) string {
  for _, f := range s.fillers {
    line = strings.ReplaceAll(line, f, "")
  }
  return strings.TrimSpace(line)
}

func newestSRT(dir string) (string, error) {
  entries, err := os.ReadDir(dir)
  if err != nil {
    return "", err
  }
  var paths []string
  for _, e := range entries {
    if e.IsDir() {
      continue
    }
    if strings.HasSuffix(strings.ToLower(e.Name()), ".srt") {
      paths = append(paths, filepath.Join(dir, e.Name()))
    }
  }
  if len(paths) == 0 {
    return "", fmt.Errorf("no srt files in %s", dir)
  }
  // Prefer plain en over en-orig etc. by name sort; any is acceptable.
  sort.Strings(paths)
  return paths[0], nil
}

func truncate(s string, n int) string {
  if len(s) <= n {
    return s
  }
  return s[:n]
}
