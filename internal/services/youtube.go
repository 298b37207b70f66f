package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "net/url"
  "regexp"
  "strings"
  "time"

  "google.golang.org/api/googleapi"
  "google.golang.org/api/option"
  youtube "google.golang.org/api/youtube/v3"
  "gorm.io/datatypes"

  "github.com/studyforge/studyforge-backend/internal/apierr"
  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/types"
  "github.com/studyforge/studyforge-backend/internal/utils"
)

// youtubeBatchSize is the Data API ceiling for videos.list.
const youtubeBatchSize = 50

const youtubeCallTimeout = 10 * time.Second

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// VideoMetadataResult pairs one requested ID with its outcome. IDs the API
// does not know come back with a NotFound error instead of being dropped.
type VideoMetadataResult struct {
  ID       string
  Resource *types.Resource
  Err      error
}

type YouTubeService interface {
  FetchMetadata(ctx context.Context, ids []string) ([]VideoMetadataResult, error)
  FetchOne(ctx context.Context, id string) (*types.Resource, error)
}

type youTubeService struct {
  log     *logger.Logger
  yt      *youtube.Service
  retries int
}

func NewYouTubeService(log *logger.Logger) (YouTubeService, error) {
  serviceLog := log.With("service", "YouTubeService")
  apiKey := utils.GetEnv("YOUTUBE_API_KEY", "", log)
  if apiKey == "" {
    return nil, fmt.Errorf("missing env var YOUTUBE_API_KEY")
  }
  yt, err := youtube.NewService(context.Background(), option.WithAPIKey(apiKey))
  if err != nil {
    return nil, fmt.Errorf("Failed to create YouTube client: %w", err)
  }
  return &youTubeService{
    log:     serviceLog,
    yt:      yt,
    retries: 3,
  }, nil
}

// ExtractVideoID accepts bare 11-char IDs and the canonical URL forms:
// watch?v=, youtu.be/<id>, /embed/<id>, /v/<id>.
func ExtractVideoID(raw string) (string, error) {
  raw = strings.TrimSpace(raw)
  if raw == "" {
    return "", apierr.InvalidInput(errors.New("empty video url or id"))
  }
  if videoIDPattern.MatchString(raw) {
    return raw, nil
  }
  candidate := raw
  if !strings.Contains(candidate, "://") {
    candidate = "https://" + candidate
  }
  u, err := url.Parse(candidate)
  if err != nil {
    return "", apierr.InvalidInput(fmt.Errorf("unparseable video url %q", raw))
  }
  var id string
  switch {
  case strings.HasSuffix(u.Host, "youtu.be"):
    id = strings.Trim(u.Path, "/")
  case strings.Contains(u.Path, "/embed/"):
    id = strings.TrimPrefix(u.Path, "/embed/")
  case strings.Contains(u.Path, "/v/"):
    id = strings.TrimPrefix(u.Path, "/v/")
  default:
    id = u.Query().Get("v")
  }
  id = strings.Trim(id, "/")
  if i := strings.IndexAny(id, "/?&"); i >= 0 {
    id = id[:i]
  }
  if !videoIDPattern.MatchString(id) {
    return "", apierr.InvalidInput(fmt.Errorf("%q is not a valid YouTube video id or url", raw))
  }
  return id, nil
}

func (s *youTubeService) FetchOne(ctx context.Context, id string) (*types.Resource, error) {
  results, err := s.FetchMetadata(ctx, []string{id})
  if err != nil {
    return nil, err
  }
  if len(results) == 0 {
    return nil, apierr.NotFound(fmt.Errorf("video %s not found", id))
  }
  if results[0].Err != nil {
    return nil, results[0].Err
  }
  return results[0].Resource, nil
}

func (s *youTubeService) FetchMetadata(ctx context.Context, ids []string) ([]VideoMetadataResult, error) {
  if len(ids) == 0 {
    return []VideoMetadataResult{}, nil
  }
  for _, id := range ids {
    if !videoIDPattern.MatchString(id) {
      return nil, apierr.InvalidInput(fmt.Errorf("invalid video id %q", id))
    }
  }

  out := make([]VideoMetadataResult, 0, len(ids))
  for start := 0; start < len(ids); start += youtubeBatchSize {
    end := start + youtubeBatchSize
    if end > len(ids) {
      end = len(ids)
    }
    batch := ids[start:end]
    items, err := s.fetchBatch(ctx, batch)
    if err != nil {
      return nil, err
    }
    byID := map[string]*youtube.Video{}
    for _, v := range items {
      byID[v.Id] = v
    }
    for _, id := range batch {
      v, ok := byID[id]
      if !ok {
        out = append(out, VideoMetadataResult{
          ID:  id,
          Err: apierr.NotFound(fmt.Errorf("video %s not found", id)),
        })
        continue
      }
      res, convErr := flattenVideo(v)
      out = append(out, VideoMetadataResult{ID: id, Resource: res, Err: convErr})
    }
  }
  return out, nil
}

func (s *youTubeService) fetchBatch(ctx context.Context, ids []string) ([]*youtube.Video, error) {
  backoff := 500 * time.Millisecond
  var lastErr error
  for attempt := 0; attempt < s.retries; attempt++ {
    if ctx.Err() != nil {
      return nil, ctx.Err()
    }
    callCtx, cancel := context.WithTimeout(ctx, youtubeCallTimeout)
    resp, err := s.yt.Videos.
      List([]string{"snippet", "contentDetails", "statistics"}).
      Id(ids...).
      MaxResults(youtubeBatchSize).
      Context(callCtx).
      Do()
    cancel()
    if err == nil {
      return resp.Items, nil
    }
    lastErr = err

    var gerr *googleapi.Error
    if errors.As(err, &gerr) {
      if isQuotaError(gerr) {
        return nil, apierr.QuotaExceeded(fmt.Errorf("YouTube API quota exhausted: %w", err))
      }
      if gerr.Code >= 400 && gerr.Code < 500 {
        return nil, apierr.InvalidInput(fmt.Errorf("YouTube API rejected request: %w", err))
      }
    }

    s.log.Warn("YouTube metadata fetch retrying",
      "attempt", attempt+1,
      "max_retries", s.retries,
      "sleep", backoff.String(),
      "error", err.Error(),
    )
    select {
    case <-ctx.Done():
      return nil, ctx.Err()
    case <-time.After(backoff):
    }
    backoff *= 2
  }
  return nil, apierr.Upstream(fmt.Errorf("YouTube metadata fetch failed after %d attempts: %w", s.retries, lastErr))
}

func isQuotaError(gerr *googleapi.Error) bool {
  if gerr.Code == 429 {
    return true
  }
  if gerr.Code != 403 {
    return false
  }
  for _, item := range gerr.Errors {
    reason := strings.ToLower(item.Reason)
    if strings.Contains(reason, "quota") || strings.Contains(reason, "ratelimit") {
      return true
    }
  }
  return false
}

// flattenVideo turns the nested API payload into scalar resource columns.
// Thumbnails and localized stay as opaque JSON; localized is dropped when
// the source default language is English.
func flattenVideo(v *youtube.Video) (*types.Resource, error) {
  res := &types.Resource{
    ID:   v.Id,
    Kind: types.KindVideo,
  }
  if sn := v.Snippet; sn != nil {
    res.Title = sn.Title
    res.ChannelID = sn.ChannelId
    res.ChannelTitle = sn.ChannelTitle
    res.Description = sn.Description
    if len(sn.Tags) > 0 {
      raw, err := json.Marshal(sn.Tags)
      if err != nil {
        return nil, apierr.Internal(fmt.Errorf("Failed to encode tags for %s: %w", v.Id, err))
      }
      res.Tags = datatypes.JSON(raw)
    }
    if sn.PublishedAt != "" {
      if t, err := time.Parse(time.RFC3339, sn.PublishedAt); err == nil {
        res.PublishedAt = &t
      }
    }
    if sn.Thumbnails != nil {
      raw, err := json.Marshal(sn.Thumbnails)
      if err != nil {
        return nil, apierr.Internal(fmt.Errorf("Failed to encode thumbnails for %s: %w", v.Id, err))
      }
      res.Thumbnails = datatypes.JSON(raw)
    }
    if sn.Localized != nil && !isEnglish(sn.DefaultLanguage, sn.DefaultAudioLanguage) {
      raw, err := json.Marshal(sn.Localized)
      if err != nil {
        return nil, apierr.Internal(fmt.Errorf("Failed to encode localized snippet for %s: %w", v.Id, err))
      }
      res.Localized = datatypes.JSON(raw)
    }
  }
  if cd := v.ContentDetails; cd != nil {
    res.Duration = cd.Duration
  }
  if st := v.Statistics; st != nil {
    res.ViewCount = int64(st.ViewCount)
    res.LikeCount = int64(st.LikeCount)
    res.CommentCount = int64(st.CommentCount)
  }
  return res, nil
}

func isEnglish(langs ...string) bool {
  for _, l := range langs {
    l = strings.ToLower(strings.TrimSpace(l))
    if l == "en" || strings.HasPrefix(l, "en-") {
      return true
    }
  }
  return false
}
