package services

import (
  "context"
  "errors"
  "fmt"
  "io"
  "strings"
  "time"

  "cloud.google.com/go/storage"
  "google.golang.org/api/iterator"
  "google.golang.org/api/option"

  "github.com/studyforge/studyforge-backend/internal/apierr"
  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/utils"
)

// BucketService stores raw chunk text payloads in GCS under
// <resource_id>/<chunk_id>.txt. Writes are idempotent upserts: same key,
// replaced object.
type BucketService interface {
  PutChunkText(ctx context.Context, resourceID string, chunkID int, text string) (string, error)
  GetChunkText(ctx context.Context, ref string) (string, error)
  DeleteChunkText(ctx context.Context, ref string) error
  DeleteAllForResource(ctx context.Context, resourceID string) error
}

type bucketService struct {
  log           *logger.Logger
  storageClient *storage.Client
  bucketName    string
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
  serviceLog := log.With("service", "BucketService")
  bucket := utils.GetEnv("GCS_BUCKET_NAME", "", log)
  if bucket == "" {
    return nil, fmt.Errorf("missing env var GCS_BUCKET_NAME")
  }
  saPath := utils.GetEnv("GOOGLE_APPLICATION_CREDENTIALS_JSON", "", log)
  if saPath == "" {
    serviceLog.Warn("GOOGLE_APPLICATION_CREDENTIALS_JSON not set, storage client falls back to ADC")
  }
  ctx := context.Background()
  var stClient *storage.Client
  var err error
  if saPath != "" {
    stClient, err = storage.NewClient(ctx, option.WithCredentialsFile(saPath), option.WithScopes(storage.ScopeReadWrite))
  } else {
    stClient, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
  }
  if err != nil {
    return nil, fmt.Errorf("Failed to create storage client: %w", err)
  }
  return &bucketService{
    log:           serviceLog,
    storageClient: stClient,
    bucketName:    bucket,
  }, nil
}

// ChunkTextKey is the object-store layout for chunk payloads.
func ChunkTextKey(resourceID string, chunkID int) string {
  return fmt.Sprintf("%s/%d.txt", resourceID, chunkID)
}

func (bs *bucketService) PutChunkText(ctx context.Context, resourceID string, chunkID int, text string) (string, error) {
  ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
  defer cancel()
  key := ChunkTextKey(resourceID, chunkID)
  w := bs.storageClient.Bucket(bs.bucketName).Object(key).NewWriter(ctx)
  w.ContentType = "text/plain; charset=utf-8"
  if _, err := io.WriteString(w, text); err != nil {
    _ = w.Close()
    return "", apierr.Upstream(fmt.Errorf("Failed to write chunk text to GCS: %w", err))
  }
  if err := w.Close(); err != nil {
    return "", apierr.Upstream(fmt.Errorf("Failed to close GCS writer: %w", err))
  }
  return key, nil
}

func (bs *bucketService) GetChunkText(ctx context.Context, ref string) (string, error) {
  ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
  defer cancel()
  rc, err := bs.storageClient.Bucket(bs.bucketName).Object(ref).NewReader(ctx)
  if err != nil {
    if errors.Is(err, storage.ErrObjectNotExist) {
      return "", apierr.NotFound(fmt.Errorf("chunk text %q not found", ref))
    }
    return "", apierr.Upstream(fmt.Errorf("Failed to open GCS object %q: %w", ref, err))
  }
  defer rc.Close()
  b, err := io.ReadAll(rc)
  if err != nil {
    return "", apierr.Upstream(fmt.Errorf("Failed to read GCS object %q: %w", ref, err))
  }
  return string(b), nil
}

func (bs *bucketService) DeleteChunkText(ctx context.Context, ref string) error {
  ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
  defer cancel()
  o := bs.storageClient.Bucket(bs.bucketName).Object(ref)
  if err := o.Delete(ctx); err != nil {
    if errors.Is(err, storage.ErrObjectNotExist) {
      return nil
    }
    return apierr.Upstream(fmt.Errorf("Failed to delete GCS object %q: %w", ref, err))
  }
  return nil
}

// DeleteAllForResource removes every object under the resource prefix.
// A resource with no payloads is not an error.
func (bs *bucketService) DeleteAllForResource(ctx context.Context, resourceID string) error {
  ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
  defer cancel()
  prefix := strings.TrimSuffix(resourceID, "/") + "/"
  it := bs.storageClient.Bucket(bs.bucketName).Objects(ctx, &storage.Query{Prefix: prefix})
  for {
    attrs, err := it.Next()
    if errors.Is(err, iterator.Done) {
      return nil
    }
    if err != nil {
      return apierr.Upstream(fmt.Errorf("Failed to list GCS objects under %q: %w", prefix, err))
    }
    if err := bs.storageClient.Bucket(bs.bucketName).Object(attrs.Name).Delete(ctx); err != nil {
      if errors.Is(err, storage.ErrObjectNotExist) {
        continue
      }
      return apierr.Upstream(fmt.Errorf("Failed to delete GCS object %q: %w", attrs.Name, err))
    }
  }
}
