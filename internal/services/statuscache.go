package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "time"

  "github.com/redis/go-redis/v9"

  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/types"
  "github.com/studyforge/studyforge-backend/internal/utils"
)

// AIStatusCache is a short-TTL read cache in front of the ai-status poll
// endpoint, which clients hit every few seconds during enrichment. All
// methods degrade to a miss when redis is absent or unhappy; the cache is
// never load-bearing.
type AIStatusCache interface {
  Get(ctx context.Context, resourceID string, chunkID *int) ([]types.ChunkAIStatus, bool)
  Set(ctx context.Context, resourceID string, chunkID *int, statuses []types.ChunkAIStatus)
  Invalidate(ctx context.Context, resourceID string)
}

type aiStatusCache struct {
  log *logger.Logger
  rdb *redis.Client
  ttl time.Duration
}

// NewAIStatusCache returns a disabled (nil-client) cache when REDIS_ADDR
// is unset, so callers never branch on availability.
func NewAIStatusCache(log *logger.Logger) AIStatusCache {
  serviceLog := log.With("service", "AIStatusCache")
  addr := utils.GetEnv("REDIS_ADDR", "", log)
  ttlMs := utils.GetEnvAsInt("AI_STATUS_CACHE_TTL_MS", 2000, log)
  cache := &aiStatusCache{
    log: serviceLog,
    ttl: time.Duration(ttlMs) * time.Millisecond,
  }
  if addr == "" {
    serviceLog.Info("REDIS_ADDR not set, ai-status cache disabled")
    return cache
  }
  cache.rdb = redis.NewClient(&redis.Options{
    Addr:     addr,
    Password: utils.GetEnv("REDIS_PASSWORD", "", log),
    DB:       utils.GetEnvAsInt("REDIS_DB", 0, log),
  })
  return cache
}

func statusCacheKey(resourceID string, chunkID *int) string {
  if chunkID != nil {
    return fmt.Sprintf("aistatus:%s:%d", resourceID, *chunkID)
  }
  return fmt.Sprintf("aistatus:%s:all", resourceID)
}

func (c *aiStatusCache) Get(ctx context.Context, resourceID string, chunkID *int) ([]types.ChunkAIStatus, bool) {
  if c.rdb == nil {
    return nil, false
  }
  raw, err := c.rdb.Get(ctx, statusCacheKey(resourceID, chunkID)).Bytes()
  if err != nil {
    if !errors.Is(err, redis.Nil) {
      c.log.Debug("ai-status cache read failed", "resource_id", resourceID, "error", err.Error())
    }
    return nil, false
  }
  var statuses []types.ChunkAIStatus
  if err := json.Unmarshal(raw, &statuses); err != nil {
    return nil, false
  }
  return statuses, true
}

func (c *aiStatusCache) Set(ctx context.Context, resourceID string, chunkID *int, statuses []types.ChunkAIStatus) {
  if c.rdb == nil {
    return
  }
  raw, err := json.Marshal(statuses)
  if err != nil {
    return
  }
  if err := c.rdb.Set(ctx, statusCacheKey(resourceID, chunkID), raw, c.ttl).Err(); err != nil {
    c.log.Debug("ai-status cache write failed", "resource_id", resourceID, "error", err.Error())
  }
}

// Invalidate drops every cached entry for a resource. Per-chunk keys are
// found by scan; the key space per resource is tiny.
func (c *aiStatusCache) Invalidate(ctx context.Context, resourceID string) {
  if c.rdb == nil {
    return
  }
  pattern := fmt.Sprintf("aistatus:%s:*", resourceID)
  iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
  var keys []string
  for iter.Next(ctx) {
    keys = append(keys, iter.Val())
  }
  if err := iter.Err(); err != nil {
    c.log.Debug("ai-status cache scan failed", "resource_id", resourceID, "error", err.Error())
    return
  }
  if len(keys) > 0 {
    if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
      c.log.Debug("ai-status cache invalidate failed", "resource_id", resourceID, "error", err.Error())
    }
  }
}
