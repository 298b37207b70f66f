package utils

import (
  "os"
  "strconv"
  "strings"

  "github.com/studyforge/studyforge-backend/internal/logger"
)

func GetEnv(key, defaultVal string, log *logger.Logger) string {
  if log != nil {
    log = log.With("env_var", key)
  }
  val, ok := os.LookupEnv(key)
  if !ok {
    if log != nil {
      log.Debug("Environment variable not found, using default")
    }
    return defaultVal
  }
  return val
}

func GetEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
  if log != nil {
    log = log.With("env_var", key)
  }
  valStr, ok := os.LookupEnv(key)
  if !ok {
    if log != nil {
      log.Debug("Environment variable not found, using default", "default", defaultVal)
    }
    return defaultVal
  }
  i, err := strconv.Atoi(strings.TrimSpace(valStr))
  if err != nil {
    if log != nil {
      log.Debug("Environment variable could not be parsed as int, using default", "providedVal", valStr, "defaultVal", defaultVal, "error", err)
    }
    return defaultVal
  }
  return i
}

func GetEnvAsFloat(key string, defaultVal float64, log *logger.Logger) float64 {
  valStr, ok := os.LookupEnv(key)
  if !ok {
    return defaultVal
  }
  f, err := strconv.ParseFloat(strings.TrimSpace(valStr), 64)
  if err != nil {
    if log != nil {
      log.Debug("Environment variable could not be parsed as float, using default", "env_var", key, "providedVal", valStr, "error", err)
    }
    return defaultVal
  }
  return f
}

// GetEnvAsList splits a comma separated env var, trimming blanks.
func GetEnvAsList(key string, defaultVal []string, log *logger.Logger) []string {
  valStr, ok := os.LookupEnv(key)
  if !ok || strings.TrimSpace(valStr) == "" {
    return defaultVal
  }
  parts := strings.Split(valStr, ",")
  out := make([]string, 0, len(parts))
  for _, p := range parts {
    p = strings.TrimSpace(p)
    if p != "" {
      out = append(out, p)
    }
  }
  if len(out) == 0 {
    return defaultVal
  }
  return out
}
