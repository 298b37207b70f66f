package logger

import (
  "fmt"
  "strings"
)

// Tokens and emails never reach the log output, whatever key they ride in
// under. Auth failures are logged without the credential itself.

func sanitizeKVs(kv []interface{}) []interface{} {
  if len(kv) == 0 {
    return kv
  }
  out := make([]interface{}, 0, len(kv))
  for i := 0; i < len(kv); i += 2 {
    if i == len(kv)-1 {
      out = append(out, kv[i])
      break
    }
    key := strings.TrimSpace(strings.ToLower(toString(kv[i])))
    out = append(out, kv[i], sanitizeValue(key, kv[i+1]))
  }
  return out
}

func sanitizeValue(key string, val interface{}) interface{} {
  if isRedactKey(key) {
    return "[REDACTED]"
  }
  if s, ok := val.(string); ok && looksLikeJWT(s) {
    return "[REDACTED]"
  }
  return val
}

func isRedactKey(key string) bool {
  switch {
  case strings.Contains(key, "token"),
    strings.Contains(key, "authorization"),
    strings.Contains(key, "secret"),
    strings.Contains(key, "api_key"),
    strings.Contains(key, "apikey"),
    strings.Contains(key, "password"),
    strings.Contains(key, "email"):
    return true
  default:
    return false
  }
}

func looksLikeJWT(s string) bool {
  parts := strings.Split(s, ".")
  return len(parts) == 3 && len(parts[0]) > 10 && len(parts[1]) > 10
}

func toString(v interface{}) string {
  switch t := v.(type) {
  case nil:
    return ""
  case string:
    return t
  case []byte:
    return string(t)
  default:
    return strings.TrimSpace(fmt.Sprint(v))
  }
}
