package services

import (
  "crypto/sha256"
  "crypto/subtle"
  "encoding/hex"
  "errors"
  "fmt"
  "strings"

  "github.com/golang-jwt/jwt/v5"

  "github.com/studyforge/studyforge-backend/internal/apierr"
  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/utils"
)

// AuthService validates bearer tokens and gates access to the allowlist of
// verified users. Identities are compared as SHA-256 hashes of lowercased
// email addresses, so the allowlist config never holds a raw address.
type AuthService interface {
  VerifyToken(tokenString string) (*TokenClaims, error)
  VerifyEmail(email string) bool
}

type TokenClaims struct {
  Email   string
  Subject string
}

type authService struct {
  log          *logger.Logger
  jwtSecret    []byte
  allowedEmail map[string]struct{}
}

func NewAuthService(log *logger.Logger) (AuthService, error) {
  serviceLog := log.With("service", "AuthService")
  secret := utils.GetEnv("JWT_SECRET_KEY", "", log)
  if secret == "" {
    return nil, fmt.Errorf("missing env var JWT_SECRET_KEY")
  }
  hashes := utils.GetEnvAsList("VERIFIED_EMAIL_HASHES", nil, log)
  allowed := make(map[string]struct{}, len(hashes))
  for _, h := range hashes {
    h = strings.ToLower(strings.TrimSpace(h))
    if h == "" {
      continue
    }
    if len(h) != sha256.Size*2 {
      return nil, fmt.Errorf("VERIFIED_EMAIL_HASHES entry is not a sha256 hex digest")
    }
    allowed[h] = struct{}{}
  }
  if len(allowed) == 0 {
    serviceLog.Warn("VERIFIED_EMAIL_HASHES is empty, all authenticated users will be rejected")
  }
  return &authService{
    log:          serviceLog,
    jwtSecret:    []byte(secret),
    allowedEmail: allowed,
  }, nil
}

// HashEmail is the canonical allowlist digest: sha256 of the lowercased,
// trimmed address, hex-encoded.
func HashEmail(email string) string {
  sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
  return hex.EncodeToString(sum[:])
}

func (a *authService) VerifyToken(tokenString string) (*TokenClaims, error) {
  token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
    if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
      return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
    }
    return a.jwtSecret, nil
  }, jwt.WithValidMethods([]string{"HS256"}))
  if err != nil || !token.Valid {
    if err == nil {
      err = errors.New("invalid token")
    }
    return nil, apierr.Unauthorized(fmt.Errorf("token validation failed: %w", err))
  }

  claims, ok := token.Claims.(jwt.MapClaims)
  if !ok {
    return nil, apierr.Unauthorized(errors.New("token carries no claims"))
  }
  email, _ := claims["email"].(string)
  if email == "" {
    return nil, apierr.Unauthorized(errors.New("token carries no email claim"))
  }
  if !a.VerifyEmail(email) {
    return nil, apierr.Unauthorized(errors.New("email is not on the verified allowlist"))
  }
  sub, _ := claims["sub"].(string)
  return &TokenClaims{Email: email, Subject: sub}, nil
}

// VerifyEmail checks membership with a constant-time digest compare per
// allowlist entry.
func (a *authService) VerifyEmail(email string) bool {
  digest := []byte(HashEmail(email))
  for h := range a.allowedEmail {
    if subtle.ConstantTimeCompare(digest, []byte(h)) == 1 {
      return true
    }
  }
  return false
}
