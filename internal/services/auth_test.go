package services

import (
  "testing"
  "time"

  "github.com/golang-jwt/jwt/v5"

  "github.com/studyforge/studyforge-backend/internal/logger"
)

const testJWTSecret = "test-secret-for-auth-service"

func newTestAuthService(t *testing.T, allowedEmails ...string) AuthService {
  t.Helper()
  t.Setenv("JWT_SECRET_KEY", testJWTSecret)
  hashes := ""
  for i, email := range allowedEmails {
    if i > 0 {
      hashes += ","
    }
    hashes += HashEmail(email)
  }
  t.Setenv("VERIFIED_EMAIL_HASHES", hashes)

  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("logger init failed: %v", err)
  }
  svc, err := NewAuthService(log)
  if err != nil {
    t.Fatalf("auth service init failed: %v", err)
  }
  return svc
}

func signToken(t *testing.T, secret, email string) string {
  t.Helper()
  token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
    "email": email,
    "sub":   "user-1",
    "exp":   time.Now().Add(time.Hour).Unix(),
  })
  signed, err := token.SignedString([]byte(secret))
  if err != nil {
    t.Fatalf("token signing failed: %v", err)
  }
  return signed
}

func TestHashEmail_CanonicalizesCase(t *testing.T) {
  if HashEmail("User@Example.COM") != HashEmail("user@example.com") {
    t.Fatalf("hash should be case-insensitive on the address")
  }
  if HashEmail(" user@example.com ") != HashEmail("user@example.com") {
    t.Fatalf("hash should trim whitespace")
  }
  if len(HashEmail("a@b.c")) != 64 {
    t.Fatalf("expected 64 hex chars")
  }
}

func TestVerifyToken_AllowedEmail(t *testing.T) {
  svc := newTestAuthService(t, "user@example.com")
  claims, err := svc.VerifyToken(signToken(t, testJWTSecret, "user@example.com"))
  if err != nil {
    t.Fatalf("valid token rejected: %v", err)
  }
  if claims.Email != "user@example.com" {
    t.Fatalf("wrong email claim: %q", claims.Email)
  }
}

func TestVerifyToken_EmailNotAllowlisted(t *testing.T) {
  svc := newTestAuthService(t, "user@example.com")
  if _, err := svc.VerifyToken(signToken(t, testJWTSecret, "intruder@example.com")); err == nil {
    t.Fatalf("non-allowlisted email accepted")
  }
}

func TestVerifyToken_WrongSecret(t *testing.T) {
  svc := newTestAuthService(t, "user@example.com")
  if _, err := svc.VerifyToken(signToken(t, "some-other-secret", "user@example.com")); err == nil {
    t.Fatalf("token signed with wrong secret accepted")
  }
}

func TestVerifyToken_ExpiredToken(t *testing.T) {
  svc := newTestAuthService(t, "user@example.com")
  token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
    "email": "user@example.com",
    "exp":   time.Now().Add(-time.Hour).Unix(),
  })
  signed, err := token.SignedString([]byte(testJWTSecret))
  if err != nil {
    t.Fatalf("token signing failed: %v", err)
  }
  if _, err := svc.VerifyToken(signed); err == nil {
    t.Fatalf("expired token accepted")
  }
}

func TestVerifyToken_MissingEmailClaim(t *testing.T) {
  svc := newTestAuthService(t, "user@example.com")
  token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
    "sub": "user-1",
    "exp": time.Now().Add(time.Hour).Unix(),
  })
  signed, err := token.SignedString([]byte(testJWTSecret))
  if err != nil {
    t.Fatalf("token signing failed: %v", err)
  }
  if _, err := svc.VerifyToken(signed); err == nil {
    t.Fatalf("token without email claim accepted")
  }
}

func TestVerifyEmail(t *testing.T) {
  svc := newTestAuthService(t, "a@example.com", "b@example.com")
  if !svc.VerifyEmail("A@Example.Com") {
    t.Fatalf("case variant of allowlisted email rejected")
  }
  if svc.VerifyEmail("c@example.com") {
    t.Fatalf("unknown email accepted")
  }
}
