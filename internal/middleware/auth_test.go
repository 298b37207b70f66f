package middleware

import (
  "net/http"
  "net/http/httptest"
  "testing"
  "time"

  "github.com/gin-gonic/gin"
  "github.com/golang-jwt/jwt/v5"

  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/services"
)

const testSecret = "middleware-test-secret"

func newTestRouter(t *testing.T) *gin.Engine {
  t.Helper()
  t.Setenv("JWT_SECRET_KEY", testSecret)
  t.Setenv("VERIFIED_EMAIL_HASHES", services.HashEmail("user@example.com"))

  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("logger init failed: %v", err)
  }
  authService, err := services.NewAuthService(log)
  if err != nil {
    t.Fatalf("auth service init failed: %v", err)
  }

  gin.SetMode(gin.TestMode)
  router := gin.New()
  router.GET("/protected", NewAuthMiddleware(log, authService).RequireAuth(), func(c *gin.Context) {
    claims, ok := c.Get(ClaimsContextKey)
    if !ok {
      c.String(http.StatusInternalServerError, "no claims")
      return
    }
    c.String(http.StatusOK, claims.(*services.TokenClaims).Email)
  })
  return router
}

func signTestToken(t *testing.T, email string) string {
  t.Helper()
  token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
    "email": email,
    "exp":   time.Now().Add(time.Hour).Unix(),
  })
  signed, err := token.SignedString([]byte(testSecret))
  if err != nil {
    t.Fatalf("signing failed: %v", err)
  }
  return signed
}

func TestRequireAuth_ValidToken(t *testing.T) {
  router := newTestRouter(t)
  req := httptest.NewRequest(http.MethodGet, "/protected", nil)
  req.Header.Set("Authorization", "Bearer "+signTestToken(t, "user@example.com"))
  w := httptest.NewRecorder()
  router.ServeHTTP(w, req)

  if w.Code != http.StatusOK {
    t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
  }
  if w.Body.String() != "user@example.com" {
    t.Fatalf("claims not propagated: %q", w.Body.String())
  }
}

func TestRequireAuth_MissingHeader(t *testing.T) {
  router := newTestRouter(t)
  req := httptest.NewRequest(http.MethodGet, "/protected", nil)
  w := httptest.NewRecorder()
  router.ServeHTTP(w, req)

  if w.Code != http.StatusUnauthorized {
    t.Fatalf("expected 401, got %d", w.Code)
  }
}

func TestRequireAuth_NonAllowlistedEmail(t *testing.T) {
  router := newTestRouter(t)
  req := httptest.NewRequest(http.MethodGet, "/protected", nil)
  req.Header.Set("Authorization", "Bearer "+signTestToken(t, "intruder@example.com"))
  w := httptest.NewRecorder()
  router.ServeHTTP(w, req)

  if w.Code != http.StatusUnauthorized {
    t.Fatalf("expected 401, got %d", w.Code)
  }
}

func TestRequireAuth_MalformedHeader(t *testing.T) {
  router := newTestRouter(t)
  req := httptest.NewRequest(http.MethodGet, "/protected", nil)
  req.Header.Set("Authorization", "Token abcdef")
  w := httptest.NewRecorder()
  router.ServeHTTP(w, req)

  if w.Code != http.StatusUnauthorized {
    t.Fatalf("expected 401, got %d", w.Code)
  }
}
