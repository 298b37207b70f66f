package middleware

import (
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"

  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/services"
)

const ClaimsContextKey = "auth_claims"

type AuthMiddleware struct {
  log         *logger.Logger
  authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
  middlewareLogger := log.With("middleware", "AuthMiddleware")
  return &AuthMiddleware{log: middlewareLogger, authService: authService}
}

// RequireAuth verifies the bearer token and stashes the claims on the gin
// context. Failures are logged without the token value.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
  return func(c *gin.Context) {
    tokenString := extractBearerToken(c)
    if tokenString == "" {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
      return
    }
    claims, err := am.authService.VerifyToken(tokenString)
    if err != nil {
      am.log.Debug("Rejected request token", "path", c.FullPath())
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
      return
    }
    c.Set(ClaimsContextKey, claims)
    c.Next()
  }
}

func extractBearerToken(c *gin.Context) string {
  authHeader := c.GetHeader("Authorization")
  if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
    return strings.TrimSpace(authHeader[7:])
  }
  return ""
}
