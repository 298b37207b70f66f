package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/studyforge/studyforge-backend/internal/apierr"
  "github.com/studyforge/studyforge-backend/internal/logger"
  "github.com/studyforge/studyforge-backend/internal/services"
)

type AuthHandler struct {
  log         *logger.Logger
  authService services.AuthService
}

func NewAuthHandler(log *logger.Logger, authService services.AuthService) *AuthHandler {
  handlerLogger := log.With("handler", "AuthHandler")
  return &AuthHandler{log: handlerLogger, authService: authService}
}

// VerifyEmail is public: the login flow asks whether an address is on the
// allowlist before creating an account. The response never says why.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
  var body struct {
    Email string `json:"email"`
  }
  if err := c.ShouldBindJSON(&body); err != nil || body.Email == "" {
    RespondAPIError(c, apierr.InvalidInput(errors.New("email is required")))
    return
  }
  c.JSON(http.StatusOK, gin.H{"is_verified": h.authService.VerifyEmail(body.Email)})
}
