package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/studyforge/studyforge-backend/internal/apierr"
)

type APIError struct {
  Message string `json:"message"`
  Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
  Error APIError `json:"error"`
}

// RespondAPIError maps the service error taxonomy onto status codes. The
// message is the wrapped error chain, which services keep free of secrets.
func RespondAPIError(c *gin.Context, err error) {
  status, code := apierr.StatusOf(err)
  msg := "unknown error"
  if err != nil {
    msg = err.Error()
  }
  c.JSON(status, ErrorEnvelope{
    Error: APIError{
      Message: msg,
      Code:    code,
    },
  })
}

func RespondOK(c *gin.Context, payload any) {
  c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
  c.JSON(http.StatusCreated, payload)
}
