package apierr

import (
  "errors"
  "fmt"
  "net/http"
)

// Error is the client-visible error taxonomy. Status maps straight onto the
// HTTP response code; Code is a stable machine-readable kind.
type Error struct {
  Status int
  Code   string
  Err    error
}

func (e *Error) Error() string {
  if e == nil {
    return ""
  }
  if e.Err != nil {
    return e.Err.Error()
  }
  if e.Code != "" {
    return e.Code
  }
  return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
  return &Error{Status: status, Code: code, Err: err}
}

func InvalidInput(err error) *Error {
  return New(http.StatusBadRequest, "invalid_input", err)
}

func Unauthorized(err error) *Error {
  return New(http.StatusUnauthorized, "unauthorized", err)
}

func NotFound(err error) *Error {
  return New(http.StatusNotFound, "not_found", err)
}

func Conflict(err error) *Error {
  return New(http.StatusConflict, "conflict", err)
}

func QuotaExceeded(err error) *Error {
  return New(http.StatusTooManyRequests, "quota_exceeded", err)
}

func Upstream(err error) *Error {
  return New(http.StatusBadGateway, "upstream", err)
}

func Internal(err error) *Error {
  return New(http.StatusInternalServerError, "internal", err)
}

// StatusOf resolves any error to an HTTP status and code, defaulting to 500.
func StatusOf(err error) (int, string) {
  var ae *Error
  if errors.As(err, &ae) {
    return ae.Status, ae.Code
  }
  return http.StatusInternalServerError, "internal"
}
