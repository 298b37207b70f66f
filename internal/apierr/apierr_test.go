package apierr

import (
  "errors"
  "fmt"
  "testing"
)

func TestStatusOf_KnownKinds(t *testing.T) {
  cases := []struct {
    err        error
    wantStatus int
    wantCode   string
  }{
    {InvalidInput(errors.New("x")), 400, "invalid_input"},
    {Unauthorized(errors.New("x")), 401, "unauthorized"},
    {NotFound(errors.New("x")), 404, "not_found"},
    {Conflict(errors.New("x")), 409, "conflict"},
    {QuotaExceeded(errors.New("x")), 429, "quota_exceeded"},
    {Upstream(errors.New("x")), 502, "upstream"},
    {Internal(errors.New("x")), 500, "internal"},
  }
  for _, tc := range cases {
    status, code := StatusOf(tc.err)
    if status != tc.wantStatus || code != tc.wantCode {
      t.Fatalf("StatusOf(%v) = (%d, %q), want (%d, %q)", tc.err, status, code, tc.wantStatus, tc.wantCode)
    }
  }
}

func TestStatusOf_WrappedError(t *testing.T) {
  wrapped := fmt.Errorf("outer context: %w", NotFound(errors.New("inner")))
  status, code := StatusOf(wrapped)
  if status != 404 || code != "not_found" {
    t.Fatalf("wrapped error lost its kind: (%d, %q)", status, code)
  }
}

func TestStatusOf_PlainErrorDefaultsInternal(t *testing.T) {
  status, code := StatusOf(errors.New("plain"))
  if status != 500 || code != "internal" {
    t.Fatalf("plain error should default to internal: (%d, %q)", status, code)
  }
}

func TestUnwrap(t *testing.T) {
  inner := errors.New("inner")
  if !errors.Is(Upstream(fmt.Errorf("wrap: %w", inner)), inner) {
    t.Fatalf("errors.Is should see through the taxonomy wrapper")
  }
}
