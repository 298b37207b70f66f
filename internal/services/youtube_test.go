package services

import (
  "testing"

  "google.golang.org/api/googleapi"
)

func TestExtractVideoID(t *testing.T) {
  cases := []struct {
    in      string
    want    string
    wantErr bool
  }{
    {in: "dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
    {in: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
    {in: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", want: "dQw4w9WgXcQ"},
    {in: "https://youtu.be/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
    {in: "youtu.be/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
    {in: "https://www.youtube.com/embed/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
    {in: "https://www.youtube.com/v/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
    {in: "", wantErr: true},
    {in: "not a url at all", wantErr: true},
    {in: "https://www.youtube.com/watch", wantErr: true},
    {in: "https://example.com/watch?v=tooshort", wantErr: true},
  }
  for _, tc := range cases {
    got, err := ExtractVideoID(tc.in)
    if tc.wantErr {
      if err == nil {
        t.Fatalf("ExtractVideoID(%q) expected error, got %q", tc.in, got)
      }
      continue
    }
    if err != nil {
      t.Fatalf("ExtractVideoID(%q) unexpected error: %v", tc.in, err)
    }
    if got != tc.want {
      t.Fatalf("ExtractVideoID(%q) = %q, want %q", tc.in, got, tc.want)
    }
  }
}

func TestIsQuotaError(t *testing.T) {
  if !isQuotaError(&googleapi.Error{Code: 429}) {
    t.Fatalf("429 should count as quota exhaustion")
  }
  if !isQuotaError(&googleapi.Error{
    Code:   403,
    Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}},
  }) {
    t.Fatalf("403 quotaExceeded should count as quota exhaustion")
  }
  if isQuotaError(&googleapi.Error{
    Code:   403,
    Errors: []googleapi.ErrorItem{{Reason: "forbidden"}},
  }) {
    t.Fatalf("plain 403 should not count as quota exhaustion")
  }
  if isQuotaError(&googleapi.Error{Code: 500}) {
    t.Fatalf("500 should not count as quota exhaustion")
  }
}

func TestIsEnglish(t *testing.T) {
  if !isEnglish("en") || !isEnglish("", "en-US") || !isEnglish("EN-gb") {
    t.Fatalf("English variants not recognized")
  }
  if isEnglish("de", "fr") || isEnglish("") {
    t.Fatalf("non-English recognized as English")
  }
}
