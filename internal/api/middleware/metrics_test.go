package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/d/eyJhYmMiOjF9.c2ln", "/d/{token}"},
		{"/s/AbCdEf123456", "/s/{token}"},
		{"/api/files", "/api/files"},
		{"/api/files/42", "/api/files/{id}"},
		{"/api/files/42/link", "/api/files/{id}/link"},
		{"/api/upload", "/api/upload"},
		{"/health/ready", "/health/ready"},
		{"/metrics", "/metrics"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, ожидалось %q", tt.path, got, tt.want)
		}
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/d/secret-token", nil))

	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("ответ без X-Request-ID")
	}
	out := buf.String()
	if strings.Contains(out, "secret-token") {
		t.Errorf("токен попал в лог: %s", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "status=404") {
		t.Errorf("лог = %s", out)
	}
}

func TestRequestLogger_KeepsIncomingRequestID(t *testing.T) {
	h := RequestLogger(testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	r := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	r.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if got := rec.Header().Get(RequestIDHeader); got != "req-1" {
		t.Errorf("X-Request-ID = %q, ожидался req-1", got)
	}
}
