package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestAuthorized(t *testing.T) {
	tests := []struct {
		name       string
		credential string
		header     string
		cookie     string
		want       bool
	}{
		{"bearer ok", "secret", "Bearer secret", "", true},
		{"bearer lowercase scheme", "secret", "bearer secret", "", true},
		{"bearer wrong", "secret", "Bearer other", "", false},
		{"basic scheme", "secret", "Basic secret", "", false},
		{"cookie ok", "secret", "", "secret", true},
		{"cookie wrong", "secret", "", "nope", false},
		{"nothing presented", "secret", "", "", false},
		{"empty credential denies all", "", "Bearer ", "", false},
		{"empty credential with cookie", "", "", "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/files", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			if got := Authorized(r, tt.credential); got != tt.want {
				t.Errorf("Authorized = %v, ожидалось %v", got, tt.want)
			}
		})
	}
}

func TestAdminAuth(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	h := AdminAuth("secret", testLogger())(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("без токена: статус %d, ожидался 401", rec.Code)
	}
	if called {
		t.Error("handler не должен вызываться без токена")
	}

	r := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	r.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK || !called {
		t.Errorf("с токеном: статус %d, handler вызван = %v", rec.Code, called)
	}
}
