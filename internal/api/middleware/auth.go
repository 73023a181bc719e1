// auth.go — аутентификация административного API общим токеном.
// Токен передаётся заголовком "Authorization: Bearer <token>" или cookie api_token.
// Пустой настроенный токен закрывает административный API полностью.
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/luolu1/tg-drive/internal/api/errors"
)

// CookieName — имя cookie с административным токеном.
const CookieName = "api_token"

// Authorized проверяет, предъявил ли запрос административный токен.
// Сравнение выполняется за постоянное время.
func Authorized(r *http.Request, credential string) bool {
	if credential == "" {
		return false
	}

	presented := bearerToken(r)
	if presented == "" {
		if c, err := r.Cookie(CookieName); err == nil {
			presented = c.Value
		}
	}
	if presented == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(presented), []byte(credential)) == 1
}

// AdminAuth возвращает middleware, пропускающий только запросы с токеном.
func AdminAuth(credential string, logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With(slog.String("component", "admin_auth"))
	if credential == "" {
		log.Warn("TD_API_TOKEN не задан, административный API недоступен")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Authorized(r, credential) {
				log.Debug("Отказ в доступе к административному API",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Требуется административный токен")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken извлекает токен из заголовка Authorization.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
