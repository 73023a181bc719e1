// download.go — публичные обработчики скачивания:
// GET|HEAD /d/{token} (подписанная ссылка), GET|HEAD /s/{token} (share-ссылка).
// Неверный, просроченный, отозванный токен и удалённый файл неразличимы
// для клиента (404), причина пишется только в лог.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/luolu1/tg-drive/internal/api/errors"
	"github.com/luolu1/tg-drive/internal/api/generated"
	"github.com/luolu1/tg-drive/internal/domain/model"
	"github.com/luolu1/tg-drive/internal/domain/token"
	"github.com/luolu1/tg-drive/internal/service"
)

const notFoundMessage = "Файл не найден"

// SignedDownload — GET /d/{token}.
func (h *APIHandler) SignedDownload(w http.ResponseWriter, r *http.Request, tok generated.Token, params generated.SignedDownloadParams) {
	f, err := h.links.Resolve(r.Context(), tok)
	if err != nil {
		h.writeResolveError(w, "signed", err)
		return
	}
	h.stream(w, r, f, params.Range)
}

// SignedDownloadHead — HEAD /d/{token}. Токен не проверяется.
func (h *APIHandler) SignedDownloadHead(w http.ResponseWriter, _ *http.Request, _ generated.Token) {
	w.Header().Set("Accept-Ranges", "bytes")
	w.WriteHeader(http.StatusOK)
}

// ShareDownload — GET /s/{token}.
func (h *APIHandler) ShareDownload(w http.ResponseWriter, r *http.Request, tok generated.Token, params generated.ShareDownloadParams) {
	f, _, err := h.shares.ResolveActive(r.Context(), tok)
	if err != nil {
		h.writeResolveError(w, "share", err)
		return
	}
	h.stream(w, r, f, params.Range)
}

// ShareDownloadHead — HEAD /s/{token}. Ссылка проверяется, внешнее хранилище не запрашивается.
func (h *APIHandler) ShareDownloadHead(w http.ResponseWriter, r *http.Request, tok generated.Token) {
	f, _, err := h.shares.ResolveActive(r.Context(), tok)
	if err != nil {
		h.writeResolveError(w, "share", err)
		return
	}
	service.SetHeadHeaders(w.Header(), f)
	w.WriteHeader(http.StatusOK)
}

// stream отдаёт байты файла, пробрасывая Range.
func (h *APIHandler) stream(w http.ResponseWriter, r *http.Request, f *model.FileDescriptor, rangeHeader *string) {
	var rng string
	if rangeHeader != nil {
		rng = *rangeHeader
	}
	err := h.relay.Stream(r.Context(), w, f, rng)
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, service.ErrUpstreamUnavailable):
		h.logger.Warn("Внешнее хранилище недоступно",
			slog.Int64("file_id", f.ID),
			slog.String("error", err.Error()),
		)
		apierrors.UpstreamUnavailable(w, "Внешнее хранилище недоступно")
	case errors.Is(err, service.ErrUpstream):
		h.logger.Warn("Внешнее хранилище отклонило запрос файла",
			slog.Int64("file_id", f.ID),
			slog.String("error", err.Error()),
		)
		apierrors.NotFound(w, notFoundMessage)
	default:
		h.logger.Error("Ошибка отдачи файла",
			slog.Int64("file_id", f.ID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при скачивании файла")
	}
}

// writeResolveError сводит ошибки разрешения токена к 404.
// Ошибки БД — 500.
func (h *APIHandler) writeResolveError(w http.ResponseWriter, kind string, err error) {
	var reason string
	switch {
	case errors.Is(err, token.ErrInvalidToken):
		reason = "invalid"
	case errors.Is(err, service.ErrExpired):
		reason = "expired"
	case errors.Is(err, service.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, service.ErrLinksDisabled):
		h.logger.Warn("Запрос подписанной ссылки при отключённых ссылках (не задан TD_DOWNLOAD_SECRET)")
		reason = "disabled"
	default:
		h.logger.Error("Ошибка разрешения ссылки",
			slog.String("link", kind),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка")
		return
	}

	h.logger.Debug("Ссылка отклонена",
		slog.String("link", kind),
		slog.String("reason", reason),
	)
	apierrors.NotFound(w, notFoundMessage)
}
