// shares.go — административные обработчики share-ссылок:
// POST /api/share, POST /api/share/revoke.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	apierrors "github.com/luolu1/tg-drive/internal/api/errors"
	"github.com/luolu1/tg-drive/internal/api/generated"
	"github.com/luolu1/tg-drive/internal/service"
)

// CreateShare — POST /api/share (form: file_id, expires_hours).
// Предыдущие активные ссылки файла отзываются.
func (h *APIHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	fileID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("file_id")), 10, 64)
	if err != nil || fileID <= 0 {
		apierrors.ValidationError(w, "Поле file_id должно быть положительным целым числом")
		return
	}

	ttl, ok := hoursParam(w, r.FormValue("expires_hours"), "expires_hours")
	if !ok {
		return
	}

	share, err := h.shares.Create(r.Context(), fileID, ttl)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "Файл не найден")
			return
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, "Некорректный срок действия ссылки")
			return
		}
		h.logger.Error("Ошибка создания share-ссылки",
			slog.Int64("file_id", fileID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при создании ссылки")
		return
	}

	writeJSON(w, http.StatusOK, generated.ShareCreated{
		Id:        share.ID,
		Url:       h.links.ShareURL(share.Token),
		ExpiresAt: share.ExpiresAt,
	})
}

// RevokeShare — POST /api/share/revoke (form: share_id). Повторный отзыв — не ошибка.
func (h *APIHandler) RevokeShare(w http.ResponseWriter, r *http.Request) {
	shareID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("share_id")), 10, 64)
	if err != nil || shareID <= 0 {
		apierrors.ValidationError(w, "Поле share_id должно быть положительным целым числом")
		return
	}

	if err := h.shares.Revoke(r.Context(), shareID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Ссылка не найдена")
			return
		}
		h.logger.Error("Ошибка отзыва share-ссылки",
			slog.Int64("share_id", shareID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при отзыве ссылки")
		return
	}

	writeJSON(w, http.StatusOK, generated.OkResponse{Ok: true})
}
