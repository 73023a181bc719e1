// files.go — административные обработчики каталога:
// GET /api/files, GET /api/files/{id}, DELETE /api/files/{id},
// GET /api/files/{id}/link, POST /api/upload.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	apierrors "github.com/luolu1/tg-drive/internal/api/errors"
	"github.com/luolu1/tg-drive/internal/api/generated"
	"github.com/luolu1/tg-drive/internal/domain/model"
	"github.com/luolu1/tg-drive/internal/service"
)

// maxTTLHours — наибольший срок ссылки в часах (100 лет).
const maxTTLHours = 100 * 365 * 24

// ListFiles — GET /api/files?q=&kind=.
// Каждая запись получает свежую подписанную ссылку (пустую, если ссылки отключены).
func (h *APIHandler) ListFiles(w http.ResponseWriter, r *http.Request, params generated.ListFilesParams) {
	var filter model.FileFilter
	if params.Q != nil {
		filter.NameContains = strings.TrimSpace(*params.Q)
	}
	if params.Kind != nil {
		kind, ok := model.ParseKind(string(*params.Kind))
		if !ok {
			apierrors.ValidationError(w, "Недопустимое значение kind: ожидается document, photo, video или audio")
			return
		}
		filter.Kind = &kind
	}

	entries, err := h.catalog.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("Ошибка получения списка файлов", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка при получении списка файлов")
		return
	}

	now := time.Now()
	items := make([]generated.FileItem, 0, len(entries))
	for i := range entries {
		items = append(items, h.toFileItem(&entries[i], now))
	}
	writeJSON(w, http.StatusOK, items)
}

// GetFile — GET /api/files/{id}.
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request, id generated.FileId) {
	if !validFileID(w, id) {
		return
	}

	entry, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Файл не найден")
			return
		}
		h.logger.Error("Ошибка получения файла",
			slog.Int64("file_id", id),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении файла")
		return
	}

	writeJSON(w, http.StatusOK, h.toFileItem(entry, time.Now()))
}

// DeleteFile — DELETE /api/files/{id}. Объект во внешнем хранилище остаётся.
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request, id generated.FileId) {
	if !validFileID(w, id) {
		return
	}

	if err := h.catalog.Delete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Файл не найден")
			return
		}
		h.logger.Error("Ошибка удаления файла",
			slog.Int64("file_id", id),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при удалении файла")
		return
	}

	writeJSON(w, http.StatusOK, generated.OkResponse{Ok: true})
}

// FileLink — GET /api/files/{id}/link?hours=N. Выпускает подписанную ссылку.
func (h *APIHandler) FileLink(w http.ResponseWriter, r *http.Request, id generated.FileId, params generated.FileLinkParams) {
	if !validFileID(w, id) {
		return
	}

	ttl, ok := hoursTTL(w, params.Hours, "hours")
	if !ok {
		return
	}

	link, err := h.links.LinkForFile(r.Context(), id, ttl)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "Файл не найден")
		case errors.Is(err, service.ErrLinksDisabled):
			apierrors.LinksDisabled(w, "Подписанные ссылки отключены: не задан TD_DOWNLOAD_SECRET")
		default:
			h.logger.Error("Ошибка выпуска ссылки",
				slog.Int64("file_id", id),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Внутренняя ошибка при выпуске ссылки")
		}
		return
	}

	writeJSON(w, http.StatusOK, generated.SignedLinkResponse{Url: link.URL, ExpiresAt: link.ExpiresAt})
}

// Upload — POST /api/upload, multipart-поле "file".
// Тело читается потоково и передаётся во внешнее хранилище без буферизации на диске.
func (h *APIHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		apierrors.ValidationError(w, "Ожидается multipart/form-data")
		return
	}

	for {
		part, err := mr.NextPart()
		if err != nil {
			if isTooLarge(err) {
				apierrors.PayloadTooLarge(w, "Превышен максимальный размер загрузки")
				return
			}
			apierrors.ValidationError(w, "Поле file не найдено")
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}

		res, err := h.ingest.Upload(r.Context(), part.FileName(), part.Header.Get("Content-Type"), part)
		_ = part.Close()
		if err != nil {
			h.writeUploadError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, generated.UploadResponse{Id: res.File.ID, Deduplicated: res.Deduplicated})
		return
	}
}

func (h *APIHandler) writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case isTooLarge(err):
		apierrors.PayloadTooLarge(w, "Превышен максимальный размер загрузки")
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, "Не указано имя файла")
	case errors.Is(err, service.ErrUpstream):
		h.logger.Warn("Ошибка загрузки во внешнее хранилище", slog.String("error", err.Error()))
		apierrors.UpstreamUnavailable(w, "Внешнее хранилище недоступно")
	default:
		h.logger.Error("Ошибка загрузки файла", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка при загрузке файла")
	}
}

// toFileItem конвертирует запись каталога в ответ API.
func (h *APIHandler) toFileItem(e *service.FileEntry, now time.Time) generated.FileItem {
	item := generated.FileItem{
		Id:          e.File.ID,
		Filename:    e.File.Filename,
		Kind:        generated.FileKind(e.File.Kind),
		ContentHash: e.File.ContentHash,
		Size:        e.File.Size,
		CreatedAt:   e.File.CreatedAt,
		Shares:      make([]generated.Share, 0, len(e.Shares)),
	}
	if e.File.MimeType != "" {
		item.MimeType = &e.File.MimeType
	}
	if h.links.Enabled() {
		if link, err := h.links.Sign(e.File.ID, 0); err == nil {
			item.DownloadUrl = link.URL
		}
	}
	for _, s := range e.Shares {
		item.Shares = append(item.Shares, generated.Share{
			Id:        s.ID,
			Url:       h.links.ShareURL(s.Token),
			ExpiresAt: s.ExpiresAt,
			Revoked:   s.Revoked,
			Active:    s.IsActive(now),
		})
	}
	return item
}

// validFileID отвечает 400 на неположительный идентификатор.
func validFileID(w http.ResponseWriter, id int64) bool {
	if id <= 0 {
		apierrors.ValidationError(w, "Некорректный идентификатор файла")
		return false
	}
	return true
}

// hoursTTL переводит срок в часах в time.Duration. nil — срок по умолчанию (0).
// Срок вне 1..maxTTLHours — 400.
func hoursTTL(w http.ResponseWriter, hours *int, name string) (time.Duration, bool) {
	if hours == nil {
		return 0, true
	}
	if *hours <= 0 || *hours > maxTTLHours {
		apierrors.ValidationError(w, fmt.Sprintf("Параметр %s должен быть целым числом от 1 до %d", name, maxTTLHours))
		return 0, false
	}
	return time.Duration(*hours) * time.Hour, true
}

// hoursParam разбирает срок в часах из поля формы. Пустое значение — срок по умолчанию.
func hoursParam(w http.ResponseWriter, raw, name string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	hours, err := strconv.Atoi(raw)
	if err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Параметр %s должен быть целым числом от 1 до %d", name, maxTTLHours))
		return 0, false
	}
	return hoursTTL(w, &hours, name)
}

// isTooLarge проверяет превышение лимита http.MaxBytesReader.
func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
