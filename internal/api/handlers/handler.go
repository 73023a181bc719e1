// handler.go — основной обработчик API tg-drive.
// Объединяет административные, публичные и health обработчики,
// делегируя запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/luolu1/tg-drive/internal/api/errors"
	"github.com/luolu1/tg-drive/internal/api/generated"
	"github.com/luolu1/tg-drive/internal/domain/model"
	"github.com/luolu1/tg-drive/internal/service"
)

// APIHandler реализует сгенерированный интерфейс маршрутов.
var _ generated.ServerInterface = (*APIHandler)(nil)

// Catalog — операции каталога (service.CatalogService).
type Catalog interface {
	List(ctx context.Context, filter model.FileFilter) ([]service.FileEntry, error)
	Get(ctx context.Context, id int64) (*service.FileEntry, error)
	Delete(ctx context.Context, id int64) error
}

// Ingestor — прямая загрузка файлов (service.IngestService).
type Ingestor interface {
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (*service.IngestResult, error)
}

// ShareRegistry — share-ссылки (service.ShareService).
type ShareRegistry interface {
	Create(ctx context.Context, fileID int64, ttl time.Duration) (*model.ShareRecord, error)
	Revoke(ctx context.Context, shareID int64) error
	ResolveActive(ctx context.Context, tok string) (*model.FileDescriptor, *model.ShareRecord, error)
}

// Linker — подписанные ссылки (service.LinkService).
type Linker interface {
	Enabled() bool
	Sign(fileID int64, ttl time.Duration) (*service.SignedLink, error)
	LinkForFile(ctx context.Context, fileID int64, ttl time.Duration) (*service.SignedLink, error)
	ShareURL(shareToken string) string
	Resolve(ctx context.Context, tok string) (*model.FileDescriptor, error)
}

// Streamer — потоковая отдача байтов (service.RelayService).
type Streamer interface {
	Stream(ctx context.Context, w http.ResponseWriter, f *model.FileDescriptor, rangeHeader string) error
}

// APIHandler — основной обработчик API tg-drive.
type APIHandler struct {
	health        *HealthHandler
	catalog       Catalog
	ingest        Ingestor
	shares        ShareRegistry
	links         Linker
	relay         Streamer
	maxUploadSize int64
	logger        *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// maxUploadSize — лимит тела запроса POST /api/upload в байтах.
func NewAPIHandler(
	health *HealthHandler,
	catalog Catalog,
	ingest Ingestor,
	shares ShareRegistry,
	links Linker,
	relay Streamer,
	maxUploadSize int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:        health,
		catalog:       catalog,
		ingest:        ingest,
		shares:        shares,
		links:         links,
		relay:         relay,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// Ping — GET /api/ping, проверка доступности без авторизации.
func (h *APIHandler) Ping(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, generated.OkResponse{Ok: true})
}

// GetOpenAPISpec — GET /api/openapi.json, описание API из встроенного контракта.
func (h *APIHandler) GetOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	spec, err := generated.GetSwagger()
	if err != nil {
		h.logger.Error("Ошибка загрузки описания API", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Описание API недоступно")
		return
	}
	writeJSON(w, http.StatusOK, spec)
}

// ParamErrorHandler отвечает 400, если сгенерированный роутер
// не смог разобрать параметр пути, запроса или заголовка.
func ParamErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	var formatErr *generated.InvalidParamFormatError
	if errors.As(err, &formatErr) {
		apierrors.ValidationError(w, "Некорректный параметр "+formatErr.ParamName)
		return
	}
	apierrors.ValidationError(w, err.Error())
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
