// relay.go — потоковая отдача файла из внешнего хранилища клиенту.
// Range пробрасывается как есть, статус 200/206 и заголовки диапазона
// ретранслируются без разбора. Путь скачивания во внешнем хранилище может
// устаревать, поэтому он заново получается через API и кэшируется.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/luolu1/tg-drive/internal/domain/model"
)

// Prometheus-метрики relay.
var (
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "td_downloads_total",
		Help: "Общее количество запросов на скачивание (по статусу).",
	}, []string{"status"})

	downloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "td_download_duration_seconds",
		Help:    "Длительность relay (от запроса до завершения streaming).",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	downloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "td_download_bytes_total",
		Help: "Общее количество переданных байт при скачивании.",
	})

	activeDownloads = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "td_active_downloads",
		Help: "Количество активных (in-progress) скачиваний.",
	})

	pathResolveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "td_path_resolve_failures_total",
		Help: "Количество неудачных обновлений пути скачивания (использован сохранённый путь).",
	})
)

// BlobFetcher — чтение объектов из внешнего хранилища.
type BlobFetcher interface {
	// ResolvePath возвращает актуальный путь скачивания по дескриптору файла
	ResolvePath(ctx context.Context, handle string) (string, error)
	// Fetch открывает поток байтов; rangeHeader передаётся как есть
	Fetch(ctx context.Context, path, rangeHeader string) (*http.Response, error)
}

// RelayService — потоковая отдача файлов.
type RelayService struct {
	fetcher        BlobFetcher
	paths          *PathCache
	resolveTimeout time.Duration
	logger         *slog.Logger
}

// NewRelayService создаёт сервис relay.
// resolveTimeout ограничивает запрос пути; сам поток ограничен только
// контекстом клиентского запроса.
func NewRelayService(fetcher BlobFetcher, paths *PathCache, resolveTimeout time.Duration, logger *slog.Logger) *RelayService {
	return &RelayService{
		fetcher:        fetcher,
		paths:          paths,
		resolveTimeout: resolveTimeout,
		logger:         logger.With(slog.String("component", "relay_service")),
	}
}

// Stream отдаёт файл клиенту.
//
// Pipeline:
//  1. Получить путь скачивания (кэш → API внешнего хранилища → сохранённый путь)
//  2. Запросить байты (пробросить Range)
//  3. Сетевая ошибка → ErrUpstreamUnavailable, не-2xx → ErrUpstream;
//     клиенту ничего не записано
//  4. Заголовки + streaming copy
//
// Ошибка возвращается только до записи заголовков. Обрыв потока логируется.
func (s *RelayService) Stream(ctx context.Context, w http.ResponseWriter, f *model.FileDescriptor, rangeHeader string) error {
	start := time.Now()
	activeDownloads.Inc()
	defer activeDownloads.Dec()

	path, cached := s.resolvePath(ctx, f)
	if path == "" {
		downloadsTotal.WithLabelValues("no_path").Inc()
		return fmt.Errorf("%w: нет пути скачивания для файла %d", ErrUpstream, f.ID)
	}

	resp, err := s.fetcher.Fetch(ctx, path, rangeHeader)
	if err != nil {
		downloadsTotal.WithLabelValues("upstream_error").Inc()
		return fmt.Errorf("%w: запрос файла %d: %w", ErrUpstreamUnavailable, f.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		if cached && s.paths != nil {
			// путь из кэша мог устареть раньше TTL
			s.paths.Delete(f.RemoteFileID)
		}
		downloadsTotal.WithLabelValues("upstream_status").Inc()
		return fmt.Errorf("%w: внешнее хранилище вернуло статус %d для файла %d", ErrUpstream, resp.StatusCode, f.ID)
	}

	s.copyHeaders(w, resp)
	SetFileHeaders(w.Header(), f, resp.Header.Get("Content-Type"))
	w.WriteHeader(resp.StatusCode)

	written, err := io.Copy(w, resp.Body)
	if err != nil {
		// заголовки уже отправлены, вернуть ошибку клиенту нельзя
		s.logger.Warn("Ошибка streaming download",
			slog.Int64("file_id", f.ID),
			slog.Int64("bytes_written", written),
			slog.String("error", err.Error()),
		)
		downloadsTotal.WithLabelValues("stream_error").Inc()
		downloadBytesTotal.Add(float64(written))
		return nil
	}

	duration := time.Since(start)
	downloadsTotal.WithLabelValues("success").Inc()
	downloadDuration.Observe(duration.Seconds())
	downloadBytesTotal.Add(float64(written))

	s.logger.Debug("Download завершён",
		slog.Int64("file_id", f.ID),
		slog.Int64("bytes", written),
		slog.Duration("duration", duration),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}

// resolvePath возвращает путь скачивания и признак того, что он взят из кэша.
// При ошибке API используется путь, сохранённый при приёме файла.
func (s *RelayService) resolvePath(ctx context.Context, f *model.FileDescriptor) (string, bool) {
	if f.RemoteFileID == "" {
		return f.RemotePath, false
	}
	if s.paths != nil {
		if p, ok := s.paths.Get(f.RemoteFileID); ok {
			return p, true
		}
	}

	rctx, cancel := context.WithTimeout(ctx, s.resolveTimeout)
	defer cancel()

	p, err := s.fetcher.ResolvePath(rctx, f.RemoteFileID)
	if err != nil || p == "" {
		pathResolveFailuresTotal.Inc()
		msg := "пустой путь"
		if err != nil {
			msg = err.Error()
		}
		s.logger.Warn("Не удалось обновить путь скачивания, используется сохранённый",
			slog.Int64("file_id", f.ID),
			slog.String("error", msg),
		)
		return f.RemotePath, false
	}

	if s.paths != nil {
		s.paths.Set(f.RemoteFileID, p)
	}
	return p, false
}

// copyHeaders пробрасывает заголовки ответа внешнего хранилища,
// относящиеся к содержимому и диапазону.
func (s *RelayService) copyHeaders(w http.ResponseWriter, resp *http.Response) {
	headersToProxy := []string{
		"Content-Length",
		"Content-Range",
		"ETag",
		"Last-Modified",
	}

	for _, h := range headersToProxy {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
}

// SetFileHeaders выставляет заголовки, не зависящие от внешнего хранилища:
// Content-Type, Content-Disposition и Accept-Ranges.
// upstreamType используется, если MIME-тип файла неизвестен.
func SetFileHeaders(h http.Header, f *model.FileDescriptor, upstreamType string) {
	contentType := f.MimeType
	if contentType == "" {
		contentType = upstreamType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", ContentDisposition(f.Filename))
	h.Set("Accept-Ranges", "bytes")
}

// SetHeadHeaders выставляет заголовки ответа на HEAD без обращения
// к внешнему хранилищу. Content-Length — если размер известен.
func SetHeadHeaders(h http.Header, f *model.FileDescriptor) {
	SetFileHeaders(h, f, "")
	if f.Size != nil {
		h.Set("Content-Length", strconv.FormatInt(*f.Size, 10))
	}
}

// ContentDisposition формирует значение "attachment" с именем файла.
// Не-ASCII имена кодируются по RFC 2231 (filename*=utf-8''...).
func ContentDisposition(filename string) string {
	if filename == "" {
		return "attachment"
	}
	v := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if v == "" {
		return "attachment"
	}
	return v
}
