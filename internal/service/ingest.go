// ingest.go — приём файлов в каталог: прямая загрузка через API и
// сообщения, опубликованные в канале напрямую (listener).
// Дедупликация по уникальному идентификатору объекта во внешнем хранилище;
// гонки разрешаются ограничениями уникальности БД.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/luolu1/tg-drive/internal/domain/model"
	"github.com/luolu1/tg-drive/internal/events"
	"github.com/luolu1/tg-drive/internal/repository"
)

// Источники поступления файла (лейбл метрик и поле события).
const (
	SourceUpload   = "upload"
	SourceListener = "listener"
)

var ingestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "td_ingest_total",
	Help: "Количество принятых файлов (по источнику и результату).",
}, []string{"source", "result"})

// BlobUploader — загрузка байтов во внешнее хранилище.
type BlobUploader interface {
	// Name — имя бэкенда (telegram, matrix)
	Name() string
	// HashPrefix — префикс синтетического хэша для файлов из listener
	HashPrefix() string
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (*model.RemoteBlob, error)
}

// BlobListener — источник событий о новых объектах в канале.
// Listen блокируется до отмены ctx.
type BlobListener interface {
	Listen(ctx context.Context, handle func(context.Context, model.RemoteBlob) error) error
}

// IngestResult — результат приёма файла.
type IngestResult struct {
	File *model.FileDescriptor
	// Deduplicated — объект уже был в каталоге, новая запись не создана
	Deduplicated bool
}

// IngestService — конвейер приёма файлов.
type IngestService struct {
	files     repository.FileRepository
	host      BlobUploader
	publisher events.Publisher
	logger    *slog.Logger
}

// NewIngestService создаёт конвейер приёма файлов.
func NewIngestService(
	files repository.FileRepository,
	host BlobUploader,
	publisher events.Publisher,
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		files:     files,
		host:      host,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "ingest_service")),
	}
}

// Upload потоково загружает файл во внешнее хранилище, попутно вычисляя SHA-256,
// и регистрирует его в каталоге. Если объект с тем же уникальным идентификатором
// уже есть, возвращается существующая запись с Deduplicated=true.
func (s *IngestService) Upload(ctx context.Context, filename, contentType string, body io.Reader) (*IngestResult, error) {
	name := cleanFilename(filename)
	if name == "" {
		return nil, fmt.Errorf("%w: не указано имя файла", ErrValidation)
	}

	hasher := sha256.New()
	counter := &byteCounter{}
	blob, err := s.host.Upload(ctx, name, contentType, io.TeeReader(body, io.MultiWriter(hasher, counter)))
	if err != nil {
		ingestTotal.WithLabelValues(SourceUpload, "error").Inc()
		return nil, fmt.Errorf("%w: загрузка в %s: %w", ErrUpstream, s.host.Name(), err)
	}
	if blob.UniqueID == "" {
		ingestTotal.WithLabelValues(SourceUpload, "error").Inc()
		return nil, fmt.Errorf("%w: %s не вернул уникальный идентификатор объекта", ErrUpstream, s.host.Name())
	}

	existing, err := s.files.GetByRemoteUniqueID(ctx, blob.UniqueID)
	switch {
	case err == nil:
		ingestTotal.WithLabelValues(SourceUpload, "deduplicated").Inc()
		s.logger.Info("Файл уже есть в каталоге",
			slog.Int64("file_id", existing.ID),
			slog.String("remote_unique_id", blob.UniqueID),
		)
		return &IngestResult{File: existing, Deduplicated: true}, nil
	case !errors.Is(err, repository.ErrNotFound):
		ingestTotal.WithLabelValues(SourceUpload, "error").Inc()
		return nil, fmt.Errorf("поиск по remote_unique_id: %w", err)
	}

	if blob.Filename == "" {
		blob.Filename = name
	}
	if blob.MimeType == "" {
		blob.MimeType = contentType
	}
	if blob.Size <= 0 {
		blob.Size = counter.n
	}

	desc := descriptorFromBlob(blob, hex.EncodeToString(hasher.Sum(nil)))
	return s.insert(ctx, desc, SourceUpload)
}

// HandleRemoteBlob — обработчик listener: регистрирует объект, опубликованный
// в канале в обход API.
//
// Возвращает ошибку, только если сообщение нужно доставить повторно
// (например, каталог недоступен). Объекты, которые принять невозможно
// в принципе, логируются и пропускаются.
func (s *IngestService) HandleRemoteBlob(ctx context.Context, blob model.RemoteBlob) error {
	res, err := s.IngestPosted(ctx, blob)
	if errors.Is(err, ErrValidation) {
		s.logger.Warn("Файл из канала пропущен",
			slog.String("message_id", blob.MessageID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if err != nil {
		s.logger.Error("Ошибка приёма файла из канала",
			slog.String("remote_unique_id", blob.UniqueID),
			slog.String("message_id", blob.MessageID),
			slog.String("error", err.Error()),
		)
		return err
	}
	if res.Deduplicated {
		s.logger.Debug("Файл из канала уже есть в каталоге",
			slog.Int64("file_id", res.File.ID),
			slog.String("remote_unique_id", blob.UniqueID),
		)
	}
	return nil
}

// IngestPosted регистрирует объект из канала. Байты не скачиваются:
// вместо SHA-256 используется синтетический ключ "<prefix>:<unique id>".
func (s *IngestService) IngestPosted(ctx context.Context, blob model.RemoteBlob) (*IngestResult, error) {
	if blob.UniqueID == "" {
		return nil, fmt.Errorf("%w: объект без уникального идентификатора", ErrValidation)
	}

	existing, err := s.files.GetByRemoteUniqueID(ctx, blob.UniqueID)
	switch {
	case err == nil:
		ingestTotal.WithLabelValues(SourceListener, "deduplicated").Inc()
		return &IngestResult{File: existing, Deduplicated: true}, nil
	case !errors.Is(err, repository.ErrNotFound):
		ingestTotal.WithLabelValues(SourceListener, "error").Inc()
		return nil, fmt.Errorf("поиск по remote_unique_id: %w", err)
	}

	if blob.Filename == "" {
		blob.Filename = "file_" + blob.UniqueID
	}

	desc := descriptorFromBlob(&blob, s.host.HashPrefix()+":"+blob.UniqueID)
	return s.insert(ctx, desc, SourceListener)
}

// RunListener запускает listener внешнего хранилища до отмены ctx.
func (s *IngestService) RunListener(ctx context.Context, l BlobListener) error {
	s.logger.Info("Listener канала запущен", slog.String("blob_host", s.host.Name()))
	err := l.Listen(ctx, s.HandleRemoteBlob)
	s.logger.Info("Listener канала остановлен")
	return err
}

// insert добавляет запись. Конфликт уникальности означает, что параллельный
// приём того же объекта успел раньше: возвращается победившая запись.
func (s *IngestService) insert(ctx context.Context, desc *model.FileDescriptor, source string) (*IngestResult, error) {
	err := s.files.Insert(ctx, desc)
	if err == nil {
		ingestTotal.WithLabelValues(source, "created").Inc()
		s.logger.Info("Файл добавлен в каталог",
			slog.Int64("file_id", desc.ID),
			slog.String("filename", desc.Filename),
			slog.String("kind", string(desc.Kind)),
			slog.String("source", source),
		)
		s.publisher.Publish(events.Event{
			Type:     events.FileIngested,
			FileID:   desc.ID,
			Filename: desc.Filename,
			Source:   source,
		})
		return &IngestResult{File: desc}, nil
	}

	if !errors.Is(err, repository.ErrConflict) {
		ingestTotal.WithLabelValues(source, "error").Inc()
		return nil, fmt.Errorf("добавление файла в каталог: %w", err)
	}

	survivor, err := s.findSurvivor(ctx, desc)
	if err != nil {
		ingestTotal.WithLabelValues(source, "error").Inc()
		return nil, fmt.Errorf("поиск существующей записи после конфликта: %w", err)
	}

	ingestTotal.WithLabelValues(source, "deduplicated").Inc()
	s.logger.Info("Конфликт при добавлении, использована существующая запись",
		slog.Int64("file_id", survivor.ID),
		slog.String("remote_unique_id", desc.RemoteUniqueID),
		slog.String("source", source),
	)
	return &IngestResult{File: survivor, Deduplicated: true}, nil
}

// findSurvivor ищет запись, с которой столкнулась вставка:
// сначала по remote_unique_id, затем по content_hash.
func (s *IngestService) findSurvivor(ctx context.Context, desc *model.FileDescriptor) (*model.FileDescriptor, error) {
	f, err := s.files.GetByRemoteUniqueID(ctx, desc.RemoteUniqueID)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return s.files.GetByContentHash(ctx, desc.ContentHash)
}

// descriptorFromBlob строит запись каталога по описанию объекта.
func descriptorFromBlob(blob *model.RemoteBlob, contentHash string) *model.FileDescriptor {
	kind := blob.Kind
	if kind == "" {
		kind = model.KindDocument
	}
	desc := &model.FileDescriptor{
		Filename:        blob.Filename,
		Kind:            kind,
		ContentHash:     contentHash,
		RemoteFileID:    blob.FileID,
		RemoteUniqueID:  blob.UniqueID,
		RemotePath:      blob.Path,
		RemoteMessageID: blob.MessageID,
		MimeType:        blob.MimeType,
	}
	if blob.Size > 0 {
		size := blob.Size
		desc.Size = &size
	}
	return desc
}

// cleanFilename оставляет только последний элемент пути, присланного клиентом.
func cleanFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}

// byteCounter считает переданные через него байты.
type byteCounter struct {
	n int64
}

func (c *byteCounter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
