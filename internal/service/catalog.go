// catalog.go — чтение и удаление записей каталога вместе с их share-ссылками.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/luolu1/tg-drive/internal/domain/model"
	"github.com/luolu1/tg-drive/internal/events"
	"github.com/luolu1/tg-drive/internal/repository"
)

// FileEntry — запись каталога со всеми её share-ссылками (в порядке создания).
type FileEntry struct {
	File   *model.FileDescriptor
	Shares []*model.ShareRecord
}

// CatalogService — операции над каталогом файлов.
type CatalogService struct {
	files     repository.FileRepository
	shares    repository.ShareRepository
	paths     *PathCache
	publisher events.Publisher
	logger    *slog.Logger
}

// NewCatalogService создаёт сервис каталога.
// paths может быть nil.
func NewCatalogService(
	files repository.FileRepository,
	shares repository.ShareRepository,
	paths *PathCache,
	publisher events.Publisher,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		files:     files,
		shares:    shares,
		paths:     paths,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "catalog_service")),
	}
}

// List возвращает файлы по фильтру (по возрастанию ID) с их ссылками.
func (s *CatalogService) List(ctx context.Context, filter model.FileFilter) ([]FileEntry, error) {
	files, err := s.files.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("получение списка файлов: %w", err)
	}

	ids := make([]int64, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	shares, err := s.shares.ListByFiles(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("получение ссылок: %w", err)
	}

	entries := make([]FileEntry, len(files))
	for i, f := range files {
		entries[i] = FileEntry{File: f, Shares: shares[f.ID]}
	}
	return entries, nil
}

// Get возвращает файл с его ссылками.
func (s *CatalogService) Get(ctx context.Context, id int64) (*FileEntry, error) {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение файла: %w", err)
	}

	shares, err := s.shares.ListByFiles(ctx, []int64{id})
	if err != nil {
		return nil, fmt.Errorf("получение ссылок: %w", err)
	}
	return &FileEntry{File: f, Shares: shares[id]}, nil
}

// Delete удаляет запись каталога; её ссылки удаляются каскадно.
// Объект во внешнем хранилище не удаляется.
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("получение файла: %w", err)
	}

	if err := s.files.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление файла: %w", err)
	}

	if s.paths != nil {
		s.paths.Delete(f.RemoteFileID)
	}

	s.logger.Info("Файл удалён из каталога",
		slog.Int64("file_id", id),
		slog.String("filename", f.Filename),
	)
	s.publisher.Publish(events.Event{Type: events.FileDeleted, FileID: id, Filename: f.Filename})
	return nil
}
