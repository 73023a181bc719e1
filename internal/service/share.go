// share.go — share-ссылки: создание, отзыв, разрешение токена.
// У файла не более одной активной ссылки: создание новой отзывает
// предыдущие в той же транзакции под блокировкой строки файла.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/luolu1/tg-drive/internal/domain/model"
	"github.com/luolu1/tg-drive/internal/events"
	"github.com/luolu1/tg-drive/internal/repository"
)

const (
	// shareTokenBytes — энтропия токена share-ссылки (96 бит)
	shareTokenBytes = 12
	// maxTokenAttempts — попытки генерации при коллизии токена
	maxTokenAttempts = 5
)

var sharesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "td_shares_total",
	Help: "Операции над share-ссылками (по операции и результату).",
}, []string{"op", "result"})

// Transactor выполняет fn с репозиториями в одной транзакции.
// Реализуется *repository.Catalog.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(repos repository.Repos) error) error
}

// ShareService — реестр share-ссылок.
type ShareService struct {
	files      repository.FileRepository
	shares     repository.ShareRepository
	tx         Transactor
	publisher  events.Publisher
	defaultTTL time.Duration
	logger     *slog.Logger

	now      func() time.Time
	newToken func() (string, error)
}

// NewShareService создаёт реестр share-ссылок.
func NewShareService(
	files repository.FileRepository,
	shares repository.ShareRepository,
	tx Transactor,
	publisher events.Publisher,
	defaultTTL time.Duration,
	logger *slog.Logger,
) *ShareService {
	return &ShareService{
		files:      files,
		shares:     shares,
		tx:         tx,
		publisher:  publisher,
		defaultTTL: defaultTTL,
		logger:     logger.With(slog.String("component", "share_service")),
		now:        time.Now,
		newToken:   newShareToken,
	}
}

// DefaultTTL возвращает срок действия ссылки по умолчанию.
func (s *ShareService) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Create создаёт share-ссылку на файл со сроком действия ttl
// (ttl == 0 — срок по умолчанию). Активные ссылки файла отзываются.
func (s *ShareService) Create(ctx context.Context, fileID int64, ttl time.Duration) (*model.ShareRecord, error) {
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	if ttl < 0 {
		return nil, fmt.Errorf("%w: срок действия должен быть положительным", ErrValidation)
	}

	now := s.now().UTC()
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		tok, err := s.newToken()
		if err != nil {
			sharesTotal.WithLabelValues("create", "error").Inc()
			return nil, fmt.Errorf("генерация токена: %w", err)
		}

		rec := &model.ShareRecord{
			Token:     tok,
			FileID:    fileID,
			ExpiresAt: now.Add(ttl),
		}

		var revoked int64
		err = s.tx.WithinTx(ctx, func(repos repository.Repos) error {
			if err := repos.Files.LockByID(ctx, fileID); err != nil {
				return err
			}
			n, err := repos.Shares.RevokeActiveForFile(ctx, fileID, now)
			if err != nil {
				return err
			}
			revoked = n
			return repos.Shares.Create(ctx, rec)
		})

		switch {
		case err == nil:
			sharesTotal.WithLabelValues("create", "ok").Inc()
			s.logger.Info("Share-ссылка создана",
				slog.Int64("share_id", rec.ID),
				slog.Int64("file_id", fileID),
				slog.Time("expires_at", rec.ExpiresAt),
				slog.Int64("revoked_previous", revoked),
			)
			s.publisher.Publish(events.Event{Type: events.ShareCreated, FileID: fileID, ShareID: rec.ID})
			return rec, nil
		case errors.Is(err, repository.ErrNotFound):
			sharesTotal.WithLabelValues("create", "not_found").Inc()
			return nil, ErrNotFound
		case errors.Is(err, repository.ErrConflict):
			s.logger.Warn("Коллизия токена share-ссылки, повтор", slog.Int("attempt", attempt))
			continue
		default:
			sharesTotal.WithLabelValues("create", "error").Inc()
			return nil, fmt.Errorf("создание share-ссылки: %w", err)
		}
	}

	sharesTotal.WithLabelValues("create", "error").Inc()
	return nil, fmt.Errorf("не удалось сгенерировать уникальный токен за %d попыток", maxTokenAttempts)
}

// Revoke отзывает ссылку. Повторный отзыв не является ошибкой.
func (s *ShareService) Revoke(ctx context.Context, shareID int64) error {
	rec, err := s.shares.GetByID(ctx, shareID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			sharesTotal.WithLabelValues("revoke", "not_found").Inc()
			return ErrNotFound
		}
		sharesTotal.WithLabelValues("revoke", "error").Inc()
		return fmt.Errorf("получение share-ссылки: %w", err)
	}
	if rec.Revoked {
		sharesTotal.WithLabelValues("revoke", "noop").Inc()
		return nil
	}

	if err := s.shares.Revoke(ctx, shareID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		sharesTotal.WithLabelValues("revoke", "error").Inc()
		return fmt.Errorf("отзыв share-ссылки: %w", err)
	}

	sharesTotal.WithLabelValues("revoke", "ok").Inc()
	s.logger.Info("Share-ссылка отозвана",
		slog.Int64("share_id", shareID),
		slog.Int64("file_id", rec.FileID),
	)
	s.publisher.Publish(events.Event{Type: events.ShareRevoked, FileID: rec.FileID, ShareID: shareID})
	return nil
}

// ResolveActive возвращает файл по токену активной ссылки.
// ErrNotFound — токен неизвестен или файл удалён, ErrExpired — ссылка отозвана
// или просрочена.
func (s *ShareService) ResolveActive(ctx context.Context, tok string) (*model.FileDescriptor, *model.ShareRecord, error) {
	rec, err := s.shares.GetByToken(ctx, tok)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("получение share-ссылки: %w", err)
	}
	if !rec.IsActive(s.now()) {
		return nil, rec, ErrExpired
	}

	f, err := s.files.GetByID(ctx, rec.FileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, rec, ErrNotFound
		}
		return nil, rec, fmt.Errorf("получение файла: %w", err)
	}
	return f, rec, nil
}

// ActiveForFile возвращает активную ссылку файла или nil, если её нет.
func (s *ShareService) ActiveForFile(ctx context.Context, fileID int64) (*model.ShareRecord, error) {
	rec, err := s.shares.FirstActiveForFile(ctx, fileID, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("поиск активной ссылки: %w", err)
	}
	return rec, nil
}

// newShareToken генерирует непредсказуемый URL-safe токен.
func newShareToken() (string, error) {
	b := make([]byte, shareTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
