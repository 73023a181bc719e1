// links.go — подписанные ссылки скачивания /d/{token} и адреса share-ссылок /s/{token}.
// Подписанная ссылка не хранится в БД: файл и срок действия закодированы
// в токене и защищены HMAC-SHA256.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/luolu1/tg-drive/internal/domain/model"
	"github.com/luolu1/tg-drive/internal/domain/token"
	"github.com/luolu1/tg-drive/internal/repository"
)

// SignedLink — выпущенная подписанная ссылка.
type SignedLink struct {
	URL       string
	Token     string
	ExpiresAt time.Time
}

// LinkService выпускает и проверяет подписанные ссылки.
type LinkService struct {
	secret     []byte
	baseURL    string
	defaultTTL time.Duration
	files      repository.FileRepository
	logger     *slog.Logger

	now func() time.Time
}

// NewLinkService создаёт сервис ссылок. Пустой secret отключает
// подписанные ссылки: выпуск возвращает ErrLinksDisabled, /d отвечает 404.
func NewLinkService(
	secret string,
	baseURL string,
	defaultTTL time.Duration,
	files repository.FileRepository,
	logger *slog.Logger,
) *LinkService {
	s := &LinkService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		defaultTTL: defaultTTL,
		files:      files,
		logger:     logger.With(slog.String("component", "link_service")),
		now:        time.Now,
	}
	if secret != "" {
		s.secret = []byte(secret)
	} else {
		s.logger.Warn("TD_DOWNLOAD_SECRET не задан, подписанные ссылки отключены")
	}
	return s
}

// Enabled сообщает, можно ли выпускать подписанные ссылки.
func (s *LinkService) Enabled() bool {
	return len(s.secret) > 0
}

// Sign выпускает подписанную ссылку на файл без проверки его существования
// (ttl == 0 — срок по умолчанию).
func (s *LinkService) Sign(fileID int64, ttl time.Duration) (*SignedLink, error) {
	if !s.Enabled() {
		return nil, ErrLinksDisabled
	}
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	if ttl < 0 {
		return nil, fmt.Errorf("%w: срок действия должен быть положительным", ErrValidation)
	}

	exp := s.now().Add(ttl).Truncate(time.Second)
	tok := token.Sign(fileID, exp.Unix(), s.secret)
	return &SignedLink{
		URL:       s.baseURL + "/d/" + tok,
		Token:     tok,
		ExpiresAt: exp.UTC(),
	}, nil
}

// LinkForFile выпускает подписанную ссылку на существующий файл.
func (s *LinkService) LinkForFile(ctx context.Context, fileID int64, ttl time.Duration) (*SignedLink, error) {
	if !s.Enabled() {
		return nil, ErrLinksDisabled
	}
	if _, err := s.files.GetByID(ctx, fileID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение файла: %w", err)
	}
	return s.Sign(fileID, ttl)
}

// ShareURL возвращает абсолютный адрес share-ссылки.
func (s *LinkService) ShareURL(shareToken string) string {
	return s.baseURL + "/s/" + shareToken
}

// Resolve проверяет подписанный токен и возвращает файл.
// Ошибки: ErrLinksDisabled, token.ErrInvalidToken, ErrExpired, ErrNotFound.
func (s *LinkService) Resolve(ctx context.Context, tok string) (*model.FileDescriptor, error) {
	if !s.Enabled() {
		return nil, ErrLinksDisabled
	}

	claims, err := token.Verify(tok, s.secret)
	if err != nil {
		return nil, err
	}
	if claims.Expired(s.now()) {
		return nil, ErrExpired
	}

	f, err := s.files.GetByID(ctx, claims.FileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение файла: %w", err)
	}
	return f, nil
}
