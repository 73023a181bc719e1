package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/luolu1/tg-drive/internal/domain/model"
)

// ShareRepository — интерфейс доступа к share-ссылкам (таблица shares).
type ShareRepository interface {
	// Create добавляет ссылку и заполняет ID и CreatedAt.
	// ErrConflict — токен уже занят; ErrNotFound — файл не существует.
	Create(ctx context.Context, s *model.ShareRecord) error
	// GetByID возвращает ссылку по идентификатору.
	GetByID(ctx context.Context, id int64) (*model.ShareRecord, error)
	// GetByToken возвращает ссылку по токену.
	GetByToken(ctx context.Context, token string) (*model.ShareRecord, error)
	// Revoke помечает ссылку отозванной. Повторный вызов не является ошибкой.
	Revoke(ctx context.Context, id int64) error
	// RevokeActiveForFile отзывает все активные на момент now ссылки файла.
	// Возвращает количество отозванных ссылок.
	RevokeActiveForFile(ctx context.Context, fileID int64, now time.Time) (int64, error)
	// FirstActiveForFile возвращает первую по порядку создания активную ссылку файла.
	FirstActiveForFile(ctx context.Context, fileID int64, now time.Time) (*model.ShareRecord, error)
	// ListByFiles возвращает ссылки указанных файлов, сгруппированные по file_id
	// (внутри группы — по возрастанию ID).
	ListByFiles(ctx context.Context, fileIDs []int64) (map[int64][]*model.ShareRecord, error)
}

// shareRepo — реализация ShareRepository.
type shareRepo struct {
	db DBTX
}

// NewShareRepository создаёт репозиторий share-ссылок.
func NewShareRepository(db DBTX) ShareRepository {
	return &shareRepo{db: db}
}

const shareColumns = `id, token, file_id, expires_at, revoked, created_at`

func scanShare(row pgx.Row) (*model.ShareRecord, error) {
	s := &model.ShareRecord{}
	if err := row.Scan(&s.ID, &s.Token, &s.FileID, &s.ExpiresAt, &s.Revoked, &s.CreatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *shareRepo) Create(ctx context.Context, s *model.ShareRecord) error {
	query := `
		INSERT INTO shares (token, file_id, expires_at, revoked)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, s.Token, s.FileID, s.ExpiresAt, s.Revoked).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: токен ссылки уже используется", ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: файл %d", ErrNotFound, s.FileID)
		}
		return fmt.Errorf("ошибка создания ссылки: %w", err)
	}
	return nil
}

func (r *shareRepo) GetByID(ctx context.Context, id int64) (*model.ShareRecord, error) {
	return r.getOne(ctx, `SELECT `+shareColumns+` FROM shares WHERE id = $1`, id)
}

func (r *shareRepo) GetByToken(ctx context.Context, token string) (*model.ShareRecord, error) {
	return r.getOne(ctx, `SELECT `+shareColumns+` FROM shares WHERE token = $1`, token)
}

func (r *shareRepo) getOne(ctx context.Context, query string, args ...any) (*model.ShareRecord, error) {
	s, err := scanShare(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения ссылки: %w", err)
	}
	return s, nil
}

func (r *shareRepo) Revoke(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE shares SET revoked = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка отзыва ссылки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *shareRepo) RevokeActiveForFile(ctx context.Context, fileID int64, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE shares SET revoked = TRUE
		WHERE file_id = $1 AND NOT revoked AND expires_at > $2`, fileID, now)
	if err != nil {
		return 0, fmt.Errorf("ошибка отзыва ссылок файла: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *shareRepo) FirstActiveForFile(ctx context.Context, fileID int64, now time.Time) (*model.ShareRecord, error) {
	return r.getOne(ctx, `
		SELECT `+shareColumns+` FROM shares
		WHERE file_id = $1 AND NOT revoked AND expires_at > $2
		ORDER BY id ASC
		LIMIT 1`, fileID, now)
}

func (r *shareRepo) ListByFiles(ctx context.Context, fileIDs []int64) (map[int64][]*model.ShareRecord, error) {
	result := make(map[int64][]*model.ShareRecord, len(fileIDs))
	if len(fileIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+shareColumns+` FROM shares
		WHERE file_id = ANY($1)
		ORDER BY file_id, id`, fileIDs)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ссылок: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования ссылки: %w", err)
		}
		result[s.FileID] = append(result[s.FileID], s)
	}
	return result, rows.Err()
}
