package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/luolu1/tg-drive/internal/domain/model"
)

// FileRepository — интерфейс доступа к каталогу файлов (таблица files).
type FileRepository interface {
	// Insert добавляет запись и заполняет ID и CreatedAt.
	// ErrConflict — если content_hash или remote_unique_id уже заняты.
	Insert(ctx context.Context, f *model.FileDescriptor) error
	// GetByID возвращает файл по идентификатору.
	GetByID(ctx context.Context, id int64) (*model.FileDescriptor, error)
	// GetByRemoteUniqueID возвращает файл по уникальному идентификатору во внешнем хранилище.
	GetByRemoteUniqueID(ctx context.Context, uniqueID string) (*model.FileDescriptor, error)
	// GetByContentHash возвращает файл по хешу содержимого.
	GetByContentHash(ctx context.Context, hash string) (*model.FileDescriptor, error)
	// LockByID блокирует строку файла до конца транзакции (SELECT ... FOR UPDATE).
	LockByID(ctx context.Context, id int64) error
	// List возвращает файлы по фильтру в порядке возрастания ID.
	List(ctx context.Context, filter model.FileFilter) ([]*model.FileDescriptor, error)
	// Delete удаляет файл; share-ссылки удаляются каскадно.
	Delete(ctx context.Context, id int64) error
}

// fileRepo — реализация FileRepository.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий каталога файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

// fileColumns — список колонок в порядке scanFile.
const fileColumns = `id, filename, file_type, content_hash, remote_file_id, remote_unique_id,
	remote_path, remote_message_id, mime_type, size, created_at`

// scanFile сканирует строку в FileDescriptor.
func scanFile(row pgx.Row) (*model.FileDescriptor, error) {
	f := &model.FileDescriptor{}
	var kind string
	err := row.Scan(
		&f.ID, &f.Filename, &kind, &f.ContentHash, &f.RemoteFileID, &f.RemoteUniqueID,
		&f.RemotePath, &f.RemoteMessageID, &f.MimeType, &f.Size, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.Kind = model.Kind(kind)
	return f, nil
}

func (r *fileRepo) Insert(ctx context.Context, f *model.FileDescriptor) error {
	query := `
		INSERT INTO files (filename, file_type, content_hash, remote_file_id, remote_unique_id,
			remote_path, remote_message_id, mime_type, size)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		f.Filename, string(f.Kind), f.ContentHash, f.RemoteFileID, f.RemoteUniqueID,
		f.RemotePath, f.RemoteMessageID, f.MimeType, f.Size,
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл с таким содержимым уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка добавления файла: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, id int64) (*model.FileDescriptor, error) {
	return r.getOne(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id)
}

func (r *fileRepo) GetByRemoteUniqueID(ctx context.Context, uniqueID string) (*model.FileDescriptor, error) {
	return r.getOne(ctx, `SELECT `+fileColumns+` FROM files WHERE remote_unique_id = $1`, uniqueID)
}

func (r *fileRepo) GetByContentHash(ctx context.Context, hash string) (*model.FileDescriptor, error) {
	return r.getOne(ctx, `SELECT `+fileColumns+` FROM files WHERE content_hash = $1`, hash)
}

// getOne выполняет запрос одной записи и приводит pgx.ErrNoRows к ErrNotFound.
func (r *fileRepo) getOne(ctx context.Context, query string, arg any) (*model.FileDescriptor, error) {
	f, err := scanFile(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) LockByID(ctx context.Context, id int64) error {
	var locked int64
	err := r.db.QueryRow(ctx, `SELECT id FROM files WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка блокировки файла: %w", err)
	}
	return nil
}

// buildFileWhere строит WHERE-условие и аргументы для фильтрации файлов.
func buildFileWhere(filter model.FileFilter) (string, []any) {
	var conditions []string
	var args []any
	argNum := 1

	if filter.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("file_type = $%d", argNum))
		args = append(args, string(*filter.Kind))
		argNum++
	}
	if filter.NameContains != "" {
		conditions = append(conditions, fmt.Sprintf(`filename ILIKE $%d ESCAPE '\'`, argNum))
		args = append(args, "%"+escapeLike(filter.NameContains)+"%")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// escapeLike экранирует спецсимволы шаблона LIKE, чтобы подстрока искалась буквально.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *fileRepo) List(ctx context.Context, filter model.FileFilter) ([]*model.FileDescriptor, error) {
	where, args := buildFileWhere(filter)
	query := fmt.Sprintf(`SELECT %s FROM files %s ORDER BY id ASC`, fileColumns, where)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileDescriptor
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *fileRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
