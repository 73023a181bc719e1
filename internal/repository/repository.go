// Пакет repository — каталог tg-drive в PostgreSQL: описания файлов
// (таблица files) и share-ссылки (таблица shares).
// Запросы пишутся на SQL через pgx. Гонки параллельного приёма одного
// файла и выдачи ссылок разрешают уникальные индексы и транзакции.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound — файла или ссылки нет в каталоге.
	ErrNotFound = errors.New("нет в каталоге")
	// ErrConflict — нарушен уникальный ключ каталога (хеш содержимого,
	// идентификатор объекта во внешнем хранилище или токен ссылки).
	ErrConflict = errors.New("уже есть в каталоге")
)

// Коды ошибок PostgreSQL, которые каталог переводит в свои ошибки.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// DBTX — общее подмножество *pgxpool.Pool и pgx.Tx.
// Репозитории принимают DBTX и одинаково работают в транзакции и вне её.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repos — репозитории файлов и ссылок поверх одного DBTX.
type Repos struct {
	Files  FileRepository
	Shares ShareRepository
}

func newRepos(db DBTX) Repos {
	return Repos{
		Files:  NewFileRepository(db),
		Shares: NewShareRepository(db),
	}
}

// Catalog — точка входа в каталог: репозитории на пуле и транзакции.
type Catalog struct {
	pool *pgxpool.Pool
}

// NewCatalog создаёт каталог поверх пула соединений.
func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// Repos возвращает репозитории, выполняющие каждый запрос отдельно.
func (c *Catalog) Repos() Repos {
	return newRepos(c.pool)
}

// WithinTx выполняет fn с репозиториями одной транзакции.
// Транзакция фиксируется, если fn вернул nil, иначе откатывается;
// ошибка fn возвращается без обёртки.
func (c *Catalog) WithinTx(ctx context.Context, fn func(repos Repos) error) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("начало транзакции каталога: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // после Commit откат ничего не делает

	if err := fn(newRepos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("фиксация транзакции каталога: %w", err)
	}
	return nil
}

// pgCode возвращает код ошибки PostgreSQL или пустую строку.
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool { return pgCode(err) == codeUniqueViolation }

// isForeignKeyViolation — ссылка создаётся на файл, которого уже нет.
func isForeignKeyViolation(err error) bool { return pgCode(err) == codeForeignKeyViolation }
