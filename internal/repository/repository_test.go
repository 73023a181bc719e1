package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/luolu1/tg-drive/internal/config"
	"github.com/luolu1/tg-drive/internal/database"
	"github.com/luolu1/tg-drive/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер и применяет миграции.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("tgdrive_test"),
		postgres.WithUsername("tgdrive"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("TD_DB_HOST", host)
	t.Setenv("TD_DB_PORT", port.Port())
	t.Setenv("TD_DB_NAME", "tgdrive_test")
	t.Setenv("TD_DB_USER", "tgdrive")
	t.Setenv("TD_DB_PASSWORD", "test-password")
	t.Setenv("TD_TELEGRAM_BOT_TOKEN", "123:test")
	t.Setenv("TD_TELEGRAM_CHANNEL_ID", "-1001")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.MigrateCatalog(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := database.OpenCatalog(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

// newTestFile создаёт дескриптор с уникальными ключами по номеру n.
func newTestFile(n int, name string, kind model.Kind) *model.FileDescriptor {
	return &model.FileDescriptor{
		Filename:        name,
		Kind:            kind,
		ContentHash:     fmt.Sprintf("hash-%d", n),
		RemoteFileID:    fmt.Sprintf("remote-%d", n),
		RemoteUniqueID:  fmt.Sprintf("uniq-%d", n),
		RemotePath:      fmt.Sprintf("documents/file_%d", n),
		RemoteMessageID: fmt.Sprintf("%d", 100+n),
	}
}

func TestFileRepository_CRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewFileRepository(pool)

	f := newTestFile(1, "Отчёт.pdf", model.KindDocument)
	if err := repo.Insert(ctx, f); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}
	if f.ID == 0 || f.CreatedAt.IsZero() {
		t.Fatalf("Insert() не заполнил ID/CreatedAt: %+v", f)
	}

	got, err := repo.GetByID(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Filename != "Отчёт.pdf" || got.Kind != model.KindDocument || got.Size != nil {
		t.Errorf("GetByID() = %+v", got)
	}

	byUID, err := repo.GetByRemoteUniqueID(ctx, "uniq-1")
	if err != nil || byUID.ID != f.ID {
		t.Errorf("GetByRemoteUniqueID() = %v, %v", byUID, err)
	}
	byHash, err := repo.GetByContentHash(ctx, "hash-1")
	if err != nil || byHash.ID != f.ID {
		t.Errorf("GetByContentHash() = %v, %v", byHash, err)
	}

	if _, err := repo.GetByID(ctx, f.ID+1000); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(несуществующий) ошибка = %v, ожидалась ErrNotFound", err)
	}

	if err := repo.Delete(ctx, f.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if err := repo.Delete(ctx, f.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный Delete() ошибка = %v, ожидалась ErrNotFound", err)
	}

	// Идентификаторы не переиспользуются
	next := newTestFile(2, "b.txt", model.KindDocument)
	if err := repo.Insert(ctx, next); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}
	if next.ID <= f.ID {
		t.Errorf("новый ID %d не больше удалённого %d", next.ID, f.ID)
	}
}

func TestFileRepository_DuplicateKeys(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewFileRepository(pool)

	if err := repo.Insert(ctx, newTestFile(1, "a", model.KindDocument)); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}

	sameHash := newTestFile(2, "b", model.KindDocument)
	sameHash.ContentHash = "hash-1"
	if err := repo.Insert(ctx, sameHash); !errors.Is(err, ErrConflict) {
		t.Errorf("Insert(тот же хеш) ошибка = %v, ожидалась ErrConflict", err)
	}

	sameUID := newTestFile(3, "c", model.KindDocument)
	sameUID.RemoteUniqueID = "uniq-1"
	if err := repo.Insert(ctx, sameUID); !errors.Is(err, ErrConflict) {
		t.Errorf("Insert(тот же remote_unique_id) ошибка = %v, ожидалась ErrConflict", err)
	}
}

func TestFileRepository_ConcurrentInsertSingleSurvivor(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewFileRepository(pool)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f := newTestFile(100+i, "race.bin", model.KindDocument)
			f.RemoteUniqueID = "same-uid"
			errs <- repo.Insert(ctx, f)
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, ErrConflict):
			t.Errorf("неожиданная ошибка: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("успешных вставок = %d, ожидалась 1", succeeded)
	}
}

func TestFileRepository_List(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewFileRepository(pool)

	files := []*model.FileDescriptor{
		newTestFile(1, "holiday.jpg", model.KindPhoto),
		newTestFile(2, "Holiday_video.mp4", model.KindVideo),
		newTestFile(3, "report_100%.pdf", model.KindDocument),
	}
	for _, f := range files {
		if err := repo.Insert(ctx, f); err != nil {
			t.Fatalf("Insert() ошибка: %v", err)
		}
	}

	all, err := repo.List(ctx, model.FileFilter{})
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(all) != 3 || all[0].ID > all[1].ID || all[1].ID > all[2].ID {
		t.Errorf("List() вернул %d записей или нарушен порядок по ID", len(all))
	}

	byName, _ := repo.List(ctx, model.FileFilter{NameContains: "HOLIDAY"})
	if len(byName) != 2 {
		t.Errorf("поиск без учёта регистра: %d записей, ожидалось 2", len(byName))
	}

	photo := model.KindPhoto
	byBoth, _ := repo.List(ctx, model.FileFilter{Kind: &photo, NameContains: "holiday"})
	if len(byBoth) != 1 || byBoth[0].Filename != "holiday.jpg" {
		t.Errorf("фильтр по категории и имени: %+v", byBoth)
	}

	// % в запросе ищется буквально
	literal, _ := repo.List(ctx, model.FileFilter{NameContains: "100%"})
	if len(literal) != 1 {
		t.Errorf("поиск '100%%': %d записей, ожидалась 1", len(literal))
	}
	wildcard, _ := repo.List(ctx, model.FileFilter{NameContains: "%"})
	if len(wildcard) != 1 {
		t.Errorf("поиск '%%': %d записей, ожидалась 1", len(wildcard))
	}
}

func TestShareRepository_Lifecycle(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	files := NewFileRepository(pool)
	shares := NewShareRepository(pool)

	f := newTestFile(1, "a.txt", model.KindDocument)
	if err := files.Insert(ctx, f); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	first := &model.ShareRecord{Token: "tok-1", FileID: f.ID, ExpiresAt: now.Add(time.Hour)}
	second := &model.ShareRecord{Token: "tok-2", FileID: f.ID, ExpiresAt: now.Add(2 * time.Hour)}
	for _, s := range []*model.ShareRecord{first, second} {
		if err := shares.Create(ctx, s); err != nil {
			t.Fatalf("Create() ошибка: %v", err)
		}
	}

	dup := &model.ShareRecord{Token: "tok-1", FileID: f.ID, ExpiresAt: now.Add(time.Hour)}
	if err := shares.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Create(занятый токен) ошибка = %v, ожидалась ErrConflict", err)
	}
	orphan := &model.ShareRecord{Token: "tok-x", FileID: f.ID + 1000, ExpiresAt: now.Add(time.Hour)}
	if err := shares.Create(ctx, orphan); !errors.Is(err, ErrNotFound) {
		t.Errorf("Create(несуществующий файл) ошибка = %v, ожидалась ErrNotFound", err)
	}

	active, err := shares.FirstActiveForFile(ctx, f.ID, now)
	if err != nil || active.ID != first.ID {
		t.Errorf("FirstActiveForFile() = %v, %v; ожидалась первая ссылка", active, err)
	}

	// Отзыв идемпотентен
	for range 2 {
		if err := shares.Revoke(ctx, first.ID); err != nil {
			t.Fatalf("Revoke() ошибка: %v", err)
		}
	}
	if err := shares.Revoke(ctx, second.ID+1000); !errors.Is(err, ErrNotFound) {
		t.Errorf("Revoke(несуществующий) ошибка = %v, ожидалась ErrNotFound", err)
	}

	got, _ := shares.GetByToken(ctx, "tok-1")
	if !got.Revoked {
		t.Error("ссылка tok-1 должна быть отозвана")
	}

	active, err = shares.FirstActiveForFile(ctx, f.ID, now)
	if err != nil || active.ID != second.ID {
		t.Errorf("FirstActiveForFile() после отзыва = %v, %v", active, err)
	}

	n, err := shares.RevokeActiveForFile(ctx, f.ID, now)
	if err != nil || n != 1 {
		t.Errorf("RevokeActiveForFile() = %d, %v; ожидалось 1", n, err)
	}

	grouped, err := shares.ListByFiles(ctx, []int64{f.ID})
	if err != nil || len(grouped[f.ID]) != 2 {
		t.Errorf("ListByFiles() = %v, %v", grouped, err)
	}

	// Удаление файла каскадно удаляет ссылки
	if err := files.Delete(ctx, f.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := shares.GetByID(ctx, second.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("ссылка удалённого файла: ошибка = %v, ожидалась ErrNotFound", err)
	}
}

func TestCatalog_WithinTxRollsBack(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	catalog := NewCatalog(pool)
	files := catalog.Repos().Files

	f := newTestFile(1, "a.txt", model.KindDocument)
	if err := files.Insert(ctx, f); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}

	errBoom := errors.New("boom")
	err := catalog.WithinTx(ctx, func(repos Repos) error {
		if err := repos.Files.LockByID(ctx, f.ID); err != nil {
			return err
		}
		s := &model.ShareRecord{Token: "tx-tok", FileID: f.ID, ExpiresAt: time.Now().Add(time.Hour)}
		if err := repos.Shares.Create(ctx, s); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("WithinTx() ошибка = %v, ожидалась boom", err)
	}

	if _, err := catalog.Repos().Shares.GetByToken(ctx, "tx-tok"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ссылка из откаченной транзакции найдена: %v", err)
	}

	if err := catalog.WithinTx(ctx, func(repos Repos) error {
		return repos.Files.LockByID(ctx, f.ID+1000)
	}); !errors.Is(err, ErrNotFound) {
		t.Errorf("LockByID(несуществующий) ошибка = %v, ожидалась ErrNotFound", err)
	}

	err = catalog.WithinTx(ctx, func(repos Repos) error {
		s := &model.ShareRecord{Token: "tx-ok", FileID: f.ID, ExpiresAt: time.Now().Add(time.Hour)}
		return repos.Shares.Create(ctx, s)
	})
	if err != nil {
		t.Fatalf("WithinTx() ошибка: %v", err)
	}
	if _, err := catalog.Repos().Shares.GetByToken(ctx, "tx-ok"); err != nil {
		t.Errorf("ссылка из зафиксированной транзакции не найдена: %v", err)
	}
}

func TestPgCode(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: codeUniqueViolation})
	fk := &pgconn.PgError{Code: codeForeignKeyViolation}

	if !isUniqueViolation(unique) || isForeignKeyViolation(unique) {
		t.Error("обёрнутое нарушение уникальности не распознано")
	}
	if !isForeignKeyViolation(fk) || isUniqueViolation(fk) {
		t.Error("нарушение внешнего ключа не распознано")
	}
	if pgCode(errors.New("timeout")) != "" {
		t.Error("код у ошибки не из PostgreSQL")
	}
}
