// Точка входа tg-drive — файловое хранилище поверх канала мессенджера.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт клиент внешнего хранилища (Telegram или Matrix), сервисный слой
// и API handlers, запускает listener канала, topologymetrics и
// HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/luolu1/tg-drive/internal/api/handlers"
	"github.com/luolu1/tg-drive/internal/api/middleware"
	"github.com/luolu1/tg-drive/internal/config"
	"github.com/luolu1/tg-drive/internal/database"
	"github.com/luolu1/tg-drive/internal/domain/model"
	"github.com/luolu1/tg-drive/internal/events"
	"github.com/luolu1/tg-drive/internal/mxclient"
	"github.com/luolu1/tg-drive/internal/repository"
	"github.com/luolu1/tg-drive/internal/server"
	"github.com/luolu1/tg-drive/internal/service"
	"github.com/luolu1/tg-drive/internal/tgclient"
)

const serviceID = "tg-drive"

// blobHost — внешнее хранилище: загрузка, чтение и события канала.
type blobHost interface {
	Name() string
	HashPrefix() string
	HealthURL() string
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (*model.RemoteBlob, error)
	ResolvePath(ctx context.Context, handle string) (string, error)
	Fetch(ctx context.Context, path, rangeHeader string) (*http.Response, error)
	Listen(ctx context.Context, handle func(context.Context, model.RemoteBlob) error) error
}

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("tg-drive запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("blob_host", cfg.BlobHost),
	)

	if cfg.APIToken == "" {
		logger.Warn("TD_API_TOKEN не задан, административный API закрыт")
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.MigrateCatalog(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.OpenCatalog(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Клиент внешнего хранилища
	host, healthPath, err := newBlobHost(cfg, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента внешнего хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Публикация событий (NATS опционален)
	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		nc, natsErr := events.Connect(cfg.NATSURL, serviceID, logger)
		if natsErr != nil {
			logger.Warn("NATS недоступен, события не публикуются",
				slog.String("error", natsErr.Error()),
			)
		} else {
			defer nc.Close()
			publisher = events.NewNATSPublisher(nc, cfg.NATSSubjectPrefix, logger)
			logger.Info("Публикация событий в NATS включена",
				slog.String("subject_prefix", cfg.NATSSubjectPrefix),
			)
		}
	}

	// 7. Catalog
	catalog := repository.NewCatalog(pool)
	repos := catalog.Repos()
	fileRepo, shareRepo := repos.Files, repos.Shares

	// 8. Services
	paths := service.NewPathCache(cfg.PathCacheSize, cfg.PathCacheTTL)
	ingestSvc := service.NewIngestService(fileRepo, host, publisher, logger)
	shareSvc := service.NewShareService(fileRepo, shareRepo, catalog, publisher, cfg.ShareDefaultTTL, logger)
	linkSvc := service.NewLinkService(cfg.DownloadSecret, cfg.BaseURL, cfg.SignedLinkTTL, fileRepo, logger)
	catalogSvc := service.NewCatalogService(fileRepo, shareRepo, paths, publisher, logger)
	relaySvc := service.NewRelayService(host, paths, cfg.RemoteAPITimeout, logger)

	// 9. topologymetrics — мониторинг PostgreSQL и внешнего хранилища
	var hostChecker handlers.ReadinessChecker
	dephealthSvc, dephealthErr := service.NewDephealthService(
		serviceID,
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		service.BlobHostTarget{Name: host.Name(), URL: host.HealthURL(), HealthPath: healthPath},
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
		dephealthSvc = nil
	} else {
		hostChecker = dephealthSvc
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 10. Listener канала
	listenerDone := make(chan struct{})
	go func() {
		defer close(listenerDone)
		if err := ingestSvc.RunListener(ctx, host); err != nil && ctx.Err() == nil {
			logger.Error("Listener канала остановлен с ошибкой", slog.String("error", err.Error()))
		}
	}()

	// 11. API handler
	healthHandler := handlers.NewHealthHandler(database.NewCatalogChecker(pool), hostChecker)
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		catalogSvc,
		ingestSvc,
		shareSvc,
		linkSvc,
		relaySvc,
		cfg.MaxUploadSize,
		logger,
	)

	// 12. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
		server.AdminAuthWithExclusions(middleware.AdminAuth(cfg.APIToken, logger), server.PublicPrefixes...),
	)
	runErr := srv.Run(ctx)

	// 13. Остановка фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	cancel()
	select {
	case <-listenerDone:
	case <-time.After(cfg.ShutdownTimeout):
		logger.Warn("Listener не остановился за отведённое время")
	}
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
	logger.Info("tg-drive остановлен")
}

// newBlobHost создаёт клиент выбранного хранилища и путь его health-проверки.
func newBlobHost(cfg *config.Config, logger *slog.Logger) (blobHost, string, error) {
	if cfg.BlobHost == config.BlobHostMatrix {
		mx, err := mxclient.New(mxclient.Options{
			Homeserver:  cfg.MatrixHomeserver,
			UserID:      cfg.MatrixUserID,
			AccessToken: cfg.MatrixAccessToken,
			RoomID:      cfg.MatrixRoomID,
		}, logger)
		if err != nil {
			return nil, "", err
		}
		return mx, "/_matrix/client/versions", nil
	}

	return tgclient.New(tgclient.Options{
		APIURL:      cfg.TelegramAPIURL,
		Token:       cfg.TelegramBotToken,
		ChannelID:   cfg.TelegramChannelID,
		APITimeout:  cfg.RemoteAPITimeout,
		PollTimeout: cfg.TelegramPollTimeout,
	}, logger), "/", nil
}
