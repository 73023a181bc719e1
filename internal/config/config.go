// Пакет config — загрузка и валидация конфигурации tg-drive
// из переменных окружения (и необязательного файла .env).
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Поддерживаемые внешние хранилища (TD_BLOBHOST).
const (
	BlobHostTelegram = "telegram"
	BlobHostMatrix   = "matrix"
)

// Config содержит все параметры конфигурации tg-drive.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 0 — без ограничения,
	// скачивание больших файлов ограничено только соединением клиента)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	// Максимум соединений в пуле каталога (по умолчанию 10)
	DBMaxConns int

	// --- Внешнее хранилище ---

	// BlobHost — тип внешнего хранилища: telegram или matrix
	BlobHost string
	// Таймаут метаданных-запросов к внешнему хранилищу (getFile, отправка сообщений)
	RemoteAPITimeout time.Duration

	// Telegram Bot API
	TelegramBotToken    string
	TelegramChannelID   int64
	TelegramAPIURL      string
	TelegramPollTimeout time.Duration

	// Matrix
	MatrixHomeserver  string
	MatrixUserID      string
	MatrixAccessToken string
	MatrixRoomID      string

	// --- Ссылки и доступ ---

	// APIToken — общий секрет администратора (Bearer или cookie api_token).
	// Пустое значение закрывает административный API.
	APIToken string
	// BaseURL — префикс абсолютных ссылок (без завершающего /)
	BaseURL string
	// DownloadSecret — HMAC-секрет подписанных ссылок.
	// Пустое значение отключает подписанные ссылки.
	DownloadSecret string
	// SignedLinkTTL — срок действия ссылок, выдаваемых в списке файлов
	SignedLinkTTL time.Duration
	// ShareDefaultTTL — срок share-ссылки по умолчанию
	ShareDefaultTTL time.Duration
	// MaxUploadSize — максимальный размер прямой загрузки в байтах
	MaxUploadSize int64

	// --- Кэш путей скачивания ---

	PathCacheSize int
	PathCacheTTL  time.Duration

	// --- NATS (необязательно) ---

	// NATSURL — адрес NATS; пустое значение отключает публикацию событий
	NATSURL           string
	NATSSubjectPrefix string

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Если в рабочем каталоге есть файл .env, его значения подставляются
// для незаданных переменных.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	// Отсутствие .env — нормальная ситуация
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	// --- Сервер ---

	// TD_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("TD_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("TD_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("TD_PORT: порт %d вне диапазона 1-65535", cfg.Port)
	}

	// TD_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("TD_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("TD_LOG_LEVEL: %w", err)
	}

	// TD_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("TD_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("TD_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("TD_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TD_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("TD_HTTP_WRITE_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("TD_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("TD_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TD_HTTP_IDLE_TIMEOUT: %w", err)
	}
	cfg.ShutdownTimeout, err = getEnvDuration("TD_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TD_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost = getEnvDefault("TD_DB_HOST", "localhost")
	cfg.DBPort, err = getEnvInt("TD_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("TD_DB_PORT: %w", err)
	}
	cfg.DBName = getEnvDefault("TD_DB_NAME", "tgdrive")
	cfg.DBUser = getEnvDefault("TD_DB_USER", "tgdrive")
	cfg.DBPassword, err = getEnvRequired("TD_DB_PASSWORD")
	if err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("TD_DB_SSL_MODE", "disable")
	cfg.DBMaxConns, err = getEnvInt("TD_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("TD_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns <= 0 {
		return nil, fmt.Errorf("TD_DB_MAX_CONNS: значение должно быть > 0")
	}

	// --- Внешнее хранилище ---

	cfg.BlobHost = strings.ToLower(getEnvDefault("TD_BLOBHOST", BlobHostTelegram))
	cfg.RemoteAPITimeout, err = getEnvDuration("TD_REMOTE_API_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TD_REMOTE_API_TIMEOUT: %w", err)
	}
	if cfg.RemoteAPITimeout <= 0 {
		return nil, fmt.Errorf("TD_REMOTE_API_TIMEOUT: значение должно быть > 0")
	}

	switch cfg.BlobHost {
	case BlobHostTelegram:
		if err := loadTelegram(cfg); err != nil {
			return nil, err
		}
	case BlobHostMatrix:
		if err := loadMatrix(cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("TD_BLOBHOST: недопустимое значение %q, допустимые: telegram, matrix", cfg.BlobHost)
	}

	// --- Ссылки и доступ ---

	cfg.APIToken = os.Getenv("TD_API_TOKEN")
	cfg.DownloadSecret = os.Getenv("TD_DOWNLOAD_SECRET")

	cfg.BaseURL = strings.TrimRight(getEnvDefault("TD_BASE_URL", "http://127.0.0.1:8000"), "/")
	if u, parseErr := url.Parse(cfg.BaseURL); parseErr != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("TD_BASE_URL: ожидается абсолютный URL, получено %q", cfg.BaseURL)
	}

	cfg.SignedLinkTTL, err = getEnvDuration("TD_SIGNED_LINK_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("TD_SIGNED_LINK_TTL: %w", err)
	}
	cfg.ShareDefaultTTL, err = getEnvDuration("TD_SHARE_DEFAULT_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("TD_SHARE_DEFAULT_TTL: %w", err)
	}
	if cfg.SignedLinkTTL <= 0 || cfg.ShareDefaultTTL <= 0 {
		return nil, fmt.Errorf("TD_SIGNED_LINK_TTL, TD_SHARE_DEFAULT_TTL: значения должны быть > 0")
	}

	cfg.MaxUploadSize, err = getEnvInt64("TD_MAX_UPLOAD_SIZE", 50<<20)
	if err != nil {
		return nil, fmt.Errorf("TD_MAX_UPLOAD_SIZE: %w", err)
	}

	// --- Кэш путей ---

	cfg.PathCacheSize, err = getEnvInt("TD_PATH_CACHE_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("TD_PATH_CACHE_SIZE: %w", err)
	}
	cfg.PathCacheTTL, err = getEnvDuration("TD_PATH_CACHE_TTL", 50*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("TD_PATH_CACHE_TTL: %w", err)
	}

	// --- NATS ---

	cfg.NATSURL = os.Getenv("TD_NATS_URL")
	cfg.NATSSubjectPrefix = getEnvDefault("TD_NATS_SUBJECT_PREFIX", "tgdrive")

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("TD_DEPHEALTH_GROUP", "tg-drive")
	cfg.DephealthCheckInterval, err = getEnvDuration("TD_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TD_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	return cfg, nil
}

// loadTelegram загружает параметры Telegram Bot API.
func loadTelegram(cfg *Config) error {
	var err error

	cfg.TelegramBotToken, err = getEnvRequired("TD_TELEGRAM_BOT_TOKEN")
	if err != nil {
		return err
	}

	channel, err := getEnvRequired("TD_TELEGRAM_CHANNEL_ID")
	if err != nil {
		return err
	}
	cfg.TelegramChannelID, err = strconv.ParseInt(channel, 10, 64)
	if err != nil {
		return fmt.Errorf("TD_TELEGRAM_CHANNEL_ID: некорректное целое число: %q", channel)
	}

	cfg.TelegramAPIURL = strings.TrimRight(getEnvDefault("TD_TELEGRAM_API_URL", "https://api.telegram.org"), "/")

	cfg.TelegramPollTimeout, err = getEnvDuration("TD_TELEGRAM_POLL_TIMEOUT", 50*time.Second)
	if err != nil {
		return fmt.Errorf("TD_TELEGRAM_POLL_TIMEOUT: %w", err)
	}
	return nil
}

// loadMatrix загружает параметры Matrix-клиента.
func loadMatrix(cfg *Config) error {
	var err error

	if cfg.MatrixHomeserver, err = getEnvRequired("TD_MATRIX_HOMESERVER"); err != nil {
		return err
	}
	if cfg.MatrixUserID, err = getEnvRequired("TD_MATRIX_USER_ID"); err != nil {
		return err
	}
	if cfg.MatrixAccessToken, err = getEnvRequired("TD_MATRIX_ACCESS_TOKEN"); err != nil {
		return err
	}
	if cfg.MatrixRoomID, err = getEnvRequired("TD_MATRIX_ROOM_ID"); err != nil {
		return err
	}
	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL (postgres://...).
// Используется golang-migrate (со схемой pgx5) и topologymetrics.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 — то же, что getEnvInt, для значений int64 (размеры в байтах).
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	if n <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
