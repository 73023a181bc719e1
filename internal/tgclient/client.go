// Пакет tgclient — клиент Telegram Bot API, использующий канал как хранилище файлов.
//
// Методы Bot API (sendDocument, getFile, getUpdates) вызываются через
// telegram-bot-api. Скачивание байтов — прямой GET {api}/file/bot{token}/{path}
// с пробросом Range: библиотека не умеет отдавать тело ответа потоком.
package tgclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/luolu1/tg-drive/internal/domain/model"
)

// Options — параметры клиента Bot API.
type Options struct {
	// APIURL — базовый URL Bot API (https://api.telegram.org или локальный сервер)
	APIURL string
	// Token — токен бота
	Token string
	// ChannelID — идентификатор канала-хранилища
	ChannelID int64
	// APITimeout — таймаут метаданных-запросов (getFile)
	APITimeout time.Duration
	// PollTimeout — таймаут long polling getUpdates
	PollTimeout time.Duration
}

// Client — клиент Telegram Bot API.
type Client struct {
	opts Options
	// bot — шаблон клиента библиотеки; для каждого вызова делается копия
	// с HTTP-клиентом, привязанным к контексту запроса
	bot *tgbotapi.BotAPI
	// apiClient — для коротких запросов с фиксированным таймаутом
	apiClient *http.Client
	// streamClient — без общего таймаута: загрузка и скачивание файлов
	// ограничены только контекстом запроса
	streamClient *http.Client
	// retryDelay — пауза перед повтором getUpdates или необработанного сообщения
	retryDelay time.Duration
	logger     *slog.Logger
}

// New создаёт клиент Bot API. Сетевых запросов не выполняет.
func New(opts Options, logger *slog.Logger) *Client {
	opts.APIURL = strings.TrimRight(opts.APIURL, "/")

	c := &Client{
		opts: opts,
		apiClient: &http.Client{
			Timeout: opts.APITimeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConnsPerHost:   10,
				ResponseHeaderTimeout: opts.APITimeout,
			},
		},
		streamClient: &http.Client{Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 10,
		}},
		retryDelay: defaultRetryDelay,
		logger:     logger.With(slog.String("component", "telegram_client")),
	}

	// NewBotAPI не используется: он вызывает getMe при создании
	c.bot = &tgbotapi.BotAPI{Token: opts.Token, Client: c.apiClient, Buffer: 100}
	c.bot.SetAPIEndpoint(opts.APIURL + "/bot%s/%s")

	return c
}

// Name возвращает имя хранилища для логов и метрик.
func (c *Client) Name() string { return "telegram" }

// HashPrefix — префикс синтетического хеша для файлов, пришедших через канал.
func (c *Client) HashPrefix() string { return "tguid" }

// HealthURL возвращает URL Bot API для мониторинга зависимостей.
func (c *Client) HealthURL() string { return c.opts.APIURL }

// botFor возвращает копию клиента библиотеки, запросы которой выполняются
// через hc в контексте ctx.
func (c *Client) botFor(ctx context.Context, hc *http.Client) *tgbotapi.BotAPI {
	bot := *c.bot
	bot.Client = &contextDoer{ctx: ctx, client: hc, token: c.opts.Token}
	return &bot
}

// Upload отправляет файл в канал как документ и возвращает описание
// созданного объекта. Тело читается потоково, без буферизации в памяти.
//
// Pipeline:
//  1. sendDocument в канал opts.ChannelID (multipart через io.Pipe внутри библиотеки)
//  2. getFile для получения пути скачивания (ошибка не фатальна:
//     путь будет получен повторно при скачивании)
//
// Тип содержимого определяет Telegram по имени файла.
func (c *Client) Upload(ctx context.Context, filename, _ string, body io.Reader) (*model.RemoteBlob, error) {
	// 1. sendDocument
	doc := tgbotapi.NewDocument(c.opts.ChannelID, tgbotapi.FileReader{Name: filename, Reader: body})
	doc.DisableNotification = true

	msg, err := c.botFor(ctx, c.streamClient).Send(doc)
	if err != nil {
		return nil, fmt.Errorf("sendDocument: %w", err)
	}

	blob, ok := blobFromMessage(&msg)
	if !ok {
		return nil, fmt.Errorf("sendDocument: ответ не содержит файла (message_id=%d)", msg.MessageID)
	}
	if msg.Document != nil && msg.Document.FileName == "" {
		blob.Filename = filename
	}

	// 2. getFile
	path, err := c.ResolvePath(ctx, blob.FileID)
	if err != nil {
		c.logger.Warn("Не удалось получить путь файла после загрузки",
			slog.String("file_id", blob.FileID),
			slog.String("error", err.Error()),
		)
	}
	blob.Path = path

	c.logger.Debug("Файл загружен в канал",
		slog.String("filename", blob.Filename),
		slog.String("unique_id", blob.UniqueID),
		slog.String("message_id", blob.MessageID),
	)

	return &blob, nil
}

// ResolvePath получает актуальный путь скачивания файла через getFile.
// Пути Bot API имеют ограниченный срок жизни, поэтому их нужно
// периодически получать заново.
func (c *Client) ResolvePath(ctx context.Context, fileID string) (string, error) {
	f, err := c.botFor(ctx, c.apiClient).GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("getFile: %w", err)
	}
	if f.FilePath == "" {
		return "", fmt.Errorf("getFile: путь файла %s не возвращён", fileID)
	}
	return f.FilePath, nil
}

// DownloadURL формирует URL скачивания по пути файла.
// Локальный Bot API сервер может вернуть абсолютный URL — он используется как есть.
func (c *Client) DownloadURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return fmt.Sprintf("%s/file/bot%s/%s", c.opts.APIURL, c.opts.Token, strings.TrimLeft(path, "/"))
}

// Fetch выполняет streaming-запрос байтов файла.
// Возвращает *http.Response — вызывающий код ОБЯЗАН закрыть resp.Body.
// rangeHeader пробрасывается без изменений (пустая строка — без Range).
func (c *Client) Fetch(ctx context.Context, path, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(path), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса скачивания: %w", redactToken(err, c.opts.Token))
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.streamClient.Do(req) //nolint:gosec // URL формируется из конфигурации Bot API
	if err != nil {
		// Ошибка транспорта содержит URL с токеном бота
		return nil, fmt.Errorf("скачивание файла из Telegram: %w", redactToken(err, c.opts.Token))
	}

	// Не закрываем resp.Body — вызывающий код отвечает за это (streaming)
	return resp, nil
}

// contextDoer привязывает запросы библиотеки к контексту вызова
// и скрывает токен бота в ошибках транспорта.
type contextDoer struct {
	ctx    context.Context
	client *http.Client
	token  string
}

func (d *contextDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.client.Do(req.WithContext(d.ctx))
	if err != nil {
		return nil, redactToken(err, d.token)
	}
	return resp, nil
}

// redactedError скрывает токен бота в тексте ошибки, сохраняя цепочку
// для errors.Is и errors.As.
type redactedError struct {
	err   error
	token string
}

func (e *redactedError) Error() string {
	return strings.ReplaceAll(e.err.Error(), e.token, "***")
}

func (e *redactedError) Unwrap() error { return e.err }

// redactToken оборачивает ошибку, если её текст содержит токен бота.
func redactToken(err error, token string) error {
	if err == nil || token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return &redactedError{err: err, token: token}
}
