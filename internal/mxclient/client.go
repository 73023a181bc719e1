// Пакет mxclient — хранилище файлов в комнате Matrix.
//
// Загрузка — media upload + сообщение m.file в комнату, скачивание — media
// download по mxc URI с пробросом Range, приём новых файлов — /sync
// с обработкой m.room.message (m.file, m.image, m.video, m.audio).
package mxclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/luolu1/tg-drive/internal/domain/model"
)

const (
	// defaultRetryDelay — пауза перед перезапуском /sync или повторной
	// передачей файла в обработчик.
	defaultRetryDelay = 5 * time.Second
	// maxDeliverAttempts — число попыток передать файл в обработчик.
	// Токен /sync сохраняется до обработки событий, повторно homeserver
	// событие не пришлёт.
	maxDeliverAttempts = 5
)

// Options — параметры Matrix-клиента.
type Options struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// RoomID — комната-хранилище
	RoomID string
}

// Client — хранилище файлов в комнате Matrix.
type Client struct {
	cli        *mautrix.Client
	roomID     id.RoomID
	homeserver string
	// streamClient — без общего таймаута, скачивание ограничено контекстом
	streamClient *http.Client
	retryDelay   time.Duration
	logger       *slog.Logger
}

// New создаёт Matrix-клиент. Сетевых запросов не выполняет.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	cli, err := mautrix.NewClient(opts.Homeserver, id.UserID(opts.UserID), opts.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("создание Matrix-клиента: %w", err)
	}

	return &Client{
		cli:          cli,
		roomID:       id.RoomID(opts.RoomID),
		homeserver:   strings.TrimRight(opts.Homeserver, "/"),
		streamClient: &http.Client{Transport: &http.Transport{Proxy: http.ProxyFromEnvironment, MaxIdleConnsPerHost: 10}},
		retryDelay:   defaultRetryDelay,
		logger:       logger.With(slog.String("component", "matrix_client")),
	}, nil
}

// Name возвращает имя хранилища для логов и метрик.
func (c *Client) Name() string { return "matrix" }

// HashPrefix — префикс синтетического хеша для файлов, пришедших через комнату.
func (c *Client) HashPrefix() string { return "mxuid" }

// HealthURL возвращает URL homeserver для мониторинга зависимостей.
func (c *Client) HealthURL() string { return c.homeserver }

// Upload загружает файл в media repository и публикует сообщение m.file в комнату.
// Уникальным идентификатором и дескриптором объекта служит mxc URI.
func (c *Client) Upload(ctx context.Context, filename, contentType string, body io.Reader) (*model.RemoteBlob, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// Длина тела неизвестна: запрос уходит с chunked-кодированием
	counter := &countingReader{r: body}
	uploaded, err := c.cli.UploadMedia(ctx, mautrix.ReqUploadMedia{
		Content:     counter,
		ContentType: contentType,
		FileName:    filename,
	})
	if err != nil {
		return nil, fmt.Errorf("загрузка в media repository: %w", err)
	}

	content := &event.MessageEventContent{
		MsgType:  event.MsgFile,
		Body:     filename,
		FileName: filename,
		URL:      uploaded.ContentURI.CUString(),
		Info: &event.FileInfo{
			MimeType: contentType,
			Size:     int(counter.n),
		},
	}
	sent, err := c.cli.SendMessageEvent(ctx, c.roomID, event.EventMessage, content)
	if err != nil {
		return nil, fmt.Errorf("отправка сообщения в комнату %s: %w", c.roomID, err)
	}

	mxc := uploaded.ContentURI.String()
	return &model.RemoteBlob{
		FileID:    mxc,
		UniqueID:  mxc,
		Path:      mxc,
		MessageID: sent.EventID.String(),
		Filename:  filename,
		Kind:      model.KindDocument,
		MimeType:  contentType,
		Size:      counter.n,
	}, nil
}

// ResolvePath возвращает путь скачивания. mxc URI не истекают,
// поэтому дескриптор и есть путь.
func (c *Client) ResolvePath(_ context.Context, handle string) (string, error) {
	if _, err := id.ParseContentURI(handle); err != nil {
		return "", fmt.Errorf("некорректный mxc URI %q: %w", handle, err)
	}
	return handle, nil
}

// DownloadURL формирует URL media download для mxc URI.
func (c *Client) DownloadURL(path string) (string, error) {
	uri, err := id.ParseContentURI(path)
	if err != nil {
		return "", fmt.Errorf("некорректный mxc URI %q: %w", path, err)
	}
	return fmt.Sprintf("%s/_matrix/media/v3/download/%s/%s",
		c.homeserver, url.PathEscape(uri.Homeserver), url.PathEscape(uri.FileID)), nil
}

// Fetch выполняет streaming-запрос байтов файла.
// Возвращает *http.Response — вызывающий код ОБЯЗАН закрыть resp.Body.
func (c *Client) Fetch(ctx context.Context, path, rangeHeader string) (*http.Response, error) {
	downloadURL, err := c.DownloadURL(path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса скачивания: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cli.AccessToken)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.streamClient.Do(req) //nolint:gosec // URL homeserver из конфигурации
	if err != nil {
		return nil, fmt.Errorf("скачивание файла из Matrix: %w", err)
	}
	return resp, nil
}

// Listen синхронизируется с homeserver и передаёт файлы, опубликованные
// в комнате-хранилище, в handle. Блокирует до отмены ctx.
// При ошибке /sync перезапускается после паузы. Если handle вернул ошибку,
// передача повторяется до maxDeliverAttempts раз.
func (c *Client) Listen(ctx context.Context, handle func(context.Context, model.RemoteBlob) error) error {
	syncer, ok := c.cli.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return errors.New("неподдерживаемый тип Matrix syncer")
	}
	syncer.OnEventType(event.EventMessage, func(ctx context.Context, evt *event.Event) {
		if evt.RoomID != c.roomID {
			return
		}
		blob, ok := blobFromEvent(evt)
		if !ok {
			return
		}
		c.deliver(ctx, blob, handle)
	})

	c.logger.Info("Приём сообщений комнаты запущен", slog.String("room_id", c.roomID.String()))

	for {
		err := c.cli.SyncWithContext(ctx)
		if ctx.Err() != nil {
			c.logger.Info("Приём сообщений комнаты остановлен")
			return nil
		}
		c.logger.Warn("Ошибка Matrix /sync, повтор",
			slog.Any("error", err),
			slog.Duration("delay", c.retryDelay),
		)
		c.sleep(ctx, c.retryDelay)
	}
}

// deliver передаёт файл в handle, повторяя попытку после паузы при ошибке.
func (c *Client) deliver(ctx context.Context, blob model.RemoteBlob, handle func(context.Context, model.RemoteBlob) error) {
	for attempt := 1; ; attempt++ {
		err := handle(ctx, blob)
		if err == nil {
			return
		}
		if attempt >= maxDeliverAttempts || ctx.Err() != nil {
			c.logger.Error("Файл из комнаты не принят",
				slog.String("event_id", blob.MessageID),
				slog.String("mxc", blob.FileID),
				slog.Int("attempts", attempt),
				slog.String("error", err.Error()),
			)
			return
		}
		c.logger.Warn("Файл из комнаты не принят, повтор",
			slog.String("event_id", blob.MessageID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		c.sleep(ctx, c.retryDelay)
	}
}

// sleep ждёт d или отмены ctx.
func (c *Client) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// blobFromEvent извлекает описание файла из события m.room.message.
// Зашифрованные вложения и текстовые сообщения пропускаются.
func blobFromEvent(evt *event.Event) (model.RemoteBlob, bool) {
	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok || content.URL == "" {
		return model.RemoteBlob{}, false
	}

	var kind model.Kind
	switch content.MsgType {
	case event.MsgFile:
		kind = model.KindDocument
	case event.MsgImage:
		kind = model.KindPhoto
	case event.MsgVideo:
		kind = model.KindVideo
	case event.MsgAudio:
		kind = model.KindAudio
	default:
		return model.RemoteBlob{}, false
	}

	uri, err := content.URL.Parse()
	if err != nil {
		return model.RemoteBlob{}, false
	}
	mxc := uri.String()

	name := content.FileName
	if name == "" {
		name = content.Body
	}
	if name == "" {
		name = string(kind) + "_" + strings.TrimPrefix(evt.ID.String(), "$")
	}

	blob := model.RemoteBlob{
		FileID:    mxc,
		UniqueID:  mxc,
		Path:      mxc,
		MessageID: evt.ID.String(),
		Filename:  name,
		Kind:      kind,
	}
	if content.Info != nil {
		blob.MimeType = content.Info.MimeType
		blob.Size = int64(content.Info.Size)
	}
	return blob, true
}

// countingReader считает прочитанные байты.
type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}
