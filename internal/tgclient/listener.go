package tgclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/luolu1/tg-drive/internal/domain/model"
)

// defaultRetryDelay — пауза перед повтором getUpdates после ошибки.
const defaultRetryDelay = 3 * time.Second

// Listen получает новые сообщения канала через long polling и передаёт
// каждый найденный файл в handle. Блокирует до отмены ctx.
//
// Смещение getUpdates сдвигается за сообщение только после того, как handle
// его принял: при ошибке Telegram доставит сообщение повторно.
// Смещение хранится только в памяти, после перезапуска повторы
// отсекаются дедупликацией по уникальному идентификатору файла.
func (c *Client) Listen(ctx context.Context, handle func(context.Context, model.RemoteBlob) error) error {
	c.logger.Info("Приём сообщений канала запущен",
		slog.Int64("channel_id", c.opts.ChannelID),
		slog.Duration("poll_timeout", c.opts.PollTimeout),
	)

	offset := 0
	for {
		if ctx.Err() != nil {
			c.logger.Info("Приём сообщений канала остановлен")
			return nil
		}

		updates, err := c.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			delay := c.retryDelay
			var apiErr *tgbotapi.Error
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				delay = time.Duration(apiErr.RetryAfter) * time.Second
			}
			c.logger.Warn("Ошибка getUpdates, повтор",
				slog.String("error", err.Error()),
				slog.Duration("delay", delay),
			)
			c.sleep(ctx, delay)
			continue
		}

		for _, u := range updates {
			if err := c.deliver(ctx, u, handle); err != nil {
				c.logger.Warn("Сообщение канала не принято, повтор после паузы",
					slog.Int("update_id", u.UpdateID),
					slog.String("error", err.Error()),
					slog.Duration("delay", c.retryDelay),
				)
				c.sleep(ctx, c.retryDelay)
				break
			}
			offset = u.UpdateID + 1
		}
	}
}

// deliver передаёт файл из сообщения канала в handle.
// Обновления без файлов и из других чатов пропускаются.
func (c *Client) deliver(ctx context.Context, u tgbotapi.Update, handle func(context.Context, model.RemoteBlob) error) error {
	post := u.ChannelPost
	if post == nil || post.Chat == nil || post.Chat.ID != c.opts.ChannelID {
		return nil
	}
	blob, ok := blobFromMessage(post)
	if !ok {
		return nil
	}

	path, err := c.ResolvePath(ctx, blob.FileID)
	if err != nil {
		c.logger.Warn("Не удалось получить путь файла из канала",
			slog.String("file_id", blob.FileID),
			slog.String("error", err.Error()),
		)
	}
	blob.Path = path

	return handle(ctx, blob)
}

// getUpdates выполняет один запрос long polling.
func (c *Client) getUpdates(ctx context.Context, offset int) ([]tgbotapi.Update, error) {
	// Запрос ограничен временем long polling плюс обычным таймаутом API
	reqCtx, cancel := context.WithTimeout(ctx, c.opts.PollTimeout+c.opts.APITimeout)
	defer cancel()

	updates, err := c.botFor(reqCtx, c.streamClient).GetUpdates(tgbotapi.UpdateConfig{
		Offset:         offset,
		Timeout:        int(c.opts.PollTimeout / time.Second),
		AllowedUpdates: []string{"channel_post"},
	})
	if err != nil {
		return nil, fmt.Errorf("getUpdates: %w", err)
	}
	return updates, nil
}

// sleep ждёт d или отмены ctx.
func (c *Client) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
