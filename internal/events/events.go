// Пакет events — публикация событий жизненного цикла файлов и ссылок в NATS.
// Публикация необязательна: без TD_NATS_URL используется Nop.
// Ошибки публикации логируются и не влияют на основную операцию.
package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Типы событий (суффиксы subject).
const (
	FileIngested = "files.ingested"
	FileDeleted  = "files.deleted"
	ShareCreated = "shares.created"
	ShareRevoked = "shares.revoked"
)

var publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "td_events_published_total",
	Help: "Количество опубликованных событий (по типу и результату).",
}, []string{"type", "status"})

// Event — событие жизненного цикла.
type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	FileID     int64     `json:"file_id"`
	ShareID    int64     `json:"share_id,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	// Source — путь поступления файла: upload или listener
	Source string `json:"source,omitempty"`
}

// Publisher — получатель событий.
type Publisher interface {
	Publish(e Event)
}

// Nop — Publisher, отбрасывающий события.
type Nop struct{}

// Publish ничего не делает.
func (Nop) Publish(Event) {}

// msgPublisher — часть *nats.Conn, используемая публикатором.
type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher публикует события в subject "<prefix>.<type>".
// Каждое сообщение получает уникальный Nats-Msg-Id для дедупликации в JetStream.
type NATSPublisher struct {
	conn   msgPublisher
	prefix string
	logger *slog.Logger
}

// NewNATSPublisher создаёт публикатор поверх соединения NATS.
func NewNATSPublisher(conn msgPublisher, prefix string, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:   conn,
		prefix: prefix,
		logger: logger.With(slog.String("component", "events")),
	}
}

// Publish сериализует событие в JSON и публикует его.
func (p *NATSPublisher) Publish(e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		publishedTotal.WithLabelValues(e.Type, "error").Inc()
		p.logger.Error("Ошибка сериализации события", slog.String("type", e.Type), slog.String("error", err.Error()))
		return
	}

	msg := &nats.Msg{
		Subject: p.prefix + "." + e.Type,
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())

	if err := p.conn.PublishMsg(msg); err != nil {
		publishedTotal.WithLabelValues(e.Type, "error").Inc()
		p.logger.Warn("Ошибка публикации события",
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()),
		)
		return
	}
	publishedTotal.WithLabelValues(e.Type, "ok").Inc()
}

// Connect устанавливает соединение с NATS с бесконечным переподключением.
func Connect(url, name string, logger *slog.Logger) (*nats.Conn, error) {
	log := logger.With(slog.String("component", "nats"))
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("Соединение с NATS потеряно", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("Соединение с NATS восстановлено", slog.String("url", nc.ConnectedUrl()))
		}),
	)
}
