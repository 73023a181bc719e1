package model

import "time"

// ShareRecord — отзываемая ссылка общего доступа к файлу.
type ShareRecord struct {
	// ID — идентификатор записи
	ID int64
	// Token — случайный URL-safe токен ссылки (уникален)
	Token string
	// FileID — файл, к которому открыт доступ
	FileID int64
	// ExpiresAt — момент истечения ссылки
	ExpiresAt time.Time
	// Revoked — ссылка отозвана (переход только false → true)
	Revoked bool
	// CreatedAt — время создания
	CreatedAt time.Time
}

// IsActive сообщает, действует ли ссылка в момент now.
// Ссылка активна, если не отозвана и срок строго больше now.
func (s *ShareRecord) IsActive(now time.Time) bool {
	return !s.Revoked && s.ExpiresAt.After(now)
}
