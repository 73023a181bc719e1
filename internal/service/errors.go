// Пакет service — бизнес-логика tg-drive: приём файлов, share-ссылки,
// подписанные ссылки и потоковая отдача байтов из внешнего хранилища.
package service

import "errors"

// Ошибки сервисного слоя.
// Для клиента NotFound, Expired и InvalidToken неразличимы (404),
// различие сохраняется только в логах.
var (
	// ErrNotFound — файл или ссылка не найдены.
	ErrNotFound = errors.New("не найдено")
	// ErrExpired — ссылка отозвана или срок её действия истёк.
	ErrExpired = errors.New("срок действия ссылки истёк")
	// ErrUpstream — внешнее хранилище отклонило запрос.
	ErrUpstream = errors.New("ошибка внешнего хранилища")
	// ErrUpstreamUnavailable — внешнее хранилище не ответило (сеть, таймаут).
	ErrUpstreamUnavailable = errors.New("внешнее хранилище недоступно")
	// ErrLinksDisabled — секрет подписи не задан, подписанные ссылки отключены.
	ErrLinksDisabled = errors.New("подписанные ссылки отключены")
	// ErrValidation — некорректные входные данные.
	ErrValidation = errors.New("некорректные данные")
)
