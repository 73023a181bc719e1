// Пакет model — доменные модели tg-drive.
// FileDescriptor — маппинг таблицы files, ShareRecord — таблицы shares.
package model

import "time"

// Kind — категория файла, определённая при загрузке во внешнее хранилище.
type Kind string

// Допустимые категории файлов.
const (
	KindDocument Kind = "document"
	KindPhoto    Kind = "photo"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
)

// ParseKind проверяет строковое значение категории.
// Возвращает (категория, true) для допустимых значений.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindDocument, KindPhoto, KindVideo, KindAudio:
		return k, true
	}
	return "", false
}

// FileDescriptor — запись каталога о файле, хранящемся во внешнем канале.
// Сами байты в БД не хранятся: только ссылки на удалённый объект.
type FileDescriptor struct {
	// ID — идентификатор записи (назначается БД, не переиспользуется)
	ID int64
	// Filename — отображаемое имя файла
	Filename string
	// Kind — категория: document, photo, video, audio
	Kind Kind
	// ContentHash — SHA-256 содержимого (hex) либо синтетический ключ
	// вида "<prefix>:<remote_unique_id>" для файлов, пришедших через listener
	ContentHash string
	// RemoteFileID — дескриптор файла во внешнем хранилище (для повторного получения пути)
	RemoteFileID string
	// RemoteUniqueID — стабильный уникальный идентификатор объекта во внешнем хранилище;
	// ключ дедупликации
	RemoteUniqueID string
	// RemotePath — путь для скачивания на момент загрузки (может устареть)
	RemotePath string
	// RemoteMessageID — идентификатор сообщения в канале (для аудита)
	RemoteMessageID string
	// MimeType — MIME-тип, сообщённый внешним хранилищем (может быть пустым)
	MimeType string
	// Size — размер в байтах, если известен
	Size *int64
	// CreatedAt — время создания записи
	CreatedAt time.Time
}

// FileFilter — фильтры выборки каталога.
type FileFilter struct {
	// Kind — фильтр по категории (nil — без фильтра)
	Kind *Kind
	// NameContains — подстрока имени файла без учёта регистра (пустая — без фильтра)
	NameContains string
}

// RemoteBlob — описание объекта во внешнем хранилище: результат прямой загрузки
// или событие о новом сообщении в канале.
type RemoteBlob struct {
	FileID    string
	UniqueID  string
	Path      string
	MessageID string
	Filename  string
	Kind      Kind
	MimeType  string
	Size      int64
}
