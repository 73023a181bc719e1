package tgclient

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/luolu1/tg-drive/internal/domain/model"
)

// attachment — общие поля Document, PhotoSize, Video и Audio.
type attachment struct {
	fileID   string
	uniqueID string
	name     string
	mimeType string
	size     int
}

// blobFromMessage извлекает описание файла из сообщения канала.
// Для фото берётся самый большой размер. Сообщения без файлов
// возвращают false.
func blobFromMessage(m *tgbotapi.Message) (model.RemoteBlob, bool) {
	msgID := strconv.Itoa(m.MessageID)

	var (
		a           attachment
		kind        model.Kind
		defaultName string
	)
	switch {
	case m.Document != nil:
		d := m.Document
		a = attachment{d.FileID, d.FileUniqueID, d.FileName, d.MimeType, d.FileSize}
		kind, defaultName = model.KindDocument, "document_"+msgID
	case len(m.Photo) > 0:
		// У фото нет имени файла: всегда используется сгенерированное
		p := m.Photo[len(m.Photo)-1]
		a = attachment{p.FileID, p.FileUniqueID, "", "image/jpeg", p.FileSize}
		kind, defaultName = model.KindPhoto, "photo_"+msgID+".jpg"
	case m.Video != nil:
		v := m.Video
		a = attachment{v.FileID, v.FileUniqueID, v.FileName, v.MimeType, v.FileSize}
		kind, defaultName = model.KindVideo, "video_"+msgID+".mp4"
	case m.Audio != nil:
		au := m.Audio
		a = attachment{au.FileID, au.FileUniqueID, au.FileName, au.MimeType, au.FileSize}
		kind, defaultName = model.KindAudio, "audio_"+msgID+".mp3"
	default:
		return model.RemoteBlob{}, false
	}

	name := a.name
	if name == "" {
		name = defaultName
	}

	return model.RemoteBlob{
		FileID:    a.fileID,
		UniqueID:  a.uniqueID,
		MessageID: msgID,
		Filename:  name,
		Kind:      kind,
		MimeType:  a.mimeType,
		Size:      int64(a.size),
	}, true
}
