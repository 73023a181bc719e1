// Пакет token — подписанные токены ссылок на скачивание.
//
// Формат токена: base64url(payload) "." base64url(HMAC-SHA256(secret, payload)),
// без padding. payload — ASCII-строка "{file_id}:{expiry_unix}".
// Токен не хранится на сервере: проверка выполняется только по секрету.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidToken — токен повреждён, подделан или подписан другим секретом.
var ErrInvalidToken = errors.New("некорректный токен")

// Claims — содержимое проверенного токена.
type Claims struct {
	// FileID — идентификатор файла
	FileID int64
	// Expiry — момент истечения (unix-секунды)
	Expiry int64
}

// Expired сообщает, истёк ли токен в момент now.
// Токен действителен, пока now <= Expiry (граница включительно).
func (c Claims) Expired(now time.Time) bool {
	return now.Unix() > c.Expiry
}

// Sign формирует токен для файла fileID со сроком expiry (unix-секунды).
func Sign(fileID, expiry int64, secret []byte) string {
	payload := []byte(strconv.FormatInt(fileID, 10) + ":" + strconv.FormatInt(expiry, 10))
	return encode(payload) + "." + encode(mac(payload, secret))
}

// Verify проверяет подпись токена и разбирает payload.
// Срок действия не проверяется: это делает вызывающий код через Claims.Expired.
func Verify(tok string, secret []byte) (Claims, error) {
	payloadPart, sigPart, ok := strings.Cut(tok, ".")
	if !ok || strings.Contains(sigPart, ".") {
		return Claims{}, ErrInvalidToken
	}

	payload, err := decode(payloadPart)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	sig, err := decode(sigPart)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	// Сравнение за постоянное время
	if !hmac.Equal(sig, mac(payload, secret)) {
		return Claims{}, ErrInvalidToken
	}

	idPart, expPart, ok := strings.Cut(string(payload), ":")
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	fileID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	expiry, err := strconv.ParseInt(expPart, 10, 64)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	return Claims{FileID: fileID, Expiry: expiry}, nil
}

func mac(payload, secret []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write(payload)
	return h.Sum(nil)
}

func encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// decode принимает base64url как с padding, так и без него.
// Ненулевые хвостовые биты последнего символа считаются ошибкой:
// у каждого токена ровно одна допустимая запись.
func decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.Strict().DecodeString(strings.TrimRight(s, "="))
}
