package token

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("test-download-secret")

func TestSignVerify_RoundTrip(t *testing.T) {
	tok := Sign(42, 1700000000, testSecret)

	if strings.Count(tok, ".") != 1 {
		t.Fatalf("токен %q должен содержать ровно одну точку", tok)
	}
	if strings.Contains(tok, "=") {
		t.Errorf("токен %q не должен содержать padding", tok)
	}

	claims, err := Verify(tok, testSecret)
	if err != nil {
		t.Fatalf("Verify() ошибка: %v", err)
	}
	if claims.FileID != 42 || claims.Expiry != 1700000000 {
		t.Errorf("Claims = %+v, ожидалось {42 1700000000}", claims)
	}
}

func TestSign_PayloadFormat(t *testing.T) {
	tok := Sign(7, 123, testSecret)
	payloadPart, _, _ := strings.Cut(tok, ".")

	payload, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		t.Fatalf("payload не декодируется: %v", err)
	}
	if string(payload) != "7:123" {
		t.Errorf("payload = %q, ожидался %q", payload, "7:123")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	tok := Sign(1, time.Now().Add(time.Hour).Unix(), testSecret)

	if _, err := Verify(tok, []byte("другой секрет")); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() с чужим секретом: ошибка = %v, ожидалась ErrInvalidToken", err)
	}
}

func TestVerify_AcceptsPadding(t *testing.T) {
	// 5 байт payload и 32 байта подписи кодируются с padding
	payload := []byte("10:20")
	sig := mac(payload, testSecret)
	tok := base64.URLEncoding.EncodeToString(payload) + "." + base64.URLEncoding.EncodeToString(sig)

	claims, err := Verify(tok, testSecret)
	if err != nil {
		t.Fatalf("Verify() токена с padding: %v", err)
	}
	if claims.FileID != 10 || claims.Expiry != 20 {
		t.Errorf("Claims = %+v, ожидалось {10 20}", claims)
	}
}

func TestVerify_TamperedSegments(t *testing.T) {
	tok := Sign(5, 999, testSecret)

	// Любой изменённый бит любого символа (кроме разделителя) делает токен
	// недействительным, включая хвостовые биты последнего символа сегмента
	for i := range len(tok) {
		if tok[i] == '.' {
			continue
		}
		for bit := range 8 {
			b := []byte(tok)
			b[i] ^= 1 << bit
			if _, err := Verify(string(b), testSecret); err == nil {
				t.Errorf("изменённый токен принят: позиция %d, бит %d (%q)", i, bit, b)
			}
		}
	}
}

func TestVerify_NonCanonicalTail(t *testing.T) {
	tok := Sign(7, 1700000000, testSecret)
	last := tok[len(tok)-1]

	// Младший бит последнего символа подписи лежит вне 32 байт HMAC
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	alt := alphabet[strings.IndexByte(alphabet, last)^1]
	if _, err := Verify(tok[:len(tok)-1]+string(alt), testSecret); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("токен с изменённым хвостом: err = %v, ожидался ErrInvalidToken", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	signed := func(payload string) string {
		return encode([]byte(payload)) + "." + encode(mac([]byte(payload), testSecret))
	}

	tests := []struct {
		name string
		tok  string
	}{
		{"пустая строка", ""},
		{"без точки", "abcdef"},
		{"две точки", "a.b.c"},
		{"не base64 payload", "!!!." + encode([]byte("x"))},
		{"не base64 подпись", encode([]byte("1:2")) + ".$$$"},
		{"payload без двоеточия", signed("12345")},
		{"payload не число", signed("abc:123")},
		{"срок не число", signed("1:soon")},
		{"лишнее поле", signed("1:2:3")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Verify(tt.tok, testSecret); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify(%q) ошибка = %v, ожидалась ErrInvalidToken", tt.tok, err)
			}
		})
	}
}

func TestClaims_Expired(t *testing.T) {
	now := time.Unix(1000, 0)

	if (Claims{Expiry: 1000}).Expired(now) {
		t.Error("токен с Expiry == now должен быть действителен")
	}
	if !(Claims{Expiry: 999}).Expired(now) {
		t.Error("токен с Expiry < now должен быть истёкшим")
	}
}
