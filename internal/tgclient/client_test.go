package tgclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/luolu1/tg-drive/internal/domain/model"
)

const testToken = "123:secret"

// newMockBotAPI создаёт тестовый сервер, имитирующий Bot API.
// handler получает имя метода (или "file/<path>" для скачивания).
func newMockBotAPI(t *testing.T, handler func(method string, w http.ResponseWriter, r *http.Request)) (*httptest.Server, *Client) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/bot"+testToken+"/"):
			handler(strings.TrimPrefix(r.URL.Path, "/bot"+testToken+"/"), w, r)
		case strings.HasPrefix(r.URL.Path, "/file/bot"+testToken+"/"):
			handler("file/"+strings.TrimPrefix(r.URL.Path, "/file/bot"+testToken+"/"), w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	client := New(Options{
		APIURL:      srv.URL + "/",
		Token:       testToken,
		ChannelID:   -100500,
		APITimeout:  5 * time.Second,
		PollTimeout: time.Second,
	}, slog.Default())

	return srv, client
}

func TestUpload_StreamsDocument(t *testing.T) {
	_, client := newMockBotAPI(t, func(method string, w http.ResponseWriter, r *http.Request) {
		switch method {
		case "sendDocument":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("ParseMultipartForm: %v", err)
			}
			if got := r.FormValue("chat_id"); got != "-100500" {
				t.Errorf("chat_id = %q, ожидался -100500", got)
			}
			if got := r.FormValue("disable_notification"); got != "true" {
				t.Errorf("disable_notification = %q, ожидался true", got)
			}
			f, hdr, err := r.FormFile("document")
			if err != nil {
				t.Errorf("FormFile: %v", err)
				return
			}
			data, _ := io.ReadAll(f)
			if string(data) != "hello world" {
				t.Errorf("содержимое = %q", data)
			}
			if hdr.Filename != `отчёт "2024".txt` {
				t.Errorf("filename = %q", hdr.Filename)
			}
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":77,"chat":{"id":-100500},
				"document":{"file_id":"FID","file_unique_id":"UID","file_size":11,"mime_type":"text/plain"}}}`))
		case "getFile":
			if got := r.FormValue("file_id"); got != "FID" {
				t.Errorf("getFile file_id = %q", got)
			}
			_, _ = w.Write([]byte(`{"ok":true,"result":{"file_id":"FID","file_unique_id":"UID","file_path":"documents/file_1.txt"}}`))
		default:
			t.Errorf("неожиданный метод %s", method)
		}
	})

	blob, err := client.Upload(context.Background(), `отчёт "2024".txt`, "text/plain", strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("Upload() ошибка: %v", err)
	}

	want := model.RemoteBlob{
		FileID: "FID", UniqueID: "UID", Path: "documents/file_1.txt", MessageID: "77",
		Filename: `отчёт "2024".txt`, Kind: model.KindDocument, MimeType: "text/plain", Size: 11,
	}
	if *blob != want {
		t.Errorf("Upload() = %+v, ожидалось %+v", *blob, want)
	}
}

func TestUpload_GetFileFailureIsNotFatal(t *testing.T) {
	_, client := newMockBotAPI(t, func(method string, w http.ResponseWriter, _ *http.Request) {
		switch method {
		case "sendDocument":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":-100500},
				"document":{"file_id":"F","file_unique_id":"U","file_name":"big.iso"}}}`))
		case "getFile":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: file is too big"}`))
		}
	})

	blob, err := client.Upload(context.Background(), "big.iso", "", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Upload() ошибка: %v", err)
	}
	if blob.Path != "" || blob.Filename != "big.iso" {
		t.Errorf("Upload() = %+v, ожидался пустой путь", blob)
	}
}

func TestUpload_APIError(t *testing.T) {
	_, client := newMockBotAPI(t, func(_ string, w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot is not a member of the channel chat"}`))
	})

	_, err := client.Upload(context.Background(), "a.txt", "", strings.NewReader("data"))
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) || !strings.Contains(apiErr.Message, "bot is not a member") {
		t.Fatalf("Upload() ошибка = %v, ожидалась ошибка Bot API", err)
	}
}

// limitedReader отдаёт data, затем ошибку лимита тела запроса.
type limitedReader struct {
	data io.Reader
}

func (r *limitedReader) Read(p []byte) (int, error) {
	n, err := r.data.Read(p)
	if err == io.EOF {
		return n, &http.MaxBytesError{Limit: 4}
	}
	return n, err
}

func TestUpload_KeepsBodyErrorChain(t *testing.T) {
	_, client := newMockBotAPI(t, func(_ string, w http.ResponseWriter, r *http.Request) {
		if _, err := io.Copy(io.Discard, r.Body); err != nil {
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":-100500},"document":{"file_id":"F","file_unique_id":"U"}}}`))
	})

	_, err := client.Upload(context.Background(), "a.txt", "", &limitedReader{data: strings.NewReader("data")})
	if err == nil {
		t.Fatal("Upload() с превышением лимита должен вернуть ошибку")
	}
	var maxErr *http.MaxBytesError
	if !errors.As(err, &maxErr) {
		t.Errorf("ошибка %v не содержит *http.MaxBytesError", err)
	}
	if strings.Contains(err.Error(), "secret") {
		t.Errorf("ошибка содержит токен бота: %v", err)
	}
}

func TestRedactToken_KeepsChain(t *testing.T) {
	cause := &http.MaxBytesError{Limit: 10}
	err := redactToken(&url.Error{Op: "Post", URL: "https://api.telegram.org/bot999:very-secret/sendDocument", Err: cause}, "999:very-secret")

	if strings.Contains(err.Error(), "very-secret") {
		t.Errorf("ошибка содержит токен бота: %v", err)
	}
	if !strings.Contains(err.Error(), "/bot***/sendDocument") {
		t.Errorf("Error() = %q", err.Error())
	}
	var maxErr *http.MaxBytesError
	if !errors.As(err, &maxErr) || maxErr != cause {
		t.Error("errors.As не находит исходную ошибку")
	}
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		t.Error("errors.As не находит *url.Error")
	}

	plain := errors.New("connection refused")
	if redactToken(plain, "999:very-secret") != plain {
		t.Error("ошибка без токена должна возвращаться без обёртки")
	}
}

func TestFetch_ForwardsRange(t *testing.T) {
	_, client := newMockBotAPI(t, func(method string, w http.ResponseWriter, r *http.Request) {
		if method != "file/videos/file_2.mp4" {
			t.Errorf("путь скачивания = %q", method)
		}
		if got := r.Header.Get("Range"); got != "bytes=0-3" {
			t.Errorf("Range = %q, ожидался bytes=0-3", got)
		}
		w.Header().Set("Content-Range", "bytes 0-3/10")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte("0123"))
	})

	resp, err := client.Fetch(context.Background(), "videos/file_2.mp4", "bytes=0-3")
	if err != nil {
		t.Fatalf("Fetch() ошибка: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		t.Errorf("StatusCode = %d, ожидался 206", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "0123" {
		t.Errorf("Body = %q", body)
	}
}

func TestDownloadURL(t *testing.T) {
	client := New(Options{APIURL: "https://api.telegram.org", Token: "T"}, slog.Default())

	if got := client.DownloadURL("photos/file_1.jpg"); got != "https://api.telegram.org/file/botT/photos/file_1.jpg" {
		t.Errorf("DownloadURL(relative) = %q", got)
	}
	abs := "http://local-bot-api:8081/file/botT/documents/a.bin"
	if got := client.DownloadURL(abs); got != abs {
		t.Errorf("DownloadURL(absolute) = %q, ожидался без изменений", got)
	}
}

func TestFetch_RedactsToken(t *testing.T) {
	client := New(Options{APIURL: "http://127.0.0.1:1", Token: "999:very-secret", APITimeout: time.Second}, slog.Default())

	_, err := client.Fetch(context.Background(), "documents/x", "")
	if err == nil {
		t.Fatal("Fetch() к недоступному адресу должен вернуть ошибку")
	}
	if strings.Contains(err.Error(), "very-secret") {
		t.Errorf("ошибка содержит токен бота: %v", err)
	}
}

func TestUpload_RedactsToken(t *testing.T) {
	client := New(Options{APIURL: "http://127.0.0.1:1", Token: "999:very-secret", APITimeout: time.Second}, slog.Default())

	_, err := client.Upload(context.Background(), "a.txt", "", strings.NewReader("x"))
	if err == nil {
		t.Fatal("Upload() к недоступному адресу должен вернуть ошибку")
	}
	if strings.Contains(err.Error(), "very-secret") {
		t.Errorf("ошибка содержит токен бота: %v", err)
	}
}

func TestResolvePath_RespectsContext(t *testing.T) {
	release := make(chan struct{})
	_, client := newMockBotAPI(t, func(_ string, _ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.ResolvePath(ctx, "F")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ResolvePath() ошибка = %v, ожидалось превышение срока контекста", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("ResolvePath() не прервался по контексту: %v", time.Since(start))
	}
}

func TestListen_DeliversChannelFiles(t *testing.T) {
	var calls atomic.Int32
	_, client := newMockBotAPI(t, func(method string, w http.ResponseWriter, r *http.Request) {
		switch method {
		case "getUpdates":
			if calls.Add(1) > 1 {
				if got := r.FormValue("offset"); got != "13" {
					t.Errorf("offset = %q, ожидался 13", got)
				}
				_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
				return
			}
			_, _ = w.Write([]byte(`{"ok":true,"result":[
				{"update_id":10,"channel_post":{"message_id":5,"chat":{"id":-100500},
					"photo":[{"file_id":"small","file_unique_id":"us"},{"file_id":"big","file_unique_id":"ub","file_size":2048}]}},
				{"update_id":11,"channel_post":{"message_id":6,"chat":{"id":-100500},"text":"без файла"}},
				{"update_id":12,"channel_post":{"message_id":7,"chat":{"id":-999},
					"document":{"file_id":"foreign","file_unique_id":"uf"}}},
				{"update_id":12,"channel_post":{"message_id":8,"chat":{"id":-100500},
					"audio":{"file_id":"aud","file_unique_id":"ua","mime_type":"audio/mpeg"}}}
			]}`))
		case "getFile":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"file_path":"path/` + r.FormValue("file_id") + `"}}`))
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan model.RemoteBlob, 4)
	done := make(chan error, 1)
	go func() {
		done <- client.Listen(ctx, func(_ context.Context, b model.RemoteBlob) error {
			got <- b
			return nil
		})
	}()

	want := []model.RemoteBlob{
		{FileID: "big", UniqueID: "ub", Path: "path/big", MessageID: "5", Filename: "photo_5.jpg",
			Kind: model.KindPhoto, MimeType: "image/jpeg", Size: 2048},
		{FileID: "aud", UniqueID: "ua", Path: "path/aud", MessageID: "8", Filename: "audio_8.mp3",
			Kind: model.KindAudio, MimeType: "audio/mpeg"},
	}
	for i, w := range want {
		select {
		case b := <-got:
			if b != w {
				t.Errorf("файл %d = %+v, ожидалось %+v", i, b, w)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("файл %d не получен", i)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Listen() ошибка: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Listen() не завершился после отмены контекста")
	}
}

func TestListen_RedeliversRejectedPost(t *testing.T) {
	var (
		mu      sync.Mutex
		offsets []string
	)
	_, client := newMockBotAPI(t, func(method string, w http.ResponseWriter, r *http.Request) {
		if method == "getFile" {
			_, _ = w.Write([]byte(`{"ok":true,"result":{"file_path":"p"}}`))
			return
		}
		mu.Lock()
		offsets = append(offsets, r.FormValue("offset"))
		call := len(offsets)
		mu.Unlock()

		switch call {
		case 1:
			_, _ = w.Write([]byte(`{"ok":true,"result":[
				{"update_id":30,"channel_post":{"message_id":1,"chat":{"id":-100500},"document":{"file_id":"a","file_unique_id":"u30"}}},
				{"update_id":31,"channel_post":{"message_id":2,"chat":{"id":-100500},"document":{"file_id":"b","file_unique_id":"u31"}}},
				{"update_id":32,"channel_post":{"message_id":3,"chat":{"id":-100500},"document":{"file_id":"c","file_unique_id":"u32"}}}
			]}`))
		case 2:
			_, _ = w.Write([]byte(`{"ok":true,"result":[
				{"update_id":31,"channel_post":{"message_id":2,"chat":{"id":-100500},"document":{"file_id":"b","file_unique_id":"u31"}}},
				{"update_id":32,"channel_post":{"message_id":3,"chat":{"id":-100500},"document":{"file_id":"c","file_unique_id":"u32"}}}
			]}`))
		default:
			time.Sleep(10 * time.Millisecond)
			_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
		}
	})
	client.retryDelay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		handled []string
		failed  bool
	)
	finished := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- client.Listen(ctx, func(_ context.Context, b model.RemoteBlob) error {
			handled = append(handled, b.UniqueID)
			if b.UniqueID == "u31" && !failed {
				failed = true
				return errors.New("база данных недоступна")
			}
			if b.UniqueID == "u32" {
				close(finished)
			}
			return nil
		})
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("сообщения не доставлены повторно")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Listen() не завершился после отмены контекста")
	}

	if strings.Join(handled, ",") != "u30,u31,u31,u32" {
		t.Errorf("обработаны %v, ожидались [u30 u31 u31 u32]", handled)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(offsets) < 2 || offsets[0] != "" || offsets[1] != "31" {
		t.Errorf("offset запросов = %q, второй должен быть 31", offsets)
	}
	if len(offsets) >= 3 && offsets[2] != "33" {
		t.Errorf("offset после обработки = %q, ожидался 33", offsets[2])
	}
}

func TestBlobFromMessage_DefaultNames(t *testing.T) {
	tests := []struct {
		name string
		msg  tgbotapi.Message
		want string
		kind model.Kind
	}{
		{"документ без имени", tgbotapi.Message{MessageID: 1, Document: &tgbotapi.Document{FileID: "a"}}, "document_1", model.KindDocument},
		{"документ с именем", tgbotapi.Message{MessageID: 1, Document: &tgbotapi.Document{FileName: "a.pdf"}}, "a.pdf", model.KindDocument},
		{"видео без имени", tgbotapi.Message{MessageID: 2, Video: &tgbotapi.Video{}}, "video_2.mp4", model.KindVideo},
		{"видео с именем", tgbotapi.Message{MessageID: 2, Video: &tgbotapi.Video{FileName: "clip.mov"}}, "clip.mov", model.KindVideo},
		{"аудио", tgbotapi.Message{MessageID: 3, Audio: &tgbotapi.Audio{}}, "audio_3.mp3", model.KindAudio},
		{"фото", tgbotapi.Message{MessageID: 4, Photo: []tgbotapi.PhotoSize{{FileID: "s"}, {FileID: "l", FileSize: 9}}}, "photo_4.jpg", model.KindPhoto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := blobFromMessage(&tt.msg)
			if !ok {
				t.Fatal("blobFromMessage() = false")
			}
			if b.Filename != tt.want || b.Kind != tt.kind {
				t.Errorf("Filename, Kind = %q, %q; ожидалось %q, %q", b.Filename, b.Kind, tt.want, tt.kind)
			}
		})
	}

	if _, ok := blobFromMessage(&tgbotapi.Message{MessageID: 9}); ok {
		t.Error("сообщение без файла не должно давать RemoteBlob")
	}
}
