// tdlink — офлайн-утилита для подписанных ссылок tg-drive.
//
//	tdlink sign --file-id 42 [--hours 24] [--base-url https://drive.example.com]
//	tdlink verify TOKEN
//
// Секрет берётся из --secret или TD_DOWNLOAD_SECRET.
// К базе данных и внешнему хранилищу утилита не обращается.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/luolu1/tg-drive/internal/domain/token"
)

// maxHours — наибольший срок ссылки в часах (100 лет).
const maxHours = 100 * 365 * 24

const usage = `Использование:
  tdlink sign --file-id N [--hours 24] [--base-url URL] [--secret S]
  tdlink verify [--secret S] TOKEN
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Getenv, time.Now()); err != nil {
		fmt.Fprintln(os.Stderr, "tdlink:", err)
		os.Exit(1)
	}
}

// run выполняет подкоманду. getenv и now подменяются в тестах.
func run(args []string, out io.Writer, getenv func(string) string, now time.Time) error {
	if len(args) == 0 {
		return errors.New("не указана подкоманда\n" + usage)
	}

	switch args[0] {
	case "sign":
		return runSign(args[1:], out, getenv, now)
	case "verify":
		return runVerify(args[1:], out, getenv, now)
	default:
		return fmt.Errorf("неизвестная подкоманда %q\n%s", args[0], usage)
	}
}

func runSign(args []string, out io.Writer, getenv func(string) string, now time.Time) error {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fileID := fs.Int64("file-id", 0, "идентификатор файла")
	hours := fs.Int("hours", 24, "срок действия ссылки в часах")
	baseURL := fs.String("base-url", getenv("TD_BASE_URL"), "префикс ссылки (TD_BASE_URL)")
	secret := fs.String("secret", "", "HMAC-секрет (по умолчанию TD_DOWNLOAD_SECRET)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *fileID <= 0 {
		return errors.New("--file-id должен быть положительным")
	}
	if *hours <= 0 || *hours > maxHours {
		return fmt.Errorf("--hours должен быть от 1 до %d", maxHours)
	}
	key, err := resolveSecret(*secret, getenv)
	if err != nil {
		return err
	}

	expiry := now.Add(time.Duration(*hours) * time.Hour).Unix()
	tok := token.Sign(*fileID, expiry, key)

	if *baseURL == "" {
		_, err = fmt.Fprintln(out, tok)
		return err
	}
	_, err = fmt.Fprintf(out, "%s/d/%s\n", strings.TrimRight(*baseURL, "/"), tok)
	return err
}

func runVerify(args []string, out io.Writer, getenv func(string) string, now time.Time) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	secret := fs.String("secret", "", "HMAC-секрет (по умолчанию TD_DOWNLOAD_SECRET)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("ожидается ровно один токен\n" + usage)
	}
	key, err := resolveSecret(*secret, getenv)
	if err != nil {
		return err
	}

	// Допускается полная ссылка вида https://host/d/TOKEN
	tok := fs.Arg(0)
	if i := strings.LastIndex(tok, "/d/"); i >= 0 {
		tok = tok[i+len("/d/"):]
	}

	claims, err := token.Verify(tok, key)
	if err != nil {
		return err
	}

	state := "действителен"
	if claims.Expired(now) {
		state = "истёк"
	}
	_, err = fmt.Fprintf(out, "file_id=%d expires=%s status=%s\n",
		claims.FileID,
		time.Unix(claims.Expiry, 0).UTC().Format(time.RFC3339),
		state,
	)
	return err
}

// resolveSecret возвращает секрет из флага или переменной окружения.
func resolveSecret(flagValue string, getenv func(string) string) ([]byte, error) {
	s := flagValue
	if s == "" {
		s = getenv("TD_DOWNLOAD_SECRET")
	}
	if s == "" {
		return nil, errors.New("секрет не задан: укажите --secret или TD_DOWNLOAD_SECRET")
	}
	return []byte(s), nil
}
