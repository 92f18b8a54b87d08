package delivery

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Stdout prints lines locally, marked with "! ", when no relay is configured.
type Stdout struct {
	w io.Writer
}

// NewStdout creates a Stdout sink writing to w.
func NewStdout(w io.Writer) *Stdout {
	return &Stdout{w: w}
}

// Send writes "! line" and a newline.
func (s *Stdout) Send(_ context.Context, line string) error {
	if _, err := fmt.Fprintf(s.w, "! %s\n", line); err != nil {
		return fmt.Errorf("write stdout: %w", err)
	}
	return nil
}

// TCP sends each line over a fresh connection to a newline-delimited relay
// such as irccat. Nothing is kept open between messages.
type TCP struct {
	addr    string
	secret  string
	dialer  net.Dialer
	timeout time.Duration
}

// NewTCP creates a TCP sink for host:port. A non-empty secret is sent as a
// "%/secret/%" tag in front of every line.
func NewTCP(host string, port int, secret string) *TCP {
	return &TCP{
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		secret:  secret,
		dialer:  net.Dialer{Timeout: 30 * time.Second},
		timeout: 30 * time.Second,
	}
}

// Addr returns the relay address.
func (t *TCP) Addr() string { return t.addr }

// Send dials the relay, writes the (tagged) line and a newline, and closes.
func (t *TCP) Send(ctx context.Context, line string) error {
	conn, err := t.dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.addr, err)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(t.timeout)); err != nil {
		_ = conn.Close()
		return fmt.Errorf("set deadline: %w", err)
	}
	if _, err := io.WriteString(conn, Tag(t.secret, line)+"\n"); err != nil {
		_ = conn.Close()
		return fmt.Errorf("write %s: %w", t.addr, err)
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("close %s: %w", t.addr, err)
	}
	return nil
}

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts each line as a message to a single chat.
type Telegram struct {
	api    telegramAPI
	chatID int64
}

// NewTelegram creates a Telegram sink authenticated with token.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Telegram{api: api, chatID: chatID}, nil
}

// Send posts line to the chat.
func (t *Telegram) Send(_ context.Context, line string) error {
	msg := tgbotapi.NewMessage(t.chatID, line)
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
