package delivery

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"

	"twittermoo/internal/backoff"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSleeper struct {
	pauses []time.Duration
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.pauses = append(r.pauses, d)
	return nil
}

type flakySink struct {
	failures int
	sent     []string
	attempts int
}

func (s *flakySink) Send(_ context.Context, line string) error {
	s.attempts++
	if s.attempts <= s.failures {
		return errors.New("connection refused")
	}
	s.sent = append(s.sent, line)
	return nil
}

func TestTag(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		line   string
		want   string
	}{
		{name: "no secret", line: "<alice> hi", want: "<alice> hi"},
		{name: "with secret", secret: "s3cr3t", line: "<alice> hi", want: "%/s3cr3t/% <alice> hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Tag(tt.secret, tt.line)); diff != "" {
				t.Errorf("Tag mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStdoutSend(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)

	for _, line := range []string{"<alice> one", "<bob> two"} {
		if err := s.Send(context.Background(), line); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	want := "! <alice> one\n! <bob> two\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

// listen accepts connections and reports each one's full content.
func listen(t *testing.T) (net.Listener, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	got := make(chan string, 10)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			data, _ := io.ReadAll(bufio.NewReader(conn))
			_ = conn.Close()
			got <- string(data)
		}
	}()
	return ln, got
}

func TestTCPSendConnectionPerMessage(t *testing.T) {
	ln, got := listen(t)
	addr := ln.Addr().(*net.TCPAddr)

	s := NewTCP("127.0.0.1", addr.Port, "key")
	lines := []string{"<alice> one", "<bob> two"}
	for _, line := range lines {
		if err := s.Send(context.Background(), line); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	var received []string
	for range lines {
		select {
		case r := <-got:
			received = append(received, r)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for relay")
		}
	}

	want := []string{"%/key/% <alice> one\n", "%/key/% <bob> two\n"}
	if diff := cmp.Diff(want, received); diff != "" {
		t.Errorf("relay received mismatch (-want +got):\n%s", diff)
	}
}

func TestTCPSendUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	s := NewTCP("127.0.0.1", port, "")
	if err := s.Send(context.Background(), "x"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestChannelRetriesUntilDelivered(t *testing.T) {
	sink := &flakySink{failures: 6}
	sleeper := &recordingSleeper{}
	log := discardLogger()
	c := NewChannelWithRetrier(sink, backoff.New(backoff.DefaultPolicy(), sleeper, nil, log), log)

	if err := c.Deliver(context.Background(), "<alice> hi"); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	if diff := cmp.Diff([]string{"<alice> hi"}, sink.sent); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
	s, cd := 30*time.Second, 120*time.Second
	if diff := cmp.Diff([]time.Duration{s, s, s, s, s, cd}, sleeper.pauses); diff != "" {
		t.Errorf("pauses mismatch (-want +got):\n%s", diff)
	}
}

func TestChannelStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := &flakySink{failures: 1 << 30}
	sleeper := backoff.SleeperFunc(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	})
	log := discardLogger()
	c := NewChannelWithRetrier(sink, backoff.New(backoff.DefaultPolicy(), sleeper, nil, log), log)

	err := c.Deliver(ctx, "<alice> hi")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(sink.sent) != 0 {
		t.Errorf("expected nothing sent, got %v", sink.sent)
	}
}

type mockTelegram struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (m *mockTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m.err != nil {
		return tgbotapi.Message{}, m.err
	}
	m.sent = append(m.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestTelegramSend(t *testing.T) {
	api := &mockTelegram{}
	s := &Telegram{api: api, chatID: 42}

	if err := s.Send(context.Background(), "<alice> hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(api.sent))
	}
	msg := api.sent[0]
	if diff := cmp.Diff(int64(42), msg.ChatID); diff != "" {
		t.Errorf("chat mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("<alice> hi", msg.Text); diff != "" {
		t.Errorf("text mismatch (-want +got):\n%s", diff)
	}
	if !msg.DisableWebPagePreview {
		t.Error("expected web page preview to be disabled")
	}

	api.err = errors.New("bad gateway")
	if err := s.Send(context.Background(), "x"); err == nil {
		t.Fatal("expected error, got nil")
	}
}
