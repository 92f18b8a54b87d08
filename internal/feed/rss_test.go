package feed

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"twittermoo/internal/model"
)

type mockTransport struct {
	body       string
	statusCode int
	err        error
}

func (m *mockTransport) Do(_ *http.Request) (*http.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test-only fixture loading
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(data)
}

func TestRSSTimeline(t *testing.T) {
	xml := loadFixture(t, "../../testdata/timeline.xml")
	c := NewRSS(&mockTransport{body: xml, statusCode: 200}, "https://social.example.com/@alice.rss")

	got, err := c.Timeline(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []model.Item{
		{
			ID:           "https://social.example.com/@alice/3",
			AuthorName:   "Alice Example",
			AuthorHandle: "Alice",
			Text:         "@bob lunch later?",
			CreatedAt:    time.Date(2025, 1, 6, 12, 30, 0, 0, time.UTC),
		},
		{
			ID:           "https://social.example.com/@alice/2",
			AuthorName:   "Alice Example",
			AuthorHandle: "Alice",
			Text:         "coffee",
			CreatedAt:    time.Date(2025, 1, 6, 9, 15, 0, 0, time.UTC),
		},
		{
			ID:           "https://social.example.com/@alice/1",
			AuthorName:   "Alice Example",
			AuthorHandle: "Alice",
			Text:         "first post of the day",
			CreatedAt:    time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC),
		},
	}
	equalTime := cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })
	if diff := cmp.Diff(want, got, equalTime); diff != "" {
		t.Errorf("Timeline mismatch (-want +got):\n%s", diff)
	}
}

func TestRSSErrors(t *testing.T) {
	tests := []struct {
		name          string
		transport     *mockTransport
		wantTransient bool
	}{
		{
			name:      "not found is permanent",
			transport: &mockTransport{body: "not found", statusCode: 404},
		},
		{
			name:          "server error is transient",
			transport:     &mockTransport{body: "oops", statusCode: 503},
			wantTransient: true,
		},
		{
			name:          "rate limited is transient",
			transport:     &mockTransport{statusCode: 429},
			wantTransient: true,
		},
		{
			name:          "dropped connection is transient",
			transport:     &mockTransport{err: io.ErrUnexpectedEOF},
			wantTransient: true,
		},
		{
			name:      "invalid xml is permanent",
			transport: &mockTransport{body: "not xml at all", statusCode: 200},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewRSS(tt.transport, "https://example.com/rss")
			_, err := c.Timeline(context.Background())
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if diff := cmp.Diff(tt.wantTransient, IsTransient(err)); diff != "" {
				t.Errorf("IsTransient mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRSSStalledUpstreamTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := NewRSS(http.DefaultClient, srv.URL)
	c.timeout = 50 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		_, err := c.Timeline(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !IsTransient(err) {
			t.Errorf("expected a stalled feed to be transient, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timeline still blocked after the request timeout")
	}
}

func TestRSSDirectMessagesEmpty(t *testing.T) {
	c := NewRSS(&mockTransport{err: errors.New("must not be called")}, "https://example.com/rss")
	got, err := c.DirectMessages(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no direct messages, got %d", len(got))
	}
}

func TestHandleFor(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "Alice Example", want: "Alice"},
		{name: "@bob", want: "bob"},
		{name: "  ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, handleFor(tt.name)); diff != "" {
				t.Errorf("handleFor mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
