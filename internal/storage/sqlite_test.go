package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"twittermoo/internal/model"
)

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetUnknown(t *testing.T) {
	s := newTestDB(t)

	got, err := s.Get(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(model.StatusUnknown, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
}

func TestSetTransitions(t *testing.T) {
	tests := []struct {
		name   string
		writes []model.Status
		want   model.Status
	}{
		{name: "seeded", writes: []model.Status{model.StatusSeeded}, want: model.StatusSeeded},
		{name: "delivered", writes: []model.Status{model.StatusDelivered}, want: model.StatusDelivered},
		{name: "seeded then delivered", writes: []model.Status{model.StatusSeeded, model.StatusDelivered}, want: model.StatusDelivered},
		{name: "seeded twice", writes: []model.Status{model.StatusSeeded, model.StatusSeeded}, want: model.StatusSeeded},
		{name: "delivered never reverts", writes: []model.Status{model.StatusDelivered, model.StatusSeeded}, want: model.StatusDelivered},
		{
			name:   "delivered repeated",
			writes: []model.Status{model.StatusSeeded, model.StatusDelivered, model.StatusSeeded, model.StatusDelivered},
			want:   model.StatusDelivered,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestDB(t)

			for _, st := range tt.writes {
				if err := s.Set(ctx, "fp", st); err != nil {
					t.Fatalf("set %s: %v", st, err)
				}
			}

			got, err := s.Get(ctx, "fp")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("status mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSetInvalidStatus(t *testing.T) {
	s := newTestDB(t)
	if err := s.Set(context.Background(), "fp", model.StatusUnknown); err == nil {
		t.Fatal("expected error for unknown status, got nil")
	}
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	writes := map[string]model.Status{
		"a": model.StatusSeeded,
		"b": model.StatusSeeded,
		"c": model.StatusDelivered,
	}
	for fp, st := range writes {
		if err := s.Set(ctx, fp, st); err != nil {
			t.Fatalf("set %s: %v", fp, err)
		}
	}

	got, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	want := map[model.Status]int{model.StatusSeeded: 2, model.StatusDelivered: 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Counts mismatch (-want +got):\n%s", diff)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set(ctx, "fp", model.StatusDelivered); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Get(ctx, "fp")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(model.StatusDelivered, got); diff != "" {
		t.Errorf("status after reopen mismatch (-want +got):\n%s", diff)
	}
}

// Ensure the Storage interface is satisfied.
var _ Storage = (*SQLite)(nil)
