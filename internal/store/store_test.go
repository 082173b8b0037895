package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func testRecord(id string, age time.Duration) *Record {
	return &Record{
		ID:         id,
		SourceURL:  "https://a.example/page",
		TargetURL:  "https://b.example/page",
		Similarity: 87.5,
		CreatedAt:  time.Now().Add(-age).UTC().Truncate(time.Second),
		Result:     []byte(`{"similarity":87.5}`),
	}
}

func runStoreTests(t *testing.T, s Store) {
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}

	older := testRecord("older", time.Hour)
	newer := testRecord("newer", time.Minute)
	for _, rec := range []*Record{older, newer} {
		if err := s.Save(ctx, rec); err != nil {
			t.Fatalf("Save(%s): %v", rec.ID, err)
		}
	}

	got, err := s.Get(ctx, "older")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Similarity != 87.5 || got.SourceURL != older.SourceURL {
		t.Errorf("Get returned %+v", got)
	}
	if string(got.Result) != string(older.Result) {
		t.Errorf("result payload = %s", got.Result)
	}

	list, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List returned %d records, want 2", len(list))
	}
	if list[0].ID != "newer" {
		t.Errorf("List order = [%s, %s], want newest first", list[0].ID, list[1].ID)
	}

	limited, err := s.List(ctx, 1)
	if err != nil {
		t.Fatalf("List(1): %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("List(1) returned %d records", len(limited))
	}
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite("file:" + filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	runStoreTests(t, s)
}
